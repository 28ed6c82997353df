// Command node starts a slotchain consensus node.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/tolelom/slotchain/config"
	"github.com/tolelom/slotchain/consensus"
	"github.com/tolelom/slotchain/core"
	"github.com/tolelom/slotchain/crypto/certgen"
	"github.com/tolelom/slotchain/events"
	"github.com/tolelom/slotchain/indexer"
	"github.com/tolelom/slotchain/network"
	"github.com/tolelom/slotchain/rpc"
	"github.com/tolelom/slotchain/storage"
	"github.com/tolelom/slotchain/wallet"
)

func main() {
	cfgPath := flag.String("config", "config.json", "path to config file")
	keyPath := flag.String("key", "validator.key", "path to keystore file")
	genKey := flag.Bool("genkey", false, "generate a new validator key and exit")
	genCerts := flag.String("gencerts", "", "generate CA + node TLS certs into the given directory and exit (requires node ID from config)")
	flag.Parse()

	// Read keystore password from environment (not CLI flags — they leak via ps).
	password := os.Getenv("SLOTCHAIN_PASSWORD")
	if password == "" {
		log.Println("WARNING: SLOTCHAIN_PASSWORD not set — keystore will use an empty password")
	}

	// ---- generate key mode ----
	if *genKey {
		w, err := wallet.Generate()
		if err != nil {
			log.Fatal(err)
		}
		if err := wallet.SaveKey(*keyPath, password, w.PrivKey()); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("Generated key. Public key (validator address): %s\n", w.PubKey())
		fmt.Printf("Saved to: %s\n", *keyPath)
		return
	}

	// ---- generate certs mode ----
	if *genCerts != "" {
		cfgForCerts, err := loadConfig(*cfgPath)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		if err := certgen.GenerateAll(*genCerts, cfgForCerts.NodeID, nil); err != nil {
			log.Fatalf("gencerts: %v", err)
		}
		fmt.Printf("Certificates generated in %s for node %q\n", *genCerts, cfgForCerts.NodeID)
		return
	}

	// ---- load config ----
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- load validator key ----
	privKey, err := wallet.LoadKey(*keyPath, password)
	if err != nil {
		log.Fatalf("load key: %v", err)
	}

	// ---- open DB ----
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatalf("mkdir data dir: %v", err)
	}
	db, err := storage.NewLevelDB(cfg.DataDir + "/chain")
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	blockStore := storage.NewLevelBlockStore(db)
	state := storage.NewBalanceStore(db) // reuses the same DB under the "acct:" prefix

	// ---- initialise blockchain ----
	bc := core.NewBlockchain(blockStore)
	if err := bc.Init(); err != nil {
		log.Fatalf("blockchain init: %v", err)
	}

	// ---- genesis block (if fresh chain) ----
	if bc.Tip() == "" {
		genesisBlock, err := config.CreateGenesisBlock(cfg, state, privKey)
		if err != nil {
			log.Fatalf("genesis: %v", err)
		}
		if err := bc.AddBlock(genesisBlock, nil); err != nil {
			log.Fatalf("add genesis: %v", err)
		}
		log.Printf("Genesis block committed: %s", genesisBlock.Hash)
	}

	// Startup integrity check: replay the persisted chain's full linkage,
	// hash recomputation and proof-of-work validity before serving traffic.
	chain := bc.DAG().TraverseParents(bc.Tip())
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	if err := consensus.ValidateFullChain(chain); err != nil {
		log.Fatalf("startup chain validation failed: %v", err)
	}

	// ---- events ----
	emitter := events.NewEmitter()

	// ---- indexer ----
	idx := indexer.New(db, emitter)

	// ---- mempool & admission gate ----
	mempool := core.NewMempool()
	admissionCfg := core.AdmissionConfig{
		MinAddressLength:    cfg.AdmissionGate.MinAddressLength,
		MaxAddressLength:    cfg.AdmissionGate.MaxAddressLength,
		MinFee:              cfg.AdmissionGate.MinFee,
		MaxPendingPerSender: cfg.AdmissionGate.MaxPendingPerSender,
		SeenIDCap:           cfg.AdmissionGate.SeenIDCap,
	}
	admission := core.NewAdmissionGate(admissionCfg)

	// ---- consensus components ----
	scheduler := consensus.NewSlotScheduler(cfg.SlotDuration(), cfg.Validators, cfg.Genesis.GenesisTime)
	validator := consensus.NewBlockValidator(scheduler)
	checkpoints, err := consensus.NewCheckpointManager(cfg.DataDir+"/checkpoints", cfg.CheckpointInterval, cfg.MaxReorgDepth)
	if err != nil {
		log.Fatalf("checkpoint manager: %v", err)
	}

	proposer := consensus.New(scheduler, validator, checkpoints, bc, state, mempool, admission, emitter, privKey, consensus.Config{
		Difficulty:     cfg.Mining.Difficulty,
		MiningWorkers:  cfg.Mining.Workers,
		MaxBlockTxs:    cfg.MaxBlockTxs,
		CoinbaseReward: cfg.CoinbaseReward,
		FeeSharePct:    orDefaultFeeShare(cfg.MinerFeeSharePercent),
	})

	// ---- TLS ----
	tlsCfg, err := config.LoadTLSConfig(cfg.TLS)
	if err != nil {
		log.Fatalf("tls: %v", err)
	}
	if tlsCfg != nil {
		log.Println("mTLS enabled for P2P")
	}

	// ---- peer security ----
	security := network.NewSecurityManager(network.SecurityConfig{
		MaxConcurrentConnections: cfg.NetworkSecurity.MaxConcurrentConnections,
		MaxMessagesPerSecond:     cfg.NetworkSecurity.MaxMessagesPerSecond,
		MaxBytesPerSecond:        cfg.NetworkSecurity.MaxBytesPerSecond,
		MessageSizeLimit:         cfg.NetworkSecurity.MessageSizeLimit,
	})

	// ---- network ----
	p2pAddr := fmt.Sprintf(":%d", cfg.P2PPort)
	node := network.NewNode(cfg.NodeID, p2pAddr, mempool, admission, security, tlsCfg)
	lookupTx := func(hash string) (*core.Transaction, error) { return bc.GetTransaction(hash) }
	recon := core.NewReconstructor(lookupTx, cfg.CoinbaseReward, orDefaultFeeShare(cfg.MinerFeeSharePercent))
	syncer := network.NewSyncer(node, bc, validator, recon, state)
	if err := node.Start(); err != nil {
		log.Fatalf("p2p start: %v", err)
	}
	defer node.Stop()
	log.Printf("P2P listening on %s", p2pAddr)

	// ---- connect to seed peers ----
	for _, sp := range cfg.SeedPeers {
		if err := node.AddPeer(sp.ID, sp.Addr); err != nil {
			log.Printf("seed peer %s (%s): %v", sp.ID, sp.Addr, err)
			continue
		}
		if peer := node.Peer(sp.ID); peer != nil {
			if err := syncer.SyncWithPeer(peer); err != nil {
				log.Printf("initial sync with %s: %v", sp.ID, err)
			}
		}
		log.Printf("Connected to seed peer %s (%s)", sp.ID, sp.Addr)
	}

	// ---- RPC ----
	rpcAddr := fmt.Sprintf(":%d", cfg.RPCPort)
	rpcHandler := rpc.NewHandler(bc, mempool, state, admission, idx)
	rpcServer := rpc.NewServer(rpcAddr, rpcHandler, cfg.RPCAuthToken)
	if err := rpcServer.Start(); err != nil {
		log.Fatalf("rpc start: %v", err)
	}
	defer rpcServer.Stop()
	log.Printf("RPC listening on %s", rpcAddr)
	if cfg.RPCAuthToken != "" {
		log.Println("RPC Bearer token authentication enabled")
	}

	// ---- consensus loop ----
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		proposer.Run(done)
	}()
	log.Printf("Consensus running (validator: %s)", privKey.Public().Hex())

	// ---- graceful shutdown ----
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("Shutting down...")

	// 1. Stop consensus first (no new blocks written)
	close(done)
	wg.Wait()

	// 2. Deferred calls run in LIFO: rpcServer.Stop → node.Stop → db.Close
	log.Println("Shutdown complete.")
}

func orDefaultFeeShare(pct uint8) uint8 {
	if pct == 0 {
		return core.MinerFeeSharePercent
	}
	return pct
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("Config file not found at %s, using defaults.", path)
			return config.DefaultConfig(), nil
		}
		return nil, err
	}
	return cfg, nil
}
