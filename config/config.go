package config

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
)

// TLSConfig holds paths to the PEM files needed for mTLS.
// When nil or all paths empty, the node falls back to plain TCP.
type TLSConfig struct {
	CACert   string `json:"ca_cert"`   // CA certificate PEM path
	NodeCert string `json:"node_cert"` // node certificate PEM path
	NodeKey  string `json:"node_key"`  // node private key PEM path
}

// SeedPeer identifies a remote node to connect to on startup.
type SeedPeer struct {
	ID   string `json:"id"`   // remote node ID
	Addr string `json:"addr"` // host:port
}

// GenesisConfig describes the chain's initial state.
type GenesisConfig struct {
	ChainID     string            `json:"chain_id"`
	GenesisTime int64             `json:"genesis_time"` // unix seconds slot 0 begins at
	Alloc       map[string]uint64 `json:"alloc"`         // pubkey hex → initial balance
}

// MiningConfig controls the proof-of-work search each slot's proposer runs.
type MiningConfig struct {
	Difficulty uint8 `json:"difficulty"` // leading hex-zero digits required
	Workers    int   `json:"workers"`    // 0 → runtime.NumCPU()
}

// NetworkSecurityConfig mirrors network.SecurityConfig so it can be loaded
// from JSON; see network.DefaultSecurityConfig for the field defaults.
type NetworkSecurityConfig struct {
	MaxConcurrentConnections int   `json:"max_concurrent_connections"`
	MaxMessagesPerSecond     int   `json:"max_messages_per_second"`
	MaxBytesPerSecond        int64 `json:"max_bytes_per_second"`
	MessageSizeLimit         int64 `json:"message_size_limit"`
}

// AdmissionGateConfig mirrors core.AdmissionConfig so it can be loaded from
// JSON; see core.DefaultAdmissionConfig for the field defaults.
type AdmissionGateConfig struct {
	MinAddressLength    int    `json:"min_address_length"`
	MaxAddressLength    int    `json:"max_address_length"`
	MinFee              uint64 `json:"min_fee"`
	MaxPendingPerSender uint32 `json:"max_pending_per_sender"`
	SeenIDCap           int    `json:"seen_id_cap"`
}

// Config holds all node configuration.
type Config struct {
	NodeID      string `json:"node_id"`
	DataDir     string `json:"data_dir"`
	RPCPort     int    `json:"rpc_port"`
	P2PPort     int    `json:"p2p_port"`
	MaxBlockTxs int    `json:"max_block_txs"` // max transactions per block; 0 → 500

	SlotDurationSeconds int64 `json:"slot_duration_seconds"` // 0 → 1
	CheckpointInterval  uint64 `json:"checkpoint_interval"`  // 0 → 2000
	MaxReorgDepth       uint64 `json:"max_reorg_depth"`      // 0 → 2000
	CoinbaseReward      uint64 `json:"coinbase_reward"`
	MinerFeeSharePercent uint8 `json:"miner_fee_share_percent"` // 0 → core.MinerFeeSharePercent

	Mining          MiningConfig          `json:"mining"`
	NetworkSecurity NetworkSecurityConfig `json:"network_security"`
	AdmissionGate   AdmissionGateConfig   `json:"admission_gate"`

	Validators   []string      `json:"validators"`                // authorised proposer pubkey hexes
	Genesis      GenesisConfig `json:"genesis"`
	SeedPeers    []SeedPeer    `json:"seed_peers,omitempty"`      // initial peers to connect to
	TLS          *TLSConfig    `json:"tls,omitempty"`             // nil → plain TCP
	RPCAuthToken string        `json:"rpc_auth_token,omitempty"`  // empty → no auth
}

// DefaultConfig returns a single-node development configuration.
func DefaultConfig() *Config {
	return &Config{
		NodeID:      "node0",
		DataDir:     "./data",
		RPCPort:     8545,
		P2PPort:     30303,
		MaxBlockTxs: 500,

		SlotDurationSeconds:  1,
		CheckpointInterval:   2000,
		MaxReorgDepth:        2000,
		CoinbaseReward:       50,
		MinerFeeSharePercent: 20,

		Mining: MiningConfig{Difficulty: 2, Workers: 0},
		NetworkSecurity: NetworkSecurityConfig{
			MaxConcurrentConnections: 100,
			MaxMessagesPerSecond:     100,
			MaxBytesPerSecond:        10_000_000,
			MessageSizeLimit:         10_000_000,
		},
		AdmissionGate: AdmissionGateConfig{
			MinAddressLength:    26,
			MaxAddressLength:    64,
			MinFee:              1,
			MaxPendingPerSender: 1000,
			SeenIDCap:           100_000,
		},

		Genesis: GenesisConfig{
			ChainID:     "slotchain-dev",
			GenesisTime: 0,
			Alloc:       map[string]uint64{},
		},
	}
}

// Load reads a JSON config file from path and validates required fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required fields are present and well-formed.
func (c *Config) Validate() error {
	if c.NodeID == "" {
		return fmt.Errorf("node_id must not be empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.Genesis.ChainID == "" {
		return fmt.Errorf("genesis.chain_id must not be empty")
	}
	if c.RPCPort <= 0 || c.RPCPort > 65535 {
		return fmt.Errorf("rpc_port must be 1-65535, got %d", c.RPCPort)
	}
	if c.P2PPort <= 0 || c.P2PPort > 65535 {
		return fmt.Errorf("p2p_port must be 1-65535, got %d", c.P2PPort)
	}
	if c.RPCPort == c.P2PPort {
		return fmt.Errorf("rpc_port and p2p_port must not be the same (%d)", c.RPCPort)
	}
	if len(c.Validators) == 0 {
		return fmt.Errorf("validators list must not be empty")
	}
	for i, v := range c.Validators {
		b, err := hex.DecodeString(v)
		if err != nil || len(b) != 32 {
			return fmt.Errorf("validators[%d]: must be 64-char hex (32 bytes ed25519 pubkey), got %q", i, v)
		}
	}
	if c.TLS != nil {
		t := c.TLS
		allSet := t.CACert != "" && t.NodeCert != "" && t.NodeKey != ""
		allEmpty := t.CACert == "" && t.NodeCert == "" && t.NodeKey == ""
		if !allSet && !allEmpty {
			return fmt.Errorf("tls: all three paths (ca_cert, node_cert, node_key) must be set or all empty")
		}
	}
	if c.SlotDurationSeconds < 0 {
		return fmt.Errorf("slot_duration_seconds must not be negative")
	}
	return nil
}

// SlotDuration returns the configured slot duration, defaulting to 1 second.
func (c *Config) SlotDuration() int64 {
	if c.SlotDurationSeconds <= 0 {
		return 1
	}
	return c.SlotDurationSeconds
}

// Save writes the config to path as formatted JSON.
func Save(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
