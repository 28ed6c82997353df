// Package consensus implements slot-scheduled proposer rotation, the
// five-stage block validator, checkpoint-bounded reorg protection, and fork
// resolution over the DAG-structured chain in core.
package consensus

import (
	"fmt"
	"log"
	"time"

	"github.com/tolelom/slotchain/core"
	"github.com/tolelom/slotchain/crypto"
	"github.com/tolelom/slotchain/events"
	"github.com/tolelom/slotchain/mining"
)

// Proposer is the hybrid slot-scheduled/proof-of-work block production
// engine: the SlotScheduler deterministically assigns WHO proposes a given
// slot, but the assigned proposer must still complete a proof-of-work
// search before the block is valid.
type Proposer struct {
	scheduler   *SlotScheduler
	validator   *BlockValidator
	checkpoints *CheckpointManager
	bc          *core.Blockchain
	state       core.State
	mempool     *core.Mempool
	admission   *core.AdmissionGate
	emitter     *events.Emitter

	privKey crypto.PrivateKey
	pubKey  crypto.PublicKey

	difficulty     uint8
	miningWorkers  int
	maxBlockTxs    int
	coinbaseReward uint64
	feeSharePct    uint8
}

// Config bundles the tunables ProduceBlock needs beyond its core components.
type Config struct {
	Difficulty     uint8
	MiningWorkers  int // 1 → sequential search; 0 → one parallel worker per CPU
	MaxBlockTxs    int // 0 → 500
	CoinbaseReward uint64
	FeeSharePct    uint8
}

// New creates a Proposer for the local validator identified by privKey.
func New(
	scheduler *SlotScheduler,
	validator *BlockValidator,
	checkpoints *CheckpointManager,
	bc *core.Blockchain,
	state core.State,
	mempool *core.Mempool,
	admission *core.AdmissionGate,
	emitter *events.Emitter,
	privKey crypto.PrivateKey,
	cfg Config,
) *Proposer {
	maxTxs := cfg.MaxBlockTxs
	if maxTxs <= 0 {
		maxTxs = 500
	}
	return &Proposer{
		scheduler:      scheduler,
		validator:      validator,
		checkpoints:    checkpoints,
		bc:             bc,
		state:          state,
		mempool:        mempool,
		admission:      admission,
		emitter:        emitter,
		privKey:        privKey,
		pubKey:         privKey.Public(),
		difficulty:     cfg.Difficulty,
		miningWorkers:  cfg.MiningWorkers,
		maxBlockTxs:    maxTxs,
		coinbaseReward: cfg.CoinbaseReward,
		feeSharePct:    cfg.FeeSharePct,
	}
}

// IsProposerForSlot reports whether this node is assigned to propose slotNumber.
func (p *Proposer) IsProposerForSlot(slotNumber uint64) bool {
	return p.scheduler.GetProposer(slotNumber) == p.pubKey.Hex()
}

// ProduceBlock builds, mines, signs, applies and commits the block for
// slotNumber, provided this node is the assigned proposer. On any failure
// after state has been tentatively mutated, the snapshot is rolled back and
// nothing is persisted.
func (p *Proposer) ProduceBlock(slotNumber uint64) (*core.Block, error) {
	if !p.IsProposerForSlot(slotNumber) {
		return nil, fmt.Errorf("not the assigned proposer for slot %d", slotNumber)
	}

	parent := p.bc.TipBlock()
	var parentHash string
	var nextHeight uint64
	if parent == nil {
		parentHash = core.GenesisParentHash
		nextHeight = 0
	} else {
		parentHash = parent.Hash
		nextHeight = parent.Height + 1
	}

	slot := p.scheduler.GetSlot(slotNumber)
	timestamp := slot.StartTime

	pending := p.mempool.Pending(p.maxBlockTxs)
	txs := make([]*core.Transaction, 0, len(pending)+1)
	txHashes := make([]string, 0, len(pending)+1)

	var totalFees uint64
	for _, tx := range pending {
		txs = append(txs, tx)
		txHashes = append(txHashes, tx.ID)
		totalFees += tx.Fee
	}

	reward := p.coinbaseReward + (totalFees*uint64(p.feeSharePct))/100
	if reward > 0 {
		coinbase := core.NewCoinbaseTransaction(p.pubKey.Hex(), reward, timestamp)
		coinbase.ID = coinbase.Hash()
		txs = append(txs, coinbase)
		txHashes = append(txHashes, coinbase.ID)
	}

	block := core.NewBlock(nextHeight, slotNumber, timestamp, parentHash, p.pubKey.Hex(), txHashes, p.difficulty)

	result, err := p.mine(block)
	if err != nil {
		return nil, fmt.Errorf("mine block %d: %w", nextHeight, err)
	}
	block.SetNonce(result.Nonce)
	block.Sign(p.privKey)

	if p.checkpoints != nil {
		if err := p.checkpoints.ValidateBlockAgainstCheckpoints(nextHeight, block.Hash); err != nil {
			return nil, fmt.Errorf("checkpoint rejection: %w", err)
		}
	}
	if err := p.validator.Validate(block, parentHeight(parent)); err != nil {
		return nil, fmt.Errorf("self-validation failed: %w", err)
	}

	snapID, err := p.state.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	delta := core.Delta{}
	for _, tx := range txs {
		if tx.IsCoinbase() {
			delta[tx.To] += int64(tx.Amount)
			continue
		}
		delta[tx.From] -= int64(tx.Amount + tx.Fee)
		delta[tx.To] += int64(tx.Amount)
	}
	if err := core.ApplyDelta(p.state, delta); err != nil {
		_ = p.state.RevertToSnapshot(snapID)
		return nil, fmt.Errorf("apply delta: %w", err)
	}

	if err := p.bc.AddBlock(block, txs); err != nil {
		_ = p.state.RevertToSnapshot(snapID)
		return nil, fmt.Errorf("add block: %w", err)
	}
	if err := p.state.Commit(); err != nil {
		log.Fatalf("[consensus] FATAL: block %d stored but state commit failed: %v", nextHeight, err)
	}

	if p.checkpoints != nil && p.checkpoints.ShouldCreateCheckpoint(nextHeight) {
		if err := p.checkpoints.CreateCheckpoint(nextHeight, block.Hash, timestamp, 0); err != nil {
			log.Printf("[consensus] checkpoint creation failed at block %d: %v", nextHeight, err)
		}
		p.emitter.Emit(events.Event{
			Type:        events.EventCheckpointCreated,
			BlockHeight: nextHeight,
			Data:        map[string]any{"hash": block.Hash},
		})
	}

	userTxIDs := make([]string, 0, len(pending))
	for _, tx := range pending {
		userTxIDs = append(userTxIDs, tx.ID)
		if p.admission != nil {
			p.admission.Release(tx.From)
		}
	}
	p.mempool.Remove(userTxIDs)

	p.emitter.Emit(events.Event{
		Type:        events.EventBlockCommitted,
		BlockHeight: block.Height,
		Data:        map[string]any{"hash": block.Hash, "transactions": txs},
	})

	return block, nil
}

func parentHeight(parent *core.Block) uint64 {
	if parent == nil {
		return 0
	}
	return parent.Height
}

func (p *Proposer) mine(block *core.Block) (mining.Result, error) {
	if p.miningWorkers == 1 {
		return mining.MineSequential(block, block.Difficulty)
	}
	newBlock := func() mining.Hashable {
		clone := *block
		return &clone
	}
	return mining.MineParallel(newBlock, block.Difficulty, p.miningWorkers)
}

// Run drives the slot-production loop at the scheduler's slot granularity,
// producing a block whenever this node is the assigned proposer for the
// current slot. It blocks until done is closed.
func (p *Proposer) Run(done <-chan struct{}) {
	interval := time.Duration(p.scheduler.SlotDuration()) * time.Second
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var lastSlot uint64
	first := true
	for {
		select {
		case <-done:
			return
		case now := <-ticker.C:
			slotNumber := p.scheduler.GetCurrentSlot(now.Unix())
			if !first && slotNumber == lastSlot {
				continue
			}
			first = false
			lastSlot = slotNumber
			if !p.IsProposerForSlot(slotNumber) {
				continue
			}
			if _, err := p.ProduceBlock(slotNumber); err != nil {
				log.Printf("[consensus] produce block for slot %d: %v", slotNumber, err)
			}
		}
	}
}
