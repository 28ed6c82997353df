package consensus

import (
	"fmt"

	"github.com/tolelom/slotchain/core"
	"github.com/tolelom/slotchain/crypto"
)

const maxProposerLen = 256

// BlockValidator runs a block through the five-stage stateless+slot-relative
// validity check: format, signature, parent linkage, slot assignment,
// height. Each stage short-circuits on the first failure.
//
// Unlike a standalone consensus library with a separate identity layer,
// this node has no external signer registry, so ValidateSignature performs
// full ed25519 verification against the proposer's own hex-encoded pubkey
// rather than a bare non-zeroness check.
type BlockValidator struct {
	scheduler *SlotScheduler
}

// NewBlockValidator creates a validator bound to scheduler.
func NewBlockValidator(scheduler *SlotScheduler) *BlockValidator {
	return &BlockValidator{scheduler: scheduler}
}

// ValidateFormat checks the block's structural well-formedness.
func (v *BlockValidator) ValidateFormat(b *core.Block) error {
	if b.Hash == "" {
		return fmt.Errorf("block hash cannot be empty")
	}
	if b.Proposer == "" {
		return fmt.Errorf("proposer cannot be empty")
	}
	if len(b.Proposer) > maxProposerLen {
		return fmt.Errorf("proposer name too long")
	}
	return nil
}

// ValidateSignature checks that the block's signature was produced by its
// named proposer over the block's recomputed hash.
func (v *BlockValidator) ValidateSignature(b *core.Block) error {
	if b.Signature == "" {
		return fmt.Errorf("signature cannot be empty")
	}
	pub, err := crypto.PubKeyFromHex(b.Proposer)
	if err != nil {
		return fmt.Errorf("proposer is not a valid pubkey: %w", err)
	}
	return b.VerifySignature(pub)
}

// ValidateParent checks genesis/non-genesis parent-hash consistency.
func (v *BlockValidator) ValidateParent(b *core.Block) error {
	if b.IsGenesis() {
		if b.ParentHash != core.GenesisParentHash {
			return fmt.Errorf("genesis block must have zero parent")
		}
		return nil
	}
	if b.ParentHash == core.GenesisParentHash || b.ParentHash == "" {
		return fmt.Errorf("non-genesis block cannot have zero parent")
	}
	return nil
}

// ValidateSlot checks that the block's timestamp falls within its claimed
// slot's window and that the proposer matches the scheduler's assignment
// for that slot.
func (v *BlockValidator) ValidateSlot(b *core.Block) error {
	if !v.scheduler.ValidateBlockSlot(b.Slot, b.Timestamp) {
		return fmt.Errorf("block timestamp %d not within slot %d bounds", b.Timestamp, b.Slot)
	}
	expected := v.scheduler.GetProposer(b.Slot)
	if b.Proposer != expected {
		return fmt.Errorf("expected proposer %s for slot %d, got %s", expected, b.Slot, b.Proposer)
	}
	return nil
}

// ValidateHeight checks that b's height is exactly one greater than its
// parent's, unless b is genesis.
func (v *BlockValidator) ValidateHeight(b *core.Block, parentHeight uint64) error {
	if b.IsGenesis() {
		return nil
	}
	if b.Height != parentHeight+1 {
		return fmt.Errorf("block height %d must be parent height %d + 1", b.Height, parentHeight)
	}
	return nil
}

// Validate runs the full five-stage check in order, stopping at the first
// failure. parentHeight is ignored for a genesis block.
func (v *BlockValidator) Validate(b *core.Block, parentHeight uint64) error {
	if err := v.ValidateFormat(b); err != nil {
		return err
	}
	if err := v.ValidateSignature(b); err != nil {
		return err
	}
	if err := v.ValidateParent(b); err != nil {
		return err
	}
	if err := v.ValidateSlot(b); err != nil {
		return err
	}
	if err := v.ValidateHeight(b, parentHeight); err != nil {
		return err
	}
	return nil
}
