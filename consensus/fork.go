package consensus

import (
	"fmt"

	"github.com/tolelom/slotchain/core"
	"github.com/tolelom/slotchain/mining"
)

// ForkResolver finds the divergence point between two competing chains and
// decides whether adopting one of them constitutes a reorg shallow enough to
// be safe, and validates a full candidate chain's internal consistency.
type ForkResolver struct{}

// NewForkResolver creates a ForkResolver.
func NewForkResolver() *ForkResolver {
	return &ForkResolver{}
}

// FindForkPoint compares two block sequences (oldest first, by height) and
// returns the length of their common prefix along with each chain's
// diverging suffix.
func FindForkPoint(a, b []*core.Block) (commonPrefixLen int, suffixA, suffixB []*core.Block) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i].Hash == b[i].Hash {
		i++
	}
	return i, a[i:], b[i:]
}

// IsReorgSafe reports whether adopting a chain that diverges at forkPoint,
// given a competing chain of length chainLength, stays within maxReorg of
// the fork. Genesis (forkPoint == 0) is never considered safe to reorg past.
func IsReorgSafe(forkPoint int, chainLength int, maxReorg uint64) bool {
	if forkPoint <= 0 {
		return false
	}
	depth := uint64(chainLength - forkPoint)
	return depth <= maxReorg
}

// ValidateFullChain walks an ordered (genesis-first) candidate chain and
// checks: the first block is genesis, parent-hash linkage between
// consecutive blocks, height increments by exactly one, each block's
// stored hash matches its recomputed hash, each block satisfies its
// declared proof-of-work difficulty, and timestamps never decrease.
func ValidateFullChain(chain []*core.Block) error {
	if len(chain) == 0 {
		return fmt.Errorf("chain is empty")
	}
	if !chain[0].IsGenesis() {
		return fmt.Errorf("chain does not start at genesis")
	}
	for i, b := range chain {
		if computed := b.ComputeHash(); computed != b.Hash {
			return fmt.Errorf("block %d hash mismatch: stored %s computed %s", b.Height, b.Hash, computed)
		}
		if !mining.IsValidHash(b.Hash, b.Difficulty) {
			return fmt.Errorf("block %d does not satisfy its declared difficulty %d", b.Height, b.Difficulty)
		}
		if i == 0 {
			continue
		}
		prev := chain[i-1]
		if b.ParentHash != prev.Hash {
			return fmt.Errorf("block %d parent hash %s does not match previous block hash %s", b.Height, b.ParentHash, prev.Hash)
		}
		if b.Height != prev.Height+1 {
			return fmt.Errorf("block %d height must be %d, got %d", i, prev.Height+1, b.Height)
		}
		if b.Timestamp < prev.Timestamp {
			return fmt.Errorf("block %d timestamp %d precedes previous block timestamp %d", b.Height, b.Timestamp, prev.Timestamp)
		}
	}
	return nil
}

// ValidateDifficultyAdjustment checks that a proposed difficulty change from
// oldDifficulty to newDifficulty stays at or above min and moves by no more
// than maxAdjustment in either direction.
func ValidateDifficultyAdjustment(oldDifficulty, newDifficulty, min, maxAdjustment uint8) error {
	if newDifficulty < min {
		return fmt.Errorf("new difficulty %d is below the minimum %d", newDifficulty, min)
	}
	delta := int(newDifficulty) - int(oldDifficulty)
	if delta < 0 {
		delta = -delta
	}
	if delta > int(maxAdjustment) {
		return fmt.Errorf("difficulty adjustment %d exceeds maximum step %d", delta, maxAdjustment)
	}
	return nil
}
