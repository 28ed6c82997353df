package core

import (
	"fmt"
	"runtime"
	"sync"
)

const parallelThreshold = 1000

// MinerFeeSharePercent is the portion of a block's total fees credited to
// its proposer as a mining reward; the remainder is burned. This is a
// consensus parameter: changing it after genesis would require a
// height-gated rule, so it is treated as a fixed constant here.
const MinerFeeSharePercent = 20

// Delta is an account balance change accumulated while folding a sequence of
// blocks, keyed by address.
type Delta map[string]int64

// Reconstructor replays a chain of blocks into an account-balance delta,
// debiting senders, crediting recipients, and crediting each block's
// proposer with the block's coinbase reward plus their percentage share of
// that block's transaction fees (the remainder is burned, i.e. simply not
// credited to anyone).
type Reconstructor struct {
	lookupTx     func(hash string) (*Transaction, error)
	coinbase     uint64
	feeShare     uint8
}

// NewReconstructor creates a Reconstructor. lookupTx resolves a transaction
// hash (as stored in a Block's Transactions list) to its full Transaction.
func NewReconstructor(lookupTx func(hash string) (*Transaction, error), coinbaseReward uint64, feeSharePercent uint8) *Reconstructor {
	return &Reconstructor{lookupTx: lookupTx, coinbase: coinbaseReward, feeShare: feeSharePercent}
}

// WithLookup returns a copy of r using a different transaction lookup,
// keeping the same coinbase reward and fee share. Useful when replaying a
// block whose transactions have not yet been persisted (e.g. a block just
// received from a peer, ahead of the Blockchain commit that would make
// lookupTx able to find them).
func (r *Reconstructor) WithLookup(lookupTx func(hash string) (*Transaction, error)) *Reconstructor {
	return &Reconstructor{lookupTx: lookupTx, coinbase: r.coinbase, feeShare: r.feeShare}
}

// applyBlock folds a single block's transactions into delta.
func (r *Reconstructor) applyBlock(delta Delta, b *Block) error {
	var totalFees uint64
	for _, hash := range b.Transactions {
		tx, err := r.lookupTx(hash)
		if err != nil {
			return fmt.Errorf("block %d: lookup tx %s: %w", b.Height, hash, err)
		}
		if tx.IsCoinbase() {
			// The proposer's reward is credited once, below; the coinbase
			// transaction only records it.
			continue
		}
		delta[tx.From] -= int64(tx.Amount + tx.Fee)
		delta[tx.To] += int64(tx.Amount)
		totalFees += tx.Fee
	}
	reward := r.coinbase + (totalFees*uint64(r.feeShare))/100
	if reward > 0 {
		delta[b.Proposer] += int64(reward)
	}
	return nil
}

// ReconstructSequential folds every block in chain (genesis first) into a
// single Delta in order.
func (r *Reconstructor) ReconstructSequential(chain []*Block) (Delta, error) {
	delta := make(Delta)
	for _, b := range chain {
		if err := r.applyBlock(delta, b); err != nil {
			return nil, err
		}
	}
	return delta, nil
}

// ReconstructParallel produces the same result as ReconstructSequential but
// partitions chain into roughly CPU-count contiguous segments, folds each
// segment into its own partial delta concurrently, then combines the
// partial deltas in chain order. Chain order is preserved by combining
// segment results sequentially even though each segment's internal work
// happens concurrently — that is what guarantees identical output to the
// sequential strategy, since delta accumulation is commutative within a
// segment but segments themselves are combined in order.
func (r *Reconstructor) ReconstructParallel(chain []*Block) (Delta, error) {
	if len(chain) <= parallelThreshold {
		return r.ReconstructSequential(chain)
	}

	workers := runtime.NumCPU()
	if workers < 1 {
		workers = 1
	}
	if workers > len(chain) {
		workers = len(chain)
	}

	segSize := (len(chain) + workers - 1) / workers
	partials := make([]Delta, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * segSize
		end := start + segSize
		if start >= len(chain) {
			break
		}
		if end > len(chain) {
			end = len(chain)
		}
		wg.Add(1)
		go func(idx, start, end int) {
			defer wg.Done()
			d, err := r.ReconstructSequential(chain[start:end])
			partials[idx] = d
			errs[idx] = err
		}(w, start, end)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	combined := make(Delta)
	for _, d := range partials {
		for addr, v := range d {
			combined[addr] += v
		}
	}
	return combined, nil
}

// ApplyDelta applies delta to state, crediting/debiting each affected
// account. Balances are uint64; a negative resulting balance indicates a
// chain that spent more than it had, which ApplyDelta rejects rather than
// wrapping.
func ApplyDelta(state State, delta Delta) error {
	for addr, change := range delta {
		acct, err := state.GetAccount(addr)
		if err != nil {
			return fmt.Errorf("get account %s: %w", addr, err)
		}
		if acct == nil {
			acct = &Account{Address: addr}
		}
		newBalance := int64(acct.Balance) + change
		if newBalance < 0 {
			return fmt.Errorf("account %s would go negative (%d)", addr, newBalance)
		}
		acct.Balance = uint64(newBalance)
		if err := state.SetAccount(acct); err != nil {
			return fmt.Errorf("set account %s: %w", addr, err)
		}
	}
	return nil
}
