package core

import "testing"

func reconstructFixture(t *testing.T) (*Reconstructor, []*Block) {
	t.Helper()
	alice := "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	bob := "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	proposer := "cccccccccccccccccccccccccccccccccccccccc"

	transfer := mustTx(t, alice, bob, 100, 10, 1)
	coinbase := NewCoinbaseTransaction(proposer, 50, 1)
	coinbase.ID = coinbase.Hash()

	byID := map[string]*Transaction{transfer.ID: transfer, coinbase.ID: coinbase}
	lookup := func(hash string) (*Transaction, error) {
		if tx, ok := byID[hash]; ok {
			return tx, nil
		}
		return nil, ErrNotFound
	}

	genesis := NewBlock(0, 0, 0, GenesisParentHash, proposer, nil, 0)
	genesis.Hash = genesis.ComputeHash()
	block1 := NewBlock(1, 1, 1, genesis.Hash, proposer, []string{transfer.ID, coinbase.ID}, 0)
	block1.Hash = block1.ComputeHash()

	// genesis balances are seeded directly from the allocation table, not
	// via replay, so reconstruction only ever folds blocks after it.
	return NewReconstructor(lookup, 50, 20), []*Block{block1}
}

// TestReconstructSequentialAppliesFeesAndReward checks that sender/recipient
// balances and the proposer's coinbase + fee-share are all reflected.
func TestReconstructSequentialAppliesFeesAndReward(t *testing.T) {
	r, chain := reconstructFixture(t)
	delta, err := r.ReconstructSequential(chain)
	if err != nil {
		t.Fatalf("ReconstructSequential: %v", err)
	}

	alice := "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	bob := "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	proposer := "cccccccccccccccccccccccccccccccccccccccc"

	if delta[alice] != -110 {
		t.Errorf("alice delta: got %d want -110", delta[alice])
	}
	if delta[bob] != 100 {
		t.Errorf("bob delta: got %d want 100", delta[bob])
	}
	// coinbase(50) + 20% of the block's 10 fee (= 2); the block's coinbase
	// transaction is not credited on top of that reward
	want := int64(50 + 2 /*reward*/)
	if delta[proposer] != want {
		t.Errorf("proposer delta: got %d want %d", delta[proposer], want)
	}
}

// TestReconstructParallelMatchesSequential checks that the parallel strategy
// on a chain above the partition threshold produces the identical result to
// sequential replay.
func TestReconstructParallelMatchesSequential(t *testing.T) {
	alice := "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	bob := "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	proposer := "cccccccccccccccccccccccccccccccccccccccc"

	byID := make(map[string]*Transaction)
	lookup := func(hash string) (*Transaction, error) {
		if tx, ok := byID[hash]; ok {
			return tx, nil
		}
		return nil, ErrNotFound
	}

	var chain []*Block
	prevHash := GenesisParentHash
	for h := uint64(0); h < 1500; h++ {
		var txHashes []string
		if h > 0 {
			tx := mustTx(t, alice, bob, 1, 1, int64(h))
			byID[tx.ID] = tx
			txHashes = []string{tx.ID}
		}
		b := NewBlock(h, h, int64(h), prevHash, proposer, txHashes, 0)
		b.Hash = b.ComputeHash()
		chain = append(chain, b)
		prevHash = b.Hash
	}

	r := NewReconstructor(lookup, 10, 20)
	seq, err := r.ReconstructSequential(chain)
	if err != nil {
		t.Fatalf("sequential: %v", err)
	}
	par, err := r.ReconstructParallel(chain)
	if err != nil {
		t.Fatalf("parallel: %v", err)
	}
	if len(seq) != len(par) {
		t.Fatalf("delta size mismatch: sequential %d parallel %d", len(seq), len(par))
	}
	for addr, v := range seq {
		if par[addr] != v {
			t.Errorf("delta[%s]: sequential %d parallel %d", addr, v, par[addr])
		}
	}
}
