package core

import "testing"

// TestMempool verifies add/remove/pending operations.
func TestMempool(t *testing.T) {
	mp := NewMempool()
	tx, _ := signedTx(t, "", "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", 1, 1, 1)

	if err := mp.Add(tx); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if mp.Size() != 1 {
		t.Errorf("size: got %d want 1", mp.Size())
	}
	if err := mp.Add(tx); err == nil {
		t.Error("adding duplicate tx should fail")
	}

	pending := mp.Pending(10)
	if len(pending) != 1 {
		t.Errorf("pending: got %d want 1", len(pending))
	}

	mp.Remove([]string{tx.ID})
	if mp.Size() != 0 {
		t.Error("pool should be empty after remove")
	}
}

// TestMempoolPendingOrderIsInsertionOrder checks deterministic ordering.
func TestMempoolPendingOrderIsInsertionOrder(t *testing.T) {
	mp := NewMempool()
	var ids []string
	for i := 0; i < 3; i++ {
		tx, _ := signedTx(t, "", "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", 1, 1, int64(i+1))
		if err := mp.Add(tx); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, tx.ID)
	}
	pending := mp.Pending(10)
	if len(pending) != 3 {
		t.Fatalf("expected 3 pending, got %d", len(pending))
	}
	for i, tx := range pending {
		if tx.ID != ids[i] {
			t.Errorf("pending[%d]: got %s want %s", i, tx.ID, ids[i])
		}
	}
}
