package core

import "testing"

const (
	testSender    = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	testRecipient = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

func mustTx(t *testing.T, from, to string, amount, fee uint64, seq int64) *Transaction {
	t.Helper()
	tx, err := NewTransaction(from, to, amount, fee, seq, nil)
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}
	tx.ID = tx.Hash()
	return tx
}

// TestAdmissionGateAcceptsIncreasingSequence mirrors the replay-prevention
// scenario of accepting sequence 100, then 200.
func TestAdmissionGateAcceptsIncreasingSequence(t *testing.T) {
	g := NewDefaultAdmissionGate()

	if err := g.Validate(mustTx(t, testSender, testRecipient, 10, 1, 100)); err != nil {
		t.Fatalf("first tx should be accepted: %v", err)
	}
	if err := g.Validate(mustTx(t, testSender, testRecipient, 10, 1, 200)); err != nil {
		t.Fatalf("second tx with higher sequence should be accepted: %v", err)
	}
}

// TestAdmissionGateRejectsReplay mirrors rejecting a replayed/stale sequence
// (100 → 200 → 50 must reject the 50).
func TestAdmissionGateRejectsReplay(t *testing.T) {
	g := NewDefaultAdmissionGate()
	if err := g.Validate(mustTx(t, testSender, testRecipient, 10, 1, 100)); err != nil {
		t.Fatal(err)
	}
	if err := g.Validate(mustTx(t, testSender, testRecipient, 10, 1, 200)); err != nil {
		t.Fatal(err)
	}
	if err := g.Validate(mustTx(t, testSender, testRecipient, 10, 1, 50)); err == nil {
		t.Error("expected replay rejection for sequence 50 after 100 and 200")
	}
}

// TestAdmissionGateRejectsDuplicateID rejects two transactions sharing an ID.
func TestAdmissionGateRejectsDuplicateID(t *testing.T) {
	g := NewDefaultAdmissionGate()
	tx := mustTx(t, testSender, testRecipient, 10, 1, 100)
	if err := g.Validate(tx); err != nil {
		t.Fatal(err)
	}
	dup := mustTx(t, testSender, testRecipient, 20, 1, 300)
	dup.ID = tx.ID
	if err := g.Validate(dup); err == nil {
		t.Error("expected duplicate id rejection")
	}
}

// TestAdmissionGateRejectsLowFee checks the configured minimum fee.
func TestAdmissionGateRejectsLowFee(t *testing.T) {
	g := NewAdmissionGate(AdmissionConfig{
		MinAddressLength: 10, MaxAddressLength: 64, MinFee: 5,
		MaxPendingPerSender: 10, SeenIDCap: 100,
	})
	tx := mustTx(t, testSender, testRecipient, 10, 1, 100)
	if err := g.Validate(tx); err == nil {
		t.Error("expected rejection for fee below minimum")
	}
}

// TestAdmissionGatePendingCap enforces the per-sender pending-transaction cap.
func TestAdmissionGatePendingCap(t *testing.T) {
	g := NewAdmissionGate(AdmissionConfig{
		MinAddressLength: 10, MaxAddressLength: 64, MinFee: 1,
		MaxPendingPerSender: 2, SeenIDCap: 100,
	})
	for i := int64(1); i <= 2; i++ {
		if err := g.Validate(mustTx(t, testSender, testRecipient, 1, 1, i)); err != nil {
			t.Fatalf("tx %d should be accepted: %v", i, err)
		}
	}
	if err := g.Validate(mustTx(t, testSender, testRecipient, 1, 1, 3)); err == nil {
		t.Error("expected pending-cap rejection")
	}
	g.Release(testSender)
	if err := g.Validate(mustTx(t, testSender, testRecipient, 1, 1, 3)); err != nil {
		t.Errorf("after release, tx should be accepted: %v", err)
	}
}
