package core

import (
	"testing"

	"github.com/tolelom/slotchain/crypto"
)

func signedTx(t *testing.T, from, to string, amount, fee uint64, seq int64) (*Transaction, crypto.PrivateKey) {
	t.Helper()
	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	sender := from
	if sender == "" {
		sender = pub.Hex()
	}
	tx, err := NewTransaction(sender, to, amount, fee, seq, nil)
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}
	tx.Sign(priv)
	return tx, priv
}

// TestTransactionSignVerify ensures transaction signing and verification work.
func TestTransactionSignVerify(t *testing.T) {
	tx, _ := signedTx(t, "", "deadbeefdeadbeefdeadbeefdeadbeefdeadbeef", 100, 1, 1)
	if tx.ID == "" {
		t.Error("tx ID should be set after signing")
	}
	if err := tx.Verify(); err != nil {
		t.Errorf("Verify failed: %v", err)
	}

	tx.Fee = 999 // tamper after signing
	if err := tx.Verify(); err == nil {
		t.Error("tampered tx should fail verification")
	}
}

// TestNewTransactionRejectsZeroFee checks the fee>0 invariant for
// non-coinbase transactions.
func TestNewTransactionRejectsZeroFee(t *testing.T) {
	_, err := NewTransaction("a", "b", 100, 0, 1, nil)
	if err != ErrZeroFee {
		t.Errorf("expected ErrZeroFee, got %v", err)
	}
}

// TestNewTransactionRejectsSameSenderRecipient checks the from != to invariant.
func TestNewTransactionRejectsSameSenderRecipient(t *testing.T) {
	_, err := NewTransaction("same", "same", 100, 1, 1, nil)
	if err != ErrSameSenderRecipient {
		t.Errorf("expected ErrSameSenderRecipient, got %v", err)
	}
}

// TestCoinbaseTransactionExemptions verifies that a coinbase transaction is
// recognised as such and passes Verify without a signature.
func TestCoinbaseTransactionExemptions(t *testing.T) {
	cb := NewCoinbaseTransaction("proposer-pubkey-hex", 50, 1)
	if !cb.IsCoinbase() {
		t.Fatal("expected coinbase transaction")
	}
	if err := cb.Verify(); err != nil {
		t.Errorf("coinbase should verify trivially: %v", err)
	}
}
