package core

import (
	"testing"

	"github.com/tolelom/slotchain/crypto"
)

// TestBlockHash ensures that hashing a block is deterministic.
func TestBlockHash(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	block := NewBlock(1, 0, 1000, GenesisParentHash, pub.Hex(), nil, 0)
	block.Sign(priv)

	if block.Hash == "" {
		t.Error("hash should be set after signing")
	}
	if block.ComputeHash() != block.Hash {
		t.Error("ComputeHash() does not match stored hash")
	}
}

// TestBlockSignVerify ensures Sign/VerifySignature round-trip correctly and
// reject a tampered block.
func TestBlockSignVerify(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	block := NewBlock(1, 0, 1000, GenesisParentHash, pub.Hex(), []string{"a", "b"}, 0)
	block.Sign(priv)

	if err := block.VerifySignature(pub); err != nil {
		t.Errorf("valid block failed verification: %v", err)
	}

	block.Nonce = 42 // tamper after signing
	if err := block.VerifySignature(pub); err == nil {
		t.Error("tampered block should fail verification")
	}
}

// TestMerkleRootOrderSensitive ensures that reordering transaction hashes
// changes the root.
func TestMerkleRootOrderSensitive(t *testing.T) {
	a := MerkleRoot([]string{"tx1", "tx2"})
	b := MerkleRoot([]string{"tx2", "tx1"})
	if a == b {
		t.Error("merkle root should be sensitive to transaction order")
	}
}

// TestIsGenesis checks the genesis predicate against height and parent hash.
func TestIsGenesis(t *testing.T) {
	g := NewBlock(0, 0, 0, GenesisParentHash, "proposer", nil, 0)
	if !g.IsGenesis() {
		t.Error("expected genesis block")
	}
	nonGenesis := NewBlock(1, 1, 1, "somehash", "proposer", nil, 0)
	if nonGenesis.IsGenesis() {
		t.Error("expected non-genesis block")
	}
}
