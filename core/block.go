package core

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/tolelom/slotchain/crypto"
)

// GenesisParentHash is the all-zero parent hash used by the genesis block
// (32 zero bytes, 64 hex chars).
var GenesisParentHash = strings.Repeat("0", 64)

// Block is a proposed unit of the chain: a slot-scheduled, proof-of-work-sealed
// header plus the ordered hashes of the transactions it includes.
type Block struct {
	Height       uint64   `json:"height"`
	Slot         uint64   `json:"slot"`
	Timestamp    int64    `json:"timestamp"`
	ParentHash   string   `json:"parent_hash"`
	Hash         string   `json:"hash"`
	Proposer     string   `json:"proposer"` // proposer's hex ed25519 pubkey
	Signature    string   `json:"signature"`
	Transactions []string `json:"transactions"` // ordered transaction hashes
	Nonce        uint64   `json:"nonce"`
	Difficulty   uint8    `json:"difficulty"`
}

// MerkleRoot returns a deterministic root hash over an ordered sequence of
// transaction hashes. Each entry is length-prefixed (4-byte big-endian) so
// that no two distinct sequences can collide on byte concatenation alone.
func MerkleRoot(txHashes []string) string {
	if len(txHashes) == 0 {
		return crypto.Hash([]byte("empty"))
	}
	var buf bytes.Buffer
	var lenBuf [4]byte
	for _, h := range txHashes {
		b := []byte(h)
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
		buf.Write(lenBuf[:])
		buf.Write(b)
	}
	return crypto.Hash(buf.Bytes())
}

// ComputeHash returns H(height‖slot‖timestamp‖parent_hash‖proposer‖merkle(transactions)‖nonce).
func (b *Block) ComputeHash() string {
	var buf bytes.Buffer
	var u64 [8]byte

	binary.BigEndian.PutUint64(u64[:], b.Height)
	buf.Write(u64[:])
	binary.BigEndian.PutUint64(u64[:], b.Slot)
	buf.Write(u64[:])
	binary.BigEndian.PutUint64(u64[:], uint64(b.Timestamp))
	buf.Write(u64[:])
	buf.WriteString(b.ParentHash)
	buf.WriteString(b.Proposer)
	buf.WriteString(MerkleRoot(b.Transactions))
	binary.BigEndian.PutUint64(u64[:], b.Nonce)
	buf.Write(u64[:])

	return crypto.Hash(buf.Bytes())
}

// SetNonce sets the block's nonce candidate; used by the mining engine's
// search loop, which calls ComputeHash again after each SetNonce.
func (b *Block) SetNonce(nonce uint64) {
	b.Nonce = nonce
}

// IsGenesis reports whether b is a genesis block (height 0, zero parent hash).
func (b *Block) IsGenesis() bool {
	return b.Height == 0 && b.ParentHash == GenesisParentHash
}

// Sign recomputes Hash and signs it with the proposer's private key.
func (b *Block) Sign(priv crypto.PrivateKey) {
	b.Hash = b.ComputeHash()
	b.Signature = crypto.Sign(priv, []byte(b.Hash))
}

// VerifySignature checks that the proposer's signature covers the stored
// hash and that the stored hash matches the recomputed one.
func (b *Block) VerifySignature(pub crypto.PublicKey) error {
	if computed := b.ComputeHash(); b.Hash != computed {
		return fmt.Errorf("block hash mismatch: stored %s computed %s", b.Hash, computed)
	}
	return crypto.Verify(pub, []byte(b.Hash), b.Signature)
}

// NewBlock builds an unsigned, unmined block. The caller (the mining engine)
// is responsible for searching for a Nonce satisfying Difficulty and the
// proposer is responsible for signing it afterward.
func NewBlock(height, slot uint64, timestamp int64, parentHash, proposer string, txHashes []string, difficulty uint8) *Block {
	return &Block{
		Height:       height,
		Slot:         slot,
		Timestamp:    timestamp,
		ParentHash:   parentHash,
		Proposer:     proposer,
		Transactions: txHashes,
		Difficulty:   difficulty,
	}
}
