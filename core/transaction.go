package core

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tolelom/slotchain/crypto"
)

// ErrZeroFee is returned when a non-coinbase transaction carries no fee.
var ErrZeroFee = errors.New("fee must be greater than zero for a user transaction")

// ErrSameSenderRecipient is returned when From equals To on a non-coinbase transfer.
var ErrSameSenderRecipient = errors.New("from and to must differ")

// CoinbaseFrom is the sentinel sender address for block-reward transactions,
// which are exempt from the fee and from/to invariants.
const CoinbaseFrom = "coinbase"

// Transaction is the atomic unit of work on the chain. From/To hold
// hex-encoded ed25519 public keys. Timestamp doubles as the sender's
// monotonic sequence number for replay protection at the admission gate.
type Transaction struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Amount    uint64 `json:"amount"`
	Fee       uint64 `json:"fee"`
	Timestamp int64  `json:"timestamp"`
	Signature string `json:"signature"`
	Data      []byte `json:"data,omitempty"`
}

// signingBody holds the fields covered by the signature and the derived ID.
type signingBody struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Amount    uint64 `json:"amount"`
	Fee       uint64 `json:"fee"`
	Timestamp int64  `json:"timestamp"`
	Data      []byte `json:"data,omitempty"`
}

// Hash returns a deterministic hash of the transaction, sans Signature and ID.
// Returns an empty string only if marshalling fails, which cannot happen for
// a well-formed Transaction.
func (tx *Transaction) Hash() string {
	body := signingBody{
		From:      tx.From,
		To:        tx.To,
		Amount:    tx.Amount,
		Fee:       tx.Fee,
		Timestamp: tx.Timestamp,
		Data:      tx.Data,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return ""
	}
	return crypto.Hash(data)
}

// Sign computes the signature and sets ID to the transaction hash.
func (tx *Transaction) Sign(priv crypto.PrivateKey) {
	hash := tx.Hash()
	tx.ID = hash
	tx.Signature = crypto.Sign(priv, []byte(hash))
}

// Verify checks the signature against From, which must be a valid ed25519
// public key hex string.
func (tx *Transaction) Verify() error {
	if tx.From == "" {
		return errors.New("missing from field")
	}
	if tx.From == CoinbaseFrom {
		return nil // coinbase transactions are synthesized by the proposer, never signed
	}
	pub, err := crypto.PubKeyFromHex(tx.From)
	if err != nil {
		return fmt.Errorf("invalid from (must be ed25519 pubkey hex): %w", err)
	}
	return crypto.Verify(pub, []byte(tx.Hash()), tx.Signature)
}

// IsCoinbase reports whether tx mints a block reward rather than transferring
// value between two existing accounts.
func (tx *Transaction) IsCoinbase() bool {
	return tx.From == CoinbaseFrom
}

// NewTransaction builds an unsigned transaction. seq is the sender's next
// sequence number (used as Timestamp) for replay protection; callers
// typically pass their own monotonic counter or a wall-clock timestamp
// greater than any sequence previously used.
func NewTransaction(from, to string, amount, fee uint64, seq int64, data []byte) (*Transaction, error) {
	if from != CoinbaseFrom {
		if from == to {
			return nil, ErrSameSenderRecipient
		}
		if fee == 0 {
			return nil, ErrZeroFee
		}
	}
	return &Transaction{
		From:      from,
		To:        to,
		Amount:    amount,
		Fee:       fee,
		Timestamp: seq,
		Data:      data,
	}, nil
}

// NewCoinbaseTransaction builds the unsigned block-reward transaction that
// credits a proposer with the block subsidy plus their share of fees burned
// from the block's transactions.
func NewCoinbaseTransaction(proposer string, amount uint64, seq int64) *Transaction {
	return &Transaction{
		From:      CoinbaseFrom,
		To:        proposer,
		Amount:    amount,
		Timestamp: seq,
	}
}
