package wallet

import (
	"github.com/tolelom/slotchain/core"
	"github.com/tolelom/slotchain/crypto"
)

// Wallet holds a key pair and provides transaction-building helpers.
type Wallet struct {
	priv crypto.PrivateKey
	pub  crypto.PublicKey
}

// New creates a Wallet from an existing private key.
func New(priv crypto.PrivateKey) *Wallet {
	return &Wallet{priv: priv, pub: priv.Public()}
}

// Generate creates a Wallet with a freshly generated key pair.
func Generate() (*Wallet, error) {
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return New(priv), nil
}

// PrivKey returns the raw private key (handle with care).
func (w *Wallet) PrivKey() crypto.PrivateKey {
	return w.priv
}

// PubKey returns the hex-encoded ed25519 public key (used as "from" address).
func (w *Wallet) PubKey() string {
	return w.pub.Hex()
}

// Address returns the short human-readable address (first 20 bytes of SHA-256(pubkey)).
func (w *Wallet) Address() string {
	return w.pub.Address()
}

// Transfer creates a signed transfer transaction. seq is the sender's next
// sequence number; it must be strictly greater than the last sequence the
// admission gate accepted for this sender.
func (w *Wallet) Transfer(to string, amount, fee uint64, seq int64) (*core.Transaction, error) {
	tx, err := core.NewTransaction(w.pub.Hex(), to, amount, fee, seq, nil)
	if err != nil {
		return nil, err
	}
	tx.Sign(w.priv)
	return tx, nil
}
