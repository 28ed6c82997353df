// Package indexer maintains a secondary index over committed transactions
// so RPC clients can query transaction history by address without scanning
// the full chain.
package indexer

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/tolelom/slotchain/core"
	"github.com/tolelom/slotchain/events"
	"github.com/tolelom/slotchain/storage"
)

const prefixAddressTxs = "idx:addr:tx:"

// Indexer subscribes to block-committed events and maintains, per address,
// the ordered list of transaction ids where that address appears as sender
// or recipient.
type Indexer struct {
	db      storage.DB
	emitter *events.Emitter
}

// New creates an Indexer backed by db and subscribes to block commits.
func New(db storage.DB, emitter *events.Emitter) *Indexer {
	idx := &Indexer{db: db, emitter: emitter}
	emitter.Subscribe(events.EventBlockCommitted, idx.onBlockCommitted)
	return idx
}

// GetTransactionsByAddress returns every transaction id in which address
// appeared as sender or recipient, oldest first.
func (idx *Indexer) GetTransactionsByAddress(address string) ([]string, error) {
	return idx.getList(prefixAddressTxs + address)
}

func (idx *Indexer) onBlockCommitted(ev events.Event) {
	txs, _ := ev.Data["transactions"].([]*core.Transaction)
	for _, tx := range txs {
		if tx.From != "" && tx.From != core.CoinbaseFrom {
			if err := idx.addToList(prefixAddressTxs+tx.From, tx.ID); err != nil {
				log.Printf("[indexer] index write failed (addr=%s tx=%s): %v", tx.From, tx.ID, err)
			}
		}
		if tx.To != "" {
			if err := idx.addToList(prefixAddressTxs+tx.To, tx.ID); err != nil {
				log.Printf("[indexer] index write failed (addr=%s tx=%s): %v", tx.To, tx.ID, err)
			}
		}
	}
}

// ---- list helpers ----

func (idx *Indexer) getList(key string) ([]string, error) {
	data, err := idx.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, nil // empty list
		}
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("indexer unmarshal: %w", err)
	}
	return ids, nil
}

func (idx *Indexer) addToList(key, value string) error {
	ids, err := idx.getList(key)
	if err != nil {
		return fmt.Errorf("read list: %w", err)
	}
	for _, id := range ids {
		if id == value {
			return nil // already present
		}
	}
	ids = append(ids, value)
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return idx.db.Set([]byte(key), data)
}
