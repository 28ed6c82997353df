package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tolelom/slotchain/core"
)

const prefixAccount = "acct:"

type balanceSnapshot struct {
	dirty   map[string][]byte
	deleted map[string]bool
}

// BalanceStore implements core.State on top of a DB with an in-memory write
// buffer and snapshot/rollback, so a tentative block application can be
// rolled back if the block turns out invalid. Unlike the teacher's
// StateDB, it tracks only account balances: spec's Block carries no
// state_root field, so no deterministic world-state root needs computing.
type BalanceStore struct {
	db        DB
	dirty     map[string][]byte
	deleted   map[string]bool
	snapshots []balanceSnapshot
}

// NewBalanceStore creates a BalanceStore backed by db.
func NewBalanceStore(db DB) *BalanceStore {
	return &BalanceStore{
		db:      db,
		dirty:   make(map[string][]byte),
		deleted: make(map[string]bool),
	}
}

func (s *BalanceStore) get(key string) ([]byte, error) {
	if s.deleted[key] {
		return nil, core.ErrNotFound
	}
	if v, ok := s.dirty[key]; ok {
		return v, nil
	}
	return s.db.Get([]byte(key))
}

func (s *BalanceStore) set(key string, val []byte) {
	delete(s.deleted, key)
	s.dirty[key] = val
}

// GetAccount returns the account at address, or a fresh zero-balance
// account if none exists yet.
func (s *BalanceStore) GetAccount(address string) (*core.Account, error) {
	data, err := s.get(prefixAccount + address)
	if errors.Is(err, core.ErrNotFound) {
		return &core.Account{Address: address}, nil
	}
	if err != nil {
		return nil, err
	}
	var acc core.Account
	if err := json.Unmarshal(data, &acc); err != nil {
		return nil, fmt.Errorf("unmarshal account %s: %w", address, err)
	}
	return &acc, nil
}

// SetAccount writes acc into the pending write buffer.
func (s *BalanceStore) SetAccount(acc *core.Account) error {
	data, err := json.Marshal(acc)
	if err != nil {
		return fmt.Errorf("marshal account %s: %w", acc.Address, err)
	}
	s.set(prefixAccount+acc.Address, data)
	return nil
}

// Snapshot saves the current write buffer and returns a snapshot id.
func (s *BalanceStore) Snapshot() (int, error) {
	snap := balanceSnapshot{
		dirty:   make(map[string][]byte, len(s.dirty)),
		deleted: make(map[string]bool, len(s.deleted)),
	}
	for k, v := range s.dirty {
		cp := make([]byte, len(v))
		copy(cp, v)
		snap.dirty[k] = cp
	}
	for k, v := range s.deleted {
		snap.deleted[k] = v
	}
	s.snapshots = append(s.snapshots, snap)
	return len(s.snapshots) - 1, nil
}

// RevertToSnapshot restores the write buffer to a previously saved snapshot.
func (s *BalanceStore) RevertToSnapshot(id int) error {
	if id < 0 || id >= len(s.snapshots) {
		return fmt.Errorf("invalid snapshot id %d", id)
	}
	snap := s.snapshots[id]

	dirty := make(map[string][]byte, len(snap.dirty))
	for k, v := range snap.dirty {
		cp := make([]byte, len(v))
		copy(cp, v)
		dirty[k] = cp
	}
	deleted := make(map[string]bool, len(snap.deleted))
	for k, v := range snap.deleted {
		deleted[k] = v
	}

	s.dirty = dirty
	s.deleted = deleted
	s.snapshots = s.snapshots[:id]
	return nil
}

// Commit atomically flushes the write buffer to the underlying DB and clears it.
func (s *BalanceStore) Commit() error {
	batch := s.db.NewBatch()
	for k, v := range s.dirty {
		batch.Set([]byte(k), v)
	}
	for k := range s.deleted {
		batch.Delete([]byte(k))
	}
	if err := batch.Write(); err != nil {
		return err
	}
	s.dirty = make(map[string][]byte)
	s.deleted = make(map[string]bool)
	s.snapshots = nil
	return nil
}
