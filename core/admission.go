package core

import (
	"container/list"
	"fmt"
	"sync"
)

// AdmissionConfig holds the gate's configurable bounds.
type AdmissionConfig struct {
	MinAddressLength int
	MaxAddressLength int
	MinFee           uint64
	MaxPendingPerSender uint32
	SeenIDCap        int
}

// DefaultAdmissionConfig returns the spec-mandated defaults: address length
// 26-64, minimum fee 1, max 1000 pending transactions per sender, and a
// 100,000-entry seen-transaction-id cap.
func DefaultAdmissionConfig() AdmissionConfig {
	return AdmissionConfig{
		MinAddressLength:    26,
		MaxAddressLength:    64,
		MinFee:              1,
		MaxPendingPerSender: 1000,
		SeenIDCap:           100_000,
	}
}

type senderState struct {
	lastSequence  int64
	pendingCount  uint32
}

// AdmissionGate is the pre-mempool check every transaction must pass: format,
// duplicate-id rejection, amount/fee bounds, address shape, per-sender
// sequence monotonicity (replay prevention), and a pending-count cap per
// sender.
type AdmissionGate struct {
	mu       sync.Mutex
	cfg      AdmissionConfig
	senders  map[string]*senderState
	seenIDs  map[string]*list.Element
	seenOrder *list.List // front = oldest insertion
}

// NewAdmissionGate creates a gate with cfg.
func NewAdmissionGate(cfg AdmissionConfig) *AdmissionGate {
	return &AdmissionGate{
		cfg:       cfg,
		senders:   make(map[string]*senderState),
		seenIDs:   make(map[string]*list.Element),
		seenOrder: list.New(),
	}
}

// NewDefaultAdmissionGate creates a gate using DefaultAdmissionConfig.
func NewDefaultAdmissionGate() *AdmissionGate {
	return NewAdmissionGate(DefaultAdmissionConfig())
}

// Validate runs tx through the gate's six-step check, in order, and records
// its acceptance (sequence advance, pending-count increment, seen-id insert)
// only once every step has passed.
func (g *AdmissionGate) Validate(tx *Transaction) error {
	if err := validateFormat(tx); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, seen := g.seenIDs[tx.ID]; seen {
		return fmt.Errorf("duplicate transaction id %s", tx.ID)
	}
	if err := g.validateAmountFee(tx); err != nil {
		return err
	}
	if err := g.validateAddressShape(tx); err != nil {
		return err
	}

	st, ok := g.senders[tx.From]
	if ok && tx.Timestamp <= st.lastSequence {
		return fmt.Errorf("replay detected: sequence %d is not greater than last accepted sequence %d", tx.Timestamp, st.lastSequence)
	}
	if ok && st.pendingCount >= g.cfg.MaxPendingPerSender {
		return fmt.Errorf("sender %s has reached the pending transaction limit (%d)", tx.From, g.cfg.MaxPendingPerSender)
	}

	if !ok {
		st = &senderState{}
		g.senders[tx.From] = st
	}
	st.lastSequence = tx.Timestamp
	st.pendingCount++

	g.rememberSeenID(tx.ID)
	return nil
}

// Release decrements the sender's pending count, called once a transaction
// leaves the mempool (mined into a block or evicted).
func (g *AdmissionGate) Release(from string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if st, ok := g.senders[from]; ok && st.pendingCount > 0 {
		st.pendingCount--
	}
}

func (g *AdmissionGate) rememberSeenID(id string) {
	el := g.seenOrder.PushBack(id)
	g.seenIDs[id] = el
	for g.seenOrder.Len() > g.cfg.SeenIDCap {
		oldest := g.seenOrder.Front()
		if oldest == nil {
			break
		}
		g.seenOrder.Remove(oldest)
		delete(g.seenIDs, oldest.Value.(string))
	}
}

func validateFormat(tx *Transaction) error {
	if tx.ID == "" {
		return fmt.Errorf("missing transaction id")
	}
	if tx.From == "" {
		return fmt.Errorf("missing sender address")
	}
	if !tx.IsCoinbase() && tx.From == tx.To {
		return ErrSameSenderRecipient
	}
	return nil
}

func (g *AdmissionGate) validateAmountFee(tx *Transaction) error {
	if tx.IsCoinbase() {
		return nil
	}
	if tx.Amount == 0 {
		return fmt.Errorf("amount must be greater than zero")
	}
	if tx.Fee < g.cfg.MinFee {
		return fmt.Errorf("fee %d is below the minimum %d", tx.Fee, g.cfg.MinFee)
	}
	return nil
}

func (g *AdmissionGate) validateAddressShape(tx *Transaction) error {
	if tx.IsCoinbase() {
		return nil
	}
	if len(tx.From) < g.cfg.MinAddressLength || len(tx.From) > g.cfg.MaxAddressLength {
		return fmt.Errorf("sender address length %d out of bounds [%d,%d]", len(tx.From), g.cfg.MinAddressLength, g.cfg.MaxAddressLength)
	}
	if len(tx.To) < g.cfg.MinAddressLength || len(tx.To) > g.cfg.MaxAddressLength {
		return fmt.Errorf("recipient address length %d out of bounds [%d,%d]", len(tx.To), g.cfg.MinAddressLength, g.cfg.MaxAddressLength)
	}
	return nil
}

// Stats summarizes the gate's current bookkeeping load.
type Stats struct {
	TrackedSenders           int
	SeenTransactions         int
	AveragePendingPerSender  float64
}

// GetStats returns a snapshot of the gate's tracked-sender and seen-id state.
func (g *AdmissionGate) GetStats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	var totalPending uint64
	for _, st := range g.senders {
		totalPending += uint64(st.pendingCount)
	}
	avg := 0.0
	if len(g.senders) > 0 {
		avg = float64(totalPending) / float64(len(g.senders))
	}
	return Stats{
		TrackedSenders:          len(g.senders),
		SeenTransactions:        len(g.seenIDs),
		AveragePendingPerSender: avg,
	}
}
