package consensus

import "sync"

// Slot describes one fixed-duration consensus window and its deterministically
// assigned proposer.
type Slot struct {
	Number    uint64 `json:"number"`
	Proposer  string `json:"proposer"`
	StartTime int64  `json:"start_time"`
	EndTime   int64  `json:"end_time"`
}

// ContainsTimestamp reports whether timestamp falls within [StartTime, EndTime).
func (s Slot) ContainsTimestamp(timestamp int64) bool {
	return timestamp >= s.StartTime && timestamp < s.EndTime
}

// Duration returns the slot's length in seconds.
func (s Slot) Duration() int64 {
	return s.EndTime - s.StartTime
}

// unknownProposer is returned when the validator set is empty.
const unknownProposer = "unknown"

// SlotScheduler deterministically assigns a proposer to every slot number by
// round-robin over the configured validator set, relative to a fixed genesis
// time and slot duration.
type SlotScheduler struct {
	mu            sync.Mutex
	slotDuration  int64
	validators    []string
	genesisTime   int64
	slotCache     map[uint64]Slot
}

// NewSlotScheduler creates a scheduler. slotDuration is in seconds.
func NewSlotScheduler(slotDuration int64, validators []string, genesisTime int64) *SlotScheduler {
	vs := make([]string, len(validators))
	copy(vs, validators)
	return &SlotScheduler{
		slotDuration: slotDuration,
		validators:   vs,
		genesisTime:  genesisTime,
		slotCache:    make(map[uint64]Slot),
	}
}

// GetProposer returns the validator assigned to slotNumber, or "unknown" if
// the validator set is empty.
func (s *SlotScheduler) GetProposer(slotNumber uint64) string {
	if len(s.validators) == 0 {
		return unknownProposer
	}
	return s.validators[slotNumber%uint64(len(s.validators))]
}

// GetSlot returns (and caches) the Slot for slotNumber.
func (s *SlotScheduler) GetSlot(slotNumber uint64) Slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slot, ok := s.slotCache[slotNumber]; ok {
		return slot
	}
	start, end := s.slotToTimestamps(slotNumber)
	slot := Slot{
		Number:    slotNumber,
		Proposer:  s.GetProposer(slotNumber),
		StartTime: start,
		EndTime:   end,
	}
	s.slotCache[slotNumber] = slot
	return slot
}

func (s *SlotScheduler) slotToTimestamps(slotNumber uint64) (int64, int64) {
	start := s.genesisTime + int64(slotNumber)*s.slotDuration
	return start, start + s.slotDuration
}

// SlotToTimestamps returns the [start, end) UNIX-timestamp range for slotNumber.
func (s *SlotScheduler) SlotToTimestamps(slotNumber uint64) (int64, int64) {
	return s.slotToTimestamps(slotNumber)
}

// GetCurrentSlot returns the slot number containing timestamp, saturating at
// 0 for any timestamp before genesis.
func (s *SlotScheduler) GetCurrentSlot(timestamp int64) uint64 {
	if timestamp < s.genesisTime {
		return 0
	}
	return uint64((timestamp - s.genesisTime) / s.slotDuration)
}

// TimestampToSlot is an alias for GetCurrentSlot.
func (s *SlotScheduler) TimestampToSlot(timestamp int64) uint64 {
	return s.GetCurrentSlot(timestamp)
}

// ValidateBlockSlot reports whether timestamp falls within slotNumber's window.
func (s *SlotScheduler) ValidateBlockSlot(slotNumber uint64, timestamp int64) bool {
	start, end := s.slotToTimestamps(slotNumber)
	return timestamp >= start && timestamp < end
}

// Validators returns the configured validator set.
func (s *SlotScheduler) Validators() []string {
	out := make([]string, len(s.validators))
	copy(out, s.validators)
	return out
}

// GenesisTime returns the scheduler's genesis time.
func (s *SlotScheduler) GenesisTime() int64 { return s.genesisTime }

// SlotDuration returns the scheduler's slot duration in seconds.
func (s *SlotScheduler) SlotDuration() int64 { return s.slotDuration }
