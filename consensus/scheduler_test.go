package consensus

import "testing"

// TestSlotSchedulerRoundRobin checks deterministic round-robin proposer
// assignment over a 3-validator set.
func TestSlotSchedulerRoundRobin(t *testing.T) {
	s := NewSlotScheduler(1, []string{"v1", "v2", "v3"}, 1000)
	want := []string{"v1", "v2", "v3", "v1"}
	for i, w := range want {
		if got := s.GetProposer(uint64(i)); got != w {
			t.Errorf("GetProposer(%d): got %s want %s", i, got, w)
		}
	}
}

// TestSlotSchedulerEmptyValidatorSet checks the fallback sentinel.
func TestSlotSchedulerEmptyValidatorSet(t *testing.T) {
	s := NewSlotScheduler(1, nil, 1000)
	if got := s.GetProposer(0); got != unknownProposer {
		t.Errorf("got %s want %s", got, unknownProposer)
	}
}

// TestSlotSchedulerTimestampToSlot checks the timestamp/slot conversion.
func TestSlotSchedulerTimestampToSlot(t *testing.T) {
	s := NewSlotScheduler(1, []string{"v1"}, 1000)
	if got := s.TimestampToSlot(1050); got != 50 {
		t.Errorf("TimestampToSlot(1050): got %d want 50", got)
	}
	if got := s.GetCurrentSlot(500); got != 0 {
		t.Errorf("timestamps before genesis should saturate at slot 0, got %d", got)
	}
}

// TestSlotSchedulerSlotWindow checks slot start/end bounds and membership.
func TestSlotSchedulerSlotWindow(t *testing.T) {
	s := NewSlotScheduler(5, []string{"v1", "v2"}, 1000)
	slot := s.GetSlot(3)
	if slot.StartTime != 1015 || slot.EndTime != 1020 {
		t.Errorf("slot 3 window: got [%d, %d) want [1015, 1020)", slot.StartTime, slot.EndTime)
	}
	if !slot.ContainsTimestamp(1017) {
		t.Error("expected 1017 to fall within slot 3")
	}
	if slot.ContainsTimestamp(1020) {
		t.Error("end time is exclusive")
	}
	if !s.ValidateBlockSlot(3, 1015) {
		t.Error("expected slot start to validate")
	}
	if s.ValidateBlockSlot(3, 1020) {
		t.Error("expected slot end to be rejected")
	}
}
