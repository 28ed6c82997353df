package network

import "testing"

// TestSecurityManagerConnectionLimit checks the concurrent-connection cap.
func TestSecurityManagerConnectionLimit(t *testing.T) {
	m := NewSecurityManager(SecurityConfig{MaxConcurrentConnections: 1, MaxMessagesPerSecond: 10, MaxBytesPerSecond: 1000, MessageSizeLimit: 1000})
	if err := m.RegisterPeer("peer-a"); err != nil {
		t.Fatalf("first peer should be admitted: %v", err)
	}
	if err := m.RegisterPeer("peer-b"); err == nil {
		t.Error("expected second peer to be rejected at the connection limit")
	}
	m.UnregisterPeer("peer-a")
	if err := m.RegisterPeer("peer-b"); err != nil {
		t.Errorf("expected peer-b to be admitted after peer-a disconnects: %v", err)
	}
}

// TestSecurityManagerRateLimit checks the per-second message-count budget.
func TestSecurityManagerRateLimit(t *testing.T) {
	m := NewSecurityManager(SecurityConfig{MaxConcurrentConnections: 10, MaxMessagesPerSecond: 2, MaxBytesPerSecond: 1000, MessageSizeLimit: 1000})
	if err := m.CheckRateLimit("peer-a", 10); err != nil {
		t.Fatal(err)
	}
	if err := m.CheckRateLimit("peer-a", 10); err != nil {
		t.Fatal(err)
	}
	if err := m.CheckRateLimit("peer-a", 10); err == nil {
		t.Error("expected third message within the same window to be rate-limited")
	}
}

// TestSecurityManagerByteRateLimit checks the per-second byte budget.
func TestSecurityManagerByteRateLimit(t *testing.T) {
	m := NewSecurityManager(SecurityConfig{MaxConcurrentConnections: 10, MaxMessagesPerSecond: 100, MaxBytesPerSecond: 100, MessageSizeLimit: 1000})
	if err := m.CheckRateLimit("peer-a", 60); err != nil {
		t.Fatal(err)
	}
	if err := m.CheckRateLimit("peer-a", 60); err == nil {
		t.Error("expected byte rate limit to reject the second burst")
	}
}

// TestSecurityManagerMessageSizeLimit checks the size-limit rejection.
func TestSecurityManagerMessageSizeLimit(t *testing.T) {
	m := NewSecurityManager(SecurityConfig{MessageSizeLimit: 100})
	if err := m.ValidateMessageSize(50); err != nil {
		t.Errorf("50 bytes should be within limit: %v", err)
	}
	if err := m.ValidateMessageSize(200); err == nil {
		t.Error("expected rejection for message over the size limit")
	}
}

// TestSecurityManagerScoreAndBlacklist checks that repeated invalid messages
// push a peer toward blacklisted status, and that a manual blacklist is permanent.
func TestSecurityManagerScoreAndBlacklist(t *testing.T) {
	m := NewDefaultSecurityManager()
	m.RecordInvalidMessage("peer-a", 50)
	m.RecordInvalidMessage("peer-a", 50)
	stats, ok := m.GetPeerStats("peer-a")
	if !ok {
		t.Fatal("expected peer-a to be tracked")
	}
	if stats.Status() != StatusBlacklisted {
		t.Errorf("expected score of 0 to report blacklisted status, got %s (score %d)", stats.Status(), stats.Score)
	}

	m.BlacklistPeer("peer-b", "spam")
	if err := m.RegisterPeer("peer-b"); err == nil {
		t.Error("expected a blacklisted peer to be rejected on (re)connect")
	}
	if err := m.CheckRateLimit("peer-b", 1); err == nil {
		t.Error("expected a blacklisted peer to be rejected on rate check")
	}
}

// TestSecurityManagerRecordValidMessageCapsScore checks that a healthy peer's
// score never exceeds the maximum.
func TestSecurityManagerRecordValidMessageCapsScore(t *testing.T) {
	m := NewDefaultSecurityManager()
	for i := 0; i < 10; i++ {
		m.RecordValidMessage("peer-a", 10)
	}
	stats, _ := m.GetPeerStats("peer-a")
	if stats.Score != maxScore {
		t.Errorf("score: got %d want %d", stats.Score, maxScore)
	}
}
