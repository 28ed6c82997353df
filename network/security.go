// Package network implements peer transport and the DoS-protection layer
// every inbound connection and message passes through before being parsed.
package network

import (
	"fmt"
	"sync"
	"time"
)

// PeerStatus summarizes a peer's standing based on its current score.
type PeerStatus string

const (
	StatusTrusted    PeerStatus = "trusted"
	StatusNeutral    PeerStatus = "neutral"
	StatusSuspicious PeerStatus = "suspicious"
	StatusBlacklisted PeerStatus = "blacklisted"
)

const (
	initialScore = 100
	maxScore     = 100
)

func statusForScore(score int, blacklisted bool) PeerStatus {
	switch {
	case blacklisted || score <= 0:
		return StatusBlacklisted
	case score >= 80:
		return StatusTrusted
	case score >= 40:
		return StatusNeutral
	default:
		return StatusSuspicious
	}
}

// SecurityConfig holds the configurable DoS-protection limits.
type SecurityConfig struct {
	MaxConcurrentConnections int
	MaxMessagesPerSecond     int
	MaxBytesPerSecond        int64
	MessageSizeLimit         int64
}

// DefaultSecurityConfig returns the spec-mandated defaults: 100 concurrent
// connections, 100 messages/sec/peer, 10MB/sec/peer, 10MB max message size.
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		MaxConcurrentConnections: 100,
		MaxMessagesPerSecond:     100,
		MaxBytesPerSecond:        10_000_000,
		MessageSizeLimit:         10_000_000,
	}
}

// PeerRecord tracks a single peer's traffic and reputation.
type PeerRecord struct {
	Address               string
	Score                 int
	MessagesReceived       uint64
	MessagesRejected       uint64
	bytesThisSecond        int64
	messagesThisSecond     int
	windowStart            time.Time
	blacklisted            bool
	blacklistReason        string
}

// Status returns the peer's current PeerStatus derived from its score.
func (p *PeerRecord) Status() PeerStatus {
	return statusForScore(p.Score, p.blacklisted)
}

// SecurityManager enforces connection limits, per-peer rate/size limits, and
// a reputation-scoring blacklist, independent of and ahead of message
// parsing.
type SecurityManager struct {
	mu                sync.Mutex
	config            SecurityConfig
	activeConnections int
	peers             map[string]*PeerRecord
}

// NewSecurityManager creates a manager with the given config.
func NewSecurityManager(cfg SecurityConfig) *SecurityManager {
	return &SecurityManager{config: cfg, peers: make(map[string]*PeerRecord)}
}

// NewDefaultSecurityManager creates a manager using DefaultSecurityConfig.
func NewDefaultSecurityManager() *SecurityManager {
	return NewSecurityManager(DefaultSecurityConfig())
}

// RegisterPeer admits addr as a new connection, failing if the concurrent
// connection limit is already reached or addr is blacklisted.
func (m *SecurityManager) RegisterPeer(addr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.peers[addr]; ok && p.Status() == StatusBlacklisted {
		return fmt.Errorf("peer %s is blacklisted: %s", addr, p.blacklistReason)
	}
	if m.activeConnections >= m.config.MaxConcurrentConnections {
		return fmt.Errorf("connection limit reached (%d)", m.config.MaxConcurrentConnections)
	}
	if _, ok := m.peers[addr]; !ok {
		m.peers[addr] = &PeerRecord{Address: addr, Score: initialScore, windowStart: time.Now()}
	}
	m.activeConnections++
	return nil
}

// UnregisterPeer releases addr's connection slot.
func (m *SecurityManager) UnregisterPeer(addr string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activeConnections > 0 {
		m.activeConnections--
	}
}

// ValidateMessageSize fails if size exceeds the configured message size limit.
func (m *SecurityManager) ValidateMessageSize(size int64) error {
	if size > m.config.MessageSizeLimit {
		return fmt.Errorf("message size %d exceeds limit %d", size, m.config.MessageSizeLimit)
	}
	return nil
}

// CheckRateLimit fails if addr is blacklisted or has exceeded its
// per-second message-count or byte-rate budget, resetting the window once a
// full second has elapsed.
func (m *SecurityManager) CheckRateLimit(addr string, bytes int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.peers[addr]
	if !ok {
		p = &PeerRecord{Address: addr, Score: initialScore, windowStart: time.Now()}
		m.peers[addr] = p
	}
	if p.Status() == StatusBlacklisted {
		return fmt.Errorf("peer %s is blacklisted: %s", addr, p.blacklistReason)
	}

	now := time.Now()
	if now.Sub(p.windowStart) >= time.Second {
		p.windowStart = now
		p.messagesThisSecond = 0
		p.bytesThisSecond = 0
	}

	if p.messagesThisSecond+1 > m.config.MaxMessagesPerSecond {
		return fmt.Errorf("rate limit exceeded for %s: %d messages/second", addr, m.config.MaxMessagesPerSecond)
	}
	if p.bytesThisSecond+bytes > m.config.MaxBytesPerSecond {
		return fmt.Errorf("byte rate limit exceeded for %s: %d bytes/second", addr, m.config.MaxBytesPerSecond)
	}

	p.messagesThisSecond++
	p.bytesThisSecond += bytes
	p.MessagesReceived++
	return nil
}

// RecordValidMessage increments addr's score, capped at maxScore.
func (m *SecurityManager) RecordValidMessage(addr string, bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.ensurePeer(addr)
	p.Score++
	if p.Score > maxScore {
		p.Score = maxScore
	}
}

// RecordInvalidMessage decrements addr's score by penalty and counts a
// rejection.
func (m *SecurityManager) RecordInvalidMessage(addr string, penalty int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.ensurePeer(addr)
	p.Score -= penalty
	p.MessagesRejected++
}

func (m *SecurityManager) ensurePeer(addr string) *PeerRecord {
	p, ok := m.peers[addr]
	if !ok {
		p = &PeerRecord{Address: addr, Score: initialScore, windowStart: time.Now()}
		m.peers[addr] = p
	}
	return p
}

// BlacklistPeer forces addr's status to blacklisted permanently; no future
// call to RegisterPeer or CheckRateLimit for addr will succeed.
func (m *SecurityManager) BlacklistPeer(addr, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.ensurePeer(addr)
	p.blacklisted = true
	p.blacklistReason = reason
	p.Score = 0
}

// GetPeerStats returns a snapshot of addr's record, if known.
func (m *SecurityManager) GetPeerStats(addr string) (PeerRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.peers[addr]
	if !ok {
		return PeerRecord{}, false
	}
	return *p, true
}

// GetAllPeerStats returns a snapshot of every known peer's record.
func (m *SecurityManager) GetAllPeerStats() []PeerRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PeerRecord, 0, len(m.peers))
	for _, p := range m.peers {
		out = append(out, *p)
	}
	return out
}

// ActiveConnections returns the current number of registered connections.
func (m *SecurityManager) ActiveConnections() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeConnections
}
