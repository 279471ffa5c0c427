package receipt

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/trustrail/trustrail-core/pkg/chain"
)

// ChainTracker is the per-session serialization point for receipt
// generation. Receipts of one session must be issued strictly
// sequentially — each receipt's previous_hash is the prior receipt's
// chain hash — so Issue holds a per-session lock across the whole
// generate-and-advance step. Different sessions proceed in parallel.
type ChainTracker struct {
	mu       sync.Mutex
	sessions map[string]*sessionTail
	config   *TrackerConfig
}

// TrackerConfig configures session retention.
type TrackerConfig struct {
	// MaxSessions limits tracked sessions (0 = unlimited). When the
	// limit is hit, the least recently used session is dropped — its
	// chain can still be continued by passing PreviousHash explicitly.
	MaxSessions int

	// TTL expires idle sessions (0 = never).
	TTL time.Duration
}

// DefaultTrackerConfig returns sensible defaults.
func DefaultTrackerConfig() *TrackerConfig {
	return &TrackerConfig{
		MaxSessions: 10000,
		TTL:         24 * time.Hour,
	}
}

type sessionTail struct {
	mu        sync.Mutex
	lastHash  string
	length    int
	updatedAt time.Time
}

// NewChainTracker creates a tracker. A nil config means defaults.
func NewChainTracker(config *TrackerConfig) *ChainTracker {
	if config == nil {
		config = DefaultTrackerConfig()
	}
	return &ChainTracker{
		sessions: make(map[string]*sessionTail),
		config:   config,
	}
}

// NewSessionID mints a fresh session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// Tail returns the session's current chain position: (Genesis, 0) for an
// unknown session, otherwise the last chain hash and length.
func (t *ChainTracker) Tail(sessionID string) (string, int) {
	t.mu.Lock()
	tail, ok := t.sessions[sessionID]
	t.mu.Unlock()

	if !ok {
		return chain.Genesis, 0
	}

	tail.mu.Lock()
	defer tail.mu.Unlock()
	return tail.lastHash, tail.length
}

// Issue runs issueFn under the session's lock, handing it the chain
// position the next receipt must use, and advances the tail on success.
// Concurrent Issue calls for the same session serialize; no two receipts
// can claim the same chain_length.
func (t *ChainTracker) Issue(sessionID string, issueFn func(previousHash string, chainLength int) (*TrustReceipt, error)) (*TrustReceipt, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session_id is required", ErrInvalidInput)
	}

	tail := t.acquire(sessionID)
	tail.mu.Lock()
	defer tail.mu.Unlock()

	previous := tail.lastHash
	if previous == "" {
		previous = chain.Genesis
	}

	r, err := issueFn(previous, tail.length+1)
	if err != nil {
		return nil, err
	}

	tail.lastHash = r.Chain.ChainHash
	tail.length++
	tail.updatedAt = time.Now()

	return r, nil
}

// Forget drops a session's tail state.
func (t *ChainTracker) Forget(sessionID string) {
	t.mu.Lock()
	delete(t.sessions, sessionID)
	t.mu.Unlock()
}

// Sessions returns the number of tracked sessions.
func (t *ChainTracker) Sessions() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// acquire returns the tail for a session, creating it if needed and
// evicting stale or excess sessions first.
func (t *ChainTracker) acquire(sessionID string) *sessionTail {
	t.mu.Lock()
	defer t.mu.Unlock()

	if tail, ok := t.sessions[sessionID]; ok {
		return tail
	}

	now := time.Now()

	// Expire idle sessions
	if t.config.TTL > 0 {
		for id, tail := range t.sessions {
			if now.Sub(tail.updatedAt) > t.config.TTL {
				delete(t.sessions, id)
			}
		}
	}

	// Enforce max sessions (drop least recently used)
	if t.config.MaxSessions > 0 && len(t.sessions) >= t.config.MaxSessions {
		var oldestID string
		var oldestTime time.Time
		for id, tail := range t.sessions {
			if oldestID == "" || tail.updatedAt.Before(oldestTime) {
				oldestID = id
				oldestTime = tail.updatedAt
			}
		}
		if oldestID != "" {
			delete(t.sessions, oldestID)
		}
	}

	tail := &sessionTail{updatedAt: now}
	t.sessions[sessionID] = tail
	return tail
}
