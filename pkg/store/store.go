// Package store provides the persistence collaborator for receipts: the
// engine itself has no storage side effects, callers hand finished
// receipts to a Store keyed by receipt id. Receipts are immutable, so a
// Store never updates — a duplicate id is rejected.
package store

import (
	"errors"
	"sort"
	"sync"

	"github.com/trustrail/trustrail-core/pkg/receipt"
)

// Common errors returned by this package.
var (
	ErrNotFound  = errors.New("receipt not found")
	ErrDuplicate = errors.New("receipt already stored")
)

// Store is the interface for receipt persistence.
type Store interface {
	// Put stores a receipt keyed by its id. Storing the same id twice
	// fails with ErrDuplicate — receipts are never overwritten.
	Put(r *receipt.TrustReceipt) error

	// Get retrieves a receipt by id.
	Get(id string) (*receipt.TrustReceipt, error)

	// ListBySession returns a session's receipts in chain order.
	ListBySession(sessionID string) ([]*receipt.TrustReceipt, error)

	// Last returns the session's receipt with the highest chain length,
	// i.e. the predecessor for the next receipt.
	Last(sessionID string) (*receipt.TrustReceipt, error)

	// All returns every stored receipt.
	All() ([]*receipt.TrustReceipt, error)
}

// MemoryStore is an in-process Store guarded by a RWMutex.
type MemoryStore struct {
	mu       sync.RWMutex
	byID     map[string]*receipt.TrustReceipt
	sessions map[string][]*receipt.TrustReceipt
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:     make(map[string]*receipt.TrustReceipt),
		sessions: make(map[string][]*receipt.TrustReceipt),
	}
}

// Put stores a receipt.
func (s *MemoryStore) Put(r *receipt.TrustReceipt) error {
	if r == nil || r.ID == "" {
		return errors.New("receipt must have an id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[r.ID]; exists {
		return ErrDuplicate
	}
	s.byID[r.ID] = r
	s.sessions[r.SessionID] = append(s.sessions[r.SessionID], r)
	return nil
}

// Get retrieves a receipt by id.
func (s *MemoryStore) Get(id string) (*receipt.TrustReceipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r, nil
}

// ListBySession returns a session's receipts in chain order.
func (s *MemoryStore) ListBySession(sessionID string) ([]*receipt.TrustReceipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	receipts := s.sessions[sessionID]
	out := make([]*receipt.TrustReceipt, len(receipts))
	copy(out, receipts)
	sortByChainLength(out)
	return out, nil
}

// Last returns the session's most recent receipt.
func (s *MemoryStore) Last(sessionID string) (*receipt.TrustReceipt, error) {
	receipts, err := s.ListBySession(sessionID)
	if err != nil {
		return nil, err
	}
	if len(receipts) == 0 {
		return nil, ErrNotFound
	}
	return receipts[len(receipts)-1], nil
}

// All returns every stored receipt, ordered by session then chain.
func (s *MemoryStore) All() ([]*receipt.TrustReceipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*receipt.TrustReceipt, 0, len(s.byID))
	sessionIDs := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		sessionIDs = append(sessionIDs, id)
	}
	sort.Strings(sessionIDs)
	for _, sid := range sessionIDs {
		chain := make([]*receipt.TrustReceipt, len(s.sessions[sid]))
		copy(chain, s.sessions[sid])
		sortByChainLength(chain)
		out = append(out, chain...)
	}
	return out, nil
}

func sortByChainLength(receipts []*receipt.TrustReceipt) {
	sort.SliceStable(receipts, func(i, j int) bool {
		return receipts[i].Chain.ChainLength < receipts[j].Chain.ChainLength
	})
}
