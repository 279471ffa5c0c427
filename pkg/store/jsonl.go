package store

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/trustrail/trustrail-core/pkg/receipt"
)

// JSONLStore is an append-only Store backed by one JSON-Lines file.
// Every Put appends one line; nothing is ever rewritten, which suits an
// audit trail. Reads scan the file linearly — fine for the session-sized
// sets this store is meant for.
type JSONLStore struct {
	path string
	mu   sync.Mutex

	// ids caches stored receipt ids for duplicate rejection.
	ids map[string]bool
}

// NewJSONLStore opens (or creates) a JSONL receipt file.
func NewJSONLStore(path string) (*JSONLStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	s := &JSONLStore{path: path, ids: make(map[string]bool)}

	// Prime the id cache from any existing file
	if _, err := s.scan(func(*receipt.TrustReceipt) bool { return false }); err != nil {
		return nil, err
	}

	return s, nil
}

// Put appends a receipt to the file.
func (s *JSONLStore) Put(r *receipt.TrustReceipt) error {
	if r == nil || r.ID == "" {
		return errors.New("receipt must have an id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ids[r.ID] {
		return ErrDuplicate
	}

	line, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal receipt: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("failed to open receipt file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append receipt: %w", err)
	}

	s.ids[r.ID] = true
	return nil
}

// Get retrieves a receipt by id.
func (s *JSONLStore) Get(id string) (*receipt.TrustReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matches, err := s.scan(func(r *receipt.TrustReceipt) bool { return r.ID == id })
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, ErrNotFound
	}
	return matches[0], nil
}

// ListBySession returns a session's receipts in chain order.
func (s *JSONLStore) ListBySession(sessionID string) ([]*receipt.TrustReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matches, err := s.scan(func(r *receipt.TrustReceipt) bool { return r.SessionID == sessionID })
	if err != nil {
		return nil, err
	}
	sortByChainLength(matches)
	return matches, nil
}

// Last returns the session's most recent receipt.
func (s *JSONLStore) Last(sessionID string) (*receipt.TrustReceipt, error) {
	receipts, err := s.ListBySession(sessionID)
	if err != nil {
		return nil, err
	}
	if len(receipts) == 0 {
		return nil, ErrNotFound
	}
	return receipts[len(receipts)-1], nil
}

// All returns every stored receipt in append order.
func (s *JSONLStore) All() ([]*receipt.TrustReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.scan(func(*receipt.TrustReceipt) bool { return true })
}

// scan reads the whole file, feeding ids into the cache and collecting
// receipts matching keep. Callers hold the lock (or are the constructor).
func (s *JSONLStore) scan(keep func(*receipt.TrustReceipt) bool) ([]*receipt.TrustReceipt, error) {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open receipt file: %w", err)
	}
	defer f.Close()

	var out []*receipt.TrustReceipt
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var r receipt.TrustReceipt
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, fmt.Errorf("corrupt receipt line: %w", err)
		}
		s.ids[r.ID] = true
		if keep(&r) {
			out = append(out, &r)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read receipt file: %w", err)
	}

	return out, nil
}
