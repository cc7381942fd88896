package history

import (
	"sync"
	"time"

	"github.com/faulttwin/faulttwin/pkg/types"
)

// DefaultCapacity is used when New is given a non-positive capacity.
const DefaultCapacity = 100

// Store is a thread-safe, fixed-capacity ring of history entries.
// Append is the only mutator; once full, each Append overwrites the oldest
// entry in the same critical section as the insertion.
type Store struct {
	mu    sync.RWMutex
	buf   []types.HistoryEntry
	head  int // index of the oldest entry
	count int
	seq   uint64
	now   func() time.Time // injectable for deterministic tests
}

// New creates a Store holding at most capacity entries.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		buf: make([]types.HistoryEntry, capacity),
		now: time.Now,
	}
}

// Append records one result and returns the stored entry with its assigned
// sequence number and timestamp.
func (s *Store) Append(sample types.EnrichedSample, result types.InferenceResult) types.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	e := types.HistoryEntry{
		Seq:       s.seq,
		Timestamp: s.now(),
		Sample:    sample,
		Result:    result,
	}

	if s.count < len(s.buf) {
		s.buf[(s.head+s.count)%len(s.buf)] = e
		s.count++
	} else {
		s.buf[s.head] = e
		s.head = (s.head + 1) % len(s.buf)
	}
	return e
}

// Snapshot returns a copy of the window, oldest first. The result is never
// aliased with the store.
func (s *Store) Snapshot() []types.HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.HistoryEntry, s.count)
	for i := 0; i < s.count; i++ {
		out[i] = s.buf[(s.head+i)%len(s.buf)]
	}
	return out
}

// Latest returns the newest entry, or false when the store is empty.
func (s *Store) Latest() (types.HistoryEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.count == 0 {
		return types.HistoryEntry{}, false
	}
	return s.buf[(s.head+s.count-1)%len(s.buf)], true
}

// Len returns the number of entries currently held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// Cap returns the fixed capacity.
func (s *Store) Cap() int {
	return len(s.buf)
}
