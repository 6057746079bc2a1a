package history

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the stage a delivery has reached.
type State string

const (
	StateComposing  State = "composing"
	StateDelivering State = "delivering"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Record is one execution of a notification.
type Record struct {
	ID           string     `json:"id"`
	Notification string     `json:"notification"`
	EventID      string     `json:"event_id"`
	State        State      `json:"state"`
	Error        string     `json:"error,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// Store is a thread-safe in-memory record store keyed by record ID.
// A background goroutine (Run) periodically evicts records that have not
// been updated within the configured TTL.
type Store struct {
	mu   sync.RWMutex
	data map[string]*Record
	ttl  time.Duration
	now  func() time.Time // injectable for deterministic tests
}

// New creates a Store with the given TTL.
func New(ttl time.Duration) *Store {
	return &Store{
		data: make(map[string]*Record),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Begin creates a record in StateComposing and returns a copy of it.
func (s *Store) Begin(notification, eventID string) Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	r := &Record{
		ID:           uuid.NewString(),
		Notification: notification,
		EventID:      eventID,
		State:        StateComposing,
		StartedAt:    now,
		UpdatedAt:    now,
	}
	s.data[r.ID] = r
	return *r
}

// Transition moves record id to state. err, when non-nil, is stored as the
// record's error. Terminal records do not change. It returns the updated
// record and whether it was found.
func (s *Store) Transition(id string, state State, err error) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.data[id]
	if !ok {
		return Record{}, false
	}
	if r.State.Terminal() {
		return *r, true
	}
	now := s.now()
	r.State = state
	r.UpdatedAt = now
	if err != nil {
		r.Error = err.Error()
	}
	if state.Terminal() {
		r.FinishedAt = &now
	}
	return *r, true
}

// Get returns a copy of the record with the given ID and whether it was
// found. The record may be stale if TTL has elapsed.
func (s *Store) Get(id string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.data[id]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

// List returns copies of all records updated within the TTL, newest first.
func (s *Store) List() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := s.now().Add(-s.ttl)
	out := make([]Record, 0, len(s.data))
	for _, r := range s.data {
		if r.UpdatedAt.After(cutoff) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}

// Count returns the total number of records currently held, including stale ones.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Evict removes records whose UpdatedAt is older than now minus TTL.
// It returns the number of records removed.
func (s *Store) Evict(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-s.ttl)
	removed := 0
	for id, r := range s.data {
		if !r.UpdatedAt.After(cutoff) {
			delete(s.data, id)
			removed++
		}
	}
	return removed
}

// Run starts the background TTL eviction loop. It ticks at half the TTL
// interval (minimum 1 second) and blocks until ctx is cancelled.
func (s *Store) Run(ctx context.Context) {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Evict(now); n > 0 {
				slog.Debug("history: evicted stale deliveries", "count", n)
			}
		}
	}
}
