// Package dedup provides the in-memory at-most-once gate for inbound messages.
package dedup

import (
	"sync"
	"time"
)

// Decision is the result of CheckAndMark.
type Decision int

const (
	// Proceed means the id was not seen before and is now recorded.
	Proceed Decision = iota
	// AlreadyProcessed means the id was recorded earlier; nothing changed.
	AlreadyProcessed
)

func (d Decision) String() string {
	switch d {
	case Proceed:
		return "proceed"
	case AlreadyProcessed:
		return "already_processed"
	default:
		return "unknown"
	}
}

// Store is a set of transaction ids seen by this process.
// With no options it never forgets an id.
type Store struct {
	mu        sync.Mutex
	seen      map[string]time.Time
	retention time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithRetention forgets ids first seen more than d ago. A forgotten id is
// admitted again, so this weakens at-most-once to at-most-once-per-window.
// d <= 0 keeps the default unbounded retention.
func WithRetention(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		seen: make(map[string]time.Time),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.lastSweep = s.now()
	return s
}

// CheckAndMark atomically records txID and reports whether the caller is
// the first to see it.
func (s *Store) CheckAndMark(txID string) Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.retention > 0 && now.Sub(s.lastSweep) >= s.retention {
		s.sweepLocked(now)
	}

	if at, ok := s.seen[txID]; ok {
		if s.retention == 0 || now.Sub(at) < s.retention {
			return AlreadyProcessed
		}
	}
	s.seen[txID] = now
	return Proceed
}

// Seen reports whether txID is currently recorded.
func (s *Store) Seen(txID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.seen[txID]
	if !ok {
		return false
	}
	return s.retention == 0 || s.now().Sub(at) < s.retention
}

// Len returns the number of recorded ids, including expired ones not yet swept.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

// Retention returns the configured window (0 = unbounded).
func (s *Store) Retention() time.Duration {
	return s.retention
}

func (s *Store) sweepLocked(now time.Time) {
	for id, at := range s.seen {
		if now.Sub(at) >= s.retention {
			delete(s.seen, id)
		}
	}
	s.lastSweep = now
}
