package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

var _ Store = (*MemoryStore)(nil)

type hit struct {
	id string
	at time.Time
}

type hitLog struct {
	hits   []hit
	window time.Duration
}

// MemoryStore keeps hit logs in process memory.
type MemoryStore struct {
	mu   sync.Mutex
	logs map[string]*hitLog
	now  func() time.Time
}

// NewMemoryStore returns an empty store using the wall clock.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{logs: make(map[string]*hitLog), now: time.Now}
}

// Take records a hit for key when fewer than limit hits fall inside window.
func (s *MemoryStore) Take(_ context.Context, key string, limit int, window time.Duration) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	log := s.logs[key]
	if log == nil {
		log = &hitLog{}
		s.logs[key] = log
	}
	log.window = window
	log.prune(now)

	res := Result{Limit: limit}
	if len(log.hits) >= limit {
		res.ResetAt = log.hits[0].at.Add(window)
		return res, nil
	}

	h := hit{id: uuid.NewString(), at: now}
	log.hits = append(log.hits, h)

	res.Allowed = true
	res.Remaining = limit - len(log.hits)
	res.ResetAt = log.hits[0].at.Add(window)
	res.HitID = h.id
	return res, nil
}

// Release withdraws a hit recorded by Take.
func (s *MemoryStore) Release(_ context.Context, key, hitID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.logs[key]
	if log == nil {
		return nil
	}
	for i, h := range log.hits {
		if h.id == hitID {
			log.hits = append(log.hits[:i], log.hits[i+1:]...)
			break
		}
	}
	if len(log.hits) == 0 {
		delete(s.logs, key)
	}
	return nil
}

// Sweep drops keys whose hits have all left their window.
func (s *MemoryStore) Sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, log := range s.logs {
		log.prune(now)
		if len(log.hits) == 0 {
			delete(s.logs, key)
		}
	}
}

// Run sweeps every interval until ctx is done.
func (s *MemoryStore) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (s *MemoryStore) keys() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.logs)
}

func (l *hitLog) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.hits) && !l.hits[i].at.After(cutoff) {
		i++
	}
	if i > 0 {
		l.hits = append(l.hits[:0], l.hits[i:]...)
	}
}
