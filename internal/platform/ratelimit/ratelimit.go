// Package ratelimit counts requests per key over a sliding window.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"shebacred/pkg/platform/circuit"
)

// Result is the outcome of a single Allow call.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is how long a rejected caller should wait.
func (r *Result) RetryAfter(now time.Time) time.Duration {
	if r.Allowed || !r.ResetAt.After(now) {
		return 0
	}
	return r.ResetAt.Sub(now)
}

// Store admits or rejects one request for key.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}

// MemoryStore keeps per-key request timestamps in process. Windows slide
// rather than reset on a boundary, so bursts straddling a boundary are
// still counted together.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string][]time.Time), now: time.Now}
}

func (s *MemoryStore) Allow(_ context.Context, key string, limit int, window time.Duration) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	stamps := prune(s.windows[key], now.Add(-window))

	if len(stamps) >= limit {
		s.windows[key] = stamps
		resetAt := now.Add(window)
		if len(stamps) > 0 {
			resetAt = stamps[0].Add(window)
		}
		return &Result{Allowed: false, Limit: limit, ResetAt: resetAt}, nil
	}

	stamps = append(stamps, now)
	s.windows[key] = stamps
	return &Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(stamps),
		ResetAt:   stamps[0].Add(window),
	}, nil
}

// prune drops timestamps at or before cutoff. stamps is sorted.
func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for ; i < len(stamps); i++ {
		if stamps[i].After(cutoff) {
			break
		}
	}
	return stamps[i:]
}

// FailoverStore uses primary while it is healthy and the in-memory fallback
// while the breaker is open. Counts are not migrated between the two.
type FailoverStore struct {
	primary  Store
	fallback *MemoryStore
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

func NewFailoverStore(primary Store, breaker *circuit.Breaker, logger *slog.Logger) *FailoverStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FailoverStore{
		primary:  primary,
		fallback: NewMemoryStore(),
		breaker:  breaker,
		logger:   logger,
	}
}

func (s *FailoverStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	if !s.breaker.Allow() {
		return s.fallback.Allow(ctx, key, limit, window)
	}
	res, err := s.primary.Allow(ctx, key, limit, window)
	if err != nil {
		if _, change := s.breaker.RecordFailure(); change.Opened {
			s.logger.WarnContext(ctx, "rate limit store circuit opened", "breaker", s.breaker.Name(), "error", err)
		}
		return s.fallback.Allow(ctx, key, limit, window)
	}
	if _, change := s.breaker.RecordSuccess(); change.Closed {
		s.logger.InfoContext(ctx, "rate limit store circuit closed", "breaker", s.breaker.Name())
	}
	return res, nil
}
