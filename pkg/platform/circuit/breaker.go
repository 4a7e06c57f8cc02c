// Package circuit tracks consecutive failures of a dependency and reports
// when callers should stop using it.
package circuit

import (
	"sync"
	"time"
)

type State int

const (
	StateClosed State = iota
	StateOpen
)

func (s State) String() string {
	if s == StateOpen {
		return "open"
	}
	return "closed"
}

// StateChange reports a transition caused by a single Record call.
type StateChange struct {
	Opened bool
	Closed bool
}

// Breaker opens after failureThreshold consecutive failures and closes after
// successThreshold consecutive successes. While open, Allow admits one probe
// per cooldown so the dependency can prove it is healthy again.
type Breaker struct {
	mu               sync.Mutex
	name             string
	state            State
	failures         int
	successes        int
	failureThreshold int
	successThreshold int
	cooldown         time.Duration
	lastProbe        time.Time
	now              func() time.Time
}

type Option func(*Breaker)

func WithFailureThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.failureThreshold = n
		}
	}
}

func WithSuccessThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.successThreshold = n
		}
	}
}

// WithCooldown sets the minimum spacing between probes while open.
func WithCooldown(d time.Duration) Option {
	return func(b *Breaker) { b.cooldown = d }
}

func WithClock(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:             name,
		failureThreshold: 5,
		successThreshold: 3,
		cooldown:         5 * time.Second,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Breaker) Name() string { return b.name }

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) IsOpen() bool {
	return b.State() == StateOpen
}

// Allow reports whether the dependency should be called now. A closed
// breaker always allows; an open one allows a single probe per cooldown.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateClosed {
		return true
	}
	now := b.now()
	if now.Sub(b.lastProbe) < b.cooldown {
		return false
	}
	b.lastProbe = now
	return true
}

// RecordFailure counts a failed call. It returns true when callers should
// use their fallback path.
func (b *Breaker) RecordFailure() (bool, StateChange) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.successes = 0
	if b.state == StateOpen {
		return true, StateChange{}
	}
	if b.failures >= b.failureThreshold {
		b.state = StateOpen
		b.lastProbe = b.now()
		return true, StateChange{Opened: true}
	}
	return false, StateChange{}
}

// RecordSuccess counts a successful call. It returns true when callers may
// use the primary path again.
func (b *Breaker) RecordSuccess() (bool, StateChange) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateClosed {
		b.failures = 0
		return true, StateChange{}
	}
	b.successes++
	if b.successes < b.successThreshold {
		return false, StateChange{}
	}
	b.state = StateClosed
	b.failures = 0
	b.successes = 0
	return true, StateChange{Closed: true}
}

// Reset forces the breaker closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.successes = 0
	b.lastProbe = time.Time{}
}
