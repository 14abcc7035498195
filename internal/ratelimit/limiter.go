// Package ratelimit provides a per-identity fixed-window request limiter.
package ratelimit

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	DefaultCapacity      = 10
	DefaultWindow        = time.Minute
	DefaultMaxIdentities = 10000
)

// Decision is the outcome of a Check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// ResetAfter is the time left until the identity's window expires.
	ResetAfter time.Duration
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithCapacity sets the number of requests allowed per window.
func WithCapacity(n int) Option {
	return func(l *Limiter) {
		if n > 0 {
			l.capacity = n
		}
	}
}

// WithWindow sets the window duration.
func WithWindow(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.window = d
		}
	}
}

// WithMaxIdentities bounds the number of identities tracked at once. The
// least recently seen identity is forgotten first.
func WithMaxIdentities(n int) Option {
	return func(l *Limiter) {
		if n > 0 {
			l.maxIdentities = n
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

type record struct {
	count       int
	windowStart time.Time
}

// Limiter counts requests per identity in fixed windows. A window starts at
// the first request of an identity and is replaced wholesale once it is
// older than the window duration, so up to twice the capacity can pass in a
// short span straddling a boundary.
type Limiter struct {
	capacity      int
	window        time.Duration
	maxIdentities int
	now           func() time.Time

	mu      sync.Mutex
	records *lru.Cache[string, *record]
}

// New creates a Limiter. Without options it allows 10 requests per minute.
func New(opts ...Option) *Limiter {
	l := &Limiter{
		capacity:      DefaultCapacity,
		window:        DefaultWindow,
		maxIdentities: DefaultMaxIdentities,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}

	// lru.New only fails on a non-positive size, which the options rule out.
	records, err := lru.New[string, *record](l.maxIdentities)
	if err != nil {
		panic(err)
	}
	l.records = records
	return l
}

// Allow reports whether identity may make another request now, counting it
// if so.
func (l *Limiter) Allow(identity string) bool {
	return l.Check(identity).Allowed
}

// Check evaluates and records a request for identity.
func (l *Limiter) Check(identity string) Decision {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records.Get(identity)
	if !ok || now.Sub(rec.windowStart) > l.window {
		rec = &record{count: 1, windowStart: now}
		l.records.Add(identity, rec)
		return l.decision(true, rec, now)
	}

	if rec.count >= l.capacity {
		return l.decision(false, rec, now)
	}

	rec.count++
	return l.decision(true, rec, now)
}

func (l *Limiter) decision(allowed bool, rec *record, now time.Time) Decision {
	reset := rec.windowStart.Add(l.window).Sub(now)
	if reset < 0 {
		reset = 0
	}
	return Decision{
		Allowed:    allowed,
		Limit:      l.capacity,
		Remaining:  max(l.capacity-rec.count, 0),
		ResetAfter: reset,
	}
}

// Len returns the number of identities currently tracked.
func (l *Limiter) Len() int {
	return l.records.Len()
}
