package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestLimiter_AllowsUpToCapacity(t *testing.T) {
	clock := newFakeClock()
	l := New(WithClock(clock.Now))

	for i := 1; i <= DefaultCapacity; i++ {
		if !l.Allow("1.2.3.4") {
			t.Fatalf("request %d denied, want allowed", i)
		}
	}
	if l.Allow("1.2.3.4") {
		t.Fatalf("request %d allowed, want denied", DefaultCapacity+1)
	}
	// Denials do not consume anything; still denied inside the window.
	clock.Advance(59 * time.Second)
	if l.Allow("1.2.3.4") {
		t.Fatal("request allowed before the window elapsed")
	}
}

func TestLimiter_WindowExpiryResetsCount(t *testing.T) {
	clock := newFakeClock()
	l := New(WithCapacity(3), WithWindow(time.Minute), WithClock(clock.Now))

	for i := 0; i < 3; i++ {
		l.Allow("client")
	}
	if l.Allow("client") {
		t.Fatal("4th request allowed with capacity 3")
	}

	// Exactly one window later is not yet expired: expiry is strictly older.
	clock.Advance(time.Minute)
	if l.Allow("client") {
		t.Fatal("request allowed at exactly the window boundary")
	}

	clock.Advance(time.Millisecond)
	d := l.Check("client")
	if !d.Allowed {
		t.Fatal("request denied after the window elapsed")
	}
	if d.Remaining != 2 {
		t.Errorf("Remaining = %d after reset, want 2 (count restarted at 1)", d.Remaining)
	}
	if d.ResetAfter != time.Minute {
		t.Errorf("ResetAfter = %v, want %v", d.ResetAfter, time.Minute)
	}
}

func TestLimiter_IdentitiesAreIndependent(t *testing.T) {
	l := New(WithCapacity(1))

	if !l.Allow("a") {
		t.Fatal("first request for a denied")
	}
	if !l.Allow("b") {
		t.Fatal("first request for b denied")
	}
	if l.Allow("a") {
		t.Fatal("second request for a allowed with capacity 1")
	}
}

func TestLimiter_CheckReportsRemaining(t *testing.T) {
	clock := newFakeClock()
	l := New(WithCapacity(2), WithClock(clock.Now))

	tests := []struct {
		allowed   bool
		remaining int
	}{
		{true, 1},
		{true, 0},
		{false, 0},
	}
	for i, tt := range tests {
		clock.Advance(10 * time.Second)
		d := l.Check("x")
		if d.Allowed != tt.allowed || d.Remaining != tt.remaining || d.Limit != 2 {
			t.Errorf("call %d: got %+v, want allowed=%v remaining=%d limit=2", i+1, d, tt.allowed, tt.remaining)
		}
	}

	d := l.Check("x")
	// The window opened on the first call, 20s before the clock's position.
	if want := 40 * time.Second; d.ResetAfter != want {
		t.Errorf("ResetAfter = %v, want %v", d.ResetAfter, want)
	}
}

func TestLimiter_EvictsLeastRecentIdentity(t *testing.T) {
	l := New(WithCapacity(1), WithMaxIdentities(2))

	l.Allow("a")
	l.Allow("b")
	l.Allow("c") // evicts a

	if got := l.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2", got)
	}
	if !l.Allow("a") {
		t.Error("evicted identity should start a fresh window")
	}
	if l.Allow("c") {
		t.Error("tracked identity c should still be limited")
	}
}

func TestLimiter_ConcurrentSameIdentity(t *testing.T) {
	const capacity = 50
	l := New(WithCapacity(capacity))

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("shared") {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := allowed.Load(); got != capacity {
		t.Errorf("allowed %d concurrent requests, want exactly %d", got, capacity)
	}
}

func TestNew_IgnoresInvalidOptions(t *testing.T) {
	l := New(WithCapacity(0), WithWindow(-time.Second), WithMaxIdentities(-1))
	if l.capacity != DefaultCapacity || l.window != DefaultWindow || l.maxIdentities != DefaultMaxIdentities {
		t.Errorf("invalid options changed defaults: capacity=%d window=%v max=%d", l.capacity, l.window, l.maxIdentities)
	}
}
