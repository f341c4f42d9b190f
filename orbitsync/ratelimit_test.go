package orbitsync

import (
	"testing"
	"time"
)

// fakeClock drives the limiter deterministically: sleeping advances time.
type fakeClock struct {
	now    time.Time
	slept  []time.Duration
	sleeps int
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, time.May, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) Sleep(d time.Duration) {
	f.slept = append(f.slept, d)
	f.sleeps++
	f.now = f.now.Add(d)
}

func newTestLimiter(limit int, clock *fakeClock) *rateLimiter {
	r := newRateLimiter(limit)
	r.now = clock.Now
	r.sleep = clock.Sleep
	return r
}

func TestRateLimiter_AllowsUpToBudgetWithoutSleeping(t *testing.T) {
	clock := newFakeClock()
	r := newTestLimiter(5, clock)

	for i := 0; i < 5; i++ {
		r.Wait()
	}
	if clock.sleeps != 0 {
		t.Fatalf("expected no sleeps within budget, got %d", clock.sleeps)
	}
}

func TestRateLimiter_BlocksUntilWindowRollsOver(t *testing.T) {
	clock := newFakeClock()
	r := newTestLimiter(3, clock)

	for i := 0; i < 3; i++ {
		r.Wait()
	}
	r.Wait() // 4th call must wait out the rest of the window
	if clock.sleeps == 0 {
		t.Fatal("expected the over-budget call to sleep")
	}
	if clock.slept[0] <= 0 || clock.slept[0] > time.Minute {
		t.Fatalf("slept %v, expected within (0, 1m]", clock.slept[0])
	}
}

func TestRateLimiter_NewWindowRestoresBudget(t *testing.T) {
	clock := newFakeClock()
	r := newTestLimiter(2, clock)

	r.Wait()
	r.Wait()
	clock.now = clock.now.Add(61 * time.Second)

	before := clock.sleeps
	r.Wait()
	if clock.sleeps != before {
		t.Fatal("call after window rollover should not sleep")
	}
}

func TestRateLimiter_ResetStartsFreshWindow(t *testing.T) {
	clock := newFakeClock()
	r := newTestLimiter(2, clock)

	r.Wait()
	r.Wait()
	r.Reset()

	before := clock.sleeps
	r.Wait()
	r.Wait()
	if clock.sleeps != before {
		t.Fatal("calls after Reset should fit the fresh budget without sleeping")
	}
}

func TestNewRateLimiter_DefaultsNonPositiveLimit(t *testing.T) {
	r := newRateLimiter(0)
	if r.limit != 40 {
		t.Fatalf("limit = %d, expected default 40", r.limit)
	}
}
