package log

import (
	"time"

	"golang.org/x/time/rate"
)

// Throttle gates a log call site so it emits at most once per interval.
// The first call always passes. It only limits logging; callers still do
// their work on every invocation.
//
// Every call site lives on the bus dispatch goroutine, so Allow is never
// raced; the clock is injectable so tests can step time.
type Throttle struct {
	interval time.Duration
	now      func() time.Time
	limiter  *rate.Limiter
}

// NewThrottle returns a Throttle using the wall clock.
func NewThrottle(interval time.Duration) *Throttle {
	return NewThrottleWithClock(interval, time.Now)
}

// NewThrottleWithClock returns a Throttle reading time from now.
// A one-token bucket refilled every interval lets the first call through.
func NewThrottleWithClock(interval time.Duration, now func() time.Time) *Throttle {
	if now == nil {
		now = time.Now
	}
	return &Throttle{
		interval: interval,
		now:      now,
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
	}
}

// Allow reports whether the guarded log line should be emitted now.
func (t *Throttle) Allow() bool {
	return t.limiter.AllowN(t.now(), 1)
}

// Interval returns the minimum spacing between emissions.
func (t *Throttle) Interval() time.Duration {
	return t.interval
}
