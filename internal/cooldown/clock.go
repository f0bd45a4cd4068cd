// Package cooldown holds the gates that decide whether a detected condition
// may produce a message: a plain cooldown, a bistable edge trigger and a
// rate limiter. All state lives in a kv.Store so decisions survive restarts.
package cooldown

import (
	"strconv"
	"time"
)

// Option configures a gate.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "0"
	}
	return strconv.FormatInt(t.UnixNano(), 10)
}

func parseTime(s string) time.Time {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// housekeepingTTL is the expiry put on cooldown and rate limit keys so
// abandoned gates do not accumulate forever. It outlives every timestamp the
// gate still compares against and is refreshed on each write.
func housekeepingTTL(periods ...time.Duration) time.Duration {
	var total time.Duration
	for _, p := range periods {
		if p <= 0 || p == Forever {
			return 0
		}
		total += p
	}
	return 2*total + time.Hour
}
