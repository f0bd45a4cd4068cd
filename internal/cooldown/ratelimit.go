package cooldown

import (
	"context"
	"fmt"
	"time"

	"github.com/web3-frozen/chainwatch/internal/kv"
)

// Verdict is the outcome of RateLimiter.Hit.
type Verdict int

const (
	// Good means the caller may act.
	Good Verdict = iota
	// HitLimit is returned once, on the hit that first exceeds the limit.
	// The caller should emit a single "slow down" notice.
	HitLimit
	// Suppressed means the caller must stay silent.
	Suppressed
)

func (v Verdict) String() string {
	switch v {
	case Good:
		return "good"
	case HitLimit:
		return "hit_limit"
	case Suppressed:
		return "suppressed"
	default:
		return "unknown"
	}
}

// RateLimiter counts hits within a rolling window. Once more than maxHits land
// in one window it stays suppressed for the suppress period, then resets.
type RateLimiter struct {
	store    kv.Store
	name     string
	maxHits  int
	window   time.Duration
	suppress time.Duration
	now      func() time.Time
}

func NewRateLimiter(store kv.Store, name string, maxHits int, window, suppress time.Duration, opts ...Option) *RateLimiter {
	o := buildOptions(opts)
	return &RateLimiter{
		store:    store,
		name:     name,
		maxHits:  maxHits,
		window:   window,
		suppress: suppress,
		now:      o.now,
	}
}

func (r *RateLimiter) key() string      { return "RateLimit:" + r.name }
func (r *RateLimiter) countKey() string { return r.key() + ":count" }

// Hit registers one attempt and returns what the caller may do.
func (r *RateLimiter) Hit(ctx context.Context) (Verdict, error) {
	h, err := r.store.HGetAll(ctx, r.key())
	if err != nil {
		return Good, fmt.Errorf("load rate limit %s: %w", r.name, err)
	}
	windowStart := parseTime(h["window_start"])
	suppressedUntil := parseTime(h["suppressed_until"])
	now := r.now()

	if !suppressedUntil.IsZero() {
		if now.Before(suppressedUntil) {
			return Suppressed, nil
		}
		windowStart, suppressedUntil = time.Time{}, time.Time{}
	}

	if windowStart.IsZero() || now.Sub(windowStart) >= r.window {
		windowStart = now
		if err := r.store.Del(ctx, r.countKey()); err != nil {
			return Good, fmt.Errorf("reset rate limit %s: %w", r.name, err)
		}
	}
	count, err := r.store.Incr(ctx, r.countKey())
	if err != nil {
		return Good, fmt.Errorf("count rate limit %s: %w", r.name, err)
	}

	verdict := Good
	if count > int64(r.maxHits) {
		verdict = HitLimit
		suppressedUntil = now.Add(r.suppress)
	}

	err = r.store.HSet(ctx, r.key(), map[string]string{
		"window_start":     formatTime(windowStart),
		"suppressed_until": formatTime(suppressedUntil),
	})
	if err != nil {
		return Good, fmt.Errorf("save rate limit %s: %w", r.name, err)
	}
	if ttl := housekeepingTTL(r.window, r.suppress); ttl > 0 {
		_ = r.store.Expire(ctx, r.key(), ttl)
		_ = r.store.Expire(ctx, r.countKey(), ttl)
	}
	return verdict, nil
}

// Reset clears the counter and any suppression.
func (r *RateLimiter) Reset(ctx context.Context) error {
	return r.store.Del(ctx, r.key(), r.countKey())
}
