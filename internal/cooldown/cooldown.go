package cooldown

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/web3-frozen/chainwatch/internal/kv"
)

// Cooldown allows an action at most maxTimes within any period.
type Cooldown struct {
	store    kv.Store
	name     string
	period   time.Duration
	maxTimes int
	now      func() time.Time
}

// New returns a Cooldown that fires once per period.
func New(store kv.Store, name string, period time.Duration, opts ...Option) *Cooldown {
	return NewN(store, name, period, 1, opts...)
}

// NewN returns a Cooldown that fires up to maxTimes per period.
func NewN(store kv.Store, name string, period time.Duration, maxTimes int, opts ...Option) *Cooldown {
	if maxTimes < 1 {
		maxTimes = 1
	}
	o := buildOptions(opts)
	return &Cooldown{
		store:    store,
		name:     name,
		period:   period,
		maxTimes: maxTimes,
		now:      o.now,
	}
}

// Period returns the configured cooldown period.
func (c *Cooldown) Period() time.Duration { return c.period }

func (c *Cooldown) key() string { return "Cooldown:" + c.name }

// CanFire reports whether the action may run now.
func (c *Cooldown) CanFire(ctx context.Context) (bool, error) {
	fires, err := c.load(ctx)
	if err != nil {
		return false, err
	}
	return len(c.recent(fires)) < c.maxTimes, nil
}

// Fire records that the action ran now.
func (c *Cooldown) Fire(ctx context.Context) error {
	fires, err := c.load(ctx)
	if err != nil {
		return err
	}
	fires = append(c.recent(fires), c.now().UnixNano())
	if len(fires) > c.maxTimes {
		fires = fires[len(fires)-c.maxTimes:]
	}
	raw, err := json.Marshal(fires)
	if err != nil {
		return fmt.Errorf("encode cooldown %s: %w", c.name, err)
	}
	if err := c.store.Set(ctx, c.key(), string(raw), housekeepingTTL(c.period)); err != nil {
		return fmt.Errorf("save cooldown %s: %w", c.name, err)
	}
	return nil
}

// Clear forgets all recorded fires.
func (c *Cooldown) Clear(ctx context.Context) error {
	return c.store.Del(ctx, c.key())
}

func (c *Cooldown) load(ctx context.Context) ([]int64, error) {
	raw, err := c.store.Get(ctx, c.key())
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cooldown %s: %w", c.name, err)
	}
	var fires []int64
	if err := json.Unmarshal([]byte(raw), &fires); err != nil {
		// unreadable state counts as never fired
		return nil, nil
	}
	return fires, nil
}

func (c *Cooldown) recent(fires []int64) []int64 {
	now := c.now()
	out := fires[:0:0]
	for _, ts := range fires {
		if now.Sub(time.Unix(0, ts)) < c.period {
			out = append(out, ts)
		}
	}
	return out
}
