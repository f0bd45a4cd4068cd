package cooldown

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/web3-frozen/chainwatch/internal/kv"
)

// Forever as a dwell period means that direction never re-arms on its own.
const Forever = time.Duration(math.MaxInt64)

// BiTrigger debounces a boolean condition. Turn reports true only on a state
// change, and only once the state being left has been held for its dwell
// period (onPeriod when leaving "on", offPeriod when leaving "off").
// Its state key never expires: a state can be held indefinitely.
type BiTrigger struct {
	store     kv.Store
	name      string
	onPeriod  time.Duration
	offPeriod time.Duration
	initial   bool
	now       func() time.Time
}

func NewBiTrigger(store kv.Store, name string, onPeriod, offPeriod time.Duration, initial bool, opts ...Option) *BiTrigger {
	o := buildOptions(opts)
	return &BiTrigger{
		store:     store,
		name:      name,
		onPeriod:  onPeriod,
		offPeriod: offPeriod,
		initial:   initial,
		now:       o.now,
	}
}

func (t *BiTrigger) key() string { return "Trigger:" + t.name }

// Turn moves the trigger towards state and reports whether it switched.
func (t *BiTrigger) Turn(ctx context.Context, state bool) (bool, error) {
	current, switchedAt, err := t.State(ctx)
	if err != nil {
		return false, err
	}
	if current == state {
		return false, nil
	}

	dwell := t.offPeriod
	if current {
		dwell = t.onPeriod
	}
	now := t.now()
	if !switchedAt.IsZero() {
		if dwell == Forever || now.Sub(switchedAt) < dwell {
			return false, nil
		}
	}

	err = t.store.HSet(ctx, t.key(), map[string]string{
		"state":       formatBool(state),
		"switched_at": formatTime(now),
	})
	if err != nil {
		return false, fmt.Errorf("save trigger %s: %w", t.name, err)
	}
	return true, nil
}

func (t *BiTrigger) TurnOn(ctx context.Context) (bool, error)  { return t.Turn(ctx, true) }
func (t *BiTrigger) TurnOff(ctx context.Context) (bool, error) { return t.Turn(ctx, false) }

// State returns the stored state and when it was last switched. A trigger
// that never switched reports its initial state and a zero time.
func (t *BiTrigger) State(ctx context.Context) (bool, time.Time, error) {
	h, err := t.store.HGetAll(ctx, t.key())
	if err != nil {
		return false, time.Time{}, fmt.Errorf("load trigger %s: %w", t.name, err)
	}
	raw, ok := h["state"]
	if !ok {
		return t.initial, time.Time{}, nil
	}
	return raw == "1", parseTime(h["switched_at"]), nil
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
