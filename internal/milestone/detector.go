package milestone

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/web3-frozen/chainwatch/internal/kv"
)

// Year is the length of a year for the anniversary transform.
const Year = 365 * 24 * time.Hour

// Transform maps raw values into the thresholded domain and back for display.
type Transform struct {
	Forward  func(float64) float64
	Backward func(float64) float64
}

// Anniversary turns elapsed seconds into whole elapsed years.
var Anniversary = Transform{
	Forward:  func(sec float64) float64 { return math.Floor(sec / Year.Seconds()) },
	Backward: func(years float64) float64 { return years * Year.Seconds() },
}

// Config describes how one signal is thresholded.
type Config struct {
	Progression Progression
	// Minimum is compared to the transformed value; below it nothing fires.
	Minimum   float64
	Transform *Transform
}

// Record is the persisted state of one signal.
type Record struct {
	Key               string    `json:"key"`
	Value             float64   `json:"value"`
	Milestone         float64   `json:"milestone"`
	Timestamp         time.Time `json:"timestamp"`
	PreviousMilestone float64   `json:"prev_milestone"`
	PreviousTimestamp time.Time `json:"previous_ts"`
}

// Event announces that Key reached a new milestone.
type Event struct {
	Key               string
	Value             float64
	Milestone         float64
	PreviousMilestone float64
	Timestamp         time.Time
	PreviousTimestamp time.Time

	transform *Transform
}

// DisplayValue converts the milestone back to raw units.
func (e Event) DisplayValue() float64 {
	if e.transform != nil && e.transform.Backward != nil {
		return e.transform.Backward(e.Milestone)
	}
	return e.Milestone
}

// Detector feeds signal values through per-key configs. It keeps no state of
// its own between calls; records live in the kv.Store.
type Detector struct {
	store    kv.Store
	logger   *slog.Logger
	fallback Config
	configs  map[string]Config
	now      func() time.Time
}

// NewDetector returns a Detector. Keys without an entry in configs use the
// Default progression with no minimum.
func NewDetector(store kv.Store, logger *slog.Logger, configs map[string]Config) (*Detector, error) {
	for key, cfg := range configs {
		if cfg.Progression == nil {
			continue
		}
		if err := cfg.Progression.Validate(); err != nil {
			return nil, fmt.Errorf("milestone config %s: %w", key, err)
		}
	}
	return &Detector{
		store:    store,
		logger:   logger,
		fallback: Config{Progression: Default},
		configs:  configs,
		now:      time.Now,
	}, nil
}

// Config returns the effective config for key.
func (d *Detector) Config(key string) Config {
	cfg, ok := d.configs[key]
	if !ok {
		return d.fallback
	}
	if cfg.Progression == nil {
		cfg.Progression = Default
	}
	return cfg
}

func recordKey(key string) string { return "Achievements:" + key }

// Feed observes raw for key and returns an Event when a new, larger milestone
// has been crossed. The first observation of a key only seeds its record.
func (d *Detector) Feed(ctx context.Context, key string, raw float64) (*Event, error) {
	if key == "" {
		return nil, errors.New("milestone: empty key")
	}
	cfg := d.Config(key)

	value := raw
	if cfg.Transform != nil && cfg.Transform.Forward != nil {
		value = cfg.Transform.Forward(raw)
	}
	if value < cfg.Minimum {
		return nil, nil
	}
	candidate := cfg.Progression.Previous(value)
	now := d.now()

	rec, err := d.Record(ctx, key)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		seed := Record{Key: key, Value: value, Milestone: candidate, Timestamp: now}
		if err := d.save(ctx, seed); err != nil {
			return nil, err
		}
		d.logger.Info("milestone record created", "key", key, "milestone", candidate, "value", value)
		return nil, nil
	}

	if candidate <= rec.Milestone {
		return nil, nil
	}

	next := Record{
		Key:               key,
		Value:             value,
		Milestone:         candidate,
		Timestamp:         now,
		PreviousMilestone: rec.Milestone,
		PreviousTimestamp: rec.Timestamp,
	}
	if err := d.save(ctx, next); err != nil {
		return nil, err
	}
	d.logger.Info("milestone reached", "key", key, "milestone", candidate, "previous", rec.Milestone)

	return &Event{
		Key:               key,
		Value:             value,
		Milestone:         candidate,
		PreviousMilestone: rec.Milestone,
		Timestamp:         now,
		PreviousTimestamp: rec.Timestamp,
		transform:         cfg.Transform,
	}, nil
}

// Record loads the stored record for key. A missing or unreadable record
// yields nil without error.
func (d *Detector) Record(ctx context.Context, key string) (*Record, error) {
	raw, err := d.store.Get(ctx, recordKey(key))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load milestone %s: %w", key, err)
	}
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		d.logger.Warn("discarding unreadable milestone record", "key", key, "error", err)
		return nil, nil
	}
	return &rec, nil
}

func (d *Detector) save(ctx context.Context, rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode milestone %s: %w", rec.Key, err)
	}
	if err := d.store.Set(ctx, recordKey(rec.Key), string(raw), 0); err != nil {
		return fmt.Errorf("save milestone %s: %w", rec.Key, err)
	}
	return nil
}
