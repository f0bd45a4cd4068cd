package alerts

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/web3-frozen/chainwatch/internal/delegate"
	"github.com/web3-frozen/chainwatch/internal/metrics"
	"github.com/web3-frozen/chainwatch/internal/milestone"
	"github.com/web3-frozen/chainwatch/internal/monitor/sources"
)

const (
	KeyBlockHeight = "block_height"
	KeyChainAge    = "age"
)

// DefaultMilestones returns the thresholds for chain signals. Price pairs
// fall back to the detector default.
func DefaultMilestones() map[string]milestone.Config {
	return map[string]milestone.Config{
		KeyBlockHeight: {Progression: milestone.EveryDigit, Minimum: 1_000_000},
		KeyChainAge:    {Progression: milestone.EveryDigit, Minimum: 1, Transform: &milestone.Anniversary},
	}
}

// Achievements announces new milestones of block height, chain age and
// prices.
type Achievements struct {
	delegate.Delegates

	detector *milestone.Detector
	genesis  time.Time
	logger   *slog.Logger
}

// NewAchievements returns the detector. A zero genesis disables chain age.
func NewAchievements(d *milestone.Detector, genesis time.Time, logger *slog.Logger) *Achievements {
	return &Achievements{detector: d, genesis: genesis, logger: logger}
}

func (a *Achievements) OnData(ctx context.Context, _ any, data any) error {
	var errs []error
	switch v := data.(type) {
	case sources.BlockHeight:
		errs = append(errs, a.feed(ctx, KeyBlockHeight, float64(v.Number)))
		if !a.genesis.IsZero() && !v.BlockTime.IsZero() {
			errs = append(errs, a.feed(ctx, KeyChainAge, v.BlockTime.Sub(a.genesis).Seconds()))
		}
	case sources.Prices:
		for pair, price := range v.Quotes {
			errs = append(errs, a.feed(ctx, "price:"+pair, price))
		}
	}
	return errors.Join(errs...)
}

func (a *Achievements) feed(ctx context.Context, key string, value float64) error {
	ev, err := a.detector.Feed(ctx, key, value)
	if err != nil || ev == nil {
		return err
	}
	a.logger.Info("milestone reached", "key", key, "milestone", ev.Milestone, "previous", ev.PreviousMilestone, "threshold", ev.DisplayValue())
	metrics.MilestonesTotal.WithLabelValues(key).Inc()
	return a.Publish(ctx, a, MilestoneAlert{
		Key:       ev.Key,
		Value:     ev.Value,
		Milestone: ev.Milestone,
		Previous:  ev.PreviousMilestone,
		Threshold: ev.DisplayValue(),
	})
}
