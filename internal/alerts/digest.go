package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/web3-frozen/chainwatch/internal/delegate"
	"github.com/web3-frozen/chainwatch/internal/monitor"
)

// StatsSource is satisfied by *monitor.Registry.
type StatsSource interface {
	Summary() []monitor.Stats
}

// Digest publishes a source health report on a cron schedule.
type Digest struct {
	delegate.Delegates

	stats    StatsSource
	schedule cron.Schedule
	loc      *time.Location
	logger   *slog.Logger
	now      func() time.Time
}

// NewDigest parses spec as a standard five-field cron expression.
func NewDigest(stats StatsSource, spec string, loc *time.Location, logger *slog.Logger) (*Digest, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse digest schedule %q: %w", spec, err)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Digest{stats: stats, schedule: sched, loc: loc, logger: logger, now: time.Now}, nil
}

// Start runs the digest on schedule until ctx is cancelled.
func (d *Digest) Start(ctx context.Context) {
	c := cron.New(cron.WithLocation(d.loc))
	c.Schedule(d.schedule, cron.FuncJob(func() {
		if err := d.RunOnce(ctx); err != nil {
			d.logger.Error("daily digest", "error", err)
		}
	}))
	c.Start()
	d.logger.Info("digest scheduled", "next", d.schedule.Next(d.now().In(d.loc)))

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
}

// RunOnce builds and publishes the report now.
func (d *Digest) RunOnce(ctx context.Context) error {
	summary := d.stats.Summary()
	alert := DigestAlert{Day: d.now().In(d.loc), Lines: make([]DigestLine, 0, len(summary))}
	for _, s := range summary {
		if s.Disabled {
			continue
		}
		alert.Lines = append(alert.Lines, DigestLine{
			Source:      s.Name,
			Ticks:       s.TotalTicks,
			SuccessRate: s.SuccessRate,
		})
	}
	return d.Publish(ctx, d, alert)
}
