package alerts

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/web3-frozen/chainwatch/internal/cooldown"
	"github.com/web3-frozen/chainwatch/internal/delegate"
	"github.com/web3-frozen/chainwatch/internal/kv"
	"github.com/web3-frozen/chainwatch/internal/metrics"
	"github.com/web3-frozen/chainwatch/internal/monitor/sources"
)

const DefaultDropThreshold = 0.10

// PriceDrop compares every quote with the previous tick and alerts when it
// fell by at least threshold, at most once per cooldown period per pair.
type PriceDrop struct {
	delegate.Delegates

	store     kv.Store
	threshold float64
	period    time.Duration
	logger    *slog.Logger
	opts      []cooldown.Option

	mu   sync.Mutex
	last map[string]float64
}

func NewPriceDrop(store kv.Store, threshold float64, period time.Duration, logger *slog.Logger, opts ...cooldown.Option) *PriceDrop {
	return &PriceDrop{
		store:     store,
		threshold: threshold,
		period:    period,
		logger:    logger,
		opts:      opts,
		last:      make(map[string]float64),
	}
}

func (p *PriceDrop) OnData(ctx context.Context, _ any, data any) error {
	prices, ok := data.(sources.Prices)
	if !ok {
		return nil
	}

	pairs := make([]string, 0, len(prices.Quotes))
	for pair := range prices.Quotes {
		pairs = append(pairs, pair)
	}
	sort.Strings(pairs)

	var errs []error
	for _, pair := range pairs {
		curr := prices.Quotes[pair]
		p.mu.Lock()
		prev, seen := p.last[pair]
		p.last[pair] = curr
		p.mu.Unlock()

		if !seen || prev <= 0 {
			continue
		}
		drop := (prev - curr) / prev
		if drop < p.threshold {
			continue
		}
		errs = append(errs, p.raise(ctx, pair, prev, curr, drop))
	}
	return errors.Join(errs...)
}

func (p *PriceDrop) raise(ctx context.Context, pair string, prev, curr, drop float64) error {
	cd := cooldown.New(p.store, "PriceDrop:"+pair, p.period, p.opts...)
	ok, err := cd.CanFire(ctx)
	if err != nil {
		return err
	}
	if !ok {
		metrics.AlertsGatedTotal.WithLabelValues("price_drop").Inc()
		p.logger.Info("price drop alert in cooldown", "pair", pair, "drop", drop)
		return nil
	}
	if err := cd.Fire(ctx); err != nil {
		return err
	}
	return p.Publish(ctx, p, PriceDropAlert{Pair: pair, From: prev, To: curr, DropPct: drop * 100})
}
