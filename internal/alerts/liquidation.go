package alerts

import (
	"context"
	"errors"
	"time"

	"github.com/web3-frozen/chainwatch/internal/cooldown"
	"github.com/web3-frozen/chainwatch/internal/delegate"
	"github.com/web3-frozen/chainwatch/internal/kv"
	"github.com/web3-frozen/chainwatch/internal/metrics"
	"github.com/web3-frozen/chainwatch/internal/store"
)

// Liquidations alerts on single liquidations of at least minUSD, at most
// maxTimes per period per symbol.
type Liquidations struct {
	delegate.Delegates

	store    kv.Store
	minUSD   float64
	period   time.Duration
	maxTimes int
	opts     []cooldown.Option
}

func NewLiquidations(st kv.Store, minUSD float64, period time.Duration, maxTimes int, opts ...cooldown.Option) *Liquidations {
	return &Liquidations{store: st, minUSD: minUSD, period: period, maxTimes: maxTimes, opts: opts}
}

func (l *Liquidations) OnData(ctx context.Context, _ any, data any) error {
	events, ok := data.([]store.LiquidationEvent)
	if !ok {
		return nil
	}
	var errs []error
	for _, ev := range events {
		if ev.USDValue < l.minUSD {
			continue
		}
		errs = append(errs, l.raise(ctx, ev))
	}
	return errors.Join(errs...)
}

func (l *Liquidations) raise(ctx context.Context, ev store.LiquidationEvent) error {
	cd := cooldown.NewN(l.store, "Liquidation:"+ev.Symbol, l.period, l.maxTimes, l.opts...)
	ok, err := cd.CanFire(ctx)
	if err != nil {
		return err
	}
	if !ok {
		metrics.AlertsGatedTotal.WithLabelValues("liquidation").Inc()
		return nil
	}
	if err := cd.Fire(ctx); err != nil {
		return err
	}
	return l.Publish(ctx, l, LiquidationAlert{
		Symbol:   ev.Symbol,
		Side:     ev.Side,
		Price:    ev.Price,
		Quantity: ev.Quantity,
		USDValue: ev.USDValue,
	})
}
