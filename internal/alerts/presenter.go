package alerts

import (
	"context"
	"log/slog"

	"github.com/web3-frozen/chainwatch/internal/broadcast"
	"github.com/web3-frozen/chainwatch/internal/locale"
	"github.com/web3-frozen/chainwatch/internal/metrics"
	"github.com/web3-frozen/chainwatch/internal/store"
)

type Notifier interface {
	NotifyChannels(ctx context.Context, src broadcast.MessageSource) (broadcast.Result, error)
	NotifyPublic(ctx context.Context, src broadcast.MessageSource) (broadcast.Result, error)
}

type AlertLog interface {
	InsertAlertLog(ctx context.Context, e *store.AlertLogEntry) error
}

// Presenter is the terminal listener: it renders alerts per language and
// hands them to the broadcaster.
type Presenter struct {
	notifier Notifier
	log      AlertLog
	logger   *slog.Logger
}

// NewPresenter returns a Presenter. log may be nil.
func NewPresenter(n Notifier, log AlertLog, logger *slog.Logger) *Presenter {
	return &Presenter{notifier: n, log: log, logger: logger}
}

func (p *Presenter) OnData(ctx context.Context, _ any, data any) error {
	a, err := asAlert(data)
	if err != nil {
		return err
	}
	metrics.AlertsRaisedTotal.WithLabelValues(a.Kind()).Inc()

	src := broadcast.PerLocale(func(f locale.Formatter) broadcast.Message {
		return broadcast.Message{Kind: broadcast.KindText, Text: a.Render(f)}
	})

	var res broadcast.Result
	if po, ok := a.(publicOnly); ok && po.PublicOnly() {
		res, err = p.notifier.NotifyPublic(ctx, src)
	} else {
		res, err = p.notifier.NotifyChannels(ctx, src)
	}

	p.logger.Info("alert delivered", "kind", a.Kind(), "broadcast", res.ID,
		"delivered", res.Delivered, "failed", res.Failed)

	if p.log != nil && res.ID != "" {
		entry := &store.AlertLogEntry{
			BroadcastID: res.ID,
			Kind:        a.Kind(),
			Total:       res.Total,
			Delivered:   res.Delivered,
			Failed:      res.Failed,
			Quarantined: res.Quarantined,
			Skipped:     res.Skipped,
			DurationMS:  res.Duration.Milliseconds(),
		}
		// Context may already be cancelled when a broadcast was interrupted.
		if lerr := p.log.InsertAlertLog(context.WithoutCancel(ctx), entry); lerr != nil {
			p.logger.Error("write alert log", "error", lerr)
		}
	}
	return err
}
