// Package broadcast delivers one message to many destinations across chat
// platforms. A failing destination is logged, counted and possibly
// quarantined; it never stops delivery to the others.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/web3-frozen/chainwatch/internal/cooldown"
	"github.com/web3-frozen/chainwatch/internal/kv"
	"github.com/web3-frozen/chainwatch/internal/locale"
	"github.com/web3-frozen/chainwatch/internal/messenger"
	"github.com/web3-frozen/chainwatch/internal/metrics"
)

// QuarantineKey is the KV set of channel keys excluded from delivery.
const QuarantineKey = "Broadcast:Quarantine"

// Settings resolves dynamic subscribers and accepts quarantine reports.
type Settings interface {
	ActiveChannels(ctx context.Context) ([]messenger.Channel, error)
	Deactivate(ctx context.Context, ch messenger.Channel) error
}

type Config struct {
	// Static channels receive every broadcast.
	Static []messenger.Channel
	// SendInterval is the minimum gap between two sends. Zero disables pacing.
	SendInterval time.Duration
	// RetryPadding is added to the platform's retry-after.
	RetryPadding time.Duration

	// Personal rate limit, applied to non-public channels only.
	UserMaxHits  int
	UserWindow   time.Duration
	UserSuppress time.Duration
}

// DefaultConfig paces at ~13 messages per second, under Telegram's 30/s.
func DefaultConfig() Config {
	return Config{
		SendInterval: 75 * time.Millisecond,
		RetryPadding: 100 * time.Millisecond,
		UserMaxHits:  20,
		UserWindow:   10 * time.Minute,
		UserSuppress: time.Hour,
	}
}

// Result summarizes one broadcast.
type Result struct {
	ID          string        `json:"id"`
	Total       int           `json:"total"`
	Delivered   int           `json:"delivered"`
	Failed      int           `json:"failed"`
	Quarantined int           `json:"quarantined"`
	Skipped     int           `json:"skipped"`
	Duration    time.Duration `json:"duration"`
}

type outcome string

const (
	outcomeDelivered   outcome = "delivered"
	outcomeFailed      outcome = "failed"
	outcomeQuarantined outcome = "quarantined"
	outcomeSkipped     outcome = "skipped"
)

type Broadcaster struct {
	adapters map[messenger.Platform]messenger.Adapter
	settings Settings
	store    kv.Store
	locales  *locale.Manager
	logger   *slog.Logger
	cfg      Config
	pacer    *rate.Limiter

	mu sync.Mutex

	// replaced in tests
	sleep   func(ctx context.Context, d time.Duration) error
	shuffle func(n int, swap func(i, j int))
	now     func() time.Time
}

// New creates a broadcaster. settings may be nil when there are no dynamic
// subscribers.
func New(store kv.Store, settings Settings, locales *locale.Manager, logger *slog.Logger, cfg Config, adapters ...messenger.Adapter) *Broadcaster {
	limit := rate.Inf
	if cfg.SendInterval > 0 {
		limit = rate.Every(cfg.SendInterval)
	}
	b := &Broadcaster{
		adapters: make(map[messenger.Platform]messenger.Adapter, len(adapters)),
		settings: settings,
		store:    store,
		locales:  locales,
		logger:   logger,
		cfg:      cfg,
		pacer:    rate.NewLimiter(limit, 1),
		sleep:    sleepCtx,
		shuffle:  rand.Shuffle,
		now:      time.Now,
	}
	for _, a := range adapters {
		b.adapters[a.Platform()] = a
	}
	return b
}

// Platforms returns the platforms that have an adapter.
func (b *Broadcaster) Platforms() []messenger.Platform {
	out := make([]messenger.Platform, 0, len(b.adapters))
	for p := range b.adapters {
		out = append(out, p)
	}
	return out
}

// NotifyChannels sends src to every static and subscribed channel that is not
// quarantined.
func (b *Broadcaster) NotifyChannels(ctx context.Context, src MessageSource) (Result, error) {
	return b.Broadcast(ctx, b.Channels(ctx), src)
}

// NotifyPublic sends src to public channels only.
func (b *Broadcaster) NotifyPublic(ctx context.Context, src MessageSource) (Result, error) {
	var public []messenger.Channel
	for _, ch := range b.Channels(ctx) {
		if ch.IsPublic() {
			public = append(public, ch)
		}
	}
	return b.Broadcast(ctx, public, src)
}

// Channels resolves the current destination list: static ∪ subscribed minus
// quarantined, public channels first and the rest shuffled. Resolution
// problems are logged; the static list always survives.
func (b *Broadcaster) Channels(ctx context.Context) []messenger.Channel {
	seen := make(map[string]bool)
	var public, private []messenger.Channel
	add := func(ch messenger.Channel) {
		if seen[ch.Key()] {
			return
		}
		seen[ch.Key()] = true
		if ch.IsPublic() {
			public = append(public, ch)
		} else {
			private = append(private, ch)
		}
	}

	for _, ch := range b.cfg.Static {
		ch.Static = true
		add(ch)
	}

	if b.settings != nil {
		dynamic, err := b.settings.ActiveChannels(ctx)
		if err != nil {
			b.logger.Error("load subscribers", "error", err)
		}
		perPlatform := make(map[messenger.Platform]int)
		quarantined := b.quarantined(ctx)
		for _, ch := range dynamic {
			if quarantined[ch.Key()] {
				continue
			}
			perPlatform[ch.Platform]++
			add(ch)
		}
		for p, n := range perPlatform {
			metrics.SubscribersActive.WithLabelValues(string(p)).Set(float64(n))
		}
	}

	b.shuffle(len(private), func(i, j int) { private[i], private[j] = private[j], private[i] })
	return append(public, private...)
}

func (b *Broadcaster) quarantined(ctx context.Context) map[string]bool {
	members, err := b.store.SMembers(ctx, QuarantineKey)
	if err != nil {
		b.logger.Error("load quarantine list", "error", err)
		return nil
	}
	metrics.QuarantinedChannels.Set(float64(len(members)))
	out := make(map[string]bool, len(members))
	for _, m := range members {
		out[m] = true
	}
	return out
}

// Broadcast delivers src to channels in order. Only one broadcast runs at a
// time. The returned error is non-nil only when ctx ends the run early.
func (b *Broadcaster) Broadcast(ctx context.Context, channels []messenger.Channel, src MessageSource) (res Result, err error) {
	start := time.Now()
	b.mu.Lock()
	defer b.mu.Unlock()

	res = Result{ID: uuid.NewString(), Total: len(channels)}
	logger := b.logger.With("broadcast", res.ID)
	logger.Info("broadcast started", "channels", len(channels))

	defer func() {
		res.Duration = time.Since(start)
		metrics.BroadcastDuration.Observe(res.Duration.Seconds())
	}()

	for _, ch := range channels {
		if err := ctx.Err(); err != nil {
			logger.Warn("broadcast interrupted", "error", err, "delivered", res.Delivered)
			return res, err
		}

		out := b.deliver(ctx, logger.With("channel", ch.Key()), ch, src)
		metrics.DeliveriesTotal.WithLabelValues(string(ch.Platform), string(out)).Inc()
		switch out {
		case outcomeDelivered:
			res.Delivered++
		case outcomeQuarantined:
			res.Quarantined++
		case outcomeSkipped:
			res.Skipped++
		default:
			res.Failed++
		}
	}

	logger.Info("broadcast finished",
		"delivered", res.Delivered,
		"failed", res.Failed,
		"quarantined", res.Quarantined,
		"skipped", res.Skipped,
	)
	return res, nil
}

func (b *Broadcaster) deliver(ctx context.Context, logger *slog.Logger, ch messenger.Channel, src MessageSource) outcome {
	adapter, ok := b.adapters[ch.Platform]
	if !ok {
		logger.Warn("no adapter for platform")
		return outcomeFailed
	}

	f := b.locales.Get(ch.Lang)
	msg, err := render(ctx, src, ch, f)
	if err != nil {
		logger.Error("render message", "error", err)
		return outcomeFailed
	}
	if msg.IsEmpty() {
		return outcomeSkipped
	}

	if !ch.IsPublic() {
		verdict, err := b.userLimiter(ch).Hit(ctx)
		switch {
		case err != nil:
			logger.Error("personal rate limit", "error", err)
		case verdict == cooldown.HitLimit:
			logger.Warn("personal rate limit reached, sending warning")
			msg = Message{Kind: KindText, Text: f.RateLimitWarning()}
		case verdict == cooldown.Suppressed:
			logger.Info("personal rate limit suppressed message")
			return outcomeSkipped
		}
	}

	if err := b.pacer.Wait(ctx); err != nil {
		return outcomeFailed
	}

	err = dispatch(ctx, adapter, ch.ID, msg.Clone())
	if wait, ok := messenger.RetryAfter(err); ok {
		logger.Warn("flood limit exceeded, retrying", "retry_after", wait)
		metrics.DeliveriesTotal.WithLabelValues(string(ch.Platform), "rate_limited").Inc()
		if err := b.sleep(ctx, wait+b.cfg.RetryPadding); err != nil {
			return outcomeFailed
		}
		err = dispatch(ctx, adapter, ch.ID, msg.Clone())
	}

	switch {
	case err == nil:
		return outcomeDelivered
	case errors.Is(err, messenger.ErrChannelInactive) && ch.Static:
		logger.Error("configured channel inactive, check STATIC_CHANNELS", "error", err)
		return outcomeFailed
	case errors.Is(err, messenger.ErrChannelInactive):
		logger.Warn("channel inactive, quarantining", "error", err)
		b.quarantine(ctx, logger, ch)
		return outcomeQuarantined
	default:
		logger.Error("send failed", "error", err)
		return outcomeFailed
	}
}

func (b *Broadcaster) userLimiter(ch messenger.Channel) *cooldown.RateLimiter {
	return cooldown.NewRateLimiter(b.store, "Broadcast:"+ch.Key(),
		b.cfg.UserMaxHits, b.cfg.UserWindow, b.cfg.UserSuppress, cooldown.WithClock(b.now))
}

func (b *Broadcaster) quarantine(ctx context.Context, logger *slog.Logger, ch messenger.Channel) {
	if err := b.store.SAdd(ctx, QuarantineKey, ch.Key()); err != nil {
		logger.Error("add to quarantine", "error", err)
	}
	if b.settings != nil {
		if err := b.settings.Deactivate(ctx, ch); err != nil {
			logger.Error("deactivate channel", "error", err)
		}
	}
}

// Restore lifts the quarantine of ch, e.g. after the user subscribes again.
func (b *Broadcaster) Restore(ctx context.Context, ch messenger.Channel) error {
	if err := b.store.SRem(ctx, QuarantineKey, ch.Key()); err != nil {
		return fmt.Errorf("restore channel %s: %w", ch.Key(), err)
	}
	return nil
}

// IsQuarantined reports whether ch is excluded from delivery.
func (b *Broadcaster) IsQuarantined(ctx context.Context, ch messenger.Channel) (bool, error) {
	ok, err := b.store.SIsMember(ctx, QuarantineKey, ch.Key())
	if err != nil {
		return false, fmt.Errorf("check quarantine %s: %w", ch.Key(), err)
	}
	return ok, nil
}

func render(ctx context.Context, src MessageSource, ch messenger.Channel, f locale.Formatter) (msg Message, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return src.Render(ctx, ch, f)
}

func dispatch(ctx context.Context, a messenger.Adapter, channelID string, msg Message) error {
	switch msg.Kind {
	case KindPhoto:
		return a.SendPhoto(ctx, channelID, msg.Photo, msg.PhotoName, msg.Text)
	case KindSticker:
		return a.SendSticker(ctx, channelID, msg.StickerID)
	default:
		return a.SendText(ctx, channelID, msg.Text)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
