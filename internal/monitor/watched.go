package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/web3-frozen/chainwatch/internal/delegate"
	"github.com/web3-frozen/chainwatch/internal/metrics"
)

// MaxStartupDelay caps the random delay before a source's first tick.
const MaxStartupDelay = 60 * time.Second

// WatchedSource runs a Fetcher on a fixed period and publishes every payload
// to its listeners. A failing tick is counted and logged, never fatal.
type WatchedSource struct {
	delegate.Delegates

	fetcher      Fetcher
	logger       *slog.Logger
	name         string
	sleepPeriod  time.Duration
	initialDelay time.Duration
	createdAt    time.Time

	mu            sync.RWMutex
	lastTimestamp time.Time
	lastError     string
	lastData      any
	errorCount    int
	totalTicks    int
}

// NewWatchedSource wraps f and registers it with reg. A negative sleepPeriod
// disables the source: Run returns immediately.
func NewWatchedSource(reg *Registry, f Fetcher, sleepPeriod time.Duration, logger *slog.Logger) *WatchedSource {
	s := &WatchedSource{
		fetcher:      f,
		logger:       logger.With("source", f.Name()),
		name:         f.Name(),
		sleepPeriod:  sleepPeriod,
		initialDelay: startupJitter(sleepPeriod),
		createdAt:    time.Now(),
	}
	if reg != nil {
		reg.Register(s)
	}
	return s
}

func startupJitter(period time.Duration) time.Duration {
	limit := min(MaxStartupDelay, period)
	if limit <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(limit + 1)))
}

// Name returns the fetcher name, which identifies the source in the registry.
func (s *WatchedSource) Name() string { return s.name }

// NodeName names the source after its fetcher type in the publish graph.
func (s *WatchedSource) NodeName() string { return delegate.TypeName(s.fetcher) }

// Fetcher returns the wrapped fetcher.
func (s *WatchedSource) Fetcher() Fetcher { return s.fetcher }

func (s *WatchedSource) SleepPeriod() time.Duration  { return s.sleepPeriod }
func (s *WatchedSource) InitialDelay() time.Duration { return s.initialDelay }

// Run blocks until ctx is cancelled.
func (s *WatchedSource) Run(ctx context.Context) {
	if s.sleepPeriod < 0 {
		s.logger.Info("source disabled")
		return
	}

	s.logger.Info("waiting before first tick", "delay", s.initialDelay.Round(time.Millisecond))
	if !sleep(ctx, s.initialDelay) {
		return
	}
	s.logger.Info("source started", "period", s.sleepPeriod)

	for {
		s.RunOnce(ctx)
		if !sleep(ctx, s.sleepPeriod) {
			s.logger.Info("source stopped")
			return
		}
	}
}

// RunOnce performs a single fetch → publish → post-action tick.
func (s *WatchedSource) RunOnce(ctx context.Context) {
	start := time.Now()
	err := s.tick(ctx)
	metrics.PollDuration.WithLabelValues(s.name).Observe(time.Since(start).Seconds())

	s.mu.Lock()
	s.totalTicks++
	s.lastTimestamp = time.Now()
	if err != nil {
		s.errorCount++
		s.lastError = err.Error()
	}
	s.mu.Unlock()

	if err == nil {
		metrics.PollTotal.WithLabelValues(s.name, "success").Inc()
		metrics.PollLastSuccess.WithLabelValues(s.name).SetToCurrentTime()
		return
	}

	metrics.PollTotal.WithLabelValues(s.name, "error").Inc()
	s.logger.Error("tick failed", "error", err)
	s.handleError(ctx, err)
}

func (s *WatchedSource) tick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	data, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	s.mu.Lock()
	s.lastData = data
	s.mu.Unlock()

	if err := s.Publish(ctx, s, data); err != nil {
		metrics.ListenerErrorsTotal.WithLabelValues(s.name).Inc()
		return fmt.Errorf("publish: %w", err)
	}

	if pa, ok := s.fetcher.(PostActioner); ok {
		if err := pa.PostAction(ctx, data); err != nil {
			return fmt.Errorf("post action: %w", err)
		}
	}
	return nil
}

func (s *WatchedSource) handleError(ctx context.Context, err error) {
	h, ok := s.fetcher.(ErrorHandler)
	if !ok {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("error handler panicked", "panic", r)
		}
	}()
	h.HandleError(ctx, err)
}

// Stats is a point-in-time view of a source's health.
type Stats struct {
	Name          string    `json:"name"`
	SleepPeriod   string    `json:"sleep_period"`
	InitialDelay  string    `json:"initial_delay"`
	Disabled      bool      `json:"disabled"`
	CreatedAt     time.Time `json:"created_at"`
	LastTimestamp time.Time `json:"last_timestamp"`
	LastError     string    `json:"last_error,omitempty"`
	ErrorCount    int       `json:"error_count"`
	TotalTicks    int       `json:"total_ticks"`
	SuccessRate   float64   `json:"success_rate"`
}

// Stats returns the current counters.
func (s *WatchedSource) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		Name:          s.name,
		SleepPeriod:   s.sleepPeriod.String(),
		InitialDelay:  s.initialDelay.Round(time.Millisecond).String(),
		Disabled:      s.sleepPeriod < 0,
		CreatedAt:     s.createdAt,
		LastTimestamp: s.lastTimestamp,
		LastError:     s.lastError,
		ErrorCount:    s.errorCount,
		TotalTicks:    s.totalTicks,
		SuccessRate:   successRate(s.totalTicks, s.errorCount),
	}
}

// LastData returns the payload of the last successful fetch, or nil.
func (s *WatchedSource) LastData() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastData
}

func successRate(total, errs int) float64 {
	if total == 0 {
		return 100
	}
	return float64(total-errs) / float64(total) * 100
}

// sleep waits for d or until ctx is done; it reports whether ctx is still live.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
