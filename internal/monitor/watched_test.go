package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/web3-frozen/chainwatch/internal/delegate"
)

// mockFetcher implements Fetcher for testing.
type mockFetcher struct {
	name string
	data any
	err  error

	mu         sync.Mutex
	calls      int
	postData   []any
	handledErr []error
}

func (m *mockFetcher) Name() string { return m.name }

func (m *mockFetcher) Fetch(context.Context) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.data, nil
}

func (m *mockFetcher) PostAction(_ context.Context, data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.postData = append(m.postData, data)
	return nil
}

func (m *mockFetcher) HandleError(_ context.Context, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handledErr = append(m.handledErr, err)
}

type panicFetcher struct{}

func (panicFetcher) Name() string                        { return "panicky" }
func (panicFetcher) Fetch(context.Context) (any, error) { panic("nil map") }

type sink struct {
	got []any
}

func (s *sink) OnData(_ context.Context, _ any, data any) error {
	s.got = append(s.got, data)
	return nil
}

func TestRunOnceSuccess(t *testing.T) {
	f := &mockFetcher{name: "ok", data: 42}
	src := NewWatchedSource(nil, f, time.Minute, slog.Default())
	out := &sink{}
	src.Subscribe(out)

	src.RunOnce(context.Background())

	if len(out.got) != 1 || out.got[0] != 42 {
		t.Errorf("listener got %v, want [42]", out.got)
	}
	if len(f.postData) != 1 || f.postData[0] != 42 {
		t.Errorf("PostAction got %v, want [42]", f.postData)
	}
	st := src.Stats()
	if st.TotalTicks != 1 || st.ErrorCount != 0 || st.SuccessRate != 100 {
		t.Errorf("stats = %+v", st)
	}
	if st.LastTimestamp.IsZero() {
		t.Error("LastTimestamp not set")
	}
	if src.LastData() != 42 {
		t.Errorf("LastData = %v, want 42", src.LastData())
	}
}

func TestRunOnceFailureIsSwallowed(t *testing.T) {
	boom := errors.New("api down")
	f := &mockFetcher{name: "bad", err: boom}
	src := NewWatchedSource(nil, f, time.Minute, slog.Default())
	out := &sink{}
	src.Subscribe(out)

	src.RunOnce(context.Background())
	src.RunOnce(context.Background())

	if len(out.got) != 0 {
		t.Errorf("listener got %v after failed fetch", out.got)
	}
	if len(f.postData) != 0 {
		t.Error("PostAction ran after failed fetch")
	}
	if len(f.handledErr) != 2 || !errors.Is(f.handledErr[0], boom) {
		t.Errorf("HandleError got %v", f.handledErr)
	}
	st := src.Stats()
	if st.TotalTicks != 2 || st.ErrorCount != 2 || st.SuccessRate != 0 {
		t.Errorf("stats = %+v", st)
	}
	if st.LastError == "" {
		t.Error("LastError empty after failure")
	}
}

func TestRunOnceListenerErrorStillDeliversToOthers(t *testing.T) {
	f := &mockFetcher{name: "fan", data: "x"}
	src := NewWatchedSource(nil, f, time.Minute, slog.Default())
	src.Subscribe(delegate.ListenerFunc(func(context.Context, any, any) error {
		return errors.New("listener failed")
	}))
	out := &sink{}
	src.Subscribe(out)

	src.RunOnce(context.Background())

	if len(out.got) != 1 {
		t.Errorf("second listener got %v, want one payload", out.got)
	}
	if st := src.Stats(); st.ErrorCount != 1 {
		t.Errorf("ErrorCount = %d, want 1", st.ErrorCount)
	}
}

func TestRunOnceRecoversPanic(t *testing.T) {
	src := NewWatchedSource(nil, panicFetcher{}, time.Minute, slog.Default())
	src.RunOnce(context.Background())
	if st := src.Stats(); st.ErrorCount != 1 || st.TotalTicks != 1 {
		t.Errorf("stats after panic = %+v", st)
	}
}

func TestSuccessRate(t *testing.T) {
	tests := []struct {
		total, errs int
		want        float64
	}{
		{0, 0, 100},
		{4, 1, 75},
		{10, 10, 0},
		{3, 0, 100},
	}
	for _, tt := range tests {
		if got := successRate(tt.total, tt.errs); got != tt.want {
			t.Errorf("successRate(%d, %d) = %v, want %v", tt.total, tt.errs, got, tt.want)
		}
	}
}

func TestStartupJitterBounds(t *testing.T) {
	tests := []struct {
		period time.Duration
		max    time.Duration
	}{
		{10 * time.Second, 10 * time.Second},
		{5 * time.Minute, MaxStartupDelay},
		{0, 0},
		{-time.Second, 0},
	}
	for _, tt := range tests {
		for i := 0; i < 200; i++ {
			d := startupJitter(tt.period)
			if d < 0 || d > tt.max {
				t.Fatalf("startupJitter(%v) = %v, want within [0, %v]", tt.period, d, tt.max)
			}
		}
	}
}

func TestRunDisabled(t *testing.T) {
	f := &mockFetcher{name: "off", data: 1}
	src := NewWatchedSource(nil, f, -1, slog.Default())

	done := make(chan struct{})
	go func() {
		src.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run of disabled source did not return")
	}
	if f.calls != 0 {
		t.Errorf("disabled source fetched %d times", f.calls)
	}
	if !src.Stats().Disabled {
		t.Error("Stats().Disabled = false")
	}
}

func TestRunLoopsUntilCancelled(t *testing.T) {
	var ticks atomic.Int32
	src := NewWatchedSource(nil, &mockFetcher{name: "loop", data: 1}, 5*time.Millisecond, slog.Default())
	src.initialDelay = 0
	src.Subscribe(delegate.ListenerFunc(func(context.Context, any, any) error {
		ticks.Add(1)
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		src.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for ticks.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("only %d ticks before deadline", ticks.Load())
		case <-time.After(time.Millisecond):
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
