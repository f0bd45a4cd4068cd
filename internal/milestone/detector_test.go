package milestone

import (
	"context"
	"log/slog"
	"math/rand"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/web3-frozen/chainwatch/internal/kv"
)

func setupTestDetector(t *testing.T, configs map[string]Config) (*Detector, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	store, err := kv.New("redis://"+mr.Addr(), "")
	if err != nil {
		t.Fatalf("kv.New: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	d, err := NewDetector(store, slog.Default(), configs)
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	return d, mr
}

func mustFeed(t *testing.T, d *Detector, key string, v float64) *Event {
	t.Helper()
	ev, err := d.Feed(context.Background(), key, v)
	if err != nil {
		t.Fatalf("Feed(%s, %v): %v", key, v, err)
	}
	return ev
}

func TestFeedDAUScenario(t *testing.T) {
	d, _ := setupTestDetector(t, map[string]Config{
		"dau": {Progression: Default, Minimum: 300},
	})

	if ev := mustFeed(t, d, "dau", 250); ev != nil {
		t.Errorf("250 below minimum produced %+v", ev)
	}
	if ev := mustFeed(t, d, "dau", 310); ev != nil {
		t.Errorf("first observation produced %+v", ev)
	}
	rec, _ := d.Record(context.Background(), "dau")
	if rec == nil || rec.Milestone != 200 {
		t.Fatalf("seed record = %+v, want milestone 200", rec)
	}

	ev := mustFeed(t, d, "dau", 640)
	if ev == nil {
		t.Fatal("640 produced no event")
	}
	if ev.Milestone != 500 || ev.PreviousMilestone != 200 {
		t.Errorf("event = %v→%v, want 200→500", ev.PreviousMilestone, ev.Milestone)
	}

	if ev := mustFeed(t, d, "dau", 980); ev != nil {
		t.Errorf("980 re-announced %+v", ev)
	}
}

func TestFeedFirstObservationSilent(t *testing.T) {
	d, _ := setupTestDetector(t, nil)
	if ev := mustFeed(t, d, "fresh", 123456); ev != nil {
		t.Errorf("first Feed returned %+v, want nil", ev)
	}
}

func TestFeedSameValueTwice(t *testing.T) {
	d, _ := setupTestDetector(t, nil)
	mustFeed(t, d, "k", 10)
	first := mustFeed(t, d, "k", 25)
	if first == nil || first.Milestone != 20 {
		t.Fatalf("Feed(25) = %+v, want milestone 20", first)
	}
	if again := mustFeed(t, d, "k", 25); again != nil {
		t.Errorf("second Feed(25) = %+v, want nil", again)
	}
}

func TestFeedDropThenRiseDoesNotReannounce(t *testing.T) {
	d, _ := setupTestDetector(t, nil)
	mustFeed(t, d, "k", 100)
	if ev := mustFeed(t, d, "k", 210); ev == nil || ev.Milestone != 200 {
		t.Fatalf("Feed(210) = %+v, want milestone 200", ev)
	}
	mustFeed(t, d, "k", 90)
	if ev := mustFeed(t, d, "k", 220); ev != nil {
		t.Errorf("recovering to 220 re-announced %+v", ev)
	}
}

func TestFeedMonotonic(t *testing.T) {
	d, _ := setupTestDetector(t, map[string]Config{
		"blocks": {Progression: EveryDigit},
	})
	rng := rand.New(rand.NewSource(7))

	for _, key := range []string{"plain", "blocks"} {
		cfg := d.Config(key)
		value := 1.0
		last := 0.0
		for i := 0; i < 500; i++ {
			value += rng.Float64() * value * 0.2
			ev := mustFeed(t, d, key, value)
			if ev == nil {
				continue
			}
			if ev.Milestone < last {
				t.Fatalf("%s: milestone went down %v -> %v", key, last, ev.Milestone)
			}
			if !cfg.Progression.Contains(ev.Milestone) {
				t.Fatalf("%s: milestone %v not a candidate", key, ev.Milestone)
			}
			last = ev.Milestone
		}
		if last == 0 {
			t.Errorf("%s: no events over a growing series", key)
		}
	}
}

func TestFeedRecordsPrevious(t *testing.T) {
	d, _ := setupTestDetector(t, nil)
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return t0 }
	mustFeed(t, d, "k", 10)

	t1 := t0.Add(time.Hour)
	d.now = func() time.Time { return t1 }
	ev := mustFeed(t, d, "k", 55)
	if ev == nil {
		t.Fatal("Feed(55) = nil")
	}
	if !ev.PreviousTimestamp.Equal(t0) || !ev.Timestamp.Equal(t1) {
		t.Errorf("timestamps = %v, %v; want %v, %v", ev.PreviousTimestamp, ev.Timestamp, t0, t1)
	}

	rec, _ := d.Record(context.Background(), "k")
	if rec.PreviousMilestone != 10 || rec.Milestone != 50 {
		t.Errorf("record = %+v", rec)
	}
}

func TestFeedAnniversaryTransform(t *testing.T) {
	d, _ := setupTestDetector(t, map[string]Config{
		"anniversary": {Progression: EveryDigit, Transform: &Anniversary},
	})
	year := Year.Seconds()

	mustFeed(t, d, "anniversary", 1.5*year)
	ev := mustFeed(t, d, "anniversary", 2.1*year)
	if ev == nil {
		t.Fatal("second year produced no event")
	}
	if ev.Milestone != 2 {
		t.Errorf("Milestone = %v, want 2", ev.Milestone)
	}
	if ev.DisplayValue() != 2*year {
		t.Errorf("DisplayValue = %v, want %v", ev.DisplayValue(), 2*year)
	}
}

func TestFeedCorruptRecordTreatedAsFirst(t *testing.T) {
	d, mr := setupTestDetector(t, nil)
	_ = mr.Set("Achievements:k", "{not json")
	if ev := mustFeed(t, d, "k", 500); ev != nil {
		t.Errorf("Feed over corrupt record = %+v, want nil", ev)
	}
	rec, _ := d.Record(context.Background(), "k")
	if rec == nil || rec.Milestone != 500 {
		t.Errorf("record after reseed = %+v", rec)
	}
}

func TestFeedStoreErrorPropagates(t *testing.T) {
	d, mr := setupTestDetector(t, nil)
	mr.Close()
	if _, err := d.Feed(context.Background(), "k", 10); err == nil {
		t.Error("Feed with redis down returned nil error")
	}
}

func TestNewDetectorRejectsBadProgression(t *testing.T) {
	_, err := NewDetector(nil, slog.Default(), map[string]Config{
		"bad": {Progression: Progression{5, 2}},
	})
	if err == nil {
		t.Error("NewDetector accepted a descending progression")
	}
}
