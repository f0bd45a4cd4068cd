package alerts

import (
	"log/slog"
	"testing"
	"time"

	"github.com/web3-frozen/chainwatch/internal/milestone"
	"github.com/web3-frozen/chainwatch/internal/monitor/sources"
)

func newTestAchievements(t *testing.T, genesis time.Time) (*Achievements, *recorder) {
	t.Helper()
	d, err := milestone.NewDetector(setupTestStore(t), slog.Default(), DefaultMilestones())
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	a := NewAchievements(d, genesis, slog.Default())
	rec := &recorder{}
	a.Subscribe(rec)
	return a, rec
}

func TestAchievementsBlockHeight(t *testing.T) {
	a, rec := newTestAchievements(t, time.Time{})
	ctx := testContext(t)

	steps := []struct {
		height    uint64
		wantAlert bool
		milestone float64
		previous  float64
	}{
		{900_000, false, 0, 0},             // below minimum
		{1_500_000, false, 0, 0},           // seeds 1M
		{1_900_000, false, 0, 0},           // still 1M
		{2_100_000, true, 2_000_000, 1_000_000},
		{4_050_000, true, 4_000_000, 2_000_000},
	}
	for _, s := range steps {
		if err := a.OnData(ctx, nil, sources.BlockHeight{Number: s.height}); err != nil {
			t.Fatalf("OnData(%d): %v", s.height, err)
		}
		got := rec.take()
		if !s.wantAlert {
			if len(got) != 0 {
				t.Errorf("height %d: unexpected alerts %v", s.height, got)
			}
			continue
		}
		if len(got) != 1 {
			t.Fatalf("height %d: alerts = %v, want one", s.height, got)
		}
		m := got[0].(MilestoneAlert)
		if m.Key != KeyBlockHeight || m.Milestone != s.milestone || m.Previous != s.previous || m.Threshold != s.milestone {
			t.Errorf("height %d: alert = %+v", s.height, m)
		}
	}
}

func TestAchievementsChainAge(t *testing.T) {
	genesis := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	a, rec := newTestAchievements(t, genesis)
	ctx := testContext(t)

	at := func(years float64) sources.BlockHeight {
		return sources.BlockHeight{Number: 10, BlockTime: genesis.Add(time.Duration(years * float64(milestone.Year)))}
	}

	if err := a.OnData(ctx, nil, at(2.5)); err != nil {
		t.Fatal(err)
	}
	if got := rec.take(); len(got) != 0 {
		t.Errorf("seed produced alerts: %v", got)
	}
	if err := a.OnData(ctx, nil, at(3.1)); err != nil {
		t.Fatal(err)
	}
	got := rec.take()
	if len(got) != 1 {
		t.Fatalf("alerts = %v, want one", got)
	}
	if m := got[0].(MilestoneAlert); m.Key != KeyChainAge || m.Milestone != 3 || m.Previous != 2 {
		t.Errorf("alert = %+v, want age 2 -> 3", m)
	}
	if m := got[0].(MilestoneAlert); m.Threshold != 3*milestone.Year.Seconds() {
		t.Errorf("threshold = %v, want three years in seconds", m.Threshold)
	}
}

func TestAchievementsPrices(t *testing.T) {
	a, rec := newTestAchievements(t, time.Time{})
	ctx := testContext(t)

	feed := func(p float64) {
		t.Helper()
		if err := a.OnData(ctx, nil, sources.Prices{Quotes: map[string]float64{"BTCUSDT": p}}); err != nil {
			t.Fatal(err)
		}
	}
	feed(95_000)
	feed(99_000)
	if got := rec.take(); len(got) != 0 {
		t.Errorf("unexpected alerts %v", got)
	}
	feed(101_000)
	got := rec.take()
	if len(got) != 1 || got[0].(MilestoneAlert).Key != "price:BTCUSDT" || got[0].(MilestoneAlert).Milestone != 100_000 {
		t.Errorf("alerts = %v, want BTCUSDT 100000", got)
	}
}

func TestAchievementsIgnoresOtherPayloads(t *testing.T) {
	a, rec := newTestAchievements(t, time.Time{})
	if err := a.OnData(testContext(t), nil, "unrelated"); err != nil {
		t.Fatal(err)
	}
	if len(rec.take()) != 0 {
		t.Error("alert for unrelated payload")
	}
}
