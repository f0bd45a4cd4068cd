// Package alerts turns source payloads into human-visible alerts. Detectors
// listen to sources, gate conditions through cooldowns and milestone records,
// and publish typed alerts; the Presenter renders and broadcasts them.
package alerts

import (
	"fmt"
	"strings"
	"time"

	"github.com/web3-frozen/chainwatch/internal/locale"
)

// Alert is a detected condition ready to be rendered.
type Alert interface {
	Kind() string
	Render(f locale.Formatter) string
}

// publicOnly alerts go to public channels only.
type publicOnly interface {
	PublicOnly() bool
}

type MilestoneAlert struct {
	Key       string
	Value     float64
	Milestone float64
	Previous  float64
	// Threshold is Milestone in the signal's raw units, e.g. seconds for chain age.
	Threshold float64
}

func (MilestoneAlert) Kind() string { return "milestone" }

func (a MilestoneAlert) Render(f locale.Formatter) string {
	return f.Milestone(a.Key, a.Milestone, a.Previous)
}

type PriceDropAlert struct {
	Pair    string
	From    float64
	To      float64
	DropPct float64
}

func (PriceDropAlert) Kind() string { return "price_drop" }

func (a PriceDropAlert) Render(f locale.Formatter) string {
	return f.PriceDrop(a.Pair, a.From, a.To, a.DropPct)
}

type BlockStuckAlert struct {
	Height  uint64
	Stalled time.Duration
}

func (BlockStuckAlert) Kind() string { return "block_stuck" }

func (a BlockStuckAlert) Render(f locale.Formatter) string {
	return f.BlockStuck(a.Height, a.Stalled)
}

type BlockResumedAlert struct {
	Height  uint64
	Stalled time.Duration
}

func (BlockResumedAlert) Kind() string { return "block_resumed" }

func (a BlockResumedAlert) Render(f locale.Formatter) string {
	return f.BlockResumed(a.Height, a.Stalled)
}

type SentimentAlert struct {
	Value          int
	Classification string
}

func (SentimentAlert) Kind() string { return "sentiment" }

func (a SentimentAlert) Render(f locale.Formatter) string {
	return f.Sentiment(a.Value, a.Classification)
}

type LiquidationAlert struct {
	Symbol   string
	Side     string
	Price    float64
	Quantity float64
	USDValue float64
}

func (LiquidationAlert) Kind() string { return "liquidation" }

func (a LiquidationAlert) Render(f locale.Formatter) string {
	// Formatters expect the order side; a liquidated LONG is a SELL order.
	side := "SELL"
	if a.Side == "SHORT" {
		side = "BUY"
	}
	return f.Liquidation(a.Symbol, side, a.Price, a.Quantity, a.USDValue)
}

type DigestLine struct {
	Source      string
	Ticks       int
	SuccessRate float64
}

// DigestAlert is the periodic source health report.
type DigestAlert struct {
	Day   time.Time
	Lines []DigestLine
}

func (DigestAlert) Kind() string     { return "digest" }
func (DigestAlert) PublicOnly() bool { return true }

func (a DigestAlert) Render(f locale.Formatter) string {
	var b strings.Builder
	b.WriteString(f.DigestHeader(a.Day))
	for _, l := range a.Lines {
		b.WriteByte('\n')
		b.WriteString(f.DigestLine(l.Source, l.Ticks, l.SuccessRate))
	}
	return b.String()
}

func asAlert(data any) (Alert, error) {
	a, ok := data.(Alert)
	if !ok {
		return nil, fmt.Errorf("presenter: unexpected payload %T", data)
	}
	return a, nil
}
