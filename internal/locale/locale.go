// Package locale renders user-facing text. One Formatter per language; the
// Manager picks one by language tag.
package locale

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	LangEnglish = "eng"
	LangRussian = "rus"
)

// Formatter produces every message the bot can send, in one language.
type Formatter interface {
	Lang() string

	RateLimitWarning() string
	Welcome() string
	Goodbye() string
	LanguageSet() string
	UnknownCommand() string

	Milestone(key string, milestone, previous float64) string
	PriceDrop(symbol string, from, to, dropPct float64) string
	BlockStuck(height uint64, stalled time.Duration) string
	BlockResumed(height uint64, stalled time.Duration) string
	Sentiment(value int, class string) string
	Liquidation(symbol, side string, price, qty, usd float64) string
	DigestHeader(day time.Time) string
	DigestLine(source string, ticks int, successRate float64) string
}

// Manager holds the formatters of all supported languages.
type Manager struct {
	def        string
	formatters map[string]Formatter
}

// NewManager registers fs; defaultLang must be one of them.
func NewManager(defaultLang string, fs ...Formatter) (*Manager, error) {
	m := &Manager{def: defaultLang, formatters: make(map[string]Formatter, len(fs))}
	for _, f := range fs {
		m.formatters[f.Lang()] = f
	}
	if _, ok := m.formatters[defaultLang]; !ok {
		return nil, fmt.Errorf("default language %q has no formatter", defaultLang)
	}
	return m, nil
}

// Default returns a manager with English and Russian, English by default.
func Default() *Manager {
	m, _ := NewManager(LangEnglish, English{}, Russian{})
	return m
}

// Get returns the formatter for lang, falling back to the default language.
func (m *Manager) Get(lang string) Formatter {
	if f, ok := m.formatters[Normalize(lang)]; ok {
		return f
	}
	return m.formatters[m.def]
}

// Supported reports whether lang has its own formatter.
func (m *Manager) Supported(lang string) bool {
	_, ok := m.formatters[Normalize(lang)]
	return ok
}

// DefaultLang returns the fallback language tag.
func (m *Manager) DefaultLang() string { return m.def }

// Languages returns the supported tags, sorted.
func (m *Manager) Languages() []string {
	out := make([]string, 0, len(m.formatters))
	for l := range m.formatters {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Normalize maps two-letter codes to the three-letter tags used here.
func Normalize(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	switch lang {
	case "en", "english":
		return LangEnglish
	case "ru", "russian":
		return LangRussian
	}
	return lang
}

// shortNumber renders 1234567 as 1.23M.
func shortNumber(v float64) string {
	d := decimal.NewFromFloat(v)
	abs := d.Abs()
	for _, u := range []struct {
		div    int64
		suffix string
	}{
		{1_000_000_000_000, "T"},
		{1_000_000_000, "B"},
		{1_000_000, "M"},
		{1_000, "K"},
	} {
		div := decimal.NewFromInt(u.div)
		if abs.GreaterThanOrEqual(div) {
			return d.Div(div).Round(2).String() + u.suffix
		}
	}
	return d.Round(2).String()
}

// price renders a quote with two decimals, or more for sub-dollar values.
func price(v float64) string {
	d := decimal.NewFromFloat(v)
	if d.Abs().LessThan(decimal.NewFromInt(1)) {
		return d.Round(6).String()
	}
	return d.StringFixed(2)
}

func percent(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(1) + "%"
}

func roundDuration(d time.Duration) time.Duration {
	if d >= time.Minute {
		return d.Round(time.Minute)
	}
	return d.Round(time.Second)
}
