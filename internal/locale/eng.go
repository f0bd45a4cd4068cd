package locale

import (
	"fmt"
	"strings"
	"time"
)

// English is the default formatter.
type English struct{}

var engMilestoneNames = map[string]string{
	"block_height": "Block height",
	"age":          "Chain age",
}

func (English) Lang() string { return LangEnglish }

func (English) RateLimitWarning() string {
	return "⚠️ You are receiving too many messages. Notifications are paused for a while."
}

func (English) Welcome() string {
	return "👋 Subscribed to chain alerts. Send /stop to unsubscribe, /lang rus to switch language."
}

func (English) Goodbye() string { return "You are unsubscribed. Send /start to come back." }

func (English) LanguageSet() string { return "Language set to English." }

func (English) UnknownCommand() string {
	return "Commands: /start, /stop, /lang eng|rus"
}

func (English) Milestone(key string, milestone, previous float64) string {
	name := milestoneName(engMilestoneNames, key)
	if key == "age" {
		return fmt.Sprintf("🎂 <b>%s</b>: %s years!", name, shortNumber(milestone))
	}
	return fmt.Sprintf("🏆 <b>%s</b> passed %s (previous milestone %s)",
		name, shortNumber(milestone), shortNumber(previous))
}

func (English) PriceDrop(symbol string, from, to, dropPct float64) string {
	return fmt.Sprintf("📉 <b>%s</b> dropped %s: %s → %s", symbol, percent(dropPct), price(from), price(to))
}

func (English) BlockStuck(height uint64, stalled time.Duration) string {
	return fmt.Sprintf("🛑 No new blocks for %s. Last height %d.", roundDuration(stalled), height)
}

func (English) BlockResumed(height uint64, stalled time.Duration) string {
	return fmt.Sprintf("✅ Block production resumed at %d after %s.", height, roundDuration(stalled))
}

func (English) Sentiment(value int, class string) string {
	return fmt.Sprintf("🧭 Fear &amp; Greed index is %d (%s)", value, class)
}

func (English) Liquidation(symbol, side string, p, qty, usd float64) string {
	pos := "long"
	if strings.EqualFold(side, "BUY") {
		pos = "short"
	}
	return fmt.Sprintf("💥 %s %s liquidated: %s @ %s ($%s)", symbol, pos, shortNumber(qty), price(p), shortNumber(usd))
}

func (English) DigestHeader(day time.Time) string {
	return fmt.Sprintf("📋 <b>Source health, %s</b>", day.Format("2006-01-02"))
}

func (English) DigestLine(source string, ticks int, successRate float64) string {
	return fmt.Sprintf("• %s: %d ticks, %s ok", source, ticks, percent(successRate))
}

func milestoneName(names map[string]string, key string) string {
	if n, ok := names[key]; ok {
		return n
	}
	if sym, ok := strings.CutPrefix(key, "price:"); ok {
		return sym
	}
	return key
}
