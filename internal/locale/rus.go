package locale

import (
	"fmt"
	"strings"
	"time"
)

type Russian struct{}

var rusMilestoneNames = map[string]string{
	"block_height": "Высота блока",
	"age":          "Возраст сети",
}

func (Russian) Lang() string { return LangRussian }

func (Russian) RateLimitWarning() string {
	return "⚠️ Слишком много сообщений. Уведомления приостановлены на время."
}

func (Russian) Welcome() string {
	return "👋 Вы подписаны на оповещения. /stop — отписаться, /lang eng — сменить язык."
}

func (Russian) Goodbye() string { return "Вы отписаны. Отправьте /start, чтобы вернуться." }

func (Russian) LanguageSet() string { return "Язык: русский." }

func (Russian) UnknownCommand() string {
	return "Команды: /start, /stop, /lang eng|rus"
}

func (Russian) Milestone(key string, milestone, previous float64) string {
	name := milestoneName(rusMilestoneNames, key)
	if key == "age" {
		return fmt.Sprintf("🎂 <b>%s</b>: %s лет!", name, shortNumber(milestone))
	}
	return fmt.Sprintf("🏆 <b>%s</b> превысила %s (прошлая отметка %s)",
		name, shortNumber(milestone), shortNumber(previous))
}

func (Russian) PriceDrop(symbol string, from, to, dropPct float64) string {
	return fmt.Sprintf("📉 <b>%s</b> упал на %s: %s → %s", symbol, percent(dropPct), price(from), price(to))
}

func (Russian) BlockStuck(height uint64, stalled time.Duration) string {
	return fmt.Sprintf("🛑 Нет новых блоков уже %s. Последняя высота %d.", roundDuration(stalled), height)
}

func (Russian) BlockResumed(height uint64, stalled time.Duration) string {
	return fmt.Sprintf("✅ Блоки снова идут: высота %d, простой %s.", height, roundDuration(stalled))
}

func (Russian) Sentiment(value int, class string) string {
	return fmt.Sprintf("🧭 Индекс страха и жадности: %d (%s)", value, class)
}

func (Russian) Liquidation(symbol, side string, p, qty, usd float64) string {
	pos := "лонг"
	if strings.EqualFold(side, "BUY") {
		pos = "шорт"
	}
	return fmt.Sprintf("💥 %s: ликвидирован %s %s @ %s ($%s)", symbol, pos, shortNumber(qty), price(p), shortNumber(usd))
}

func (Russian) DigestHeader(day time.Time) string {
	return fmt.Sprintf("📋 <b>Состояние источников, %s</b>", day.Format("02.01.2006"))
}

func (Russian) DigestLine(source string, ticks int, successRate float64) string {
	return fmt.Sprintf("• %s: %d опросов, успешно %s", source, ticks, percent(successRate))
}
