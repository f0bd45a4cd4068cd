package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/web3-frozen/chainwatch/internal/locale"
	"github.com/web3-frozen/chainwatch/internal/messenger"
)

// Subscriptions persists who listens to the bot.
type Subscriptions interface {
	Subscribe(ctx context.Context, ch messenger.Channel) error
	Unsubscribe(ctx context.Context, ch messenger.Channel) error
	SetLanguage(ctx context.Context, ch messenger.Channel, lang string) error
	Language(ctx context.Context, ch messenger.Channel) (string, error)
}

// Bot long-polls for commands: /start subscribes the chat, /stop
// unsubscribes it and /lang switches its language.
type Bot struct {
	client  *Client
	subs    Subscriptions
	locales *locale.Manager
	logger  *slog.Logger
	offset  int64
}

func NewBot(client *Client, subs Subscriptions, locales *locale.Manager, logger *slog.Logger) *Bot {
	return &Bot{client: client, subs: subs, locales: locales, logger: logger}
}

type update struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		From struct {
			Username     string `json:"username"`
			LanguageCode string `json:"language_code"`
		} `json:"from"`
		Text string `json:"text"`
	} `json:"message"`
}

// Run starts the long-polling loop for incoming Telegram messages.
func (b *Bot) Run(ctx context.Context) {
	b.logger.Info("telegram bot started")
	for {
		select {
		case <-ctx.Done():
			return
		default:
			b.poll(ctx)
		}
	}
}

func (b *Bot) poll(ctx context.Context) {
	var updates []update
	err := b.client.callJSON(ctx, "getUpdates", map[string]any{
		"offset":          b.offset,
		"timeout":         30,
		"allowed_updates": []string{"message"},
	}, &updates)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		b.logger.Error("poll updates", "error", err)
		select {
		case <-ctx.Done():
		case <-time.After(5 * time.Second):
		}
		return
	}

	for _, u := range updates {
		b.offset = u.UpdateID + 1
		b.handle(ctx, u)
	}
}

func (b *Bot) handle(ctx context.Context, u update) {
	if u.Message == nil {
		return
	}
	ch := messenger.Channel{
		Platform: messenger.Telegram,
		ID:       strconv.FormatInt(u.Message.Chat.ID, 10),
	}
	cmd, arg, _ := strings.Cut(strings.TrimSpace(u.Message.Text), " ")
	// Commands in groups arrive as /start@botname.
	cmd, _, _ = strings.Cut(cmd, "@")

	switch cmd {
	case "/start":
		ch.Lang = b.guessLang(u.Message.From.LanguageCode)
		if err := b.subs.Subscribe(ctx, ch); err != nil {
			b.logger.Error("subscribe", "chat", ch.ID, "error", err)
			return
		}
		b.logger.Info("chat subscribed", "chat", ch.ID, "username", u.Message.From.Username)
		b.reply(ctx, ch, func(f locale.Formatter) string { return f.Welcome() })
	case "/stop":
		ch.Lang = b.lang(ctx, ch)
		if err := b.subs.Unsubscribe(ctx, ch); err != nil {
			b.logger.Error("unsubscribe", "chat", ch.ID, "error", err)
			return
		}
		b.reply(ctx, ch, func(f locale.Formatter) string { return f.Goodbye() })
	case "/lang":
		lang := locale.Normalize(arg)
		if !b.locales.Supported(lang) {
			ch.Lang = b.lang(ctx, ch)
			b.reply(ctx, ch, func(f locale.Formatter) string { return f.UnknownCommand() })
			return
		}
		if err := b.subs.SetLanguage(ctx, ch, lang); err != nil {
			b.logger.Error("set language", "chat", ch.ID, "error", err)
			return
		}
		ch.Lang = lang
		b.reply(ctx, ch, func(f locale.Formatter) string { return f.LanguageSet() })
	default:
		if strings.HasPrefix(cmd, "/") {
			ch.Lang = b.lang(ctx, ch)
			b.reply(ctx, ch, func(f locale.Formatter) string { return f.UnknownCommand() })
		}
	}
}

func (b *Bot) guessLang(code string) string {
	if l := locale.Normalize(code); b.locales.Supported(l) {
		return l
	}
	return b.locales.DefaultLang()
}

func (b *Bot) lang(ctx context.Context, ch messenger.Channel) string {
	l, err := b.subs.Language(ctx, ch)
	if err != nil || l == "" {
		return b.locales.DefaultLang()
	}
	return l
}

func (b *Bot) reply(ctx context.Context, ch messenger.Channel, text func(locale.Formatter) string) {
	if err := b.client.SendText(ctx, ch.ID, text(b.locales.Get(ch.Lang))); err != nil {
		b.logger.Error("reply", "chat", ch.ID, "error", fmt.Errorf("send: %w", err))
	}
}
