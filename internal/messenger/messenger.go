// Package messenger describes delivery destinations and the adapter contract
// every chat platform implements. Platform clients live in subpackages.
package messenger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Platform string

const (
	Telegram Platform = "telegram"
	Discord  Platform = "discord"
	Slack    Platform = "slack"
)

// ParsePlatform accepts the lower-case platform name.
func ParsePlatform(s string) (Platform, error) {
	switch p := Platform(strings.ToLower(strings.TrimSpace(s))); p {
	case Telegram, Discord, Slack:
		return p, nil
	}
	return "", fmt.Errorf("unknown platform %q", s)
}

// Channel is one delivery destination.
type Channel struct {
	Platform Platform `json:"platform"`
	ID       string   `json:"id"`
	Lang     string   `json:"lang"`
	// Static channels come from configuration rather than a subscription.
	Static bool `json:"static"`
}

// Key identifies the destination across platforms.
func (c Channel) Key() string {
	return string(c.Platform) + ":" + c.ID
}

func (c Channel) String() string { return c.Key() }

// IsPublic reports whether the destination is a shared channel rather than
// a single user. Telegram user chats have positive numeric ids; groups and
// channels are negative or addressed by @name. Discord and Slack ids always
// name a channel.
func (c Channel) IsPublic() bool {
	if c.Static || c.Platform != Telegram {
		return true
	}
	n, err := strconv.ParseInt(c.ID, 10, 64)
	if err != nil {
		return true
	}
	return n < 0
}

// Adapter sends messages to one platform.
type Adapter interface {
	Platform() Platform
	SendText(ctx context.Context, channelID, text string) error
	SendPhoto(ctx context.Context, channelID string, photo []byte, name, caption string) error
	SendSticker(ctx context.Context, channelID, stickerID string) error
}

var (
	// ErrChannelInactive means the destination is gone for good: the bot was
	// blocked, kicked, or the channel was deleted.
	ErrChannelInactive = errors.New("channel inactive")
	// ErrUnsupported is returned for message kinds a platform cannot carry.
	ErrUnsupported = errors.New("unsupported by platform")
)

// RateLimitError asks the caller to wait before sending again.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// RetryAfter returns the requested backoff if err is a RateLimitError.
func RetryAfter(err error) (time.Duration, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	return 0, false
}
