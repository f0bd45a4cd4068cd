// Package slack delivers messages to Slack channels through a bot token.
package slack

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"github.com/web3-frozen/chainwatch/internal/messenger"
)

// Client implements messenger.Adapter for Slack.
type Client struct {
	api *slack.Client
}

// New creates a client. apiURL overrides the Slack endpoint and may be empty.
func New(token, apiURL string) *Client {
	var opts []slack.Option
	if apiURL != "" {
		opts = append(opts, slack.OptionAPIURL(strings.TrimRight(apiURL, "/")+"/"))
	}
	return &Client{api: slack.New(token, opts...)}
}

func (c *Client) Platform() messenger.Platform { return messenger.Slack }

func (c *Client) SendText(ctx context.Context, channelID, text string) error {
	_, _, err := c.api.PostMessageContext(ctx, channelID,
		slack.MsgOptionText(toMrkdwn(text), false),
		slack.MsgOptionDisableLinkUnfurl(),
	)
	return classify("post message", err)
}

func (c *Client) SendPhoto(ctx context.Context, channelID string, photo []byte, name, caption string) error {
	if name == "" {
		name = "photo.png"
	}
	_, err := c.api.UploadFileV2Context(ctx, slack.UploadFileV2Parameters{
		Channel:        channelID,
		Reader:         bytes.NewReader(photo),
		FileSize:       len(photo),
		Filename:       name,
		InitialComment: toMrkdwn(caption),
	})
	return classify("upload photo", err)
}

// SendSticker is not supported; Slack has no stickers.
func (c *Client) SendSticker(context.Context, string, string) error {
	return fmt.Errorf("send sticker: %w", messenger.ErrUnsupported)
}

var inactiveErrors = []string{
	"channel_not_found",
	"is_archived",
	"not_in_channel",
	"account_inactive",
	"restricted_action",
}

func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var rl *slack.RateLimitedError
	if errors.As(err, &rl) {
		return &messenger.RateLimitError{RetryAfter: rl.RetryAfter}
	}
	msg := err.Error()
	for _, s := range inactiveErrors {
		if strings.Contains(msg, s) {
			return fmt.Errorf("%s: %s: %w", op, msg, messenger.ErrChannelInactive)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

var mrkdwn = strings.NewReplacer(
	"<b>", "*", "</b>", "*",
	"<i>", "_", "</i>", "_",
	"<code>", "`", "</code>", "`",
)

// toMrkdwn converts the Telegram HTML subset produced by formatters. Slack
// keeps &amp; &lt; &gt; escaped, so entities pass through.
func toMrkdwn(s string) string { return mrkdwn.Replace(s) }
