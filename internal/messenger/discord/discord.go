// Package discord delivers messages to Discord channels through a bot token.
package discord

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/web3-frozen/chainwatch/internal/messenger"
)

// Client implements messenger.Adapter for Discord.
type Client struct {
	session *discordgo.Session
}

func New(token string) (*Client, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	// Surface 429s to the broadcaster instead of blocking inside discordgo.
	s.ShouldRetryOnRateLimit = false
	return &Client{session: s}, nil
}

func (c *Client) Platform() messenger.Platform { return messenger.Discord }

func (c *Client) SendText(ctx context.Context, channelID, text string) error {
	_, err := c.session.ChannelMessageSend(channelID, toMarkdown(text), discordgo.WithContext(ctx))
	return classify("send message", err)
}

func (c *Client) SendPhoto(ctx context.Context, channelID string, photo []byte, name, caption string) error {
	if name == "" {
		name = "photo.png"
	}
	_, err := c.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: toMarkdown(caption),
		Files: []*discordgo.File{{
			Name:        name,
			ContentType: http.DetectContentType(photo),
			Reader:      bytes.NewReader(photo),
		}},
	}, discordgo.WithContext(ctx))
	return classify("send photo", err)
}

func (c *Client) SendSticker(ctx context.Context, channelID, stickerID string) error {
	_, err := c.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		StickerIDs: []string{stickerID},
	}, discordgo.WithContext(ctx))
	return classify("send sticker", err)
}

// Discord JSON error codes meaning the channel is unusable for the bot.
const (
	codeUnknownChannel   = 10003
	codeMissingAccess    = 50001
	codeMissingPerms     = 50013
	codeCannotSendToUser = 50007
)

func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var rl *discordgo.RateLimitError
	if errors.As(err, &rl) && rl.RateLimit != nil && rl.TooManyRequests != nil {
		return &messenger.RateLimitError{RetryAfter: rl.RetryAfter}
	}

	var rest *discordgo.RESTError
	if errors.As(err, &rest) {
		if rest.Message != nil {
			switch rest.Message.Code {
			case codeUnknownChannel, codeMissingAccess, codeMissingPerms, codeCannotSendToUser:
				return fmt.Errorf("%s: %s: %w", op, rest.Message.Message, messenger.ErrChannelInactive)
			}
		}
		if rest.Response != nil && rest.Response.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%s: %w", op, messenger.ErrChannelInactive)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

var markdown = strings.NewReplacer(
	"<b>", "**", "</b>", "**",
	"<i>", "*", "</i>", "*",
	"<code>", "`", "</code>", "`",
	"&amp;", "&", "&lt;", "<", "&gt;", ">",
)

// toMarkdown converts the Telegram HTML subset produced by formatters.
func toMarkdown(s string) string { return markdown.Replace(s) }
