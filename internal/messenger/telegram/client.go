// Package telegram talks to the Telegram Bot API over plain HTTP.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/web3-frozen/chainwatch/internal/messenger"
)

const DefaultAPIURL = "https://api.telegram.org"

// Client implements messenger.Adapter for Telegram.
type Client struct {
	token   string
	baseURL string
	logger  *slog.Logger
	client  *http.Client
}

func NewClient(token, baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	return &Client{
		token:   token,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
		client:  &http.Client{Timeout: 40 * time.Second},
	}
}

func (c *Client) Platform() messenger.Platform { return messenger.Telegram }

// SendText sends an HTML-formatted message.
func (c *Client) SendText(ctx context.Context, chatID, text string) error {
	return c.callJSON(ctx, "sendMessage", map[string]any{
		"chat_id":                  chatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	}, nil)
}

func (c *Client) SendSticker(ctx context.Context, chatID, stickerID string) error {
	return c.callJSON(ctx, "sendSticker", map[string]any{
		"chat_id": chatID,
		"sticker": stickerID,
	}, nil)
}

// SendPhoto uploads photo with an optional HTML caption.
func (c *Client) SendPhoto(ctx context.Context, chatID string, photo []byte, name, caption string) error {
	if name == "" {
		name = "photo.png"
	}
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fields := map[string]string{"chat_id": chatID}
	if caption != "" {
		fields["caption"] = caption
		fields["parse_mode"] = "HTML"
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return fmt.Errorf("write field %s: %w", k, err)
		}
	}
	part, err := w.CreateFormFile("photo", name)
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(photo); err != nil {
		return fmt.Errorf("write photo: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close multipart: %w", err)
	}
	return c.call(ctx, "sendPhoto", &body, w.FormDataContentType(), nil)
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

func (c *Client) callJSON(ctx context.Context, method string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", method, err)
	}
	return c.call(ctx, method, bytes.NewReader(body), "application/json", out)
}

func (c *Client) call(ctx context.Context, method string, body io.Reader, contentType string, out any) error {
	url := c.baseURL + "/bot" + c.token + "/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	var r apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return fmt.Errorf("decode %s response (status %d): %w", method, resp.StatusCode, err)
	}
	if !r.OK {
		return classify(method, r)
	}
	if out != nil {
		if err := json.Unmarshal(r.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}

// Telegram reports a gone chat with 403, or 400 for a few descriptions.
var inactiveDescriptions = []string{
	"chat not found",
	"bot was blocked",
	"bot was kicked",
	"user is deactivated",
	"group chat was upgraded",
	"have no rights to send",
	"need administrator rights",
}

func classify(method string, r apiResponse) error {
	if r.ErrorCode == http.StatusTooManyRequests && r.Parameters != nil {
		return &messenger.RateLimitError{RetryAfter: time.Duration(r.Parameters.RetryAfter) * time.Second}
	}
	if r.ErrorCode == http.StatusForbidden {
		return fmt.Errorf("%s: %s: %w", method, r.Description, messenger.ErrChannelInactive)
	}
	if r.ErrorCode == http.StatusBadRequest {
		desc := strings.ToLower(r.Description)
		for _, s := range inactiveDescriptions {
			if strings.Contains(desc, s) {
				return fmt.Errorf("%s: %s: %w", method, r.Description, messenger.ErrChannelInactive)
			}
		}
	}
	return fmt.Errorf("telegram API error %d on %s: %s", r.ErrorCode, method, r.Description)
}
