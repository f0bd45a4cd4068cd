package messenger

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestParsePlatform(t *testing.T) {
	tests := []struct {
		in      string
		want    Platform
		wantErr bool
	}{
		{"telegram", Telegram, false},
		{" Discord ", Discord, false},
		{"SLACK", Slack, false},
		{"matrix", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParsePlatform(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePlatform(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePlatform(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestChannelIsPublic(t *testing.T) {
	tests := []struct {
		name string
		ch   Channel
		want bool
	}{
		{"telegram user", Channel{Platform: Telegram, ID: "12345"}, false},
		{"telegram group", Channel{Platform: Telegram, ID: "-100123"}, true},
		{"telegram username", Channel{Platform: Telegram, ID: "@chainwatch"}, true},
		{"static user id", Channel{Platform: Telegram, ID: "12345", Static: true}, true},
		{"discord", Channel{Platform: Discord, ID: "98765"}, true},
		{"slack", Channel{Platform: Slack, ID: "C0123"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ch.IsPublic(); got != tt.want {
				t.Errorf("IsPublic() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChannelKey(t *testing.T) {
	ch := Channel{Platform: Discord, ID: "42"}
	if ch.Key() != "discord:42" {
		t.Errorf("Key() = %q, want discord:42", ch.Key())
	}
}

func TestRetryAfter(t *testing.T) {
	err := fmt.Errorf("send: %w", &RateLimitError{RetryAfter: 3 * time.Second})
	d, ok := RetryAfter(err)
	if !ok || d != 3*time.Second {
		t.Errorf("RetryAfter = %v, %v; want 3s, true", d, ok)
	}
	if _, ok := RetryAfter(errors.New("other")); ok {
		t.Error("RetryAfter matched a plain error")
	}
}
