package slack

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/web3-frozen/chainwatch/internal/messenger"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New("xoxb-test", srv.URL)
}

func TestSendText(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat.postMessage" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if r.FormValue("channel") != "C1" || r.FormValue("text") != "*bold* news" {
			t.Errorf("form = %v", r.Form)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"channel":"C1","ts":"1.0"}`))
	})
	if err := c.SendText(testContext(t), "C1", "<b>bold</b> news"); err != nil {
		t.Fatalf("SendText: %v", err)
	}
}

func TestSendTextErrors(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		header       map[string]string
		body         string
		wantInactive bool
		wantRetry    time.Duration
	}{
		{"channel not found", 200, nil, `{"ok":false,"error":"channel_not_found"}`, true, 0},
		{"archived", 200, nil, `{"ok":false,"error":"is_archived"}`, true, 0},
		{"rate limited", 429, map[string]string{"Retry-After": "3"}, ``, false, 3 * time.Second},
		{"other", 200, nil, `{"ok":false,"error":"msg_too_long"}`, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.header {
					w.Header().Set(k, v)
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			err := c.SendText(testContext(t), "C1", "x")
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.Is(err, messenger.ErrChannelInactive); got != tt.wantInactive {
				t.Errorf("inactive = %v, want %v (err %v)", got, tt.wantInactive, err)
			}
			d, ok := messenger.RetryAfter(err)
			if ok != (tt.wantRetry > 0) || d != tt.wantRetry {
				t.Errorf("RetryAfter = %v, %v; want %v", d, ok, tt.wantRetry)
			}
		})
	}
}

func TestSendStickerUnsupported(t *testing.T) {
	c := New("xoxb-test", "")
	if err := c.SendSticker(testContext(t), "C1", "s"); !errors.Is(err, messenger.ErrUnsupported) {
		t.Errorf("err = %v, want ErrUnsupported", err)
	}
}
