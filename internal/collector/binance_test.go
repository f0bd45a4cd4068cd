package collector

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/web3-frozen/chainwatch/internal/store"
)

type fakeStorage struct {
	inserted [][]store.LiquidationEvent
	err      error
}

func (f *fakeStorage) InsertLiquidationEvents(_ context.Context, events []store.LiquidationEvent) error {
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, events)
	return nil
}

func (f *fakeStorage) CleanupOldLiquidationEvents(context.Context, time.Duration) (int64, error) {
	return 0, nil
}

const sellOrder = `{"e":"forceOrder","E":1700000000000,"o":{"s":"BTCUSDT","S":"SELL","q":"2","p":"60000","ap":"59000","X":"FILLED","z":"1.5","T":1700000000000}}`

func TestHandleMessage(t *testing.T) {
	tests := []struct {
		name     string
		msg      string
		wantSide string
		wantUSD  float64
	}{
		{"sell closes long, filled qty and avg price", sellOrder, "LONG", 59000 * 1.5},
		{"buy closes short, falls back to price and qty",
			`{"e":"forceOrder","o":{"s":"ETHUSDT","S":"BUY","q":"10","p":"3000","ap":"0","z":"0","T":1}}`, "SHORT", 30000},
		{"other event", `{"e":"aggTrade"}`, "", 0},
		{"zero price", `{"e":"forceOrder","o":{"s":"ETHUSDT","S":"BUY","q":"10","p":"0"}}`, "", 0},
		{"garbage", `not json`, "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(nil, []string{"btc"}, slog.Default())
			c.handleMessage([]byte(tt.msg))
			data, _ := c.Fetch(testContext(t))
			events := data.([]store.LiquidationEvent)
			if tt.wantSide == "" {
				if len(events) != 0 {
					t.Errorf("events = %v, want none", events)
				}
				return
			}
			if len(events) != 1 {
				t.Fatalf("events = %d, want 1", len(events))
			}
			if events[0].Side != tt.wantSide || events[0].USDValue != tt.wantUSD {
				t.Errorf("event = %+v", events[0])
			}
			if strings.HasSuffix(events[0].Symbol, "USDT") {
				t.Errorf("symbol %q keeps quote asset", events[0].Symbol)
			}
		})
	}
}

func TestFetchDrainsBuffer(t *testing.T) {
	c := New(nil, []string{"btc"}, slog.Default())
	c.handleMessage([]byte(sellOrder))
	c.handleMessage([]byte(sellOrder))

	first, _ := c.Fetch(testContext(t))
	second, _ := c.Fetch(testContext(t))
	if n := len(first.([]store.LiquidationEvent)); n != 2 {
		t.Errorf("first batch = %d, want 2", n)
	}
	if n := len(second.([]store.LiquidationEvent)); n != 0 {
		t.Errorf("second batch = %d, want 0", n)
	}
}

func TestPostActionPersists(t *testing.T) {
	db := &fakeStorage{}
	c := New(db, []string{"btc"}, slog.Default())
	c.handleMessage([]byte(sellOrder))
	data, _ := c.Fetch(testContext(t))

	if err := c.PostAction(testContext(t), data); err != nil {
		t.Fatalf("PostAction: %v", err)
	}
	if err := c.PostAction(testContext(t), []store.LiquidationEvent{}); err != nil {
		t.Fatalf("PostAction(empty): %v", err)
	}
	if len(db.inserted) != 1 || len(db.inserted[0]) != 1 {
		t.Errorf("inserted = %v", db.inserted)
	}

	db.err = errors.New("db down")
	if err := c.PostAction(testContext(t), data); err == nil {
		t.Error("expected error from failing store")
	}
}

func TestHandleErrorPersistsUnpublishedBatch(t *testing.T) {
	db := &fakeStorage{}
	c := New(db, []string{"btc"}, slog.Default())
	c.handleMessage([]byte(sellOrder))
	c.handleMessage([]byte(sellOrder))
	if _, err := c.Fetch(testContext(t)); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	c.HandleError(testContext(t), errors.New("publish: presenter failed"))
	if len(db.inserted) != 1 || len(db.inserted[0]) != 2 {
		t.Fatalf("inserted = %v, want one batch of 2", db.inserted)
	}

	// Already persisted; a second failure must not write it again.
	c.HandleError(testContext(t), errors.New("publish: presenter failed"))
	if len(db.inserted) != 1 {
		t.Errorf("inserted %d batches, want 1", len(db.inserted))
	}
}

func TestHandleErrorAfterPostActionIsNoop(t *testing.T) {
	db := &fakeStorage{err: errors.New("db down")}
	c := New(db, []string{"btc"}, slog.Default())
	c.handleMessage([]byte(sellOrder))
	data, _ := c.Fetch(testContext(t))

	if err := c.PostAction(testContext(t), data); err == nil {
		t.Fatal("expected error from failing store")
	}
	db.err = nil
	c.HandleError(testContext(t), errors.New("post action: db down"))
	if len(db.inserted) != 0 {
		t.Errorf("inserted = %v, want nothing retried", db.inserted)
	}
}

func TestRunReadsFromWebsocket(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		ctx := context.Background()
		_ = conn.Write(ctx, websocket.MessageText, []byte(sellOrder))
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c := New(nil, []string{"btc"}, slog.Default())
	c.wsURL = "ws" + strings.TrimPrefix(srv.URL, "http")

	ctx, cancel := context.WithCancel(testContext(t))
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		c.mu.Lock()
		n := len(c.buffer)
		c.mu.Unlock()
		if n == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("no liquidation received over websocket")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	<-done
}
