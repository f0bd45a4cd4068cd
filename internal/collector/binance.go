// Package collector streams Binance futures liquidations over a websocket
// and hands them to the scheduler in per-tick batches.
package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/web3-frozen/chainwatch/internal/store"
)

const (
	binanceWSBase = "wss://fstream.binance.com/ws"
	reconnectBase = 2 * time.Second
	reconnectMax  = 60 * time.Second
	cleanupAge    = 30 * 24 * time.Hour
	cleanupEvery  = time.Hour
	maxBuffer     = 10_000
)

type binanceForceOrder struct {
	Event     string `json:"e"`
	EventTime int64  `json:"E"`
	Order     struct {
		Symbol    string `json:"s"`
		Side      string `json:"S"`
		Quantity  string `json:"q"`
		Price     string `json:"p"`
		AvgPrice  string `json:"ap"`
		Status    string `json:"X"`
		FilledQty string `json:"z"`
		TradeTime int64  `json:"T"`
	} `json:"o"`
}

// Storage persists liquidation batches. May be nil.
type Storage interface {
	InsertLiquidationEvents(ctx context.Context, events []store.LiquidationEvent) error
	CleanupOldLiquidationEvents(ctx context.Context, maxAge time.Duration) (int64, error)
}

// Liquidations is a monitor.Fetcher: the websocket loop fills a buffer and
// every Fetch drains it.
type Liquidations struct {
	store   Storage
	logger  *slog.Logger
	symbols []string
	wsURL   string

	mu     sync.Mutex
	buffer []store.LiquidationEvent
	// pending is the last drained batch until it has been persisted.
	pending []store.LiquidationEvent
}

func New(db Storage, symbols []string, logger *slog.Logger) *Liquidations {
	streams := make([]string, len(symbols))
	for i, s := range symbols {
		streams[i] = strings.ToLower(strings.TrimSpace(s)) + "usdt@forceOrder"
	}
	return &Liquidations{
		store:   db,
		logger:  logger,
		symbols: symbols,
		wsURL:   binanceWSBase + "/" + strings.Join(streams, "/"),
		buffer:  make([]store.LiquidationEvent, 0, 100),
	}
}

func (c *Liquidations) Name() string { return "binance_liquidations" }

// Fetch returns the liquidations received since the previous call.
func (c *Liquidations) Fetch(context.Context) (any, error) {
	c.mu.Lock()
	events := c.buffer
	c.buffer = make([]store.LiquidationEvent, 0, 100)
	c.pending = events
	c.mu.Unlock()
	return events, nil
}

// PostAction persists the batch that was just published.
func (c *Liquidations) PostAction(ctx context.Context, data any) error {
	events, _ := data.([]store.LiquidationEvent)
	c.takePending()
	return c.persist(ctx, events)
}

// HandleError still persists a drained batch whose publish failed, so the
// history does not lose liquidations when a listener errors.
func (c *Liquidations) HandleError(ctx context.Context, tickErr error) {
	events := c.takePending()
	if len(events) == 0 {
		return
	}
	if err := c.persist(ctx, events); err != nil {
		c.logger.Error("persist liquidations after failed tick", "error", err, "tick_error", tickErr)
		return
	}
	c.logger.Warn("persisted liquidations after failed tick", "count", len(events), "tick_error", tickErr)
}

func (c *Liquidations) takePending() []store.LiquidationEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	events := c.pending
	c.pending = nil
	return events
}

func (c *Liquidations) persist(ctx context.Context, events []store.LiquidationEvent) error {
	if c.store == nil || len(events) == 0 {
		return nil
	}
	if err := c.store.InsertLiquidationEvents(ctx, events); err != nil {
		return fmt.Errorf("store %d liquidations: %w", len(events), err)
	}
	return nil
}

// Run keeps the websocket connected until ctx is cancelled.
func (c *Liquidations) Run(ctx context.Context) {
	if c.store != nil {
		go c.cleanupLoop(ctx)
	}

	c.logger.Info("liquidation stream starting", "symbols", c.symbols, "url", c.wsURL)

	backoff := reconnectBase
	for {
		err := c.connectAndRead(ctx)
		if ctx.Err() != nil {
			return
		}

		c.logger.Warn("binance ws disconnected, reconnecting", "error", err, "backoff", backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = time.Duration(math.Min(float64(backoff*2), float64(reconnectMax)))
	}
}

func (c *Liquidations) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, c.wsURL, nil)
	if err != nil {
		return fmt.Errorf("ws dial: %w", err)
	}
	defer conn.CloseNow() //nolint:errcheck

	c.logger.Info("binance ws connected")

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("ws read: %w", err)
		}
		c.handleMessage(data)
	}
}

func (c *Liquidations) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(cleanupEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := c.store.CleanupOldLiquidationEvents(ctx, cleanupAge)
			if err != nil {
				c.logger.Error("cleanup old liquidation events failed", "error", err)
			} else if deleted > 0 {
				c.logger.Info("cleaned up old liquidation events", "deleted", deleted)
			}
		}
	}
}

func (c *Liquidations) handleMessage(data []byte) {
	var msg binanceForceOrder
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	if msg.Event != "forceOrder" {
		return
	}

	price := parseFloat(msg.Order.AvgPrice)
	if price <= 0 {
		price = parseFloat(msg.Order.Price)
	}
	qty := parseFloat(msg.Order.FilledQty)
	if qty <= 0 {
		qty = parseFloat(msg.Order.Quantity)
	}
	if price <= 0 || qty <= 0 {
		return
	}

	// A SELL force order closes a long.
	var side string
	switch msg.Order.Side {
	case "SELL":
		side = "LONG"
	case "BUY":
		side = "SHORT"
	default:
		return
	}

	ev := store.LiquidationEvent{
		Symbol:    strings.TrimSuffix(strings.ToUpper(msg.Order.Symbol), "USDT"),
		Side:      side,
		Price:     price,
		Quantity:  qty,
		USDValue:  price * qty,
		Exchange:  "binance",
		EventTime: time.UnixMilli(msg.Order.TradeTime),
	}

	c.mu.Lock()
	if len(c.buffer) < maxBuffer {
		c.buffer = append(c.buffer, ev)
	}
	c.mu.Unlock()
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
