package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const binanceTickerAPI = "https://api.binance.com/api/v3/ticker/price"

type binanceTickerResp struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// Prices is the payload published by the Binance source, keyed by pair
// (e.g. "BTCUSDT").
type Prices struct {
	Quotes    map[string]float64
	FetchedAt time.Time
}

// Binance fetches spot prices from the Binance public API.
type Binance struct {
	client  *http.Client
	baseURL string
	symbols []string
}

// NewBinance tracks the given base assets, each paired with USDT.
func NewBinance(symbols []string) *Binance {
	pairs := make([]string, len(symbols))
	for i, s := range symbols {
		pairs[i] = strings.ToUpper(strings.TrimSpace(s)) + "USDT"
	}
	return &Binance{
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: binanceTickerAPI,
		symbols: pairs,
	}
}

func (b *Binance) Name() string { return "binance_price" }

// Fetch returns prices of every tracked pair. One failing pair fails the tick.
func (b *Binance) Fetch(ctx context.Context) (any, error) {
	out := Prices{Quotes: make(map[string]float64, len(b.symbols)), FetchedAt: time.Now()}
	for _, pair := range b.symbols {
		price, err := b.fetchPrice(ctx, pair)
		if err != nil {
			return nil, err
		}
		out.Quotes[pair] = price
	}
	return out, nil
}

func (b *Binance) fetchPrice(ctx context.Context, pair string) (float64, error) {
	url := fmt.Sprintf("%s?symbol=%s", b.baseURL, pair)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("create binance request: %w", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("binance API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("binance API status %d for %s", resp.StatusCode, pair)
	}

	var ticker binanceTickerResp
	if err := json.NewDecoder(resp.Body).Decode(&ticker); err != nil {
		return 0, fmt.Errorf("decode binance ticker: %w", err)
	}

	price, err := strconv.ParseFloat(ticker.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("parse binance price: %w", err)
	}
	return price, nil
}
