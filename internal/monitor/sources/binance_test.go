package sources

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestBinanceFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		symbol := r.URL.Query().Get("symbol")
		switch symbol {
		case "BTCUSDT":
			json.NewEncoder(w).Encode(binanceTickerResp{Symbol: symbol, Price: "95432.10"})
		case "ETHUSDT":
			json.NewEncoder(w).Encode(binanceTickerResp{Symbol: symbol, Price: "3456.78"})
		default:
			http.Error(w, "bad symbol", http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	b := NewBinance([]string{"btc", " ETH"})
	b.client, b.baseURL = srv.Client(), srv.URL

	data, err := b.Fetch(testContext(t))
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	p := data.(Prices)
	if p.Quotes["BTCUSDT"] != 95432.10 || p.Quotes["ETHUSDT"] != 3456.78 {
		t.Errorf("quotes = %v", p.Quotes)
	}
	if p.FetchedAt.IsZero() {
		t.Error("FetchedAt not set")
	}
}

func TestBinanceFetchFailsOnBadPair(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad symbol", http.StatusBadRequest)
	}))
	defer srv.Close()

	b := NewBinance([]string{"INVALID"})
	b.client, b.baseURL = srv.Client(), srv.URL

	if _, err := b.Fetch(testContext(t)); err == nil {
		t.Error("expected error for invalid symbol, got nil")
	}
}

func TestBinanceFetchBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbol":"BTCUSDT","price":"not-a-number"}`))
	}))
	defer srv.Close()

	b := NewBinance([]string{"BTC"})
	b.client, b.baseURL = srv.Client(), srv.URL

	if _, err := b.Fetch(testContext(t)); err == nil {
		t.Error("expected parse error, got nil")
	}
}
