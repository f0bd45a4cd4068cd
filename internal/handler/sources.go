package handler

import (
	"encoding/json"
	"net/http"

	"github.com/web3-frozen/chainwatch/internal/monitor"
)

// Sources lists per-source tick counters.
func Sources(reg *monitor.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		summary := reg.Summary()
		if summary == nil {
			summary = []monitor.Stats{}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(summary)
	}
}

// Graph renders the publisher/listener graph. ?format=json returns the edge
// list instead of DOT.
func Graph(reg *monitor.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("format") == "json" {
			edges := reg.Graph()
			if edges == nil {
				edges = []monitor.Edge{}
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(edges)
			return
		}
		w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
		_, _ = w.Write([]byte(reg.DOT()))
	}
}
