package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/web3-frozen/chainwatch/internal/store"
)

type AlertLogReader interface {
	RecentAlerts(ctx context.Context, limit int) ([]store.AlertLogEntry, error)
}

const maxAlertLimit = 500

// RecentAlerts lists the newest broadcast log entries. ?limit defaults to 50.
func RecentAlerts(l AlertLogReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				http.Error(w, `{"error":"invalid limit"}`, http.StatusBadRequest)
				return
			}
			limit = min(n, maxAlertLimit)
		}

		entries, err := l.RecentAlerts(r.Context(), limit)
		if err != nil {
			http.Error(w, `{"error":"failed to list alerts"}`, http.StatusInternalServerError)
			return
		}
		if entries == nil {
			entries = []store.AlertLogEntry{}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(entries)
	}
}
