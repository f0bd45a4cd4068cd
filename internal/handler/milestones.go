package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/web3-frozen/chainwatch/internal/milestone"
)

type MilestoneReader interface {
	Record(ctx context.Context, key string) (*milestone.Record, error)
}

// Milestone returns the stored record for {key}.
func Milestone(d MilestoneReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		if key == "" {
			http.Error(w, `{"error":"key required"}`, http.StatusBadRequest)
			return
		}

		rec, err := d.Record(r.Context(), key)
		if err != nil {
			http.Error(w, `{"error":"failed to load milestone"}`, http.StatusInternalServerError)
			return
		}
		if rec == nil {
			http.Error(w, `{"error":"no milestone recorded"}`, http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(rec)
	}
}
