package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/web3-frozen/chainwatch/internal/messenger"
)

// ChannelStore is the slice of the settings store the channel API needs.
type ChannelStore interface {
	ActiveChannels(ctx context.Context) ([]messenger.Channel, error)
	Subscribe(ctx context.Context, ch messenger.Channel) error
	Unsubscribe(ctx context.Context, ch messenger.Channel) error
}

// Restorer lifts a quarantine when a channel comes back.
type Restorer interface {
	Restore(ctx context.Context, ch messenger.Channel) error
}

func ListChannels(s ChannelStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		channels, err := s.ActiveChannels(r.Context())
		if err != nil {
			http.Error(w, `{"error":"failed to list channels"}`, http.StatusInternalServerError)
			return
		}
		if channels == nil {
			channels = []messenger.Channel{}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(channels)
	}
}

func Subscribe(s ChannelStore, q Restorer) http.HandlerFunc {
	type request struct {
		Platform string `json:"platform"`
		ID       string `json:"id"`
		Lang     string `json:"lang"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if req.ID == "" {
			http.Error(w, `{"error":"platform and id required"}`, http.StatusBadRequest)
			return
		}
		platform, err := messenger.ParsePlatform(req.Platform)
		if err != nil {
			http.Error(w, `{"error":"unknown platform"}`, http.StatusBadRequest)
			return
		}

		ch := messenger.Channel{Platform: platform, ID: req.ID, Lang: req.Lang}
		if err := s.Subscribe(r.Context(), ch); err != nil {
			http.Error(w, `{"error":"failed to subscribe"}`, http.StatusInternalServerError)
			return
		}
		if q != nil {
			if err := q.Restore(r.Context(), ch); err != nil {
				http.Error(w, `{"error":"failed to restore channel"}`, http.StatusInternalServerError)
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(ch)
	}
}

func Unsubscribe(s ChannelStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		platform, err := messenger.ParsePlatform(chi.URLParam(r, "platform"))
		if err != nil {
			http.Error(w, `{"error":"unknown platform"}`, http.StatusBadRequest)
			return
		}
		id := chi.URLParam(r, "id")
		if id == "" {
			http.Error(w, `{"error":"id required"}`, http.StatusBadRequest)
			return
		}

		if err := s.Unsubscribe(r.Context(), messenger.Channel{Platform: platform, ID: id}); err != nil {
			http.Error(w, `{"error":"failed to unsubscribe"}`, http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
