package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/web3-frozen/chainwatch/internal/messenger"
	"github.com/web3-frozen/chainwatch/internal/monitor"
)

type ChannelCounter interface {
	CountActive(ctx context.Context) (map[messenger.Platform]int, error)
}

// Stats gives a one-shot overview: active channels per platform and how many
// sources are registered.
func Stats(counter ChannelCounter, reg *monitor.Registry) http.HandlerFunc {
	type response struct {
		Channels map[messenger.Platform]int `json:"channels"`
		Sources  []string                   `json:"sources"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		resp := response{Channels: map[messenger.Platform]int{}, Sources: reg.SourceNames()}
		if counter != nil {
			counts, err := counter.CountActive(r.Context())
			if err != nil {
				http.Error(w, `{"error":"failed to count channels"}`, http.StatusInternalServerError)
				return
			}
			resp.Channels = counts
		}
		if resp.Sources == nil {
			resp.Sources = []string{}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
