package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

const fngAPI = "https://api.alternative.me/fng/"

// FearGreedIndex is the payload published by the FearGreed source.
type FearGreedIndex struct {
	Value          int
	Classification string
	FetchedAt      time.Time
}

// Extreme reports whether sentiment sits at either end of the scale.
func (f FearGreedIndex) Extreme() bool {
	return f.Value <= 25 || f.Value > 75
}

type FearGreed struct {
	client  *http.Client
	baseURL string
}

func NewFearGreed() *FearGreed {
	return &FearGreed{
		client:  &http.Client{Timeout: 15 * time.Second},
		baseURL: fngAPI,
	}
}

func (f *FearGreed) Name() string { return "feargreed" }

type fngResponse struct {
	Data []struct {
		Value               string `json:"value"`
		ValueClassification string `json:"value_classification"`
	} `json:"data"`
}

func (f *FearGreed) Fetch(ctx context.Context) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create fear & greed request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fear & greed API: %w", err)
	}
	defer resp.Body.Close()

	var fng fngResponse
	if err := json.NewDecoder(resp.Body).Decode(&fng); err != nil {
		return nil, fmt.Errorf("decode fear & greed: %w", err)
	}
	if len(fng.Data) == 0 {
		return nil, fmt.Errorf("no fear & greed data")
	}

	val, err := strconv.Atoi(fng.Data[0].Value)
	if err != nil {
		return nil, fmt.Errorf("parse fear & greed value: %w", err)
	}

	class := fng.Data[0].ValueClassification
	if class == "" {
		class = classifyFng(val)
	}
	return FearGreedIndex{Value: val, Classification: class, FetchedAt: time.Now()}, nil
}

func classifyFng(v int) string {
	switch {
	case v <= 25:
		return "Extreme Fear"
	case v <= 45:
		return "Fear"
	case v <= 55:
		return "Neutral"
	case v <= 75:
		return "Greed"
	default:
		return "Extreme Greed"
	}
}
