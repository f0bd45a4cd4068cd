package monitor

import "context"

// Fetcher produces one payload per tick. Each concrete data source
// implements it and is wrapped in a WatchedSource.
type Fetcher interface {
	// Name returns a unique identifier for this source (e.g., "fear_greed").
	Name() string

	// Fetch retrieves the current payload. Timeouts belong to the fetcher.
	Fetch(ctx context.Context) (any, error)
}

// PostActioner is an optional Fetcher hook run after a successful publish.
type PostActioner interface {
	PostAction(ctx context.Context, data any) error
}

// ErrorHandler is an optional Fetcher hook run after a failed tick.
type ErrorHandler interface {
	HandleError(ctx context.Context, err error)
}
