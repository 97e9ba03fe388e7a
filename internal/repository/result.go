package repository

import "time"

// Envelope wraps a fetched payload with its provenance so callers can render
// a stale/offline indicator: FromCache is true when the remote attempt failed
// and the data came out of the local store, and LastUpdatedMs is the write
// time of that data (the fetch time for fresh results).
type Envelope[T any] struct {
	Data          T     `json:"data"`
	FromCache     bool  `json:"is_from_cache"`
	LastUpdatedMs int64 `json:"last_updated_ms"`
}

// Clock supplies "now" so cache-age arithmetic is testable.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall-clock Clock used outside tests.
func SystemClock() Clock { return systemClock{} }
