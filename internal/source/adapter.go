// Package source defines the adapter contract for external record feeds and
// the concrete adapters for the four supported sources. Adapters yield lazy,
// unordered, potentially infinite sequences of raw records; scheduling,
// retry, and normalization live in the ingest package.
package source

import (
	"context"

	"scamwatch/internal/domain"
)

// Record is one raw record produced by an adapter. EntityKey is in
// source-native form; the ingest coordinator normalizes it.
type Record struct {
	RawID      string // source-native identifier, required for dedup
	EntityKey  string // contract address or handle, source formatting
	ObservedAt int64  // Unix ms
	Payload    domain.Payload
}

// Adapter is a per-source connector. Fetch returns the next bounded batch of
// raw records; an empty batch means the source has nothing new right now.
// Failures are reported as *Error so the coordinator can tell transient from
// permanent conditions.
type Adapter interface {
	// Name identifies the adapter instance in logs and metrics.
	Name() string

	// Source is the feed this adapter connects to.
	Source() domain.Source

	// Fetch returns at most limit records. The order of records within one
	// call is meaningful and preserved downstream.
	Fetch(ctx context.Context, limit int) ([]Record, error)
}
