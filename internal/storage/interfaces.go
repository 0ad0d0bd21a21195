package storage

import (
	"context"

	"scamwatch/internal/domain"
)

// EntityStore persists entities and their append-only observation logs.
type EntityStore interface {
	// Register adds a new entity. Returns ErrDuplicateKey if the key exists.
	Register(ctx context.Context, e *domain.Entity) error

	// Get retrieves an entity by key. Returns ErrNotFound if not exists.
	Get(ctx context.Context, key string) (*domain.Entity, error)

	// Append records an observation against an existing entity and advances
	// its LastSeen. Returns ErrNotFound for an unknown key and
	// ErrDuplicateKey if the (source, raw_id) pair is already recorded.
	Append(ctx context.Context, key string, obs domain.Observation) error

	// SetVerdict updates the entity's current verdict pointer.
	SetVerdict(ctx context.Context, key string, v domain.Verdict) error

	// ListByKind retrieves up to limit entities of a kind, most recently
	// seen first. limit <= 0 means no limit.
	ListByKind(ctx context.Context, kind domain.EntityKind, limit int) ([]*domain.Entity, error)
}

// VerdictStore persists the full verdict history.
type VerdictStore interface {
	// Persist records a verdict. Idempotent on (entity_key, produced_at,
	// classifier_version): re-persisting the same verdict is a no-op.
	Persist(ctx context.Context, v domain.Verdict) error

	// History returns all verdicts for an entity ordered by ProducedAt
	// ascending. An unknown key yields an empty slice, not an error.
	History(ctx context.Context, entityKey string) ([]domain.Verdict, error)

	// Latest returns the most recent verdict for an entity.
	// Returns ErrNotFound if none exists.
	Latest(ctx context.Context, entityKey string) (*domain.Verdict, error)
}

// ObservationArchive is an additive sink for raw observation history,
// used for offline analysis. Failures here never block the pipeline.
type ObservationArchive interface {
	// Archive appends observations to the archive. Best effort.
	Archive(ctx context.Context, obs []domain.Observation) error
}
