package postgres

import (
	"context"
	"fmt"
	"time"

	"scamwatch/internal/domain"
	"scamwatch/internal/observability"
	"scamwatch/internal/storage"
)

// EntityStore implements storage.EntityStore using PostgreSQL. Entities
// and their observations live in separate tables; the observation table's
// primary key (entity_key, source, raw_id) is the duplicate test.
type EntityStore struct {
	pool *Pool
}

// NewEntityStore creates a new EntityStore.
func NewEntityStore(pool *Pool) *EntityStore {
	return &EntityStore{pool: pool}
}

// Compile-time interface check.
var _ storage.EntityStore = (*EntityStore)(nil)

// Register adds a new entity. Returns ErrDuplicateKey if the key exists.
func (s *EntityStore) Register(ctx context.Context, e *domain.Entity) error {
	if e == nil || e.Key == "" || !e.Kind.IsValid() {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO entities (key, kind, first_seen, last_seen)
		VALUES ($1, $2, $3, $4)
	`

	start := time.Now()
	_, err := s.pool.Exec(ctx, query, e.Key, e.Kind.String(), e.FirstSeen, e.LastSeen)
	observability.RecordDBQuery("postgres", "register_entity", time.Since(start).Seconds(), err)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("register entity: %w", err)
	}
	return nil
}

// Get retrieves an entity with its observations. Returns ErrNotFound if
// not exists.
func (s *EntityStore) Get(ctx context.Context, key string) (*domain.Entity, error) {
	query := `
		SELECT key, kind, first_seen, last_seen,
		       verdict_risk, verdict_category, verdict_rationale,
		       verdict_produced_at, verdict_classifier
		FROM entities
		WHERE key = $1
	`

	start := time.Now()
	row := s.pool.QueryRow(ctx, query, key)

	var (
		e                 domain.Entity
		kind              string
		risk              *float64
		category          *string
		rationale         *string
		producedAt        *int64
		classifierVersion *string
	)
	err := row.Scan(&e.Key, &kind, &e.FirstSeen, &e.LastSeen,
		&risk, &category, &rationale, &producedAt, &classifierVersion)
	observability.RecordDBQuery("postgres", "get_entity", time.Since(start).Seconds(), err)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get entity: %w", err)
	}
	e.Kind = domain.EntityKind(kind)
	if risk != nil && category != nil {
		e.CurrentVerdict = &domain.Verdict{
			EntityKey:         e.Key,
			RiskScore:         *risk,
			Category:          domain.Category(*category),
			Rationale:         stringOrEmpty(rationale),
			ProducedAt:        int64OrZero(producedAt),
			ClassifierVersion: stringOrEmpty(classifierVersion),
		}
	}

	if e.Observations, err = s.loadObservations(ctx, key); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *EntityStore) loadObservations(ctx context.Context, key string) ([]domain.Observation, error) {
	query := `
		SELECT source, raw_id, payload_kind, payload, observed_at
		FROM observations
		WHERE entity_key = $1
		ORDER BY seq ASC
	`

	start := time.Now()
	rows, err := s.pool.Query(ctx, query, key)
	observability.RecordDBQuery("postgres", "load_observations", time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("load observations: %w", err)
	}
	defer rows.Close()

	var observations []domain.Observation
	for rows.Next() {
		var (
			obs         domain.Observation
			source      string
			payloadKind string
			payload     []byte
		)
		if err := rows.Scan(&source, &obs.RawID, &payloadKind, &payload, &obs.ObservedAt); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		obs.Source = domain.Source(source)
		obs.EntityKey = key
		if obs.Payload, err = domain.UnmarshalPayload(payloadKind, payload); err != nil {
			return nil, err
		}
		observations = append(observations, obs)
	}
	return observations, rows.Err()
}

// Append records an observation against an existing entity.
func (s *EntityStore) Append(ctx context.Context, key string, obs domain.Observation) error {
	if key == "" || obs.RawID == "" {
		return storage.ErrInvalidInput
	}
	payloadKind, payload, err := domain.MarshalPayload(obs.Payload)
	if err != nil {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO observations (entity_key, source, raw_id, payload_kind, payload, observed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	start := time.Now()
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE entities SET last_seen = GREATEST(last_seen, $2) WHERE key = $1`,
		key, obs.ObservedAt)
	if err != nil {
		return fmt.Errorf("touch entity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}

	_, err = tx.Exec(ctx, query, key, obs.Source.String(), obs.RawID, payloadKind, payload, obs.ObservedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("append observation: %w", err)
	}

	err = tx.Commit(ctx)
	observability.RecordDBQuery("postgres", "append_observation", time.Since(start).Seconds(), err)
	if err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

// SetVerdict updates the entity's current verdict columns.
func (s *EntityStore) SetVerdict(ctx context.Context, key string, v domain.Verdict) error {
	query := `
		UPDATE entities
		SET verdict_risk = $2, verdict_category = $3, verdict_rationale = $4,
		    verdict_produced_at = $5, verdict_classifier = $6
		WHERE key = $1
	`

	start := time.Now()
	tag, err := s.pool.Exec(ctx, query, key,
		v.RiskScore, v.Category.String(), v.Rationale, v.ProducedAt, v.ClassifierVersion)
	observability.RecordDBQuery("postgres", "set_verdict", time.Since(start).Seconds(), err)
	if err != nil {
		return fmt.Errorf("set verdict: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListByKind retrieves up to limit entities of a kind, most recently seen
// first, without their observation logs.
func (s *EntityStore) ListByKind(ctx context.Context, kind domain.EntityKind, limit int) ([]*domain.Entity, error) {
	query := `
		SELECT key, kind, first_seen, last_seen,
		       verdict_risk, verdict_category, verdict_rationale,
		       verdict_produced_at, verdict_classifier
		FROM entities
		WHERE kind = $1
		ORDER BY last_seen DESC
	`
	args := []any{kind.String()}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	start := time.Now()
	rows, err := s.pool.Query(ctx, query, args...)
	observability.RecordDBQuery("postgres", "list_entities", time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	var result []*domain.Entity
	for rows.Next() {
		var (
			e                 domain.Entity
			kind              string
			risk              *float64
			category          *string
			rationale         *string
			producedAt        *int64
			classifierVersion *string
		)
		if err := rows.Scan(&e.Key, &kind, &e.FirstSeen, &e.LastSeen,
			&risk, &category, &rationale, &producedAt, &classifierVersion); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		e.Kind = domain.EntityKind(kind)
		if risk != nil && category != nil {
			e.CurrentVerdict = &domain.Verdict{
				EntityKey:         e.Key,
				RiskScore:         *risk,
				Category:          domain.Category(*category),
				Rationale:         stringOrEmpty(rationale),
				ProducedAt:        int64OrZero(producedAt),
				ClassifierVersion: stringOrEmpty(classifierVersion),
			}
		}
		result = append(result, &e)
	}
	return result, rows.Err()
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func int64OrZero(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
