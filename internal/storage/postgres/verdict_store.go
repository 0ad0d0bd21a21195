package postgres

import (
	"context"
	"fmt"
	"time"

	"scamwatch/internal/domain"
	"scamwatch/internal/observability"
	"scamwatch/internal/storage"
)

// VerdictStore implements storage.VerdictStore using PostgreSQL. The
// primary key (entity_key, produced_at, classifier_version) makes Persist
// idempotent.
type VerdictStore struct {
	pool *Pool
}

// NewVerdictStore creates a new VerdictStore.
func NewVerdictStore(pool *Pool) *VerdictStore {
	return &VerdictStore{pool: pool}
}

// Compile-time interface check.
var _ storage.VerdictStore = (*VerdictStore)(nil)

// Persist records a verdict. Re-persisting the same verdict is a no-op.
func (s *VerdictStore) Persist(ctx context.Context, v domain.Verdict) error {
	if v.EntityKey == "" || !v.Category.IsValid() || v.RiskScore < 0 || v.RiskScore > 1 {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO verdicts (entity_key, risk_score, category, rationale, produced_at, classifier_version)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (entity_key, produced_at, classifier_version) DO NOTHING
	`

	start := time.Now()
	_, err := s.pool.Exec(ctx, query,
		v.EntityKey, v.RiskScore, v.Category.String(), v.Rationale, v.ProducedAt, v.ClassifierVersion)
	observability.RecordDBQuery("postgres", "persist_verdict", time.Since(start).Seconds(), err)
	if err != nil {
		return fmt.Errorf("persist verdict: %w", err)
	}
	return nil
}

// History returns all verdicts for an entity ordered by ProducedAt ascending.
func (s *VerdictStore) History(ctx context.Context, entityKey string) ([]domain.Verdict, error) {
	query := `
		SELECT entity_key, risk_score, category, rationale, produced_at, classifier_version
		FROM verdicts
		WHERE entity_key = $1
		ORDER BY produced_at ASC, classifier_version ASC
	`

	start := time.Now()
	rows, err := s.pool.Query(ctx, query, entityKey)
	observability.RecordDBQuery("postgres", "verdict_history", time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("verdict history: %w", err)
	}
	defer rows.Close()

	var result []domain.Verdict
	for rows.Next() {
		v, err := scanVerdict(rows)
		if err != nil {
			return nil, fmt.Errorf("scan verdict: %w", err)
		}
		result = append(result, v)
	}
	return result, rows.Err()
}

// Latest returns the most recent verdict for an entity.
func (s *VerdictStore) Latest(ctx context.Context, entityKey string) (*domain.Verdict, error) {
	query := `
		SELECT entity_key, risk_score, category, rationale, produced_at, classifier_version
		FROM verdicts
		WHERE entity_key = $1
		ORDER BY produced_at DESC, classifier_version DESC
		LIMIT 1
	`

	start := time.Now()
	row := s.pool.QueryRow(ctx, query, entityKey)
	v, err := scanVerdict(row)
	observability.RecordDBQuery("postgres", "verdict_latest", time.Since(start).Seconds(), err)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("latest verdict: %w", err)
	}
	return &v, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVerdict(row rowScanner) (domain.Verdict, error) {
	var (
		v        domain.Verdict
		category string
	)
	if err := row.Scan(&v.EntityKey, &v.RiskScore, &category, &v.Rationale,
		&v.ProducedAt, &v.ClassifierVersion); err != nil {
		return domain.Verdict{}, err
	}
	v.Category = domain.Category(category)
	return v, nil
}
