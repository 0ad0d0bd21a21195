package clickhouse

import (
	"context"
	"fmt"

	"scamwatch/internal/domain"
	"scamwatch/internal/entitykey"
	"scamwatch/internal/storage"
)

// ObservationArchive implements storage.ObservationArchive using
// ClickHouse. The archive keeps every observation for offline analysis;
// MergeTree does not enforce uniqueness and redelivered rows are collapsed
// at query time.
type ObservationArchive struct {
	conn *Conn
}

// NewObservationArchive creates a new ObservationArchive.
func NewObservationArchive(conn *Conn) *ObservationArchive {
	return &ObservationArchive{conn: conn}
}

// Compile-time interface check.
var _ storage.ObservationArchive = (*ObservationArchive)(nil)

// Archive appends observations in one batch.
func (s *ObservationArchive) Archive(ctx context.Context, observations []domain.Observation) error {
	if len(observations) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO observation_archive (
			observation_id, entity_key, source, raw_id, payload_kind, payload, observed_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, obs := range observations {
		kind, payload, err := domain.MarshalPayload(obs.Payload)
		if err != nil {
			return err
		}
		err = batch.Append(
			entitykey.ObservationID(obs.Source, obs.EntityKey, obs.RawID),
			obs.EntityKey, obs.Source.String(), obs.RawID,
			kind, string(payload), uint64(obs.ObservedAt),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// CountBySource returns archived row counts grouped by source.
func (s *ObservationArchive) CountBySource(ctx context.Context) (map[string]uint64, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT source, count() FROM observation_archive GROUP BY source
	`)
	if err != nil {
		return nil, fmt.Errorf("count by source: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]uint64)
	for rows.Next() {
		var (
			source string
			n      uint64
		)
		if err := rows.Scan(&source, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[source] = n
	}
	return counts, rows.Err()
}
