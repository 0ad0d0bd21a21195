package memory

import (
	"context"
	"sort"
	"sync"

	"scamwatch/internal/domain"
	"scamwatch/internal/storage"
)

type verdictID struct {
	entityKey         string
	producedAt        int64
	classifierVersion string
}

// VerdictStore is an in-memory implementation of storage.VerdictStore.
type VerdictStore struct {
	mu   sync.RWMutex
	data map[string][]domain.Verdict // keyed by entity key, ProducedAt ASC
	seen map[verdictID]struct{}
}

// NewVerdictStore creates a new in-memory verdict store.
func NewVerdictStore() *VerdictStore {
	return &VerdictStore{
		data: make(map[string][]domain.Verdict),
		seen: make(map[verdictID]struct{}),
	}
}

// Persist records a verdict. Idempotent on (entity_key, produced_at,
// classifier_version).
func (s *VerdictStore) Persist(_ context.Context, v domain.Verdict) error {
	if v.EntityKey == "" || !v.Category.IsValid() || v.RiskScore < 0 || v.RiskScore > 1 {
		return storage.ErrInvalidInput
	}

	id := verdictID{v.EntityKey, v.ProducedAt, v.ClassifierVersion}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[id]; exists {
		return nil
	}
	s.seen[id] = struct{}{}

	history := append(s.data[v.EntityKey], v)
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].ProducedAt < history[j].ProducedAt
	})
	s.data[v.EntityKey] = history
	return nil
}

// History returns all verdicts for an entity ordered by ProducedAt ascending.
func (s *VerdictStore) History(_ context.Context, entityKey string) ([]domain.Verdict, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.data[entityKey]
	result := make([]domain.Verdict, len(history))
	copy(result, history)
	return result, nil
}

// Latest returns the most recent verdict for an entity.
func (s *VerdictStore) Latest(_ context.Context, entityKey string) (*domain.Verdict, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.data[entityKey]
	if len(history) == 0 {
		return nil, storage.ErrNotFound
	}
	v := history[len(history)-1]
	return &v, nil
}

var _ storage.VerdictStore = (*VerdictStore)(nil)
