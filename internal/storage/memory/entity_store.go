package memory

import (
	"context"
	"sort"
	"sync"

	"scamwatch/internal/domain"
	"scamwatch/internal/storage"
)

// EntityStore is an in-memory implementation of storage.EntityStore.
type EntityStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Entity // keyed by entity key
}

// NewEntityStore creates a new in-memory entity store.
func NewEntityStore() *EntityStore {
	return &EntityStore{
		data: make(map[string]*domain.Entity),
	}
}

// Register adds a new entity. Returns ErrDuplicateKey if the key exists.
func (s *EntityStore) Register(_ context.Context, e *domain.Entity) error {
	if e == nil || e.Key == "" || !e.Kind.IsValid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[e.Key]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	s.data[e.Key] = e.Clone()
	return nil
}

// Get retrieves an entity by key. Returns ErrNotFound if not exists.
func (s *EntityStore) Get(_ context.Context, key string) (*domain.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.data[key]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return e.Clone(), nil
}

// Append records an observation against an existing entity.
func (s *EntityStore) Append(_ context.Context, key string, obs domain.Observation) error {
	if key == "" || obs.RawID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.data[key]
	if !exists {
		return storage.ErrNotFound
	}
	if e.HasObservation(obs.Source, obs.RawID) {
		return storage.ErrDuplicateKey
	}

	e.Observations = append(e.Observations, obs)
	if obs.ObservedAt > e.LastSeen {
		e.LastSeen = obs.ObservedAt
	}
	return nil
}

// SetVerdict updates the entity's current verdict pointer.
func (s *EntityStore) SetVerdict(_ context.Context, key string, v domain.Verdict) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.data[key]
	if !exists {
		return storage.ErrNotFound
	}
	verdictCopy := v
	e.CurrentVerdict = &verdictCopy
	return nil
}

// ListByKind retrieves up to limit entities of a kind, most recently seen first.
func (s *EntityStore) ListByKind(_ context.Context, kind domain.EntityKind, limit int) ([]*domain.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Entity
	for _, e := range s.data {
		if e.Kind == kind {
			result = append(result, e.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].LastSeen > result[j].LastSeen
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

var _ storage.EntityStore = (*EntityStore)(nil)
