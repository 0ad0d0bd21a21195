// Package resolve maps observations onto entities, deduplicates them and
// hands updated entities to the classification engine.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"

	"go.uber.org/zap"

	"scamwatch/internal/domain"
	"scamwatch/internal/entitykey"
	"scamwatch/internal/observability"
	"scamwatch/internal/storage"
)

const lockShards = 64

// Sink receives an entity snapshot after a non-duplicate append.
type Sink interface {
	EntityUpdated(ctx context.Context, e *domain.Entity) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, e *domain.Entity) error

func (f SinkFunc) EntityUpdated(ctx context.Context, e *domain.Entity) error {
	return f(ctx, e)
}

// Resolver owns entity identity: one entity per key, created on first
// sight, observations appended exactly once per (source, raw_id). Work on
// distinct keys proceeds concurrently; work on the same key is serialized
// by a sharded lock, which also serializes downstream classification per
// entity.
type Resolver struct {
	store  storage.EntityStore
	links  *Links
	sink   Sink
	logger *zap.Logger

	// OnNewEntity runs after an entity is first registered, outside the
	// shard lock. The pipeline uses it to seed adapter watchlists.
	OnNewEntity func(e *domain.Entity)

	locks [lockShards]sync.Mutex
}

// ResolverOptions configures NewResolver.
type ResolverOptions struct {
	Store  storage.EntityStore
	Links  *Links
	Sink   Sink
	Logger *zap.Logger
}

// NewResolver creates a resolver.
func NewResolver(opts ResolverOptions) *Resolver {
	if opts.Links == nil {
		opts.Links = NewLinks()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Resolver{
		store:  opts.Store,
		links:  opts.Links,
		sink:   opts.Sink,
		logger: opts.Logger,
	}
}

// Links exposes the cross-link table for the classification engine.
func (r *Resolver) Links() *Links {
	return r.links
}

func (r *Resolver) shard(key string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &r.locks[h.Sum32()%lockShards]
}

// Resolve applies one observation: registers the entity on first sight,
// drops duplicates, appends otherwise and notifies the sink. Returns the
// entity snapshot and whether the observation was appended. Redelivery of
// an already-seen observation is a clean no-op.
func (r *Resolver) Resolve(ctx context.Context, obs domain.Observation) (*domain.Entity, bool, error) {
	if obs.EntityKey == "" || obs.RawID == "" {
		return nil, false, storage.ErrInvalidInput
	}

	mu := r.shard(obs.EntityKey)
	mu.Lock()
	defer mu.Unlock()

	isNew, err := r.ensureEntity(ctx, obs)
	if err != nil {
		return nil, false, err
	}

	if err := r.store.Append(ctx, obs.EntityKey, obs); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			observability.RecordDuplicate(obs.Source.String())
			e, getErr := r.store.Get(ctx, obs.EntityKey)
			return e, false, getErr
		}
		return nil, false, fmt.Errorf("append observation: %w", err)
	}
	observability.RecordAppend(obs.Source.String())

	r.recordCrossLinks(obs)

	e, err := r.store.Get(ctx, obs.EntityKey)
	if err != nil {
		return nil, true, fmt.Errorf("load entity after append: %w", err)
	}

	if r.sink != nil {
		// Inside the shard lock: classification for one entity never
		// overlaps with itself.
		if err := r.sink.EntityUpdated(ctx, e); err != nil {
			r.logger.Warn("sink failed",
				zap.String("entity", e.Key), zap.Error(err))
		}
	}

	if isNew && r.OnNewEntity != nil {
		r.OnNewEntity(e)
	}
	return e, true, nil
}

// ensureEntity registers the entity if it does not exist yet. Reports
// whether it was created now.
func (r *Resolver) ensureEntity(ctx context.Context, obs domain.Observation) (bool, error) {
	_, err := r.store.Get(ctx, obs.EntityKey)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return false, fmt.Errorf("load entity: %w", err)
	}

	e := &domain.Entity{
		Key:       obs.EntityKey,
		Kind:      domain.KindForSource(obs.Source),
		FirstSeen: obs.ObservedAt,
		LastSeen:  obs.ObservedAt,
	}
	if err := r.store.Register(ctx, e); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return false, nil
		}
		return false, fmt.Errorf("register entity: %w", err)
	}

	observability.RecordEntityRegistered(e.Kind.String())
	r.logger.Info("entity registered",
		zap.String("key", e.Key), zap.String("kind", e.Kind.String()))
	return true, nil
}

// recordCrossLinks inspects the payload for references to the other entity
// kind and records them in the link table.
func (r *Resolver) recordCrossLinks(obs domain.Observation) {
	switch p := obs.Payload.(type) {
	case domain.DexAudit:
		if p.TwitterHandle == "" {
			return
		}
		handle, err := entitykey.NormalizeHandle(p.TwitterHandle)
		if err != nil {
			r.logger.Debug("unusable twitter handle in listing",
				zap.String("contract", obs.EntityKey), zap.String("handle", p.TwitterHandle))
			return
		}
		link := domain.CrossLink{
			ContractKey: obs.EntityKey,
			AccountKey:  handle,
			Source:      obs.Source,
			LinkedAt:    obs.ObservedAt,
		}
		if r.links.Add(link) {
			observability.RecordCrossLink()
			r.logger.Info("cross-link recorded",
				zap.String("contract", link.ContractKey),
				zap.String("account", link.AccountKey))
		}
	case domain.SocialPost:
		// Posts may reference contracts in future payload versions; today
		// only the DEX listing side establishes links.
	}
}
