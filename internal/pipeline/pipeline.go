// Package pipeline assembles the ingestion coordinator, entity resolver and
// classification engine into one runnable unit and owns the plumbing between
// them: watchlist seeding for pull-driven adapters, best-effort observation
// archiving, and the verdict flush loop.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"scamwatch/internal/domain"
	"scamwatch/internal/entitykey"
	"scamwatch/internal/ingest"
	"scamwatch/internal/observability"
	"scamwatch/internal/resolve"
	"scamwatch/internal/source"
	"scamwatch/internal/storage"
)

// Watchlists groups the queues feeding the pull-driven adapters. Any of them
// may be nil when the corresponding adapter is disabled.
type Watchlists struct {
	ContractMeta *source.Watchlist
	DexListing   *source.Watchlist
	Social       *source.Watchlist
}

// Options configures a Pipeline.
type Options struct {
	Coordinator *ingest.Coordinator
	Resolver    *resolve.Resolver

	// Verdicts, when set, gets a periodic flush loop for buffered writes.
	Verdicts      *storage.BufferedVerdictStore
	FlushInterval time.Duration

	// Archive, when set, receives every observation in batches. Archive
	// failures are logged and never block classification.
	Archive      storage.ObservationArchive
	ArchiveBatch int

	Watchlists Watchlists
	Logger     *zap.Logger
}

// Pipeline drives observations from the coordinator through resolution and
// classification until the context is cancelled.
type Pipeline struct {
	coordinator  *ingest.Coordinator
	resolver     *resolve.Resolver
	verdicts     *storage.BufferedVerdictStore
	flushEvery   time.Duration
	archive      storage.ObservationArchive
	archiveBatch int
	watch        Watchlists
	logger       *zap.Logger
}

// New wires the pipeline together. It installs the watchlist seeding hook on
// the resolver, so every newly registered entity starts getting swept by the
// pull-driven adapters.
func New(opts Options) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.ArchiveBatch <= 0 {
		opts.ArchiveBatch = 100
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 30 * time.Second
	}
	p := &Pipeline{
		coordinator:  opts.Coordinator,
		resolver:     opts.Resolver,
		verdicts:     opts.Verdicts,
		flushEvery:   opts.FlushInterval,
		archive:      opts.Archive,
		archiveBatch: opts.ArchiveBatch,
		watch:        opts.Watchlists,
		logger:       opts.Logger,
	}
	p.resolver.OnNewEntity = p.onNewEntity
	return p
}

// Run blocks until ctx is cancelled and the queue has drained. The
// coordinator closes its output channel on shutdown, which lets the consumer
// finish every observation already fetched before returning.
func (p *Pipeline) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return p.coordinator.Run(gctx)
	})
	g.Go(func() error {
		return p.consume(gctx)
	})
	if p.verdicts != nil {
		g.Go(func() error {
			p.verdicts.Run(gctx, p.flushEvery)
			return nil
		})
	}
	return g.Wait()
}

// drainGrace bounds how long queued observations keep being resolved after
// shutdown begins.
const drainGrace = 5 * time.Second

// drainer hands out the live context until it is cancelled, then a single
// bounded background context so queued work can finish. Watchlist-sourced
// observations exist only in the queue once fetched; failing them against a
// dead context would lose them for good.
type drainer struct {
	parent context.Context
	grace  time.Duration

	drainCtx context.Context
	stop     context.CancelFunc
}

func newDrainer(parent context.Context, grace time.Duration) *drainer {
	return &drainer{parent: parent, grace: grace}
}

func (d *drainer) Context() context.Context {
	if d.parent.Err() == nil {
		return d.parent
	}
	if d.drainCtx == nil {
		d.drainCtx, d.stop = context.WithTimeout(context.Background(), d.grace)
	}
	return d.drainCtx
}

func (d *drainer) Close() {
	if d.stop != nil {
		d.stop()
	}
}

// consume drains the coordinator queue. The channel closing is the shutdown
// signal; observations already in flight are still resolved, under a bounded
// grace context once the run context is cancelled, so nothing fetched is
// lost.
func (p *Pipeline) consume(ctx context.Context) error {
	out := p.coordinator.Out()
	var batch []domain.Observation

	d := newDrainer(ctx, drainGrace)
	defer d.Close()

	ticker := time.NewTicker(p.flushEvery)
	defer ticker.Stop()

	for {
		select {
		case obs, ok := <-out:
			if !ok {
				p.flushArchive(d.Context(), batch)
				return nil
			}
			observability.UpdateQueueDepth(len(out))
			p.handle(d.Context(), obs)
			if p.archive != nil {
				batch = append(batch, obs)
				if len(batch) >= p.archiveBatch {
					p.flushArchive(d.Context(), batch)
					batch = nil
				}
			}
		case <-ticker.C:
			if len(batch) > 0 {
				p.flushArchive(d.Context(), batch)
				batch = nil
			}
		}
	}
}

func (p *Pipeline) handle(ctx context.Context, obs domain.Observation) {
	p.seedFromPayload(obs)
	if _, _, err := p.resolver.Resolve(ctx, obs); err != nil {
		p.logger.Warn("resolve failed",
			zap.String("source", string(obs.Source)),
			zap.String("entity_key", obs.EntityKey),
			zap.Error(err))
	}
}

// seedFromPayload enqueues the social handle carried by a DEX audit. The
// handle becomes a SOCIAL_ACCOUNT entity only once the social adapter fetches
// it, so the watchlist is seeded from the raw payload, not from the entity
// store.
func (p *Pipeline) seedFromPayload(obs domain.Observation) {
	audit, ok := obs.Payload.(domain.DexAudit)
	if !ok || audit.TwitterHandle == "" || p.watch.Social == nil {
		return
	}
	handle, err := entitykey.NormalizeHandle(audit.TwitterHandle)
	if err != nil {
		return
	}
	p.watch.Social.Add(handle)
}

// onNewEntity schedules the sweeps for a freshly registered entity. Called
// from the resolver exactly once per entity.
func (p *Pipeline) onNewEntity(e *domain.Entity) {
	switch e.Kind {
	case domain.KindTokenContract:
		if p.watch.ContractMeta != nil {
			p.watch.ContractMeta.Add(e.Key)
		}
		if p.watch.DexListing != nil {
			p.watch.DexListing.Add(e.Key)
		}
	case domain.KindSocialAccount:
		if p.watch.Social != nil {
			p.watch.Social.Add(e.Key)
		}
	}
}

func (p *Pipeline) flushArchive(ctx context.Context, batch []domain.Observation) {
	if p.archive == nil || len(batch) == 0 {
		return
	}
	if err := p.archive.Archive(ctx, batch); err != nil {
		p.logger.Warn("archive batch failed", zap.Int("count", len(batch)), zap.Error(err))
	}
}
