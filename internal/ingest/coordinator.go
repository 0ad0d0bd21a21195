// Package ingest runs the source adapter polling loops and feeds normalized
// observations into the pipeline queue.
package ingest

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"scamwatch/internal/domain"
	"scamwatch/internal/entitykey"
	"scamwatch/internal/observability"
	"scamwatch/internal/source"
)

// PollPolicy controls how one adapter is polled.
type PollPolicy struct {
	Interval         time.Duration // cadence between poll cycles
	Burst            int           // token bucket burst
	RatePerMin       int           // token bucket refill rate
	MaxAttempts      int           // fetch attempts per cycle for transient failures
	BaseBackoff      time.Duration
	MaxBackoff       time.Duration
	DegradedInterval time.Duration // probe cadence after a permanent failure
	BatchSize        int           // max records requested per fetch
}

func (p PollPolicy) withDefaults() PollPolicy {
	if p.Interval <= 0 {
		p.Interval = 15 * time.Second
	}
	if p.RatePerMin <= 0 {
		p.RatePerMin = 60
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.BaseBackoff <= 0 {
		p.BaseBackoff = 500 * time.Millisecond
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = 30 * time.Second
	}
	if p.DegradedInterval <= 0 {
		p.DegradedInterval = 5 * time.Minute
	}
	if p.BatchSize <= 0 {
		p.BatchSize = 50
	}
	return p
}

type registration struct {
	adapter source.Adapter
	policy  PollPolicy
	limiter *RateLimiter
}

// Coordinator owns one polling goroutine per registered adapter and pushes
// normalized observations to a bounded queue. A full queue blocks the
// producing loop; nothing is dropped.
type Coordinator struct {
	regs   []*registration
	out    chan domain.Observation
	logger *zap.Logger
}

// CoordinatorOptions configures NewCoordinator.
type CoordinatorOptions struct {
	QueueSize int // bounded observation queue, default 256
	Logger    *zap.Logger
}

// NewCoordinator creates an empty coordinator.
func NewCoordinator(opts CoordinatorOptions) *Coordinator {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Coordinator{
		out:    make(chan domain.Observation, opts.QueueSize),
		logger: opts.Logger,
	}
}

// Register adds an adapter with its poll policy. Must be called before Run.
func (c *Coordinator) Register(adapter source.Adapter, policy PollPolicy) {
	policy = policy.withDefaults()
	c.regs = append(c.regs, &registration{
		adapter: adapter,
		policy:  policy,
		limiter: NewRateLimiter(policy.RatePerMin, policy.Burst),
	})
}

// Out returns the observation queue. Closed after Run returns.
func (c *Coordinator) Out() <-chan domain.Observation {
	return c.out
}

// Run starts one polling loop per adapter and blocks until ctx is cancelled
// and all loops have drained. The output channel is closed on return.
func (c *Coordinator) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, reg := range c.regs {
		reg := reg
		g.Go(func() error {
			return c.pollLoop(ctx, reg)
		})
	}
	err := g.Wait()
	close(c.out)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (c *Coordinator) pollLoop(ctx context.Context, reg *registration) error {
	name := reg.adapter.Source().String()
	log := c.logger.With(zap.String("adapter", reg.adapter.Name()), zap.String("source", name))

	degraded := false
	interval := func() time.Duration {
		if degraded {
			return reg.policy.DegradedInterval
		}
		return reg.policy.Interval
	}

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		err := c.pollOnce(ctx, reg, name)
		switch {
		case err == nil:
			if degraded {
				degraded = false
				observability.SetAdapterDegraded(name, false)
				log.Info("adapter recovered")
			}
		case errors.Is(err, context.Canceled):
			return err
		case source.IsTransient(err):
			log.Warn("poll failed, will retry next cycle", zap.Error(err))
		default:
			if !degraded {
				degraded = true
				observability.SetAdapterDegraded(name, true)
				log.Error("adapter degraded", zap.Error(err))
			} else {
				log.Debug("degraded probe failed", zap.Error(err))
			}
		}

		timer.Reset(interval())
	}
}

// pollOnce runs a single fetch cycle: rate limit, fetch with transient
// retries, normalize, enqueue. Transient exhaustion returns a transient
// error; a permanent classification is returned as-is. Records returned
// alongside an error are enqueued before the error is reported.
func (c *Coordinator) pollOnce(ctx context.Context, reg *registration, name string) error {
	if err := reg.limiter.Wait(ctx); err != nil {
		return err
	}

	// Records accumulate across retry attempts: a watchlist adapter only
	// re-queues the key that failed, so anything fetched before a mid-batch
	// failure exists solely in the returned partial batch and must be
	// delivered even when the cycle ends in an error.
	var records []source.Record
	start := time.Now()
	err := withRetry(ctx, reg.policy.MaxAttempts, reg.policy.BaseBackoff, reg.policy.MaxBackoff,
		source.IsTransient,
		func(ctx context.Context) error {
			batch, fetchErr := reg.adapter.Fetch(ctx, reg.policy.BatchSize)
			records = append(records, batch...)
			return fetchErr
		})
	observability.RecordFetch(name, len(records), time.Since(start).Seconds())

	if enqueueErr := c.enqueue(ctx, reg, name, records); enqueueErr != nil {
		return enqueueErr
	}

	if err != nil {
		var se *source.Error
		kind := "unclassified"
		if errors.As(err, &se) {
			kind = string(se.Kind)
		}
		observability.RecordFetchError(name, kind)
		return err
	}
	return nil
}

func (c *Coordinator) enqueue(ctx context.Context, reg *registration, name string, records []source.Record) error {
	for _, rec := range records {
		obs, err := normalize(reg.adapter.Source(), rec)
		if err != nil {
			c.logger.Warn("record dropped",
				zap.String("source", name),
				zap.String("raw_id", rec.RawID),
				zap.Error(err))
			observability.RecordFetchError(name, string(source.KindMalformedResponse))
			continue
		}
		select {
		case c.out <- obs:
			observability.UpdateQueueDepth(len(c.out))
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// normalize converts a raw record into an observation with a canonical
// entity key. Records within a batch keep their order.
func normalize(src domain.Source, rec source.Record) (domain.Observation, error) {
	key, err := entitykey.ForSource(src, rec.EntityKey)
	if err != nil {
		return domain.Observation{}, err
	}
	observedAt := rec.ObservedAt
	if observedAt == 0 {
		observedAt = time.Now().UnixMilli()
	}
	return domain.Observation{
		Source:     src,
		EntityKey:  key,
		Payload:    rec.Payload,
		ObservedAt: observedAt,
		RawID:      rec.RawID,
	}, nil
}
