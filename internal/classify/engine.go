package classify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"scamwatch/internal/domain"
	"scamwatch/internal/observability"
	"scamwatch/internal/resolve"
	"scamwatch/internal/storage"
)

// Change describes a category crossing handed to notifiers.
type Change struct {
	Entity   *domain.Entity
	Previous *domain.Verdict // nil on the first verdict
	Current  domain.Verdict
}

// Notifier is told about category crossings. Delivery is at-least-once;
// failures are logged, never propagated into classification.
type Notifier interface {
	Notify(ctx context.Context, change Change)
}

// Engine runs strategy chains over updated entities and records verdicts.
// It implements resolve.Sink.
type Engine struct {
	chains     map[domain.EntityKind][]Strategy
	entities   storage.EntityStore
	verdicts   storage.VerdictStore
	links      *resolve.Links
	notifier   Notifier
	thresholds domain.Thresholds
	delta      float64 // hysteresis band on the risk score
	logger     *zap.Logger
	now        func() int64
}

// EngineOptions configures NewEngine.
type EngineOptions struct {
	EntityStore  storage.EntityStore
	VerdictStore storage.VerdictStore
	Links        *resolve.Links
	Notifier     Notifier
	Thresholds   domain.Thresholds
	// HysteresisDelta suppresses a new verdict when the category is
	// unchanged and the score moved by no more than this. Default 0.05.
	HysteresisDelta float64
	Logger          *zap.Logger
	// Now overrides the verdict clock, for tests.
	Now func() int64
}

// NewEngine creates an engine with empty strategy chains.
func NewEngine(opts EngineOptions) *Engine {
	if opts.Thresholds == (domain.Thresholds{}) {
		opts.Thresholds = domain.DefaultThresholds()
	}
	if opts.HysteresisDelta <= 0 {
		opts.HysteresisDelta = 0.05
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = func() int64 { return time.Now().UnixMilli() }
	}
	return &Engine{
		chains:     make(map[domain.EntityKind][]Strategy),
		entities:   opts.EntityStore,
		verdicts:   opts.VerdictStore,
		links:      opts.Links,
		notifier:   opts.Notifier,
		thresholds: opts.Thresholds,
		delta:      opts.HysteresisDelta,
		logger:     opts.Logger,
		now:        opts.Now,
	}
}

// Register appends strategies to the chain for an entity kind. Order
// matters: cheap deterministic strategies first, expensive ones last.
func (e *Engine) Register(kind domain.EntityKind, strategies ...Strategy) {
	e.chains[kind] = append(e.chains[kind], strategies...)
}

// EntityUpdated classifies an entity after a new observation. Strategy
// failures never surface as errors: the prior verdict simply stands.
func (e *Engine) EntityUpdated(ctx context.Context, entity *domain.Entity) error {
	chain := e.chains[entity.Kind]
	if len(chain) == 0 {
		return nil
	}

	start := time.Now()
	defer func() {
		observability.DefaultMetrics.ClassifyLatency.
			WithLabelValues(entity.Kind.String()).
			Observe(time.Since(start).Seconds())
	}()

	ev := e.gatherEvidence(ctx, entity)

	score, strategy, ok := e.runChain(ctx, chain, ev)
	if !ok {
		// No strategy produced a usable score; keep the prior verdict.
		return nil
	}

	verdict := domain.Verdict{
		EntityKey:         entity.Key,
		RiskScore:         clamp(score.Risk),
		Rationale:         score.Rationale,
		ProducedAt:        e.now(),
		ClassifierVersion: strategy.Name() + "/" + strategy.Version(),
	}
	verdict.Category = domain.CategoryFor(verdict.RiskScore, e.thresholds)

	prev := entity.CurrentVerdict
	if suppressed(prev, verdict, e.delta) {
		observability.RecordVerdictSuppressed()
		return nil
	}

	if err := e.verdicts.Persist(ctx, verdict); err != nil {
		return fmt.Errorf("persist verdict: %w", err)
	}
	if err := e.entities.SetVerdict(ctx, entity.Key, verdict); err != nil {
		return fmt.Errorf("set current verdict: %w", err)
	}
	observability.RecordVerdict(verdict.Category.String())
	e.logger.Info("verdict recorded",
		zap.String("entity", entity.Key),
		zap.Float64("risk", verdict.RiskScore),
		zap.String("category", verdict.Category.String()),
		zap.String("classifier", verdict.ClassifierVersion))

	if e.notifier != nil && categoryCrossed(prev, verdict) {
		e.notifier.Notify(ctx, Change{Entity: entity, Previous: prev, Current: verdict})
	}
	return nil
}

// gatherEvidence loads cross-linked entity snapshots alongside the entity.
func (e *Engine) gatherEvidence(ctx context.Context, entity *domain.Entity) *EntityEvidence {
	ev := &EntityEvidence{Entity: entity}
	if e.links == nil {
		return ev
	}
	for _, key := range e.links.Linked(entity.Key) {
		linked, err := e.entities.Get(ctx, key)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				e.logger.Warn("linked entity load failed",
					zap.String("key", key), zap.Error(err))
			}
			continue
		}
		ev.Linked = append(ev.Linked, linked)
	}
	return ev
}

// runChain walks the strategy chain until one returns a confident score.
// Falls back to the last unconfident score if nothing was confident.
func (e *Engine) runChain(ctx context.Context, chain []Strategy, ev *EntityEvidence) (Score, Strategy, bool) {
	var (
		fallback         Score
		fallbackStrategy Strategy
		haveFallback     bool
	)
	for _, s := range chain {
		score, err := s.Score(ctx, ev)
		if err != nil {
			if !errors.Is(err, ErrNotConfident) {
				observability.RecordStrategyFailure(s.Name())
				e.logger.Warn("strategy failed",
					zap.String("strategy", s.Name()),
					zap.String("entity", ev.Entity.Key),
					zap.Error(err))
			}
			continue
		}
		if score.Confident {
			return score, s, true
		}
		fallback, fallbackStrategy, haveFallback = score, s, true
	}
	return fallback, fallbackStrategy, haveFallback
}

// suppressed applies hysteresis: same category and a score move within
// delta does not produce a new verdict.
func suppressed(prev *domain.Verdict, next domain.Verdict, delta float64) bool {
	if prev == nil {
		return false
	}
	if prev.Category != next.Category {
		return false
	}
	diff := next.RiskScore - prev.RiskScore
	if diff < 0 {
		diff = -diff
	}
	return diff <= delta
}

// categoryCrossed reports whether the verdict moved the entity into a new
// category. The first verdict notifies only when it is already non-benign.
func categoryCrossed(prev *domain.Verdict, next domain.Verdict) bool {
	if prev == nil {
		return next.Category != domain.CategoryBenign
	}
	return prev.Category != next.Category
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

var _ resolve.Sink = (*Engine)(nil)
