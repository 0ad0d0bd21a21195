package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"scamwatch/internal/domain"
	"scamwatch/internal/observability"
)

// BufferedVerdictStore wraps a VerdictStore with a bounded retry buffer.
// A verdict that fails to persist is held and retried on the next flush
// instead of being lost. Reads pass straight through to the inner store.
type BufferedVerdictStore struct {
	inner  VerdictStore
	logger *zap.Logger

	mu      sync.Mutex
	pending []domain.Verdict
	max     int
}

// NewBufferedVerdictStore wraps inner with a retry buffer of maxPending
// verdicts. maxPending <= 0 defaults to 1024.
func NewBufferedVerdictStore(inner VerdictStore, maxPending int, logger *zap.Logger) *BufferedVerdictStore {
	if maxPending <= 0 {
		maxPending = 1024
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BufferedVerdictStore{inner: inner, max: maxPending, logger: logger}
}

// Persist writes through to the inner store, buffering the verdict on
// failure. Returns an error only when the buffer itself is full.
func (s *BufferedVerdictStore) Persist(ctx context.Context, v domain.Verdict) error {
	err := s.inner.Persist(ctx, v)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrInvalidInput) {
		return err
	}
	s.logger.Warn("verdict persist failed, buffering",
		zap.String("entity", v.EntityKey), zap.Error(err))

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) >= s.max {
		return fmt.Errorf("verdict buffer full (%d pending)", len(s.pending))
	}
	s.pending = append(s.pending, v)
	observability.DefaultMetrics.VerdictsBuffered.Set(float64(len(s.pending)))
	return nil
}

// History passes through to the inner store.
func (s *BufferedVerdictStore) History(ctx context.Context, entityKey string) ([]domain.Verdict, error) {
	return s.inner.History(ctx, entityKey)
}

// Latest passes through to the inner store.
func (s *BufferedVerdictStore) Latest(ctx context.Context, entityKey string) (*domain.Verdict, error) {
	return s.inner.Latest(ctx, entityKey)
}

// Flush retries every buffered verdict once. Verdicts that fail again stay
// buffered. Returns the number still pending.
func (s *BufferedVerdictStore) Flush(ctx context.Context) int {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	if len(pending) == 0 {
		return 0
	}
	observability.DefaultMetrics.VerdictFlushRetries.Inc()

	var kept []domain.Verdict
	for _, v := range pending {
		if err := s.inner.Persist(ctx, v); err != nil {
			kept = append(kept, v)
		}
	}

	s.mu.Lock()
	// New failures may have arrived during the flush; keep them too.
	s.pending = append(kept, s.pending...)
	n := len(s.pending)
	s.mu.Unlock()

	observability.DefaultMetrics.VerdictsBuffered.Set(float64(n))
	if n > 0 {
		s.logger.Warn("verdict flush incomplete", zap.Int("pending", n))
	}
	return n
}

// Pending reports how many verdicts are waiting for retry.
func (s *BufferedVerdictStore) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Run flushes on a fixed cadence until ctx is cancelled, then attempts one
// final flush with a short grace deadline.
func (s *BufferedVerdictStore) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			graceCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			s.Flush(graceCtx)
			cancel()
			return
		case <-ticker.C:
			s.Flush(ctx)
		}
	}
}

var _ VerdictStore = (*BufferedVerdictStore)(nil)
