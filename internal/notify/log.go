package notify

import (
	"context"

	"go.uber.org/zap"

	"scamwatch/internal/classify"
)

// LogChannel writes alerts to the structured log. Always configured; the
// minimum viable notification path.
type LogChannel struct {
	logger *zap.Logger
}

// NewLogChannel creates a log-backed channel.
func NewLogChannel(logger *zap.Logger) *LogChannel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogChannel{logger: logger}
}

func (c *LogChannel) Name() string { return "log" }

// Send logs the category change.
func (c *LogChannel) Send(_ context.Context, change classify.Change) error {
	fields := []zap.Field{
		zap.String("entity", change.Entity.Key),
		zap.String("kind", change.Entity.Kind.String()),
		zap.String("category", change.Current.Category.String()),
		zap.Float64("risk", change.Current.RiskScore),
		zap.String("classifier", change.Current.ClassifierVersion),
		zap.String("rationale", change.Current.Rationale),
	}
	if change.Previous != nil {
		fields = append(fields, zap.String("previous_category", change.Previous.Category.String()))
	}
	c.logger.Info("risk category changed", fields...)
	return nil
}

var _ Channel = (*LogChannel)(nil)
