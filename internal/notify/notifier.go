// Package notify delivers category-change alerts to operator channels.
package notify

import (
	"context"
	"fmt"

	"scamwatch/internal/classify"
	"scamwatch/internal/observability"
)

// Channel is one delivery target. Delivery is at-least-once; consumers
// dedup on (entity_key, produced_at).
type Channel interface {
	// Name labels the channel in metrics.
	Name() string

	// Send delivers one alert.
	Send(ctx context.Context, change classify.Change) error
}

// Fanout delivers every change to all channels. A failing channel never
// blocks the others or the classification path.
type Fanout struct {
	channels []Channel
}

// NewFanout creates a notifier over the given channels.
func NewFanout(channels ...Channel) *Fanout {
	return &Fanout{channels: channels}
}

// Notify implements classify.Notifier.
func (f *Fanout) Notify(ctx context.Context, change classify.Change) {
	for _, ch := range f.channels {
		err := ch.Send(ctx, change)
		observability.RecordNotification(ch.Name(), err)
	}
}

// formatAlert renders the operator-facing alert text.
func formatAlert(change classify.Change) string {
	prev := "none"
	if change.Previous != nil {
		prev = fmt.Sprintf("%s (%.2f)", change.Previous.Category, change.Previous.RiskScore)
	}
	return fmt.Sprintf(
		"%s %s: %s -> %s (%.2f)\n%s",
		change.Entity.Kind,
		change.Entity.Key,
		prev,
		change.Current.Category,
		change.Current.RiskScore,
		change.Current.Rationale,
	)
}

var _ classify.Notifier = (*Fanout)(nil)
