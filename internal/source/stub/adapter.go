// Package stub provides a scripted source adapter for tests.
package stub

import (
	"context"
	"sync"

	"scamwatch/internal/domain"
	"scamwatch/internal/source"
)

// Step is one scripted Fetch result.
type Step struct {
	Records []source.Record
	Err     error
}

// Adapter replays a fixed script of Fetch results, one step per call.
// After the script is exhausted it returns empty batches unless Repeat
// is set, in which case the script loops.
type Adapter struct {
	name   string
	src    domain.Source
	script []Step
	repeat bool

	mu    sync.Mutex
	pos   int
	calls int
}

// New creates a scripted adapter for the given source.
func New(name string, src domain.Source, script ...Step) *Adapter {
	return &Adapter{name: name, src: src, script: script}
}

// Repeat makes the script loop instead of running dry.
func (a *Adapter) Repeat() *Adapter {
	a.repeat = true
	return a
}

func (a *Adapter) Name() string          { return a.name }
func (a *Adapter) Source() domain.Source { return a.src }

// Fetch returns the next scripted step.
func (a *Adapter) Fetch(ctx context.Context, limit int) ([]source.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++

	if a.pos >= len(a.script) {
		if !a.repeat || len(a.script) == 0 {
			return nil, nil
		}
		a.pos = 0
	}
	step := a.script[a.pos]
	a.pos++

	// A step may carry records and an error together, the shape a real
	// adapter produces when a batch fails partway through.
	records := step.Records
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, step.Err
}

// Calls reports how many times Fetch ran.
func (a *Adapter) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

var _ source.Adapter = (*Adapter)(nil)
