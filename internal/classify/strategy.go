// Package classify turns accumulated entity evidence into risk verdicts.
package classify

import (
	"context"
	"errors"

	"scamwatch/internal/domain"
)

// ErrNotConfident is returned by a strategy that ran but cannot commit to a
// score, handing the decision to the next strategy in the chain.
var ErrNotConfident = errors.New("strategy not confident")

// Score is a strategy's assessment of an entity.
type Score struct {
	Risk      float64 // [0, 1], clamped by the engine
	Rationale string
	Confident bool // false hands off to the next strategy in the chain
}

// EntityEvidence is everything a strategy may look at: the entity itself
// plus snapshots of cross-linked entities.
type EntityEvidence struct {
	Entity *domain.Entity
	Linked []*domain.Entity
}

// Strategy scores an entity from its evidence. Implementations must be safe
// for concurrent use; the engine serializes calls per entity but not across
// entities.
type Strategy interface {
	// Name identifies the strategy in verdicts and metrics.
	Name() string

	// Version participates in the verdict's ClassifierVersion so scoring
	// changes are visible in history.
	Version() string

	// Score assesses the entity. Returning an error (including
	// ErrNotConfident) passes control to the next strategy.
	Score(ctx context.Context, ev *EntityEvidence) (Score, error)
}

// LatestDexAudit returns the most recent DexAudit payload, or nil.
func (ev *EntityEvidence) LatestDexAudit() *domain.DexAudit {
	var found *domain.DexAudit
	for i := range ev.Entity.Observations {
		if p, ok := ev.Entity.Observations[i].Payload.(domain.DexAudit); ok {
			audit := p
			found = &audit
		}
	}
	return found
}

// LatestContractMeta returns the most recent ContractMeta payload, or nil.
func (ev *EntityEvidence) LatestContractMeta() *domain.ContractMeta {
	var found *domain.ContractMeta
	for i := range ev.Entity.Observations {
		if p, ok := ev.Entity.Observations[i].Payload.(domain.ContractMeta); ok {
			meta := p
			found = &meta
		}
	}
	return found
}

// LatestTokenListing returns the most recent TokenListing payload, or nil.
func (ev *EntityEvidence) LatestTokenListing() *domain.TokenListing {
	var found *domain.TokenListing
	for i := range ev.Entity.Observations {
		if p, ok := ev.Entity.Observations[i].Payload.(domain.TokenListing); ok {
			listing := p
			found = &listing
		}
	}
	return found
}

// LatestProfile returns the most recent SocialProfile payload from the
// entity or, for a contract, from its linked accounts. Nil when none exists.
func (ev *EntityEvidence) LatestProfile() *domain.SocialProfile {
	var found *domain.SocialProfile
	scan := func(e *domain.Entity) {
		for i := range e.Observations {
			if p, ok := e.Observations[i].Payload.(domain.SocialProfile); ok {
				profile := p
				found = &profile
			}
		}
	}
	scan(ev.Entity)
	if found == nil {
		for _, linked := range ev.Linked {
			scan(linked)
		}
	}
	return found
}

// Posts collects every SocialPost payload from the entity and its linked
// entities, in observation order.
func (ev *EntityEvidence) Posts() []domain.SocialPost {
	var posts []domain.SocialPost
	collect := func(e *domain.Entity) {
		for i := range e.Observations {
			if p, ok := e.Observations[i].Payload.(domain.SocialPost); ok {
				posts = append(posts, p)
			}
		}
	}
	collect(ev.Entity)
	for _, linked := range ev.Linked {
		collect(linked)
	}
	return posts
}

// TokenName returns the best available display name for the token behind
// this evidence, falling back to the entity key.
func (ev *EntityEvidence) TokenName() string {
	if listing := ev.LatestTokenListing(); listing != nil && listing.Name != "" {
		return listing.Name
	}
	for _, linked := range ev.Linked {
		for i := range linked.Observations {
			if p, ok := linked.Observations[i].Payload.(domain.TokenListing); ok && p.Name != "" {
				return p.Name
			}
		}
	}
	return ev.Entity.Key
}
