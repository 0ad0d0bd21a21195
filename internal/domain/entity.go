package domain

// Entity is the resolved identity (token contract or social account) that
// observations accumulate against. One entity per unique key; created on the
// first observation referencing that key and never deleted.
type Entity struct {
	Key            string
	Kind           EntityKind
	Observations   []Observation // append-only, insertion order
	CurrentVerdict *Verdict      // nil until first classification
	FirstSeen      int64         // Unix ms
	LastSeen       int64         // Unix ms
}

// HasObservation reports whether an observation with the given source and
// raw ID is already recorded. This is the duplicate test: identity-diffed,
// never content-diffed.
func (e *Entity) HasObservation(source Source, rawID string) bool {
	for i := range e.Observations {
		if e.Observations[i].Source == source && e.Observations[i].RawID == rawID {
			return true
		}
	}
	return false
}

// Clone returns a deep-enough copy for handing across goroutine boundaries.
// Observations are immutable so the backing structs are shared; the slice
// header and verdict pointer are copied.
func (e *Entity) Clone() *Entity {
	clone := *e
	clone.Observations = make([]Observation, len(e.Observations))
	copy(clone.Observations, e.Observations)
	if e.CurrentVerdict != nil {
		v := *e.CurrentVerdict
		clone.CurrentVerdict = &v
	}
	return &clone
}

// CrossLink is a non-owning relation between a token contract entity and a
// social account entity. Lookup only: the two identities keep independent
// lifecycles and are never merged.
type CrossLink struct {
	ContractKey string
	AccountKey  string
	Source      Source // source whose payload established the link
	LinkedAt    int64  // Unix ms
}
