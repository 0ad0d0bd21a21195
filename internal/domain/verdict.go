package domain

// Category is the coarse risk bucket derived from a verdict's numeric score.
type Category string

const (
	CategoryBenign     Category = "BENIGN"
	CategorySuspicious Category = "SUSPICIOUS"
	CategoryLikelyScam Category = "LIKELY_SCAM"
)

// String returns the string representation of Category.
func (c Category) String() string {
	return string(c)
}

// IsValid checks if the category is a valid value.
func (c Category) IsValid() bool {
	return c == CategoryBenign || c == CategorySuspicious || c == CategoryLikelyScam
}

// Thresholds holds the category boundaries applied to risk scores.
// Scores below Benign are BENIGN, scores above Scam are LIKELY_SCAM,
// everything in between (inclusive) is SUSPICIOUS.
type Thresholds struct {
	Benign float64 // default 0.30
	Scam   float64 // default 0.70
}

// DefaultThresholds returns the standard category boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{Benign: 0.30, Scam: 0.70}
}

// CategoryFor maps a risk score to its category under the given thresholds.
// Boundaries are applied identically for every classifier strategy so
// downstream consumers need not know which strategy produced a verdict.
func CategoryFor(score float64, t Thresholds) Category {
	switch {
	case score < t.Benign:
		return CategoryBenign
	case score <= t.Scam:
		return CategorySuspicious
	default:
		return CategoryLikelyScam
	}
}

// Verdict is a point-in-time risk classification produced from an entity's
// accumulated evidence. Immutable once produced; a new verdict supersedes but
// never overwrites the prior one.
type Verdict struct {
	EntityKey         string
	RiskScore         float64 // always within [0, 1]
	Category          Category
	Rationale         string
	ProducedAt        int64 // Unix ms
	ClassifierVersion string
}
