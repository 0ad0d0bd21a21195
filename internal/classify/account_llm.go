package classify

import (
	"context"
	"fmt"

	"scamwatch/internal/llm"
)

// AccountAnalyzer classifies a project account from its posting history.
// *llm.Client satisfies it.
type AccountAnalyzer interface {
	AssessAccount(ctx context.Context, tokenName string, posts []llm.AccountPost) (*llm.AccountReport, error)
}

// AccountLLM scores an account through the model when the heuristic lands
// in the ambiguous middle band.
type AccountLLM struct {
	analyzer AccountAnalyzer
}

// NewAccountLLM creates the model-backed account strategy.
func NewAccountLLM(analyzer AccountAnalyzer) *AccountLLM {
	return &AccountLLM{analyzer: analyzer}
}

func (s *AccountLLM) Name() string    { return "account_llm" }
func (s *AccountLLM) Version() string { return "1" }

// Score maps the model's binary call plus confidence onto the risk scale:
// a confident scam call approaches 1.0, a confident non-scam call
// approaches 0.0, and uncertainty pulls toward the middle.
func (s *AccountLLM) Score(ctx context.Context, ev *EntityEvidence) (Score, error) {
	posts := ev.Posts()
	if len(posts) == 0 {
		return Score{}, ErrNotConfident
	}

	history := make([]llm.AccountPost, len(posts))
	for i, p := range posts {
		history[i] = llm.AccountPost{PostedAt: p.PostedAt, Text: p.Text}
	}

	report, err := s.analyzer.AssessAccount(ctx, ev.TokenName(), history)
	if err != nil {
		return Score{}, fmt.Errorf("assess account: %w", err)
	}

	risk := 0.5 - 0.5*report.Confidence
	if report.IsScam {
		risk = 0.5 + 0.5*report.Confidence
	}
	return Score{
		Risk:      clamp(risk),
		Rationale: report.Reasoning,
		Confident: report.Confidence >= 0.5,
	}, nil
}

var _ Strategy = (*AccountLLM)(nil)
