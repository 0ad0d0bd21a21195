package classify

import (
	"context"
	"fmt"
	"strings"

	"scamwatch/internal/llm"
)

// ContractAnalyzer runs the security checklist over contract source.
// *llm.Client satisfies it.
type ContractAnalyzer interface {
	AnalyzeContract(ctx context.Context, sourceCode string) (*llm.ContractReport, error)
}

// ContractLLM scores a token from its verified source code via the model
// checklist. It runs after ContractRules and only when source code is
// available.
type ContractLLM struct {
	analyzer ContractAnalyzer
}

// NewContractLLM creates the model-backed contract strategy.
func NewContractLLM(analyzer ContractAnalyzer) *ContractLLM {
	return &ContractLLM{analyzer: analyzer}
}

func (s *ContractLLM) Name() string    { return "contract_llm" }
func (s *ContractLLM) Version() string { return "1" }

// Score sends the source code through the checklist and weighs the
// reported features.
func (s *ContractLLM) Score(ctx context.Context, ev *EntityEvidence) (Score, error) {
	meta := ev.LatestContractMeta()
	if meta == nil || !meta.Verified() {
		return Score{}, ErrNotConfident
	}

	report, err := s.analyzer.AnalyzeContract(ctx, meta.SourceCode)
	if err != nil {
		return Score{}, fmt.Errorf("analyze contract: %w", err)
	}

	var (
		risk    float64
		reasons []string
	)
	weigh := func(f llm.Finding, weight float64, label string) {
		if !f.Value {
			return
		}
		risk += weight
		if f.Reason != "" {
			reasons = append(reasons, label+": "+f.Reason)
		} else {
			reasons = append(reasons, label)
		}
	}
	weigh(report.IsHoneypot, 0.90, "honeypot")
	weigh(report.IsMintable, 0.25, "mintable")
	weigh(report.IsBlacklist, 0.25, "blacklist")
	weigh(report.TransferPausable, 0.20, "transfer pausable")
	weigh(report.IsProxy, 0.15, "proxy")

	if len(reasons) == 0 {
		reasons = append(reasons, "source review found no honeypot, mint, blacklist, pause or proxy logic")
	}
	return Score{
		Risk:      clamp(risk),
		Rationale: strings.Join(reasons, "; "),
		Confident: true,
	}, nil
}

var _ Strategy = (*ContractLLM)(nil)
