package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"scamwatch/internal/domain"
	"scamwatch/internal/llm"
)

func contractEvidence(payloads ...domain.Payload) *EntityEvidence {
	e := &domain.Entity{Key: "0xaaa", Kind: domain.KindTokenContract}
	for i, p := range payloads {
		e.Observations = append(e.Observations, domain.Observation{
			Source:  domain.SourceDexListing,
			Payload: p,
			RawID:   string(rune('a' + i)),
		})
	}
	return &EntityEvidence{Entity: e}
}

func accountEvidence(payloads ...domain.Payload) *EntityEvidence {
	e := &domain.Entity{Key: "proj", Kind: domain.KindSocialAccount}
	for i, p := range payloads {
		e.Observations = append(e.Observations, domain.Observation{
			Source:  domain.SourceTwitter,
			Payload: p,
			RawID:   string(rune('a' + i)),
		})
	}
	return &EntityEvidence{Entity: e}
}

func TestContractRulesNoEvidence(t *testing.T) {
	s := NewContractRules()
	_, err := s.Score(context.Background(), contractEvidence(domain.TokenListing{Name: "T"}))
	if !errors.Is(err, ErrNotConfident) {
		t.Fatalf("err = %v, want ErrNotConfident", err)
	}
}

func TestContractRulesHoneypotIsDecisive(t *testing.T) {
	s := NewContractRules()
	score, err := s.Score(context.Background(), contractEvidence(domain.DexAudit{
		IsHoneypot:   true,
		IsOpenSource: true,
		LiquidityUSD: decimal.NewFromInt(50000),
	}))
	if err != nil {
		t.Fatal(err)
	}
	if !score.Confident {
		t.Error("honeypot flag should be decisive")
	}
	if score.Risk <= 0.70 {
		t.Errorf("risk = %.2f, want > 0.70", score.Risk)
	}
}

func TestContractRulesExtremeTaxIsDecisive(t *testing.T) {
	s := NewContractRules()
	score, err := s.Score(context.Background(), contractEvidence(domain.DexAudit{
		IsOpenSource: true,
		SellTaxMax:   decimal.NewFromInt(99),
		LiquidityUSD: decimal.NewFromInt(1000),
	}))
	if err != nil {
		t.Fatal(err)
	}
	if !score.Confident {
		t.Error("99% sell tax should be decisive")
	}
}

func TestContractRulesCleanAuditedToken(t *testing.T) {
	s := NewContractRules()
	ev := contractEvidence(
		domain.DexAudit{IsOpenSource: true, LiquidityUSD: decimal.NewFromInt(100000)},
		domain.ContractMeta{SourceCode: "contract T {}", CompilerVersion: "0.8.20"},
	)
	score, err := s.Score(context.Background(), ev)
	if err != nil {
		t.Fatal(err)
	}
	if !score.Confident {
		t.Error("fully audited clean token should be confident")
	}
	if score.Risk >= 0.30 {
		t.Errorf("risk = %.2f, want benign range", score.Risk)
	}
}

func TestContractRulesGrayZoneFallsThrough(t *testing.T) {
	s := NewContractRules()
	// Mintable but otherwise healthy: ambiguous, should hand off.
	score, err := s.Score(context.Background(), contractEvidence(domain.DexAudit{
		IsOpenSource: true,
		IsMintable:   true,
		LiquidityUSD: decimal.NewFromInt(10000),
	}))
	if err != nil {
		t.Fatal(err)
	}
	if score.Confident {
		t.Errorf("mintable-only audit should not be confident (risk %.2f)", score.Risk)
	}
}

func TestAccountHeuristicUnavailableAccount(t *testing.T) {
	s := NewAccountHeuristic()
	score, err := s.Score(context.Background(), accountEvidence(domain.SocialProfile{Available: false}))
	if err != nil {
		t.Fatal(err)
	}
	if !score.Confident || score.Risk <= 0.70 {
		t.Errorf("vanished account: confident=%v risk=%.2f, want decisive likely-scam", score.Confident, score.Risk)
	}
}

func TestAccountHeuristicHypeOnlyLaunchBurst(t *testing.T) {
	s := NewAccountHeuristic()
	score, err := s.Score(context.Background(), accountEvidence(
		domain.SocialProfile{Available: true, FollowerCount: 12},
		domain.SocialPost{Text: "TO THE MOON!!! #MEMECOIN", PostedAt: 1000},
	))
	if err != nil {
		t.Fatal(err)
	}
	if !score.Confident {
		t.Errorf("pure hype burst should be a strong pattern, risk=%.2f", score.Risk)
	}
	if score.Risk <= 0.70 {
		t.Errorf("risk = %.2f, want likely-scam range", score.Risk)
	}
}

func TestAccountHeuristicEstablishedProject(t *testing.T) {
	week := int64(8 * 24 * 60 * 60 * 1000)
	s := NewAccountHeuristic()
	score, err := s.Score(context.Background(), accountEvidence(
		domain.SocialProfile{Available: true, FollowerCount: 5000},
		domain.SocialPost{Text: "Audit complete, report on github", PostedAt: 0, ReplyCount: 40, FavoriteCount: 200},
		domain.SocialPost{Text: "Partnership with a web3 studio announced", PostedAt: week / 2, ReplyCount: 25, FavoriteCount: 90},
		domain.SocialPost{Text: "AMA this friday, bring questions", PostedAt: week, ReplyCount: 60, FavoriteCount: 150},
	))
	if err != nil {
		t.Fatal(err)
	}
	if !score.Confident {
		t.Errorf("strong legitimate pattern should be confident, risk=%.2f", score.Risk)
	}
	if score.Risk >= 0.30 {
		t.Errorf("risk = %.2f, want benign range", score.Risk)
	}
}

func TestRiskFromRubricBoundaries(t *testing.T) {
	cases := []struct {
		rubric float64
		want   float64
	}{
		{100, 0.0},
		{80, 0.30},
		{20, 0.70},
		{0, 1.0},
	}
	for _, tc := range cases {
		got := riskFromRubric(tc.rubric)
		if diff := got - tc.want; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("riskFromRubric(%.0f) = %.4f, want %.4f", tc.rubric, got, tc.want)
		}
	}
}

type fakeContractAnalyzer struct {
	report *llm.ContractReport
	err    error
}

func (f *fakeContractAnalyzer) AnalyzeContract(context.Context, string) (*llm.ContractReport, error) {
	return f.report, f.err
}

func TestContractLLMRequiresSource(t *testing.T) {
	s := NewContractLLM(&fakeContractAnalyzer{})
	_, err := s.Score(context.Background(), contractEvidence(domain.DexAudit{}))
	if !errors.Is(err, ErrNotConfident) {
		t.Fatalf("err = %v, want ErrNotConfident without source code", err)
	}
}

func TestContractLLMWeighsFindings(t *testing.T) {
	s := NewContractLLM(&fakeContractAnalyzer{report: &llm.ContractReport{
		IsHoneypot: llm.Finding{Value: true, Reason: "sell blocked in _transfer"},
	}})
	score, err := s.Score(context.Background(), contractEvidence(
		domain.ContractMeta{SourceCode: "contract T {}"},
	))
	if err != nil {
		t.Fatal(err)
	}
	if !score.Confident || score.Risk <= 0.70 {
		t.Errorf("honeypot finding: confident=%v risk=%.2f", score.Confident, score.Risk)
	}
	if score.Rationale == "" {
		t.Error("rationale empty")
	}
}

type fakeAccountAnalyzer struct {
	report *llm.AccountReport
	err    error
}

func (f *fakeAccountAnalyzer) AssessAccount(context.Context, string, []llm.AccountPost) (*llm.AccountReport, error) {
	return f.report, f.err
}

func TestAccountLLMMapsConfidence(t *testing.T) {
	s := NewAccountLLM(&fakeAccountAnalyzer{report: &llm.AccountReport{
		IsScam: true, Confidence: 0.9, Reasoning: "single hype post",
	}})
	score, err := s.Score(context.Background(), accountEvidence(
		domain.SocialPost{Text: "moon soon"},
	))
	if err != nil {
		t.Fatal(err)
	}
	if diff := score.Risk - 0.95; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("risk = %.2f, want 0.95", score.Risk)
	}

	s = NewAccountLLM(&fakeAccountAnalyzer{report: &llm.AccountReport{
		IsScam: false, Confidence: 0.8, Reasoning: "steady technical updates",
	}})
	score, err = s.Score(context.Background(), accountEvidence(
		domain.SocialPost{Text: "audit done"},
	))
	if err != nil {
		t.Fatal(err)
	}
	if diff := score.Risk - 0.1; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("risk = %.2f, want 0.10", score.Risk)
	}
}
