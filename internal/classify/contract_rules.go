package classify

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	extremeTax = decimal.NewFromInt(50) // percent; above this the token is effectively unsellable
	highTax    = decimal.NewFromInt(10)
)

// ContractRules is the deterministic pre-filter for token contracts. It
// scores the audit flags and listing data without any model call, and is
// confident only when the evidence is decisive; gray-zone tokens fall
// through to the LLM strategy.
type ContractRules struct{}

// NewContractRules creates the rule strategy.
func NewContractRules() *ContractRules { return &ContractRules{} }

func (s *ContractRules) Name() string    { return "contract_rules" }
func (s *ContractRules) Version() string { return "1" }

// Score applies the flag weights. An audited honeypot or an extreme tax is
// decisive on its own.
func (s *ContractRules) Score(_ context.Context, ev *EntityEvidence) (Score, error) {
	audit := ev.LatestDexAudit()
	meta := ev.LatestContractMeta()
	if audit == nil && meta == nil {
		// Only the listing itself so far; nothing to score yet.
		return Score{}, ErrNotConfident
	}

	var (
		risk     float64
		reasons  []string
		decisive bool
	)
	addFlag := func(weight float64, reason string) {
		risk += weight
		reasons = append(reasons, reason)
	}

	if audit != nil {
		if audit.IsHoneypot {
			addFlag(0.90, "audit flags honeypot")
			decisive = true
		}
		if audit.BuyTaxMax.GreaterThan(extremeTax) || audit.SellTaxMax.GreaterThan(extremeTax) {
			addFlag(0.40, fmt.Sprintf("extreme tax (buy %s%%, sell %s%%)", audit.BuyTaxMax, audit.SellTaxMax))
			decisive = true
		} else if audit.BuyTaxMax.GreaterThan(highTax) || audit.SellTaxMax.GreaterThan(highTax) {
			addFlag(0.10, "elevated tax")
		}
		if audit.IsMintable {
			addFlag(0.25, "supply is mintable")
		}
		if audit.IsBlacklisted {
			addFlag(0.25, "blacklisting mechanism present")
		}
		if audit.TransferPausable {
			addFlag(0.20, "transfers pausable")
		}
		if audit.IsProxy {
			addFlag(0.15, "proxy contract")
		}
		if !audit.IsOpenSource {
			addFlag(0.15, "closed source per audit")
		}
		if audit.LiquidityUSD.IsZero() {
			addFlag(0.15, "no liquidity")
		}
		if len(audit.Warnings) > 0 {
			addFlag(0.10, fmt.Sprintf("%d provider warnings", len(audit.Warnings)))
		}
	}
	if meta != nil && !meta.Verified() {
		addFlag(0.20, "source not verified on explorer")
	}

	if len(reasons) == 0 {
		reasons = append(reasons, "no risk flags in audit or metadata")
	}
	score := Score{
		Risk:      clamp(risk),
		Rationale: strings.Join(reasons, "; "),
	}

	// Decisive flags or a clean fully-audited token need no second opinion.
	score.Confident = decisive || score.Risk >= 0.70 || (audit != nil && meta != nil && score.Risk < 0.10)
	return score, nil
}

var _ Strategy = (*ContractRules)(nil)
