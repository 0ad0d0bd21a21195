package llm

import (
	"fmt"
	"strings"
	"time"
)

// SystemInstruction primes the model as a token risk analyst. Both prompt
// builders run under it.
const SystemInstruction = "You are a cryptocurrency scam analyst. " +
	"You review ERC-20 contract source code and project social media history " +
	"and answer strictly in JSON with no surrounding prose."

// BuildContractPrompt asks for the security feature checklist of a
// contract's source code.
func BuildContractPrompt(sourceCode string) string {
	var b strings.Builder
	b.WriteString(`Analyze this smart contract for security features and return a JSON object based on the provided source code.

1. is_honeypot: Check if the token may not be sold due to contract functions or is designed to trap users.
Key checks:
- Admin abuse: can the deployer drain funds via privileged functions?
- Fund drain: functions that steal ETH or tokens, taxes sent to a withdrawable wallet, extreme tax rates (99% or similar). Taxes between 10% and 50% are acceptable.
- Tax traps: dynamic taxes that spike on sell, hidden fees.
- Transfer tricks: does _transfer() block sells or hide burns via reverts or silent failures?
- DEX exploits: can the owner remove liquidity or manipulate swaps via pair control?

2. is_mintable: Check if new tokens can be created, letting the deployer manipulate balances.
Key checks: functions that increase total supply, disguised minting logic behind indirect calls or misleading names.

3. is_proxy: Check if the contract uses a proxy pattern, e.g. delegatecall to an implementation contract.

4. is_blacklist: Check for address blacklisting mechanisms, including logic that survives ownership renunciation and obfuscated blacklist structures.

5. transfer_pausable: Check if token transfers can be paused by the deployer or another address.

Output format:
{
  "is_honeypot": {"value": true, "reason": "brief explanation"},
  "is_mintable": {"value": false, "reason": "brief explanation"},
  "is_proxy": {"value": false, "reason": "brief explanation"},
  "is_blacklist": {"value": false, "reason": "brief explanation"},
  "transfer_pausable": {"value": false, "reason": "brief explanation"}
}

Source code:
`)
	b.WriteString(sourceCode)
	return b.String()
}

// AccountPost is one post handed to the account prompt.
type AccountPost struct {
	PostedAt int64 // Unix ms
	Text     string
}

// BuildAccountPrompt asks for a scam classification of a project account
// from its posting history. Weighted rubric: post frequency 30%, content
// quality 40%, engagement 40%; weighted score under 20 out of 100 means
// scam.
func BuildAccountPrompt(tokenName string, posts []AccountPost) string {
	var b strings.Builder
	b.WriteString(`Classify the cryptocurrency project behind this account as scam or non-scam using its posting history.

Classification criteria:
1. Post frequency (30%): scam accounts show 1-2 posts at launch or no history; legitimate projects post 3+ times over weeks or months.
2. Content quality (40%): scam content is hype-driven ("moon", #MEMECOIN), repetitive, with no technical details; legitimate content has specific updates such as partnerships, audits and listings.
3. Engagement (40%): scam accounts broadcast one-way hype; legitimate accounts interact with their community (AMAs, contests, replies).

Steps:
1. Score each criterion 0-100.
2. Compute the weighted average. Score >= 20 means non-scam, below 20 means scam.
3. Set confidence 0.9-1.0 for strong patterns (score under 20 or over 80), 0.5-0.7 when ambiguous.
4. Cite the criteria in the reasoning.

Edge cases: for ambiguous posts prioritize content quality and engagement and lower the confidence. Hype wording in an otherwise legitimate account needs 3+ posts with technical detail or engagement to classify non-scam.

Output format:
{"is_scam": true, "confidence": 0.95, "reasoning": "brief explanation"}

`)
	fmt.Fprintf(&b, "Token name: %s\nPosting history:\n", tokenName)
	for _, p := range posts {
		ts := time.UnixMilli(p.PostedAt).UTC().Format("2006-01-02")
		fmt.Fprintf(&b, "- [%s] %s\n", ts, p.Text)
	}
	if len(posts) == 0 {
		b.WriteString("(no posts available)\n")
	}
	return b.String()
}
