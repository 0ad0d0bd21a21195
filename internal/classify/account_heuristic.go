package classify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"scamwatch/internal/domain"
)

// Rubric weights. They intentionally sum to 110 and are normalized, so the
// relative emphasis matches the published criteria exactly.
const (
	weightFrequency  = 30.0
	weightContent    = 40.0
	weightEngagement = 40.0
)

var hypeWords = []string{"moon", "#memecoin", "100x", "1000x", "pump", "don't miss", "last chance", "gem"}

var substanceWords = []string{"audit", "partnership", "listing", "roadmap", "mainnet", "testnet", "burn", "liquidity locked", "ama", "github", "whitepaper"}

// AccountHeuristic scores a social account on post frequency, content
// quality and engagement. A vanished account is decisively high risk; the
// mid band hands off to the LLM strategy.
type AccountHeuristic struct{}

// NewAccountHeuristic creates the heuristic account strategy.
func NewAccountHeuristic() *AccountHeuristic { return &AccountHeuristic{} }

func (s *AccountHeuristic) Name() string    { return "account_heuristic" }
func (s *AccountHeuristic) Version() string { return "1" }

// Score applies the weighted rubric. Each criterion is scored 0-100, the
// weighted average maps onto the risk scale.
func (s *AccountHeuristic) Score(_ context.Context, ev *EntityEvidence) (Score, error) {
	profile := ev.LatestProfile()
	posts := ev.Posts()

	if profile == nil && len(posts) == 0 {
		return Score{}, ErrNotConfident
	}
	if profile != nil && !profile.Available {
		return Score{
			Risk:      0.92,
			Rationale: "account suspended, deleted or private",
			Confident: true,
		}, nil
	}

	freq := frequencyScore(posts)
	content := contentScore(posts)
	engagement := engagementScore(posts)

	weighted := (freq*weightFrequency + content*weightContent + engagement*weightEngagement) /
		(weightFrequency + weightContent + weightEngagement)

	score := Score{
		Risk: riskFromRubric(weighted),
		Rationale: fmt.Sprintf(
			"rubric %.0f/100 (frequency %.0f, content %.0f, engagement %.0f) over %d posts",
			weighted, freq, content, engagement, len(posts)),
	}
	// Strong patterns at either end are decisive, the middle is ambiguous.
	score.Confident = weighted < 20 || weighted > 80
	return score, nil
}

// frequencyScore: 100 for 3+ posts spread over more than a week, 50 for a
// launch burst, 0 for nothing.
func frequencyScore(posts []domain.SocialPost) float64 {
	if len(posts) == 0 {
		return 0
	}
	if len(posts) < 3 {
		return 50
	}
	earliest, latest := posts[0].PostedAt, posts[0].PostedAt
	for _, p := range posts[1:] {
		if p.PostedAt < earliest {
			earliest = p.PostedAt
		}
		if p.PostedAt > latest {
			latest = p.PostedAt
		}
	}
	if latest-earliest > (7 * 24 * time.Hour).Milliseconds() {
		return 100
	}
	return 50
}

func contentScore(posts []domain.SocialPost) float64 {
	if len(posts) == 0 {
		return 0
	}
	var hype, substance int
	for _, p := range posts {
		text := strings.ToLower(p.Text)
		for _, w := range hypeWords {
			if strings.Contains(text, w) {
				hype++
				break
			}
		}
		for _, w := range substanceWords {
			if strings.Contains(text, w) {
				substance++
				break
			}
		}
	}
	switch {
	case substance > 0 && substance >= hype:
		return 100
	case substance > 0:
		return 50
	case hype > 0:
		return 0
	default:
		return 50
	}
}

// engagementScore: 100 for community interaction, 50 for limited, 0 for
// one-way broadcasting.
func engagementScore(posts []domain.SocialPost) float64 {
	if len(posts) == 0 {
		return 0
	}
	var interactions int64
	for _, p := range posts {
		interactions += p.ReplyCount + p.RetweetCount + p.FavoriteCount
	}
	avg := float64(interactions) / float64(len(posts))
	switch {
	case avg >= 10:
		return 100
	case avg >= 1:
		return 50
	default:
		return 0
	}
}

// riskFromRubric maps the 0-100 rubric scale onto [0,1] risk so the rubric
// boundaries land on the category thresholds: 20 maps to 0.70 and 80 to
// 0.30.
func riskFromRubric(score float64) float64 {
	switch {
	case score >= 80:
		return 0.30 * (100 - score) / 20
	case score >= 20:
		return 0.30 + (80-score)/60*0.40
	default:
		return 0.70 + (20-score)/20*0.30
	}
}

var _ Strategy = (*AccountHeuristic)(nil)
