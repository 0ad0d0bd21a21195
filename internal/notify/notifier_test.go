package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"scamwatch/internal/classify"
	"scamwatch/internal/domain"
)

type fakeChannel struct {
	name string
	err  error
	sent []classify.Change
}

func (c *fakeChannel) Name() string { return c.name }

func (c *fakeChannel) Send(_ context.Context, change classify.Change) error {
	c.sent = append(c.sent, change)
	return c.err
}

func sampleChange() classify.Change {
	prev := domain.Verdict{
		EntityKey: "0xaaa", RiskScore: 0.2, Category: domain.CategoryBenign, ProducedAt: 100,
	}
	return classify.Change{
		Entity:   &domain.Entity{Key: "0xaaa", Kind: domain.KindTokenContract},
		Previous: &prev,
		Current: domain.Verdict{
			EntityKey: "0xaaa", RiskScore: 0.85, Category: domain.CategoryLikelyScam,
			Rationale: "audit flags honeypot", ProducedAt: 200,
		},
	}
}

func TestFanoutDeliversToAllChannels(t *testing.T) {
	a := &fakeChannel{name: "a"}
	b := &fakeChannel{name: "b"}
	NewFanout(a, b).Notify(context.Background(), sampleChange())

	if len(a.sent) != 1 || len(b.sent) != 1 {
		t.Fatalf("deliveries a=%d b=%d, want 1 each", len(a.sent), len(b.sent))
	}
}

func TestFanoutFailingChannelDoesNotBlockOthers(t *testing.T) {
	broken := &fakeChannel{name: "broken", err: errors.New("unreachable")}
	healthy := &fakeChannel{name: "healthy"}
	NewFanout(broken, healthy).Notify(context.Background(), sampleChange())

	if len(healthy.sent) != 1 {
		t.Fatal("healthy channel skipped after broken one failed")
	}
}

func TestFormatAlert(t *testing.T) {
	text := formatAlert(sampleChange())
	for _, want := range []string{"0xaaa", "BENIGN", "LIKELY_SCAM", "0.85", "honeypot"} {
		if !strings.Contains(text, want) {
			t.Errorf("alert missing %q:\n%s", want, text)
		}
	}

	first := sampleChange()
	first.Previous = nil
	if !strings.Contains(formatAlert(first), "none") {
		t.Error("first verdict alert should show no previous category")
	}
}
