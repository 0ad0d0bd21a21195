package memory

import (
	"context"
	"errors"
	"testing"

	"scamwatch/internal/domain"
	"scamwatch/internal/storage"
)

func testVerdict(key string, producedAt int64, score float64) domain.Verdict {
	return domain.Verdict{
		EntityKey:         key,
		RiskScore:         score,
		Category:          domain.CategoryFor(score, domain.DefaultThresholds()),
		Rationale:         "test",
		ProducedAt:        producedAt,
		ClassifierVersion: "contract_rules/1",
	}
}

func TestVerdictStorePersistAndHistory(t *testing.T) {
	s := NewVerdictStore()
	ctx := context.Background()

	// Out of order persists still come back ascending.
	for _, v := range []domain.Verdict{
		testVerdict("0xaaa", 300, 0.8),
		testVerdict("0xaaa", 100, 0.1),
		testVerdict("0xaaa", 200, 0.5),
	} {
		if err := s.Persist(ctx, v); err != nil {
			t.Fatalf("Persist: %v", err)
		}
	}

	history, err := s.History(ctx, "0xaaa")
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 3 {
		t.Fatalf("history length = %d, want 3", len(history))
	}
	for i := 1; i < len(history); i++ {
		if history[i].ProducedAt < history[i-1].ProducedAt {
			t.Fatalf("history not ascending: %v", history)
		}
	}
}

func TestVerdictStorePersistIdempotent(t *testing.T) {
	s := NewVerdictStore()
	ctx := context.Background()

	v := testVerdict("0xaaa", 100, 0.5)
	if err := s.Persist(ctx, v); err != nil {
		t.Fatal(err)
	}
	if err := s.Persist(ctx, v); err != nil {
		t.Fatalf("re-Persist: %v", err)
	}

	history, _ := s.History(ctx, "0xaaa")
	if len(history) != 1 {
		t.Fatalf("history length = %d after duplicate persist, want 1", len(history))
	}
}

func TestVerdictStoreLatest(t *testing.T) {
	s := NewVerdictStore()
	ctx := context.Background()

	if _, err := s.Latest(ctx, "0xaaa"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Latest on empty err = %v, want ErrNotFound", err)
	}

	s.Persist(ctx, testVerdict("0xaaa", 100, 0.1))
	s.Persist(ctx, testVerdict("0xaaa", 200, 0.9))

	latest, err := s.Latest(ctx, "0xaaa")
	if err != nil {
		t.Fatal(err)
	}
	if latest.ProducedAt != 200 || latest.Category != domain.CategoryLikelyScam {
		t.Errorf("Latest = %+v", latest)
	}
}

func TestVerdictStorePersistValidation(t *testing.T) {
	s := NewVerdictStore()
	ctx := context.Background()

	cases := []domain.Verdict{
		{RiskScore: 0.5, Category: domain.CategorySuspicious},             // empty key
		{EntityKey: "0xaaa", RiskScore: 1.5, Category: domain.CategoryLikelyScam}, // score out of range
		{EntityKey: "0xaaa", RiskScore: 0.5, Category: "UNKNOWN"},
	}
	for i, v := range cases {
		if err := s.Persist(ctx, v); !errors.Is(err, storage.ErrInvalidInput) {
			t.Errorf("case %d: err = %v, want ErrInvalidInput", i, err)
		}
	}
}

func TestVerdictStoreHistoryUnknownKeyIsEmpty(t *testing.T) {
	s := NewVerdictStore()
	history, err := s.History(context.Background(), "0xnobody")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("history = %v, want empty", history)
	}
}
