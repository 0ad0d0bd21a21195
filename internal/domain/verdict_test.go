package domain

import "testing"

func TestCategoryFor_Boundaries(t *testing.T) {
	th := DefaultThresholds()

	cases := []struct {
		score float64
		want  Category
	}{
		{0.0, CategoryBenign},
		{0.1, CategoryBenign},
		{0.29999, CategoryBenign},
		{0.30, CategorySuspicious},
		{0.5, CategorySuspicious},
		{0.70, CategorySuspicious},
		{0.70001, CategoryLikelyScam},
		{0.9, CategoryLikelyScam},
		{1.0, CategoryLikelyScam},
	}

	for _, tc := range cases {
		got := CategoryFor(tc.score, th)
		if got != tc.want {
			t.Errorf("CategoryFor(%v) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestEntity_HasObservation(t *testing.T) {
	e := &Entity{
		Key:  "0xabc",
		Kind: KindTokenContract,
		Observations: []Observation{
			{Source: SourceTokenFeed, RawID: "block-1-tx-0"},
			{Source: SourceDexListing, RawID: "pair-1"},
		},
	}

	if !e.HasObservation(SourceTokenFeed, "block-1-tx-0") {
		t.Error("expected existing observation to be found")
	}
	// Same raw ID under a different source is not a duplicate
	if e.HasObservation(SourceContractMeta, "block-1-tx-0") {
		t.Error("raw ID from a different source must not match")
	}
	if e.HasObservation(SourceTokenFeed, "block-2-tx-0") {
		t.Error("unknown raw ID must not match")
	}
}

func TestKindForSource(t *testing.T) {
	if KindForSource(SourceTwitter) != KindSocialAccount {
		t.Error("TWITTER observations must resolve to social accounts")
	}
	for _, s := range []Source{SourceTokenFeed, SourceContractMeta, SourceDexListing} {
		if KindForSource(s) != KindTokenContract {
			t.Errorf("%s observations must resolve to token contracts", s)
		}
	}
}
