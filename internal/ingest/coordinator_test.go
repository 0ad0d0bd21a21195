package ingest

import (
	"context"
	"testing"
	"time"

	"scamwatch/internal/domain"
	"scamwatch/internal/source"
	"scamwatch/internal/source/stub"
)

func fastPolicy() PollPolicy {
	return PollPolicy{
		Interval:         5 * time.Millisecond,
		RatePerMin:       60000,
		Burst:            1000,
		MaxAttempts:      2,
		BaseBackoff:      time.Millisecond,
		MaxBackoff:       5 * time.Millisecond,
		DegradedInterval: 10 * time.Millisecond,
		BatchSize:        10,
	}
}

func collect(t *testing.T, out <-chan domain.Observation, n int, timeout time.Duration) []domain.Observation {
	t.Helper()
	var got []domain.Observation
	deadline := time.After(timeout)
	for len(got) < n {
		select {
		case obs, ok := <-out:
			if !ok {
				return got
			}
			got = append(got, obs)
		case <-deadline:
			t.Fatalf("timed out with %d/%d observations", len(got), n)
		}
	}
	return got
}

func TestCoordinatorNormalizesRecords(t *testing.T) {
	adapter := stub.New("feed", domain.SourceTokenFeed, stub.Step{
		Records: []source.Record{
			{
				RawID:     "0xtx1",
				EntityKey: "0xABCDEF0123456789abcdef0123456789ABCDEF01",
				Payload:   domain.TokenListing{Name: "Test", Symbol: "TST"},
			},
		},
	})

	c := NewCoordinator(CoordinatorOptions{QueueSize: 8})
	c.Register(adapter, fastPolicy())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	got := collect(t, c.Out(), 1, time.Second)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	obs := got[0]
	if obs.EntityKey != "0xabcdef0123456789abcdef0123456789abcdef01" {
		t.Errorf("entity key not normalized: %q", obs.EntityKey)
	}
	if obs.Source != domain.SourceTokenFeed || obs.RawID != "0xtx1" {
		t.Errorf("observation fields wrong: %+v", obs)
	}
	if obs.ObservedAt == 0 {
		t.Error("observed_at not defaulted")
	}
}

func TestCoordinatorDropsUnnormalizableRecords(t *testing.T) {
	adapter := stub.New("feed", domain.SourceTokenFeed, stub.Step{
		Records: []source.Record{
			{RawID: "bad", EntityKey: "not-an-address", Payload: domain.TokenListing{}},
			{RawID: "good", EntityKey: "0xabcdef0123456789abcdef0123456789abcdef01", Payload: domain.TokenListing{}},
		},
	})

	c := NewCoordinator(CoordinatorOptions{QueueSize: 8})
	c.Register(adapter, fastPolicy())

	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)
	defer cancel()

	got := collect(t, c.Out(), 1, time.Second)
	if got[0].RawID != "good" {
		t.Fatalf("expected malformed record skipped, got %q", got[0].RawID)
	}
}

func TestCoordinatorRetriesTransientThenDelivers(t *testing.T) {
	adapter := stub.New("meta", domain.SourceContractMeta,
		stub.Step{Err: source.Errorf(source.KindUnavailable, domain.SourceContractMeta, "upstream 503")},
		stub.Step{Records: []source.Record{
			{RawID: "src:1", EntityKey: "0xabcdef0123456789abcdef0123456789abcdef01", Payload: domain.ContractMeta{}},
		}},
	)

	c := NewCoordinator(CoordinatorOptions{QueueSize: 8})
	c.Register(adapter, fastPolicy())

	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)
	defer cancel()

	got := collect(t, c.Out(), 1, time.Second)
	if got[0].RawID != "src:1" {
		t.Fatalf("unexpected record %q", got[0].RawID)
	}
	if adapter.Calls() < 2 {
		t.Fatalf("calls = %d, want retry before success", adapter.Calls())
	}
}

func TestCoordinatorDeliversPartialBatchOnMidBatchFailure(t *testing.T) {
	// Watchlist adapters return whatever they fetched before the failing
	// key alongside the error. Those records must reach the queue: the
	// fetched keys are already off the watchlist and will not be re-swept.
	adapter := stub.New("meta", domain.SourceContractMeta,
		stub.Step{
			Records: []source.Record{
				{RawID: "src:ok", EntityKey: "0xabcdef0123456789abcdef0123456789abcdef01", Payload: domain.ContractMeta{SourceCode: "contract A {}"}},
			},
			Err: source.Errorf(source.KindUnavailable, domain.SourceContractMeta, "upstream 500"),
		},
		stub.Step{Records: []source.Record{
			{RawID: "src:later", EntityKey: "0x1111111111111111111111111111111111111111", Payload: domain.ContractMeta{}},
		}},
	)

	policy := fastPolicy()
	policy.MaxAttempts = 1

	c := NewCoordinator(CoordinatorOptions{QueueSize: 8})
	c.Register(adapter, policy)

	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)
	defer cancel()

	got := collect(t, c.Out(), 2, 2*time.Second)
	if got[0].RawID != "src:ok" {
		t.Fatalf("partial batch dropped, first record %q", got[0].RawID)
	}
	if got[1].RawID != "src:later" {
		t.Fatalf("loop did not continue after failure, got %q", got[1].RawID)
	}
}

func TestCoordinatorAccumulatesRecordsAcrossRetries(t *testing.T) {
	// A transient mid-batch failure retries, but the retry only re-takes
	// the failing key; records from the first attempt must survive.
	adapter := stub.New("meta", domain.SourceContractMeta,
		stub.Step{
			Records: []source.Record{
				{RawID: "src:first", EntityKey: "0xabcdef0123456789abcdef0123456789abcdef01", Payload: domain.ContractMeta{}},
			},
			Err: source.Errorf(source.KindRateLimited, domain.SourceContractMeta, "429"),
		},
		stub.Step{Records: []source.Record{
			{RawID: "src:second", EntityKey: "0x1111111111111111111111111111111111111111", Payload: domain.ContractMeta{}},
		}},
	)

	c := NewCoordinator(CoordinatorOptions{QueueSize: 8})
	c.Register(adapter, fastPolicy())

	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)
	defer cancel()

	got := collect(t, c.Out(), 2, 2*time.Second)
	if got[0].RawID != "src:first" || got[1].RawID != "src:second" {
		t.Fatalf("records lost across retry: %q, %q", got[0].RawID, got[1].RawID)
	}
}

func TestCoordinatorDegradesOnPermanentErrorThenRecovers(t *testing.T) {
	adapter := stub.New("social", domain.SourceTwitter,
		stub.Step{Err: source.Errorf(source.KindAuthError, domain.SourceTwitter, "token revoked")},
		stub.Step{Err: source.Errorf(source.KindAuthError, domain.SourceTwitter, "token revoked")},
		stub.Step{Records: []source.Record{
			{RawID: "post:1", EntityKey: "@someuser", Payload: domain.SocialPost{Text: "gm"}},
		}},
	)

	c := NewCoordinator(CoordinatorOptions{QueueSize: 8})
	c.Register(adapter, fastPolicy())

	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)
	defer cancel()

	// The permanent failures do not stop the loop; the degraded-cadence
	// probe eventually succeeds and records flow again.
	got := collect(t, c.Out(), 1, 2*time.Second)
	if got[0].EntityKey != "someuser" {
		t.Fatalf("handle not normalized: %q", got[0].EntityKey)
	}
}

func TestCoordinatorIsolatesFailingAdapter(t *testing.T) {
	broken := stub.New("broken", domain.SourceDexListing,
		stub.Step{Err: source.Errorf(source.KindUnavailable, domain.SourceDexListing, "down")},
	).Repeat()
	healthy := stub.New("healthy", domain.SourceTokenFeed, stub.Step{
		Records: []source.Record{
			{RawID: "tx", EntityKey: "0xabcdef0123456789abcdef0123456789abcdef01", Payload: domain.TokenListing{}},
		},
	})

	c := NewCoordinator(CoordinatorOptions{QueueSize: 8})
	c.Register(broken, fastPolicy())
	c.Register(healthy, fastPolicy())

	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)
	defer cancel()

	got := collect(t, c.Out(), 1, time.Second)
	if got[0].Source != domain.SourceTokenFeed {
		t.Fatalf("expected record from healthy adapter, got %s", got[0].Source)
	}
}

func TestCoordinatorClosesQueueOnShutdown(t *testing.T) {
	adapter := stub.New("feed", domain.SourceTokenFeed)
	c := NewCoordinator(CoordinatorOptions{QueueSize: 8})
	c.Register(adapter, fastPolicy())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v on clean shutdown", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if _, ok := <-c.Out(); ok {
		// Draining leftovers is fine; the channel must eventually close.
		for range c.Out() {
		}
	}
}
