package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"scamwatch/internal/classify"
	"scamwatch/internal/domain"
	"scamwatch/internal/ingest"
	"scamwatch/internal/resolve"
	"scamwatch/internal/source"
	"scamwatch/internal/source/stub"
	"scamwatch/internal/storage/memory"
)

const testAddr = "0x00112233445566778899aabbccddeeff00112233"

type recordingNotifier struct {
	mu      sync.Mutex
	changes []classify.Change
}

func (n *recordingNotifier) Notify(_ context.Context, c classify.Change) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, c)
}

func (n *recordingNotifier) snapshot() []classify.Change {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]classify.Change(nil), n.changes...)
}

type memoryArchive struct {
	mu  sync.Mutex
	obs []domain.Observation
}

func (a *memoryArchive) Archive(_ context.Context, obs []domain.Observation) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.obs = append(a.obs, obs...)
	return nil
}

func (a *memoryArchive) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.obs)
}

func fastPolicy() ingest.PollPolicy {
	return ingest.PollPolicy{
		Interval:         5 * time.Millisecond,
		RatePerMin:       60000,
		Burst:            100,
		MaxAttempts:      1,
		BaseBackoff:      time.Millisecond,
		MaxBackoff:       5 * time.Millisecond,
		DegradedInterval: 10 * time.Millisecond,
		BatchSize:        10,
	}
}

// watchlistAdapter echoes whatever lands on its watchlist back as DEX audit
// records flagging a honeypot, mimicking the pull-driven sweep.
type watchlistAdapter struct {
	watch *source.Watchlist
}

func (a *watchlistAdapter) Name() string          { return "dex-listing" }
func (a *watchlistAdapter) Source() domain.Source { return domain.SourceDexListing }

func (a *watchlistAdapter) Fetch(ctx context.Context, limit int) ([]source.Record, error) {
	var recs []source.Record
	for _, key := range a.watch.Take(limit) {
		recs = append(recs, source.Record{
			RawID:     "pair:" + key,
			EntityKey: key,
			Payload: domain.DexAudit{
				IsHoneypot:   true,
				LiquidityUSD: decimal.NewFromInt(1200),
			},
		})
	}
	return recs, nil
}

// TestPipelineEndToEnd runs a token listing through the full path: feed
// record, entity registration, watchlist sweep, honeypot audit, verdict and
// notification.
func TestPipelineEndToEnd(t *testing.T) {
	feed := stub.New("token-feed", domain.SourceTokenFeed, stub.Step{
		Records: []source.Record{{
			RawID:     "block:100:0",
			EntityKey: testAddr,
			Payload: domain.TokenListing{
				Name:        "MoonCoin",
				Symbol:      "MOON",
				Decimals:    18,
				TotalSupply: decimal.NewFromInt(1_000_000),
			},
		}},
	})

	dexWatch := source.NewWatchlist()
	dex := &watchlistAdapter{watch: dexWatch}

	coordinator := ingest.NewCoordinator(ingest.CoordinatorOptions{QueueSize: 32})
	coordinator.Register(feed, fastPolicy())
	coordinator.Register(dex, fastPolicy())

	entities := memory.NewEntityStore()
	verdicts := memory.NewVerdictStore()
	links := resolve.NewLinks()
	notifier := &recordingNotifier{}

	engine := classify.NewEngine(classify.EngineOptions{
		EntityStore:  entities,
		VerdictStore: verdicts,
		Links:        links,
		Notifier:     notifier,
	})
	engine.Register(domain.KindTokenContract, classify.NewContractRules())

	resolver := resolve.NewResolver(resolve.ResolverOptions{
		Store: entities,
		Links: links,
		Sink:  engine,
	})

	archive := &memoryArchive{}
	p := New(Options{
		Coordinator:   coordinator,
		Resolver:      resolver,
		Archive:       archive,
		ArchiveBatch:  1,
		FlushInterval: 10 * time.Millisecond,
		Watchlists:    Watchlists{DexListing: dexWatch},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for {
		v, err := verdicts.Latest(context.Background(), testAddr)
		if err == nil && v != nil && v.Category == domain.CategoryLikelyScam {
			break
		}
		select {
		case <-deadline:
			t.Fatal("no LIKELY_SCAM verdict before deadline")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not stop")
	}

	e, err := entities.Get(context.Background(), testAddr)
	if err != nil {
		t.Fatalf("Get entity: %v", err)
	}
	if e.Kind != domain.KindTokenContract {
		t.Errorf("kind = %s", e.Kind)
	}
	if len(e.Observations) < 2 {
		t.Errorf("observations = %d, want listing plus audit", len(e.Observations))
	}

	changes := notifier.snapshot()
	if len(changes) == 0 {
		t.Fatal("no notification delivered")
	}
	last := changes[len(changes)-1]
	if last.Current.Category != domain.CategoryLikelyScam {
		t.Errorf("notified category = %s", last.Current.Category)
	}

	if archive.count() < 2 {
		t.Errorf("archived %d observations, want at least 2", archive.count())
	}
}

func TestDrainerSwitchesToGraceContext(t *testing.T) {
	live, cancel := context.WithCancel(context.Background())
	d := newDrainer(live, time.Second)
	defer d.Close()

	if d.Context() != live {
		t.Fatal("expected the live context before cancellation")
	}

	cancel()
	got := d.Context()
	if got == live {
		t.Fatal("still handing out the cancelled context during drain")
	}
	if got.Err() != nil {
		t.Fatal("grace context dead on arrival")
	}
	if d.Context() != got {
		t.Error("grace context not reused across calls")
	}

	d.Close()
	if got.Err() == nil {
		t.Error("Close did not release the grace context")
	}
}

// TestPipelineSeedsSocialWatchlist verifies a twitter handle carried by a DEX
// audit lands on the social watchlist in normalized form.
func TestPipelineSeedsSocialWatchlist(t *testing.T) {
	dex := stub.New("dex-listing", domain.SourceDexListing, stub.Step{
		Records: []source.Record{{
			RawID:     "pair:abc:1",
			EntityKey: testAddr,
			Payload: domain.DexAudit{
				TwitterHandle: "https://x.com/MoonCoinHQ",
				LiquidityUSD:  decimal.NewFromInt(5000),
			},
		}},
	})

	coordinator := ingest.NewCoordinator(ingest.CoordinatorOptions{QueueSize: 8})
	coordinator.Register(dex, fastPolicy())

	entities := memory.NewEntityStore()
	links := resolve.NewLinks()
	engine := classify.NewEngine(classify.EngineOptions{
		EntityStore:  entities,
		VerdictStore: memory.NewVerdictStore(),
		Links:        links,
	})
	resolver := resolve.NewResolver(resolve.ResolverOptions{
		Store: entities,
		Links: links,
		Sink:  engine,
	})

	socialWatch := source.NewWatchlist()
	p := New(Options{
		Coordinator: coordinator,
		Resolver:    resolver,
		Watchlists:  Watchlists{Social: socialWatch},
		Logger:      zap.NewNop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for socialWatch.Len() == 0 {
		select {
		case <-deadline:
			t.Fatal("handle never reached the social watchlist")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	<-done

	keys := socialWatch.Take(10)
	if len(keys) != 1 || keys[0] != "mooncoinhq" {
		t.Errorf("watchlist = %v, want [mooncoinhq]", keys)
	}
}
