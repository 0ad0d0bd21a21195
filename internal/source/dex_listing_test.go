package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"scamwatch/internal/domain"
)

const (
	listedAddr   = "0x1111111111111111111111111111111111111111"
	pairlessAddr = "0x2222222222222222222222222222222222222222"
)

const listedPairBody = `{"data":[{
	"creationTime":"2024-05-01T10:00:00.000Z",
	"address":"0xpair1",
	"token":{
		"links":{"twitter":"https://x.com/moontoken","website":"https://moon.example","telegram":""},
		"audit":{"dextools":{
			"is_open_source":"no",
			"is_honeypot":"yes",
			"is_mintable":"yes",
			"is_proxy":"no",
			"is_blacklisted":"no",
			"transfer_pausable":"no",
			"sell_tax":{"max":0.35},
			"buy_tax":{"max":null},
			"summary":{"providers":{"warning":["honeypot"]}}
		},"external":{"quickintel":{"creator_address":"0xcreator"}}}
	},
	"metrics":{"liquidity":1234.5}
}]}`

func aggregatorStub(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("address") {
		case listedAddr:
			w.Write([]byte(listedPairBody))
		case pairlessAddr:
			w.Write([]byte(`{"data":[]}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
}

func TestDexListingFetch(t *testing.T) {
	srv := aggregatorStub(t)
	defer srv.Close()

	watch := NewWatchlist()
	watch.Add(listedAddr)
	adapter := NewDexListingAdapter(srv.URL, "ether", watch, nil)

	records, err := adapter.Fetch(context.Background(), 10)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}

	payload, ok := records[0].Payload.(domain.DexAudit)
	if !ok {
		t.Fatalf("payload type %T, want domain.DexAudit", records[0].Payload)
	}
	if !payload.IsHoneypot {
		t.Error("IsHoneypot = false, want true")
	}
	if payload.TwitterHandle != "moontoken" {
		t.Errorf("TwitterHandle = %q, want moontoken", payload.TwitterHandle)
	}
	if !payload.LiquidityUSD.Equal(decimal.NewFromFloat(1234.5)) {
		t.Errorf("LiquidityUSD = %s, want 1234.5", payload.LiquidityUSD)
	}
	if !payload.SellTaxMax.Equal(decimal.NewFromFloat(0.35)) {
		t.Errorf("SellTaxMax = %s, want 0.35", payload.SellTaxMax)
	}
	if watch.Len() != 0 {
		t.Errorf("watchlist has %d keys after success, want 0", watch.Len())
	}
}

func TestDexListingAgesOutPairlessToken(t *testing.T) {
	srv := aggregatorStub(t)
	defer srv.Close()

	watch := NewWatchlist()
	watch.Add(pairlessAddr)
	adapter := NewDexListingAdapter(srv.URL, "ether", watch, nil)

	for i := 0; i < maxPairSweeps; i++ {
		records, err := adapter.Fetch(context.Background(), 10)
		if err != nil {
			t.Fatalf("Fetch sweep %d: %v", i, err)
		}
		if len(records) != 0 {
			t.Fatalf("sweep %d produced %d records, want 0", i, len(records))
		}
		if i < maxPairSweeps-1 && watch.Len() != 1 {
			t.Fatalf("sweep %d left %d keys queued, want 1", i, watch.Len())
		}
	}

	if watch.Len() != 0 {
		t.Errorf("watchlist has %d keys after %d sweeps, want 0", watch.Len(), maxPairSweeps)
	}
	records, err := adapter.Fetch(context.Background(), 10)
	if err != nil || records != nil {
		t.Errorf("Fetch after age-out = (%v, %v), want (nil, nil)", records, err)
	}
}
