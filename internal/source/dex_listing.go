package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"scamwatch/internal/domain"
)

var twitterHandleRe = regexp.MustCompile(`^https://(?:x\.com|twitter\.com)/([A-Za-z0-9_]+)$`)

// maxPairSweeps bounds how many polling cycles a token sits on the
// watchlist without a listed pair before it is dropped.
const maxPairSweeps = 12

// DexListingAdapter fetches pair audit data for tokens from a DEX aggregator
// API. The audit block carries the launch-time scam flags (honeypot,
// mintable, blacklist, pausable, taxes) and the social links that drive
// cross-source correlation.
type DexListingAdapter struct {
	apiURL string
	chain  string
	client *http.Client
	logger *zap.Logger

	watchlist  *Watchlist
	pairSweeps map[string]int
}

// NewDexListingAdapter creates the DEX aggregator adapter.
func NewDexListingAdapter(apiURL, chain string, watchlist *Watchlist, logger *zap.Logger) *DexListingAdapter {
	if chain == "" {
		chain = "ether"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DexListingAdapter{
		apiURL:     apiURL,
		chain:      chain,
		client:     &http.Client{Timeout: 20 * time.Second},
		logger:     logger,
		watchlist:  watchlist,
		pairSweeps: make(map[string]int),
	}
}

// Name identifies the adapter instance.
func (a *DexListingAdapter) Name() string { return "dex-listing" }

// Source returns the feed this adapter connects to.
func (a *DexListingAdapter) Source() domain.Source { return domain.SourceDexListing }

// pairResponse is the aggregator's pair data envelope.
type pairResponse struct {
	Data []struct {
		CreationTime string `json:"creationTime"`
		Token        struct {
			Links struct {
				Twitter  string `json:"twitter"`
				Website  string `json:"website"`
				Telegram string `json:"telegram"`
			} `json:"links"`
			Audit struct {
				Dextools struct {
					IsOpenSource     string `json:"is_open_source"`
					IsHoneypot       string `json:"is_honeypot"`
					IsMintable       string `json:"is_mintable"`
					IsProxy          string `json:"is_proxy"`
					IsBlacklisted    string `json:"is_blacklisted"`
					TransferPausable string `json:"transfer_pausable"`
					SellTax          struct {
						Max *float64 `json:"max"`
					} `json:"sell_tax"`
					BuyTax struct {
						Max *float64 `json:"max"`
					} `json:"buy_tax"`
					Summary struct {
						Providers struct {
							Warning []string `json:"warning"`
						} `json:"providers"`
					} `json:"summary"`
				} `json:"dextools"`
				External struct {
					Quickintel struct {
						CreatorAddress string `json:"creator_address"`
					} `json:"quickintel"`
				} `json:"external"`
			} `json:"audit"`
		} `json:"token"`
		Metrics struct {
			Liquidity float64 `json:"liquidity"`
		} `json:"metrics"`
		Address string `json:"address"`
	} `json:"data"`
}

// Fetch pulls pair audits for up to limit queued token addresses.
func (a *DexListingAdapter) Fetch(ctx context.Context, limit int) ([]Record, error) {
	addresses := a.watchlist.Take(limit)
	if len(addresses) == 0 {
		return nil, nil
	}

	records := make([]Record, 0, len(addresses))
	for _, addr := range addresses {
		rec, err := a.fetchOne(ctx, addr)
		if err != nil {
			a.watchlist.Add(addr)
			return records, err
		}
		if rec == nil {
			// No pair listed yet; the token may get liquidity later.
			// Tokens that never list would otherwise cycle forever,
			// so drop them after maxPairSweeps empty sweeps.
			a.pairSweeps[addr]++
			if a.pairSweeps[addr] >= maxPairSweeps {
				delete(a.pairSweeps, addr)
				a.logger.Debug("no pair after repeated sweeps, dropping token",
					zap.String("token", addr))
				continue
			}
			a.watchlist.Add(addr)
			continue
		}
		delete(a.pairSweeps, addr)
		records = append(records, *rec)
	}
	return records, nil
}

func (a *DexListingAdapter) fetchOne(ctx context.Context, addr string) (*Record, error) {
	q := url.Values{}
	q.Set("address", strings.ToLower(addr))
	q.Set("chain", a.chain)
	q.Set("audit", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.apiURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, NewError(KindMalformedResponse, a.Source(), err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, FromFetchErr(a.Source(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, Errorf(ClassifyHTTPStatus(resp.StatusCode), a.Source(),
			"aggregator returned status %d for %s", resp.StatusCode, addr)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, FromFetchErr(a.Source(), err)
	}

	var parsed pairResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, NewError(KindMalformedResponse, a.Source(), fmt.Errorf("decode pair data: %w", err))
	}
	if len(parsed.Data) == 0 {
		return nil, nil
	}

	pair := parsed.Data[0]
	audit := pair.Token.Audit.Dextools

	var twitter string
	if m := twitterHandleRe.FindStringSubmatch(pair.Token.Links.Twitter); m != nil {
		twitter = m[1]
	}

	payload := domain.DexAudit{
		PairAddress:      pair.Address,
		IsOpenSource:     audit.IsOpenSource == "yes",
		IsHoneypot:       audit.IsHoneypot == "yes",
		IsMintable:       audit.IsMintable == "yes",
		IsProxy:          audit.IsProxy == "yes",
		IsBlacklisted:    audit.IsBlacklisted == "yes",
		TransferPausable: audit.TransferPausable == "yes",
		LiquidityUSD:     decimal.NewFromFloat(pair.Metrics.Liquidity),
		CreatorAddress:   pair.Token.Audit.External.Quickintel.CreatorAddress,
		TwitterHandle:    twitter,
		WebsiteURL:       pair.Token.Links.Website,
		TelegramURL:      pair.Token.Links.Telegram,
		Warnings:         audit.Summary.Providers.Warning,
	}
	if audit.BuyTax.Max != nil {
		payload.BuyTaxMax = decimal.NewFromFloat(*audit.BuyTax.Max)
	}
	if audit.SellTax.Max != nil {
		payload.SellTaxMax = decimal.NewFromFloat(*audit.SellTax.Max)
	}

	a.logger.Debug("pair audit fetched",
		zap.String("token", addr),
		zap.String("pair", pair.Address),
		zap.Bool("honeypot", payload.IsHoneypot))

	return &Record{
		RawID:      "pair:" + pair.Address + ":" + pair.CreationTime,
		EntityKey:  addr,
		ObservedAt: time.Now().UnixMilli(),
		Payload:    payload,
	}, nil
}

var _ Adapter = (*DexListingAdapter)(nil)
