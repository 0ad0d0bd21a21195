package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"scamwatch/internal/domain"
)

// ContractMetaAdapter fetches verified source code and compiler metadata for
// contracts from an explorer API (Etherscan getsourcecode shape). Addresses
// to fetch come from a Watchlist fed by the pipeline when new token entities
// appear; addresses whose source is still unverified are re-queued so a later
// cycle retries them, matching the explorer's verification lag.
type ContractMetaAdapter struct {
	apiURL  string
	apiKeys []string
	client  *http.Client
	logger  *zap.Logger

	watchlist *Watchlist
	keyIdx    int
}

// NewContractMetaAdapter creates the explorer adapter. Multiple API keys are
// rotated per request to spread rate-limit quota.
func NewContractMetaAdapter(apiURL string, apiKeys []string, watchlist *Watchlist, logger *zap.Logger) *ContractMetaAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContractMetaAdapter{
		apiURL:    apiURL,
		apiKeys:   apiKeys,
		client:    &http.Client{Timeout: 20 * time.Second},
		logger:    logger,
		watchlist: watchlist,
	}
}

// Name identifies the adapter instance.
func (a *ContractMetaAdapter) Name() string { return "contract-meta" }

// Source returns the feed this adapter connects to.
func (a *ContractMetaAdapter) Source() domain.Source { return domain.SourceContractMeta }

// sourceCodeResponse is the explorer getsourcecode envelope.
type sourceCodeResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  []struct {
		SourceCode      string `json:"SourceCode"`
		CompilerVersion string `json:"CompilerVersion"`
		LicenseType     string `json:"LicenseType"`
		Proxy           string `json:"Proxy"`
		Implementation  string `json:"Implementation"`
	} `json:"result"`
}

// Fetch pulls source metadata for up to limit queued addresses.
func (a *ContractMetaAdapter) Fetch(ctx context.Context, limit int) ([]Record, error) {
	addresses := a.watchlist.Take(limit)
	if len(addresses) == 0 {
		return nil, nil
	}

	records := make([]Record, 0, len(addresses))
	for _, addr := range addresses {
		rec, err := a.fetchOne(ctx, addr)
		if err != nil {
			// Put the address back so a later cycle retries it
			a.watchlist.Add(addr)
			return records, err
		}
		if rec == nil {
			// Source not verified yet; retry on a later sweep
			a.watchlist.Add(addr)
			continue
		}
		records = append(records, *rec)
	}
	return records, nil
}

func (a *ContractMetaAdapter) fetchOne(ctx context.Context, addr string) (*Record, error) {
	q := url.Values{}
	q.Set("module", "contract")
	q.Set("action", "getsourcecode")
	q.Set("address", addr)
	if key := a.nextKey(); key != "" {
		q.Set("apikey", key)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.apiURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, NewError(KindMalformedResponse, a.Source(), err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, FromFetchErr(a.Source(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, Errorf(ClassifyHTTPStatus(resp.StatusCode), a.Source(),
			"explorer returned status %d for %s", resp.StatusCode, addr)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, FromFetchErr(a.Source(), err)
	}

	var parsed sourceCodeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, NewError(KindMalformedResponse, a.Source(), fmt.Errorf("decode getsourcecode: %w", err))
	}
	if parsed.Status != "1" || len(parsed.Result) == 0 {
		// NOTOK with a rate-limit message is the explorer's throttle signal
		if parsed.Message == "NOTOK" {
			return nil, Errorf(KindRateLimited, a.Source(), "explorer NOTOK for %s", addr)
		}
		return nil, nil
	}

	res := parsed.Result[0]
	if res.SourceCode == "" {
		a.logger.Debug("contract source not verified yet", zap.String("address", addr))
		return nil, nil
	}

	return &Record{
		RawID:      "src:" + addr + ":" + res.CompilerVersion,
		EntityKey:  addr,
		ObservedAt: time.Now().UnixMilli(),
		Payload: domain.ContractMeta{
			SourceCode:      res.SourceCode,
			CompilerVersion: res.CompilerVersion,
			LicenseType:     res.LicenseType,
			IsProxy:         res.Proxy == "1",
			Implementation:  res.Implementation,
		},
	}, nil
}

// nextKey rotates through the configured API keys.
func (a *ContractMetaAdapter) nextKey() string {
	if len(a.apiKeys) == 0 {
		return ""
	}
	key := a.apiKeys[a.keyIdx%len(a.apiKeys)]
	a.keyIdx++
	return key
}

var _ Adapter = (*ContractMetaAdapter)(nil)
