package source

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"scamwatch/internal/domain"
	"scamwatch/internal/rpc"
)

// ERC-20 function selectors probed on newly created contracts.
const (
	selName        = "0x06fdde03" // name()
	selSymbol      = "0x95d89b41" // symbol()
	selDecimals    = "0x313ce567" // decimals()
	selTotalSupply = "0x18160ddd" // totalSupply()
	selOwner       = "0x8da5cb5b" // owner()
)

// TokenFeedAdapter watches an Ethereum-compatible chain for freshly deployed
// ERC-20 tokens. Each fetch scans the blocks mined since the previous fetch,
// finds contract-creation transactions, and probes the created contract for
// the standard ERC-20 interface. Non-token contracts are skipped silently.
type TokenFeedAdapter struct {
	client *rpc.Client
	logger *zap.Logger

	// startOffset bounds the initial catch-up scan below the current head.
	startOffset int64
	// maxBlocksPerFetch bounds how many blocks one fetch may scan.
	maxBlocksPerFetch int64

	lastProcessed int64

	// headHint is the newest block number pushed via ObserveHead. When set,
	// Fetch trusts it and skips the eth_blockNumber round trip.
	headHint atomic.Int64
}

// TokenFeedOptions configures TokenFeedAdapter.
type TokenFeedOptions struct {
	StartOffset       int64 // default 100
	MaxBlocksPerFetch int64 // default 50
}

// NewTokenFeedAdapter creates the chain-watching adapter.
func NewTokenFeedAdapter(client *rpc.Client, opts TokenFeedOptions, logger *zap.Logger) *TokenFeedAdapter {
	if opts.StartOffset == 0 {
		opts.StartOffset = 100
	}
	if opts.MaxBlocksPerFetch == 0 {
		opts.MaxBlocksPerFetch = 50
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenFeedAdapter{
		client:            client,
		logger:            logger,
		startOffset:       opts.StartOffset,
		maxBlocksPerFetch: opts.MaxBlocksPerFetch,
	}
}

// Name identifies the adapter instance.
func (a *TokenFeedAdapter) Name() string { return "token-feed" }

// Source returns the feed this adapter connects to.
func (a *TokenFeedAdapter) Source() domain.Source { return domain.SourceTokenFeed }

// ObserveHead records a block head seen out of band, typically from a
// WebSocket newHeads subscription. Safe to call concurrently with Fetch.
func (a *TokenFeedAdapter) ObserveHead(number int64) {
	for {
		cur := a.headHint.Load()
		if number <= cur {
			return
		}
		if a.headHint.CompareAndSwap(cur, number) {
			return
		}
	}
}

// Fetch scans new blocks for token creations.
func (a *TokenFeedAdapter) Fetch(ctx context.Context, limit int) ([]Record, error) {
	head := a.headHint.Load()
	if head == 0 || head <= a.lastProcessed {
		var err error
		head, err = a.client.BlockNumber(ctx)
		if err != nil {
			return nil, FromFetchErr(a.Source(), err)
		}
	}

	from := a.lastProcessed + 1
	if a.lastProcessed == 0 {
		from = head - a.startOffset
		if from < 0 {
			from = 0
		}
	}
	to := head
	if to-from+1 > a.maxBlocksPerFetch {
		to = from + a.maxBlocksPerFetch - 1
	}
	if from > to {
		return nil, nil
	}

	var records []Record
	for num := from; num <= to; num++ {
		block, err := a.client.GetBlockByNumber(ctx, num)
		if err != nil {
			return records, FromFetchErr(a.Source(), err)
		}
		if block == nil {
			break
		}

		for _, tx := range block.Transactions {
			// to is empty for contract creations
			if tx.To != "" {
				continue
			}
			rec, err := a.probeCreation(ctx, tx.Hash, num, block.Timestamp)
			if err != nil {
				return records, err
			}
			if rec != nil {
				records = append(records, *rec)
				if limit > 0 && len(records) >= limit {
					// Block num is only partially scanned: leave
					// lastProcessed behind it so the next cycle rescans
					// the whole block. Re-emitted creations dedup on tx
					// hash downstream.
					return records, nil
				}
			}
		}
		a.lastProcessed = num
	}

	return records, nil
}

// probeCreation resolves the created contract address and checks whether it
// answers the ERC-20 calls. Returns nil if the contract is not a token.
func (a *TokenFeedAdapter) probeCreation(ctx context.Context, txHash string, blockNum int64, blockTimestamp string) (*Record, error) {
	receipt, err := a.client.GetTransactionReceipt(ctx, txHash)
	if err != nil {
		return nil, FromFetchErr(a.Source(), err)
	}
	if receipt == nil || receipt.ContractAddress == "" {
		return nil, nil
	}
	addr := receipt.ContractAddress

	name, err := a.callString(ctx, addr, selName)
	if err != nil {
		return nil, err
	}
	symbol, err := a.callString(ctx, addr, selSymbol)
	if err != nil {
		return nil, err
	}
	if name == "" || symbol == "" {
		// Not an ERC-20, or one that hides its identity. Either way not a listing.
		return nil, nil
	}

	decimals := a.callInt(ctx, addr, selDecimals)
	supply := a.callBig(ctx, addr, selTotalSupply)
	owner := a.callAddress(ctx, addr, selOwner)

	totalSupply := decimal.NewFromBigInt(supply, -int32(decimals))

	observedAt := time.Now().UnixMilli()
	if ts, err := rpc.ParseHexInt64(blockTimestamp); err == nil {
		observedAt = ts * 1000
	}

	a.logger.Info("token created",
		zap.String("address", addr),
		zap.String("name", name),
		zap.String("symbol", symbol),
		zap.Int64("block", blockNum))

	return &Record{
		RawID:      txHash,
		EntityKey:  addr,
		ObservedAt: observedAt,
		Payload: domain.TokenListing{
			Name:         name,
			Symbol:       symbol,
			Decimals:     decimals,
			TotalSupply:  totalSupply,
			Owner:        owner,
			CreatedBlock: blockNum,
		},
	}, nil
}

func (a *TokenFeedAdapter) callString(ctx context.Context, addr, selector string) (string, error) {
	out, err := a.client.EthCall(ctx, addr, selector)
	if err != nil {
		var rpcErr *rpc.RPCError
		if errors.As(err, &rpcErr) {
			// Execution reverted: contract has no such function
			return "", nil
		}
		return "", FromFetchErr(a.Source(), fmt.Errorf("eth_call %s: %w", selector, err))
	}
	return rpc.DecodeABIString(out), nil
}

func (a *TokenFeedAdapter) callInt(ctx context.Context, addr, selector string) int {
	out, err := a.client.EthCall(ctx, addr, selector)
	if err != nil {
		return 0
	}
	n, err := rpc.ParseHexInt64(out)
	if err != nil || n < 0 || n > 77 {
		return 0
	}
	return int(n)
}

func (a *TokenFeedAdapter) callBig(ctx context.Context, addr, selector string) *big.Int {
	out, err := a.client.EthCall(ctx, addr, selector)
	if err != nil {
		return new(big.Int)
	}
	n, err := rpc.ParseHexBig(out)
	if err != nil {
		return new(big.Int)
	}
	return n
}

func (a *TokenFeedAdapter) callAddress(ctx context.Context, addr, selector string) string {
	out, err := a.client.EthCall(ctx, addr, selector)
	if err != nil {
		return ""
	}
	return rpc.DecodeABIAddress(out)
}

var _ Adapter = (*TokenFeedAdapter)(nil)
