// Command watch runs the full monitoring pipeline: source adapters, entity
// resolution, classification and notification.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"scamwatch/internal/classify"
	"scamwatch/internal/config"
	"scamwatch/internal/domain"
	"scamwatch/internal/ingest"
	"scamwatch/internal/llm"
	"scamwatch/internal/notify"
	"scamwatch/internal/observability"
	"scamwatch/internal/pipeline"
	"scamwatch/internal/resolve"
	"scamwatch/internal/rpc"
	"scamwatch/internal/source"
	"scamwatch/internal/storage"
	chstore "scamwatch/internal/storage/clickhouse"
	"scamwatch/internal/storage/memory"
	pgstore "scamwatch/internal/storage/postgres"
)

func main() {
	var cfgFile string

	cmd := &cobra.Command{
		Use:          "watch",
		Short:        "Monitor token launches and social accounts for scam signals",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}

	cmd.Flags().StringVar(&cfgFile, "config", "", "path to config file")
	cmd.Flags().String("eth-rpc", "", "Ethereum JSON-RPC HTTP endpoint")
	cmd.Flags().String("eth-ws", "", "Ethereum WebSocket endpoint (optional head feed)")
	cmd.Flags().String("explorer-api", "", "contract explorer API base URL")
	cmd.Flags().StringSlice("explorer-keys", nil, "explorer API keys, rotated per request")
	cmd.Flags().String("dex-api", "", "DEX aggregator API base URL")
	cmd.Flags().String("social-api", "", "social scraper API base URL")
	cmd.Flags().String("social-token", "", "social scraper API token")
	cmd.Flags().String("gemini-key", "", "Gemini API key (enables LLM strategies)")
	cmd.Flags().String("telegram-token", "", "Telegram bot token (enables alerts)")
	cmd.Flags().Int64("telegram-chat", 0, "Telegram chat ID for alerts")
	cmd.Flags().String("postgres-dsn", "", "PostgreSQL DSN (omit for in-memory storage)")
	cmd.Flags().String("clickhouse-dsn", "", "ClickHouse DSN for the observation archive")
	cmd.Flags().String("metrics-addr", ":9095", "Prometheus metrics listen address (empty to disable)")
	cmd.Flags().String("log-level", "info", "log level: debug, info, warn, error")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	logger, err := buildLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		startMetricsServer(cfg.MetricsAddr, logger)
	}

	// Storage. Postgres when configured, in-memory otherwise.
	var (
		entities    storage.EntityStore
		rawVerdicts storage.VerdictStore
	)
	if cfg.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()
		entities = pgstore.NewEntityStore(pool)
		rawVerdicts = pgstore.NewVerdictStore(pool)
		logger.Info("using postgres storage")
	} else {
		entities = memory.NewEntityStore()
		rawVerdicts = memory.NewVerdictStore()
		logger.Warn("no postgres DSN, verdicts live in memory only")
	}
	verdicts := storage.NewBufferedVerdictStore(rawVerdicts, 0, logger)

	var archive storage.ObservationArchive
	if cfg.ClickHouseDSN != "" {
		conn, err := chstore.NewConn(ctx, cfg.ClickHouseDSN)
		if err != nil {
			return fmt.Errorf("connect clickhouse: %w", err)
		}
		defer conn.Close()
		archive = chstore.NewObservationArchive(conn)
		logger.Info("observation archive enabled")
	}

	// Notification channels.
	channels := []notify.Channel{notify.NewLogChannel(logger)}
	if cfg.TelegramBotToken != "" {
		tg, err := notify.NewTelegramChannel(cfg.TelegramBotToken, cfg.TelegramChatID, logger)
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		channels = append(channels, tg)
		logger.Info("telegram alerts enabled", zap.Int64("chat_id", cfg.TelegramChatID))
	}

	// Strategy chains, cheap before expensive.
	contractChain := []classify.Strategy{classify.NewContractRules()}
	accountChain := []classify.Strategy{classify.NewAccountHeuristic()}
	if cfg.GeminiAPIKey != "" {
		gemini, err := llm.NewClient(ctx, llm.Config{
			APIKey:    cfg.GeminiAPIKey,
			ModelName: cfg.GeminiModel,
		}, logger)
		if err != nil {
			return fmt.Errorf("gemini: %w", err)
		}
		defer gemini.Close()
		contractChain = append(contractChain, classify.NewContractLLM(gemini))
		accountChain = append(accountChain, classify.NewAccountLLM(gemini))
		logger.Info("LLM strategies enabled", zap.String("model", cfg.GeminiModel))
	}

	links := resolve.NewLinks()
	engine := classify.NewEngine(classify.EngineOptions{
		EntityStore:     entities,
		VerdictStore:    verdicts,
		Links:           links,
		Notifier:        notify.NewFanout(channels...),
		Thresholds:      domain.Thresholds{Benign: cfg.BenignThreshold, Scam: cfg.ScamThreshold},
		HysteresisDelta: cfg.HysteresisDelta,
		Logger:          logger,
	})
	engine.Register(domain.KindTokenContract, contractChain...)
	engine.Register(domain.KindSocialAccount, accountChain...)

	resolver := resolve.NewResolver(resolve.ResolverOptions{
		Store:  entities,
		Links:  links,
		Sink:   engine,
		Logger: logger,
	})

	coordinator := ingest.NewCoordinator(ingest.CoordinatorOptions{
		QueueSize: cfg.QueueSize,
		Logger:    logger,
	})
	watchlists, err := registerAdapters(ctx, coordinator, cfg, logger)
	if err != nil {
		return err
	}

	p := pipeline.New(pipeline.Options{
		Coordinator:   coordinator,
		Resolver:      resolver,
		Verdicts:      verdicts,
		FlushInterval: cfg.FlushInterval,
		Archive:       archive,
		Watchlists:    watchlists,
		Logger:        logger,
	})

	logger.Info("pipeline starting")
	if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// registerAdapters builds every enabled source adapter, registers it with the
// coordinator and returns the watchlists the pipeline must seed.
func registerAdapters(ctx context.Context, c *ingest.Coordinator, cfg config.Config, logger *zap.Logger) (pipeline.Watchlists, error) {
	var w pipeline.Watchlists

	if cfg.TokenFeed.Enabled {
		if cfg.EthRPCURL == "" {
			return w, fmt.Errorf("token feed enabled but no --eth-rpc endpoint")
		}
		client := rpc.NewClient(cfg.EthRPCURL, rpc.WithTimeout(30*time.Second))
		feed := source.NewTokenFeedAdapter(client, source.TokenFeedOptions{}, logger)
		c.Register(feed, pollPolicy(cfg.TokenFeed))

		if cfg.EthWSURL != "" {
			heads, err := rpc.NewHeadFeed(ctx, cfg.EthWSURL, nil, logger)
			if err != nil {
				return w, fmt.Errorf("head feed: %w", err)
			}
			go func() {
				defer heads.Close()
				for {
					select {
					case <-ctx.Done():
						return
					case h, ok := <-heads.Heads():
						if !ok {
							return
						}
						feed.ObserveHead(h.Number)
					}
				}
			}()
			logger.Info("head feed connected", zap.String("endpoint", cfg.EthWSURL))
		}
	}

	if cfg.ContractMeta.Enabled && cfg.ExplorerAPIURL != "" {
		w.ContractMeta = source.NewWatchlist()
		c.Register(
			source.NewContractMetaAdapter(cfg.ExplorerAPIURL, cfg.ExplorerAPIKeys, w.ContractMeta, logger),
			pollPolicy(cfg.ContractMeta),
		)
	}

	if cfg.DexListing.Enabled && cfg.DexAPIURL != "" {
		w.DexListing = source.NewWatchlist()
		c.Register(
			source.NewDexListingAdapter(cfg.DexAPIURL, cfg.DexChain, w.DexListing, logger),
			pollPolicy(cfg.DexListing),
		)
	}

	if cfg.Social.Enabled && cfg.SocialAPIURL != "" {
		w.Social = source.NewWatchlist()
		c.Register(
			source.NewSocialAdapter(source.SocialAdapterOptions{
				APIURL:    cfg.SocialAPIURL,
				APIToken:  cfg.SocialAPIToken,
				Watchlist: w.Social,
				Logger:    logger,
			}),
			pollPolicy(cfg.Social),
		)
	}

	return w, nil
}

func pollPolicy(sc config.SourceConfig) ingest.PollPolicy {
	return ingest.PollPolicy{
		Interval:         sc.Interval,
		RatePerMin:       sc.RatePerMin,
		Burst:            sc.Burst,
		MaxAttempts:      sc.MaxAttempts,
		BaseBackoff:      sc.BaseBackoff,
		MaxBackoff:       sc.MaxBackoff,
		DegradedInterval: sc.DegradedInterval,
		BatchSize:        sc.BatchSize,
	}
}

func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = lvl
	return zcfg.Build()
}

func startMetricsServer(addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	go func() {
		logger.Info("metrics server listening", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
}
