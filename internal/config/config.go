// Package config loads runtime configuration from flags, environment and
// an optional config file. The resulting Config is immutable and passed
// explicitly; nothing reads viper after startup.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// SourceConfig tunes one adapter's polling.
type SourceConfig struct {
	Enabled          bool
	Interval         time.Duration
	RatePerMin       int
	Burst            int
	MaxAttempts      int
	BaseBackoff      time.Duration
	MaxBackoff       time.Duration
	DegradedInterval time.Duration
	BatchSize        int
}

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	// Chain access
	EthRPCURL string
	EthWSURL  string

	// Explorer (contract source) API
	ExplorerAPIURL  string
	ExplorerAPIKeys []string

	// DEX aggregator API
	DexAPIURL string
	DexChain  string

	// Social scraper API
	SocialAPIURL   string
	SocialAPIToken string

	// Gemini
	GeminiAPIKey string
	GeminiModel  string

	// Telegram notifier, optional
	TelegramBotToken string
	TelegramChatID   int64

	// Storage
	PostgresDSN   string
	ClickHouseDSN string // optional archive

	// Classification
	BenignThreshold float64
	ScamThreshold   float64
	HysteresisDelta float64

	// Pipeline
	QueueSize     int
	FlushInterval time.Duration

	// Per-source polling
	TokenFeed    SourceConfig
	ContractMeta SourceConfig
	DexListing   SourceConfig
	Social       SourceConfig

	// Observability
	MetricsAddr string
	LogLevel    string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCAMWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		EthRPCURL:        v.GetString("eth-rpc"),
		EthWSURL:         v.GetString("eth-ws"),
		ExplorerAPIURL:   v.GetString("explorer-api"),
		ExplorerAPIKeys:  v.GetStringSlice("explorer-keys"),
		DexAPIURL:        v.GetString("dex-api"),
		DexChain:         v.GetString("dex-chain"),
		SocialAPIURL:     v.GetString("social-api"),
		SocialAPIToken:   v.GetString("social-token"),
		GeminiAPIKey:     v.GetString("gemini-key"),
		GeminiModel:      v.GetString("gemini-model"),
		TelegramBotToken: v.GetString("telegram-token"),
		TelegramChatID:   v.GetInt64("telegram-chat"),
		PostgresDSN:      v.GetString("postgres-dsn"),
		ClickHouseDSN:    v.GetString("clickhouse-dsn"),
		BenignThreshold:  v.GetFloat64("benign-threshold"),
		ScamThreshold:    v.GetFloat64("scam-threshold"),
		HysteresisDelta:  v.GetFloat64("hysteresis-delta"),
		QueueSize:        v.GetInt("queue-size"),
		FlushInterval:    v.GetDuration("flush-interval"),
		TokenFeed:        sourceConfig(v, "token-feed"),
		ContractMeta:     sourceConfig(v, "contract-meta"),
		DexListing:       sourceConfig(v, "dex-listing"),
		Social:           sourceConfig(v, "social"),
		MetricsAddr:      v.GetString("metrics-addr"),
		LogLevel:         v.GetString("log-level"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("dex-chain", "ether")
	v.SetDefault("gemini-model", "gemini-2.0-flash")
	v.SetDefault("benign-threshold", 0.30)
	v.SetDefault("scam-threshold", 0.70)
	v.SetDefault("hysteresis-delta", 0.05)
	v.SetDefault("queue-size", 256)
	v.SetDefault("flush-interval", 30*time.Second)
	v.SetDefault("metrics-addr", ":9095")
	v.SetDefault("log-level", "info")

	for name, interval := range map[string]time.Duration{
		"token-feed":    12 * time.Second,
		"contract-meta": 30 * time.Second,
		"dex-listing":   30 * time.Second,
		"social":        time.Minute,
	} {
		v.SetDefault(name+".enabled", true)
		v.SetDefault(name+".interval", interval)
		v.SetDefault(name+".rate-per-min", 60)
		v.SetDefault(name+".burst", 10)
		v.SetDefault(name+".max-attempts", 3)
		v.SetDefault(name+".base-backoff", 500*time.Millisecond)
		v.SetDefault(name+".max-backoff", 30*time.Second)
		v.SetDefault(name+".degraded-interval", 5*time.Minute)
		v.SetDefault(name+".batch-size", 25)
	}
}

func sourceConfig(v *viper.Viper, name string) SourceConfig {
	return SourceConfig{
		Enabled:          v.GetBool(name + ".enabled"),
		Interval:         v.GetDuration(name + ".interval"),
		RatePerMin:       v.GetInt(name + ".rate-per-min"),
		Burst:            v.GetInt(name + ".burst"),
		MaxAttempts:      v.GetInt(name + ".max-attempts"),
		BaseBackoff:      v.GetDuration(name + ".base-backoff"),
		MaxBackoff:       v.GetDuration(name + ".max-backoff"),
		DegradedInterval: v.GetDuration(name + ".degraded-interval"),
		BatchSize:        v.GetInt(name + ".batch-size"),
	}
}

func (c Config) validate() error {
	if c.BenignThreshold <= 0 || c.ScamThreshold >= 1 || c.BenignThreshold >= c.ScamThreshold {
		return fmt.Errorf("invalid thresholds: benign %.2f must be below scam %.2f within (0,1)",
			c.BenignThreshold, c.ScamThreshold)
	}
	if c.HysteresisDelta < 0 || c.HysteresisDelta >= 1 {
		return fmt.Errorf("invalid hysteresis delta %.2f", c.HysteresisDelta)
	}
	return nil
}
