// Package config defines the top-level configuration for the auction daemon
// and provides validation helpers.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by BATCHAUCTION_* environment variables.
type Config struct {
	Engine   EngineConfig  `toml:"engine"`
	Assets   []AssetConfig `toml:"assets"`
	Storage  StorageConfig `toml:"storage"`
	Journal  JournalConfig `toml:"journal"`
	Redis    RedisConfig   `toml:"redis"`
	S3       S3Config      `toml:"s3"`
	Server   ServerConfig  `toml:"server"`
	Keeper   KeeperConfig  `toml:"keeper"`
	Notify   NotifyConfig  `toml:"notify"`
	Mode     string        `toml:"mode"`
	LogLevel string        `toml:"log_level"`
}

// EngineConfig holds the clearing engine's global parameters.
type EngineConfig struct {
	MaxOrdersPerAuction int    `toml:"max_orders_per_auction"`
	FeePolicy           string `toml:"fee_policy"`
	InitialFeeNumerator int    `toml:"initial_fee_numerator"`
	OwnerAddress        string `toml:"owner_address"`
	FeeReceiver         string `toml:"fee_receiver"`
	EscrowAddress       string `toml:"escrow_address"`
}

// AssetConfig registers one fungible asset with the ledger at startup.
type AssetConfig struct {
	Address  string `toml:"address"`
	Symbol   string `toml:"symbol"`
	Decimals int    `toml:"decimals"`
}

// StorageConfig locates the pebble ledger.
type StorageConfig struct {
	Path         string `toml:"path"`
	CacheEntries int    `toml:"cache_entries"`
}

// JournalConfig selects where notification events are journaled.
type JournalConfig struct {
	// Backend is one of postgres, sqlite or none.
	Backend       string `toml:"backend"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
	SQLitePath    string `toml:"sqlite_path"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	Prefix         string `toml:"prefix"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port         int      `toml:"port"`
	CORSOrigins  []string `toml:"cors_origins"`
	RateLimit    int      `toml:"rate_limit"`
	RateWindow   duration `toml:"rate_window"`
	JWTSecret    string   `toml:"jwt_secret"`
	TokenTTL     duration `toml:"token_ttl"`
	ChallengeTTL duration `toml:"challenge_ttl"`
}

// KeeperConfig drives the background settlement loop.
type KeeperConfig struct {
	Interval     duration `toml:"interval"`
	StepsPerCall int      `toml:"steps_per_call"`
	Archive      bool     `toml:"archive"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Engine: EngineConfig{
			MaxOrdersPerAuction: 0,
			FeePolicy:           "all_filled",
			EscrowAddress:       "0x00000000000000000000000000000000000e5c40",
		},
		Storage: StorageConfig{
			Path:         "data/ledger",
			CacheEntries: 4096,
		},
		Journal: JournalConfig{
			Backend:       "sqlite",
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  1,
			RunMigrations: true,
			SQLitePath:    "data/journal.db",
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "localhost:9000",
			Region:         "us-east-1",
			Bucket:         "batchauction",
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Port:         8080,
			CORSOrigins:  []string{"*"},
			RateLimit:    120,
			RateWindow:   duration{time.Minute},
			TokenTTL:     duration{24 * time.Hour},
			ChallengeTTL: duration{5 * time.Minute},
		},
		Keeper: KeeperConfig{
			Interval:     duration{10 * time.Second},
			StepsPerCall: 500,
		},
		Notify: NotifyConfig{
			Events: []string{"auction.cleared", "auction.funding_failed"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"server": true,
	"keeper": true,
	"full":   true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validJournals = map[string]bool{
	"postgres": true,
	"sqlite":   true,
	"none":     true,
}

// maxFeeNumerator mirrors the engine's cap of 1.5%.
const maxFeeNumerator = 15

// Validate checks the configuration for logical errors and returns every
// problem found joined into a single error.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if !validModes[strings.ToLower(c.Mode)] {
		add("unknown mode %q (valid: server, keeper, full)", c.Mode)
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		add("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel)
	}

	// Engine
	if c.Engine.MaxOrdersPerAuction < 0 {
		add("engine: max_orders_per_auction must be >= 0")
	}
	if c.Engine.FeePolicy != "all_filled" && c.Engine.FeePolicy != "full_fills_only" {
		add("engine: unknown fee_policy %q (valid: all_filled, full_fills_only)", c.Engine.FeePolicy)
	}
	if c.Engine.InitialFeeNumerator < 0 || c.Engine.InitialFeeNumerator > maxFeeNumerator {
		add("engine: initial_fee_numerator must be 0-%d, got %d", maxFeeNumerator, c.Engine.InitialFeeNumerator)
	}
	if c.Engine.InitialFeeNumerator > 0 && c.Engine.FeeReceiver == "" {
		add("engine: fee_receiver is required when initial_fee_numerator is set")
	}
	checkAddress(&errs, "engine: owner_address", c.Engine.OwnerAddress, true)
	checkAddress(&errs, "engine: fee_receiver", c.Engine.FeeReceiver, false)
	checkAddress(&errs, "engine: escrow_address", c.Engine.EscrowAddress, true)

	// Assets
	seen := make(map[string]bool, len(c.Assets))
	for i, a := range c.Assets {
		checkAddress(&errs, fmt.Sprintf("assets[%d]: address", i), a.Address, true)
		key := strings.ToLower(a.Address)
		if seen[key] {
			add("assets[%d]: duplicate address %s", i, a.Address)
		}
		seen[key] = true
		if a.Decimals < 0 || a.Decimals > 77 {
			add("assets[%d]: decimals must be 0-77, got %d", i, a.Decimals)
		}
	}

	// Storage
	if strings.TrimSpace(c.Storage.Path) == "" {
		add("storage: path must not be empty")
	}
	if c.Storage.CacheEntries < 0 {
		add("storage: cache_entries must be >= 0")
	}

	// Journal
	switch backend := strings.ToLower(c.Journal.Backend); {
	case !validJournals[backend]:
		add("journal: unknown backend %q (valid: postgres, sqlite, none)", c.Journal.Backend)
	case backend == "postgres":
		if strings.TrimSpace(c.Journal.DSN) == "" {
			if c.Journal.Host == "" {
				add("journal: host must not be empty (or set journal.dsn)")
			}
			if c.Journal.Port <= 0 || c.Journal.Port > 65535 {
				add("journal: port must be 1-65535, got %d", c.Journal.Port)
			}
			if c.Journal.Database == "" {
				add("journal: database must not be empty")
			}
		}
		if c.Journal.PoolMaxConns < 1 {
			add("journal: pool_max_conns must be >= 1")
		}
		if c.Journal.PoolMinConns < 0 || c.Journal.PoolMinConns > c.Journal.PoolMaxConns {
			add("journal: pool_min_conns must be 0-pool_max_conns")
		}
	case backend == "sqlite":
		if strings.TrimSpace(c.Journal.SQLitePath) == "" {
			add("journal: sqlite_path must not be empty")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			add("redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			add("redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			add("s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			add("s3: bucket must not be empty")
		}
	}

	// Server
	if c.Mode == "server" || c.Mode == "full" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			add("server: port must be 1-65535, got %d", c.Server.Port)
		}
		if len(c.Server.JWTSecret) < 16 {
			add("server: jwt_secret must be at least 16 bytes")
		}
		if c.Server.RateLimit < 0 {
			add("server: rate_limit must be >= 0")
		}
		if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
			add("server: rate_window must be positive when rate_limit is set")
		}
		if c.Server.TokenTTL.Duration <= 0 {
			add("server: token_ttl must be positive")
		}
		if c.Server.ChallengeTTL.Duration <= 0 {
			add("server: challenge_ttl must be positive")
		}
	}

	// Keeper
	if c.Mode == "keeper" || c.Mode == "full" {
		if c.Keeper.Interval.Duration <= 0 {
			add("keeper: interval must be positive")
		}
		if c.Keeper.StepsPerCall < 1 {
			add("keeper: steps_per_call must be >= 1")
		}
		if c.Keeper.Archive && !c.S3.Enabled {
			add("keeper: archive requires s3.enabled")
		}
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		add("notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %w", errors.Join(errs...))
	}
	return nil
}

func checkAddress(errs *[]error, field, v string, required bool) {
	if v == "" {
		if required {
			*errs = append(*errs, fmt.Errorf("%s must not be empty", field))
		}
		return
	}
	if !common.IsHexAddress(v) {
		*errs = append(*errs, fmt.Errorf("%s %q is not a hex address", field, v))
	}
}
