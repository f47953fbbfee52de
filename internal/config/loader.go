package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies BATCHAUCTION_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known BATCHAUCTION_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Engine ──
	setInt(&cfg.Engine.MaxOrdersPerAuction, "BATCHAUCTION_ENGINE_MAX_ORDERS_PER_AUCTION")
	setStr(&cfg.Engine.FeePolicy, "BATCHAUCTION_ENGINE_FEE_POLICY")
	setInt(&cfg.Engine.InitialFeeNumerator, "BATCHAUCTION_ENGINE_INITIAL_FEE_NUMERATOR")
	setStr(&cfg.Engine.OwnerAddress, "BATCHAUCTION_ENGINE_OWNER_ADDRESS")
	setStr(&cfg.Engine.FeeReceiver, "BATCHAUCTION_ENGINE_FEE_RECEIVER")
	setStr(&cfg.Engine.EscrowAddress, "BATCHAUCTION_ENGINE_ESCROW_ADDRESS")

	// ── Storage ──
	setStr(&cfg.Storage.Path, "BATCHAUCTION_STORAGE_PATH")
	setInt(&cfg.Storage.CacheEntries, "BATCHAUCTION_STORAGE_CACHE_ENTRIES")

	// ── Journal ──
	setStr(&cfg.Journal.Backend, "BATCHAUCTION_JOURNAL_BACKEND")
	setStr(&cfg.Journal.DSN, "BATCHAUCTION_JOURNAL_DSN")
	setStr(&cfg.Journal.Host, "BATCHAUCTION_JOURNAL_HOST")
	setInt(&cfg.Journal.Port, "BATCHAUCTION_JOURNAL_PORT")
	setStr(&cfg.Journal.Database, "BATCHAUCTION_JOURNAL_DATABASE")
	setStr(&cfg.Journal.User, "BATCHAUCTION_JOURNAL_USER")
	setStr(&cfg.Journal.Password, "BATCHAUCTION_JOURNAL_PASSWORD")
	setStr(&cfg.Journal.SSLMode, "BATCHAUCTION_JOURNAL_SSL_MODE")
	setInt(&cfg.Journal.PoolMaxConns, "BATCHAUCTION_JOURNAL_POOL_MAX_CONNS")
	setInt(&cfg.Journal.PoolMinConns, "BATCHAUCTION_JOURNAL_POOL_MIN_CONNS")
	setBool(&cfg.Journal.RunMigrations, "BATCHAUCTION_JOURNAL_RUN_MIGRATIONS")
	setStr(&cfg.Journal.SQLitePath, "BATCHAUCTION_JOURNAL_SQLITE_PATH")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "BATCHAUCTION_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "BATCHAUCTION_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "BATCHAUCTION_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "BATCHAUCTION_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "BATCHAUCTION_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "BATCHAUCTION_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "BATCHAUCTION_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "BATCHAUCTION_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "BATCHAUCTION_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "BATCHAUCTION_S3_REGION")
	setStr(&cfg.S3.Bucket, "BATCHAUCTION_S3_BUCKET")
	setStr(&cfg.S3.Prefix, "BATCHAUCTION_S3_PREFIX")
	setStr(&cfg.S3.AccessKey, "BATCHAUCTION_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "BATCHAUCTION_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "BATCHAUCTION_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "BATCHAUCTION_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setInt(&cfg.Server.Port, "BATCHAUCTION_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "BATCHAUCTION_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RateLimit, "BATCHAUCTION_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "BATCHAUCTION_SERVER_RATE_WINDOW")
	setStr(&cfg.Server.JWTSecret, "BATCHAUCTION_SERVER_JWT_SECRET")
	setDuration(&cfg.Server.TokenTTL, "BATCHAUCTION_SERVER_TOKEN_TTL")
	setDuration(&cfg.Server.ChallengeTTL, "BATCHAUCTION_SERVER_CHALLENGE_TTL")

	// ── Keeper ──
	setDuration(&cfg.Keeper.Interval, "BATCHAUCTION_KEEPER_INTERVAL")
	setInt(&cfg.Keeper.StepsPerCall, "BATCHAUCTION_KEEPER_STEPS_PER_CALL")
	setBool(&cfg.Keeper.Archive, "BATCHAUCTION_KEEPER_ARCHIVE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "BATCHAUCTION_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "BATCHAUCTION_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "BATCHAUCTION_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "BATCHAUCTION_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "BATCHAUCTION_MODE")
	setStr(&cfg.LogLevel, "BATCHAUCTION_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
