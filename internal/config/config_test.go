package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
mode = "full"
log_level = "debug"

[engine]
owner_address = "0x00000000000000000000000000000000000000a1"
initial_fee_numerator = 5
fee_receiver = "0x00000000000000000000000000000000000000fe"

[[assets]]
address = "0x5e11000000000000000000000000000000000000"
symbol = "SELL"
decimals = 18

[[assets]]
address = "0xb1d0000000000000000000000000000000000000"
symbol = "BID"
decimals = 6

[server]
port = 9090
jwt_secret = "0123456789abcdef"
rate_window = "30s"

[keeper]
interval = "2s"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func validConfig() Config {
	cfg := Defaults()
	cfg.Engine.OwnerAddress = "0x00000000000000000000000000000000000000a1"
	cfg.Server.JWTSecret = "0123456789abcdef"
	return cfg
}

func TestLoadMergesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.RateWindow.Duration)
	assert.Equal(t, 24*time.Hour, cfg.Server.TokenTTL.Duration, "default kept")
	assert.Equal(t, 2*time.Second, cfg.Keeper.Interval.Duration)
	assert.Equal(t, 500, cfg.Keeper.StepsPerCall)
	require.Len(t, cfg.Assets, 2)
	assert.Equal(t, AssetConfig{Address: "0xb1d0000000000000000000000000000000000000", Symbol: "BID", Decimals: 6}, cfg.Assets[1])
	assert.Equal(t, "sqlite", cfg.Journal.Backend)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("BATCHAUCTION_SERVER_PORT", "7070")
	t.Setenv("BATCHAUCTION_SERVER_JWT_SECRET", "from-the-environment")
	t.Setenv("BATCHAUCTION_KEEPER_INTERVAL", "1m")
	t.Setenv("BATCHAUCTION_NOTIFY_EVENTS", "auction.cleared, ,order.claimed")
	t.Setenv("BATCHAUCTION_REDIS_ENABLED", "true")
	t.Setenv("BATCHAUCTION_STORAGE_CACHE_ENTRIES", "not-a-number")

	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "from-the-environment", cfg.Server.JWTSecret)
	assert.Equal(t, time.Minute, cfg.Keeper.Interval.Duration)
	assert.Equal(t, []string{"auction.cleared", "order.claimed"}, cfg.Notify.Events)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 4096, cfg.Storage.CacheEntries, "malformed values are ignored")
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "mode = ["))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"mode", func(c *Config) { c.Mode = "trade" }, "unknown mode"},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "unknown log_level"},
		{"owner", func(c *Config) { c.Engine.OwnerAddress = "" }, "owner_address must not be empty"},
		{"bad address", func(c *Config) { c.Engine.EscrowAddress = "0x12" }, "not a hex address"},
		{"fee cap", func(c *Config) { c.Engine.InitialFeeNumerator = 16 }, "initial_fee_numerator must be 0-15"},
		{"fee receiver", func(c *Config) { c.Engine.InitialFeeNumerator = 1 }, "fee_receiver is required"},
		{"fee policy", func(c *Config) { c.Engine.FeePolicy = "half" }, "unknown fee_policy"},
		{"duplicate asset", func(c *Config) {
			a := AssetConfig{Address: "0x5e11000000000000000000000000000000000000", Symbol: "S", Decimals: 18}
			c.Assets = []AssetConfig{a, a}
		}, "duplicate address"},
		{"journal", func(c *Config) { c.Journal.Backend = "mongo" }, "unknown backend"},
		{"postgres host", func(c *Config) { c.Journal.Backend = "postgres"; c.Journal.Host = "" }, "host must not be empty"},
		{"redis", func(c *Config) { c.Redis.Enabled = true; c.Redis.Addr = "" }, "redis: addr"},
		{"jwt", func(c *Config) { c.Server.JWTSecret = "short" }, "jwt_secret"},
		{"archive", func(c *Config) { c.Keeper.Archive = true }, "archive requires s3.enabled"},
		{"telegram", func(c *Config) { c.Notify.TelegramToken = "t" }, "must be set together"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			require.NoError(t, cfg.Validate())
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}

	t.Run("keeper mode skips server checks", func(t *testing.T) {
		cfg := validConfig()
		cfg.Mode = "keeper"
		cfg.Server.JWTSecret = ""
		assert.NoError(t, cfg.Validate())
	})

	t.Run("reports every problem", func(t *testing.T) {
		cfg := validConfig()
		cfg.Mode = "nope"
		cfg.LogLevel = "nope"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown mode")
		assert.Contains(t, err.Error(), "unknown log_level")
	})
}

func TestRedactedConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Journal.Password = "pw"
	cfg.S3.SecretKey = "sk"
	cfg.Notify.Events = []string{"auction.cleared"}

	out := RedactedConfig(&cfg)
	assert.Equal(t, redacted, out.Server.JWTSecret)
	assert.Equal(t, redacted, out.Journal.Password)
	assert.Equal(t, redacted, out.S3.SecretKey)
	assert.Empty(t, out.S3.AccessKey, "empty secrets stay empty")
	assert.Equal(t, "0123456789abcdef", cfg.Server.JWTSecret)

	out.Notify.Events[0] = "changed"
	assert.Equal(t, "auction.cleared", cfg.Notify.Events[0])
}
