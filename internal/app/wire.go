package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/batchauction/internal/auction"
	s3blob "github.com/alanyoungcy/batchauction/internal/blob/s3"
	"github.com/alanyoungcy/batchauction/internal/cache/local"
	"github.com/alanyoungcy/batchauction/internal/cache/redis"
	"github.com/alanyoungcy/batchauction/internal/config"
	"github.com/alanyoungcy/batchauction/internal/domain"
	"github.com/alanyoungcy/batchauction/internal/kv"
	"github.com/alanyoungcy/batchauction/internal/kv/pebblekv"
	"github.com/alanyoungcy/batchauction/internal/notify"
	"github.com/alanyoungcy/batchauction/internal/server/handler"
	"github.com/alanyoungcy/batchauction/internal/service"
	"github.com/alanyoungcy/batchauction/internal/store/postgres"
	"github.com/alanyoungcy/batchauction/internal/store/sqlite"
)

// Dependencies bundles everything the run modes need. It is constructed by
// Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Engine  *auction.Engine
	Service *service.AuctionService

	// Journal is nil when journal.backend is "none".
	Journal     domain.EventStore
	SignalBus   domain.SignalBus
	RateLimiter domain.RateLimiter

	// Archiver is nil unless S3 is enabled.
	Archiver domain.Archiver
	Notifier *notify.Notifier

	// Checks feed GET /api/health.
	Checks map[string]handler.Check
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{Checks: make(map[string]handler.Check)}

	// --- Ledger: pebble behind an LRU read cache ---
	pdb, err := pebblekv.Open(cfg.Storage.Path)
	if err != nil {
		return fail(fmt.Errorf("wire: pebble: %w", err))
	}
	var db kv.DB = pdb
	if cfg.Storage.CacheEntries > 0 {
		cached, err := kv.NewCachedDB(pdb, cfg.Storage.CacheEntries)
		if err != nil {
			_ = pdb.Close()
			return fail(fmt.Errorf("wire: ledger cache: %w", err))
		}
		db = cached
	}
	closers = append(closers, func() { _ = db.Close() })

	opts, err := engineOptions(cfg.Engine)
	if err != nil {
		return fail(fmt.Errorf("wire: engine: %w", err))
	}
	eng, err := auction.New(ctx, db, auction.SystemClock{}, opts, logger)
	if err != nil {
		return fail(fmt.Errorf("wire: engine: %w", err))
	}
	for _, a := range cfg.Assets {
		info := domain.AssetInfo{
			Address:  common.HexToAddress(a.Address),
			Symbol:   a.Symbol,
			Decimals: uint8(a.Decimals),
		}
		if err := eng.RegisterAsset(ctx, info); err != nil {
			return fail(fmt.Errorf("wire: register asset %s: %w", a.Symbol, err))
		}
	}
	deps.Engine = eng
	deps.Checks["ledger"] = func(ctx context.Context) error {
		_, err := eng.FeeParameters(ctx)
		return err
	}

	// --- Journal ---
	switch strings.ToLower(cfg.Journal.Backend) {
	case "postgres":
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Journal.DSN,
			Host:     cfg.Journal.Host,
			Port:     cfg.Journal.Port,
			Database: cfg.Journal.Database,
			User:     cfg.Journal.User,
			Password: cfg.Journal.Password,
			SSLMode:  cfg.Journal.SSLMode,
			MaxConns: cfg.Journal.PoolMaxConns,
			MinConns: cfg.Journal.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pgClient.Close)
		if cfg.Journal.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}
		deps.Journal = postgres.NewEventStore(pgClient.Pool())
		deps.Checks["journal"] = pgClient.Ping
	case "sqlite":
		store, err := sqlite.Open(cfg.Journal.SQLitePath)
		if err != nil {
			return fail(fmt.Errorf("wire: sqlite: %w", err))
		}
		closers = append(closers, func() { _ = store.Close() })
		deps.Journal = store
	}

	// --- Redis, or in-process fallbacks ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.Checks["redis"] = redisClient.Ping
	} else {
		deps.SignalBus = local.NewSignalBus()
		deps.RateLimiter = local.NewRateLimiter(10 * cfg.Server.RateWindow.Duration)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	deps.Service = service.NewAuctionService(eng, deps.Journal, deps.SignalBus, deps.Notifier, logger)

	// --- S3 archive of settled auctions ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			Prefix:         cfg.S3.Prefix,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		deps.Archiver = s3blob.NewArchiver(
			s3blob.NewWriter(s3Client),
			s3blob.NewReader(s3Client),
			deps.Service,
			deps.Journal,
		)
		deps.Checks["s3"] = s3Client.Health
	}

	return deps, cleanup, nil
}

// engineOptions converts the validated engine section into engine options.
func engineOptions(c config.EngineConfig) (auction.Options, error) {
	opts := auction.Options{
		MaxOrdersPerAuction: uint64(c.MaxOrdersPerAuction),
		FeePolicy:           domain.FeePolicy(c.FeePolicy),
		Owner:               common.HexToAddress(c.OwnerAddress),
		Escrow:              common.HexToAddress(c.EscrowAddress),
		InitialFees: domain.FeeParameters{
			Numerator: uint64(c.InitialFeeNumerator),
		},
	}
	if c.FeeReceiver != "" {
		opts.InitialFees.Receiver = common.HexToAddress(c.FeeReceiver)
	}
	if opts.Owner == (common.Address{}) {
		return opts, fmt.Errorf("owner address is zero: %w", domain.ErrInvalidArgument)
	}
	return opts, nil
}
