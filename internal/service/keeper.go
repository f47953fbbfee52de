package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/batchauction/internal/auction"
	"github.com/alanyoungcy/batchauction/internal/domain"
)

const keeperPageSize = 100

// KeeperConfig tunes the background settlement loop.
type KeeperConfig struct {
	Interval time.Duration
	// StepsPerCall bounds the orders one precalculate call may visit.
	StepsPerCall uint64
}

// Keeper drives ended auctions through precalculation and settlement, and
// archives every settled auction, including ones settled through the API.
// Tick is not safe for concurrent use.
type Keeper struct {
	svc      *AuctionService
	archiver domain.Archiver // optional
	cfg      KeeperConfig
	logger   *slog.Logger

	// archived holds auctions whose archive object is known to exist.
	archived map[uint64]struct{}
}

// NewKeeper creates a Keeper. archiver may be nil.
func NewKeeper(svc *AuctionService, archiver domain.Archiver, cfg KeeperConfig, logger *slog.Logger) *Keeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.StepsPerCall == 0 {
		cfg.StepsPerCall = 500
	}
	return &Keeper{
		svc:      svc,
		archiver: archiver,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "keeper")),
		archived: make(map[uint64]struct{}),
	}
}

// Run ticks until ctx is cancelled.
func (k *Keeper) Run(ctx context.Context) error {
	k.logger.InfoContext(ctx, "keeper started",
		slog.Duration("interval", k.cfg.Interval),
		slog.Uint64("steps_per_call", k.cfg.StepsPerCall),
	)
	ticker := time.NewTicker(k.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := k.Tick(ctx); err != nil {
				k.logger.ErrorContext(ctx, "keeper tick failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Tick settles every auction that has ended but is not yet settled and
// archives settled auctions not archived yet. It returns how many auctions
// it settled. One failing auction does not hold back the others; their
// errors are joined. A failed archive is retried on the next tick.
func (k *Keeper) Tick(ctx context.Context) (settled int, err error) {
	ended, unarchived, err := k.due(ctx)
	if err != nil {
		return 0, err
	}
	var errs []error
	for _, id := range ended {
		if err := ctx.Err(); err != nil {
			return settled, err
		}
		if err := k.settle(ctx, id); err != nil {
			k.logger.WarnContext(ctx, "keeper: settle failed",
				slog.Uint64("auction_id", id),
				slog.String("error", err.Error()),
			)
			errs = append(errs, err)
			continue
		}
		settled++
		unarchived = append(unarchived, id)
	}
	for _, id := range unarchived {
		if err := ctx.Err(); err != nil {
			return settled, err
		}
		if err := k.archive(ctx, id); err != nil {
			k.logger.WarnContext(ctx, "keeper: archive failed",
				slog.Uint64("auction_id", id),
				slog.String("error", err.Error()),
			)
			errs = append(errs, err)
		}
	}
	return settled, errors.Join(errs...)
}

// due lists ended, unsettled auctions and, when archiving, settled auctions
// not yet archived.
func (k *Keeper) due(ctx context.Context) (ended, unarchived []uint64, err error) {
	eng := k.svc.Engine()
	for offset := 0; ; offset += keeperPageSize {
		page, err := eng.Auctions(ctx, domain.ListOpts{Limit: keeperPageSize, Offset: offset})
		if err != nil {
			return nil, nil, fmt.Errorf("keeper: list auctions: %w", err)
		}
		now := eng.Now()
		for i := range page {
			a := &page[i]
			switch {
			case a.Settled:
				if _, ok := k.archived[a.ID]; !ok && k.archiver != nil {
					unarchived = append(unarchived, a.ID)
				}
			case auction.PhaseAt(a, now) == domain.PhaseEnded:
				ended = append(ended, a.ID)
			}
		}
		if len(page) < keeperPageSize {
			return ended, unarchived, nil
		}
	}
}

func (k *Keeper) settle(ctx context.Context, id uint64) error {
	calls := 0
	for {
		cur, err := k.svc.Precalculate(ctx, id, k.cfg.StepsPerCall)
		if err != nil {
			return err
		}
		calls++
		if cur.Found {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	view, err := k.svc.Settle(ctx, id)
	if err != nil {
		return err
	}
	attrs := []any{
		slog.Uint64("auction_id", id),
		slog.Int("precalculate_calls", calls),
	}
	if view.Clearing != nil {
		attrs = append(attrs,
			slog.String("price", view.Clearing.Price),
			slog.Bool("funding_failed", view.Clearing.FundingFailed),
		)
	}
	k.logger.InfoContext(ctx, "keeper: auction settled", attrs...)
	return nil
}

func (k *Keeper) archive(ctx context.Context, id uint64) error {
	if k.archiver == nil {
		return nil
	}
	path, err := k.archiver.ArchiveAuction(ctx, id)
	if err != nil {
		return fmt.Errorf("keeper: archive auction %d: %w", id, err)
	}
	k.archived[id] = struct{}{}
	k.logger.InfoContext(ctx, "keeper: auction archived",
		slog.Uint64("auction_id", id),
		slog.String("path", path),
	)
	return nil
}
