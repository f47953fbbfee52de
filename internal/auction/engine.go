// Package auction implements the sealed-bid batch auction engine: the order
// ledger, the resumable clearing scan, settlement with protocol fees and
// the per-order claim resolver. All state, including the asset ledger that
// holds escrow, lives in a single kv.DB so each call commits atomically.
package auction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/batchauction/internal/domain"
	"github.com/alanyoungcy/batchauction/internal/kv"
	"github.com/ethereum/go-ethereum/common"
)

// DefaultMaxOrdersPerAuction applies when Options leaves the ceiling unset.
const DefaultMaxOrdersPerAuction = 5000

// Clock supplies the time every phase check is evaluated against.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Options configures an Engine.
type Options struct {
	MaxOrdersPerAuction uint64
	// FeePolicy is snapshotted into every auction created afterwards.
	FeePolicy domain.FeePolicy
	// Owner may change fee parameters and mint assets.
	Owner common.Address
	// Escrow is the ledger account holding deposits until settlement.
	Escrow common.Address
	// InitialFees seeds the fee state of an empty database.
	InitialFees domain.FeeParameters
}

// Engine serializes every state-mutating call behind one lock. Queries take
// the read lock and only ever observe committed state.
type Engine struct {
	db     kv.DB
	clock  Clock
	opts   Options
	logger *slog.Logger
	mu     sync.RWMutex
}

// New validates opts and seeds the fee parameters when db holds none.
func New(ctx context.Context, db kv.DB, clock Clock, opts Options, logger *slog.Logger) (*Engine, error) {
	if opts.MaxOrdersPerAuction == 0 {
		opts.MaxOrdersPerAuction = DefaultMaxOrdersPerAuction
	}
	if opts.FeePolicy == "" {
		opts.FeePolicy = domain.FeePolicyAllFilled
	}

	var errs []error
	if !opts.FeePolicy.Valid() {
		errs = append(errs, fmt.Errorf("unknown fee policy %q", opts.FeePolicy))
	}
	if opts.Owner == (common.Address{}) {
		errs = append(errs, errors.New("owner address is required"))
	}
	if opts.Escrow == (common.Address{}) {
		errs = append(errs, errors.New("escrow address is required"))
	}
	if err := validateFees(opts.InitialFees); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("auction: options: %w", err)
	}
	if clock == nil {
		clock = SystemClock{}
	}

	e := &Engine{
		db:     db,
		clock:  clock,
		opts:   opts,
		logger: logger.With(slog.String("component", "auction")),
	}

	tx := newTxn(ctx, db)
	if _, ok, err := tx.get(keyFees); err != nil {
		return nil, fmt.Errorf("auction: read fees: %w", err)
	} else if !ok {
		if err := tx.putFees(opts.InitialFees); err != nil {
			return nil, err
		}
	}
	if err := tx.commit(); err != nil {
		return nil, err
	}
	return e, nil
}

// Now returns the engine clock's current time.
func (e *Engine) Now() time.Time { return e.clock.Now() }

// EscrowAddress returns the escrow account address.
func (e *Engine) EscrowAddress() common.Address { return e.opts.Escrow }

// Owner returns the privileged owner address.
func (e *Engine) Owner() common.Address { return e.opts.Owner }

// update runs fn in a fresh transaction and commits it only if fn succeeds.
// The notifications fn emitted are returned after a successful commit.
func (e *Engine) update(ctx context.Context, fn func(tx *txn) error) ([]domain.Notification, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tx := newTxn(ctx, e.db)
	if err := fn(tx); err != nil {
		return nil, err
	}
	if err := tx.commit(); err != nil {
		return nil, err
	}
	return tx.notes, nil
}

// view runs fn against committed state.
func (e *Engine) view(ctx context.Context, fn func(tx *txn) error) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return fn(newTxn(ctx, e.db))
}
