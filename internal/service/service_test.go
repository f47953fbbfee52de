package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/batchauction/internal/auction"
	"github.com/alanyoungcy/batchauction/internal/domain"
	"github.com/alanyoungcy/batchauction/internal/kv"
)

var (
	owner      = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	escrow     = common.HexToAddress("0x00000000000000000000000000000000000000e5")
	auctioneer = common.HexToAddress("0x1000000000000000000000000000000000000001")
	alice      = common.HexToAddress("0x2000000000000000000000000000000000000002")
	bob        = common.HexToAddress("0x3000000000000000000000000000000000000003")
	carol      = common.HexToAddress("0x4000000000000000000000000000000000000004")

	sellToken = common.HexToAddress("0x5e11000000000000000000000000000000000000")
	bidToken  = common.HexToAddress("0xb1d0000000000000000000000000000000000000")

	t0 = time.Unix(1_700_000_000, 0).UTC()
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

type memJournal struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (j *memJournal) Append(_ context.Context, events []domain.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return j.err
	}
	j.events = append(j.events, events...)
	return nil
}

func (j *memJournal) List(_ context.Context, q domain.EventQuery) ([]domain.Event, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []domain.Event
	for _, e := range j.events {
		if q.AuctionID == 0 || e.AuctionID == q.AuctionID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (j *memJournal) kinds() []domain.NotificationKind {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]domain.NotificationKind, 0, len(j.events))
	for _, e := range j.events {
		out = append(out, e.Kind)
	}
	return out
}

type recordingBus struct {
	mu       sync.Mutex
	channels []string
	payloads [][]byte
}

func (b *recordingBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.channels = append(b.channels, channel)
	b.payloads = append(b.payloads, payload)
	return nil
}

func (b *recordingBus) Subscribe(context.Context, string) (<-chan domain.Message, error) {
	return nil, errors.New("not supported")
}

type recordingNotifier struct {
	kinds []domain.NotificationKind
}

func (n *recordingNotifier) Notify(_ context.Context, ev domain.Event) error {
	n.kinds = append(n.kinds, ev.Kind)
	return nil
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	clock    *fakeClock
	svc      *AuctionService
	journal  *memJournal
	bus      *recordingBus
	notifier *recordingNotifier
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func u(v uint64) uint256.Int { return *uint256.NewInt(v) }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	clock := &fakeClock{now: t0}
	eng, err := auction.New(ctx, kv.NewMemDB(), clock, auction.Options{
		Owner:  owner,
		Escrow: escrow,
	}, discardLogger())
	require.NoError(t, err)
	require.NoError(t, eng.RegisterAsset(ctx, domain.AssetInfo{Address: sellToken, Symbol: "SELL", Decimals: 6}))
	require.NoError(t, eng.RegisterAsset(ctx, domain.AssetInfo{Address: bidToken, Symbol: "BID", Decimals: 6}))

	f := &fixture{
		t:        t,
		ctx:      ctx,
		clock:    clock,
		journal:  &memJournal{},
		bus:      &recordingBus{},
		notifier: &recordingNotifier{},
	}
	f.svc = NewAuctionService(eng, f.journal, f.bus, f.notifier, discardLogger())
	f.svc.now = func() time.Time { return clock.now }
	return f
}

func (f *fixture) fund(asset, holder common.Address, amount uint64) {
	_, err := f.svc.Mint(f.ctx, owner, asset, holder, u(amount))
	require.NoError(f.t, err)
	require.NoError(f.t, f.svc.Approve(f.ctx, holder, asset, u(amount)))
}

// example creates the 1000/100 auction with three 400/80 orders.
func (f *fixture) example() uint64 {
	f.fund(sellToken, auctioneer, 1000)
	av, err := f.svc.InitiateAuction(f.ctx, auctioneer, domain.AuctionParams{
		SellingAsset:         sellToken,
		BiddingAsset:         bidToken,
		OrderPlacementStart:  t0,
		CancellationEnd:      t0.Add(time.Hour),
		AuctionEnd:           t0.Add(2 * time.Hour),
		SellAmount:           u(1000),
		MinBuyAmount:         u(100),
		MinBidPerOrder:       u(1),
		AtomicClosureAllowed: true,
	})
	require.NoError(f.t, err)
	for _, who := range []common.Address{alice, bob, carol} {
		f.fund(bidToken, who, 400)
		_, err := f.svc.PlaceOrders(f.ctx, av.ID, who, []uint256.Int{u(80)}, []uint256.Int{u(400)})
		require.NoError(f.t, err)
	}
	return av.ID
}

func TestServiceLifecycle(t *testing.T) {
	f := newFixture(t)
	id := f.example()

	av, err := f.svc.Auction(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseOrderPlacement, av.Phase)
	assert.Equal(t, "0.1", av.ReservePrice)
	assert.Equal(t, "1200", av.TotalSellVolume)
	assert.Nil(t, av.Clearing)

	orders, err := f.svc.Orders(f.ctx, id, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, orders, 3)
	assert.Equal(t, "0.2", orders[0].LimitPrice)

	f.clock.now = t0.Add(2 * time.Hour)
	cur, err := f.svc.Precalculate(f.ctx, id, 10)
	require.NoError(t, err)
	assert.True(t, cur.Found)
	assert.Equal(t, uint64(3), cur.MarginalOrderID)

	av, err = f.svc.Settle(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseSettled, av.Phase)
	require.NotNil(t, av.Clearing)
	assert.Equal(t, "1000", av.Clearing.ClearingSellAmount)
	assert.Equal(t, "200", av.Clearing.ClearingBuyAmount)
	assert.Equal(t, "0.2", av.Clearing.Price)
	assert.Equal(t, "40", av.Clearing.ClearingOrderPayout)

	cv, err := f.svc.Claim(f.ctx, id, carol, []uint64{3})
	require.NoError(t, err)
	assert.Equal(t, ClaimView{SellingPaid: "40", BiddingRefunded: "200"}, cv)

	bal, err := f.svc.Balance(f.ctx, sellToken, carol)
	require.NoError(t, err)
	assert.Equal(t, "40", bal.Amount)
	assert.Equal(t, "0.00004", bal.Decimal)

	assert.Equal(t, []domain.NotificationKind{
		domain.NotifyUserRegistered,
		domain.NotifyAuctionCreated,
		domain.NotifyUserRegistered, domain.NotifyOrderCreated,
		domain.NotifyUserRegistered, domain.NotifyOrderCreated,
		domain.NotifyUserRegistered, domain.NotifyOrderCreated,
		domain.NotifyClearingFound,
		domain.NotifyAuctionCleared,
		domain.NotifyOrderClaimed,
	}, f.journal.kinds())
	assert.Equal(t, []domain.NotificationKind{domain.NotifyAuctionCleared}, f.notifier.kinds)

	events, err := f.svc.Events(f.ctx, domain.EventQuery{AuctionID: id})
	require.NoError(t, err)
	require.Len(t, events, 7)
	for _, e := range events {
		assert.NotEmpty(t, e.ID)
		assert.Equal(t, id, e.AuctionID)
	}

	f.bus.mu.Lock()
	defer f.bus.mu.Unlock()
	assert.Contains(t, f.bus.channels, "auction:events:1")
	var last EventView
	require.NoError(t, json.Unmarshal(f.bus.payloads[len(f.bus.payloads)-1], &last))
	assert.Equal(t, string(domain.NotifyOrderClaimed), last.Kind)
	assert.Equal(t, "40", last.Detail["payout"])
}

func TestServiceErrorsWrapSentinels(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Auction(f.ctx, 42)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.SetFeeParameters(f.ctx, alice, domain.FeeParameters{Numerator: 5})
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = f.svc.SetFeeParameters(f.ctx, owner, domain.FeeParameters{Numerator: 16})
	require.ErrorIs(t, err, domain.ErrFeeTooHigh)
	assert.Empty(t, f.journal.kinds(), "failed calls publish nothing")
}

func TestServiceJournalFailureDoesNotFailMutation(t *testing.T) {
	f := newFixture(t)
	f.journal.err = errors.New("db down")

	fv, err := f.svc.SetFeeParameters(f.ctx, owner, domain.FeeParameters{Numerator: 15, Receiver: alice})
	require.NoError(t, err)
	assert.Equal(t, "1.5", fv.Percent)

	got, err := f.svc.Fees(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(15), got.Numerator)
	assert.Equal(t, alice.Hex(), got.Receiver)
	assert.Len(t, f.bus.channels, 1)
}

func TestServiceWithoutOptionalSinks(t *testing.T) {
	f := newFixture(t)
	f.svc = NewAuctionService(f.svc.Engine(), nil, nil, nil, discardLogger())

	id := f.example()
	f.clock.now = t0.Add(2 * time.Hour)
	_, err := f.svc.Precalculate(f.ctx, id, 1000)
	require.NoError(t, err)
	_, err = f.svc.Settle(f.ctx, id)
	require.NoError(t, err)

	events, err := f.svc.Events(f.ctx, domain.EventQuery{})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestAuctionSnapshot(t *testing.T) {
	f := newFixture(t)
	id := f.example()

	snap, err := f.svc.AuctionSnapshot(f.ctx, id)
	require.NoError(t, err)
	s, ok := snap.(AuctionSnapshot)
	require.True(t, ok)
	assert.Equal(t, id, s.Auction.ID)
	assert.Len(t, s.Orders, 3)
}

func TestUsersAndEscrow(t *testing.T) {
	f := newFixture(t)
	f.example()

	uv, err := f.svc.UserByAddress(f.ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), uv.ID)

	byID, err := f.svc.UserByID(f.ctx, uv.ID)
	require.NoError(t, err)
	assert.Equal(t, alice.Hex(), byID.Address)

	_, err = f.svc.UserByAddress(f.ctx, owner)
	require.ErrorIs(t, err, domain.ErrNotFound)

	esc, err := f.svc.Escrow(f.ctx)
	require.NoError(t, err)
	amounts := map[string]string{}
	for _, b := range esc {
		amounts[b.Asset.Symbol] = b.Amount
	}
	assert.Equal(t, map[string]string{"SELL": "1000", "BID": "1200"}, amounts)
}
