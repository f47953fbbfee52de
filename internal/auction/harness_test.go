package auction

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/alanyoungcy/batchauction/internal/domain"
	"github.com/alanyoungcy/batchauction/internal/kv"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

var (
	owner      = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	escrow     = common.HexToAddress("0x00000000000000000000000000000000000000e5")
	feeSink    = common.HexToAddress("0x00000000000000000000000000000000000000fe")
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

func u(v uint64) uint256.Int { return *uint256.NewInt(v) }

type harness struct {
	t     require.TestingT
	ctx   context.Context
	db    *kv.MemDB
	e     *Engine
	clock *fakeClock
}

func newHarness(t require.TestingT, mutate func(*Options)) *harness {
	opts := Options{
		MaxOrdersPerAuction: 1000,
		FeePolicy:           domain.FeePolicyAllFilled,
		Owner:               owner,
		Escrow:              escrow,
	}
	if mutate != nil {
		mutate(&opts)
	}
	h := &harness{
		t:     t,
		ctx:   context.Background(),
		db:    kv.NewMemDB(),
		clock: &fakeClock{now: t0},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e, err := New(h.ctx, h.db, h.clock, opts, logger)
	require.NoError(t, err)
	h.e = e

	require.NoError(t, e.RegisterAsset(h.ctx, domain.AssetInfo{Address: sellToken, Symbol: "SELL", Decimals: 18}))
	require.NoError(t, e.RegisterAsset(h.ctx, domain.AssetInfo{Address: bidToken, Symbol: "BID", Decimals: 6}))
	return h
}

// fund mints amount of asset to holder and approves the escrow for all of it.
func (h *harness) fund(asset, holder common.Address, amount uint64) {
	require.NoError(h.t, h.e.Mint(h.ctx, owner, asset, holder, u(amount)))
	require.NoError(h.t, h.e.Approve(h.ctx, holder, asset, *new(uint256.Int).SetAllOne()))
}

func (h *harness) params(sell, minBuy uint64) domain.AuctionParams {
	return domain.AuctionParams{
		SellingAsset:         sellToken,
		BiddingAsset:         bidToken,
		OrderPlacementStart:  t0,
		CancellationEnd:      t0.Add(time.Hour),
		AuctionEnd:           t0.Add(2 * time.Hour),
		SellAmount:           u(sell),
		MinBuyAmount:         u(minBuy),
		MinBidPerOrder:       u(1),
		AtomicClosureAllowed: true,
	}
}

func (h *harness) create(p domain.AuctionParams) uint64 {
	h.fund(p.SellingAsset, auctioneer, p.SellAmount.Uint64())
	id, _, err := h.e.InitiateAuction(h.ctx, auctioneer, p)
	require.NoError(h.t, err)
	return id
}

func (h *harness) place(auctionID uint64, who common.Address, sell, buy uint64) uint64 {
	h.fund(bidToken, who, sell)
	ids, _, err := h.e.PlaceOrders(h.ctx, auctionID, who, []uint256.Int{u(buy)}, []uint256.Int{u(sell)})
	require.NoError(h.t, err)
	require.Len(h.t, ids, 1)
	return ids[0]
}

func (h *harness) at(d time.Duration) { h.clock.now = t0.Add(d) }

func (h *harness) end() { h.at(2 * time.Hour) }

// clear runs precalculate with the given step budget until found, then
// settles.
func (h *harness) clear(auctionID uint64, steps uint64) domain.Auction {
	for i := 0; ; i++ {
		found, _, err := h.e.Precalculate(h.ctx, auctionID, steps)
		require.NoError(h.t, err)
		if found {
			break
		}
		require.Less(h.t, i, 100000)
	}
	_, _, err := h.e.Settle(h.ctx, auctionID)
	require.NoError(h.t, err)
	a, err := h.e.Auction(h.ctx, auctionID)
	require.NoError(h.t, err)
	return a
}

func (h *harness) balance(asset, holder common.Address) uint64 {
	b, err := h.e.BalanceOf(h.ctx, asset, holder)
	require.NoError(h.t, err)
	return b.Amount.Uint64()
}

func (h *harness) claim(auctionID uint64, who common.Address, ids ...uint64) domain.ClaimResult {
	res, _, err := h.e.Claim(h.ctx, auctionID, who, ids)
	require.NoError(h.t, err)
	return res
}
