package auction

import (
	"testing"

	"github.com/alanyoungcy/batchauction/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// threeOrders places the 400/40, 400/50, 400/80 book used across tests.
func threeOrders(h *harness, id uint64) (o1, o2, o3 uint64) {
	o1 = h.place(id, alice, 400, 40)
	o2 = h.place(id, bob, 400, 50)
	o3 = h.place(id, carol, 400, 80)
	return
}

func TestSettleOversubscribedAtomicClosure(t *testing.T) {
	h := newHarness(t, nil)
	id := h.create(h.params(1000, 100))
	o1, o2, o3 := threeOrders(h, id)

	h.end()
	found, notes, err := h.e.Precalculate(h.ctx, id, 10)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, notes, 1)
	assert.Equal(t, domain.NotifyClearingFound, notes[0].Kind)

	c, err := h.e.Cursor(h.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, o3, c.MarginalOrderID)
	assert.Equal(t, o2, c.PrevOrderID)
	assert.Equal(t, uint64(800), c.VolumeBeforeMarginal.Uint64())
	assert.Equal(t, uint64(1200), c.Cumulative.Uint64())
	assert.False(t, c.Undersubscribed)

	buy, notes, err := h.e.Settle(h.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(200), buy.Uint64())
	require.Len(t, notes, 1)
	assert.Equal(t, domain.NotifyAuctionCleared, notes[0].Kind)

	a, err := h.e.Auction(h.ctx, id)
	require.NoError(t, err)
	require.NotNil(t, a.Clearing)
	assert.True(t, a.Settled)
	assert.False(t, a.FundingFailed)
	assert.Equal(t, domain.PhaseSettled, PhaseAt(&a, h.clock.now))
	assert.Equal(t, uint64(1000), a.Clearing.ClearingSellAmount.Uint64())
	assert.Equal(t, uint64(200), a.Clearing.ClearingBuyAmount.Uint64())
	assert.Equal(t, o3, a.Clearing.ClearingOrderID)
	assert.Equal(t, uint64(200), a.Clearing.BidVolumeAtClearingPrice.Uint64())
	assert.Equal(t, uint64(40), a.Clearing.ClearingOrderPayout.Uint64())

	clearing, err := h.e.ClearingOrder(h.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, o3, clearing.ID)

	assert.Equal(t, domain.ClaimResult{SellingPaid: u(80)}, h.claim(id, alice, o1))
	assert.Equal(t, domain.ClaimResult{SellingPaid: u(80)}, h.claim(id, bob, o2))
	assert.Equal(t, domain.ClaimResult{SellingPaid: u(40), BiddingRefunded: u(200)}, h.claim(id, carol, o3))

	assert.Equal(t, uint64(800), h.balance(sellToken, auctioneer))
	assert.Equal(t, uint64(1000), h.balance(bidToken, auctioneer))
	assert.Equal(t, uint64(80), h.balance(sellToken, alice))
	assert.Equal(t, uint64(200), h.balance(bidToken, carol))
	assert.Zero(t, h.balance(sellToken, escrow))
	assert.Zero(t, h.balance(bidToken, escrow))
}

func TestSettleOversubscribedWithoutAtomicClosure(t *testing.T) {
	h := newHarness(t, nil)
	p := h.params(1000, 100)
	p.AtomicClosureAllowed = false
	id := h.create(p)
	o1, o2, o3 := threeOrders(h, id)

	h.end()
	a := h.clear(id, 1)
	assert.Equal(t, o2, a.Clearing.ClearingOrderID)
	assert.Equal(t, uint64(800), a.Clearing.ClearingSellAmount.Uint64())
	assert.Equal(t, uint64(100), a.Clearing.ClearingBuyAmount.Uint64())
	assert.Equal(t, uint64(400), a.Clearing.BidVolumeAtClearingPrice.Uint64())

	assert.Equal(t, domain.ClaimResult{SellingPaid: u(50)}, h.claim(id, alice, o1))
	assert.Equal(t, domain.ClaimResult{SellingPaid: u(50)}, h.claim(id, bob, o2))
	assert.Equal(t, domain.ClaimResult{BiddingRefunded: u(400)}, h.claim(id, carol, o3))

	assert.Equal(t, uint64(900), h.balance(sellToken, auctioneer))
	assert.Equal(t, uint64(800), h.balance(bidToken, auctioneer))
	assert.Zero(t, h.balance(sellToken, escrow))
	assert.Zero(t, h.balance(bidToken, escrow))
}

func TestSettleFirstOrderOvershootsWithoutAtomicClosure(t *testing.T) {
	h := newHarness(t, nil)
	p := h.params(1000, 100)
	p.AtomicClosureAllowed = false
	id := h.create(p)
	big := h.place(id, alice, 1500, 150)

	h.end()
	a := h.clear(id, 5)
	assert.Zero(t, a.Clearing.ClearingOrderID)
	assert.True(t, a.Clearing.ClearingSellAmount.IsZero())

	assert.Equal(t, domain.ClaimResult{BiddingRefunded: u(1500)}, h.claim(id, alice, big))
	assert.Equal(t, uint64(1000), h.balance(sellToken, auctioneer))
	assert.Zero(t, h.balance(bidToken, auctioneer))

	_, err := h.e.ClearingOrder(h.ctx, id)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSettleExactFill(t *testing.T) {
	h := newHarness(t, nil)
	p := h.params(800, 100)
	p.AtomicClosureAllowed = false
	id := h.create(p)
	o1 := h.place(id, alice, 400, 40)
	o2 := h.place(id, bob, 400, 50)

	h.end()
	a := h.clear(id, 1)
	assert.Equal(t, o2, a.Clearing.ClearingOrderID)
	assert.Equal(t, uint64(800), a.Clearing.ClearingSellAmount.Uint64())
	assert.Equal(t, uint64(100), a.Clearing.ClearingBuyAmount.Uint64())
	assert.Equal(t, uint64(400), a.Clearing.BidVolumeAtClearingPrice.Uint64())

	assert.Equal(t, domain.ClaimResult{SellingPaid: u(50)}, h.claim(id, alice, o1))
	assert.Equal(t, domain.ClaimResult{SellingPaid: u(50)}, h.claim(id, bob, o2))
}

func TestSettleZeroOrders(t *testing.T) {
	h := newHarness(t, nil)
	id := h.create(h.params(1000, 100))

	h.end()
	found, _, err := h.e.Precalculate(h.ctx, id, 1)
	require.NoError(t, err)
	require.True(t, found)

	c, err := h.e.Cursor(h.ctx, id)
	require.NoError(t, err)
	assert.True(t, c.Cumulative.IsZero())
	assert.True(t, c.Undersubscribed)

	buy, _, err := h.e.Settle(h.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), buy.Uint64())

	a, err := h.e.Auction(h.ctx, id)
	require.NoError(t, err)
	assert.True(t, a.Clearing.ClearingSellAmount.IsZero())
	assert.True(t, a.Clearing.Fee.IsZero())
	assert.Equal(t, uint64(1000), h.balance(sellToken, auctioneer))
	assert.Zero(t, h.balance(sellToken, escrow))
}

func TestSettleUndersubscribed(t *testing.T) {
	h := newHarness(t, nil)
	id := h.create(h.params(1000, 100))
	o1 := h.place(id, alice, 400, 40)
	o2 := h.place(id, bob, 200, 50)

	h.end()
	a := h.clear(id, 1)
	assert.Equal(t, o2, a.Clearing.ClearingOrderID)
	assert.Equal(t, uint64(600), a.Clearing.ClearingSellAmount.Uint64())
	assert.Equal(t, uint64(150), a.Clearing.ClearingBuyAmount.Uint64())
	assert.Equal(t, uint64(200), a.Clearing.BidVolumeAtClearingPrice.Uint64())

	c, err := h.e.Cursor(h.ctx, id)
	require.NoError(t, err)
	assert.True(t, c.Undersubscribed)
	assert.Equal(t, uint64(400), c.VolumeBeforeMarginal.Uint64())

	assert.Equal(t, domain.ClaimResult{SellingPaid: u(100)}, h.claim(id, alice, o1))
	assert.Equal(t, domain.ClaimResult{SellingPaid: u(50)}, h.claim(id, bob, o2))
	assert.Equal(t, uint64(850), h.balance(sellToken, auctioneer))
	assert.Equal(t, uint64(600), h.balance(bidToken, auctioneer))
}

func TestSettleUndersubscribedPriceFloorsAtReserve(t *testing.T) {
	h := newHarness(t, nil)
	id := h.create(h.params(1000, 500))
	o1 := h.place(id, alice, 100, 10)

	h.end()
	a := h.clear(id, 10)
	// floor(100*10/100) = 10 is below the reserve of 500.
	assert.Equal(t, uint64(500), a.Clearing.ClearingBuyAmount.Uint64())
	assert.Equal(t, domain.ClaimResult{SellingPaid: u(500)}, h.claim(id, alice, o1))
	assert.Equal(t, uint64(500), h.balance(sellToken, auctioneer))
}

func TestSettleFundingFailure(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.InitialFees = domain.FeeParameters{Numerator: 10, Receiver: feeSink}
	})
	p := h.params(1000, 100)
	p.MinFundingThreshold = u(2000)
	id := h.create(p)
	o1, o2, o3 := threeOrders(h, id)

	h.end()
	found, _, err := h.e.Precalculate(h.ctx, id, 100)
	require.NoError(t, err)
	require.True(t, found)
	_, notes, err := h.e.Settle(h.ctx, id)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, domain.NotifyFundingFailed, notes[0].Kind)
	assert.Equal(t, uint64(1000), notes[0].SellAmount.Uint64())

	a, err := h.e.Auction(h.ctx, id)
	require.NoError(t, err)
	assert.True(t, a.Settled)
	assert.True(t, a.FundingFailed)
	require.NotNil(t, a.Clearing)
	assert.True(t, a.Clearing.Fee.IsZero())
	assert.Equal(t, domain.PhaseFundingFailed, PhaseAt(&a, h.clock.now))

	assert.Equal(t, uint64(1000), h.balance(sellToken, auctioneer))
	assert.Zero(t, h.balance(bidToken, auctioneer))
	assert.Zero(t, h.balance(bidToken, feeSink))

	assert.Equal(t, domain.ClaimResult{BiddingRefunded: u(400)}, h.claim(id, alice, o1))
	assert.Equal(t, domain.ClaimResult{BiddingRefunded: u(400)}, h.claim(id, bob, o2))
	assert.Equal(t, domain.ClaimResult{BiddingRefunded: u(400)}, h.claim(id, carol, o3))
	assert.Zero(t, h.balance(bidToken, escrow))
	assert.Zero(t, h.balance(sellToken, escrow))
}

func TestSettleFeePolicies(t *testing.T) {
	tests := []struct {
		name       string
		policy     domain.FeePolicy
		fee        uint64
		auctioneer uint64
	}{
		{name: "all filled", policy: domain.FeePolicyAllFilled, fee: 10, auctioneer: 990},
		{name: "full fills only", policy: domain.FeePolicyFullFillsOnly, fee: 8, auctioneer: 992},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, func(o *Options) {
				o.FeePolicy = tt.policy
				o.InitialFees = domain.FeeParameters{Numerator: 10, Receiver: feeSink}
			})
			id := h.create(h.params(1000, 100))
			threeOrders(h, id)

			h.end()
			a := h.clear(id, 2)
			assert.Equal(t, tt.policy, a.FeePolicy)
			assert.Equal(t, tt.fee, a.Clearing.Fee.Uint64())
			assert.Equal(t, feeSink, a.Clearing.FeeReceiver)
			assert.Equal(t, tt.fee, h.balance(bidToken, feeSink))
			assert.Equal(t, tt.auctioneer, h.balance(bidToken, auctioneer))
		})
	}
}

func TestFullFillsOnlyChargesWholeVolumeWithoutPartialFill(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.FeePolicy = domain.FeePolicyFullFillsOnly
		o.InitialFees = domain.FeeParameters{Numerator: 15, Receiver: feeSink}
	})
	p := h.params(1000, 100)
	p.AtomicClosureAllowed = false
	id := h.create(p)
	threeOrders(h, id)

	h.end()
	a := h.clear(id, 3)
	// Clearing order O2 is filled in full: 800 * 15 / 1000.
	assert.Equal(t, uint64(12), a.Clearing.Fee.Uint64())
}

func TestFeeSnapshotSurvivesParameterChange(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.InitialFees = domain.FeeParameters{Numerator: 10, Receiver: feeSink}
	})
	id := h.create(h.params(1000, 100))
	threeOrders(h, id)

	notes, err := h.e.SetFeeParameters(h.ctx, owner, domain.FeeParameters{Numerator: 15, Receiver: feeSink})
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, domain.NotifyFeeParametersUpdated, notes[0].Kind)

	a, err := h.e.Auction(h.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), a.FeeNumerator)

	later := h.create(h.params(1000, 100))
	b, err := h.e.Auction(h.ctx, later)
	require.NoError(t, err)
	assert.Equal(t, uint64(15), b.FeeNumerator)

	h.end()
	a = h.clear(id, 10)
	assert.Equal(t, uint64(10), a.Clearing.Fee.Uint64())
}

func TestSetFeeParametersValidation(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.e.SetFeeParameters(h.ctx, alice, domain.FeeParameters{Numerator: 1, Receiver: feeSink})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = h.e.SetFeeParameters(h.ctx, owner, domain.FeeParameters{Numerator: 16, Receiver: feeSink})
	assert.ErrorIs(t, err, domain.ErrFeeTooHigh)

	_, err = h.e.SetFeeParameters(h.ctx, owner, domain.FeeParameters{Numerator: 5})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = h.e.SetFeeParameters(h.ctx, owner, domain.FeeParameters{})
	require.NoError(t, err)

	f, err := h.e.FeeParameters(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.FeeParameters{}, f)
}

func TestSettleGuards(t *testing.T) {
	h := newHarness(t, nil)
	id := h.create(h.params(1000, 100))
	h.place(id, alice, 400, 40)

	_, _, err := h.e.Settle(h.ctx, id)
	assert.ErrorIs(t, err, domain.ErrInvalidPhase)

	_, _, err = h.e.Precalculate(h.ctx, id, 1)
	assert.ErrorIs(t, err, domain.ErrPrecalculateTooEarly)

	h.end()
	_, _, err = h.e.Settle(h.ctx, id)
	assert.ErrorIs(t, err, domain.ErrPrecalculationIncomplete)

	_, _, err = h.e.Precalculate(h.ctx, id, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	h.clear(id, 1)
	_, _, err = h.e.Settle(h.ctx, id)
	assert.ErrorIs(t, err, domain.ErrAlreadySettled)
	_, _, err = h.e.Precalculate(h.ctx, id, 1)
	assert.ErrorIs(t, err, domain.ErrAlreadySettled)

	_, _, err = h.e.Settle(h.ctx, 99)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPrecalculateIsResumable(t *testing.T) {
	h := newHarness(t, nil)
	id := h.create(h.params(1000, 100))
	threeOrders(h, id)
	h.end()

	found, _, err := h.e.Precalculate(h.ctx, id, 1)
	require.NoError(t, err)
	assert.False(t, found)
	found, _, err = h.e.Precalculate(h.ctx, id, 1)
	require.NoError(t, err)
	assert.False(t, found)

	c, err := h.e.Cursor(h.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), c.Visited)
	assert.Equal(t, uint64(800), c.Cumulative.Uint64())

	found, notes, err := h.e.Precalculate(h.ctx, id, 1)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Len(t, notes, 1)

	// Once found, further calls report found without writing.
	found, notes, err = h.e.Precalculate(h.ctx, id, 1)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Empty(t, notes)
}

func TestPrecalculateDetectsExhaustionAtBudgetBoundary(t *testing.T) {
	h := newHarness(t, nil)
	id := h.create(h.params(1000, 100))
	h.place(id, alice, 100, 10)
	h.place(id, bob, 100, 20)
	h.end()

	found, _, err := h.e.Precalculate(h.ctx, id, 2)
	require.NoError(t, err)
	assert.True(t, found)

	c, err := h.e.Cursor(h.ctx, id)
	require.NoError(t, err)
	assert.True(t, c.Undersubscribed)
	assert.Equal(t, uint64(2), c.Visited)
}
