package auction

import (
	"bytes"
	"testing"

	"github.com/alanyoungcy/batchauction/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// drawAmount produces a nonzero amount anywhere in the 256-bit range.
func drawAmount(t *rapid.T, label string) uint256.Int {
	b := rapid.SliceOfN(rapid.Byte(), 1, 32).Draw(t, label)
	var v uint256.Int
	v.SetBytes(b)
	if v.IsZero() {
		v.SetOne()
	}
	return v
}

func drawOrder(t *rapid.T, id uint64) domain.Order {
	sell := drawAmount(t, "sell")
	buy := drawAmount(t, "buy")
	if buy.Gt(&sell) {
		buy, sell = sell, buy
	}
	return domain.Order{ID: id, SellAmount: sell, BuyAmount: buy}
}

func TestBetterIsStrictTotalOrder(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a, b, c := drawOrder(t, 1), drawOrder(t, 2), drawOrder(t, 3)

		assert.False(t, Better(&a, &a))
		assert.NotEqual(t, Better(&a, &b), Better(&b, &a))
		if Better(&a, &b) && Better(&b, &c) {
			assert.True(t, Better(&a, &c))
		}
	})
}

func TestBetterTiesResolveByID(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		k := rapid.Uint64Range(2, 1000).Draw(t, "scale")
		lo := rapid.Uint64Range(1, 1<<20).Draw(t, "lo")
		hi := rapid.Uint64Range(lo+1, 1<<21).Draw(t, "hi")

		// Same price expressed with scaled amounts.
		small := domain.Order{ID: hi, SellAmount: u(100), BuyAmount: u(7)}
		large := domain.Order{ID: lo, SellAmount: u(100 * k), BuyAmount: u(7 * k)}
		assert.True(t, Better(&large, &small))
		assert.False(t, Better(&small, &large))
	})
}

func TestIndexKeyOrderMatchesRanking(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		id1 := rapid.Uint64Range(1, 1<<40).Draw(t, "id1")
		id2 := rapid.Uint64Range(1, 1<<40).Filter(func(v uint64) bool { return v != id1 }).Draw(t, "id2")
		a, b := drawOrder(t, id1), drawOrder(t, id2)

		ka := indexKey(1, priceKey(&a.BuyAmount, &a.SellAmount), a.ID)
		kb := indexKey(1, priceKey(&b.BuyAmount, &b.SellAmount), b.ID)
		assert.Equal(t, Better(&a, &b), bytes.Compare(ka, kb) < 0)
	})
}

type drawnOrder struct {
	who       int
	sell, buy uint64
	cancel    bool
}

type scenario struct {
	sell, minBuy uint64
	threshold    uint64
	atomic       bool
	feeNumerator uint64
	policy       domain.FeePolicy
	orders       []drawnOrder
}

var bidders = []common.Address{alice, bob, carol}

func drawScenario(t *rapid.T) scenario {
	s := scenario{
		sell:         rapid.Uint64Range(1, 5000).Draw(t, "sellAmount"),
		atomic:       rapid.Bool().Draw(t, "atomic"),
		feeNumerator: rapid.Uint64Range(0, domain.MaxFeeNumerator).Draw(t, "fee"),
		policy:       rapid.SampledFrom([]domain.FeePolicy{domain.FeePolicyAllFilled, domain.FeePolicyFullFillsOnly}).Draw(t, "policy"),
	}
	s.minBuy = rapid.Uint64Range(1, s.sell).Draw(t, "minBuy")
	s.threshold = rapid.Uint64Range(0, 2*s.sell).Draw(t, "threshold")
	n := rapid.IntRange(0, 12).Draw(t, "orders")
	for i := 0; i < n; i++ {
		sell := rapid.Uint64Range(1, 2000).Draw(t, "orderSell")
		s.orders = append(s.orders, drawnOrder{
			who:    rapid.IntRange(0, len(bidders)-1).Draw(t, "who"),
			sell:   sell,
			buy:    rapid.Uint64Range(1, sell).Draw(t, "orderBuy"),
			cancel: rapid.IntRange(0, 4).Draw(t, "cancel") == 0,
		})
	}
	return s
}

// run builds the scenario on a fresh engine and clears it with the given
// step budget.
func (s scenario) run(t *rapid.T, steps uint64) (*harness, uint64, []uint64) {
	h := newHarness(t, func(o *Options) {
		o.FeePolicy = s.policy
		o.InitialFees = domain.FeeParameters{Numerator: s.feeNumerator, Receiver: feeSink}
	})
	p := h.params(s.sell, s.minBuy)
	p.AtomicClosureAllowed = s.atomic
	p.MinFundingThreshold = u(s.threshold)
	id := h.create(p)

	var live []uint64
	for _, o := range s.orders {
		oid := h.place(id, bidders[o.who], o.sell, o.buy)
		if o.cancel {
			_, err := h.e.CancelOrders(h.ctx, id, bidders[o.who], []uint64{oid})
			require.NoError(t, err)
			continue
		}
		live = append(live, oid)
	}
	h.end()
	h.clear(id, steps)
	return h, id, live
}

func TestResumabilityEquivalence(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := drawScenario(t)
		chunked, id, _ := s.run(t, 1)
		whole, _, _ := s.run(t, 1<<62)

		c1, err := chunked.e.Cursor(chunked.ctx, id)
		require.NoError(t, err)
		c2, err := whole.e.Cursor(whole.ctx, id)
		require.NoError(t, err)
		assert.Equal(t, c2, c1)

		a1, err := chunked.e.Auction(chunked.ctx, id)
		require.NoError(t, err)
		a2, err := whole.e.Auction(whole.ctx, id)
		require.NoError(t, err)
		assert.Equal(t, a2.Clearing, a1.Clearing)
	})
}

func TestConservation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := drawScenario(t)
		h, id, live := s.run(t, uint64(rapid.IntRange(1, 4).Draw(t, "steps")))

		a, err := h.e.Auction(h.ctx, id)
		require.NoError(t, err)

		var escrowedBids uint64
		for _, o := range s.orders {
			escrowedBids += o.sell
		}

		for _, oid := range live {
			o, err := h.e.Order(h.ctx, id, oid)
			require.NoError(t, err)
			user, err := h.e.UserByID(h.ctx, o.UserID)
			require.NoError(t, err)
			h.claim(id, user.Address, oid)
		}

		var bidsOut, sellOut uint64
		for _, who := range bidders {
			bidsOut += h.balance(bidToken, who)
			sellOut += h.balance(sellToken, who)
		}
		bidsOut += h.balance(bidToken, auctioneer) + h.balance(bidToken, feeSink)
		sellOut += h.balance(sellToken, auctioneer)

		require.Equal(t, escrowedBids, bidsOut)
		require.Zero(t, h.balance(bidToken, escrow))

		dust := h.balance(sellToken, escrow)
		require.Equal(t, s.sell, sellOut+dust)
		require.LessOrEqual(t, dust, uint64(len(live)))
		if a.FundingFailed || a.Clearing.ClearingOrderID == 0 {
			require.Zero(t, dust)
		}
	})
}

func TestFilledOrdersReceiveAtLeastTheirLimit(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := drawScenario(t)
		h, id, live := s.run(t, 1<<62)

		a, err := h.e.Auction(h.ctx, id)
		require.NoError(t, err)
		clr := a.Clearing
		if a.FundingFailed || clr.ClearingOrderID == 0 {
			return
		}
		clearingOrder, err := h.e.Order(h.ctx, id, clr.ClearingOrderID)
		require.NoError(t, err)

		var paid uint64
		for _, oid := range live {
			o, err := h.e.Order(h.ctx, id, oid)
			require.NoError(t, err)
			user, err := h.e.UserByID(h.ctx, o.UserID)
			require.NoError(t, err)
			res := h.claim(id, user.Address, oid)
			paid += res.SellingPaid.Uint64()

			var filled uint64
			switch {
			case oid == clr.ClearingOrderID:
				filled = clr.BidVolumeAtClearingPrice.Uint64()
			case Better(&o, &clearingOrder):
				filled = o.SellAmount.Uint64()
			default:
				require.True(t, res.SellingPaid.IsZero(), "order %d ranks behind the clearing order", oid)
				continue
			}
			limit := o.BuyAmount.Uint64() * filled / o.SellAmount.Uint64()
			require.GreaterOrEqual(t, res.SellingPaid.Uint64(), limit, "order %d", oid)
			require.Equal(t, o.SellAmount.Uint64()-filled, res.BiddingRefunded.Uint64(), "order %d", oid)
		}
		require.LessOrEqual(t, paid, clr.ClearingBuyAmount.Uint64())
	})
}
