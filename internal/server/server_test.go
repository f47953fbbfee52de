package server

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/batchauction/internal/auction"
	"github.com/alanyoungcy/batchauction/internal/auth"
	"github.com/alanyoungcy/batchauction/internal/cache/local"
	"github.com/alanyoungcy/batchauction/internal/crypto"
	"github.com/alanyoungcy/batchauction/internal/domain"
	"github.com/alanyoungcy/batchauction/internal/kv"
	"github.com/alanyoungcy/batchauction/internal/server/handler"
	"github.com/alanyoungcy/batchauction/internal/service"
)

var (
	sellToken = common.HexToAddress("0x5e11000000000000000000000000000000000000")
	bidToken  = common.HexToAddress("0xb1d0000000000000000000000000000000000000")
	t0        = time.Unix(1_700_000_000, 0).UTC()
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

type apiFixture struct {
	t     *testing.T
	srv   *httptest.Server
	clock *fakeClock
	owner *ecdsa.PrivateKey
}

func newKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	k, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	return k
}

func newAPI(t *testing.T, rateLimit int) *apiFixture {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := &fakeClock{now: t0}
	ownerKey := newKey(t)

	eng, err := auction.New(ctx, kv.NewMemDB(), clock, auction.Options{
		Owner:  ethcrypto.PubkeyToAddress(ownerKey.PublicKey),
		Escrow: common.HexToAddress("0x00000000000000000000000000000000000000e5"),
	}, logger)
	require.NoError(t, err)
	require.NoError(t, eng.RegisterAsset(ctx, domain.AssetInfo{Address: sellToken, Symbol: "SELL", Decimals: 6}))
	require.NoError(t, eng.RegisterAsset(ctx, domain.AssetInfo{Address: bidToken, Symbol: "BID", Decimals: 6}))

	svc := service.NewAuctionService(eng, nil, nil, nil, logger)
	tokens, err := auth.NewTokens("test-secret", time.Hour)
	require.NoError(t, err)

	h := NewHandler(Config{RateLimit: rateLimit, RateWindow: time.Minute}, Handlers{
		Health:   handler.NewHealthHandler(map[string]handler.Check{"engine": func(context.Context) error { return nil }}, logger),
		Auth:     handler.NewAuthHandler(auth.NewChallenges(time.Minute), tokens, logger),
		Auctions: handler.NewAuctionHandler(svc, logger),
		Orders:   handler.NewOrderHandler(svc, logger),
		Accounts: handler.NewAccountHandler(svc, logger),
	}, tokens, local.NewRateLimiter(time.Minute), nil, logger)

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &apiFixture{t: t, srv: srv, clock: clock, owner: ownerKey}
}

// do sends a JSON request and decodes the JSON response into out when set.
func (f *apiFixture) do(method, path, token string, body any, out any) int {
	f.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(f.t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rd)
	require.NoError(f.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(f.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(f.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (f *apiFixture) login(key *ecdsa.PrivateKey) string {
	f.t.Helper()
	addr := ethcrypto.PubkeyToAddress(key.PublicKey).Hex()
	var ch struct{ Message string }
	require.Equal(f.t, http.StatusOK, f.do("POST", "/api/auth/challenge", "", map[string]string{"address": addr}, &ch))

	sig, err := crypto.NewSigner(key).SignText([]byte(ch.Message))
	require.NoError(f.t, err)
	var session struct{ Token string }
	require.Equal(f.t, http.StatusOK, f.do("POST", "/api/auth/login", "", map[string]string{
		"address": addr, "signature": sig,
	}, &session))
	require.NotEmpty(f.t, session.Token)
	return session.Token
}

func (f *apiFixture) fund(ownerToken, token string, who *ecdsa.PrivateKey, asset common.Address, amount string) {
	f.t.Helper()
	addr := ethcrypto.PubkeyToAddress(who.PublicKey).Hex()
	require.Equal(f.t, http.StatusOK, f.do("POST", "/api/assets/"+asset.Hex()+"/mint", ownerToken,
		map[string]string{"to": addr, "amount": amount}, nil))
	require.Equal(f.t, http.StatusOK, f.do("POST", "/api/assets/"+asset.Hex()+"/approve", token,
		map[string]string{"amount": amount}, nil))
}

func TestAPIAuctionLifecycle(t *testing.T) {
	f := newAPI(t, 0)
	ownerToken := f.login(f.owner)
	seller, bidder := newKey(t), newKey(t)
	sellerToken, bidderToken := f.login(seller), f.login(bidder)

	var health map[string]any
	require.Equal(t, http.StatusOK, f.do("GET", "/api/health", "", nil, &health))
	assert.Equal(t, "ok", health["status"])

	f.fund(ownerToken, sellerToken, seller, sellToken, "1000")
	create := map[string]any{
		"sellingAsset":         sellToken.Hex(),
		"biddingAsset":         bidToken.Hex(),
		"orderPlacementStart":  t0,
		"cancellationEnd":      t0.Add(time.Hour),
		"auctionEnd":           t0.Add(2 * time.Hour),
		"sellAmount":           "1000",
		"minBuyAmount":         "100",
		"minBidPerOrder":       "1",
		"atomicClosureAllowed": true,
	}
	require.Equal(t, http.StatusUnauthorized, f.do("POST", "/api/auctions", "", create, nil))

	var av service.AuctionView
	require.Equal(t, http.StatusCreated, f.do("POST", "/api/auctions", sellerToken, create, &av))
	assert.Equal(t, domain.PhaseOrderPlacement, av.Phase)
	id := "/api/auctions/1"

	f.fund(ownerToken, bidderToken, bidder, bidToken, "1200")
	var placed struct{ OrderIDs []uint64 }
	require.Equal(t, http.StatusCreated, f.do("POST", id+"/orders", bidderToken, map[string]any{
		"buyAmounts":  []string{"80", "80", "80"},
		"sellAmounts": []string{"400", "400", "400"},
	}, &placed))
	assert.Equal(t, []uint64{1, 2, 3}, placed.OrderIDs)

	var orders struct{ Orders []service.OrderView }
	require.Equal(t, http.StatusOK, f.do("GET", id+"/orders?limit=2", "", nil, &orders))
	assert.Len(t, orders.Orders, 2)

	require.Equal(t, http.StatusConflict, f.do("POST", id+"/precalculate", sellerToken, map[string]any{"maxSteps": 10}, nil),
		"precalculate before the end")

	f.clock.now = t0.Add(2 * time.Hour)
	var cur service.CursorView
	require.Equal(t, http.StatusOK, f.do("POST", id+"/precalculate", sellerToken, map[string]any{"maxSteps": 10}, &cur))
	assert.True(t, cur.Found)

	require.Equal(t, http.StatusOK, f.do("POST", id+"/settle", sellerToken, nil, &av))
	require.NotNil(t, av.Clearing)
	assert.Equal(t, "0.2", av.Clearing.Price)
	require.Equal(t, http.StatusConflict, f.do("POST", id+"/settle", sellerToken, nil, nil))

	var claim service.ClaimView
	require.Equal(t, http.StatusForbidden, f.do("POST", id+"/claims", sellerToken, map[string]any{"orderIds": []uint64{1}}, nil))
	require.Equal(t, http.StatusOK, f.do("POST", id+"/claims", bidderToken, map[string]any{"orderIds": []uint64{1, 2, 3}}, &claim))
	assert.Equal(t, service.ClaimView{SellingPaid: "200", BiddingRefunded: "200"}, claim)

	var bal service.BalanceView
	bidderAddr := ethcrypto.PubkeyToAddress(bidder.PublicKey).Hex()
	require.Equal(t, http.StatusOK, f.do("GET", "/api/assets/"+sellToken.Hex()+"/balances/"+bidderAddr, "", nil, &bal))
	assert.Equal(t, "200", bal.Amount)

	var user service.UserView
	require.Equal(t, http.StatusOK, f.do("GET", "/api/users/"+bidderAddr, "", nil, &user))
	require.Equal(t, http.StatusOK, f.do("GET", "/api/users/id/"+strconv.FormatUint(user.ID, 10), "", nil, &user))
	assert.Equal(t, bidderAddr, user.Address)
}

func TestAPIErrors(t *testing.T) {
	f := newAPI(t, 0)
	token := f.login(newKey(t))

	assert.Equal(t, http.StatusNotFound, f.do("GET", "/api/auctions/99", "", nil, nil))
	assert.Equal(t, http.StatusBadRequest, f.do("GET", "/api/auctions/abc", "", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, f.do("GET", "/api/fees", "garbage", nil, nil))
	assert.Equal(t, http.StatusForbidden, f.do("PUT", "/api/fees", token, map[string]any{"numerator": 1, "receiver": sellToken.Hex()}, nil))
	assert.Equal(t, http.StatusBadRequest, f.do("POST", "/api/auctions/1/claims", token, map[string]any{"orderIds": []uint64{}}, nil))
	assert.Equal(t, http.StatusBadRequest, f.do("POST", "/api/auctions", token, map[string]any{"bogus": 1}, nil))
	assert.Equal(t, http.StatusBadRequest, f.do("POST", "/api/assets/"+bidToken.Hex()+"/approve", token, map[string]string{"amount": "-5"}, nil))

	ownerToken := f.login(f.owner)
	assert.Equal(t, http.StatusBadRequest, f.do("PUT", "/api/fees", ownerToken, map[string]any{"numerator": 16, "receiver": sellToken.Hex()}, nil))
	var fees service.FeeView
	require.Equal(t, http.StatusOK, f.do("PUT", "/api/fees", ownerToken, map[string]any{"numerator": 15, "receiver": sellToken.Hex()}, &fees))
	assert.Equal(t, "1.5", fees.Percent)

	t.Run("login with wrong signature", func(t *testing.T) {
		key := newKey(t)
		addr := ethcrypto.PubkeyToAddress(key.PublicKey).Hex()
		var ch struct{ Message string }
		require.Equal(t, http.StatusOK, f.do("POST", "/api/auth/challenge", "", map[string]string{"address": addr}, &ch))
		sig, err := crypto.NewSigner(newKey(t)).SignText([]byte(ch.Message))
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, f.do("POST", "/api/auth/login", "", map[string]string{"address": addr, "signature": sig}, nil))
	})
}

func TestAPIRateLimit(t *testing.T) {
	f := newAPI(t, 2)
	assert.Equal(t, http.StatusOK, f.do("GET", "/api/assets", "", nil, nil))
	assert.Equal(t, http.StatusOK, f.do("GET", "/api/assets", "", nil, nil))
	assert.Equal(t, http.StatusTooManyRequests, f.do("GET", "/api/assets", "", nil, nil))
}
