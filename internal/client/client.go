// Package client is the REST client for the auction daemon's HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/batchauction/internal/service"
)

// APIError is a non-2xx response from the daemon.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s: %s", e.Status, http.StatusText(e.Status), e.Message)
}

// Client calls the daemon on behalf of one (optionally logged-in) address.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a client for baseURL, e.g. "http://localhost:8080". token may
// be empty for read-only use.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithToken returns a copy of c that authenticates with token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// Challenge is the message an address must sign to log in.
type Challenge struct {
	Address   string    `json:"address"`
	Nonce     string    `json:"nonce"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Session is a successful login.
type Session struct {
	Token     string `json:"token"`
	Address   string `json:"address"`
	ExpiresAt string `json:"expiresAt"`
}

// CreateAuction is the body of POST /api/auctions. Amounts are base-unit
// decimal strings.
type CreateAuction struct {
	SellingAsset         string    `json:"sellingAsset"`
	BiddingAsset         string    `json:"biddingAsset"`
	OrderPlacementStart  time.Time `json:"orderPlacementStart"`
	CancellationEnd      time.Time `json:"cancellationEnd"`
	AuctionEnd           time.Time `json:"auctionEnd"`
	SellAmount           string    `json:"sellAmount"`
	MinBuyAmount         string    `json:"minBuyAmount"`
	MinBidPerOrder       string    `json:"minBidPerOrder"`
	MinFundingThreshold  string    `json:"minFundingThreshold,omitempty"`
	AtomicClosureAllowed bool      `json:"atomicClosureAllowed"`
}

// RequestChallenge asks the daemon for a login challenge.
func (c *Client) RequestChallenge(ctx context.Context, address string) (Challenge, error) {
	var out Challenge
	err := c.do(ctx, http.MethodPost, "/api/auth/challenge", map[string]string{"address": address}, &out)
	if err != nil {
		return Challenge{}, fmt.Errorf("client: challenge: %w", err)
	}
	return out, nil
}

// Login exchanges a signed challenge for a session token.
func (c *Client) Login(ctx context.Context, address, signature string) (Session, error) {
	var out Session
	err := c.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{
		"address":   address,
		"signature": signature,
	}, &out)
	if err != nil {
		return Session{}, fmt.Errorf("client: login: %w", err)
	}
	return out, nil
}

// CreateAuction initiates an auction.
func (c *Client) CreateAuction(ctx context.Context, req CreateAuction) (service.AuctionView, error) {
	var out service.AuctionView
	if err := c.do(ctx, http.MethodPost, "/api/auctions", req, &out); err != nil {
		return out, fmt.Errorf("client: create auction: %w", err)
	}
	return out, nil
}

// Auction returns one auction.
func (c *Client) Auction(ctx context.Context, id uint64) (service.AuctionView, error) {
	var out service.AuctionView
	if err := c.do(ctx, http.MethodGet, auctionPath(id, ""), nil, &out); err != nil {
		return out, fmt.Errorf("client: auction %d: %w", id, err)
	}
	return out, nil
}

// Auctions lists auctions in id order.
func (c *Client) Auctions(ctx context.Context, limit, offset int) ([]service.AuctionView, error) {
	var out struct {
		Auctions []service.AuctionView `json:"auctions"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/auctions?"+page(limit, offset), nil, &out); err != nil {
		return nil, fmt.Errorf("client: auctions: %w", err)
	}
	return out.Auctions, nil
}

// PlaceOrders submits buy/sell amount pairs and returns the new order ids.
func (c *Client) PlaceOrders(ctx context.Context, id uint64, buys, sells []string) ([]uint64, error) {
	var out struct {
		OrderIDs []uint64 `json:"orderIds"`
	}
	body := map[string][]string{"buyAmounts": buys, "sellAmounts": sells}
	if err := c.do(ctx, http.MethodPost, auctionPath(id, "/orders"), body, &out); err != nil {
		return nil, fmt.Errorf("client: place orders: %w", err)
	}
	return out.OrderIDs, nil
}

// CancelOrders cancels the caller's orders.
func (c *Client) CancelOrders(ctx context.Context, id uint64, orderIDs []uint64) error {
	body := map[string][]uint64{"orderIds": orderIDs}
	if err := c.do(ctx, http.MethodPost, auctionPath(id, "/orders/cancel"), body, nil); err != nil {
		return fmt.Errorf("client: cancel orders: %w", err)
	}
	return nil
}

// Orders lists an auction's orders in id order.
func (c *Client) Orders(ctx context.Context, id uint64, limit, offset int) ([]service.OrderView, error) {
	var out struct {
		Orders []service.OrderView `json:"orders"`
	}
	if err := c.do(ctx, http.MethodGet, auctionPath(id, "/orders?"+page(limit, offset)), nil, &out); err != nil {
		return nil, fmt.Errorf("client: orders: %w", err)
	}
	return out.Orders, nil
}

// Precalculate advances the clearing search by at most maxSteps orders.
func (c *Client) Precalculate(ctx context.Context, id, maxSteps uint64) (service.CursorView, error) {
	var out service.CursorView
	body := map[string]uint64{"maxSteps": maxSteps}
	if err := c.do(ctx, http.MethodPost, auctionPath(id, "/precalculate"), body, &out); err != nil {
		return out, fmt.Errorf("client: precalculate: %w", err)
	}
	return out, nil
}

// Settle finalizes a precalculated auction.
func (c *Client) Settle(ctx context.Context, id uint64) (service.AuctionView, error) {
	var out service.AuctionView
	if err := c.do(ctx, http.MethodPost, auctionPath(id, "/settle"), nil, &out); err != nil {
		return out, fmt.Errorf("client: settle: %w", err)
	}
	return out, nil
}

// Claim pays out the caller's orders in a settled auction.
func (c *Client) Claim(ctx context.Context, id uint64, orderIDs []uint64) (service.ClaimView, error) {
	var out service.ClaimView
	body := map[string][]uint64{"orderIds": orderIDs}
	if err := c.do(ctx, http.MethodPost, auctionPath(id, "/claims"), body, &out); err != nil {
		return out, fmt.Errorf("client: claim: %w", err)
	}
	return out, nil
}

// Fees returns the current fee parameters.
func (c *Client) Fees(ctx context.Context) (service.FeeView, error) {
	var out service.FeeView
	if err := c.do(ctx, http.MethodGet, "/api/fees", nil, &out); err != nil {
		return out, fmt.Errorf("client: fees: %w", err)
	}
	return out, nil
}

// SetFees changes the fee parameters. Owner only.
func (c *Client) SetFees(ctx context.Context, numerator uint64, receiver string) (service.FeeView, error) {
	var out service.FeeView
	body := map[string]any{"numerator": numerator, "receiver": receiver}
	if err := c.do(ctx, http.MethodPut, "/api/fees", body, &out); err != nil {
		return out, fmt.Errorf("client: set fees: %w", err)
	}
	return out, nil
}

// Mint credits amount of asset to to. Owner only.
func (c *Client) Mint(ctx context.Context, asset, to, amount string) (service.BalanceView, error) {
	var out service.BalanceView
	body := map[string]string{"to": to, "amount": amount}
	if err := c.do(ctx, http.MethodPost, "/api/assets/"+url.PathEscape(asset)+"/mint", body, &out); err != nil {
		return out, fmt.Errorf("client: mint: %w", err)
	}
	return out, nil
}

// Approve lets the escrow pull up to amount of asset from the caller.
func (c *Client) Approve(ctx context.Context, asset, amount string) error {
	body := map[string]string{"amount": amount}
	if err := c.do(ctx, http.MethodPost, "/api/assets/"+url.PathEscape(asset)+"/approve", body, nil); err != nil {
		return fmt.Errorf("client: approve: %w", err)
	}
	return nil
}

// Balance returns holder's balance of asset.
func (c *Client) Balance(ctx context.Context, asset, holder string) (service.BalanceView, error) {
	var out service.BalanceView
	path := "/api/assets/" + url.PathEscape(asset) + "/balances/" + url.PathEscape(holder)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return out, fmt.Errorf("client: balance: %w", err)
	}
	return out, nil
}

func auctionPath(id uint64, suffix string) string {
	return "/api/auctions/" + strconv.FormatUint(id, 10) + suffix
}

func page(limit, offset int) string {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	return q.Encode()
}

// do sends a JSON request and decodes a JSON response into out when out is
// non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(data))}
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			apiErr.Message = e.Error
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
