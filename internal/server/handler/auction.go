package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/batchauction/internal/domain"
	"github.com/alanyoungcy/batchauction/internal/service"
)

// AuctionHandler serves auction lifecycle endpoints.
type AuctionHandler struct {
	svc    *service.AuctionService
	logger *slog.Logger
}

// NewAuctionHandler creates an AuctionHandler.
func NewAuctionHandler(svc *service.AuctionService, logger *slog.Logger) *AuctionHandler {
	return &AuctionHandler{svc: svc, logger: logHandler(logger, "auction")}
}

// createAuctionRequest carries amounts as decimal strings.
type createAuctionRequest struct {
	SellingAsset         string    `json:"sellingAsset"`
	BiddingAsset         string    `json:"biddingAsset"`
	OrderPlacementStart  time.Time `json:"orderPlacementStart"`
	CancellationEnd      time.Time `json:"cancellationEnd"`
	AuctionEnd           time.Time `json:"auctionEnd"`
	SellAmount           string    `json:"sellAmount"`
	MinBuyAmount         string    `json:"minBuyAmount"`
	MinBidPerOrder       string    `json:"minBidPerOrder"`
	MinFundingThreshold  string    `json:"minFundingThreshold"`
	AtomicClosureAllowed bool      `json:"atomicClosureAllowed"`
}

func (req *createAuctionRequest) params() (domain.AuctionParams, error) {
	p := domain.AuctionParams{
		OrderPlacementStart:  req.OrderPlacementStart,
		CancellationEnd:      req.CancellationEnd,
		AuctionEnd:           req.AuctionEnd,
		AtomicClosureAllowed: req.AtomicClosureAllowed,
	}
	var err error
	if p.SellingAsset, err = parseAddress(req.SellingAsset, "sellingAsset"); err != nil {
		return p, err
	}
	if p.BiddingAsset, err = parseAddress(req.BiddingAsset, "biddingAsset"); err != nil {
		return p, err
	}
	if p.SellAmount, err = parseAmount(req.SellAmount, "sellAmount"); err != nil {
		return p, err
	}
	if p.MinBuyAmount, err = parseAmount(req.MinBuyAmount, "minBuyAmount"); err != nil {
		return p, err
	}
	if p.MinBidPerOrder, err = parseAmount(req.MinBidPerOrder, "minBidPerOrder"); err != nil {
		return p, err
	}
	if req.MinFundingThreshold == "" {
		req.MinFundingThreshold = "0"
	}
	if p.MinFundingThreshold, err = parseAmount(req.MinFundingThreshold, "minFundingThreshold"); err != nil {
		return p, err
	}
	return p, nil
}

// Create initiates an auction for the authenticated caller.
// POST /api/auctions
func (h *AuctionHandler) Create(w http.ResponseWriter, r *http.Request) {
	who, ok := caller(w, r)
	if !ok {
		return
	}
	var req createAuctionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	p, err := req.params()
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	view, err := h.svc.InitiateAuction(r.Context(), who, p)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// List returns auctions in id order.
// GET /api/auctions?limit=&offset=
func (h *AuctionHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Auctions(r.Context(), parseListOpts(r))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"auctions": list})
}

// Get returns one auction with its phase and clearing record.
// GET /api/auctions/{id}
func (h *AuctionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathUint(r, "id")
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	view, err := h.svc.Auction(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Cursor returns the clearing scan checkpoint.
// GET /api/auctions/{id}/cursor
func (h *AuctionHandler) Cursor(w http.ResponseWriter, r *http.Request) {
	id, err := pathUint(r, "id")
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	view, err := h.svc.Cursor(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Precalculate advances the clearing scan. Anyone may call it.
// POST /api/auctions/{id}/precalculate {"maxSteps": n}
func (h *AuctionHandler) Precalculate(w http.ResponseWriter, r *http.Request) {
	if _, ok := caller(w, r); !ok {
		return
	}
	id, err := pathUint(r, "id")
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	var req struct {
		MaxSteps uint64 `json:"maxSteps"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	view, err := h.svc.Precalculate(r.Context(), id, req.MaxSteps)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Settle finalizes an auction. Anyone may call it.
// POST /api/auctions/{id}/settle
func (h *AuctionHandler) Settle(w http.ResponseWriter, r *http.Request) {
	if _, ok := caller(w, r); !ok {
		return
	}
	id, err := pathUint(r, "id")
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	view, err := h.svc.Settle(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
