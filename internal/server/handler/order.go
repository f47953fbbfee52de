package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/batchauction/internal/domain"
	"github.com/alanyoungcy/batchauction/internal/service"
)

// OrderHandler serves order placement, cancellation and claims.
type OrderHandler struct {
	svc    *service.AuctionService
	logger *slog.Logger
}

// NewOrderHandler creates an OrderHandler.
func NewOrderHandler(svc *service.AuctionService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{svc: svc, logger: logHandler(logger, "order")}
}

type orderIDsRequest struct {
	OrderIDs []uint64 `json:"orderIds"`
}

// Place escrows a batch of orders.
// POST /api/auctions/{id}/orders {"buyAmounts": [...], "sellAmounts": [...]}
func (h *OrderHandler) Place(w http.ResponseWriter, r *http.Request) {
	who, ok := caller(w, r)
	if !ok {
		return
	}
	id, err := pathUint(r, "id")
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	var req struct {
		BuyAmounts  []string `json:"buyAmounts"`
		SellAmounts []string `json:"sellAmounts"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	buys, err := parseAmounts(req.BuyAmounts, "buyAmounts")
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	sells, err := parseAmounts(req.SellAmounts, "sellAmounts")
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	ids, err := h.svc.PlaceOrders(r.Context(), id, who, buys, sells)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"orderIds": ids})
}

// Cancel refunds the caller's orders.
// POST /api/auctions/{id}/orders/cancel {"orderIds": [...]}
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	who, ok := caller(w, r)
	if !ok {
		return
	}
	id, req, ok := h.orderIDs(w, r)
	if !ok {
		return
	}
	if err := h.svc.CancelOrders(r.Context(), id, who, req.OrderIDs); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cancelled": req.OrderIDs})
}

// Claim pays out the caller's orders of a settled auction.
// POST /api/auctions/{id}/claims {"orderIds": [...]}
func (h *OrderHandler) Claim(w http.ResponseWriter, r *http.Request) {
	who, ok := caller(w, r)
	if !ok {
		return
	}
	id, req, ok := h.orderIDs(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Claim(r.Context(), id, who, req.OrderIDs)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *OrderHandler) orderIDs(w http.ResponseWriter, r *http.Request) (uint64, orderIDsRequest, bool) {
	var req orderIDsRequest
	id, err := pathUint(r, "id")
	if err == nil {
		err = decodeJSON(w, r, &req)
	}
	if err == nil && len(req.OrderIDs) == 0 {
		err = fmt.Errorf("orderIds must not be empty: %w", domain.ErrInvalidArgument)
	}
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return 0, req, false
	}
	return id, req, true
}

// List returns an auction's orders in id order.
// GET /api/auctions/{id}/orders?limit=&offset=
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	id, err := pathUint(r, "id")
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	list, err := h.svc.Orders(r.Context(), id, parseListOpts(r))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": list})
}

// Get returns one order.
// GET /api/auctions/{id}/orders/{orderId}
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathUint(r, "id")
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	orderID, err := pathUint(r, "orderId")
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	view, err := h.svc.Order(r.Context(), id, orderID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
