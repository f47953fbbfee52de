package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/batchauction/internal/domain"
	"github.com/alanyoungcy/batchauction/internal/service"
)

// AccountHandler serves fee, user, asset and journal endpoints.
type AccountHandler struct {
	svc    *service.AuctionService
	logger *slog.Logger
}

// NewAccountHandler creates an AccountHandler.
func NewAccountHandler(svc *service.AuctionService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{svc: svc, logger: logHandler(logger, "account")}
}

// Fees returns the current fee parameters.
// GET /api/fees
func (h *AccountHandler) Fees(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Fees(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// SetFees replaces the fee parameters. Owner only.
// PUT /api/fees {"numerator": n, "receiver": "0x..."}
func (h *AccountHandler) SetFees(w http.ResponseWriter, r *http.Request) {
	who, ok := caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Numerator uint64 `json:"numerator"`
		Receiver  string `json:"receiver"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	f := domain.FeeParameters{Numerator: req.Numerator}
	if req.Receiver != "" {
		addr, err := parseAddress(req.Receiver, "receiver")
		if err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}
		f.Receiver = addr
	}
	view, err := h.svc.SetFeeParameters(r.Context(), who, f)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	h.logger.InfoContext(r.Context(), "fee parameters updated",
		slog.Uint64("numerator", f.Numerator),
		slog.String("receiver", f.Receiver.Hex()),
	)
	writeJSON(w, http.StatusOK, view)
}

// UserByAddress resolves an address to its registry id.
// GET /api/users/{address}
func (h *AccountHandler) UserByAddress(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(r.PathValue("address"), "address")
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	view, err := h.svc.UserByAddress(r.Context(), addr)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// UserByID resolves a registry id to its address.
// GET /api/users/id/{id}
func (h *AccountHandler) UserByID(w http.ResponseWriter, r *http.Request) {
	id, err := pathUint(r, "id")
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	view, err := h.svc.UserByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Assets lists the registered assets.
// GET /api/assets
func (h *AccountHandler) Assets(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Assets(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"assets": list})
}

// Balance returns one holder's balance.
// GET /api/assets/{asset}/balances/{address}
func (h *AccountHandler) Balance(w http.ResponseWriter, r *http.Request) {
	asset, err := parseAddress(r.PathValue("asset"), "asset")
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	holder, err := parseAddress(r.PathValue("address"), "address")
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	view, err := h.svc.Balance(r.Context(), asset, holder)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Approve sets the caller's escrow allowance.
// POST /api/assets/{asset}/approve {"amount": "..."}
func (h *AccountHandler) Approve(w http.ResponseWriter, r *http.Request) {
	who, ok := caller(w, r)
	if !ok {
		return
	}
	asset, err := parseAddress(r.PathValue("asset"), "asset")
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	var req struct {
		Amount string `json:"amount"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	amount, err := parseAmount(req.Amount, "amount")
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if err := h.svc.Approve(r.Context(), who, asset, amount); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"amount": amount.Dec()})
}

// Mint credits a balance. Owner only.
// POST /api/assets/{asset}/mint {"to": "0x...", "amount": "..."}
func (h *AccountHandler) Mint(w http.ResponseWriter, r *http.Request) {
	who, ok := caller(w, r)
	if !ok {
		return
	}
	asset, err := parseAddress(r.PathValue("asset"), "asset")
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	var req struct {
		To     string `json:"to"`
		Amount string `json:"amount"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	to, err := parseAddress(req.To, "to")
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	amount, err := parseAmount(req.Amount, "amount")
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	view, err := h.svc.Mint(r.Context(), who, asset, to, amount)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Escrow lists the escrow account's balances.
// GET /api/escrow
func (h *AccountHandler) Escrow(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Escrow(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"balances": list})
}

// Events reads the notification journal.
// GET /api/events?auction_id=&limit=&offset=
func (h *AccountHandler) Events(w http.ResponseWriter, r *http.Request) {
	q := domain.EventQuery{ListOpts: parseListOpts(r)}
	if v := r.URL.Query().Get("auction_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "auction_id must be an unsigned integer")
			return
		}
		q.AuctionID = id
	}
	list, err := h.svc.Events(r.Context(), q)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": list})
}
