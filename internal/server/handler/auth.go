package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/batchauction/internal/auth"
)

// AuthHandler exchanges signed challenges for session tokens.
type AuthHandler struct {
	challenges *auth.Challenges
	tokens     *auth.Tokens
	logger     *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(challenges *auth.Challenges, tokens *auth.Tokens, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{challenges: challenges, tokens: tokens, logger: logHandler(logger, "auth")}
}

// Challenge issues a one-time message for the address to sign.
// POST /api/auth/challenge {"address": "0x..."}
func (h *AuthHandler) Challenge(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address string `json:"address"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	addr, err := parseAddress(req.Address, "address")
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	ch := h.challenges.Issue(addr)
	writeJSON(w, http.StatusOK, map[string]any{
		"address":   ch.Address.Hex(),
		"nonce":     ch.Nonce,
		"message":   ch.Message,
		"expiresAt": ch.ExpiresAt,
	})
}

// Login verifies the signed challenge and returns a JWT.
// POST /api/auth/login {"address": "0x...", "signature": "0x..."}
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address   string `json:"address"`
		Signature string `json:"signature"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	addr, err := parseAddress(req.Address, "address")
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if err := h.challenges.Verify(addr, req.Signature); err != nil {
		h.logger.InfoContext(r.Context(), "login rejected",
			slog.String("address", addr.Hex()),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusUnauthorized, "invalid or expired challenge signature")
		return
	}
	token, exp, err := h.tokens.Issue(addr)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":     token,
		"address":   addr.Hex(),
		"expiresAt": exp.UTC().Format(time.RFC3339),
	})
}
