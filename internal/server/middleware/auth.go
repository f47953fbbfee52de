package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// TokenParser validates a bearer token and returns the address it was
// issued to.
type TokenParser interface {
	Parse(raw string) (common.Address, error)
}

type callerKey struct{}

// WithCaller returns ctx carrying the authenticated address.
func WithCaller(ctx context.Context, addr common.Address) context.Context {
	return context.WithValue(ctx, callerKey{}, addr)
}

// CallerFrom returns the authenticated address, if any.
func CallerFrom(ctx context.Context) (common.Address, bool) {
	addr, ok := ctx.Value(callerKey{}).(common.Address)
	return addr, ok
}

// Auth attaches the caller address of a valid bearer token to the request
// context. Requests without a token pass through anonymously so read-only
// routes stay public; handlers that mutate state require a caller. A token
// that is present but invalid is rejected with 401.
func Auth(tokens TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			addr, err := tokens.Parse(token)
			if err != nil {
				writeUnauthorized(w, "invalid authentication token")
				return
			}
			if rw, ok := w.(*responseWriter); ok {
				rw.caller = addr.Hex()
			}
			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), addr)))
		})
	}
}

// extractToken reads "Authorization: Bearer <token>". Browsers cannot set
// headers on WebSocket upgrades, so the "token" query parameter is accepted
// as well.
func extractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

// writeUnauthorized sends a 401 response with a JSON error body.
func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
