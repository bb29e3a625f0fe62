package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// contextKey is unexported so no other package can read or shadow our
// context values.
type contextKey string

const gatewayKey contextKey = "gateway"

var errNoBearer = errors.New("auth: missing bearer token")

// RequireGateway rejects requests without a valid gateway token with 401 and
// stores the gateway name in the context of the ones it lets through.
func RequireGateway(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gateway, err := extractGateway(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("WWW-Authenticate", `Bearer realm="sharedlist"`)
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","message":"valid gateway token required"}`))
				return
			}

			ctx := context.WithValue(r.Context(), gatewayKey, gateway)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GatewayFromContext returns the authenticated gateway name, if any. It is
// ("", false) when gateway authentication is disabled.
func GatewayFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(gatewayKey).(string)
	return name, ok && name != ""
}

func extractGateway(r *http.Request, tokens *TokenService) (string, error) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", errNoBearer
	}
	return tokens.Validate(strings.TrimSpace(token))
}
