package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/usergate/usergate/internal/shared"
)

// Middleware resolves a bearer token into the request's caller. A missing
// or invalid token leaves the request anonymous; the action gates decide.
func Middleware(tokens *Tokens, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearer(r)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := tokens.Parse(raw)
			if err != nil {
				if logger != nil {
					logger.DebugContext(r.Context(), "bearer token rejected", slog.Any("error", err))
				}
				next.ServeHTTP(w, r)
				return
			}
			ctx := shared.ContextWithCaller(r.Context(), claims.Caller())
			ctx = shared.ContextWithCredential(ctx, raw)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearer(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
