package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/thebenmerlin/material-management-api/internal/platform/httpx"
	"github.com/thebenmerlin/material-management-api/internal/shared"
)

// Middleware authenticates bearer tokens and gates routes by role.
type Middleware struct {
	Issuer  *TokenIssuer
	Service *Service
	Logger  *slog.Logger
}

// Authenticate verifies the bearer token, re-fetches the user from the
// directory and stores the resulting identity in the request context.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			httpx.Error(w, http.StatusUnauthorized, "access token required")
			return
		}
		userID, err := m.Issuer.Verify(token)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		user, err := m.Service.Resolve(r.Context(), userID)
		if err != nil {
			httpx.Error(w, http.StatusUnauthorized, "invalid or inactive user")
			return
		}
		ctx := shared.ContextWithIdentity(r.Context(), user.Identity())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects callers whose role is not in the allowed set. It runs
// after Authenticate and before any handler side effect.
func RequireRole(roles ...shared.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := shared.IdentityFromContext(r.Context())
			if !ok {
				httpx.Error(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if !id.HasRole(roles...) {
				httpx.Error(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
