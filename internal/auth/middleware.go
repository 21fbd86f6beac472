package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/munsociety/munsociety/internal/platform/httpx"
	"github.com/munsociety/munsociety/internal/shared"
)

// Middleware gates routes behind a resolved session. A guarded handler never
// runs before the token has been validated, so there is no window where a
// protected response can leak to an undecided caller.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// RequireUser rejects requests without a valid bearer token and injects the
// session user into the request context.
func (m Middleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := BearerToken(r)
		user, err := m.Service.ValidateToken(r.Context(), token)
		if err != nil {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithUser(r.Context(), user)))
	})
}

// RequireAdmin is RequireUser plus a role check. The denial detail names the
// missing role so clients can surface it directly.
func (m Middleware) RequireAdmin(next http.Handler) http.Handler {
	return m.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := shared.UserFromContext(r.Context())
		if user == nil || !user.Role.IsAdmin() {
			if m.Logger != nil && user != nil {
				m.Logger.Warn("admin access denied",
					slog.String("email", user.Email),
					slog.String("role", user.Role.String()),
					slog.String("path", r.URL.Path))
			}
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	}))
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
