// Package rbac gates routes by the caller's role.
package rbac

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/fabline/fabline/internal/auth"
	"github.com/fabline/fabline/internal/platform/httpx"
	"github.com/fabline/fabline/internal/shared"
	"github.com/fabline/fabline/internal/users"
)

// Middleware wires role checks for HTTP handlers. It expects
// auth.Middleware.Authenticate to have run.
type Middleware struct {
	Logger *slog.Logger
}

// RequireAny ensures the current user holds at least one of roles.
func (m Middleware) RequireAny(roles ...users.Role) func(http.Handler) http.Handler {
	allowed := make(map[users.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := auth.PrincipalFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, shared.ErrUnauthenticated)
				return
			}
			if len(allowed) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			if _, ok := allowed[p.Role]; ok {
				next.ServeHTTP(w, r)
				return
			}
			if m.Logger != nil {
				m.Logger.Warn("role denied",
					slog.String("user_id", p.UserID),
					slog.String("role", string(p.Role)),
					slog.String("path", r.URL.Path))
			}
			httpx.RespondError(w, fmt.Errorf("%w: role %s may not access this resource", shared.ErrForbidden, p.Role))
		})
	}
}

// RequireStaff allows admin, backoffice and subadmin callers.
func (m Middleware) RequireStaff() func(http.Handler) http.Handler {
	return m.RequireAny(users.StaffRoles...)
}

// RequireAdmin allows admin callers only.
func (m Middleware) RequireAdmin() func(http.Handler) http.Handler {
	return m.RequireAny(users.RoleAdmin)
}

// CanAccessCustomerResource reports whether p may see a resource owned by customerID.
func CanAccessCustomerResource(p auth.Principal, customerID string) bool {
	return p.IsStaff() || p.UserID == customerID
}
