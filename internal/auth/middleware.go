package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/fabline/fabline/internal/platform/httpx"
	"github.com/fabline/fabline/internal/shared"
)

// Middleware resolves bearer tokens into principals.
type Middleware struct {
	Tokens *TokenStore
	Logger *slog.Logger
}

// Authenticate rejects requests without a valid token and stores the
// principal in the request context otherwise.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := m.Tokens.Lookup(r.Context(), BearerToken(r))
		if err != nil {
			if m.Logger != nil && !isUnauthenticated(err) {
				m.Logger.Error("token lookup", slog.Any("error", err))
			}
			httpx.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), p)))
	})
}

// BearerToken extracts the token from the Authorization header, or from the
// access_token query parameter for EventSource clients that cannot set headers.
func BearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("access_token")
}

func isUnauthenticated(err error) bool {
	return errors.Is(err, shared.ErrUnauthenticated)
}
