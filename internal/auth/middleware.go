package auth

import (
	"net/http"
	"strings"

	"github.com/vantage-ops/vantage/internal/platform/httpx"
	"github.com/vantage-ops/vantage/internal/shared"
)

// SessionCookieName is the cookie carrying the session token for browser
// callers. Non-browser callers send the same token as a bearer credential.
const SessionCookieName = "vantage_session"

// Middleware decodes the session token on protected requests.
type Middleware struct {
	Issuer *TokenIssuer
}

// RequireSession verifies the session token and stores the decoded identity
// in the request context. A missing, malformed or expired token yields 401.
func (m Middleware) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromRequest(r)
		if token == "" {
			httpx.RespondError(w, shared.ErrTokenInvalid)
			return
		}
		identity, err := m.Issuer.Verify(token)
		if err != nil {
			httpx.RespondError(w, shared.ErrTokenInvalid)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithIdentity(r.Context(), identity)))
	})
}

func tokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}
