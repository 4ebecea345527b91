package authz

import (
	"log/slog"
	"net/http"

	"github.com/vantage-ops/vantage/internal/platform/httpx"
	"github.com/vantage-ops/vantage/internal/shared"
)

// Middleware gates HTTP routes behind capability checks.
type Middleware struct {
	Evaluator *Evaluator
	Logger    *slog.Logger
}

// Require binds a route to its required action. The binding happens once at
// wiring time against the endpoint's template, never against concrete
// request paths, so the check itself is a plain set-membership test. An
// unparsable identifier is a programmer error and panics at startup.
func (m Middleware) Require(requiredAction string) func(http.Handler) http.Handler {
	action, err := ParseAction(requiredAction)
	if err != nil {
		panic("authz: invalid required action " + requiredAction + ": " + err.Error())
	}
	normalized := action.String()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := shared.IdentityFromContext(r.Context())
			if identity == nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "session token is missing or invalid")
				return
			}
			allowed, err := m.Evaluator.Check(r.Context(), identity.RoleID, normalized)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("capability check", slog.String("action", normalized), slog.Any("error", err))
				}
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				return
			}
			if !allowed {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "role is not granted the required action")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
