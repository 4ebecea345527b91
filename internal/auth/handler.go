package auth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/vantage-ops/vantage/internal/platform/httpx"
	"github.com/vantage-ops/vantage/internal/rbac"
	"github.com/vantage-ops/vantage/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger       *slog.Logger
	service      *Service
	issuer       *TokenIssuer
	sessions     Middleware
	secureCookie bool
	validator    *validator.Validate
}

// NewHandler constructs a Handler instance. secureCookie should be true in
// production so the session cookie is only sent over TLS.
func NewHandler(logger *slog.Logger, service *Service, issuer *TokenIssuer, secureCookie bool) *Handler {
	return &Handler{
		logger:       logger,
		service:      service,
		issuer:       issuer,
		sessions:     Middleware{Issuer: issuer},
		secureCookie: secureCookie,
		validator:    validator.New(),
	}
}

// SessionMiddleware exposes the token-verification middleware for other
// route groups.
func (h *Handler) SessionMiddleware() func(http.Handler) http.Handler {
	return h.sessions.RequireSession
}

// MountRoutes registers auth routes on the provided router. The router is
// expected to be mounted under /auth.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Group(func(r chi.Router) {
		r.Use(h.sessions.RequireSession)
		r.Get("/me", h.handleMe)
	})
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type permissionPayload struct {
	PermissionGroupName string   `json:"permissionGroupName"`
	GrantedActions      []string `json:"grantedActions"`
}

type userPayload struct {
	ID          int64               `json:"id"`
	FirstName   string              `json:"firstName"`
	LastName    string              `json:"lastName"`
	Username    string              `json:"username"`
	RoleName    string              `json:"roleName"`
	LandingPage string              `json:"landingPage"`
	Permissions []permissionPayload `json:"permissions"`
}

func toUserPayload(employee *Employee, role rbac.Role, permissions []rbac.RoleGrantSummary) userPayload {
	payload := userPayload{
		ID:          employee.ID,
		FirstName:   employee.FirstName,
		LastName:    employee.LastName,
		Username:    employee.Username,
		RoleName:    role.Name,
		LandingPage: role.LandingPage,
		Permissions: make([]permissionPayload, 0, len(permissions)),
	}
	for _, entry := range permissions {
		payload.Permissions = append(payload.Permissions, permissionPayload{
			PermissionGroupName: entry.PermissionGroupName,
			GrantedActions:      entry.Actions,
		})
	}
	return payload
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrMissingCredentials)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, shared.ErrMissingCredentials)
		return
	}

	employee, err := h.service.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		h.respondError(w, "login", err)
		return
	}
	profile, err := h.service.ResolveProfile(r.Context(), employee.ID)
	if err != nil {
		h.respondError(w, "resolve profile", err)
		return
	}
	token, err := h.issuer.Issue(employee, profile.Role)
	if err != nil {
		h.respondError(w, "issue token", err)
		return
	}

	h.setSessionCookie(w, token, time.Now().Add(h.issuer.TTL()))
	httpx.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"token":   token,
		"user":    toUserPayload(profile.Employee, profile.Role, profile.Permissions),
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	// Logout is client-side discard of the credential; tokens already
	// issued stay valid until expiry.
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	if identity == nil {
		httpx.RespondError(w, shared.ErrTokenInvalid)
		return
	}
	profile, err := h.service.ResolveProfile(r.Context(), identity.EmployeeID)
	if err != nil {
		h.respondError(w, "resolve profile", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    toUserPayload(profile.Employee, profile.Role, profile.Permissions),
	})
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	if h.logger != nil {
		h.logger.Warn(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
