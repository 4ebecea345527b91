package rbac

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/vantage-ops/vantage/internal/authz"
	"github.com/vantage-ops/vantage/internal/platform/httpx"
)

// Handler wires the role administration HTTP surface. Every route is
// statically bound to its own required action at mount time.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	sessions  func(http.Handler) http.Handler
	authz     authz.Middleware
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions func(http.Handler) http.Handler, authzMW authz.Middleware) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		sessions:  sessions,
		authz:     authzMW,
		validator: validator.New(),
	}
}

// MountRoutes registers role administration routes on the provided router.
// The router is expected to be mounted under /auth.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.sessions)
		r.With(h.authz.Require("GET:/auth/roles")).Get("/roles", h.listRoles)
		r.With(h.authz.Require("GET:/auth/permissions")).Get("/permissions", h.listPermissionGroups)
		r.With(h.authz.Require("GET:/auth/matrix")).Get("/matrix", h.matrix)
		r.With(h.authz.Require("POST:/auth/permission")).Post("/permission", h.replacePermission)
		r.With(h.authz.Require("POST:/auth/roles")).Post("/roles", h.createRole)
		r.With(h.authz.Require("PUT:/auth/roles/:id")).Put("/roles/{id}", h.updateRole)
		r.With(h.authz.Require("DELETE:/auth/roles/:id")).Delete("/roles/{id}", h.deleteRole)
		r.With(h.authz.Require("POST:/auth/roles/:id/duplicate")).Post("/roles/{id}/duplicate", h.duplicateRole)
	})
}

type rolePayload struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	LandingPage      string `json:"landingPage"`
	IsSalesRole      bool   `json:"isSalesRole"`
	IsSupervisorRole bool   `json:"isSupervisorRole"`
	IsActive         bool   `json:"isActive"`
	IsSystemRole     bool   `json:"isSystemRole"`
	DepartmentID     *int64 `json:"departmentId,omitempty"`
}

func toRolePayload(role Role) rolePayload {
	return rolePayload{
		ID:               role.ID,
		Name:             role.Name,
		Description:      role.Description,
		LandingPage:      role.LandingPage,
		IsSalesRole:      role.IsSalesRole,
		IsSupervisorRole: role.IsSupervisorRole,
		IsActive:         role.IsActive,
		IsSystemRole:     role.IsSystemRole,
		DepartmentID:     role.DepartmentID,
	}
}

type permissionGroupPayload struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

type grantPayload struct {
	RoleID            int64    `json:"roleId"`
	PermissionGroupID int64    `json:"permissionId"`
	GrantedActions    []string `json:"grantedActions"`
}

type matrixEntryPayload struct {
	RoleID              int64    `json:"roleId"`
	RoleName            string   `json:"roleName"`
	PermissionGroupID   int64    `json:"permissionId"`
	PermissionGroupName string   `json:"permissionGroupName"`
	GrantedActions      []string `json:"grantedActions"`
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.respondError(w, r, "list roles", err)
		return
	}
	payload := make([]rolePayload, 0, len(roles))
	for _, role := range roles {
		payload = append(payload, toRolePayload(role))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": payload})
}

func (h *Handler) listPermissionGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.service.ListPermissionGroups(r.Context())
	if err != nil {
		h.respondError(w, r, "list permission groups", err)
		return
	}
	payload := make([]permissionGroupPayload, 0, len(groups))
	for _, group := range groups {
		payload = append(payload, permissionGroupPayload{ID: group.ID, Name: group.Name, Category: group.Category})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": payload})
}

func (h *Handler) matrix(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.Matrix(r.Context())
	if err != nil {
		h.respondError(w, r, "grant matrix", err)
		return
	}
	payload := make([]matrixEntryPayload, 0, len(entries))
	for _, entry := range entries {
		payload = append(payload, matrixEntryPayload{
			RoleID:              entry.RoleID,
			RoleName:            entry.RoleName,
			PermissionGroupID:   entry.PermissionGroupID,
			PermissionGroupName: entry.PermissionGroupName,
			GrantedActions:      entry.Actions,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"matrix": payload})
}

type createRoleRequest struct {
	Name             string `json:"name" validate:"required"`
	Description      string `json:"description"`
	LandingPage      string `json:"landingPage"`
	IsSalesRole      bool   `json:"isSalesRole"`
	IsSupervisorRole bool   `json:"isSupervisorRole"`
	DepartmentID     *int64 `json:"departmentId"`
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "name is required")
		return
	}
	role, err := h.service.CreateRole(r.Context(), CreateRoleInput{
		Name:             req.Name,
		Description:      req.Description,
		LandingPage:      req.LandingPage,
		IsSalesRole:      req.IsSalesRole,
		IsSupervisorRole: req.IsSupervisorRole,
		DepartmentID:     req.DepartmentID,
	})
	if err != nil {
		h.respondError(w, r, "create role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "role": toRolePayload(role)})
}

type updateRoleRequest struct {
	Name             *string `json:"name"`
	Description      *string `json:"description"`
	LandingPage      *string `json:"landingPage"`
	IsSalesRole      *bool   `json:"isSalesRole"`
	IsSupervisorRole *bool   `json:"isSupervisorRole"`
	IsActive         *bool   `json:"isActive"`
	DepartmentID     *int64  `json:"departmentId"`
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	var req updateRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	role, err := h.service.UpdateRole(r.Context(), id, RoleUpdate{
		Name:             req.Name,
		Description:      req.Description,
		LandingPage:      req.LandingPage,
		IsSalesRole:      req.IsSalesRole,
		IsSupervisorRole: req.IsSupervisorRole,
		IsActive:         req.IsActive,
		DepartmentID:     req.DepartmentID,
	})
	if err != nil {
		h.respondError(w, r, "update role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "role": toRolePayload(role)})
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteRole(r.Context(), id); err != nil {
		h.respondError(w, r, "delete role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true})
}

type duplicateRoleRequest struct {
	NewRoleName string `json:"newRoleName" validate:"required"`
	Description string `json:"description"`
}

func (h *Handler) duplicateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	var req duplicateRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "newRoleName is required")
		return
	}
	role, copied, err := h.service.DuplicateRole(r.Context(), id, req.NewRoleName, req.Description)
	if err != nil {
		h.respondError(w, r, "duplicate role", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"success":           true,
		"role":              toRolePayload(role),
		"copiedPermissions": copied,
	})
}

type replacePermissionRequest struct {
	RoleID         int64    `json:"roleId" validate:"required"`
	PermissionID   int64    `json:"permissionId" validate:"required"`
	GrantedActions []string `json:"grantedActions"`
}

func (h *Handler) replacePermission(w http.ResponseWriter, r *http.Request) {
	var req replacePermissionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "roleId and permissionId are required")
		return
	}
	grant, err := h.service.ReplacePermission(r.Context(), req.RoleID, req.PermissionID, req.GrantedActions)
	if err != nil {
		h.respondError(w, r, "replace permission", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"permission": grantPayload{
			RoleID:            grant.RoleID,
			PermissionGroupID: grant.PermissionGroupID,
			GrantedActions:    grant.Actions,
		},
	})
}

func (h *Handler) roleID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid role id")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if h.logger != nil {
		h.logger.Error(op, slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
