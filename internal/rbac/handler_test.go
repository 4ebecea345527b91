package rbac

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantage-ops/vantage/internal/authz"
	"github.com/vantage-ops/vantage/internal/shared"
	_ "github.com/vantage-ops/vantage/testing"
)

const testRoleHeader = "X-Test-Role"

// testSessions stands in for token verification: it reads the role id from a
// header and injects the identity, or leaves it absent.
func testSessions(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(testRoleHeader)
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		roleID, _ := strconv.ParseInt(raw, 10, 64)
		identity := &shared.SessionIdentity{EmployeeID: 1, Username: "admin", RoleID: roleID}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithIdentity(r.Context(), identity)))
	})
}

func newTestRouter(t *testing.T, repo *mockRepository) http.Handler {
	t.Helper()
	svc := NewService(repo, &countingInvalidator{}, nil, nil)
	evaluator := authz.NewEvaluator(authz.NewGrantCache(), repo, nil)
	handler := NewHandler(nil, svc, testSessions, authz.Middleware{Evaluator: evaluator})

	r := chi.NewRouter()
	r.Route("/auth", handler.MountRoutes)
	return r
}

// seedAdminRole creates a role granted every route action the handler mounts.
func seedAdminRole(t *testing.T, repo *mockRepository) Role {
	t.Helper()
	admin := repo.addRole(Role{Name: "Administrator", IsSystemRole: true, IsActive: true})
	_, err := repo.ReplaceGrant(context.Background(), admin.ID, 1, []string{
		"GET:/auth/roles", "POST:/auth/roles", "PUT:/auth/roles/:id",
		"DELETE:/auth/roles/:id", "POST:/auth/roles/:id/duplicate",
		"GET:/auth/permissions", "GET:/auth/matrix", "POST:/auth/permission",
	})
	require.NoError(t, err)
	return admin
}

func doJSON(t *testing.T, router http.Handler, method, path, body string, roleID int64) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if roleID > 0 {
		req.Header.Set(testRoleHeader, strconv.FormatInt(roleID, 10))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestListRolesEndpoint(t *testing.T) {
	repo := newMockRepository()
	admin := seedAdminRole(t, repo)
	repo.addRole(Role{Name: "Dispatcher", IsActive: true})
	router := newTestRouter(t, repo)

	rec := doJSON(t, router, http.MethodGet, "/auth/roles", "", admin.ID)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Roles []struct {
			Name string `json:"name"`
		} `json:"roles"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Roles, 2)
}

func TestRoutesRequireIdentity(t *testing.T) {
	repo := newMockRepository()
	seedAdminRole(t, repo)
	router := newTestRouter(t, repo)

	rec := doJSON(t, router, http.MethodGet, "/auth/roles", "", 0)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRoutesForbidUngrantedRole(t *testing.T) {
	repo := newMockRepository()
	seedAdminRole(t, repo)
	limited := repo.addRole(Role{Name: "Sales Agent", IsActive: true})
	router := newTestRouter(t, repo)

	rec := doJSON(t, router, http.MethodGet, "/auth/roles", "", limited.ID)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreateRoleEndpoint(t *testing.T) {
	repo := newMockRepository()
	admin := seedAdminRole(t, repo)
	router := newTestRouter(t, repo)

	rec := doJSON(t, router, http.MethodPost, "/auth/roles",
		`{"name":"Dispatcher","description":"Dispatch board","landingPage":"/dispatch"}`, admin.ID)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool `json:"success"`
		Role    struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
		} `json:"role"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "Dispatcher", body.Role.Name)

	_, err := repo.GetRoleByName(context.Background(), "Dispatcher")
	assert.NoError(t, err)
}

func TestCreateRoleEndpointDuplicateName(t *testing.T) {
	repo := newMockRepository()
	admin := seedAdminRole(t, repo)
	repo.addRole(Role{Name: "Dispatcher", IsActive: true})
	router := newTestRouter(t, repo)

	rec := doJSON(t, router, http.MethodPost, "/auth/roles", `{"name":"Dispatcher"}`, admin.ID)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateRoleEndpointMissingName(t *testing.T) {
	repo := newMockRepository()
	admin := seedAdminRole(t, repo)
	router := newTestRouter(t, repo)

	rec := doJSON(t, router, http.MethodPost, "/auth/roles", `{"description":"no name"}`, admin.ID)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateRoleEndpoint(t *testing.T) {
	repo := newMockRepository()
	admin := seedAdminRole(t, repo)
	target := repo.addRole(Role{Name: "Dispatcher", IsActive: true})
	router := newTestRouter(t, repo)

	rec := doJSON(t, router, http.MethodPut, "/auth/roles/"+strconv.FormatInt(target.ID, 10),
		`{"description":"updated"}`, admin.ID)
	require.Equal(t, http.StatusOK, rec.Code)

	role, err := repo.GetRole(context.Background(), target.ID)
	require.NoError(t, err)
	assert.Equal(t, "updated", role.Description)
}

func TestUpdateRoleEndpointBadID(t *testing.T) {
	repo := newMockRepository()
	admin := seedAdminRole(t, repo)
	router := newTestRouter(t, repo)

	rec := doJSON(t, router, http.MethodPut, "/auth/roles/not-a-number", `{}`, admin.ID)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteRoleEndpoint(t *testing.T) {
	repo := newMockRepository()
	admin := seedAdminRole(t, repo)
	target := repo.addRole(Role{Name: "Dispatcher", IsActive: true})
	router := newTestRouter(t, repo)

	rec := doJSON(t, router, http.MethodDelete, "/auth/roles/"+strconv.FormatInt(target.ID, 10), "", admin.ID)
	require.Equal(t, http.StatusOK, rec.Code)

	_, err := repo.GetRole(context.Background(), target.ID)
	assert.ErrorIs(t, err, shared.ErrRoleNotFound)
}

func TestDeleteSystemRoleEndpoint(t *testing.T) {
	repo := newMockRepository()
	admin := seedAdminRole(t, repo)
	router := newTestRouter(t, repo)

	rec := doJSON(t, router, http.MethodDelete, "/auth/roles/"+strconv.FormatInt(admin.ID, 10), "", admin.ID)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDuplicateRoleEndpoint(t *testing.T) {
	repo := newMockRepository()
	admin := seedAdminRole(t, repo)
	source := repo.addRole(Role{Name: "Dispatcher", IsActive: true})
	_, err := repo.ReplaceGrant(context.Background(), source.ID, 2, []string{"view", "modify"})
	require.NoError(t, err)
	router := newTestRouter(t, repo)

	rec := doJSON(t, router, http.MethodPost, "/auth/roles/"+strconv.FormatInt(source.ID, 10)+"/duplicate",
		`{"newRoleName":"Night Dispatcher"}`, admin.ID)
	require.Equal(t, http.StatusCreated, rec.Code)

	var body struct {
		Success           bool `json:"success"`
		CopiedPermissions int  `json:"copiedPermissions"`
		Role              struct {
			Name string `json:"name"`
		} `json:"role"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, 1, body.CopiedPermissions)
	assert.Equal(t, "Night Dispatcher", body.Role.Name)
}

func TestReplacePermissionEndpoint(t *testing.T) {
	repo := newMockRepository()
	admin := seedAdminRole(t, repo)
	target := repo.addRole(Role{Name: "Dispatcher", IsActive: true})
	router := newTestRouter(t, repo)

	rec := doJSON(t, router, http.MethodPost, "/auth/permission",
		`{"roleId":`+strconv.FormatInt(target.ID, 10)+`,"permissionId":2,"grantedActions":["view","get:/auth/matrix"]}`, admin.ID)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Permission struct {
			GrantedActions []string `json:"grantedActions"`
		} `json:"permission"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"view", "GET:/auth/matrix"}, body.Permission.GrantedActions)
}

func TestReplacePermissionEndpointInvalidAction(t *testing.T) {
	repo := newMockRepository()
	admin := seedAdminRole(t, repo)
	target := repo.addRole(Role{Name: "Dispatcher", IsActive: true})
	router := newTestRouter(t, repo)

	rec := doJSON(t, router, http.MethodPost, "/auth/permission",
		`{"roleId":`+strconv.FormatInt(target.ID, 10)+`,"permissionId":2,"grantedActions":["bogus"]}`, admin.ID)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
