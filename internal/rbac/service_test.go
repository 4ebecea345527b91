package rbac

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantage-ops/vantage/internal/shared"
)

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type mockRepository struct {
	roles      map[int64]Role
	rolesByName map[string]int64
	nextRoleID int64

	groups map[int64]PermissionGroup

	// grants[roleID][permissionGroupID] = actions
	grants map[int64]map[int64][]string

	// Error injection
	createRoleError   error
	replaceGrantError error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		roles:       make(map[int64]Role),
		rolesByName: make(map[string]int64),
		nextRoleID:  1,
		groups:      make(map[int64]PermissionGroup),
		grants:      make(map[int64]map[int64][]string),
	}
}

func (m *mockRepository) addRole(role Role) Role {
	if role.ID == 0 {
		role.ID = m.nextRoleID
		m.nextRoleID++
	} else if role.ID >= m.nextRoleID {
		m.nextRoleID = role.ID + 1
	}
	m.roles[role.ID] = role
	m.rolesByName[role.Name] = role.ID
	return role
}

func (m *mockRepository) ListRoles(ctx context.Context) ([]Role, error) {
	out := make([]Role, 0, len(m.roles))
	for _, r := range m.roles {
		out = append(out, r)
	}
	return out, nil
}

func (m *mockRepository) GetRole(ctx context.Context, id int64) (Role, error) {
	role, ok := m.roles[id]
	if !ok {
		return Role{}, shared.ErrRoleNotFound
	}
	return role, nil
}

func (m *mockRepository) GetRoleByName(ctx context.Context, name string) (Role, error) {
	id, ok := m.rolesByName[name]
	if !ok {
		return Role{}, shared.ErrRoleNotFound
	}
	return m.roles[id], nil
}

func (m *mockRepository) CreateRole(ctx context.Context, input CreateRoleInput) (Role, error) {
	if m.createRoleError != nil {
		return Role{}, m.createRoleError
	}
	return m.addRole(Role{
		Name:             input.Name,
		Description:      input.Description,
		LandingPage:      input.LandingPage,
		IsSalesRole:      input.IsSalesRole,
		IsSupervisorRole: input.IsSupervisorRole,
		DepartmentID:     input.DepartmentID,
		IsActive:         true,
	}), nil
}

func (m *mockRepository) UpdateRole(ctx context.Context, role Role) (Role, error) {
	old, ok := m.roles[role.ID]
	if !ok {
		return Role{}, shared.ErrRoleNotFound
	}
	delete(m.rolesByName, old.Name)
	m.roles[role.ID] = role
	m.rolesByName[role.Name] = role.ID
	return role, nil
}

func (m *mockRepository) DeleteRole(ctx context.Context, id int64) error {
	role, ok := m.roles[id]
	if !ok {
		return shared.ErrRoleNotFound
	}
	delete(m.rolesByName, role.Name)
	delete(m.roles, id)
	return nil
}

func (m *mockRepository) ListActiveRoleIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	for id, role := range m.roles {
		if role.IsActive {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *mockRepository) ListPermissionGroups(ctx context.Context) ([]PermissionGroup, error) {
	out := make([]PermissionGroup, 0, len(m.groups))
	for _, g := range m.groups {
		out = append(out, g)
	}
	return out, nil
}

func (m *mockRepository) GetGrants(ctx context.Context, roleID int64) ([]Grant, error) {
	var out []Grant
	for groupID, actions := range m.grants[roleID] {
		out = append(out, Grant{RoleID: roleID, PermissionGroupID: groupID, Actions: actions})
	}
	return out, nil
}

func (m *mockRepository) GetGrantsForEmployee(ctx context.Context, employeeID int64) ([]RoleGrantSummary, error) {
	return nil, nil
}

func (m *mockRepository) ReplaceGrant(ctx context.Context, roleID, permissionGroupID int64, actions []string) (Grant, error) {
	if m.replaceGrantError != nil {
		return Grant{}, m.replaceGrantError
	}
	if _, ok := m.grants[roleID]; !ok {
		m.grants[roleID] = make(map[int64][]string)
	}
	m.grants[roleID][permissionGroupID] = actions
	return Grant{RoleID: roleID, PermissionGroupID: permissionGroupID, Actions: actions}, nil
}

func (m *mockRepository) DeleteGrantsForRole(ctx context.Context, roleID int64) error {
	delete(m.grants, roleID)
	return nil
}

func (m *mockRepository) Matrix(ctx context.Context) ([]MatrixEntry, error) {
	return nil, nil
}

func (m *mockRepository) ResolveActions(ctx context.Context, roleID int64) (map[string]struct{}, error) {
	set := make(map[string]struct{})
	for _, actions := range m.grants[roleID] {
		for _, a := range actions {
			set[a] = struct{}{}
		}
	}
	return set, nil
}

var _ Repository = (*mockRepository)(nil)

type countingInvalidator struct {
	calls int
}

func (c *countingInvalidator) Invalidate(ctx context.Context) {
	c.calls++
}

type countingEnqueuer struct {
	calls int
	err   error
}

func (c *countingEnqueuer) EnqueueGrantsIntegrity(ctx context.Context) error {
	c.calls++
	return c.err
}

func newTestService(repo *mockRepository) (*Service, *countingInvalidator, *countingEnqueuer) {
	inv := &countingInvalidator{}
	enq := &countingEnqueuer{}
	return NewService(repo, inv, enq, nil), inv, enq
}

// ============================================================================
// TESTS
// ============================================================================

func TestCreateRole(t *testing.T) {
	repo := newMockRepository()
	svc, inv, _ := newTestService(repo)

	role, err := svc.CreateRole(context.Background(), CreateRoleInput{
		Name:        "Dispatcher",
		Description: "Dispatch board access",
		LandingPage: "/dispatch",
	})
	require.NoError(t, err)
	assert.Equal(t, "Dispatcher", role.Name)
	assert.True(t, role.IsActive)
	assert.Equal(t, 1, inv.calls)
}

func TestCreateRoleDuplicateName(t *testing.T) {
	repo := newMockRepository()
	repo.addRole(Role{Name: "Dispatcher", IsActive: true})
	svc, inv, _ := newTestService(repo)

	_, err := svc.CreateRole(context.Background(), CreateRoleInput{Name: "Dispatcher"})
	assert.ErrorIs(t, err, shared.ErrDuplicateRoleName)
	assert.Equal(t, 0, inv.calls)
}

func TestCreateRoleBlankName(t *testing.T) {
	repo := newMockRepository()
	svc, _, _ := newTestService(repo)

	_, err := svc.CreateRole(context.Background(), CreateRoleInput{Name: "   "})
	require.Error(t, err)
}

func TestUpdateRolePartial(t *testing.T) {
	repo := newMockRepository()
	seeded := repo.addRole(Role{Name: "Dispatcher", Description: "old", IsActive: true})
	svc, inv, _ := newTestService(repo)

	desc := "new description"
	updated, err := svc.UpdateRole(context.Background(), seeded.ID, RoleUpdate{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "Dispatcher", updated.Name)
	assert.Equal(t, "new description", updated.Description)
	assert.Equal(t, 1, inv.calls)
}

func TestUpdateRoleRenameToTakenName(t *testing.T) {
	repo := newMockRepository()
	repo.addRole(Role{Name: "Dispatcher", IsActive: true})
	target := repo.addRole(Role{Name: "Billing Clerk", IsActive: true})
	svc, inv, _ := newTestService(repo)

	name := "Dispatcher"
	_, err := svc.UpdateRole(context.Background(), target.ID, RoleUpdate{Name: &name})
	assert.ErrorIs(t, err, shared.ErrDuplicateRoleName)
	assert.Equal(t, 0, inv.calls)
}

func TestUpdateRoleKeepingOwnNameSkipsUniquenessCheck(t *testing.T) {
	repo := newMockRepository()
	seeded := repo.addRole(Role{Name: "Dispatcher", IsActive: true})
	svc, _, _ := newTestService(repo)

	name := "Dispatcher"
	updated, err := svc.UpdateRole(context.Background(), seeded.ID, RoleUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Dispatcher", updated.Name)
}

func TestRenameKeepsGrantsKeyedByRoleID(t *testing.T) {
	repo := newMockRepository()
	seeded := repo.addRole(Role{Name: "Dispatcher", IsActive: true})
	_, err := repo.ReplaceGrant(context.Background(), seeded.ID, 1, []string{"view"})
	require.NoError(t, err)
	svc, inv, _ := newTestService(repo)

	name := "Dispatch Desk"
	_, err = svc.UpdateRole(context.Background(), seeded.ID, RoleUpdate{Name: &name})
	require.NoError(t, err)

	// The grant relation is keyed by role id, so the rename leaves the
	// resolved action set untouched; the cache is still cleared.
	set, err := repo.ResolveActions(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Contains(t, set, "view")
	assert.Equal(t, 1, inv.calls)
}

func TestUpdateRoleNotFound(t *testing.T) {
	repo := newMockRepository()
	svc, _, _ := newTestService(repo)

	_, err := svc.UpdateRole(context.Background(), 99, RoleUpdate{})
	assert.ErrorIs(t, err, shared.ErrRoleNotFound)
}

func TestDeleteRole(t *testing.T) {
	repo := newMockRepository()
	seeded := repo.addRole(Role{Name: "Dispatcher", IsActive: true})
	_, err := repo.ReplaceGrant(context.Background(), seeded.ID, 1, []string{"view"})
	require.NoError(t, err)
	svc, inv, enq := newTestService(repo)

	require.NoError(t, svc.DeleteRole(context.Background(), seeded.ID))

	_, err = repo.GetRole(context.Background(), seeded.ID)
	assert.ErrorIs(t, err, shared.ErrRoleNotFound)
	assert.Empty(t, repo.grants[seeded.ID])
	assert.Equal(t, 1, inv.calls)
	assert.Equal(t, 1, enq.calls)
}

func TestDeleteSystemRoleProtected(t *testing.T) {
	repo := newMockRepository()
	seeded := repo.addRole(Role{Name: "Administrator", IsSystemRole: true, IsActive: true})
	_, err := repo.ReplaceGrant(context.Background(), seeded.ID, 1, []string{"view"})
	require.NoError(t, err)
	svc, inv, _ := newTestService(repo)

	err = svc.DeleteRole(context.Background(), seeded.ID)
	assert.ErrorIs(t, err, shared.ErrSystemRoleProtected)

	// Nothing was touched.
	_, err = repo.GetRole(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, repo.grants[seeded.ID])
	assert.Equal(t, 0, inv.calls)
}

func TestDeleteRoleNotFound(t *testing.T) {
	repo := newMockRepository()
	svc, _, _ := newTestService(repo)

	err := svc.DeleteRole(context.Background(), 99)
	assert.ErrorIs(t, err, shared.ErrRoleNotFound)
}

func TestDuplicateRole(t *testing.T) {
	repo := newMockRepository()
	dept := int64(3)
	source := repo.addRole(Role{
		Name:             "Dispatcher",
		Description:      "Dispatch board access",
		LandingPage:      "/dispatch",
		IsSupervisorRole: true,
		DepartmentID:     &dept,
		IsActive:         true,
	})
	_, err := repo.ReplaceGrant(context.Background(), source.ID, 1, []string{"view", "modify"})
	require.NoError(t, err)
	_, err = repo.ReplaceGrant(context.Background(), source.ID, 2, []string{"GET:/auth/matrix"})
	require.NoError(t, err)
	_, err = repo.ReplaceGrant(context.Background(), source.ID, 3, nil) // empty set: not copied
	require.NoError(t, err)
	svc, inv, enq := newTestService(repo)

	dup, copied, err := svc.DuplicateRole(context.Background(), source.ID, "Night Dispatcher", "")
	require.NoError(t, err)
	assert.Equal(t, "Night Dispatcher", dup.Name)
	assert.Equal(t, "Dispatch board access", dup.Description) // inherited
	assert.Equal(t, "/dispatch", dup.LandingPage)
	assert.True(t, dup.IsSupervisorRole)
	assert.Equal(t, 2, copied)
	assert.Equal(t, []string{"view", "modify"}, repo.grants[dup.ID][1])
	assert.NotContains(t, repo.grants[dup.ID], int64(3))
	assert.Equal(t, 1, inv.calls)
	assert.Equal(t, 1, enq.calls)
}

func TestDuplicateRoleNameTaken(t *testing.T) {
	repo := newMockRepository()
	source := repo.addRole(Role{Name: "Dispatcher", IsActive: true})
	repo.addRole(Role{Name: "Night Dispatcher", IsActive: true})
	svc, _, _ := newTestService(repo)

	_, _, err := svc.DuplicateRole(context.Background(), source.ID, "Night Dispatcher", "")
	assert.ErrorIs(t, err, shared.ErrDuplicateRoleName)
}

func TestDuplicateRoleSourceMissing(t *testing.T) {
	repo := newMockRepository()
	svc, _, _ := newTestService(repo)

	_, _, err := svc.DuplicateRole(context.Background(), 99, "Copy", "")
	assert.ErrorIs(t, err, shared.ErrRoleNotFound)
}

func TestDuplicateRoleOverridesDescription(t *testing.T) {
	repo := newMockRepository()
	source := repo.addRole(Role{Name: "Dispatcher", Description: "source desc", IsActive: true})
	svc, _, _ := newTestService(repo)

	dup, _, err := svc.DuplicateRole(context.Background(), source.ID, "Copy", "own desc")
	require.NoError(t, err)
	assert.Equal(t, "own desc", dup.Description)
}

func TestReplacePermissionNormalizesActions(t *testing.T) {
	repo := newMockRepository()
	role := repo.addRole(Role{Name: "Dispatcher", IsActive: true})
	svc, inv, _ := newTestService(repo)

	grant, err := svc.ReplacePermission(context.Background(), role.ID, 1, []string{"get:/auth/roles", "VIEW"})
	require.NoError(t, err)
	assert.Equal(t, []string{"GET:/auth/roles", "view"}, grant.Actions)
	assert.Equal(t, []string{"GET:/auth/roles", "view"}, repo.grants[role.ID][1])
	assert.Equal(t, 1, inv.calls)
}

func TestReplacePermissionRejectsInvalidActionBeforeWrite(t *testing.T) {
	repo := newMockRepository()
	role := repo.addRole(Role{Name: "Dispatcher", IsActive: true})
	_, err := repo.ReplaceGrant(context.Background(), role.ID, 1, []string{"view"})
	require.NoError(t, err)
	svc, inv, _ := newTestService(repo)

	_, err = svc.ReplacePermission(context.Background(), role.ID, 1, []string{"view", "bogus"})
	assert.ErrorIs(t, err, shared.ErrInvalidActionIdentifier)
	assert.Equal(t, []string{"view"}, repo.grants[role.ID][1])
	assert.Equal(t, 0, inv.calls)
}

func TestReplacePermissionEmptySetRevokes(t *testing.T) {
	repo := newMockRepository()
	role := repo.addRole(Role{Name: "Dispatcher", IsActive: true})
	_, err := repo.ReplaceGrant(context.Background(), role.ID, 1, []string{"view"})
	require.NoError(t, err)
	svc, _, _ := newTestService(repo)

	grant, err := svc.ReplacePermission(context.Background(), role.ID, 1, nil)
	require.NoError(t, err)
	assert.Empty(t, grant.Actions)
}

func TestIntegrityEnqueueFailureIsSwallowed(t *testing.T) {
	repo := newMockRepository()
	seeded := repo.addRole(Role{Name: "Dispatcher", IsActive: true})
	inv := &countingInvalidator{}
	enq := &countingEnqueuer{err: errors.New("redis down")}
	svc := NewService(repo, inv, enq, nil)

	require.NoError(t, svc.DeleteRole(context.Background(), seeded.ID))
	assert.Equal(t, 1, enq.calls)
}
