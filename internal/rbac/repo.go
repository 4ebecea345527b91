package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vantage-ops/vantage/internal/platform/db"
	"github.com/vantage-ops/vantage/internal/shared"
)

// Repository defines persistence operations for roles, permission groups and
// grants.
type Repository interface {
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	GetRoleByName(ctx context.Context, name string) (Role, error)
	CreateRole(ctx context.Context, input CreateRoleInput) (Role, error)
	UpdateRole(ctx context.Context, role Role) (Role, error)
	DeleteRole(ctx context.Context, id int64) error
	ListActiveRoleIDs(ctx context.Context) ([]int64, error)

	ListPermissionGroups(ctx context.Context) ([]PermissionGroup, error)

	GetGrants(ctx context.Context, roleID int64) ([]Grant, error)
	GetGrantsForEmployee(ctx context.Context, employeeID int64) ([]RoleGrantSummary, error)
	ReplaceGrant(ctx context.Context, roleID, permissionGroupID int64, actions []string) (Grant, error)
	DeleteGrantsForRole(ctx context.Context, roleID int64) error
	Matrix(ctx context.Context) ([]MatrixEntry, error)
	ResolveActions(ctx context.Context, roleID int64) (map[string]struct{}, error)
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const roleColumns = `id, name, description, landing_page, is_sales_role, is_supervisor_role, is_active, is_system_role, department_id, created_at, updated_at`

func scanRole(row pgx.Row) (Role, error) {
	var role Role
	err := row.Scan(
		&role.ID,
		&role.Name,
		&role.Description,
		&role.LandingPage,
		&role.IsSalesRole,
		&role.IsSupervisorRole,
		&role.IsActive,
		&role.IsSystemRole,
		&role.DepartmentID,
		&role.CreatedAt,
		&role.UpdatedAt,
	)
	return role, err
}

// ListRoles returns all roles ordered by name.
func (r *PGRepository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// GetRole fetches a role by id.
func (r *PGRepository) GetRole(ctx context.Context, id int64) (Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrRoleNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// GetRoleByName fetches a role by its exact, case-sensitive name.
func (r *PGRepository) GetRoleByName(ctx context.Context, name string) (Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE name = $1`, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrRoleNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// CreateRole inserts a new active role.
func (r *PGRepository) CreateRole(ctx context.Context, input CreateRoleInput) (Role, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO roles (name, description, landing_page, is_sales_role, is_supervisor_role, is_active, is_system_role, department_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, TRUE, FALSE, $6, now(), now())
		RETURNING `+roleColumns,
		input.Name, input.Description, input.LandingPage, input.IsSalesRole, input.IsSupervisorRole, input.DepartmentID)
	role, err := scanRole(row)
	if err != nil {
		return Role{}, fmt.Errorf("rbac: create role: %w", err)
	}
	return role, nil
}

// UpdateRole persists the full role record.
func (r *PGRepository) UpdateRole(ctx context.Context, role Role) (Role, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE roles
		SET name = $2, description = $3, landing_page = $4, is_sales_role = $5, is_supervisor_role = $6, is_active = $7, department_id = $8, updated_at = now()
		WHERE id = $1
		RETURNING `+roleColumns,
		role.ID, role.Name, role.Description, role.LandingPage, role.IsSalesRole, role.IsSupervisorRole, role.IsActive, role.DepartmentID)
	updated, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrRoleNotFound
		}
		return Role{}, err
	}
	return updated, nil
}

// DeleteRole removes a role by id. Grants referencing the role must be
// deleted first; see Service.DeleteRole for the ordering.
func (r *PGRepository) DeleteRole(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrRoleNotFound
	}
	return nil
}

// ListActiveRoleIDs returns the ids of all active roles.
func (r *PGRepository) ListActiveRoleIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM roles WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListPermissionGroups returns the full permission-group catalog.
func (r *PGRepository) ListPermissionGroups(ctx context.Context) ([]PermissionGroup, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, category FROM permission_groups ORDER BY category, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var groups []PermissionGroup
	for rows.Next() {
		var group PermissionGroup
		if err := rows.Scan(&group.ID, &group.Name, &group.Category); err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	return groups, rows.Err()
}

// GetGrants returns every grant record for a role, empty sets included.
func (r *PGRepository) GetGrants(ctx context.Context, roleID int64) ([]Grant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT role_id, permission_group_id, granted_actions
		FROM role_permissions
		WHERE role_id = $1
		ORDER BY permission_group_id`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectGrants(rows)
}

// GetGrantsForEmployee joins employee, role and grants to build the
// permission summary returned at login and identity refresh. Permission
// groups with empty action sets are excluded.
func (r *PGRepository) GetGrantsForEmployee(ctx context.Context, employeeID int64) ([]RoleGrantSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT pg.name, rp.granted_actions
		FROM employees e
		JOIN role_permissions rp ON rp.role_id = e.role_id
		JOIN permission_groups pg ON pg.id = rp.permission_group_id
		WHERE e.id = $1 AND cardinality(rp.granted_actions) > 0
		ORDER BY pg.name`, employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var summary []RoleGrantSummary
	for rows.Next() {
		var entry RoleGrantSummary
		if err := rows.Scan(&entry.PermissionGroupName, &entry.Actions); err != nil {
			return nil, err
		}
		summary = append(summary, entry)
	}
	return summary, rows.Err()
}

// ReplaceGrant upserts the single composite-keyed grant row as a
// delete-then-insert inside one transaction, sidestepping upsert-constraint
// races across concurrent editors.
func (r *PGRepository) ReplaceGrant(ctx context.Context, roleID, permissionGroupID int64, actions []string) (Grant, error) {
	if actions == nil {
		actions = []string{}
	}
	var grant Grant
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		stored, err := replaceGrantRow(ctx, tx, roleID, permissionGroupID, actions)
		if err != nil {
			return err
		}
		grant = stored
		return nil
	})
	if err != nil {
		return Grant{}, fmt.Errorf("rbac: replace grant: %w", err)
	}
	return grant, nil
}

func replaceGrantRow(ctx context.Context, q querier, roleID, permissionGroupID int64, actions []string) (Grant, error) {
	if _, err := q.Exec(ctx, `
		DELETE FROM role_permissions
		WHERE role_id = $1 AND permission_group_id = $2`, roleID, permissionGroupID); err != nil {
		return Grant{}, err
	}
	var grant Grant
	row := q.QueryRow(ctx, `
		INSERT INTO role_permissions (role_id, permission_group_id, granted_actions, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		RETURNING role_id, permission_group_id, granted_actions`,
		roleID, permissionGroupID, actions)
	if err := row.Scan(&grant.RoleID, &grant.PermissionGroupID, &grant.Actions); err != nil {
		return Grant{}, err
	}
	return grant, nil
}

// DeleteGrantsForRole removes every grant record for a role.
func (r *PGRepository) DeleteGrantsForRole(ctx context.Context, roleID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID)
	return err
}

// Matrix returns the full role × permission-group grant matrix, empty sets
// excluded.
func (r *PGRepository) Matrix(ctx context.Context) ([]MatrixEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT r.id, r.name, pg.id, pg.name, rp.granted_actions
		FROM role_permissions rp
		JOIN roles r ON r.id = rp.role_id
		JOIN permission_groups pg ON pg.id = rp.permission_group_id
		WHERE cardinality(rp.granted_actions) > 0
		ORDER BY r.name, pg.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []MatrixEntry
	for rows.Next() {
		var entry MatrixEntry
		if err := rows.Scan(&entry.RoleID, &entry.RoleName, &entry.PermissionGroupID, &entry.PermissionGroupName, &entry.Actions); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// ResolveActions flattens all permission groups' action sets for a role into
// one set. An unknown role yields an empty set.
func (r *PGRepository) ResolveActions(ctx context.Context, roleID int64) (map[string]struct{}, error) {
	rows, err := r.pool.Query(ctx, `SELECT granted_actions FROM role_permissions WHERE role_id = $1`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	set := make(map[string]struct{})
	for rows.Next() {
		var actions []string
		if err := rows.Scan(&actions); err != nil {
			return nil, err
		}
		for _, action := range actions {
			set[action] = struct{}{}
		}
	}
	return set, rows.Err()
}

func collectGrants(rows pgx.Rows) ([]Grant, error) {
	var grants []Grant
	for rows.Next() {
		var grant Grant
		if err := rows.Scan(&grant.RoleID, &grant.PermissionGroupID, &grant.Actions); err != nil {
			return nil, err
		}
		grants = append(grants, grant)
	}
	return grants, rows.Err()
}

var _ Repository = (*PGRepository)(nil)
