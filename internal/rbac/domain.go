// Package rbac owns the role and permission-group catalogs, the grant
// relation, and the role administration operations that mutate them.
package rbac

import "time"

// Role bundles capability flags and a set of permission-group grants.
type Role struct {
	ID               int64
	Name             string
	Description      string
	LandingPage      string
	IsSalesRole      bool
	IsSupervisorRole bool
	IsActive         bool
	IsSystemRole     bool
	DepartmentID     *int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// PermissionGroup is a catalogued functional area grants attach to. The
// catalog is reference data maintained by deployment, not mutated at runtime.
type PermissionGroup struct {
	ID       int64
	Name     string
	Category string
}

// Grant is the composite-keyed relation row: the set of actions a role is
// granted within one permission group.
type Grant struct {
	RoleID            int64
	PermissionGroupID int64
	Actions           []string
}

// RoleGrantSummary is one entry of the permission summary surfaced to
// clients at login and identity refresh. Groups with empty action sets are
// never included.
type RoleGrantSummary struct {
	PermissionGroupName string
	Actions             []string
}

// MatrixEntry is one cell of the full role × permission-group grant matrix.
type MatrixEntry struct {
	RoleID              int64
	RoleName            string
	PermissionGroupID   int64
	PermissionGroupName string
	Actions             []string
}

// CreateRoleInput carries the fields accepted when creating a role.
type CreateRoleInput struct {
	Name             string
	Description      string
	LandingPage      string
	IsSalesRole      bool
	IsSupervisorRole bool
	DepartmentID     *int64
}

// RoleUpdate carries a partial role update; nil fields are left unchanged.
type RoleUpdate struct {
	Name             *string
	Description      *string
	LandingPage      *string
	IsSalesRole      *bool
	IsSupervisorRole *bool
	IsActive         *bool
	DepartmentID     *int64
}
