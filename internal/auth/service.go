package auth

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/vantage-ops/vantage/internal/rbac"
	"github.com/vantage-ops/vantage/internal/shared"
)

// RoleSource resolves an employee's current role.
type RoleSource interface {
	GetRole(ctx context.Context, id int64) (rbac.Role, error)
}

// GrantSummarySource builds the permission summary surfaced to clients.
type GrantSummarySource interface {
	GetGrantsForEmployee(ctx context.Context, employeeID int64) ([]rbac.RoleGrantSummary, error)
}

// Service wraps credential verification and profile resolution.
type Service struct {
	repo   Repository
	roles  RoleSource
	grants GrantSummarySource
}

// NewService constructs a new Service.
func NewService(repo Repository, roles RoleSource, grants GrantSummarySource) *Service {
	return &Service{repo: repo, roles: roles, grants: grants}
}

// Authenticate validates username/password credentials. An unknown username
// and a wrong password produce the same error; an inactive account is
// distinguishable because its holder already knows the username exists.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*Employee, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, shared.ErrMissingCredentials
	}
	employee, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	if employee.Status != StatusActive {
		return nil, shared.ErrAccountInactive
	}
	if err := bcrypt.CompareHashAndPassword([]byte(employee.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return employee, nil
}

// Profile carries everything the client needs about an identity: the
// employee, its current role, and the permission summary re-resolved from
// current grant state.
type Profile struct {
	Employee    *Employee
	Role        rbac.Role
	Permissions []rbac.RoleGrantSummary
}

// ResolveProfile builds the profile for an employee from current data, so
// grant edits are visible without re-login.
func (s *Service) ResolveProfile(ctx context.Context, employeeID int64) (*Profile, error) {
	employee, err := s.repo.GetEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	role, err := s.roles.GetRole(ctx, employee.RoleID)
	if err != nil && !errors.Is(err, shared.ErrRoleNotFound) {
		return nil, err
	}
	permissions, err := s.grants.GetGrantsForEmployee(ctx, employee.ID)
	if err != nil {
		return nil, err
	}
	return &Profile{Employee: employee, Role: role, Permissions: permissions}, nil
}
