package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vantage-ops/vantage/internal/authz"
	"github.com/vantage-ops/vantage/internal/shared"
)

// Invalidator clears the resolved-grant cache after a successful mutation.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

// IntegrityEnqueuer schedules a background integrity scan of the grant
// relation. Enqueueing is best effort; a failure is logged, never surfaced.
type IntegrityEnqueuer interface {
	EnqueueGrantsIntegrity(ctx context.Context) error
}

// Service implements role administration. Validation and not-found checks
// run before any write; every successful mutation invalidates the cache
// after the write completes.
type Service struct {
	repo        Repository
	invalidator Invalidator
	integrity   IntegrityEnqueuer
	logger      *slog.Logger
}

// NewService constructs a Service. integrity may be nil.
func NewService(repo Repository, invalidator Invalidator, integrity IntegrityEnqueuer, logger *slog.Logger) *Service {
	return &Service{repo: repo, invalidator: invalidator, integrity: integrity, logger: logger}
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// GetRole fetches a role by id.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.repo.GetRole(ctx, id)
}

// ListPermissionGroups returns the permission-group catalog.
func (s *Service) ListPermissionGroups(ctx context.Context) ([]PermissionGroup, error) {
	return s.repo.ListPermissionGroups(ctx)
}

// Matrix returns the full grant matrix.
func (s *Service) Matrix(ctx context.Context) ([]MatrixEntry, error) {
	return s.repo.Matrix(ctx)
}

// CreateRole inserts a new role after a read-before-write uniqueness check
// on the name (case-sensitive exact match).
func (s *Service) CreateRole(ctx context.Context, input CreateRoleInput) (Role, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return Role{}, errors.New("rbac: role name required")
	}
	if err := s.checkNameFree(ctx, input.Name); err != nil {
		return Role{}, err
	}
	role, err := s.repo.CreateRole(ctx, input)
	if err != nil {
		return Role{}, err
	}
	s.invalidator.Invalidate(ctx)
	return role, nil
}

// UpdateRole applies a partial update. Name uniqueness is re-checked only
// when the name actually changes.
func (s *Service) UpdateRole(ctx context.Context, id int64, update RoleUpdate) (Role, error) {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return Role{}, err
	}
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return Role{}, errors.New("rbac: role name required")
		}
		if name != role.Name {
			if err := s.checkNameFree(ctx, name); err != nil {
				return Role{}, err
			}
		}
		role.Name = name
	}
	if update.Description != nil {
		role.Description = *update.Description
	}
	if update.LandingPage != nil {
		role.LandingPage = *update.LandingPage
	}
	if update.IsSalesRole != nil {
		role.IsSalesRole = *update.IsSalesRole
	}
	if update.IsSupervisorRole != nil {
		role.IsSupervisorRole = *update.IsSupervisorRole
	}
	if update.IsActive != nil {
		role.IsActive = *update.IsActive
	}
	if update.DepartmentID != nil {
		role.DepartmentID = update.DepartmentID
	}
	updated, err := s.repo.UpdateRole(ctx, role)
	if err != nil {
		return Role{}, err
	}
	// Renames included: evaluation keys on role id, but a uniform clear per
	// mutation keeps the invalidation rule simple.
	s.invalidator.Invalidate(ctx)
	return updated, nil
}

// DeleteRole removes a role and its grants. Grants go first so they are
// never left referencing a deleted role.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return err
	}
	if role.IsSystemRole {
		return shared.ErrSystemRoleProtected
	}
	if err := s.repo.DeleteGrantsForRole(ctx, id); err != nil {
		return err
	}
	if err := s.repo.DeleteRole(ctx, id); err != nil {
		return err
	}
	s.invalidator.Invalidate(ctx)
	s.enqueueIntegrityScan(ctx)
	return nil
}

// DuplicateRole creates a new role from an existing one and copies every
// grant record with a non-empty action set verbatim. The copy is a sequence
// of single-row replacements, not one transaction; a concurrent grant edit
// on the source may or may not be reflected.
func (s *Service) DuplicateRole(ctx context.Context, sourceID int64, newName, description string) (Role, int, error) {
	source, err := s.repo.GetRole(ctx, sourceID)
	if err != nil {
		return Role{}, 0, err
	}
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return Role{}, 0, errors.New("rbac: role name required")
	}
	if err := s.checkNameFree(ctx, newName); err != nil {
		return Role{}, 0, err
	}
	if description == "" {
		description = source.Description
	}
	created, err := s.repo.CreateRole(ctx, CreateRoleInput{
		Name:             newName,
		Description:      description,
		LandingPage:      source.LandingPage,
		IsSalesRole:      source.IsSalesRole,
		IsSupervisorRole: source.IsSupervisorRole,
		DepartmentID:     source.DepartmentID,
	})
	if err != nil {
		return Role{}, 0, err
	}
	grants, err := s.repo.GetGrants(ctx, sourceID)
	if err != nil {
		return Role{}, 0, err
	}
	copied := 0
	for _, grant := range grants {
		if len(grant.Actions) == 0 {
			continue
		}
		if _, err := s.repo.ReplaceGrant(ctx, created.ID, grant.PermissionGroupID, grant.Actions); err != nil {
			return Role{}, 0, fmt.Errorf("rbac: copy grant for group %d: %w", grant.PermissionGroupID, err)
		}
		copied++
	}
	s.invalidator.Invalidate(ctx)
	s.enqueueIntegrityScan(ctx)
	return created, copied, nil
}

// ReplacePermission validates every action identifier, then replaces the
// grant record for the (role, permission group) pair. A single invalid
// element fails the whole call before any write.
func (s *Service) ReplacePermission(ctx context.Context, roleID, permissionGroupID int64, actions []string) (Grant, error) {
	normalized, err := authz.NormalizeActions(actions)
	if err != nil {
		return Grant{}, err
	}
	grant, err := s.repo.ReplaceGrant(ctx, roleID, permissionGroupID, normalized)
	if err != nil {
		return Grant{}, err
	}
	s.invalidator.Invalidate(ctx)
	return grant, nil
}

func (s *Service) checkNameFree(ctx context.Context, name string) error {
	_, err := s.repo.GetRoleByName(ctx, name)
	switch {
	case err == nil:
		return shared.ErrDuplicateRoleName
	case errors.Is(err, shared.ErrRoleNotFound):
		return nil
	default:
		return err
	}
}

func (s *Service) enqueueIntegrityScan(ctx context.Context) {
	if s.integrity == nil {
		return
	}
	if err := s.integrity.EnqueueGrantsIntegrity(ctx); err != nil && s.logger != nil {
		s.logger.Warn("enqueue grants integrity scan", slog.Any("error", err))
	}
}
