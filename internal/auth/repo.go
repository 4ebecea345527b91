package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vantage-ops/vantage/internal/shared"
)

// Repository defines persistence operations for the auth module.
type Repository interface {
	FindByUsername(ctx context.Context, username string) (*Employee, error)
	GetEmployee(ctx context.Context, id int64) (*Employee, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const employeeColumns = `id, username, first_name, last_name, password_hash, status, role_id, created_at, updated_at`

func scanEmployee(row pgx.Row) (*Employee, error) {
	var employee Employee
	err := row.Scan(
		&employee.ID,
		&employee.Username,
		&employee.FirstName,
		&employee.LastName,
		&employee.PasswordHash,
		&employee.Status,
		&employee.RoleID,
		&employee.CreatedAt,
		&employee.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &employee, nil
}

// FindByUsername fetches an employee by exact, case-sensitive username.
func (r *PGRepository) FindByUsername(ctx context.Context, username string) (*Employee, error) {
	return scanEmployee(r.pool.QueryRow(ctx, `SELECT `+employeeColumns+` FROM employees WHERE username = $1`, username))
}

// GetEmployee fetches an employee by id.
func (r *PGRepository) GetEmployee(ctx context.Context, id int64) (*Employee, error) {
	return scanEmployee(r.pool.QueryRow(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = $1`, id))
}

var _ Repository = (*PGRepository)(nil)
