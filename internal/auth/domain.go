package auth

import "time"

// Employee status values. Only active employees may authenticate.
const (
	StatusActive   = "Active"
	StatusInactive = "Inactive"
)

// Employee represents an identity record. Employees are created and
// deactivated by the employee-management module; this package only reads
// them for credential verification and status gating.
type Employee struct {
	ID           int64
	Username     string
	FirstName    string
	LastName     string
	PasswordHash string
	Status       string
	RoleID       int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
