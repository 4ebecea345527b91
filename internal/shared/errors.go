package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrMissingCredentials indicates an empty username or password.
	ErrMissingCredentials = errors.New("missing credentials")
	// ErrInvalidCredentials indicates login failure. It never reveals
	// whether the username or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountInactive indicates the account exists but may not log in.
	ErrAccountInactive = errors.New("account inactive")
	// ErrTokenInvalid indicates a malformed, tampered or expired session token.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrRoleNotFound indicates the referenced role does not exist.
	ErrRoleNotFound = errors.New("role not found")
	// ErrDuplicateRoleName indicates the role name is already taken.
	ErrDuplicateRoleName = errors.New("duplicate role name")
	// ErrSystemRoleProtected indicates a system role cannot be deleted.
	ErrSystemRoleProtected = errors.New("system role protected")
	// ErrInvalidActionIdentifier indicates a granted action failed shape validation.
	ErrInvalidActionIdentifier = errors.New("invalid action identifier")
)
