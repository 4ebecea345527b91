package httpx

import (
	"errors"
	"net/http"

	"github.com/vantage-ops/vantage/internal/shared"
)

// RespondError maps domain errors to HTTP problem-detail responses.
// Authentication failures share a single message so the response never
// reveals whether the username or the password was wrong.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrMissingCredentials):
		Problem(w, http.StatusBadRequest, "Missing Credentials", "username and password are required")
	case errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Invalid Credentials", "invalid username or password")
	case errors.Is(err, shared.ErrAccountInactive):
		Problem(w, http.StatusUnauthorized, "Account Inactive", "account is not active")
	case errors.Is(err, shared.ErrTokenInvalid):
		Problem(w, http.StatusUnauthorized, "Unauthorized", "session token is missing or invalid")
	case errors.Is(err, shared.ErrRoleNotFound):
		Problem(w, http.StatusNotFound, "Role Not Found", err.Error())
	case errors.Is(err, shared.ErrDuplicateRoleName):
		Problem(w, http.StatusBadRequest, "Duplicate Role Name", err.Error())
	case errors.Is(err, shared.ErrSystemRoleProtected):
		Problem(w, http.StatusConflict, "System Role Protected", err.Error())
	case errors.Is(err, shared.ErrInvalidActionIdentifier):
		Problem(w, http.StatusBadRequest, "Invalid Action Identifier", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
