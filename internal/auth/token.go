package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/vantage-ops/vantage/internal/rbac"
	"github.com/vantage-ops/vantage/internal/shared"
)

// DefaultTokenTTL is the session token lifetime when none is configured.
const DefaultTokenTTL = 7 * 24 * time.Hour

// SessionClaims is the signed session token payload. It identifies who is
// asking; authorization always re-resolves grants from current data, so the
// embedded role fields are informational only.
type SessionClaims struct {
	EmployeeID       int64  `json:"employee_id"`
	Username         string `json:"username"`
	RoleID           int64  `json:"role_id"`
	RoleName         string `json:"role_name"`
	IsSalesRole      bool   `json:"is_sales_role"`
	IsSupervisorRole bool   `json:"is_supervisor_role"`
	jwt.RegisteredClaims
}

// TokenIssuer issues and verifies signed, time-limited session tokens.
// Verification is a pure function of token, secret and current time; no
// shared state, no revocation store.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer constructs a TokenIssuer. A non-positive ttl falls back to
// DefaultTokenTTL.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

// TTL exposes the configured token lifetime.
func (i *TokenIssuer) TTL() time.Duration {
	return i.ttl
}

// Issue signs a session token for the employee and its current role.
func (i *TokenIssuer) Issue(employee *Employee, role rbac.Role) (string, error) {
	now := time.Now().UTC()
	claims := &SessionClaims{
		EmployeeID:       employee.ID,
		Username:         employee.Username,
		RoleID:           role.ID,
		RoleName:         role.Name,
		IsSalesRole:      role.IsSalesRole,
		IsSupervisorRole: role.IsSupervisorRole,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the session identity.
// Every failure mode collapses into ErrTokenInvalid.
func (i *TokenIssuer) Verify(tokenString string) (*shared.SessionIdentity, error) {
	var claims SessionClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return i.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, shared.ErrTokenInvalid
	}
	return &shared.SessionIdentity{
		EmployeeID:       claims.EmployeeID,
		Username:         claims.Username,
		RoleID:           claims.RoleID,
		RoleName:         claims.RoleName,
		IsSalesRole:      claims.IsSalesRole,
		IsSupervisorRole: claims.IsSupervisorRole,
	}, nil
}
