package shared

import "context"

// SessionIdentity is the decoded session token payload. It identifies who is
// asking; what they may do is always re-resolved against current grant state.
type SessionIdentity struct {
	EmployeeID       int64
	Username         string
	RoleID           int64
	RoleName         string
	IsSalesRole      bool
	IsSupervisorRole bool
}

type identityContextKey struct{}

// ContextWithIdentity stores the session identity in context.
func ContextWithIdentity(ctx context.Context, identity *SessionIdentity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext extracts the session identity from context.
func IdentityFromContext(ctx context.Context) *SessionIdentity {
	identity, _ := ctx.Value(identityContextKey{}).(*SessionIdentity)
	return identity
}
