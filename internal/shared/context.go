package shared

import "context"

// SessionUser is the authenticated identity resolved from a bearer token.
type SessionUser struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
}

type sessionUserContextKey struct{}

// ContextWithUser stores the authenticated user in context.
func ContextWithUser(ctx context.Context, user *SessionUser) context.Context {
	return context.WithValue(ctx, sessionUserContextKey{}, user)
}

// UserFromContext extracts the authenticated user from context, nil when anonymous.
func UserFromContext(ctx context.Context) *SessionUser {
	user, _ := ctx.Value(sessionUserContextKey{}).(*SessionUser)
	return user
}
