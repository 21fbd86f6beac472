package shared

import "strings"

// Role is the access level attached to a user account.
type Role string

const (
	// RoleMember is the default role for registered members.
	RoleMember Role = "member"
	// RoleAdmin is the canonical admin role value. Legacy data also carried
	// "administrator"; ParseRole folds it into RoleAdmin so every call site
	// gates on a single value.
	RoleAdmin Role = "admin"
)

// ParseRole normalizes a stored role string into a Role.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "member":
		return RoleMember, true
	case "admin", "administrator":
		return RoleAdmin, true
	default:
		return "", false
	}
}

// IsValid reports whether the role is one of the predefined values.
func (r Role) IsValid() bool {
	return r == RoleMember || r == RoleAdmin
}

// IsAdmin reports whether the role grants admin access.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

func (r Role) String() string {
	return string(r)
}
