package auth

import (
	"time"

	"github.com/munsociety/munsociety/internal/shared"
)

// User represents a registered member account.
type User struct {
	ID           int64
	Email        string
	Name         string
	Role         shared.Role
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AllowedEmail is a pre-approved registration entry. Accounts can only be
// created for emails on this list; name and role are taken from it, not from
// the registration request.
type AllowedEmail struct {
	Email string
	Name  string
	Role  shared.Role
}

// EmailStatus is the outcome of a pre-registration email check. It is
// advisory: the allow list is re-checked at account-creation time.
type EmailStatus struct {
	Allowed       bool
	AccountExists bool
	Name          string
	Role          shared.Role
}
