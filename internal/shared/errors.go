package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailNotAllowed occurs when an email is not on the pre-approval list.
	ErrEmailNotAllowed = errors.New("email not permitted to create account")
	// ErrAccountExists occurs when an account already exists for an email.
	ErrAccountExists = errors.New("account already exists")
	// ErrDuplicate indicates a uniqueness conflict.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrForbidden indicates the caller lacks the required role.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthorized indicates a missing or invalid session token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrValidation indicates a malformed request.
	ErrValidation = errors.New("validation failed")
)
