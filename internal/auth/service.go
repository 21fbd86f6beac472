package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/munsociety/munsociety/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	tokens *TokenStore
	logger *slog.Logger
}

// NewService constructs a new Service. A nil logger falls back to the
// process default.
func NewService(repo Repository, tokens *TokenStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, tokens: tokens, logger: logger}
}

// Login validates credentials and issues a bearer token. Failed logins leave
// no session state behind.
func (s *Service) Login(ctx context.Context, email, password, ip, ua string) (*shared.SessionUser, string, error) {
	user, err := s.repo.FindUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, "", shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", shared.ErrInvalidCredentials
	}

	sessionUser := shared.SessionUser{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
		Role:   user.Role,
	}
	token, err := s.tokens.Issue(ctx, sessionUser)
	if err != nil {
		return nil, "", err
	}
	expiresAt := time.Now().Add(s.tokens.TTL())
	if err := s.repo.CreateSession(ctx, tokenDigest(token), user.ID, expiresAt, ip, ua); err != nil {
		// The audit row is best effort; the session itself is already live.
		s.logger.Warn("session audit insert failed",
			slog.Int64("user_id", user.ID),
			slog.Any("error", err))
	}
	return &sessionUser, token, nil
}

// Profile re-resolves a session's user from storage, so a token issued
// before the account was removed stops resolving to a profile.
func (s *Service) Profile(ctx context.Context, userID int64) (*User, error) {
	return s.repo.FindUserByID(ctx, userID)
}

// ValidateToken resolves a bearer token to its session user without touching
// credentials. Read-only and idempotent.
func (s *Service) ValidateToken(ctx context.Context, token string) (*shared.SessionUser, error) {
	return s.tokens.Validate(ctx, token)
}

// Logout revokes a token and drops its audit record. Idempotent: revoking an
// already-revoked token succeeds.
func (s *Service) Logout(ctx context.Context, token string) error {
	if err := s.tokens.Revoke(ctx, token); err != nil {
		return err
	}
	return s.repo.DeleteSession(ctx, tokenDigest(token))
}

// CheckEmail reports whether an email may self-register and whether an
// account already exists for it.
func (s *Service) CheckEmail(ctx context.Context, email string) (*EmailStatus, error) {
	entry, err := s.repo.FindAllowedEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return &EmailStatus{}, nil
		}
		return nil, err
	}
	exists, err := s.repo.UserExists(ctx, entry.Email)
	if err != nil {
		return nil, err
	}
	return &EmailStatus{
		Allowed:       true,
		AccountExists: exists,
		Name:          entry.Name,
		Role:          entry.Role,
	}, nil
}

// CreateAccount registers an account for a pre-approved email. Name and role
// come from the allow list. It does not log the user in; the caller performs
// the follow-up login as a separate operation.
func (s *Service) CreateAccount(ctx context.Context, email, password string) (*User, error) {
	email = normalizeEmail(email)
	entry, err := s.repo.FindAllowedEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrEmailNotAllowed
		}
		return nil, err
	}
	exists, err := s.repo.UserExists(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, shared.ErrAccountExists
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}
	return s.repo.CreateUser(ctx, email, string(hash), entry.Name, entry.Role)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// tokenDigest keys session audit rows without persisting the raw token.
func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
