package auth

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/munsociety/munsociety/internal/shared"
)

type memoryRepo struct {
	users      map[string]*User
	allowed    map[string]*AllowedEmail
	sessions   map[string]int64
	sessionErr error
	nextID     int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		users:    make(map[string]*User),
		allowed:  make(map[string]*AllowedEmail),
		sessions: make(map[string]int64),
	}
}

func (r *memoryRepo) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	if u, ok := r.users[email]; ok {
		return u, nil
	}
	return nil, shared.ErrNotFound
}

func (r *memoryRepo) FindUserByID(ctx context.Context, id int64) (*User, error) {
	for _, u := range r.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryRepo) UserExists(ctx context.Context, email string) (bool, error) {
	_, ok := r.users[email]
	return ok, nil
}

func (r *memoryRepo) FindAllowedEmail(ctx context.Context, email string) (*AllowedEmail, error) {
	if a, ok := r.allowed[email]; ok {
		return a, nil
	}
	return nil, shared.ErrNotFound
}

func (r *memoryRepo) CreateUser(ctx context.Context, email, passwordHash, name string, role shared.Role) (*User, error) {
	if _, ok := r.users[email]; ok {
		return nil, shared.ErrAccountExists
	}
	r.nextID++
	u := &User{ID: r.nextID, Email: email, Name: name, Role: role, PasswordHash: passwordHash, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	r.users[email] = u
	return u, nil
}

func (r *memoryRepo) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	if r.sessionErr != nil {
		return r.sessionErr
	}
	r.sessions[id] = userID
	return nil
}

func (r *memoryRepo) DeleteSession(ctx context.Context, id string) error {
	delete(r.sessions, id)
	return nil
}

func newTestService(t *testing.T) (*Service, *memoryRepo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	repo := newMemoryRepo()
	return NewService(repo, NewTokenStore(client, time.Hour), nil), repo, mr
}

func seedUser(t *testing.T, repo *memoryRepo, email, password string, role shared.Role) *User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user, err := repo.CreateUser(context.Background(), email, string(hash), "Test User", role)
	require.NoError(t, err)
	return user
}

func TestLoginIssuesValidToken(t *testing.T) {
	svc, repo, _ := newTestService(t)
	seedUser(t, repo, "member@munsociety.edu", "correct horse", shared.RoleMember)

	user, token, err := svc.Login(context.Background(), "Member@MunSociety.edu", "correct horse", "127.0.0.1", "test")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Equal(t, shared.RoleMember, user.Role)

	resolved, err := svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, user.UserID, resolved.UserID)
	require.Equal(t, "member@munsociety.edu", resolved.Email)

	// An audit row was recorded for the session.
	require.Len(t, repo.sessions, 1)
}

func TestLoginSucceedsWhenAuditInsertFails(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	repo := newMemoryRepo()
	repo.sessionErr = errors.New(`column "missing" does not exist`)
	var logs bytes.Buffer
	svc := NewService(repo, NewTokenStore(client, time.Hour), slog.New(slog.NewTextHandler(&logs, nil)))
	seedUser(t, repo, "member@munsociety.edu", "correct horse", shared.RoleMember)

	_, token, err := svc.Login(context.Background(), "member@munsociety.edu", "correct horse", "10.0.0.1", "cli")
	require.NoError(t, err)

	// The session is live despite the failed audit row.
	_, err = svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)

	// The failure surfaces in the logs instead of being swallowed.
	require.Contains(t, logs.String(), "session audit insert failed")
	require.Contains(t, logs.String(), "does not exist")
}

func TestLoginRejectsBadPassword(t *testing.T) {
	svc, repo, mr := newTestService(t)
	seedUser(t, repo, "member@munsociety.edu", "correct horse", shared.RoleMember)

	_, token, err := svc.Login(context.Background(), "member@munsociety.edu", "wrong", "", "")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
	require.Empty(t, token)
	// No session state is left behind by a failed login.
	require.Empty(t, mr.Keys())
	require.Empty(t, repo.sessions)
}

func TestLoginRejectsUnknownUser(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, _, err := svc.Login(context.Background(), "ghost@munsociety.edu", "anything", "", "")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestConcurrentLoginsGetIndependentTokens(t *testing.T) {
	svc, repo, _ := newTestService(t)
	seedUser(t, repo, "member@munsociety.edu", "correct horse", shared.RoleMember)

	_, first, err := svc.Login(context.Background(), "member@munsociety.edu", "correct horse", "", "")
	require.NoError(t, err)
	_, second, err := svc.Login(context.Background(), "member@munsociety.edu", "correct horse", "", "")
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	// Neither login invalidates the other; there is no last-write-wins race.
	_, err = svc.ValidateToken(context.Background(), first)
	require.NoError(t, err)
	_, err = svc.ValidateToken(context.Background(), second)
	require.NoError(t, err)
}

func TestLogoutIsIdempotent(t *testing.T) {
	svc, repo, mr := newTestService(t)
	seedUser(t, repo, "member@munsociety.edu", "correct horse", shared.RoleMember)

	_, token, err := svc.Login(context.Background(), "member@munsociety.edu", "correct horse", "", "")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), token))
	require.NoError(t, svc.Logout(context.Background(), token))
	require.Empty(t, mr.Keys())
	require.Empty(t, repo.sessions)

	_, err = svc.ValidateToken(context.Background(), token)
	require.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestTokenExpiryResolvesToUnauthorized(t *testing.T) {
	svc, repo, mr := newTestService(t)
	seedUser(t, repo, "member@munsociety.edu", "correct horse", shared.RoleMember)

	_, token, err := svc.Login(context.Background(), "member@munsociety.edu", "correct horse", "", "")
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)

	_, err = svc.ValidateToken(context.Background(), token)
	require.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestCheckEmail(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.allowed["delegate@munsociety.edu"] = &AllowedEmail{Email: "delegate@munsociety.edu", Name: "Dele Gate", Role: shared.RoleMember}

	status, err := svc.CheckEmail(context.Background(), "stranger@example.com")
	require.NoError(t, err)
	require.False(t, status.Allowed)
	require.False(t, status.AccountExists)

	status, err = svc.CheckEmail(context.Background(), "delegate@munsociety.edu")
	require.NoError(t, err)
	require.True(t, status.Allowed)
	require.False(t, status.AccountExists)
	require.Equal(t, "Dele Gate", status.Name)

	seedUser(t, repo, "delegate@munsociety.edu", "some password", shared.RoleMember)
	status, err = svc.CheckEmail(context.Background(), "delegate@munsociety.edu")
	require.NoError(t, err)
	require.True(t, status.AccountExists)
}

func TestCreateAccount(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.allowed["delegate@munsociety.edu"] = &AllowedEmail{Email: "delegate@munsociety.edu", Name: "Dele Gate", Role: shared.RoleAdmin}

	_, err := svc.CreateAccount(context.Background(), "stranger@example.com", "long enough password")
	require.ErrorIs(t, err, shared.ErrEmailNotAllowed)

	user, err := svc.CreateAccount(context.Background(), "Delegate@MunSociety.edu", "long enough password")
	require.NoError(t, err)
	require.Equal(t, "Dele Gate", user.Name)
	require.Equal(t, shared.RoleAdmin, user.Role)
	// Stored credential is a hash, never the password.
	require.NotEqual(t, "long enough password", user.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("long enough password")))

	_, err = svc.CreateAccount(context.Background(), "delegate@munsociety.edu", "long enough password")
	require.ErrorIs(t, err, shared.ErrAccountExists)

	// Creating the account does not log the user in.
	_, err = svc.ValidateToken(context.Background(), "")
	require.ErrorIs(t, err, shared.ErrUnauthorized)
}
