package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/munsociety/munsociety/internal/shared"
)

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireUserRejectsAnonymous(t *testing.T) {
	svc, _, _ := newTestService(t)
	mw := Middleware{Service: svc}

	var called bool
	req := httptest.NewRequest(http.MethodGet, "/api/resources", nil)
	res := httptest.NewRecorder()
	mw.RequireUser(okHandler(&called)).ServeHTTP(res, req)

	require.Equal(t, http.StatusUnauthorized, res.Code)
	require.False(t, called, "protected handler must not run for anonymous requests")
}

func TestRequireUserRejectsGarbageToken(t *testing.T) {
	svc, _, _ := newTestService(t)
	mw := Middleware{Service: svc}

	var called bool
	req := httptest.NewRequest(http.MethodGet, "/api/resources", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	res := httptest.NewRecorder()
	mw.RequireUser(okHandler(&called)).ServeHTTP(res, req)

	require.Equal(t, http.StatusUnauthorized, res.Code)
	require.False(t, called)
}

func TestRequireUserInjectsSessionUser(t *testing.T) {
	svc, repo, _ := newTestService(t)
	seedUser(t, repo, "member@munsociety.edu", "correct horse", shared.RoleMember)
	_, token, err := svc.Login(context.Background(), "member@munsociety.edu", "correct horse", "", "")
	require.NoError(t, err)

	mw := Middleware{Service: svc}
	var seen *shared.SessionUser
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = shared.UserFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/api/resources", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	mw.RequireUser(handler).ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	require.NotNil(t, seen)
	require.Equal(t, "member@munsociety.edu", seen.Email)
}

func TestRequireAdminDeniesMembers(t *testing.T) {
	svc, repo, _ := newTestService(t)
	seedUser(t, repo, "member@munsociety.edu", "correct horse", shared.RoleMember)
	_, token, err := svc.Login(context.Background(), "member@munsociety.edu", "correct horse", "", "")
	require.NoError(t, err)

	mw := Middleware{Service: svc}
	var called bool
	req := httptest.NewRequest(http.MethodGet, "/api/admin/members", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	mw.RequireAdmin(okHandler(&called)).ServeHTTP(res, req)

	require.Equal(t, http.StatusForbidden, res.Code)
	require.False(t, called)
	require.Contains(t, res.Body.String(), "admin")
}

func TestRequireAdminDeniesAnonymous(t *testing.T) {
	svc, _, _ := newTestService(t)
	mw := Middleware{Service: svc}

	var called bool
	req := httptest.NewRequest(http.MethodGet, "/api/admin/members", nil)
	res := httptest.NewRecorder()
	mw.RequireAdmin(okHandler(&called)).ServeHTTP(res, req)

	require.Equal(t, http.StatusUnauthorized, res.Code)
	require.False(t, called)
}

func TestRequireAdminAllowsAdmins(t *testing.T) {
	svc, repo, _ := newTestService(t)
	seedUser(t, repo, "president@munsociety.edu", "correct horse", shared.RoleAdmin)
	_, token, err := svc.Login(context.Background(), "president@munsociety.edu", "correct horse", "", "")
	require.NoError(t, err)

	mw := Middleware{Service: svc}
	var called bool
	req := httptest.NewRequest(http.MethodGet, "/api/admin/members", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	mw.RequireAdmin(okHandler(&called)).ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	require.True(t, called)
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	require.Empty(t, BearerToken(req))

	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	require.Empty(t, BearerToken(req))

	req.Header.Set("Authorization", "Bearer abc123")
	require.Equal(t, "abc123", BearerToken(req))

	req.Header.Set("Authorization", "bearer abc123")
	require.Equal(t, "abc123", BearerToken(req))
}
