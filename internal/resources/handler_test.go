package resources

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/munsociety/munsociety/internal/auth"
	"github.com/munsociety/munsociety/internal/shared"
)

func testAuth(t *testing.T, role shared.Role) (auth.Middleware, string) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	tokens := auth.NewTokenStore(client, time.Hour)
	token, err := tokens.Issue(context.Background(), shared.SessionUser{
		UserID: 1,
		Email:  "president@munsociety.edu",
		Name:   "President",
		Role:   role,
	})
	require.NoError(t, err)
	return auth.Middleware{Service: auth.NewService(nil, tokens, nil)}, token
}

func newTestRouter(t *testing.T, role shared.Role) (chi.Router, *Service, string) {
	t.Helper()
	svc, _, _ := newTestService(t)
	mw, token := testAuth(t, role)
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)

	r := chi.NewRouter()
	r.Route("/api/resources", func(r chi.Router) {
		h.MountRoutes(r, mw)
	})
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(mw.RequireAdmin)
		h.MountAdminRoutes(r)
	})
	return r, svc, token
}

func TestPublicListingOmitsFilenames(t *testing.T) {
	router, svc, _ := newTestRouter(t, shared.RoleMember)
	uploadPDF(t, svc, "Study Guide")

	req := httptest.NewRequest(http.MethodGet, "/api/resources/public", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), "Study Guide")
	require.NotContains(t, res.Body.String(), "filename")
	require.NotContains(t, res.Body.String(), "uploaded_by")
}

func TestMemberListingRequiresToken(t *testing.T) {
	router, svc, token := newTestRouter(t, shared.RoleMember)
	uploadPDF(t, svc, "Study Guide")

	req := httptest.NewRequest(http.MethodGet, "/api/resources", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	require.Equal(t, http.StatusUnauthorized, res.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/resources", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res = httptest.NewRecorder()
	router.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), "original_filename")
}

func TestDownloadEndpointStreamsFile(t *testing.T) {
	router, svc, token := newTestRouter(t, shared.RoleMember)
	res := uploadPDF(t, svc, "Study Guide")

	req := httptest.NewRequest(http.MethodGet, "/api/resources/1/download", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Header().Get("Content-Disposition"), `filename="guide.pdf"`)
	require.Equal(t, "%PDF-1.4 fake", rec.Body.String())

	got, err := svc.Get(context.Background(), res.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), got.DownloadCount)
}

func TestUploadEndpoint(t *testing.T) {
	router, _, token := newTestRouter(t, shared.RoleAdmin)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("title", "Delegate Handbook"))
	require.NoError(t, mw.WriteField("description", "Everything a first-timer needs."))
	part, err := mw.CreateFormFile("file", "handbook.pdf")
	require.NoError(t, err)
	_, err = io.Copy(part, strings.NewReader("%PDF-1.7 handbook"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/admin/resources", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Success  bool `json:"success"`
		Resource struct {
			ID       int64  `json:"id"`
			Title    string `json:"title"`
			FileType string `json:"file_type"`
		} `json:"resource"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Equal(t, "Delegate Handbook", resp.Resource.Title)
	require.Equal(t, "pdf", resp.Resource.FileType)
}

func TestUploadEndpointRejectsMembers(t *testing.T) {
	router, _, token := newTestRouter(t, shared.RoleMember)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("title", "Nope"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/admin/resources", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUploadEndpointDuplicateTitleConflicts(t *testing.T) {
	router, svc, token := newTestRouter(t, shared.RoleAdmin)
	uploadPDF(t, svc, "Delegate Handbook")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("title", "Delegate Handbook"))
	part, err := mw.CreateFormFile("file", "other.pdf")
	require.NoError(t, err)
	_, err = io.Copy(part, strings.NewReader("%PDF"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/admin/resources", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestPermanentDeleteEndpoint(t *testing.T) {
	router, svc, token := newTestRouter(t, shared.RoleAdmin)
	res := uploadPDF(t, svc, "Old Guide")

	req := httptest.NewRequest(http.MethodDelete, "/api/admin/resources/1/permanent", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	_, err := svc.Get(context.Background(), res.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}
