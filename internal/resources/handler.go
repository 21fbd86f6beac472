package resources

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/munsociety/munsociety/internal/auth"
	"github.com/munsociety/munsociety/internal/platform/httpx"
	"github.com/munsociety/munsociety/internal/shared"
	"github.com/munsociety/munsociety/internal/storage"
)

const (
	publicPageLimit = 50
	memberPageLimit = 100
	multipartMemory = 32 << 20
)

// Handler wires resource HTTP endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the public and member routes.
func (h *Handler) MountRoutes(r chi.Router, mw auth.Middleware) {
	r.Get("/public", h.handlePublicList)
	r.With(mw.RequireUser).Get("/", h.handleList)
	r.With(mw.RequireUser).Get("/{id}", h.handleGet)
	r.With(mw.RequireUser).Get("/{id}/download", h.handleDownload)
}

// MountAdminRoutes registers upload and lifecycle routes; the caller gates
// the router.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Post("/resources", h.handleUpload)
	r.Put("/resources/{id}", h.handleUpdate)
	r.Delete("/resources/{id}", h.handleDeactivate)
	r.Delete("/resources/{id}/permanent", h.handlePurge)
}

// publicPayload is the anonymous projection: enough to browse the library,
// nothing that identifies files or uploaders.
type publicPayload struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	FileType      string    `json:"file_type"`
	FileSize      int64     `json:"file_size"`
	UploadDate    time.Time `json:"upload_date"`
	DownloadCount int64     `json:"download_count"`
}

type memberPayload struct {
	publicPayload
	OriginalFilename string `json:"original_filename"`
	MimeType         string `json:"mime_type"`
	UploadedBy       string `json:"uploaded_by"`
}

func toPublicPayload(res *Resource) publicPayload {
	return publicPayload{
		ID:            res.ID,
		Title:         res.Title,
		Description:   res.Description,
		FileType:      res.FileType,
		FileSize:      res.FileSize,
		UploadDate:    res.UploadDate,
		DownloadCount: res.DownloadCount,
	}
}

func toMemberPayload(res *Resource) memberPayload {
	return memberPayload{
		publicPayload:    toPublicPayload(res),
		OriginalFilename: res.OriginalFilename,
		MimeType:         res.MimeType,
		UploadedBy:       res.UploadedByName,
	}
}

func parseFilters(r *http.Request, maxLimit int) Filters {
	return Filters{
		ListFilters: shared.ParseListFilters(r, maxLimit),
		FileType:    strings.ToLower(strings.TrimSpace(r.URL.Query().Get("file_type"))),
	}
}

func (h *Handler) handlePublicList(w http.ResponseWriter, r *http.Request) {
	filters := parseFilters(r, publicPageLimit)
	list, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.logger.Error("list resources", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	payloads := make([]publicPayload, 0, len(list))
	for i := range list {
		payloads = append(payloads, toPublicPayload(&list[i]))
	}
	page := shared.NewPagination(filters.Page, filters.Limit, total)
	httpx.JSON(w, http.StatusOK, map[string]any{
		"resources": payloads,
		"total":     total,
		"page":      page.Page,
		"pages":     page.Pages,
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filters := parseFilters(r, memberPageLimit)
	list, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.logger.Error("list resources", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	payloads := make([]memberPayload, 0, len(list))
	for i := range list {
		payloads = append(payloads, toMemberPayload(&list[i]))
	}
	page := shared.NewPagination(filters.Page, filters.Limit, total)
	httpx.JSON(w, http.StatusOK, map[string]any{
		"resources": payloads,
		"total":     total,
		"page":      page.Page,
		"pages":     page.Pages,
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid resource id")
		return
	}
	res, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "resource": toMemberPayload(res)})
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid resource id")
		return
	}
	res, f, err := h.service.Download(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", res.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(res.FileSize, 10))
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="%s"`, sanitizeFilename(res.OriginalFilename)))
	if _, err := io.Copy(w, f); err != nil {
		h.logger.Warn("stream resource", slog.Int64("id", id), slog.Any("error", err))
	}
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "expected multipart form data")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "file is required")
		return
	}
	f, err := headers[0].Open()
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "could not read uploaded file")
		return
	}
	defer f.Close()

	user := shared.UserFromContext(r.Context())
	res, err := h.service.Upload(r.Context(), user.UserID, UploadInput{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Filename:    headers[0].Filename,
		Content:     f,
	})
	if err != nil {
		h.respondUploadError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"success": true, "resource": toMemberPayload(res)})
}

type updateRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid resource id")
		return
	}
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	res, err := h.service.Update(r.Context(), id, UpdateInput{Title: req.Title, Description: req.Description})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "resource": toMemberPayload(res)})
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid resource id")
		return
	}
	if err := h.service.Deactivate(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Success(w, http.StatusOK, "Resource deleted successfully")
}

func (h *Handler) handlePurge(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid resource id")
		return
	}
	if err := h.service.Purge(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Success(w, http.StatusOK, "Resource permanently deleted")
}

func (h *Handler) respondUploadError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "title is required")
	case errors.Is(err, shared.ErrDuplicate):
		httpx.Problem(w, http.StatusConflict, "Conflict", "an active resource with this title already exists")
	case errors.Is(err, storage.ErrInvalidExtension):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "file type is not allowed")
	case errors.Is(err, storage.ErrFileTooLarge):
		httpx.Problem(w, http.StatusRequestEntityTooLarge, "File Too Large", "file exceeds the maximum upload size")
	case errors.Is(err, storage.ErrEmptyFile):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "file is empty")
	default:
		h.logger.Error("upload resource", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// sanitizeFilename strips characters that would break the quoted
// Content-Disposition value.
func sanitizeFilename(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '"', '\\', '\r', '\n':
			return '_'
		}
		return r
	}, name)
}
