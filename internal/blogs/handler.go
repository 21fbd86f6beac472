package blogs

import (
	"errors"
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
	dateLayout      = "2006-01-02"
	multipartMemory = 32 << 20
	publicPageLimit = 50
	adminPageLimit  = 100
	imageURLPrefix  = "/uploads/images/"
)

// Handler wires blog HTTP endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the public routes plus the admin-gated mutations
// that live on the same path prefix.
func (h *Handler) MountRoutes(r chi.Router, mw auth.Middleware) {
	r.Get("/", h.handleListPublished)
	r.Get("/{id}", h.handleGetPublished)
	r.With(mw.RequireAdmin).Post("/", h.handleCreate)
	r.With(mw.RequireAdmin).Put("/{id}", h.handleUpdate)
	r.With(mw.RequireAdmin).Delete("/{id}", h.handleDelete)
}

// MountAdminRoutes registers the admin listing; the caller gates the router.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Get("/blogs", h.handleAdminList)
}

type blogPayload struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	Content         string    `json:"content"`
	CompetitionDate *string   `json:"competition_date"`
	Image1URL       *string   `json:"image1_url"`
	Image2URL       *string   `json:"image2_url"`
	Author          string    `json:"author"`
	Published       bool      `json:"published"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toBlogPayload(b *Blog) blogPayload {
	p := blogPayload{
		ID:        b.ID,
		Title:     b.Title,
		Content:   b.Content,
		Author:    b.AuthorName,
		Published: b.Published,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
	if b.CompetitionDate != nil {
		d := b.CompetitionDate.Format(dateLayout)
		p.CompetitionDate = &d
	}
	if b.Image1 != "" {
		u := imageURLPrefix + b.Image1
		p.Image1URL = &u
	}
	if b.Image2 != "" {
		u := imageURLPrefix + b.Image2
		p.Image2URL = &u
	}
	return p
}

func blogListResponse(blogs []Blog, filters shared.ListFilters, total int) map[string]any {
	payloads := make([]blogPayload, 0, len(blogs))
	for i := range blogs {
		payloads = append(payloads, toBlogPayload(&blogs[i]))
	}
	page := shared.NewPagination(filters.Page, filters.Limit, total)
	return map[string]any{
		"blogs": payloads,
		"total": total,
		"page":  page.Page,
		"pages": page.Pages,
	}
}

func (h *Handler) handleListPublished(w http.ResponseWriter, r *http.Request) {
	filters := shared.ParseListFilters(r, publicPageLimit)
	blogs, total, err := h.service.ListPublished(r.Context(), filters)
	if err != nil {
		h.logger.Error("list blogs", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, blogListResponse(blogs, filters, total))
}

func (h *Handler) handleGetPublished(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid blog id")
		return
	}
	b, err := h.service.GetPublished(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "blog": toBlogPayload(b)})
}

func (h *Handler) handleAdminList(w http.ResponseWriter, r *http.Request) {
	filters := shared.ParseListFilters(r, adminPageLimit)
	blogs, total, err := h.service.ListAll(r.Context(), filters)
	if err != nil {
		h.logger.Error("admin list blogs", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, blogListResponse(blogs, filters, total))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "expected multipart form data")
		return
	}
	defer cleanupMultipart(r)

	title := strings.TrimSpace(r.FormValue("title"))
	content := strings.TrimSpace(r.FormValue("content"))
	if title == "" || content == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "title and content are required")
		return
	}

	in := CreateInput{Title: title, Content: content, Published: true}
	var err error
	if in.CompetitionDate, err = parseDateField(r, "competition_date"); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "competition_date must be YYYY-MM-DD")
		return
	}
	if v := r.FormValue("published"); v != "" {
		published, err := strconv.ParseBool(v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "published must be a boolean")
			return
		}
		in.Published = published
	}
	in.Image1 = formUpload(r, "image1")
	in.Image2 = formUpload(r, "image2")

	user := shared.UserFromContext(r.Context())
	b, err := h.service.Create(r.Context(), user.UserID, in)
	if err != nil {
		h.respondUploadError(w, "create blog", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"success": true, "blog": toBlogPayload(b)})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid blog id")
		return
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "expected multipart form data")
		return
	}
	defer cleanupMultipart(r)

	var in UpdateInput
	if _, ok := r.MultipartForm.Value["title"]; ok {
		title := strings.TrimSpace(r.FormValue("title"))
		if title == "" {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "title cannot be empty")
			return
		}
		in.Title = &title
	}
	if _, ok := r.MultipartForm.Value["content"]; ok {
		content := strings.TrimSpace(r.FormValue("content"))
		if content == "" {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "content cannot be empty")
			return
		}
		in.Content = &content
	}
	if in.CompetitionDate, err = parseDateField(r, "competition_date"); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "competition_date must be YYYY-MM-DD")
		return
	}
	if v := r.FormValue("published"); v != "" {
		published, err := strconv.ParseBool(v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "published must be a boolean")
			return
		}
		in.Published = &published
	}
	in.Image1 = formUpload(r, "image1")
	in.Image2 = formUpload(r, "image2")

	b, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		h.respondUploadError(w, "update blog", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "blog": toBlogPayload(b)})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid blog id")
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Success(w, http.StatusOK, "Blog deleted successfully")
}

func (h *Handler) respondUploadError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, storage.ErrInvalidExtension):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "image must be jpg, jpeg, png, gif or webp")
	case errors.Is(err, storage.ErrFileTooLarge):
		httpx.Problem(w, http.StatusRequestEntityTooLarge, "File Too Large", "image exceeds the maximum upload size")
	case errors.Is(err, storage.ErrEmptyFile):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "image file is empty")
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func parseDateField(r *http.Request, field string) (*time.Time, error) {
	v := strings.TrimSpace(r.FormValue(field))
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// formUpload returns the named file field, or nil when it was not sent.
func formUpload(r *http.Request, field string) *Upload {
	if r.MultipartForm == nil {
		return nil
	}
	headers := r.MultipartForm.File[field]
	if len(headers) == 0 {
		return nil
	}
	f, err := headers[0].Open()
	if err != nil {
		return nil
	}
	return &Upload{Filename: headers[0].Filename, Content: f}
}

func cleanupMultipart(r *http.Request) {
	if r.MultipartForm != nil {
		_ = r.MultipartForm.RemoveAll()
	}
}
