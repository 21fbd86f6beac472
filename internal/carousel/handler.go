package carousel

import (
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/munsociety/munsociety/internal/auth"
	"github.com/munsociety/munsociety/internal/platform/httpx"
	"github.com/munsociety/munsociety/internal/storage"
)

const (
	multipartMemory = 32 << 20
	imageURLPrefix  = "/uploads/carousel/"
)

// Handler wires carousel HTTP endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the public listing plus the admin-gated mutations.
func (h *Handler) MountRoutes(r chi.Router, mw auth.Middleware) {
	r.Get("/", h.handleListActive)
	r.With(mw.RequireAdmin).Post("/", h.handleCreate)
	r.With(mw.RequireAdmin).Put("/{id}", h.handleUpdate)
	r.With(mw.RequireAdmin).Delete("/{id}", h.handleDelete)
}

// MountAdminRoutes registers the unfiltered listing; the caller gates the
// router.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Get("/carousel", h.handleList)
}

type imagePayload struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ImageURL     string    `json:"image_url"`
	DisplayOrder int       `json:"display_order"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

func toImagePayload(img *Image) imagePayload {
	return imagePayload{
		ID:           img.ID,
		Title:        img.Title,
		Description:  img.Description,
		ImageURL:     imageURLPrefix + img.Filename,
		DisplayOrder: img.DisplayOrder,
		Active:       img.Active,
		CreatedAt:    img.CreatedAt,
	}
}

func imageListResponse(images []Image) map[string]any {
	payloads := make([]imagePayload, 0, len(images))
	for i := range images {
		payloads = append(payloads, toImagePayload(&images[i]))
	}
	return map[string]any{"success": true, "images": payloads}
}

func (h *Handler) handleListActive(w http.ResponseWriter, r *http.Request) {
	images, err := h.service.ListActive(r.Context())
	if err != nil {
		h.logger.Error("list carousel", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, imageListResponse(images))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	images, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("admin list carousel", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, imageListResponse(images))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "expected multipart form data")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	headers := r.MultipartForm.File["image"]
	if len(headers) == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "image is required")
		return
	}
	if !isImagePart(headers[0]) {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "image must be sent with an image content type")
		return
	}
	f, err := headers[0].Open()
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "could not read uploaded image")
		return
	}
	defer f.Close()

	in := CreateInput{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Active:      true,
		Image:       Upload{Filename: headers[0].Filename, Content: f},
	}
	if v := r.FormValue("display_order"); v != "" {
		order, err := strconv.Atoi(v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "display_order must be a number")
			return
		}
		in.DisplayOrder = order
	}
	if v := r.FormValue("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "active must be a boolean")
			return
		}
		in.Active = active
	}

	img, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.respondUploadError(w, "create slide", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"success": true, "image": toImagePayload(img)})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid image id")
		return
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "expected multipart form data")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	var in UpdateInput
	if _, ok := r.MultipartForm.Value["title"]; ok {
		title := r.FormValue("title")
		in.Title = &title
	}
	if _, ok := r.MultipartForm.Value["description"]; ok {
		description := r.FormValue("description")
		in.Description = &description
	}
	if v := r.FormValue("display_order"); v != "" {
		order, err := strconv.Atoi(v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "display_order must be a number")
			return
		}
		in.DisplayOrder = &order
	}
	if v := r.FormValue("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "active must be a boolean")
			return
		}
		in.Active = &active
	}
	if headers := r.MultipartForm.File["image"]; len(headers) > 0 {
		if !isImagePart(headers[0]) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "image must be sent with an image content type")
			return
		}
		f, err := headers[0].Open()
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "could not read uploaded image")
			return
		}
		defer f.Close()
		in.Image = &Upload{Filename: headers[0].Filename, Content: f}
	}

	img, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		h.respondUploadError(w, "update slide", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "image": toImagePayload(img)})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid image id")
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Success(w, http.StatusOK, "Carousel image deleted successfully")
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

func isImagePart(header *multipart.FileHeader) bool {
	return strings.HasPrefix(header.Header.Get("Content-Type"), "image/")
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, "id")), 10, 64)
}
