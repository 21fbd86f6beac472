package members

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/munsociety/munsociety/internal/platform/httpx"
	"github.com/munsociety/munsociety/internal/shared"
)

const adminPageLimit = 100

// Handler wires member management HTTP endpoints. All of them are admin-only;
// the caller gates the router.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers the member management routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/members", h.handleList)
	r.Put("/members/{id}", h.handleUpdate)
	r.Delete("/members/{id}", h.handleDelete)
	r.Post("/members/add-email", h.handleAddEmail)
	r.Get("/dashboard/stats", h.handleStats)
}

type memberPayload struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toMemberPayload(m *Member) memberPayload {
	return memberPayload{
		ID:        m.ID,
		Email:     m.Email,
		Name:      m.Name,
		Role:      m.Role.String(),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filters := Filters{
		ListFilters: shared.ParseListFilters(r, adminPageLimit),
		Role:        r.URL.Query().Get("role"),
	}
	list, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	payloads := make([]memberPayload, 0, len(list))
	for i := range list {
		payloads = append(payloads, toMemberPayload(&list[i]))
	}
	page := shared.NewPagination(filters.Page, filters.Limit, total)
	httpx.JSON(w, http.StatusOK, map[string]any{
		"members": payloads,
		"total":   total,
		"page":    page.Page,
		"pages":   page.Pages,
	})
}

type updateRequest struct {
	Email    *string `json:"email" validate:"omitempty,email"`
	Name     *string `json:"name"`
	Role     *string `json:"role"`
	Password *string `json:"password"`
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid member id")
		return
	}
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "email must be a valid address")
		return
	}

	m, err := h.service.Update(r.Context(), id, UpdateInput{
		Email:    req.Email,
		Name:     req.Name,
		Role:     req.Role,
		Password: req.Password,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "member": toMemberPayload(m)})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid member id")
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("member deleted", slog.Int64("id", id))
	httpx.Success(w, http.StatusOK, "Member deleted successfully")
}

type addEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"required"`
	Role  string `json:"role" validate:"required"`
}

func (h *Handler) handleAddEmail(w http.ResponseWriter, r *http.Request) {
	var req addEmailRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "email, name and role are required")
		return
	}

	if err := h.service.AddAllowedEmail(r.Context(), req.Email, req.Name, req.Role); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Success(w, http.StatusCreated, "Email added to the allow list")
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.logger.Error("dashboard stats", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "stats": stats})
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
