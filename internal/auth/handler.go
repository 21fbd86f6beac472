package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/munsociety/munsociety/internal/observability"
	"github.com/munsociety/munsociety/internal/platform/httpx"
	"github.com/munsociety/munsociety/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	metrics   *observability.Metrics
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, metrics *observability.Metrics) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		metrics:   metrics,
		validator: validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router, mw Middleware) {
	r.Post("/login", h.handleLogin)
	r.Post("/check-email", h.handleCheckEmail)
	r.Post("/create-account", h.handleCreateAccount)
	r.With(mw.RequireUser).Get("/session", h.handleSession)
	r.Post("/logout", h.handleLogout)
}

type userPayload struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

func toUserPayload(u *shared.SessionUser) userPayload {
	return userPayload{ID: u.UserID, Email: u.Email, Name: u.Name, Role: u.Role.String()}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "email and password are required")
		return
	}

	user, token, err := h.service.Login(r.Context(), req.Email, req.Password, r.RemoteAddr, r.UserAgent())
	if err != nil {
		h.metrics.LoginFailure()
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"token":   token,
		"user":    toUserPayload(user),
	})
}

type emailCheckRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (h *Handler) handleCheckEmail(w http.ResponseWriter, r *http.Request) {
	var req emailCheckRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "a valid email is required")
		return
	}

	status, err := h.service.CheckEmail(r.Context(), req.Email)
	if err != nil {
		h.logger.Error("check email", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	resp := map[string]any{
		"success":        true,
		"allowed":        status.Allowed,
		"account_exists": status.AccountExists,
	}
	if status.Allowed {
		resp["name"] = status.Name
		resp["role"] = status.Role.String()
	}
	httpx.JSON(w, http.StatusOK, resp)
}

type createAccountRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

func (h *Handler) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "a valid email and a password of at least 8 characters are required")
		return
	}

	if _, err := h.service.CreateAccount(r.Context(), req.Email, req.Password); err != nil {
		h.logger.Warn("create account rejected", slog.String("email", req.Email), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.Success(w, http.StatusCreated, "Account created successfully")
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	user := shared.UserFromContext(r.Context())
	// Re-resolve the profile so a removed account cannot keep using a
	// still-live token, and so role or name changes show up immediately.
	profile, err := h.service.Profile(r.Context(), user.UserID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
			return
		}
		h.logger.Error("resolve session profile", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user": userPayload{
			ID:    profile.ID,
			Email: profile.Email,
			Name:  profile.Name,
			Role:  profile.Role.String(),
		},
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := BearerToken(r)
	if token != "" {
		if err := h.service.Logout(r.Context(), token); err != nil {
			h.logger.Warn("logout", slog.Any("error", err))
		}
	}
	httpx.Success(w, http.StatusOK, "Logged out")
}
