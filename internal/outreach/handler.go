package outreach

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/munsociety/munsociety/internal/platform/httpx"
)

// Enqueuer submits outreach work to the task queue.
type Enqueuer interface {
	EnqueueRegistration(ctx context.Context, reg Registration) error
	EnqueueEmail(ctx context.Context, payload SendEmailPayload) error
}

// Handler wires the public outreach endpoints. Missing third-party
// configuration degrades the feature: submissions are still accepted and
// the drop is logged, so the forms never error out on visitors.
type Handler struct {
	logger        *slog.Logger
	queue         Enqueuer
	contactEmail  string
	sheetsEnabled bool
	mailEnabled   bool
	validator     *validator.Validate
}

// HandlerConfig collects Handler dependencies.
type HandlerConfig struct {
	Logger        *slog.Logger
	Queue         Enqueuer
	ContactEmail  string
	SheetsEnabled bool
	MailEnabled   bool
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		logger:        cfg.Logger,
		queue:         cfg.Queue,
		contactEmail:  cfg.ContactEmail,
		sheetsEnabled: cfg.SheetsEnabled,
		mailEnabled:   cfg.MailEnabled,
		validator:     validator.New(),
	}
}

// MountRoutes registers the outreach routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/register", h.handleRegister)
	r.Post("/contact", h.handleContact)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var reg Registration
	if err := httpx.DecodeJSON(r, &reg); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(reg); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed",
			"full name, email, phone number and a committee preference are required")
		return
	}

	if !h.sheetsEnabled || h.queue == nil {
		h.logger.Warn("registration dropped, spreadsheet webhook not configured",
			slog.String("email", reg.Email))
		httpx.Success(w, http.StatusAccepted, "Registration received")
		return
	}
	if err := h.queue.EnqueueRegistration(r.Context(), reg); err != nil {
		h.logger.Error("enqueue registration", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.Success(w, http.StatusAccepted, "Registration received")
}

func (h *Handler) handleContact(w http.ResponseWriter, r *http.Request) {
	var msg ContactMessage
	if err := httpx.DecodeJSON(r, &msg); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(msg); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed",
			"name, a valid email and a message are required")
		return
	}

	if !h.mailEnabled || h.queue == nil {
		h.logger.Warn("contact message dropped, mail not configured",
			slog.String("from", msg.Email))
		httpx.Success(w, http.StatusAccepted, "Message received")
		return
	}

	subject := msg.Subject
	if subject == "" {
		subject = "Contact form message"
	}
	payload := SendEmailPayload{
		To:      h.contactEmail,
		ReplyTo: msg.Email,
		Subject: fmt.Sprintf("[Contact] %s", subject),
		Body:    fmt.Sprintf("From: %s <%s>\n\n%s", msg.Name, msg.Email, msg.Message),
	}
	if err := h.queue.EnqueueEmail(r.Context(), payload); err != nil {
		h.logger.Error("enqueue contact email", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.Success(w, http.StatusAccepted, "Message received")
}
