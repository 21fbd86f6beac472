package outreach

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	registrations []Registration
	emails        []SendEmailPayload
}

func (q *fakeQueue) EnqueueRegistration(ctx context.Context, reg Registration) error {
	q.registrations = append(q.registrations, reg)
	return nil
}

func (q *fakeQueue) EnqueueEmail(ctx context.Context, payload SendEmailPayload) error {
	q.emails = append(q.emails, payload)
	return nil
}

func newOutreachRouter(t *testing.T, queue Enqueuer, sheets, mail bool) chi.Router {
	t.Helper()
	h := NewHandler(HandlerConfig{
		Logger:        discardLogger(),
		Queue:         queue,
		ContactEmail:  "coordinator@munsociety.edu",
		SheetsEnabled: sheets,
		MailEnabled:   mail,
	})
	r := chi.NewRouter()
	r.Route("/api/outreach", h.MountRoutes)
	return r
}

func post(t *testing.T, router http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

func TestRegisterEnqueuesTask(t *testing.T) {
	queue := &fakeQueue{}
	router := newOutreachRouter(t, queue, true, true)

	res := post(t, router, "/api/outreach/register", `{
		"full_name": "Dele Gate",
		"committee1": "UNSC/India/France",
		"email": "delegate@munsociety.edu",
		"phone_number": "9999999999"
	}`)
	require.Equal(t, http.StatusAccepted, res.Code)
	require.Len(t, queue.registrations, 1)
	require.Equal(t, "Dele Gate", queue.registrations[0].FullName)
}

func TestRegisterValidatesBody(t *testing.T) {
	queue := &fakeQueue{}
	router := newOutreachRouter(t, queue, true, true)

	res := post(t, router, "/api/outreach/register", `{"full_name": "No Contact Info"}`)
	require.Equal(t, http.StatusBadRequest, res.Code)
	require.Empty(t, queue.registrations)
}

func TestRegisterDegradesWithoutWebhook(t *testing.T) {
	queue := &fakeQueue{}
	router := newOutreachRouter(t, queue, false, true)

	res := post(t, router, "/api/outreach/register", `{
		"full_name": "Dele Gate",
		"committee1": "UNSC",
		"email": "delegate@munsociety.edu",
		"phone_number": "9999999999"
	}`)
	// Accepted but nothing enqueued; the drop is only logged.
	require.Equal(t, http.StatusAccepted, res.Code)
	require.Empty(t, queue.registrations)
}

func TestContactEnqueuesEmailToSocietyInbox(t *testing.T) {
	queue := &fakeQueue{}
	router := newOutreachRouter(t, queue, true, true)

	res := post(t, router, "/api/outreach/contact", `{
		"name": "Visitor",
		"email": "visitor@example.com",
		"subject": "Sponsorship",
		"message": "We would like to sponsor your conference."
	}`)
	require.Equal(t, http.StatusAccepted, res.Code)
	require.Len(t, queue.emails, 1)
	require.Equal(t, "coordinator@munsociety.edu", queue.emails[0].To)
	require.Equal(t, "visitor@example.com", queue.emails[0].ReplyTo)
	require.Contains(t, queue.emails[0].Subject, "Sponsorship")
	require.Contains(t, queue.emails[0].Body, "We would like to sponsor")
}

func TestContactDegradesWithoutMailConfig(t *testing.T) {
	queue := &fakeQueue{}
	router := newOutreachRouter(t, queue, true, false)

	res := post(t, router, "/api/outreach/contact", `{
		"name": "Visitor",
		"email": "visitor@example.com",
		"message": "Hello"
	}`)
	require.Equal(t, http.StatusAccepted, res.Code)
	require.Empty(t, queue.emails)
}

func TestContactValidatesBody(t *testing.T) {
	queue := &fakeQueue{}
	router := newOutreachRouter(t, queue, true, true)

	res := post(t, router, "/api/outreach/contact", `{"name": "No Message", "email": "x@example.com"}`)
	require.Equal(t, http.StatusBadRequest, res.Code)
	require.Empty(t, queue.emails)
}
