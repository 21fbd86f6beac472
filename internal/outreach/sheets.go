package outreach

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hibiken/asynq"
)

// SheetsClient forwards registrations to the spreadsheet-ingestion webhook.
// The endpoint is picky about encodings, so a failed multipart submission is
// retried once as URL-encoded form data before the task is handed back to
// the queue for a full retry.
type SheetsClient struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewSheetsClient constructs a SheetsClient. An empty webhookURL yields a
// nil client, which callers treat as the feature being disabled.
func NewSheetsClient(webhookURL string, logger *slog.Logger) *SheetsClient {
	if webhookURL == "" {
		return nil
	}
	return &SheetsClient{
		url:    webhookURL,
		client: &http.Client{Timeout: 15 * time.Second},
		logger: logger,
	}
}

// Forward submits a registration to the webhook.
func (c *SheetsClient) Forward(ctx context.Context, reg Registration) error {
	fields := reg.sheetFields()

	err := c.postMultipart(ctx, fields)
	if err == nil {
		return nil
	}
	c.logger.Warn("sheets multipart submission failed, retrying url-encoded",
		slog.Any("error", err))

	if err := c.postForm(ctx, fields); err != nil {
		return fmt.Errorf("outreach: forward registration: %w", err)
	}
	return nil
}

// HandleRegistrationTask processes outreach:register tasks.
func (c *SheetsClient) HandleRegistrationTask(ctx context.Context, t *asynq.Task) error {
	var reg Registration
	if err := json.Unmarshal(t.Payload(), &reg); err != nil {
		return asynq.SkipRetry
	}
	return c.Forward(ctx, reg)
}

func (c *SheetsClient) postMultipart(ctx context.Context, fields map[string]string) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}
	return c.post(ctx, mw.FormDataContentType(), &buf)
}

func (c *SheetsClient) postForm(ctx context.Context, fields map[string]string) error {
	values := url.Values{}
	for k, v := range fields {
		values.Set(k, v)
	}
	return c.post(ctx, "application/x-www-form-urlencoded",
		strings.NewReader(values.Encode()))
}

func (c *SheetsClient) post(ctx context.Context, contentType string, body io.Reader) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}
