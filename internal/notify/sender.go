package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/yuin/goldmark"
)

// Sender is the delivery collaborator. Implementations abstract email/SMS
// and must honor ctx cancellation.
type Sender interface {
	Send(ctx context.Context, recipientContact, subject, body string) error
}

// LogSender writes each digest as a structured log line. It is the default
// when no relay is configured.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(ctx context.Context, recipientContact, subject, body string) error {
	s.Logger.InfoContext(ctx, "notification delivered",
		"to", recipientContact,
		"subject", subject,
		"body_bytes", len(body),
	)
	return nil
}

// WebhookSender posts digests to an HTTP relay that owns the actual
// email/SMS transport. The markdown body is also sent rendered as HTML.
type WebhookSender struct {
	url    string
	client *http.Client
	md     goldmark.Markdown
}

type webhookPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
	HTML    string `json:"html"`
}

// NewWebhookSender returns a sender posting to url. A nil client gets a
// client with a 30s ceiling; per-send deadlines come from ctx.
func NewWebhookSender(url string, client *http.Client) *WebhookSender {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &WebhookSender{url: url, client: client, md: goldmark.New()}
}

func (s *WebhookSender) Send(ctx context.Context, recipientContact, subject, body string) error {
	var html bytes.Buffer
	if err := s.md.Convert([]byte(body), &html); err != nil {
		return fmt.Errorf("render digest html: %w", err)
	}

	raw, err := json.Marshal(webhookPayload{
		To:      recipientContact,
		Subject: subject,
		Text:    body,
		HTML:    html.String(),
	})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}
