// Package mailer sends notification emails through the Resend HTTP API.
// Notifications are best-effort: a failed send is logged and dropped so
// the pipeline never stalls on the mail provider.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aaaalabs/kinn-radar/internal/models"
)

const (
	resendEndpoint = "https://api.resend.com/emails"
	sendTimeout    = 15 * time.Second
)

type Mailer struct {
	apiKey   string
	from     string
	notifyTo string
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

func New(apiKey, from, notifyTo string, logger *slog.Logger) *Mailer {
	return &Mailer{
		apiKey:   apiKey,
		from:     from,
		notifyTo: notifyTo,
		endpoint: resendEndpoint,
		client:   &http.Client{Timeout: sendTimeout},
		logger:   logger,
	}
}

// Enabled reports whether the mailer has credentials and a recipient.
// Deployments without mail configuration run silently.
func (m *Mailer) Enabled() bool {
	return m != nil && m.apiKey != "" && m.notifyTo != ""
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// NotifyNewEvents emails a short digest of newly ingested pending events.
// Errors are logged, never returned.
func (m *Mailer) NotifyNewEvents(ctx context.Context, source string, records []models.EventRecord) {
	if !m.Enabled() || len(records) == 0 {
		return
	}

	subject := fmt.Sprintf("Radar: %d neue Events von %s", len(records), source)
	if err := m.send(ctx, subject, digestHTML(source, records)); err != nil {
		m.logger.Error("notification email failed", "source", source, "error", err)
		return
	}
	m.logger.Info("notification email sent", "source", source, "events", len(records))
}

func (m *Mailer) send(ctx context.Context, subject, html string) error {
	payload, err := json.Marshal(sendRequest{
		From:    m.from,
		To:      []string{m.notifyTo},
		Subject: subject,
		HTML:    html,
	})
	if err != nil {
		return fmt.Errorf("encoding mail payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building mail request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting to resend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("resend returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func digestHTML(source string, records []models.EventRecord) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "<h2>Neue Events von %s</h2><ul>", source)
	for _, rec := range records {
		fmt.Fprintf(&buf, "<li><strong>%s</strong>: %s %s, %s</li>",
			rec.Title, rec.Date, rec.Time, rec.LocationOrCity())
	}
	buf.WriteString("</ul><p>Status: pending, bitte im Sheet prüfen.</p>")
	return buf.String()
}
