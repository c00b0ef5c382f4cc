package service

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// HTTPEmailSender posts operational emails to a transactional email API.
// Failures are logged and dropped; email is a courtesy channel, not a
// durable one.
type HTTPEmailSender struct {
	apiURL     string
	apiKey     string
	from       string
	httpClient *http.Client
}

// NewHTTPEmailSender creates a sender for the given API endpoint.
func NewHTTPEmailSender(apiURL, apiKey, from string) *HTTPEmailSender {
	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Timeout = 15 * time.Second
	retryClient.RetryMax = 2
	retryClient.Logger = nil

	return &HTTPEmailSender{
		apiURL:     apiURL,
		apiKey:     apiKey,
		from:       from,
		httpClient: retryClient.StandardClient(),
	}
}

type emailMessage struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// Send delivers one email, logging any failure.
func (s *HTTPEmailSender) Send(ctx context.Context, to, subject, body string) {
	payload, err := json.Marshal(emailMessage{
		From:    s.from,
		To:      to,
		Subject: subject,
		Text:    body,
	})
	if err != nil {
		slog.Error("Failed to marshal email payload", "to", to, "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewReader(payload))
	if err != nil {
		slog.Error("Failed to create email request", "to", to, "error", err)
		return
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		slog.Error("Failed to send email", "to", to, "error", err)
		return
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("Failed to close email response body", "error", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Error("Email API returned non-2xx status", "to", to, "status", resp.StatusCode)
		return
	}

	slog.Info("Sent ops email", "to", to, "subject", subject)
}
