// Package service holds the outbound side channels of the job engine:
// operator notifications for permanently failed jobs.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	standardwebhooks "github.com/standard-webhooks/standard-webhooks/libraries/go"

	"github.com/localpros/hub/internal/models"
)

// EmailSender delivers one operational email. Send errors are the sender's
// problem to log; callers never see them.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string)
}

// FailureNotifierConfig configures the notifier's channels. An empty
// WebhookURL disables the webhook; an empty EmailTo disables email.
type FailureNotifierConfig struct {
	WebhookURL    string
	WebhookSecret string
	EmailTo       string
}

// jobFailedEvent is the webhook payload for a permanent job failure.
type jobFailedEvent struct {
	Type      string         `json:"type"`
	JobID     string         `json:"job_id"`
	Kind      models.JobKind `json:"kind"`
	Error     string         `json:"error"`
	Timestamp time.Time      `json:"timestamp"`
}

// FailureNotifier fans a permanent job failure out to a signed ops webhook
// and an ops mailbox. Delivery is fire-and-forget: a down webhook endpoint
// must never delay or fail a job transition.
type FailureNotifier struct {
	config     FailureNotifierConfig
	httpClient *http.Client
	email      EmailSender
	wg         sync.WaitGroup
}

// NewFailureNotifier creates the notifier. email may be nil when no sender
// is configured.
func NewFailureNotifier(config FailureNotifierConfig, email EmailSender) *FailureNotifier {
	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Timeout = 15 * time.Second
	retryClient.RetryMax = 3
	retryClient.Logger = nil

	return &FailureNotifier{
		config:     config,
		httpClient: retryClient.StandardClient(),
		email:      email,
	}
}

// NotifyJobFailed dispatches the failure to every enabled channel and
// returns immediately.
func (n *FailureNotifier) NotifyJobFailed(ctx context.Context, job *models.Job, detail string) {
	if n.config.WebhookURL != "" {
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()

			deliveryCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
			defer cancel()

			if err := n.deliverWebhook(deliveryCtx, job, detail); err != nil {
				slog.Error("Failed to deliver job failure webhook",
					"job_id", job.ID,
					"error", err,
				)
			}
		}()
	}

	if n.config.EmailTo != "" && n.email != nil {
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()

			emailCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
			defer cancel()

			subject := fmt.Sprintf("[LocalPros Hub] job %s (%s) permanently failed", job.ID, job.Kind)
			body := fmt.Sprintf("Job %s of kind %s failed permanently:\n\n%s\n", job.ID, job.Kind, detail)
			n.email.Send(emailCtx, n.config.EmailTo, subject, body)
		}()
	}
}

// Wait blocks until in-flight notifications finish. Used at shutdown.
func (n *FailureNotifier) Wait() {
	n.wg.Wait()
}

func (n *FailureNotifier) deliverWebhook(ctx context.Context, job *models.Job, detail string) error {
	payloadJSON, err := json.Marshal(jobFailedEvent{
		Type:      "job.failed",
		JobID:     job.ID.String(),
		Kind:      job.Kind,
		Error:     detail,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	wh, err := standardwebhooks.NewWebhook(n.config.WebhookSecret)
	if err != nil {
		return fmt.Errorf("failed to create webhook signer: %w", err)
	}

	messageID := job.ID.String()
	timestamp := time.Now()

	signature, err := wh.Sign(messageID, timestamp, payloadJSON)
	if err != nil {
		return fmt.Errorf("failed to sign webhook: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.config.WebhookURL, bytes.NewReader(payloadJSON))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(standardwebhooks.HeaderWebhookID, messageID)
	req.Header.Set(standardwebhooks.HeaderWebhookSignature, signature)
	req.Header.Set(standardwebhooks.HeaderWebhookTimestamp, fmt.Sprintf("%d", timestamp.Unix()))

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("Failed to close webhook response body", "error", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned non-2xx status: %d", resp.StatusCode)
	}

	return nil
}
