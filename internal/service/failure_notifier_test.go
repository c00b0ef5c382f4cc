package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	standardwebhooks "github.com/standard-webhooks/standard-webhooks/libraries/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localpros/hub/internal/models"
)

const testSigningSecret = "whsec_MfKQ9r8GKYqrTwjUPD8ILPZIo2LaLaSw"

type recordingEmail struct {
	mu       sync.Mutex
	subjects []string
}

func (e *recordingEmail) Send(ctx context.Context, to, subject, body string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subjects = append(e.subjects, subject)
}

func failedJob() *models.Job {
	msg := "rate limited after 5 attempts; remainder permanently failed"

	return &models.Job{
		ID:     uuid.New(),
		Kind:   models.JobKindImageEnrichmentRetry,
		Status: models.JobStatusFailed,
		Error:  &msg,
	}
}

func TestNotifyJobFailedDeliversSignedWebhook(t *testing.T) {
	var (
		mu      sync.Mutex
		body    []byte
		headers http.Header
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		body, _ = io.ReadAll(r.Body)
		headers = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewFailureNotifier(FailureNotifierConfig{
		WebhookURL:    server.URL,
		WebhookSecret: testSigningSecret,
	}, nil)

	job := failedJob()
	notifier.NotifyJobFailed(context.Background(), job, *job.Error)
	notifier.Wait()

	mu.Lock()
	defer mu.Unlock()

	require.NotEmpty(t, body)

	var event struct {
		Type  string `json:"type"`
		JobID string `json:"job_id"`
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &event))
	assert.Equal(t, "job.failed", event.Type)
	assert.Equal(t, job.ID.String(), event.JobID)
	assert.Contains(t, event.Error, "permanently failed")

	// The receiver must be able to verify the signature.
	wh, err := standardwebhooks.NewWebhook(testSigningSecret)
	require.NoError(t, err)
	assert.NoError(t, wh.Verify(body, headers))
}

func TestNotifyJobFailedSendsEmail(t *testing.T) {
	email := &recordingEmail{}
	notifier := NewFailureNotifier(FailureNotifierConfig{EmailTo: "ops@localpros.test"}, email)

	job := failedJob()
	notifier.NotifyJobFailed(context.Background(), job, *job.Error)
	notifier.Wait()

	email.mu.Lock()
	defer email.mu.Unlock()
	require.Len(t, email.subjects, 1)
	assert.Contains(t, email.subjects[0], job.ID.String())
}

func TestNotifyJobFailedNeverBlocksOnDeadEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	server.Close()

	notifier := NewFailureNotifier(FailureNotifierConfig{
		WebhookURL:    server.URL,
		WebhookSecret: testSigningSecret,
	}, nil)

	job := failedJob()

	start := time.Now()
	notifier.NotifyJobFailed(context.Background(), job, *job.Error)
	assert.Less(t, time.Since(start), 100*time.Millisecond, "dispatch must not wait for delivery")

	notifier.Wait()
}

func TestNotifyJobFailedDisabledChannels(t *testing.T) {
	notifier := NewFailureNotifier(FailureNotifierConfig{}, nil)

	notifier.NotifyJobFailed(context.Background(), failedJob(), "boom")
	notifier.Wait()
}

func TestHTTPEmailSenderPostsMessage(t *testing.T) {
	var got emailMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, "Bearer email-key", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := NewHTTPEmailSender(server.URL, "email-key", "hub@localpros.test")
	sender.Send(context.Background(), "ops@localpros.test", "job failed", "details")

	assert.Equal(t, "hub@localpros.test", got.From)
	assert.Equal(t, "ops@localpros.test", got.To)
	assert.Equal(t, "job failed", got.Subject)
}
