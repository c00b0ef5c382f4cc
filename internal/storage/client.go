// Package storage uploads enrichment artifacts to an S3-compatible object
// store over its HTTP API and returns durable public URLs.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/localpros/hub/internal/huberrors"
)

// ClientOptions configures the object store client
type ClientOptions struct {
	// BaseURL is the base URL of the storage service, without /storage/v1
	BaseURL string
	// APIKey is the service key used for uploads
	APIKey string
	// Bucket is the target bucket for all uploads
	Bucket string
	// RetryMax is the maximum number of retries (default: 3)
	RetryMax int
	// Timeout is the HTTP client timeout (default: 30 seconds)
	Timeout time.Duration
}

// Client uploads objects and resolves their public URLs.
type Client struct {
	baseURL    string
	apiKey     string
	bucket     string
	httpClient *retryablehttp.Client
}

// NewClient creates an object store client with custom options.
func NewClient(opts ClientOptions) *Client {
	opts.BaseURL = strings.TrimSuffix(opts.BaseURL, "/")

	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RetryMax == 0 {
		opts.RetryMax = 3
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.RetryMax
	retryClient.HTTPClient.Timeout = opts.Timeout
	retryClient.Logger = nil

	return &Client{
		baseURL:    opts.BaseURL,
		apiKey:     opts.APIKey,
		bucket:     opts.Bucket,
		httpClient: retryClient,
	}
}

// Upload stores data at path in the configured bucket and returns the public
// URL. Paths are never overwritten: uploading to an existing path returns a
// ConflictError, which keeps re-run continuations from clobbering images that
// earlier attempts already stored.
func (c *Client) Upload(ctx context.Context, path string, contentType string, data []byte) (string, error) {
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return "", fmt.Errorf("storage: object path is empty")
	}

	reqURL := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.baseURL, c.bucket, path)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "false")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute upload request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("Failed to close response body", "error", err)
		}
	}()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		return c.PublicURL(path), nil
	case resp.StatusCode == http.StatusConflict:
		return "", huberrors.NewConflictError(fmt.Sprintf("object already exists at %s/%s", c.bucket, path))
	default:
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			slog.Error("Failed to read error response body", "error", readErr)
		}

		return "", fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, string(body))
	}
}

// PublicURL returns the public URL for an object path in the bucket.
func (c *Client) PublicURL(path string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", c.baseURL, c.bucket, strings.TrimPrefix(path, "/"))
}
