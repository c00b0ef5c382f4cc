// Package enrichment implements the background executors that enrich
// contractor records: reviewer image mirroring and review summarization.
package enrichment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/localpros/hub/internal/models"
)

// maxImageBytes caps a single downloaded image.
const maxImageBytes = 10 << 20

// FetchedImage is one successfully downloaded reviewer image.
type FetchedImage struct {
	Item        models.ImageItem
	Data        []byte
	ContentType string
}

// FetchFailure is one image that could not be downloaded. Failures are
// per-item: they never stop the rest of the batch.
type FetchFailure struct {
	Item models.ImageItem
	Err  error
}

// FetchResult is the outcome of one batch. When RateLimited is set, Remaining
// holds every item that was not attempted, starting with the one that hit the
// limit.
type FetchResult struct {
	Downloaded  []FetchedImage
	Failed      []FetchFailure
	Remaining   []models.ImageItem
	RateLimited bool
}

// ImageFetcher downloads reviewer images from their source hosts, pacing
// requests so a batch does not hammer a single provider.
type ImageFetcher struct {
	httpClient  *retryablehttp.Client
	limiter     *rate.Limiter
	itemTimeout time.Duration
}

// NewImageFetcher creates a fetcher that waits at least delay between
// requests and bounds each download by itemTimeout.
func NewImageFetcher(delay, itemTimeout time.Duration) *ImageFetcher {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 2
	retryClient.Logger = nil
	// A rate-limit response is a signal to stop the whole batch, not a
	// transient error, so it must surface immediately instead of being
	// retried away.
	retryClient.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if isRateLimitResponse(resp) {
			return false, nil
		}

		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}

	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}

	return &ImageFetcher{
		httpClient:  retryClient,
		limiter:     rate.NewLimiter(limit, 1),
		itemTimeout: itemTimeout,
	}
}

// FetchBatch downloads items in order until the batch is done or a provider
// answers 429. Individual download failures are recorded and skipped; only a
// rate limit stops the batch.
func (f *ImageFetcher) FetchBatch(ctx context.Context, items []models.ImageItem) (*FetchResult, error) {
	result := &FetchResult{}

	for i, item := range items {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}

		data, contentType, err := f.fetchOne(ctx, item)
		if err != nil {
			if isRateLimited(err) {
				result.RateLimited = true
				result.Remaining = items[i:]

				return result, nil
			}

			result.Failed = append(result.Failed, FetchFailure{Item: item, Err: err})
			continue
		}

		result.Downloaded = append(result.Downloaded, FetchedImage{
			Item:        item,
			Data:        data,
			ContentType: contentType,
		})
	}

	return result, nil
}

type rateLimitedError struct {
	url string
}

func (e *rateLimitedError) Error() string {
	return fmt.Sprintf("source rate limited request for %s", e.url)
}

func isRateLimited(err error) bool {
	var rl *rateLimitedError

	return errors.As(err, &rl)
}

// isRateLimitResponse reports whether the response signals a rate limit:
// a 429, or a 503 carrying a Retry-After header.
func isRateLimitResponse(resp *http.Response) bool {
	if resp == nil {
		return false
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return true
	}

	return resp.StatusCode == http.StatusServiceUnavailable && resp.Header.Get("Retry-After") != ""
}

func (f *ImageFetcher) fetchOne(ctx context.Context, item models.ImageItem) ([]byte, string, error) {
	itemCtx, cancel := context.WithTimeout(ctx, f.itemTimeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(itemCtx, http.MethodGet, item.SourceURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("Failed to close response body", "error", err)
		}
	}()

	if isRateLimitResponse(resp) {
		return nil, "", &rateLimitedError{url: item.SourceURL}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image body: %w", err)
	}
	if len(data) > maxImageBytes {
		return nil, "", fmt.Errorf("image exceeds %d byte limit", maxImageBytes)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}

	return data, contentType, nil
}
