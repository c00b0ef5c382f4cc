package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/localpros/hub/internal/huberrors"
	"github.com/localpros/hub/internal/jobs"
	"github.com/localpros/hub/internal/models"
	"github.com/localpros/hub/internal/observability"
)

type batchFetcher interface {
	FetchBatch(ctx context.Context, items []models.ImageItem) (*FetchResult, error)
}

type imageUploader interface {
	Upload(ctx context.Context, path string, contentType string, data []byte) (string, error)
	PublicURL(path string) string
}

type reviewImageStore interface {
	SetReviewerImageURL(ctx context.Context, reviewID uuid.UUID, url string) error
}

// ImageEnrichmentExecutor mirrors reviewer images from their external hosts
// into our object store and points the review rows at the stored copies. It
// handles both the initial kind and its retry kind: the payload shape is the
// same, only the attempt counter differs.
type ImageEnrichmentExecutor struct {
	fetcher batchFetcher
	store   imageUploader
	reviews reviewImageStore
	metrics observability.HubMetrics
}

// NewImageEnrichmentExecutor creates the executor. metrics may be nil.
func NewImageEnrichmentExecutor(fetcher batchFetcher, store imageUploader, reviews reviewImageStore, metrics observability.HubMetrics) *ImageEnrichmentExecutor {
	return &ImageEnrichmentExecutor{
		fetcher: fetcher,
		store:   store,
		reviews: reviews,
		metrics: metrics,
	}
}

// Execute downloads the payload's images in order, uploading each and
// recording its public URL on the review row. A 429 from a source host stops
// the batch and returns the untouched remainder as a rate-limit continuation.
func (e *ImageEnrichmentExecutor) Execute(ctx context.Context, job *models.Job) (*jobs.ExecutionResult, error) {
	var payload models.ImageEnrichmentPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return nil, fmt.Errorf("invalid image enrichment payload: %w", err)
	}

	total := len(payload.Images)
	if total == 0 {
		return &jobs.ExecutionResult{Note: "no images to enrich"}, nil
	}

	fetched, err := e.fetcher.FetchBatch(ctx, payload.Images)
	if err != nil {
		return nil, fmt.Errorf("fetch image batch: %w", err)
	}

	stored := 0
	failed := len(fetched.Failed)

	for _, img := range fetched.Downloaded {
		url, err := e.storeImage(ctx, payload.ContractorID, img)
		if err != nil {
			slog.Warn("failed to store reviewer image",
				"job_id", job.ID,
				"review_id", img.Item.ReviewID,
				"error", err,
			)
			failed++
			continue
		}

		if err := e.reviews.SetReviewerImageURL(ctx, img.Item.ReviewID, url); err != nil {
			slog.Warn("failed to record reviewer image url",
				"job_id", job.ID,
				"review_id", img.Item.ReviewID,
				"error", err,
			)
			failed++
			continue
		}

		stored++
	}

	for _, failure := range fetched.Failed {
		slog.Warn("failed to download reviewer image",
			"job_id", job.ID,
			"review_id", failure.Item.ReviewID,
			"source_url", failure.Item.SourceURL,
			"error", failure.Err,
		)
	}

	if e.metrics != nil {
		e.metrics.RecordImageFetches(ctx, stored, failed, len(fetched.Remaining))
	}

	if fetched.RateLimited {
		attempt := payload.AttemptNumber + 1
		remainder, err := json.Marshal(models.ImageEnrichmentPayload{
			ContractorID:  payload.ContractorID,
			Images:        fetched.Remaining,
			AttemptNumber: attempt,
		})
		if err != nil {
			return nil, fmt.Errorf("marshal continuation payload: %w", err)
		}

		return &jobs.ExecutionResult{
			Note:        fmt.Sprintf("stored %d of %d images before rate limit, %d remaining", stored, total, len(fetched.Remaining)),
			RateLimited: true,
			Continuation: &jobs.Continuation{
				Payload: remainder,
				Attempt: attempt,
			},
		}, nil
	}

	note := fmt.Sprintf("stored %d of %d images", stored, total)
	if failed > 0 {
		note = fmt.Sprintf("%s (%d failed)", note, failed)
	}

	return &jobs.ExecutionResult{Note: note}, nil
}

// storeImage uploads one image. An existing object at the path means an
// earlier attempt already stored it, so its public URL is reused.
func (e *ImageEnrichmentExecutor) storeImage(ctx context.Context, contractorID uuid.UUID, img FetchedImage) (string, error) {
	path := fmt.Sprintf("%s/%s%s", contractorID, img.Item.ReviewID, extensionFor(img.ContentType))

	url, err := e.store.Upload(ctx, path, img.ContentType, img.Data)
	if err != nil {
		if errors.Is(err, huberrors.ErrConflict) {
			return e.store.PublicURL(path), nil
		}

		return "", err
	}

	return url, nil
}

func extensionFor(contentType string) string {
	switch strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])) {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".jpg"
	}
}
