package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localpros/hub/internal/huberrors"
	"github.com/localpros/hub/internal/models"
)

type fakeFetcher struct {
	result *FetchResult
	err    error
}

func (f *fakeFetcher) FetchBatch(ctx context.Context, items []models.ImageItem) (*FetchResult, error) {
	return f.result, f.err
}

type fakeUploader struct {
	uploads   map[string][]byte
	uploadErr error
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{uploads: make(map[string][]byte)}
}

func (u *fakeUploader) Upload(ctx context.Context, path string, contentType string, data []byte) (string, error) {
	if u.uploadErr != nil {
		return "", u.uploadErr
	}

	u.uploads[path] = data

	return u.PublicURL(path), nil
}

func (u *fakeUploader) PublicURL(path string) string {
	return "https://cdn.localpros.test/" + path
}

type fakeReviewStore struct {
	urls   map[uuid.UUID]string
	setErr error
}

func newFakeReviewStore() *fakeReviewStore {
	return &fakeReviewStore{urls: make(map[uuid.UUID]string)}
}

func (s *fakeReviewStore) SetReviewerImageURL(ctx context.Context, reviewID uuid.UUID, url string) error {
	if s.setErr != nil {
		return s.setErr
	}

	s.urls[reviewID] = url

	return nil
}

func imagePayload(t *testing.T, contractorID uuid.UUID, attempt int, items ...models.ImageItem) *models.Job {
	t.Helper()

	payload, err := json.Marshal(models.ImageEnrichmentPayload{
		ContractorID:  contractorID,
		Images:        items,
		AttemptNumber: attempt,
	})
	require.NoError(t, err)

	return &models.Job{ID: uuid.New(), Kind: models.JobKindImageEnrichment, Payload: payload}
}

func TestImageExecutorStoresAllImages(t *testing.T) {
	contractorID := uuid.New()
	itemA := models.ImageItem{ReviewID: uuid.New(), SourceURL: "https://img.example/a.png"}
	itemB := models.ImageItem{ReviewID: uuid.New(), SourceURL: "https://img.example/b.jpg"}

	fetcher := &fakeFetcher{result: &FetchResult{Downloaded: []FetchedImage{
		{Item: itemA, Data: []byte("a"), ContentType: "image/png"},
		{Item: itemB, Data: []byte("b"), ContentType: "image/jpeg"},
	}}}
	uploader := newFakeUploader()
	reviews := newFakeReviewStore()

	executor := NewImageEnrichmentExecutor(fetcher, uploader, reviews, nil)

	result, err := executor.Execute(context.Background(), imagePayload(t, contractorID, 0, itemA, itemB))
	require.NoError(t, err)

	assert.False(t, result.RateLimited)
	assert.Nil(t, result.Continuation)
	assert.Equal(t, "stored 2 of 2 images", result.Note)

	assert.Contains(t, uploader.uploads, fmt.Sprintf("%s/%s.png", contractorID, itemA.ReviewID))
	assert.Equal(t,
		fmt.Sprintf("https://cdn.localpros.test/%s/%s.png", contractorID, itemA.ReviewID),
		reviews.urls[itemA.ReviewID])
	assert.Contains(t, reviews.urls, itemB.ReviewID)
}

func TestImageExecutorBuildsContinuationOnRateLimit(t *testing.T) {
	contractorID := uuid.New()
	itemA := models.ImageItem{ReviewID: uuid.New(), SourceURL: "https://img.example/a.jpg"}
	itemB := models.ImageItem{ReviewID: uuid.New(), SourceURL: "https://img.example/b.jpg"}
	itemC := models.ImageItem{ReviewID: uuid.New(), SourceURL: "https://img.example/c.jpg"}

	fetcher := &fakeFetcher{result: &FetchResult{
		Downloaded: []FetchedImage{
			{Item: itemA, Data: []byte("a"), ContentType: "image/jpeg"},
			{Item: itemB, Data: []byte("b"), ContentType: "image/jpeg"},
		},
		Remaining:   []models.ImageItem{itemC},
		RateLimited: true,
	}}
	reviews := newFakeReviewStore()

	executor := NewImageEnrichmentExecutor(fetcher, newFakeUploader(), reviews, nil)

	result, err := executor.Execute(context.Background(), imagePayload(t, contractorID, 0, itemA, itemB, itemC))
	require.NoError(t, err)

	assert.True(t, result.RateLimited)
	assert.Equal(t, "stored 2 of 3 images before rate limit, 1 remaining", result.Note)
	assert.Len(t, reviews.urls, 2)

	require.NotNil(t, result.Continuation)
	assert.Equal(t, 1, result.Continuation.Attempt)

	var remainder models.ImageEnrichmentPayload
	require.NoError(t, json.Unmarshal(result.Continuation.Payload, &remainder))
	assert.Equal(t, contractorID, remainder.ContractorID)
	assert.Equal(t, []models.ImageItem{itemC}, remainder.Images)
	assert.Equal(t, 1, remainder.AttemptNumber)
}

func TestImageExecutorIncrementsAttemptOnRetryKind(t *testing.T) {
	itemA := models.ImageItem{ReviewID: uuid.New(), SourceURL: "https://img.example/a.jpg"}

	fetcher := &fakeFetcher{result: &FetchResult{
		Remaining:   []models.ImageItem{itemA},
		RateLimited: true,
	}}

	executor := NewImageEnrichmentExecutor(fetcher, newFakeUploader(), newFakeReviewStore(), nil)

	result, err := executor.Execute(context.Background(), imagePayload(t, uuid.New(), 2, itemA))
	require.NoError(t, err)

	require.NotNil(t, result.Continuation)
	assert.Equal(t, 3, result.Continuation.Attempt)
}

func TestImageExecutorReusesExistingObject(t *testing.T) {
	contractorID := uuid.New()
	itemA := models.ImageItem{ReviewID: uuid.New(), SourceURL: "https://img.example/a.jpg"}

	fetcher := &fakeFetcher{result: &FetchResult{Downloaded: []FetchedImage{
		{Item: itemA, Data: []byte("a"), ContentType: "image/jpeg"},
	}}}
	uploader := newFakeUploader()
	uploader.uploadErr = huberrors.NewConflictError("object already exists")
	reviews := newFakeReviewStore()

	executor := NewImageEnrichmentExecutor(fetcher, uploader, reviews, nil)

	result, err := executor.Execute(context.Background(), imagePayload(t, contractorID, 0, itemA))
	require.NoError(t, err)

	assert.Equal(t, "stored 1 of 1 images", result.Note)
	assert.Equal(t,
		fmt.Sprintf("https://cdn.localpros.test/%s/%s.jpg", contractorID, itemA.ReviewID),
		reviews.urls[itemA.ReviewID])
}

func TestImageExecutorCountsStoreFailures(t *testing.T) {
	itemA := models.ImageItem{ReviewID: uuid.New(), SourceURL: "https://img.example/a.jpg"}

	fetcher := &fakeFetcher{result: &FetchResult{Downloaded: []FetchedImage{
		{Item: itemA, Data: []byte("a"), ContentType: "image/jpeg"},
	}}}
	uploader := newFakeUploader()
	uploader.uploadErr = errors.New("storage unavailable")

	executor := NewImageEnrichmentExecutor(fetcher, uploader, newFakeReviewStore(), nil)

	result, err := executor.Execute(context.Background(), imagePayload(t, uuid.New(), 0, itemA))
	require.NoError(t, err)

	assert.Equal(t, "stored 0 of 1 images (1 failed)", result.Note)
}

func TestImageExecutorEmptyPayload(t *testing.T) {
	executor := NewImageEnrichmentExecutor(&fakeFetcher{}, newFakeUploader(), newFakeReviewStore(), nil)

	result, err := executor.Execute(context.Background(), imagePayload(t, uuid.New(), 0))
	require.NoError(t, err)
	assert.Equal(t, "no images to enrich", result.Note)
}

func TestImageExecutorRejectsMalformedPayload(t *testing.T) {
	executor := NewImageEnrichmentExecutor(&fakeFetcher{}, newFakeUploader(), newFakeReviewStore(), nil)

	_, err := executor.Execute(context.Background(), &models.Job{Payload: json.RawMessage(`not-json`)})
	assert.ErrorContains(t, err, "invalid image enrichment payload")
}
