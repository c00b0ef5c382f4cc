package enrichment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localpros/hub/internal/models"
)

func testFetcher() *ImageFetcher {
	return NewImageFetcher(0, 5*time.Second)
}

func item(server *httptest.Server, path string) models.ImageItem {
	return models.ImageItem{
		ReviewID:  uuid.New(),
		SourceURL: server.URL + path,
	}
}

func TestFetchBatchDownloadsAllImages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-bytes-" + r.URL.Path))
	}))
	defer server.Close()

	items := []models.ImageItem{item(server, "/a.png"), item(server, "/b.png")}

	result, err := testFetcher().FetchBatch(context.Background(), items)
	require.NoError(t, err)

	assert.False(t, result.RateLimited)
	assert.Empty(t, result.Remaining)
	assert.Empty(t, result.Failed)
	require.Len(t, result.Downloaded, 2)
	assert.Equal(t, "image/png", result.Downloaded[0].ContentType)
	assert.Equal(t, []byte("png-bytes-/a.png"), result.Downloaded[0].Data)
}

func TestFetchBatchStopsOnRateLimit(t *testing.T) {
	// The third image answers 429: the first two download, the batch stops,
	// and the remainder starts with the rate-limited item.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/c.jpg" {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	items := []models.ImageItem{
		item(server, "/a.jpg"),
		item(server, "/b.jpg"),
		item(server, "/c.jpg"),
	}

	result, err := testFetcher().FetchBatch(context.Background(), items)
	require.NoError(t, err)

	assert.True(t, result.RateLimited)
	assert.Len(t, result.Downloaded, 2)
	require.Len(t, result.Remaining, 1)
	assert.Equal(t, items[2], result.Remaining[0])
}

func TestFetchBatchTreats503WithRetryAfterAsRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	items := []models.ImageItem{item(server, "/a.jpg")}
	result, err := testFetcher().FetchBatch(context.Background(), items)
	require.NoError(t, err)

	assert.True(t, result.RateLimited)
	require.Len(t, result.Remaining, 1)
	assert.Equal(t, items[0], result.Remaining[0])
}

func TestFetchBatchRateLimitNotRetried(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	result, err := testFetcher().FetchBatch(context.Background(), []models.ImageItem{item(server, "/a.jpg")})
	require.NoError(t, err)

	assert.True(t, result.RateLimited)
	assert.Equal(t, 1, hits)
}

func TestFetchBatchItemFailuresAreIndependent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.jpg" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	items := []models.ImageItem{
		item(server, "/a.jpg"),
		item(server, "/missing.jpg"),
		item(server, "/b.jpg"),
	}

	result, err := testFetcher().FetchBatch(context.Background(), items)
	require.NoError(t, err)

	assert.False(t, result.RateLimited)
	assert.Len(t, result.Downloaded, 2)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, items[1], result.Failed[0].Item)
	assert.ErrorContains(t, result.Failed[0].Err, "status 404")
}

func TestFetchBatchDefaultsContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Content-Type"] = nil
		_, _ = w.Write([]byte{0xFF, 0xD8})
	}))
	defer server.Close()

	result, err := testFetcher().FetchBatch(context.Background(), []models.ImageItem{item(server, "/a")})
	require.NoError(t, err)
	require.Len(t, result.Downloaded, 1)
	assert.Equal(t, "image/jpeg", result.Downloaded[0].ContentType)
}
