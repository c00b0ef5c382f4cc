package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localpros/hub/internal/huberrors"
)

func TestClientUpload(t *testing.T) {
	var gotPath, gotUpsert, gotAuth string
	var gotBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUpsert = r.Header.Get("x-upsert")
		gotAuth = r.Header.Get("Authorization")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(ClientOptions{
		BaseURL: server.URL,
		APIKey:  "service-key",
		Bucket:  "review-images",
	})

	url, err := client.Upload(context.Background(), "contractor-1/review-a.jpg", "image/jpeg", []byte("jpeg-bytes"))
	require.NoError(t, err)

	assert.Equal(t, "/storage/v1/object/review-images/contractor-1/review-a.jpg", gotPath)
	assert.Equal(t, "false", gotUpsert)
	assert.Equal(t, "Bearer service-key", gotAuth)
	assert.Equal(t, []byte("jpeg-bytes"), gotBody)
	assert.Equal(t, server.URL+"/storage/v1/object/public/review-images/contractor-1/review-a.jpg", url)
}

func TestClientUploadExistingPathConflicts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer server.Close()

	client := NewClient(ClientOptions{BaseURL: server.URL, Bucket: "review-images"})

	_, err := client.Upload(context.Background(), "contractor-1/review-a.jpg", "image/jpeg", []byte("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, huberrors.ErrConflict)
}

func TestClientUploadRejectsEmptyPath(t *testing.T) {
	client := NewClient(ClientOptions{BaseURL: "http://storage.local", Bucket: "review-images"})

	_, err := client.Upload(context.Background(), "/", "image/jpeg", []byte("x"))
	assert.Error(t, err)
}

func TestClientPublicURL(t *testing.T) {
	client := NewClient(ClientOptions{BaseURL: "http://storage.local/", Bucket: "review-images"})

	assert.Equal(t,
		"http://storage.local/storage/v1/object/public/review-images/a/b.jpg",
		client.PublicURL("/a/b.jpg"))
}
