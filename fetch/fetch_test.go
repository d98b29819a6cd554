package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bid-analytics/models"
	"bid-analytics/utils"
)

func TestScheme(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{"data/bids.json", "file"},
		{"/abs/path.json", "file"},
		{"file:///tmp/bids.json", "file"},
		{"https://example.com/bids", "https"},
		{"HTTP://example.com/bids", "http"},
		{"browser+https://example.com/dash", "browser+https"},
		{"s3://bucket/key.json", "s3"},
		{"://odd", "file"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Scheme(tt.source), tt.source)
	}
}

func TestFileFetcher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bids.json")
	require.NoError(t, os.WriteFile(path, []byte(`[]`), 0644))

	data, err := FileFetcher{}.Fetch(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))

	data, err = FileFetcher{}.Fetch(context.Background(), "file://"+path)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))

	_, err = FileFetcher{}.Fetch(context.Background(), filepath.Join(t.TempDir(), "missing.json"))
	var re *models.RetrievalError
	assert.ErrorAs(t, err, &re)
}

type staticFetcher []byte

func (s staticFetcher) Fetch(context.Context, string) ([]byte, error) { return s, nil }

func TestRouter(t *testing.T) {
	r := NewRouter()
	r.Handle("HTTPS", staticFetcher("remote"))

	data, err := r.Fetch(context.Background(), "https://example.com/bids")
	require.NoError(t, err)
	assert.Equal(t, "remote", string(data))

	_, err = r.Fetch(context.Background(), "ftp://example.com/bids")
	var re *models.RetrievalError
	require.ErrorAs(t, err, &re)
	assert.Contains(t, re.Error(), "ftp")
}

func newTestHTTPFetcher(attempts int) *HTTPFetcher {
	h := NewHTTPFetcher(5*time.Second, attempts, utils.NewNopLogger())
	h.retry.BaseDelay = time.Millisecond
	return h
}

func TestHTTPFetcherSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	data, err := newTestHTTPFetcher(1).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, `{"data":[]}`, string(data))
}

func TestHTTPFetcherClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newTestHTTPFetcher(3).Fetch(context.Background(), srv.URL)
	var re *models.RetrievalError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusNotFound, re.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPFetcherRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	data, err := newTestHTTPFetcher(3).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
	assert.Equal(t, int32(2), calls.Load())
}

func TestHTTPFetcherSingleAttempt(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestHTTPFetcher(1).Fetch(context.Background(), srv.URL)
	var re *models.RetrievalError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusInternalServerError, re.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestParseS3Source(t *testing.T) {
	bucket, key, err := ParseS3Source("s3://market/2023/bids.json")
	require.NoError(t, err)
	assert.Equal(t, "market", bucket)
	assert.Equal(t, "2023/bids.json", key)

	for _, bad := range []string{"https://x/y", "s3://bucket", "s3:///key", "s3://bucket/"} {
		_, _, err := ParseS3Source(bad)
		assert.Error(t, err, bad)
	}
}
