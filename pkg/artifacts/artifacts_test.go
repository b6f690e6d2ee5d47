package artifacts

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngData = []byte("\x89PNG\r\n\x1a\nfake-image-bytes")

type shooter struct {
	img []byte
	err error
}

func (s shooter) Screenshot(context.Context) ([]byte, error) { return s.img, s.err }

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func fixedClock() time.Time { return time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC) }

func TestFileName(t *testing.T) {
	assert.Equal(t, "TestLogin_20240309_140507.png", FileName("TestLogin", fixedClock()))
	assert.Equal(t, "TestLogin_locked_out_user_20240309_140507.png", FileName("TestLogin/locked out user", fixedClock()))
}

func TestCapture(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "screenshots")
	r := NewRecorder(dir, WithClock(fixedClock), WithLogger(quiet))

	path, err := r.Capture(context.Background(), shooter{img: pngData}, "TestCart")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "TestCart_20240309_140507.png"), path)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, pngData, got)
}

func TestCapture_ScreenshotError(t *testing.T) {
	r := NewRecorder(t.TempDir(), WithLogger(quiet))
	_, err := r.Capture(context.Background(), shooter{err: errors.New("page closed")}, "TestX")
	assert.ErrorContains(t, err, "screenshot TestX: page closed")
}

func TestOnFailure_PassingTestCapturesNothing(t *testing.T) {
	dir := t.TempDir()
	r := NewRecorder(dir, WithLogger(quiet))

	t.Run("inner", func(t *testing.T) {
		r.OnFailure(t, shooter{img: pngData})
	})

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// fakeS3 answers the handful of S3 calls the uploader makes.
type fakeS3 struct {
	mu      sync.Mutex
	buckets map[string]bool
	objects map[string][]byte
	types   map[string]string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{buckets: map[string]bool{}, objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, _ := url.PathUnescape(r.URL.Path)
	bucket, key, _ := strings.Cut(strings.TrimPrefix(p, "/"), "/")
	switch {
	case key == "" && r.Method == http.MethodHead:
		if !f.buckets[bucket] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case key == "" && r.Method == http.MethodPut:
		f.buckets[bucket] = true
		w.WriteHeader(http.StatusOK)
	case key != "" && r.Method == http.MethodPut:
		if !f.buckets[bucket] {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchBucket</Code><Message>missing</Message></Error>`)
			return
		}
		body, _ := io.ReadAll(r.Body)
		f.objects[bucket+"/"+key] = body
		f.types[bucket+"/"+key] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"0123456789abcdef0123456789abcdef"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func newTestUploader(t *testing.T, fake *fakeS3) *Uploader {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	u, err := NewUploader(StoreConfig{
		Endpoint:  strings.TrimPrefix(srv.URL, "http://"),
		AccessKey: "minio",
		SecretKey: "minio123",
		Bucket:    "shopcheck-artifacts",
		Region:    "us-east-1",
		Prefix:    "runs/7",
	})
	require.NoError(t, err)
	return u
}

func TestUploader_EnsureBucketAndUpload(t *testing.T) {
	fake := newFakeS3()
	u := newTestUploader(t, fake)
	ctx := context.Background()

	require.NoError(t, u.EnsureBucket(ctx))
	require.NoError(t, u.EnsureBucket(ctx), "second call finds the bucket")
	assert.True(t, fake.buckets["shopcheck-artifacts"])

	r := NewRecorder(t.TempDir(), WithUploader(u), WithClock(fixedClock), WithLogger(quiet))
	_, err := r.Capture(ctx, shooter{img: pngData}, "TestCheckout")
	require.NoError(t, err)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	obj := "shopcheck-artifacts/runs/7/TestCheckout_20240309_140507.png"
	require.Contains(t, fake.objects, obj)
	assert.True(t, bytes.Contains(fake.objects[obj], pngData))
	assert.Equal(t, "image/png", fake.types[obj])
}

func TestUploader_FailureDoesNotFailCapture(t *testing.T) {
	u := newTestUploader(t, newFakeS3()) // bucket never created

	r := NewRecorder(t.TempDir(), WithUploader(u), WithLogger(quiet))
	path, err := r.Capture(context.Background(), shooter{img: pngData}, "TestY")
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestStoreConfig_Validate(t *testing.T) {
	_, err := NewUploader(StoreConfig{Bucket: "b"})
	assert.ErrorContains(t, err, "endpoint is required")
	_, err = NewUploader(StoreConfig{Endpoint: "localhost:9000"})
	assert.ErrorContains(t, err, "bucket is required")
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "image/png", contentType("a.png"))
	assert.Equal(t, "application/json", contentType("report.json"))
	assert.Equal(t, "application/octet-stream", contentType("trace.zip"))
}
