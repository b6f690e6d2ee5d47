// Package artifacts keeps the evidence of failed tests: full-page
// screenshots on disk, optionally mirrored to an S3-compatible store.
package artifacts

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// Screenshotter captures the current page as PNG.
type Screenshotter interface {
	Screenshot(ctx context.Context) ([]byte, error)
}

// timestampLayout matches the %Y%m%d_%H%M%S names older reports used.
const timestampLayout = "20060102_150405"

// FileName returns "<name>_<timestamp>.png" with path separators and
// spaces in name replaced.
func FileName(name string, t time.Time) string {
	r := strings.NewReplacer("/", "_", "\\", "_", " ", "_", ":", "_")
	return fmt.Sprintf("%s_%s.png", r.Replace(name), t.Format(timestampLayout))
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithUploader mirrors every capture to an object store.
func WithUploader(u *Uploader) Option {
	return func(r *Recorder) { r.uploader = u }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Recorder) {
		if l != nil {
			r.log = l
		}
	}
}

// WithClock sets the time source used for file names.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// Recorder writes screenshots into a directory.
type Recorder struct {
	dir      string
	uploader *Uploader
	log      *slog.Logger
	now      func() time.Time
}

// NewRecorder creates a Recorder writing to dir. The directory is created
// on first capture.
func NewRecorder(dir string, opts ...Option) *Recorder {
	r := &Recorder{dir: dir, log: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Capture saves a screenshot named after name and returns its path. If an
// uploader is configured the file is uploaded as well; upload failures
// are logged and do not fail the capture.
func (r *Recorder) Capture(ctx context.Context, s Screenshotter, name string) (string, error) {
	img, err := s.Screenshot(ctx)
	if err != nil {
		return "", fmt.Errorf("screenshot %s: %w", name, err)
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("create screenshot dir: %w", err)
	}
	path := filepath.Join(r.dir, FileName(name, r.now()))
	if err := os.WriteFile(path, img, 0o644); err != nil {
		return "", fmt.Errorf("write screenshot: %w", err)
	}
	r.log.Info("screenshot saved", "path", path)

	if r.uploader != nil {
		key, err := r.uploader.Upload(ctx, path)
		if err != nil {
			r.log.Warn("screenshot upload failed", "path", path, "error", err)
		} else {
			r.log.Info("screenshot uploaded", "bucket", r.uploader.Bucket(), "key", key)
		}
	}
	return path, nil
}

// OnFailure registers a cleanup on tb that captures s if the test failed.
// Capture errors are reported through tb.Logf, never as failures.
func (r *Recorder) OnFailure(tb testing.TB, s Screenshotter) {
	tb.Helper()
	tb.Cleanup(func() {
		if !tb.Failed() {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		path, err := r.Capture(ctx, s, tb.Name())
		if err != nil {
			tb.Logf("failed to capture screenshot: %v", err)
			return
		}
		tb.Logf("screenshot saved: %s", path)
	})
}
