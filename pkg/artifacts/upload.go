package artifacts

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// StoreConfig locates an S3-compatible bucket.
type StoreConfig struct {
	Endpoint  string // host:port, no scheme
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	// Prefix is prepended to object keys ("runs/42").
	Prefix string
}

// Validate checks the required fields.
func (c StoreConfig) Validate() error {
	if c.Endpoint == "" {
		return errors.New("artifact store endpoint is required")
	}
	if c.Bucket == "" {
		return errors.New("artifact store bucket is required")
	}
	return nil
}

// Uploader puts files into one bucket.
type Uploader struct {
	client *minio.Client
	cfg    StoreConfig
}

// NewUploader creates a client for cfg. It does not contact the store.
func NewUploader(cfg StoreConfig) (*Uploader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, fmt.Errorf("create artifact store client: %w", err)
	}
	return &Uploader{client: client, cfg: cfg}, nil
}

// Bucket returns the target bucket.
func (u *Uploader) Bucket() string { return u.cfg.Bucket }

// EnsureBucket creates the bucket if it does not exist.
func (u *Uploader) EnsureBucket(ctx context.Context) error {
	exists, err := u.client.BucketExists(ctx, u.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", u.cfg.Bucket, err)
	}
	if exists {
		return nil
	}
	if err := u.client.MakeBucket(ctx, u.cfg.Bucket, minio.MakeBucketOptions{Region: u.cfg.Region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", u.cfg.Bucket, err)
	}
	return nil
}

// Upload stores the file at file under the prefix and returns its key.
func (u *Uploader) Upload(ctx context.Context, file string) (string, error) {
	key := path.Join(u.cfg.Prefix, filepath.Base(file))
	_, err := u.client.FPutObject(ctx, u.cfg.Bucket, key, file, minio.PutObjectOptions{
		ContentType: contentType(file),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return key, nil
}

func contentType(file string) string {
	switch filepath.Ext(file) {
	case ".png":
		return "image/png"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
