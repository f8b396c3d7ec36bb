package contentstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/iliyamo/peer-support/internal/config"
)

// MinIO is a Store backed by an S3-compatible bucket.
type MinIO struct {
	mc      *minio.Client
	bucket  string
	baseURL string // <public url>/<bucket>
}

var _ Store = (*MinIO)(nil)

// NewMinIO creates the client.  Call EnsureBucket before serving.
func NewMinIO(cfg config.MinIOConfig) (*MinIO, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("minio access key and secret key are required")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinIO{
		mc:      mc,
		bucket:  cfg.Bucket,
		baseURL: strings.TrimRight(cfg.PublicURL, "/") + "/" + cfg.Bucket,
	}, nil
}

// EnsureBucket creates the bucket if it does not exist.
func (m *MinIO) EnsureBucket(ctx context.Context) error {
	exists, err := m.mc.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := m.mc.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
		slog.Info("minio: created bucket", "bucket", m.bucket)
	}
	return nil
}

func (m *MinIO) Put(ctx context.Context, folder, name string, r io.Reader, size int64, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := objectKey(folder, name)
	if _, err := m.mc.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return m.baseURL + "/" + key, nil
}

func (m *MinIO) Delete(ctx context.Context, url string) error {
	key, ok := strings.CutPrefix(url, m.baseURL+"/")
	if !ok || key == "" {
		return ErrForeignURL
	}
	return m.mc.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{})
}
