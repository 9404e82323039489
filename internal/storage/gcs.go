// Package storage mirrors run output files to Google Cloud Storage.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config names the bucket and object prefix outputs are copied to.
type Config struct {
	Bucket      string
	Prefix      string
	Concurrency int
}

// GCSUploader copies local files into a bucket, one object per file.
type GCSUploader struct {
	client      *storage.Client
	bucket      string
	prefix      string
	concurrency int
	logger      *zap.Logger
}

// NewGCSUploader opens a client with Application Default Credentials and
// checks that the bucket is reachable.
func NewGCSUploader(ctx context.Context, cfg Config, logger *zap.Logger) (*GCSUploader, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	if _, err := client.Bucket(cfg.Bucket).Attrs(ctx); err != nil {
		if cerr := client.Close(); cerr != nil && logger != nil {
			logger.Warn("failed to close GCS client after bucket check", zap.Error(cerr))
		}
		return nil, fmt.Errorf("failed to get GCS bucket '%s' attributes: %w", cfg.Bucket, err)
	}

	return New(client, cfg, logger)
}

// New wraps an existing client.
func New(client *storage.Client, cfg Config, logger *zap.Logger) (*GCSUploader, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GCSUploader{
		client:      client,
		bucket:      cfg.Bucket,
		prefix:      strings.Trim(cfg.Prefix, "/"),
		concurrency: cfg.Concurrency,
		logger:      logger,
	}, nil
}

// ObjectName is where a local file lands in the bucket.
func (u *GCSUploader) ObjectName(localPath string) string {
	name := filepath.Base(localPath)
	if u.prefix == "" {
		return name
	}
	return path.Join(u.prefix, name)
}

// Upload copies every path concurrently. All files are attempted; the first
// failure is returned.
func (u *GCSUploader) Upload(ctx context.Context, paths []string) error {
	var g errgroup.Group
	g.SetLimit(u.concurrency)

	for _, p := range paths {
		g.Go(func() error {
			object := u.ObjectName(p)
			if err := u.uploadFile(ctx, p, object); err != nil {
				u.logger.Warn("upload failed", zap.String("file", p), zap.Error(err))
				return err
			}
			u.logger.Debug("uploaded", zap.String("file", p), zap.String("object", fmt.Sprintf("gs://%s/%s", u.bucket, object)))
			return nil
		})
	}

	return g.Wait()
}

func (u *GCSUploader) uploadFile(ctx context.Context, localPath, object string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer f.Close()

	w := u.client.Bucket(u.bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType(localPath)
	// Outputs are small; send each in a single request.
	w.ChunkSize = 0

	if _, err := io.Copy(w, f); err != nil {
		if cerr := w.Close(); cerr != nil {
			return fmt.Errorf("failed to write GCS object %s: %w (close writer: %v)", object, err, cerr)
		}
		return fmt.Errorf("failed to write GCS object %s: %w", object, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer for object %s: %w", object, err)
	}
	return nil
}

func (u *GCSUploader) Close() error {
	return u.client.Close()
}

func contentType(p string) string {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".csv":
		return "text/csv; charset=utf-8"
	case ".json":
		return "application/json"
	case ".log", ".txt":
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
