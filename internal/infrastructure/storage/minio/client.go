// Package minio provides object storage for run artifacts, chiefly the
// off-host mirror of search checkpoints.
package minio

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/turtacn/MolGenesis/internal/config"
	"github.com/turtacn/MolGenesis/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MolGenesis/pkg/errors"
)

var ErrClientClosed = errors.New(errors.ErrCodeInternal, "minio client is closed")

// Client wraps a minio connection scoped to one bucket.
type Client struct {
	api    *minio.Client
	bucket string
	logger logging.Logger
	closed atomic.Bool
}

// NewClient connects to the endpoint, verifies reachability and makes sure
// the configured bucket exists.
func NewClient(cfg config.StorageConfig, log logging.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New(errors.ErrCodeValidation, "storage endpoint required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New(errors.ErrCodeValidation, "storage bucket required")
	}

	api, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create minio client")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := api.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeServiceUnavailable, "failed to connect to minio")
	}
	if !exists {
		if err := api.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create bucket").WithDetail(cfg.Bucket)
		}
		log.Info("Created bucket", logging.String("bucket", cfg.Bucket))
	}

	log.Info("MinIO client connected",
		logging.String("endpoint", cfg.Endpoint),
		logging.String("bucket", cfg.Bucket),
		logging.Bool("ssl", cfg.UseSSL),
	)
	return &Client{api: api, bucket: cfg.Bucket, logger: log}, nil
}

// Bucket returns the configured bucket name.
func (c *Client) Bucket() string { return c.bucket }

// Upload stores a local file under objectName.
func (c *Client) Upload(ctx context.Context, objectName, localPath string) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	info, err := c.api.FPutObject(ctx, c.bucket, objectName, localPath, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "object upload failed").WithDetail(objectName)
	}
	c.logger.Debug("Object uploaded",
		logging.String("object", objectName),
		logging.Int64("bytes", info.Size),
	)
	return nil
}

// Download fetches objectName into localPath.
func (c *Client) Download(ctx context.Context, objectName, localPath string) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	if err := c.api.FGetObject(ctx, c.bucket, objectName, localPath, minio.GetObjectOptions{}); err != nil {
		return errors.Wrap(err, errors.ErrCodeNotFound, "object download failed").WithDetail(objectName)
	}
	return nil
}

// Close marks the client closed.  The underlying connection pool is managed
// by the minio library itself.
func (c *Client) Close() error {
	c.closed.Store(true)
	return nil
}
