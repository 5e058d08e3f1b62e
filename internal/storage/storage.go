package storage

import (
	"context"
	"fmt"

	"github.com/egfanboy/badge-builder/internal/app"
)

// ObjectStore keeps the bytes of sideloaded media. Put returns the url the object is served from.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body []byte) (string, error)
	Delete(ctx context.Context, key string) error
}

func New(ctx context.Context, cfg app.StorageConfig) (ObjectStore, error) {
	switch cfg.Driver {
	case app.StorageDriverFilesystem:
		return NewFilesystemStore(cfg.Path, cfg.PublicUrl)
	case app.StorageDriverS3:
		return NewS3Store(ctx, S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			UsePathStyle:    cfg.S3.UsePathStyle,
		})
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}
