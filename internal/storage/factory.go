package storage

import (
	"context"
	"fmt"

	"paperbase.org/internal/config"
)

// FromConfig builds the configured storage backend.
func FromConfig(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch cfg.Type {
	case "s3":
		return NewS3(ctx, cfg.S3Bucket, cfg.S3Prefix, cfg.S3Region)
	case "filesystem", "":
		return NewFilesystem(cfg.FSRoot)
	default:
		return nil, fmt.Errorf("storage: unknown backend type %q", cfg.Type)
	}
}
