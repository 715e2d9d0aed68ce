// Package storage keeps inspection photos and export artifacts.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

var ErrNotFound = errors.New("storage object not found")

type Provider string

const (
	Filesystem Provider = "filesystem"
	S3         Provider = "s3"
	Memory     Provider = "memory"
)

// Blobstore stores opaque objects under slash separated keys.
type Blobstore interface {
	// Put creates or overwrites an object.
	Put(ctx context.Context, key string, contents []byte, contentType string) error
	// Get returns ErrNotFound for a missing key.
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete does nothing if the object doesn't exist.
	Delete(ctx context.Context, key string) error
}

type Config struct {
	Provider Provider
	Dir      string

	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
}

func New(ctx context.Context, cfg Config) (Blobstore, error) {
	slog.InfoContext(ctx, "storage.factory.provider", slog.String("provider", string(cfg.Provider)))
	switch cfg.Provider {
	case Filesystem, "":
		return NewFilesystem(cfg.Dir)
	case S3:
		return NewS3(ctx, cfg)
	case Memory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage provider: %q", cfg.Provider)
	}
}
