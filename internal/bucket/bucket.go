// Package bucket adapts the supported object stores to one small interface.
// Authentication is left to each SDK's default credential chain.
package bucket

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/brensch/edgarfsn/internal/config"
)

// Store is a remote object store. Implementations must be safe for concurrent use.
type Store interface {
	// CreateBucket creates name in region. Creating a bucket the caller already owns is not an error.
	CreateBucket(ctx context.Context, name, region string) error
	ListBuckets(ctx context.Context) ([]string, error)
	// UploadFile writes the file at localPath to bucket/key, overwriting any existing object.
	UploadFile(ctx context.Context, localPath, bucket, key string) error
	Close() error
}

// New builds the Store selected by cfg.Bucket.Backend.
func New(ctx context.Context, cfg config.Config) (Store, error) {
	switch cfg.Bucket.Backend {
	case "s3":
		return NewS3(cfg.Bucket)
	case "gcs":
		return NewGCS(ctx, cfg.Bucket)
	case "minio":
		return NewMinio(cfg.Bucket)
	default:
		return nil, fmt.Errorf("unknown bucket backend %q", cfg.Bucket.Backend)
	}
}

var contentTypes = map[string]string{
	".tsv":     "text/tab-separated-values",
	".txt":     "text/plain",
	".htm":     "text/html",
	".html":    "text/html",
	".json":    "application/json",
	".parquet": "application/vnd.apache.parquet",
	".zip":     "application/zip",
}

func contentType(key string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(key))]; ok {
		return ct
	}
	return "application/octet-stream"
}
