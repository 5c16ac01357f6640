package bucket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/brensch/edgarfsn/internal/config"
)

// GCSStore talks to Google Cloud Storage. Profile, when set, names a
// service-account credentials file; Project scopes bucket creation and listing.
type GCSStore struct {
	client  *storage.Client
	project string
}

func NewGCS(ctx context.Context, cfg config.BucketConfig) (*GCSStore, error) {
	var opts []option.ClientOption
	if cfg.Profile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.Profile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &GCSStore{client: client, project: cfg.Project}, nil
}

func (g *GCSStore) CreateBucket(ctx context.Context, name, region string) error {
	if g.project == "" {
		return errors.New("bucket.project is required to create GCS buckets")
	}
	attrs := &storage.BucketAttrs{Location: region}
	if err := g.client.Bucket(name).Create(ctx, g.project, attrs); err != nil {
		if bucketExists(err) {
			return nil
		}
		return fmt.Errorf("create bucket %s: %w", name, err)
	}
	return nil
}

// bucketExists reports whether err is the conflict GCS returns for a bucket
// name that is already taken.
func bucketExists(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusConflict
}

func (g *GCSStore) ListBuckets(ctx context.Context) ([]string, error) {
	if g.project == "" {
		return nil, errors.New("bucket.project is required to list GCS buckets")
	}
	var names []string
	it := g.client.Buckets(ctx, g.project)
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list buckets: %w", err)
		}
		names = append(names, attrs.Name)
	}
	return names, nil
}

func (g *GCSStore) UploadFile(ctx context.Context, localPath, bucket, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	w := g.client.Bucket(bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType(key)
	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return fmt.Errorf("upload %s to gs://%s/%s: %w", localPath, bucket, key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize gs://%s/%s: %w", bucket, key, err)
	}
	return nil
}

func (g *GCSStore) Close() error { return g.client.Close() }
