package bucket

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/brensch/edgarfsn/internal/config"
)

// MinioStore talks to MinIO or another S3-compatible server through minio-go.
type MinioStore struct {
	client *minio.Client
	region string
}

func NewMinio(cfg config.BucketConfig) (*MinioStore, error) {
	host, secure, err := minioEndpoint(cfg.Endpoint, cfg.Insecure)
	if err != nil {
		return nil, err
	}
	creds := credentials.NewChainCredentials([]credentials.Provider{
		&credentials.EnvMinio{},
		&credentials.EnvAWS{},
		&credentials.FileAWSCredentials{Profile: cfg.Profile},
		&credentials.FileMinioClient{},
	})
	client, err := minio.New(host, &minio.Options{
		Creds:  creds,
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client for %s: %w", host, err)
	}
	return &MinioStore{client: client, region: cfg.Region}, nil
}

// minioEndpoint accepts "host:port" or a URL and returns the host with the TLS setting.
func minioEndpoint(endpoint string, insecure bool) (string, bool, error) {
	if endpoint == "" {
		return "", false, fmt.Errorf("bucket.endpoint is required for the minio backend")
	}
	if !strings.Contains(endpoint, "://") {
		return endpoint, !insecure, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("parse endpoint %s: %w", endpoint, err)
	}
	return u.Host, u.Scheme == "https" && !insecure, nil
}

func (m *MinioStore) CreateBucket(ctx context.Context, name, region string) error {
	if region == "" {
		region = m.region
	}
	if err := m.client.MakeBucket(ctx, name, minio.MakeBucketOptions{Region: region}); err != nil {
		if exists, errExists := m.client.BucketExists(ctx, name); errExists == nil && exists {
			return nil
		}
		return fmt.Errorf("create bucket %s: %w", name, err)
	}
	return nil
}

func (m *MinioStore) ListBuckets(ctx context.Context) ([]string, error) {
	infos, err := m.client.ListBuckets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}
	names := make([]string, 0, len(infos))
	for _, b := range infos {
		names = append(names, b.Name)
	}
	return names, nil
}

func (m *MinioStore) UploadFile(ctx context.Context, localPath, bucket, key string) error {
	_, err := m.client.FPutObject(ctx, bucket, key, localPath, minio.PutObjectOptions{ContentType: contentType(key)})
	if err != nil {
		return fmt.Errorf("upload %s to %s/%s: %w", localPath, bucket, key, err)
	}
	return nil
}

func (m *MinioStore) Close() error { return nil }
