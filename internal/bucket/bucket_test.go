package bucket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/brensch/edgarfsn/internal/config"
)

func TestNewSelectsBackend(t *testing.T) {
	ctx := context.Background()

	cfg := config.Default()
	cfg.Bucket.Backend = "minio"
	cfg.Bucket.Endpoint = "http://localhost:9000"
	st, err := New(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, &MinioStore{}, st)
	assert.NoError(t, st.Close())

	cfg.Bucket.Backend = "s3"
	cfg.Bucket.Endpoint = "http://localhost:9000"
	st, err = New(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, &S3Store{}, st)

	cfg.Bucket.Backend = "ftp"
	_, err = New(ctx, cfg)
	assert.ErrorContains(t, err, "unknown bucket backend")
}

func TestMinioEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		insecure bool
		host     string
		secure   bool
	}{
		{"play.min.io", false, "play.min.io", true},
		{"localhost:9000", true, "localhost:9000", false},
		{"http://localhost:9000", false, "localhost:9000", false},
		{"https://minio.internal", false, "minio.internal", true},
	}
	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			host, secure, err := minioEndpoint(tt.endpoint, tt.insecure)
			require.NoError(t, err)
			assert.Equal(t, tt.host, host)
			assert.Equal(t, tt.secure, secure)
		})
	}

	_, _, err := minioEndpoint("", false)
	assert.Error(t, err)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "text/tab-separated-values", contentType("2019_3/source/sub.tsv"))
	assert.Equal(t, "application/vnd.apache.parquet", contentType("2019_3/parquet/NUM.PARQUET"))
	assert.Equal(t, "application/octet-stream", contentType("2019_3/source/readme"))
}

func TestGCSBucketExists(t *testing.T) {
	conflict := &googleapi.Error{Code: http.StatusConflict, Message: "You already own this bucket."}
	assert.True(t, bucketExists(conflict))
	assert.True(t, bucketExists(fmt.Errorf("create: %w", conflict)))
	assert.False(t, bucketExists(&googleapi.Error{Code: http.StatusForbidden}))
	assert.False(t, bucketExists(errors.New("conflict")))
	assert.False(t, bucketExists(nil))
}
