package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, time.May, 10, 0, 0, 0, 0, time.UTC)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(viper.New(), "", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultDataDir, cfg.DataDir)
	assert.Equal(t, DefaultArchiveBaseURL, cfg.Archive.BaseURL)
	assert.Equal(t, DefaultStartYear, cfg.Archive.StartYear)
	assert.Equal(t, DefaultHTTPTimeout, cfg.HTTP.Timeout)
	assert.Equal(t, 0, cfg.HTTP.Retries)
	assert.Equal(t, "s3", cfg.Bucket.Backend)
	assert.NotNil(t, cfg.Archive.Overrides)
	assert.NoError(t, cfg.Validate(now))
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "edgarfsn.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte(`
data_dir: /from/file
archive:
  start_year: 2015
  overrides:
    2020q1: https://example.com/2020q1_notes.zip
bucket:
  name: file-bucket
  backend: minio
upload:
  workers: 3
`), 0o644))
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("EDGARFSN_BUCKET_NAME=env-bucket\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("EDGARFSN_BUCKET_NAME") })
	t.Setenv("EDGARFSN_UPLOAD_WORKERS", "7")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("data-dir", DefaultDataDir, "")
	require.NoError(t, fs.Parse([]string{"--data-dir", "/from/flag"}))

	v := viper.New()
	require.NoError(t, v.BindPFlag("data_dir", fs.Lookup("data-dir")))
	cfg, err := Load(v, cfgFile, envFile)
	require.NoError(t, err)

	assert.Equal(t, "/from/flag", cfg.DataDir)
	assert.Equal(t, 2015, cfg.Archive.StartYear)
	assert.Equal(t, "https://example.com/2020q1_notes.zip", cfg.Archive.Overrides["2020q1"])
	assert.Equal(t, "env-bucket", cfg.Bucket.Name)
	assert.Equal(t, "minio", cfg.Bucket.Backend)
	assert.Equal(t, 7, cfg.Upload.Workers)
}

func TestLoadMissingEnvFileIsIgnored(t *testing.T) {
	_, err := Load(viper.New(), "", filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}

func TestLoadBadConfigFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"), "")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"ok", func(*Config) {}, ""},
		{"empty data dir", func(c *Config) { c.DataDir = " " }, "data_dir"},
		{"start year too early", func(c *Config) { c.Archive.StartYear = 2001 }, "start_year"},
		{"start year in future", func(c *Config) { c.Archive.StartYear = 2030 }, "start_year"},
		{"no upload workers", func(c *Config) { c.Upload.Workers = 0 }, "upload.workers"},
		{"negative retries", func(c *Config) { c.HTTP.Retries = -1 }, "http.retries"},
		{"unknown backend", func(c *Config) { c.Bucket.Backend = "ftp" }, "bucket.backend"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate(now)
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestUserAgent(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "edgarfsn/1.0", cfg.UserAgent("1.0"))

	cfg.SEC.Email = "ops@example.com"
	assert.Equal(t, "edgarfsn/1.0 (ops@example.com)", cfg.UserAgent("1.0"))

	cfg.SEC.UserAgent = "Example Corp ops@example.com"
	assert.Equal(t, "Example Corp ops@example.com", cfg.UserAgent("1.0"))
}

func TestValidateFetch(t *testing.T) {
	cfg := Default()
	err := cfg.ValidateFetch()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sec.email")

	cfg.SEC.Email = "  "
	assert.Error(t, cfg.ValidateFetch())

	cfg.SEC.Email = "ops@example.com"
	assert.NoError(t, cfg.ValidateFetch())

	cfg = Default()
	cfg.SEC.UserAgent = "Example Corp ops@example.com"
	assert.NoError(t, cfg.ValidateFetch())

	// Everything else stays valid without a contact address.
	assert.NoError(t, Default().Validate(now))
}
