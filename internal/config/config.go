package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Default locations of the SEC Financial Statement and Notes data sets.
const (
	DefaultArchiveBaseURL = "https://www.sec.gov/files/dera/data/financial-statement-and-notes-data-sets"
	DefaultIndexURL       = "https://www.sec.gov/dera/data/financial-statement-and-notes-data-set"
	DefaultStartYear      = 2014
	DefaultDataDir        = "./data"
	DefaultDbPath         = "./edgarfsn_state.duckdb"
	DefaultUploadWorkers  = 10
	DefaultSchemaRowLimit = 100
	DefaultRequestsPerSec = 10
	DefaultHTTPTimeout    = 10 * time.Minute
	DefaultBackend        = "s3"
	DefaultRegion         = "us-east-1"

	// EarliestYear is the first year the SEC published the notes data sets.
	EarliestYear = 2009

	// SecEmailEnvVar is the environment variable commonly used for the SEC contact address.
	SecEmailEnvVar = "SEC_EMAIL"

	// EnvPrefix is the prefix for environment overrides, e.g. EDGARFSN_BUCKET_NAME.
	EnvPrefix = "EDGARFSN"
)

var (
	// Version is stamped at build time with -ldflags "-X ...config.Version=...".
	Version = "dev"

	// Default number of conversion workers, often set to CPU count.
	DefaultConvertWorkers = runtime.NumCPU()

	// Backends accepted for bucket.backend.
	Backends = []string{"s3", "gcs", "minio"}
)

// Config holds application settings
type Config struct {
	DataDir string `mapstructure:"data_dir"`
	DbPath  string `mapstructure:"db_path"`

	Archive ArchiveConfig `mapstructure:"archive"`
	SEC     SECConfig     `mapstructure:"sec"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Bucket  BucketConfig  `mapstructure:"bucket"`
	Upload  UploadConfig  `mapstructure:"upload"`
	Convert ConvertConfig `mapstructure:"convert"`
}

// ArchiveConfig locates the quarterly notes archives.
type ArchiveConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	IndexURL  string `mapstructure:"index_url"`
	StartYear int    `mapstructure:"start_year"`
	// Overrides maps a period ("2020q1") to an alternate archive URL.
	Overrides       map[string]string `mapstructure:"overrides"`
	DiscoverMissing bool              `mapstructure:"discover_missing"`
}

// SECConfig carries the request identity the SEC asks automated clients to declare.
type SECConfig struct {
	Email             string  `mapstructure:"email"`
	UserAgent         string  `mapstructure:"user_agent"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

type HTTPConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
	Retries int           `mapstructure:"retries"`
}

// BucketConfig selects and addresses the remote object store.
type BucketConfig struct {
	Backend   string `mapstructure:"backend"`
	Name      string `mapstructure:"name"`
	Region    string `mapstructure:"region"`
	Profile   string `mapstructure:"profile"`
	Endpoint  string `mapstructure:"endpoint"`
	Project   string `mapstructure:"project"`
	KeyPrefix string `mapstructure:"key_prefix"`
	Insecure  bool   `mapstructure:"insecure"`
}

type UploadConfig struct {
	Workers    int  `mapstructure:"workers"`
	Concurrent bool `mapstructure:"concurrent"`
}

type ConvertConfig struct {
	Workers        int `mapstructure:"workers"`
	SchemaRowLimit int `mapstructure:"schema_rows"`
}

// Default returns the configuration used when nothing else is supplied.
func Default() Config {
	return Config{
		DataDir: DefaultDataDir,
		DbPath:  DefaultDbPath,
		Archive: ArchiveConfig{
			BaseURL:         DefaultArchiveBaseURL,
			IndexURL:        DefaultIndexURL,
			StartYear:       DefaultStartYear,
			Overrides:       map[string]string{},
			DiscoverMissing: true,
		},
		SEC:     SECConfig{RequestsPerSecond: DefaultRequestsPerSec},
		HTTP:    HTTPConfig{Timeout: DefaultHTTPTimeout},
		Bucket:  BucketConfig{Backend: DefaultBackend, Region: DefaultRegion},
		Upload:  UploadConfig{Workers: DefaultUploadWorkers},
		Convert: ConvertConfig{Workers: DefaultConvertWorkers, SchemaRowLimit: DefaultSchemaRowLimit},
	}
}

// SetDefaults registers Default() with v so that unset keys resolve sensibly.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("db_path", d.DbPath)
	v.SetDefault("archive.base_url", d.Archive.BaseURL)
	v.SetDefault("archive.index_url", d.Archive.IndexURL)
	v.SetDefault("archive.start_year", d.Archive.StartYear)
	v.SetDefault("archive.overrides", d.Archive.Overrides)
	v.SetDefault("archive.discover_missing", d.Archive.DiscoverMissing)
	v.SetDefault("sec.email", "")
	v.SetDefault("sec.user_agent", "")
	v.SetDefault("sec.requests_per_second", d.SEC.RequestsPerSecond)
	v.SetDefault("http.timeout", d.HTTP.Timeout)
	v.SetDefault("http.retries", d.HTTP.Retries)
	v.SetDefault("bucket.backend", d.Bucket.Backend)
	v.SetDefault("bucket.name", "")
	v.SetDefault("bucket.region", d.Bucket.Region)
	v.SetDefault("bucket.profile", "")
	v.SetDefault("bucket.endpoint", "")
	v.SetDefault("bucket.project", "")
	v.SetDefault("bucket.key_prefix", "")
	v.SetDefault("bucket.insecure", false)
	v.SetDefault("upload.workers", d.Upload.Workers)
	v.SetDefault("upload.concurrent", d.Upload.Concurrent)
	v.SetDefault("convert.workers", d.Convert.Workers)
	v.SetDefault("convert.schema_rows", d.Convert.SchemaRowLimit)
}

// Load resolves configuration from an optional .env file, an optional config
// file and EDGARFSN_* environment variables, in increasing precedence. Flags
// bound to v before calling Load take precedence over all of them.
func Load(v *viper.Viper, cfgFile, envFile string) (Config, error) {
	if envFile != "" {
		// A missing .env is normal; anything else is worth reporting.
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", cfgFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Archive.Overrides == nil {
		cfg.Archive.Overrides = map[string]string{}
	}
	// SEC_EMAIL is the conventional variable for the contact address.
	if cfg.SEC.Email == "" {
		cfg.SEC.Email = os.Getenv(SecEmailEnvVar)
	}
	return cfg, nil
}

// Validate reports configuration that no component can work with.
func (c Config) Validate(now time.Time) error {
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.Archive.BaseURL == "" {
		return fmt.Errorf("archive.base_url is required")
	}
	if c.Archive.StartYear < EarliestYear || c.Archive.StartYear > now.Year() {
		return fmt.Errorf("archive.start_year %d outside [%d, %d]", c.Archive.StartYear, EarliestYear, now.Year())
	}
	if c.Upload.Workers < 1 {
		return fmt.Errorf("upload.workers must be at least 1, got %d", c.Upload.Workers)
	}
	if c.Convert.Workers < 1 {
		return fmt.Errorf("convert.workers must be at least 1, got %d", c.Convert.Workers)
	}
	if c.HTTP.Retries < 0 {
		return fmt.Errorf("http.retries must not be negative, got %d", c.HTTP.Retries)
	}
	known := false
	for _, b := range Backends {
		if c.Bucket.Backend == b {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown bucket.backend %q (want one of %s)", c.Bucket.Backend, strings.Join(Backends, ", "))
	}
	return nil
}

// ValidateFetch reports whether c can identify itself to the SEC. Requests
// without a contact address are throttled or refused, so fetching requires
// sec.email or sec.user_agent. Other commands do not call it.
func (c Config) ValidateFetch() error {
	if strings.TrimSpace(c.SEC.Email) == "" && strings.TrimSpace(c.SEC.UserAgent) == "" {
		return fmt.Errorf("sec.email is required to fetch from the SEC (set --sec-email, %s or sec.user_agent)", SecEmailEnvVar)
	}
	return nil
}

// UserAgent returns the User-Agent header for SEC requests. The SEC requires
// automated clients to identify themselves with a contact address.
func (c Config) UserAgent(version string) string {
	if c.SEC.UserAgent != "" {
		return c.SEC.UserAgent
	}
	if c.SEC.Email != "" {
		return fmt.Sprintf("edgarfsn/%s (%s)", version, c.SEC.Email)
	}
	return fmt.Sprintf("edgarfsn/%s", version)
}
