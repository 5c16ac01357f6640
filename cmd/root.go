package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/brensch/edgarfsn/internal/config"
	"github.com/brensch/edgarfsn/internal/db"
	"github.com/brensch/edgarfsn/internal/report"
	"github.com/brensch/edgarfsn/internal/util"
)

var (
	cfgFile   string
	envFile   string
	logFormat string
	logLevel  string
	logOutput string
	strict    bool

	// Populated in PersistentPreRunE.
	rootLogger *slog.Logger
	ledger     *db.Ledger
	appConfig  config.Config
	logCloser  io.Closer

	v = viper.New()
)

// errFailures is returned under --strict when a batch finished with failed items.
var errFailures = errors.New("one or more items failed")

var rootCmd = &cobra.Command{
	Use:   "edgarfsn",
	Short: "Mirror the SEC EDGAR Financial Statement and Notes data sets into a bucket.",
	Long: `edgarfsn downloads the quarterly Financial Statement and Notes archives published
by the SEC, extracts their TSV tables into <data_dir>/<yyyy_q>/source, optionally
converts them to Parquet, and uploads the tree to an object-store bucket.

Every fetch, extraction, conversion and upload is recorded in a DuckDB ledger.
The primary command is 'run', which performs fetch, convert and upload in order.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger, closer, err := newLogger(logLevel, logFormat, logOutput)
		if err != nil {
			return err
		}
		rootLogger, logCloser = logger, closer
		slog.SetDefault(rootLogger)
		rootLogger.Debug("Logger initialized", "level", logLevel, "format", logFormat, "output", logOutput)

		if err := bindConfigFlags(cmd.Flags()); err != nil {
			return err
		}
		cfg, err := config.Load(v, cfgFile, envFile)
		if err != nil {
			return err
		}
		if err := cfg.Validate(time.Now()); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		appConfig = cfg
		rootLogger.Debug("Configuration loaded", slog.Any("config", appConfig))

		if err := os.MkdirAll(appConfig.DataDir, 0o755); err != nil {
			return fmt.Errorf("failed to create data directory %s: %w", appConfig.DataDir, err)
		}

		ledger, err = db.Open(appConfig.DbPath, rootLogger)
		if err != nil {
			return err
		}
		rootLogger.Debug("Ledger opened", "path", appConfig.DbPath, "run_id", ledger.RunID())
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		closeResources()
		return nil
	},
}

// Execute runs the root command. It is called once by main.main.
func Execute() {
	err := rootCmd.Execute()
	// PersistentPostRunE does not run when RunE fails.
	closeResources()
	if err != nil {
		if rootLogger != nil {
			rootLogger.Error("Command execution failed", "error", err)
		} else {
			fmt.Fprintf(os.Stderr, "Command execution failed: %v\n", err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(periodsCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(bucketsCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(tuiCmd)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (YAML, TOML or JSON)")
	pf.StringVar(&envFile, "env-file", ".env", "Dotenv file loaded before reading the environment")
	pf.StringVar(&logFormat, "log-format", "text", "Log output format (text or json)")
	pf.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.StringVar(&logOutput, "log-output", "stderr", "Log output destination (stderr, stdout, or file path)")
	pf.BoolVar(&strict, "strict", false, "Exit non-zero when any item in a batch fails")

	pf.String("data-dir", config.DefaultDataDir, "Local root of the mirrored tree")
	pf.String("db-path", config.DefaultDbPath, "Path to the DuckDB ledger (:memory: for in-memory)")
	pf.Int("start-year", config.DefaultStartYear, "First year to enumerate periods from")
	pf.String("sec-email", "", "Contact address sent in the SEC User-Agent")
	pf.Int("retries", 0, "Retries for temporary download failures")
	pf.String("bucket", "", "Destination bucket name")
	pf.String("backend", config.DefaultBackend, "Object-store backend (s3, gcs, minio)")
	pf.String("region", config.DefaultRegion, "Bucket region")
	pf.String("profile", "", "Credentials profile (AWS/MinIO) or credentials file (GCS)")
	pf.String("endpoint", "", "Custom object-store endpoint")

	bindFlags(pf, map[string]string{
		"data_dir":           "data-dir",
		"db_path":            "db-path",
		"archive.start_year": "start-year",
		"sec.email":          "sec-email",
		"http.retries":       "retries",
		"bucket.name":        "bucket",
		"bucket.backend":     "backend",
		"bucket.region":      "region",
		"bucket.profile":     "profile",
		"bucket.endpoint":    "endpoint",
	})

	rootCmd.Version = config.Version
}

func newLogger(level, format, output string) (*slog.Logger, io.Closer, error) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	var w io.Writer = os.Stderr
	var closer io.Closer
	switch strings.ToLower(output) {
	case "", "stderr":
	case "stdout":
		w = os.Stdout
	default:
		f, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file %s: %w", output, err)
		}
		w, closer = f, f
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), closer, nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), closer, nil
}

func closeResources() {
	if ledger != nil {
		if err := ledger.Close(); err != nil {
			getLogger().Error("Failed to close ledger cleanly", "error", err)
		}
		ledger = nil
	}
	if logCloser != nil {
		logCloser.Close()
		logCloser = nil
	}
}

func getLogger() *slog.Logger {
	if rootLogger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return rootLogger
}

func getConfig() config.Config { return appConfig }

func getLedger() *db.Ledger { return ledger }

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newSECClient(cfg config.Config) util.Doer {
	return util.NewRateLimitedClient(util.NewHTTPClient(cfg.HTTP.Timeout), cfg.SEC.RequestsPerSecond)
}

// finishBatch prints the summary and applies the --strict exit policy.
func finishBatch(w io.Writer, sum report.Summary) error {
	fmt.Fprintln(w, sum.String())
	for _, id := range sum.FailedIDs() {
		fmt.Fprintf(w, "  failed: %s\n", id)
	}
	getLogger().Info("Batch finished", "summary", sum)
	if sum.Cancelled {
		return context.Canceled
	}
	if strict && sum.Failed() > 0 {
		return fmt.Errorf("%s: %w", sum.Op, errFailures)
	}
	return nil
}
