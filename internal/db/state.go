package db

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb" // Driver
)

// Constants for event types
const (
	EventDownloadStart  = "download_start"
	EventDownloadEnd    = "download_end"
	EventDiscovered     = "discovered"
	EventExtractEnd     = "extract_end"
	EventSkipExtract    = "skip_extract"
	EventPeriodComplete = "period_complete"
	EventConvertEnd     = "convert_end"
	EventSkipConvert    = "skip_convert"
	EventUploadEnd      = "upload_end"
	EventError          = "error"
)

// Constants for item types
const (
	ItemTypeArchive = "archive" // a quarterly notes zip, keyed by period
	ItemTypeEntry   = "entry"   // a file extracted from an archive
	ItemTypeParquet = "parquet"
	ItemTypeObject  = "object" // an uploaded bucket key
)

// Schema SQL
const schemaSequenceSQL = `CREATE SEQUENCE IF NOT EXISTS fsn_event_log_id_seq;`
const schemaTableSQL = `
CREATE TABLE IF NOT EXISTS fsn_event_log (
    log_id          BIGINT PRIMARY KEY DEFAULT nextval('fsn_event_log_id_seq'),
    run_id          VARCHAR NOT NULL,
    item            VARCHAR NOT NULL,      -- period, entry name or object key
    item_type       VARCHAR NOT NULL,
    event           VARCHAR NOT NULL,
    event_timestamp TIMESTAMP NOT NULL,
    source_url      VARCHAR,
    output_path     VARCHAR,
    message         VARCHAR,
    sha256_hash     VARCHAR,
    duration_ms     BIGINT
);
CREATE INDEX IF NOT EXISTS idx_fsn_event_log_item ON fsn_event_log (item, item_type);
CREATE INDEX IF NOT EXISTS idx_fsn_event_log_event_time ON fsn_event_log (event, event_timestamp);
`

// InitializeSchema creates the sequence and tables in the correct order.
func InitializeSchema(db *sql.DB) error {
	_, err := db.Exec(schemaSequenceSQL)
	if err != nil && !strings.Contains(strings.ToLower(err.Error()), "already exists") {
		return fmt.Errorf("failed to execute sequence setup: %w", err)
	}
	_, err = db.Exec(schemaTableSQL)
	if err != nil && !strings.Contains(strings.ToLower(err.Error()), "already exists") {
		return fmt.Errorf("failed to execute table/index setup: %w", err)
	}
	return nil
}

// Ledger is an append-only audit trail of pipeline events. Every event carries
// the identifier of the run that produced it. A nil *Ledger records nothing.
type Ledger struct {
	db     *sql.DB
	runID  string
	logger *slog.Logger
}

// Event is one row of the ledger.
type Event struct {
	Item       string
	ItemType   string
	Event      string
	SourceURL  string
	OutputPath string
	Message    string
	SHA256     string
	Duration   time.Duration
}

// Open connects to the DuckDB file at path (":memory:" or "" for an in-memory
// database), initializes the schema and starts a new run.
func Open(path string, logger *slog.Logger) (*Ledger, error) {
	dsn := path
	if path == ":memory:" {
		dsn = ""
	}
	if dsn != "" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir for %s: %w", dsn, err)
		}
	}
	conn, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("open duckdb %s: %w", path, err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping duckdb %s: %w", path, err)
	}
	if err := InitializeSchema(conn); err != nil {
		conn.Close()
		return nil, err
	}
	l := &Ledger{db: conn, runID: uuid.NewString(), logger: logger}
	logger.Debug("Ledger opened.", slog.String("path", path), slog.String("run_id", l.runID))
	return l, nil
}

func (l *Ledger) Close() error {
	if l == nil {
		return nil
	}
	return l.db.Close()
}

// RunID identifies the events written through this ledger.
func (l *Ledger) RunID() string {
	if l == nil {
		return ""
	}
	return l.runID
}

// LogEvent inserts a new event record into the log.
func (l *Ledger) LogEvent(ctx context.Context, ev Event) error {
	if l == nil {
		return nil
	}
	query := `
        INSERT INTO fsn_event_log (run_id, item, item_type, event, event_timestamp, source_url, output_path, message, sha256_hash, duration_ms)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
    `
	var durationMs sql.NullInt64
	if ev.Duration > 0 {
		durationMs = sql.NullInt64{Int64: ev.Duration.Milliseconds(), Valid: true}
	}

	_, err := l.db.ExecContext(ctx, query,
		l.runID,
		ev.Item,
		ev.ItemType,
		ev.Event,
		time.Now().UTC(),
		nullString(ev.SourceURL),
		nullString(ev.OutputPath),
		nullString(ev.Message),
		nullString(ev.SHA256),
		durationMs,
	)
	if err != nil {
		return fmt.Errorf("failed to log event '%s' for '%s': %w", ev.Event, ev.Item, err)
	}
	return nil
}

// Record is LogEvent for callers that must not fail because of the ledger.
// Errors are logged and dropped.
func (l *Ledger) Record(ctx context.Context, ev Event) {
	if l == nil {
		return
	}
	// Use a fresh context so that cancellation is still recorded.
	if ctx.Err() != nil {
		ctx = context.WithoutCancel(ctx)
	}
	if err := l.LogEvent(ctx, ev); err != nil {
		l.logger.Warn("Failed to record ledger event.", "item", ev.Item, "event", ev.Event, "error", err)
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// DisplayHistory writes the most recent events to w, newest first.
func (l *Ledger) DisplayHistory(ctx context.Context, w io.Writer, itemTypeFilter, eventFilter string, limit int) error {
	query := `
        SELECT item, item_type, event, event_timestamp, message, duration_ms, source_url, output_path
        FROM fsn_event_log
    `
	conditions := []string{}
	args := []any{}
	argCounter := 1

	if itemTypeFilter != "" {
		conditions = append(conditions, fmt.Sprintf("item_type = $%d", argCounter))
		args = append(args, itemTypeFilter)
		argCounter++
	}
	if eventFilter != "" {
		conditions = append(conditions, fmt.Sprintf("event = $%d", argCounter))
		args = append(args, eventFilter)
		argCounter++
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += fmt.Sprintf(" ORDER BY event_timestamp DESC, log_id DESC LIMIT $%d", argCounter)
	args = append(args, limit)

	fmt.Fprintf(w, "--- Event Log History (Limit %d) ---\n", limit)
	fmt.Fprintf(w, "%-40s | %-8s | %-15s | %-25s | %-10s | %s\n", "Item", "Type", "Event", "Timestamp (UTC)", "DurationMS", "Message/Details")
	fmt.Fprintln(w, strings.Repeat("-", 140))

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query event log: %w", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var item, itemType, event string
		var timestamp time.Time
		var message, sourceURL, outputPath sql.NullString
		var durationMs sql.NullInt64
		if err := rows.Scan(&item, &itemType, &event, &timestamp, &message, &durationMs, &sourceURL, &outputPath); err != nil {
			return fmt.Errorf("failed to scan event log row: %w", err)
		}

		durationStr := ""
		if durationMs.Valid {
			durationStr = fmt.Sprintf("%d", durationMs.Int64)
		}

		details := message.String
		if sourceURL.Valid && sourceURL.String != "" {
			details += fmt.Sprintf(" (Source: %s)", filepath.Base(sourceURL.String))
		}
		if outputPath.Valid && outputPath.String != "" {
			details += fmt.Sprintf(" (Output: %s)", filepath.Base(outputPath.String))
		}

		fmt.Fprintf(w, "%-40s | %-8s | %-15s | %-25s | %-10s | %s\n",
			item, itemType, event, timestamp.Format(time.RFC3339), durationStr, details)
		count++
	}
	if err = rows.Err(); err != nil {
		return fmt.Errorf("error iterating event log rows: %w", err)
	}
	fmt.Fprintf(w, "Displayed %d records.\n", count)
	return nil
}
