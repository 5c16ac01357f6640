package inspector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/brensch/edgarfsn/internal/converter"
)

// TableSummary aggregates every Parquet file of one table (num, sub, ...) across periods.
type TableSummary struct {
	Table       string
	Files       []string
	Periods     []string // period directories, e.g. 2019_3
	TotalRows   int64
	Schema      string
	ColumnNames []string
	SchemaErr   error
	StatsErr    error
}

// Inspect summarizes <dataDir>/*/parquet/*.parquet with DuckDB and writes a
// report to w. The summaries are returned in table-name order.
func Inspect(ctx context.Context, dataDir string, w io.Writer, logger *slog.Logger) ([]TableSummary, error) {
	logger.Info("--- Starting Parquet File Summary Inspection ---")

	globPattern := filepath.Join(dataDir, "*", converter.ParquetDirName, "*.parquet")
	parquetFiles, err := filepath.Glob(globPattern)
	if err != nil {
		return nil, fmt.Errorf("failed glob parquet files in %s: %w", dataDir, err)
	}
	if len(parquetFiles) == 0 {
		logger.Info("No *.parquet files found.", "dir", dataDir)
		fmt.Fprintln(w, "No Parquet files found.")
		return nil, nil
	}
	sort.Strings(parquetFiles)
	logger.Info("Found parquet files to summarize.", slog.Int("count", len(parquetFiles)), slog.String("dir", dataDir))

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	logger.Debug("Loading Parquet extension.")
	if _, err := conn.ExecContext(ctx, `INSTALL parquet; LOAD parquet;`); err != nil {
		logger.Warn("Failed install/load parquet extension.", "error", err)
	}

	byTable := make(map[string]*TableSummary)
	for _, fp := range parquetFiles {
		table := strings.TrimSuffix(filepath.Base(fp), ".parquet")
		s, ok := byTable[table]
		if !ok {
			s = &TableSummary{Table: table}
			byTable[table] = s
		}
		s.Files = append(s.Files, fp)
		s.Periods = append(s.Periods, filepath.Base(filepath.Dir(filepath.Dir(fp))))
	}

	tables := make([]string, 0, len(byTable))
	for t := range byTable {
		tables = append(tables, t)
	}
	sort.Strings(tables)

	summaries := make([]TableSummary, 0, len(tables))
	var finalErr error
	for _, table := range tables {
		s := byTable[table]
		l := logger.With(slog.String("table", table), slog.Int("file_count", len(s.Files)))

		s.Schema, s.ColumnNames, s.SchemaErr = getSchemaAndColumns(ctx, conn, s.Files[0])
		if s.SchemaErr != nil {
			l.Error("Failed getting schema for table", "error", s.SchemaErr)
		}

		statsSQL := fmt.Sprintf(`SELECT COUNT(*) FROM read_parquet(%s, union_by_name = true);`, fileListLiteral(s.Files))
		var totalRows sql.NullInt64
		if err := conn.QueryRowContext(ctx, statsSQL).Scan(&totalRows); err != nil {
			s.StatsErr = fmt.Errorf("count rows for %s: %w", table, err)
			l.Error("Failed getting statistics for table", "error", err)
		} else {
			s.TotalRows = totalRows.Int64
			l.Info("Statistics gathered.", slog.Int64("total_rows", s.TotalRows))
		}

		finalErr = errors.Join(finalErr, s.SchemaErr, s.StatsErr)
		summaries = append(summaries, *s)
	}

	writeReport(w, summaries)
	logger.Info("--- Parquet File Summary Inspection Finished ---")
	if finalErr != nil {
		logger.Warn("Inspection completed with errors.", "error", finalErr)
	}
	return summaries, finalErr
}

func fileListLiteral(files []string) string {
	quoted := make([]string, 0, len(files))
	for _, p := range files {
		dp := strings.ReplaceAll(p, `\`, `/`)
		quoted = append(quoted, fmt.Sprintf("'%s'", strings.ReplaceAll(dp, "'", "''")))
	}
	return fmt.Sprintf("[%s]", strings.Join(quoted, ", "))
}

func writeReport(w io.Writer, summaries []TableSummary) {
	fmt.Fprintln(w, "\n--- Parquet File Summary ---")
	for _, s := range summaries {
		fmt.Fprintf(w, "\n=== Table: %s ===\n", s.Table)
		fmt.Fprintf(w, "    (Found %d files)\n", len(s.Files))
		fmt.Fprintln(w, "\n  Representative Schema:")
		switch {
		case s.SchemaErr != nil:
			fmt.Fprintf(w, "    ERROR retrieving schema: %v\n", s.SchemaErr)
		case s.Schema == "":
			fmt.Fprintln(w, "    (Schema not found or file empty)")
		default:
			for _, line := range strings.Split(s.Schema, "\n") {
				fmt.Fprintf(w, "    %s\n", line)
			}
		}
	}
	fmt.Fprintln(w, "\n--- Aggregated Statistics ---")
	fmt.Fprintf(w, "%-12s | %-10s | %-15s | %-10s | %-10s | %s\n", "Table", "File Count", "Total Rows", "First", "Last", "Errors")
	fmt.Fprintln(w, strings.Repeat("-", 90))
	for _, s := range summaries {
		errorStr := ""
		if s.SchemaErr != nil && s.StatsErr != nil {
			errorStr = "Schema & Stats Error"
		} else if s.SchemaErr != nil {
			errorStr = "Schema Error"
		} else if s.StatsErr != nil {
			errorStr = "Stats Error"
		}
		first, last := "", ""
		if len(s.Periods) > 0 {
			first, last = s.Periods[0], s.Periods[len(s.Periods)-1]
		}
		fmt.Fprintf(w, "%-12s | %-10d | %-15d | %-10s | %-10s | %s\n", s.Table, len(s.Files), s.TotalRows, first, last, errorStr)
	}
	fmt.Fprintln(w, strings.Repeat("-", 90))
}

func getSchemaAndColumns(ctx context.Context, conn *sql.Conn, filePath string) (schemaString string, columnNames []string, err error) {
	duckdbFilePath := strings.ReplaceAll(filePath, `\`, `/`)
	escapedFilePath := strings.ReplaceAll(duckdbFilePath, "'", "''")
	describeSQL := fmt.Sprintf("DESCRIBE SELECT * FROM read_parquet('%s');", escapedFilePath)
	schemaRows, err := conn.QueryContext(ctx, describeSQL)
	if err != nil {
		return "", nil, fmt.Errorf("query schema for %s: %w", filePath, err)
	}
	defer schemaRows.Close()

	var b strings.Builder
	fmt.Fprintf(&b, "  %-30s | %-20s | %s\n", "Column Name", "Column Type", "Null")
	b.WriteString("  " + strings.Repeat("-", 60) + "\n")
	for schemaRows.Next() {
		var colName, colType, nullVal, keyVal, defaultVal, extraVal sql.NullString
		if scanErr := schemaRows.Scan(&colName, &colType, &nullVal, &keyVal, &defaultVal, &extraVal); scanErr != nil {
			return "", nil, fmt.Errorf("scan schema row for %s: %w", filePath, scanErr)
		}
		fmt.Fprintf(&b, "  %-30s | %-20s | %s\n", colName.String, colType.String, nullVal.String)
		if colName.Valid {
			columnNames = append(columnNames, colName.String)
		}
	}
	if err = schemaRows.Err(); err != nil {
		return "", nil, fmt.Errorf("iterate schema rows for %s: %w", filePath, err)
	}
	if len(columnNames) == 0 {
		return "(No columns found)", nil, nil
	}
	return strings.TrimRight(b.String(), "\n"), columnNames, nil
}
