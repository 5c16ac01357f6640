package converter

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
	"golang.org/x/text/encoding/charmap"

	"github.com/brensch/edgarfsn/internal/config"
	"github.com/brensch/edgarfsn/internal/db"
	"github.com/brensch/edgarfsn/internal/fetcher"
	"github.com/brensch/edgarfsn/internal/report"
)

// ParquetDirName is the per-period subdirectory holding converted tables.
const ParquetDirName = "parquet"

const parquetExt = ".parquet"

// TempSuffix is appended to a Parquet output while it is being written.
const TempSuffix = ".part"

// IsTemp reports whether name is a Parquet file still being written.
func IsTemp(name string) bool {
	return strings.HasSuffix(name, parquetExt+TempSuffix)
}

// The SEC's narrative txt.tsv carries very long lines.
const maxLineBytes = 64 * 1024 * 1024

// Job is one TSV file and the Parquet file it converts to.
type Job struct {
	Input  string
	Output string
}

// FileResult describes a single conversion.
type FileResult struct {
	Job
	Skipped bool
	Rows    int64
	// BadRows counts rows dropped because their field count did not match the header.
	BadRows int64
	// Nulled counts values written as NULL because they did not fit the inferred type.
	Nulled int64
}

// Converter rewrites extracted TSV files as Snappy-compressed Parquet.
type Converter struct {
	dataDir    string
	workers    int
	schemaRows int
	ledger     *db.Ledger
	logger     *slog.Logger

	// Notify, when set, receives one item per file. It is called from the collecting goroutine only.
	Notify report.Notifier
}

func New(cfg config.Config, ledger *db.Ledger, logger *slog.Logger) *Converter {
	return &Converter{
		dataDir:    cfg.DataDir,
		workers:    max(1, cfg.Convert.Workers),
		schemaRows: max(1, cfg.Convert.SchemaRowLimit),
		ledger:     ledger,
		logger:     logger,
	}
}

// OutputPath maps <dir>/<period>/source/<stem>.tsv to <dir>/<period>/parquet/<stem>.parquet.
func OutputPath(input string) string {
	periodDir := filepath.Dir(filepath.Dir(input))
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(periodDir, ParquetDirName, stem+parquetExt)
}

// Jobs lists every TSV under <data_dir>/*/source in lexical order.
func (c *Converter) Jobs() ([]Job, error) {
	pattern := filepath.Join(c.dataDir, "*", fetcher.SourceDirName, "*.[tT][sS][vV]")
	inputs, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to glob for TSV files in %s: %w", c.dataDir, err)
	}
	sort.Strings(inputs)
	jobs := make([]Job, 0, len(inputs))
	for _, in := range inputs {
		jobs = append(jobs, Job{Input: in, Output: OutputPath(in)})
	}
	return jobs, nil
}

// ConvertAll converts every pending TSV file with a pool of workers.
func (c *Converter) ConvertAll(ctx context.Context) report.Summary {
	sum := report.Summary{Op: "convert"}
	jobList, err := c.Jobs()
	if err != nil {
		c.logger.Error("Failed to list conversion jobs.", "error", err)
		sum.Add(report.Item{ID: c.dataDir, Status: report.Failed, Err: err})
		return sum
	}
	if len(jobList) == 0 {
		c.logger.Info("No TSV files found to convert.", slog.String("dir", c.dataDir))
		return sum
	}
	c.logger.Info("Found TSV files to convert.", slog.Int("count", len(jobList)), slog.Int("workers", c.workers))

	jobs := make(chan Job, len(jobList))
	results := make(chan report.Item, len(jobList))
	var wg sync.WaitGroup

	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			l := c.logger.With(slog.Int("worker", workerID))
			for job := range jobs {
				if ctx.Err() != nil {
					results <- report.Item{ID: c.jobID(job), Status: report.Failed, Err: ctx.Err()}
					continue
				}
				results <- c.convertJob(ctx, l, job)
			}
		}(i + 1)
	}

	for _, job := range jobList {
		jobs <- job
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	for item := range results {
		if errors.Is(item.Err, context.Canceled) || errors.Is(item.Err, context.DeadlineExceeded) {
			sum.Cancelled = true
			continue
		}
		sum.Add(item)
		c.Notify.Notify(item)
	}
	if sum.Cancelled {
		c.logger.Warn("Conversion cancelled.", "error", ctx.Err())
	}
	c.logger.Info("Convert batch finished.", slog.Any("summary", sum))
	return sum
}

// jobID names a job by its period directory and file, e.g. 2019_3/num.tsv.
func (c *Converter) jobID(job Job) string {
	return filepath.ToSlash(filepath.Join(filepath.Base(filepath.Dir(filepath.Dir(job.Input))), filepath.Base(job.Input)))
}

func (c *Converter) convertJob(ctx context.Context, l *slog.Logger, job Job) report.Item {
	id := c.jobID(job)
	l = l.With(slog.String("file", id))
	start := time.Now()

	res, err := c.ConvertFile(ctx, job)
	item := report.Item{ID: id, Elapsed: time.Since(start)}
	switch {
	case err != nil:
		item.Status, item.Err = report.Failed, err
		if ctx.Err() == nil {
			l.Error("Failed to convert file.", "error", err)
			c.ledger.Record(ctx, db.Event{Item: id, ItemType: db.ItemTypeParquet, Event: db.EventError, SourceURL: job.Input, OutputPath: job.Output, Message: err.Error()})
		}
	case res.Skipped:
		item.Status = report.Skipped
		l.Debug("Output exists, skipping.")
		c.ledger.Record(ctx, db.Event{Item: id, ItemType: db.ItemTypeParquet, Event: db.EventSkipConvert, OutputPath: job.Output})
	default:
		item.Status = report.Succeeded
		if fi, statErr := os.Stat(job.Output); statErr == nil {
			item.Bytes = fi.Size()
		}
		item.Detail = fmt.Sprintf("%d rows, %d bad rows", res.Rows, res.BadRows)
		l.Info("File converted.", slog.Int64("rows", res.Rows), slog.Int64("bad_rows", res.BadRows), slog.Int64("nulled", res.Nulled), slog.Duration("duration", item.Elapsed.Round(time.Millisecond)))
		c.ledger.Record(ctx, db.Event{
			Item: id, ItemType: db.ItemTypeParquet, Event: db.EventConvertEnd,
			SourceURL: job.Input, OutputPath: job.Output, Duration: item.Elapsed, Message: item.Detail,
		})
	}
	return item
}

// ConvertFile converts one TSV file. It does nothing when the output already
// exists. The output is written beside its final name and renamed into place.
func (c *Converter) ConvertFile(ctx context.Context, job Job) (res FileResult, err error) {
	res.Job = job
	if _, statErr := os.Stat(job.Output); statErr == nil {
		res.Skipped = true
		return res, nil
	} else if !errors.Is(statErr, fs.ErrNotExist) {
		return res, fmt.Errorf("stat %s: %w", job.Output, statErr)
	}

	in, err := os.Open(job.Input)
	if err != nil {
		return res, fmt.Errorf("open %s: %w", job.Input, err)
	}
	defer in.Close()

	// SEC data sets are ISO-8859-1.
	scanner := bufio.NewScanner(charmap.ISO8859_1.NewDecoder().Reader(in))
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	if !scanner.Scan() {
		if scanErr := scanner.Err(); scanErr != nil {
			return res, fmt.Errorf("read header of %s: %w", job.Input, scanErr)
		}
		return res, fmt.Errorf("%s is empty", job.Input)
	}
	header := splitLine(scanner.Text())

	// Buffer the sample rows; they are written once the schema is known.
	var samples [][]string
	lineNumber := int64(1)
	for len(samples) < c.schemaRows && scanner.Scan() {
		lineNumber++
		fields := splitLine(scanner.Text())
		if len(fields) != len(header) {
			res.BadRows++
			continue
		}
		samples = append(samples, fields)
	}

	schema := inferSchema(header, samples)

	if err := os.MkdirAll(filepath.Dir(job.Output), 0o755); err != nil {
		return res, fmt.Errorf("create output dir for %s: %w", job.Output, err)
	}
	tmpPath := job.Output + TempSuffix
	fw, err := local.NewLocalFileWriter(tmpPath)
	if err != nil {
		return res, fmt.Errorf("create file %s: %w", tmpPath, err)
	}
	pw, err := writer.NewCSVWriter(schema.Metadata(), fw, 4)
	if err != nil {
		fw.Close()
		os.Remove(tmpPath)
		return res, fmt.Errorf("create writer %s: %w", tmpPath, err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	defer func() {
		if err != nil {
			os.Remove(tmpPath)
		}
	}()

	write := func(fields []string) error {
		rec := make([]*string, len(fields))
		for j, v := range fields {
			if v == "" {
				continue
			}
			if !fits(schema.Types[j], v) {
				res.Nulled++
				continue
			}
			val := v
			rec[j] = &val
		}
		if err := pw.WriteString(rec); err != nil {
			return err
		}
		res.Rows++
		return nil
	}

	var writeErr error
	for _, row := range samples {
		if writeErr = write(row); writeErr != nil {
			break
		}
	}
	for writeErr == nil && scanner.Scan() {
		lineNumber++
		if lineNumber%100000 == 0 && ctx.Err() != nil {
			writeErr = ctx.Err()
			break
		}
		fields := splitLine(scanner.Text())
		if len(fields) != len(header) {
			res.BadRows++
			continue
		}
		writeErr = write(fields)
	}
	if writeErr == nil {
		if scanErr := scanner.Err(); scanErr != nil {
			writeErr = fmt.Errorf("scanner error near line %d: %w", lineNumber, scanErr)
		}
	}

	stopErr := pw.WriteStop()
	closeErr := fw.Close()
	if err = errors.Join(writeErr, stopErr, closeErr); err != nil {
		return res, fmt.Errorf("convert %s: %w", job.Input, err)
	}
	if err = os.Rename(tmpPath, job.Output); err != nil {
		return res, fmt.Errorf("rename into %s: %w", job.Output, err)
	}
	return res, nil
}

func splitLine(line string) []string {
	return strings.Split(strings.TrimRight(line, "\r"), "\t")
}
