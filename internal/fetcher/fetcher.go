package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/brensch/edgarfsn/internal/config"
	"github.com/brensch/edgarfsn/internal/db"
	"github.com/brensch/edgarfsn/internal/period"
	"github.com/brensch/edgarfsn/internal/report"
	"github.com/brensch/edgarfsn/internal/util"
)

// SourceDirName is the per-period subdirectory holding extracted archive entries.
const SourceDirName = "source"

// Fetcher downloads quarterly notes archives and extracts them under the data directory.
type Fetcher struct {
	cfg       config.Config
	client    util.Doer
	ledger    *db.Ledger
	logger    *slog.Logger
	userAgent string

	// Notify, when set, receives one item per period as the batch progresses.
	Notify report.Notifier
	// RetryBase is the first retry delay; later delays grow exponentially.
	RetryBase time.Duration
}

// PeriodResult is the outcome of fetching one period.
type PeriodResult struct {
	Period    period.Period
	URL       string
	Dir       string
	Extracted []string
	Skipped   []string
	Bytes     int64
	Err       error
}

// Status maps the result onto the batch vocabulary: a period whose entries
// were all present already counts as skipped.
func (r PeriodResult) Status() report.Status {
	switch {
	case r.Err != nil:
		return report.Failed
	case len(r.Extracted) == 0 && len(r.Skipped) > 0:
		return report.Skipped
	default:
		return report.Succeeded
	}
}

// New returns a Fetcher. client is typically a rate-limited *http.Client; a nil
// ledger disables event recording.
func New(cfg config.Config, client util.Doer, ledger *db.Ledger, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = util.NewHTTPClient(cfg.HTTP.Timeout)
	}
	return &Fetcher{
		cfg:       cfg,
		client:    client,
		ledger:    ledger,
		logger:    logger,
		userAgent: cfg.UserAgent(config.Version),
		RetryBase: time.Second,
	}
}

// ArchiveURL returns where the archive for p is expected, honouring overrides.
func (f *Fetcher) ArchiveURL(p period.Period) string {
	if u, ok := f.cfg.Archive.Overrides[p.String()]; ok && u != "" {
		return u
	}
	return strings.TrimRight(f.cfg.Archive.BaseURL, "/") + "/" + p.ArchiveName()
}

// LocalDir is <data_dir>/<year>_<quarter>/source.
func (f *Fetcher) LocalDir(p period.Period) string {
	return filepath.Join(f.cfg.DataDir, p.Dir(), SourceDirName)
}

// Fetch downloads and extracts the archive for one period. Entries already
// present locally are left untouched. The returned error is also stored in
// the result; it is a *FetchError for retrieval and decoding failures.
func (f *Fetcher) Fetch(ctx context.Context, p period.Period) (PeriodResult, error) {
	l := f.logger.With(slog.String("period", p.String()))
	res := PeriodResult{Period: p, URL: f.ArchiveURL(p), Dir: f.LocalDir(p)}
	fail := func(err error) (PeriodResult, error) {
		res.Err = err
		f.ledger.Record(ctx, db.Event{
			Item: p.String(), ItemType: db.ItemTypeArchive, Event: db.EventError,
			SourceURL: res.URL, OutputPath: res.Dir, Message: err.Error(),
		})
		return res, err
	}

	if err := os.MkdirAll(res.Dir, 0o755); err != nil {
		return fail(fmt.Errorf("create local dir %s: %w", res.Dir, err))
	}

	start := time.Now()
	l.Info("Fetching archive.", slog.String("url", res.URL))
	f.ledger.Record(ctx, db.Event{Item: p.String(), ItemType: db.ItemTypeArchive, Event: db.EventDownloadStart, SourceURL: res.URL})

	data, err := f.download(ctx, l, p, res.URL)
	if err != nil && IsNotFound(err) && f.cfg.Archive.DiscoverMissing && f.cfg.Archive.IndexURL != "" {
		alt, derr := f.Discover(ctx, p)
		switch {
		case derr != nil:
			l.Warn("Archive discovery failed.", "error", derr)
		case alt != "" && alt != res.URL:
			l.Info("Archive found at alternate location.", slog.String("url", alt))
			f.ledger.Record(ctx, db.Event{Item: p.String(), ItemType: db.ItemTypeArchive, Event: db.EventDiscovered, SourceURL: alt})
			res.URL = alt
			data, err = f.download(ctx, l, p, alt)
		}
	}
	if err != nil {
		return fail(err)
	}
	res.Bytes = int64(len(data))
	f.ledger.Record(ctx, db.Event{
		Item: p.String(), ItemType: db.ItemTypeArchive, Event: db.EventDownloadEnd,
		SourceURL: res.URL, Duration: time.Since(start),
	})
	l.Info("Archive downloaded.", slog.Int64("bytes", res.Bytes), slog.Duration("duration", time.Since(start).Round(time.Millisecond)))

	extracted, skipped, err := f.extract(ctx, l, p, res.URL, res.Dir, data)
	res.Extracted, res.Skipped = extracted, skipped
	if err != nil {
		return fail(err)
	}

	f.ledger.Record(ctx, db.Event{
		Item: p.String(), ItemType: db.ItemTypeArchive, Event: db.EventPeriodComplete,
		SourceURL: res.URL, OutputPath: res.Dir, Duration: time.Since(start),
		Message: fmt.Sprintf("extracted %d, skipped %d", len(extracted), len(skipped)),
	})
	l.Info("Period complete.", slog.Int("extracted", len(extracted)), slog.Int("skipped", len(skipped)))
	return res, nil
}

// FetchAll fetches every period in order. A failed period never stops the
// batch; cancellation does.
func (f *Fetcher) FetchAll(ctx context.Context, periods []period.Period) report.Summary {
	sum := report.Summary{Op: "fetch"}
	for i, p := range periods {
		l := f.logger.With(slog.String("period", p.String()), slog.Int("index", i+1), slog.Int("total", len(periods)))

		select {
		case <-ctx.Done():
			l.Warn("Fetch cancelled.", "error", ctx.Err())
			sum.Cancelled = true
			return f.finish(sum)
		default:
		}

		start := time.Now()
		res, err := f.Fetch(ctx, p)
		if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			l.Warn("Fetch cancelled.", "error", err)
			sum.Cancelled = true
			return f.finish(sum)
		}
		if err != nil {
			l.Error("Failed to fetch period.", "error", err)
		}
		item := report.Item{
			ID:      p.String(),
			Status:  res.Status(),
			Err:     err,
			Bytes:   res.Bytes,
			Elapsed: time.Since(start),
			Detail:  fmt.Sprintf("%d extracted, %d skipped", len(res.Extracted), len(res.Skipped)),
		}
		sum.Add(item)
		f.Notify.Notify(item)
	}
	return f.finish(sum)
}

func (f *Fetcher) finish(sum report.Summary) report.Summary {
	f.logger.Info("Fetch batch finished.", slog.Any("summary", sum))
	return sum
}

// download GETs url, retrying temporary failures up to http.retries times.
func (f *Fetcher) download(ctx context.Context, l *slog.Logger, p period.Period, url string) ([]byte, error) {
	var data []byte
	op := func() error {
		var err error
		data, err = f.get(ctx, p, url)
		if err == nil {
			return nil
		}
		var fe *FetchError
		if errors.As(err, &fe) && fe.Temporary() && ctx.Err() == nil {
			return err
		}
		return backoff.Permanent(err)
	}

	if f.cfg.HTTP.Retries <= 0 {
		err := op()
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return nil, perm.Err
		}
		return data, err
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = f.RetryBase
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(f.cfg.HTTP.Retries)), ctx)
	err := backoff.RetryNotify(op, b, func(err error, d time.Duration) {
		l.Warn("Archive download failed, retrying.", "error", err, slog.Duration("backoff", d))
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (f *Fetcher) get(ctx context.Context, p period.Period, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	data, err := util.DownloadFile(f.client, req)
	if err == nil {
		return data, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	var se *util.StatusError
	if errors.As(err, &se) {
		return nil, &FetchError{Kind: HTTPStatus, Period: p, URL: url, StatusCode: se.Code, Err: err}
	}
	return nil, &FetchError{Kind: Network, Period: p, URL: url, Err: err}
}
