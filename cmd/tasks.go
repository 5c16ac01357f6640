package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/brensch/edgarfsn/internal/bucket"
	"github.com/brensch/edgarfsn/internal/config"
	"github.com/brensch/edgarfsn/internal/converter"
	"github.com/brensch/edgarfsn/internal/fetcher"
	"github.com/brensch/edgarfsn/internal/period"
	"github.com/brensch/edgarfsn/internal/report"
	"github.com/brensch/edgarfsn/internal/uploader"
)

// resolvePeriods returns the named periods, or every period from the
// configured start year through the current quarter.
func resolvePeriods(cfg config.Config, args []string, now time.Time) ([]period.Period, error) {
	if len(args) > 0 {
		return period.ParseAll(args)
	}
	return period.Enumerate(cfg.Archive.StartYear, now), nil
}

// runFetch refuses to contact the SEC without a contact address.
func runFetch(ctx context.Context, cfg config.Config, periods []period.Period, notify report.Notifier) (report.Summary, error) {
	if err := cfg.ValidateFetch(); err != nil {
		return report.Summary{Op: "fetch"}, err
	}
	f := fetcher.New(cfg, newSECClient(cfg), getLedger(), getLogger())
	f.Notify = notify
	return f.FetchAll(ctx, periods), nil
}

func runConvert(ctx context.Context, cfg config.Config, notify report.Notifier) report.Summary {
	c := converter.New(cfg, getLedger(), getLogger())
	c.Notify = notify
	return c.ConvertAll(ctx)
}

func runUpload(ctx context.Context, cfg config.Config, notify report.Notifier) (report.Summary, error) {
	if cfg.Bucket.Name == "" {
		return report.Summary{Op: "upload"}, errors.New("no bucket configured (set --bucket or bucket.name)")
	}
	store, err := bucket.New(ctx, cfg)
	if err != nil {
		return report.Summary{Op: "upload"}, err
	}
	defer store.Close()

	u := uploader.New(cfg, store, getLedger(), getLogger())
	u.Notify = notify
	if cfg.Upload.Concurrent {
		return u.UploadTreeConcurrent(ctx, cfg.DataDir, cfg.Bucket.Name, cfg.Upload.Workers), nil
	}
	return u.UploadTree(ctx, cfg.DataDir, cfg.Bucket.Name), nil
}

func countConvertJobs(cfg config.Config) (int, error) {
	jobs, err := converter.New(cfg, nil, getLogger()).Jobs()
	return len(jobs), err
}

func countUploadFiles(cfg config.Config) (int, error) {
	files, err := uploader.Walk(cfg.DataDir)
	return len(files), err
}

// summaryResult adapts a batch summary to the terminal UI's task result.
func summaryResult(sum report.Summary) (*report.Summary, string, error) {
	if sum.Cancelled {
		return &sum, "", context.Canceled
	}
	return &sum, "", nil
}
