package uploader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/brensch/edgarfsn/internal/bucket"
	"github.com/brensch/edgarfsn/internal/config"
	"github.com/brensch/edgarfsn/internal/converter"
	"github.com/brensch/edgarfsn/internal/db"
	"github.com/brensch/edgarfsn/internal/fetcher"
	"github.com/brensch/edgarfsn/internal/report"
)

// Uploader mirrors a local directory tree into a bucket.
type Uploader struct {
	store  bucket.Store
	prefix string
	ledger *db.Ledger
	logger *slog.Logger

	// Notify, when set, receives one item per file as uploads finish.
	// It may be called from several goroutines at once.
	Notify report.Notifier
}

func New(cfg config.Config, store bucket.Store, ledger *db.Ledger, logger *slog.Logger) *Uploader {
	return &Uploader{
		store:  store,
		prefix: cfg.Bucket.KeyPrefix,
		ledger: ledger,
		logger: logger,
	}
}

// DeriveKey strips the root from p and returns the remainder with forward
// slashes: <root>/a/b/c.tsv becomes a/b/c.tsv.
func DeriveKey(root, p string) string {
	root = filepath.Clean(root)
	p = filepath.Clean(p)
	var rel string
	if strings.HasPrefix(p, root+string(filepath.Separator)) {
		rel = p[len(root):]
	} else if r, err := filepath.Rel(root, p); err == nil {
		rel = r
	} else {
		rel = p
	}
	rel = strings.TrimLeft(rel, string(filepath.Separator)+"/")
	return filepath.ToSlash(rel)
}

// Key is DeriveKey with the configured key prefix applied.
func (u *Uploader) Key(root, p string) string {
	key := DeriveKey(root, p)
	if u.prefix == "" {
		return key
	}
	return path.Join(strings.Trim(u.prefix, "/"), key)
}

// Walk returns every regular file under root in lexical order, leaving out
// the partial files of an extraction or conversion still in progress.
func Walk(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if fetcher.IsTemp(d.Name()) || converter.IsTemp(d.Name()) {
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return files, nil
}

// UploadTree uploads every file under root one at a time. A failed upload is
// logged and counted; the walk continues.
func (u *Uploader) UploadTree(ctx context.Context, root, bucketName string) report.Summary {
	sum := report.Summary{Op: "upload"}
	files, err := Walk(root)
	if err != nil {
		u.logger.Error("Failed to list files for upload.", "root", root, "error", err)
		sum.Add(report.Item{ID: root, Status: report.Failed, Err: err})
		return sum
	}

	for i, p := range files {
		select {
		case <-ctx.Done():
			u.logger.Warn("Upload cancelled.", "error", ctx.Err())
			sum.Cancelled = true
			return u.finish(sum)
		default:
		}

		l := u.logger.With(slog.String("file", p), slog.Int("index", i+1), slog.Int("total", len(files)))
		item := u.uploadOne(ctx, l, p, bucketName, u.Key(root, p))
		if isCancellation(item.Err) {
			sum.Cancelled = true
			return u.finish(sum)
		}
		sum.Add(item)
		u.Notify.Notify(item)
	}
	return u.finish(sum)
}

// UploadTreeConcurrent uploads every file under root using a pool of workers.
// Each file gets a Handle; the call returns once every handle has settled.
func (u *Uploader) UploadTreeConcurrent(ctx context.Context, root, bucketName string, workers int) report.Summary {
	sum := report.Summary{Op: "upload"}
	files, err := Walk(root)
	if err != nil {
		u.logger.Error("Failed to list files for upload.", "root", root, "error", err)
		sum.Add(report.Item{ID: root, Status: report.Failed, Err: err})
		return sum
	}

	pool := u.NewPool(ctx, workers)
	handles := make([]*Handle, 0, len(files))
	for _, p := range files {
		handles = append(handles, pool.Submit(p, bucketName, u.Key(root, p)))
	}
	pool.Close()

	for _, h := range handles {
		item := h.Wait()
		if isCancellation(item.Err) {
			sum.Cancelled = true
			continue
		}
		sum.Add(item)
	}
	if sum.Cancelled {
		u.logger.Warn("Upload cancelled.", "error", ctx.Err())
	}
	return u.finish(sum)
}

func (u *Uploader) uploadOne(ctx context.Context, l *slog.Logger, localPath, bucketName, key string) report.Item {
	start := time.Now()
	item := report.Item{ID: key}
	if ctx.Err() != nil {
		item.Status, item.Err = report.Failed, ctx.Err()
		return item
	}

	var size int64
	if fi, err := os.Stat(localPath); err == nil {
		size = fi.Size()
	}

	err := u.store.UploadFile(ctx, localPath, bucketName, key)
	item.Elapsed = time.Since(start)
	if err != nil {
		item.Status, item.Err = report.Failed, err
		if isCancellation(err) {
			return item
		}
		l.Error("Failed to upload file.", "key", key, "error", err)
		u.ledger.Record(ctx, db.Event{Item: key, ItemType: db.ItemTypeObject, Event: db.EventError, OutputPath: localPath, Message: err.Error()})
		return item
	}

	item.Status, item.Bytes = report.Succeeded, size
	l.Debug("Upload complete.", slog.String("key", key), slog.Int64("bytes", size))
	u.ledger.Record(ctx, db.Event{
		Item: key, ItemType: db.ItemTypeObject, Event: db.EventUploadEnd,
		OutputPath: localPath, SourceURL: bucketName, Duration: item.Elapsed,
	})
	return item
}

func (u *Uploader) finish(sum report.Summary) report.Summary {
	u.logger.Info("Upload batch finished.", slog.Any("summary", sum))
	return sum
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
