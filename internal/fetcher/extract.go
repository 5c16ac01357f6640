package fetcher

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/brensch/edgarfsn/internal/db"
	"github.com/brensch/edgarfsn/internal/period"
)

// extract writes every entry of the archive in data into dir, skipping names
// that already exist there. Entries are written to a temporary file and
// renamed into place, so an interrupted copy never leaves a file that a later
// run would mistake for a finished one.
func (f *Fetcher) extract(ctx context.Context, l *slog.Logger, p period.Period, url, dir string, data []byte) (extracted, skipped []string, err error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, &FetchError{Kind: InvalidArchive, Period: p, URL: url, Err: err}
	}

	var entryErrors []error
	for _, zf := range zr.File {
		select {
		case <-ctx.Done():
			l.Warn("Extraction cancelled.", "error", ctx.Err())
			return extracted, skipped, errors.Join(append(entryErrors, ctx.Err())...)
		default:
		}

		if zf.FileInfo().IsDir() {
			continue
		}
		name := filepath.Base(filepath.FromSlash(zf.Name))
		if name == "." || name == string(filepath.Separator) {
			continue
		}
		target := filepath.Join(dir, name)
		entryID := p.String() + "/" + name
		el := l.With(slog.String("entry", name))

		if _, statErr := os.Stat(target); statErr == nil {
			el.Debug("Entry already present, skipping.")
			skipped = append(skipped, name)
			f.ledger.Record(ctx, db.Event{Item: entryID, ItemType: db.ItemTypeEntry, Event: db.EventSkipExtract, SourceURL: url, OutputPath: target})
			continue
		} else if !errors.Is(statErr, fs.ErrNotExist) {
			entryErrors = append(entryErrors, fmt.Errorf("stat %s: %w", target, statErr))
			continue
		}

		start := time.Now()
		sum, n, writeErr := writeEntry(zf, dir, target)
		if writeErr != nil {
			el.Error("Failed to extract entry.", "error", writeErr)
			if errors.Is(writeErr, zip.ErrFormat) || errors.Is(writeErr, zip.ErrChecksum) || errors.Is(writeErr, zip.ErrAlgorithm) {
				writeErr = &FetchError{Kind: InvalidArchive, Period: p, URL: url, Err: fmt.Errorf("entry %s: %w", name, writeErr)}
			}
			entryErrors = append(entryErrors, writeErr)
			f.ledger.Record(ctx, db.Event{Item: entryID, ItemType: db.ItemTypeEntry, Event: db.EventError, SourceURL: url, OutputPath: target, Message: writeErr.Error()})
			continue
		}

		el.Info("Entry extracted.", slog.Int64("bytes", n))
		extracted = append(extracted, name)
		f.ledger.Record(ctx, db.Event{
			Item: entryID, ItemType: db.ItemTypeEntry, Event: db.EventExtractEnd,
			SourceURL: url, OutputPath: target, SHA256: sum, Duration: time.Since(start),
		})
	}
	return extracted, skipped, errors.Join(entryErrors...)
}

// tempInfix marks the in-progress copy of an entry, named ".<entry>.part-<random>".
const tempInfix = ".part-"

// IsTemp reports whether name is an in-progress entry copy left by extract.
func IsTemp(name string) bool {
	return strings.HasPrefix(name, ".") && strings.Contains(name, tempInfix)
}

// writeEntry copies one archive entry to target and returns its SHA-256.
func writeEntry(zf *zip.File, dir, target string) (string, int64, error) {
	rc, err := zf.Open()
	if err != nil {
		return "", 0, fmt.Errorf("open entry %s: %w", zf.Name, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+tempInfix+"*")
	if err != nil {
		rc.Close()
		return "", 0, fmt.Errorf("create temp file in %s: %w", dir, err)
	}

	h := sha256.New()
	n, copyErr := io.Copy(io.MultiWriter(tmp, h), rc)
	closeTmpErr := tmp.Close()
	closeRcErr := rc.Close()

	if err := errors.Join(copyErr, closeTmpErr, closeRcErr); err != nil {
		os.Remove(tmp.Name())
		return "", 0, fmt.Errorf("extract %s: %w", zf.Name, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return "", 0, fmt.Errorf("rename into %s: %w", target, err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
