// Package report tallies the per-item outcomes of a best-effort batch.
package report

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// Status is the terminal state of one batch item.
type Status string

const (
	Succeeded Status = "succeeded"
	Failed    Status = "failed"
	Skipped   Status = "skipped"
)

// Item is the outcome for one period, file or object.
type Item struct {
	ID      string
	Status  Status
	Err     error
	Bytes   int64
	Elapsed time.Duration
	Detail  string
}

// Summary is the caller-visible result of a batch.
type Summary struct {
	Op    string
	Items []Item
	// Cancelled is set when the batch stopped early because its context ended.
	Cancelled bool
}

func (s *Summary) Add(it Item) {
	s.Items = append(s.Items, it)
}

func (s Summary) count(st Status) int {
	n := 0
	for _, it := range s.Items {
		if it.Status == st {
			n++
		}
	}
	return n
}

func (s Summary) Succeeded() int { return s.count(Succeeded) }
func (s Summary) Failed() int    { return s.count(Failed) }
func (s Summary) Skipped() int   { return s.count(Skipped) }
func (s Summary) Total() int     { return len(s.Items) }

// IDs returns the sorted IDs of items with the given status.
func (s Summary) IDs(st Status) []string {
	var out []string
	for _, it := range s.Items {
		if it.Status == st {
			out = append(out, it.ID)
		}
	}
	sort.Strings(out)
	return out
}

// FailedIDs returns the sorted IDs of failed items.
func (s Summary) FailedIDs() []string { return s.IDs(Failed) }

// Bytes is the total payload size of succeeded items.
func (s Summary) Bytes() int64 {
	var n int64
	for _, it := range s.Items {
		if it.Status == Succeeded {
			n += it.Bytes
		}
	}
	return n
}

// Err joins the errors of every failed item, or returns nil.
func (s Summary) Err() error {
	var errs []error
	for _, it := range s.Items {
		if it.Status == Failed && it.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", it.ID, it.Err))
		}
	}
	return errors.Join(errs...)
}

// LogValue lets a Summary be passed directly as a slog attribute.
func (s Summary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("op", s.Op),
		slog.Int("total", s.Total()),
		slog.Int("succeeded", s.Succeeded()),
		slog.Int("failed", s.Failed()),
		slog.Int("skipped", s.Skipped()),
		slog.Int64("bytes", s.Bytes()),
		slog.Bool("cancelled", s.Cancelled),
	)
}

func (s Summary) String() string {
	return fmt.Sprintf("%s: %d succeeded, %d failed, %d skipped (of %d)", s.Op, s.Succeeded(), s.Failed(), s.Skipped(), s.Total())
}

// Notifier receives item progress, e.g. for a terminal UI. A nil Notifier is ignored.
type Notifier func(Item)

func (n Notifier) Notify(it Item) {
	if n != nil {
		n(it)
	}
}
