package db

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLedgerRecordsAndReportsPeriods(t *testing.T) {
	ctx := context.Background()
	l, err := Open(":memory:", discardLogger())
	require.NoError(t, err)
	defer l.Close()
	require.NotEmpty(t, l.RunID())

	for _, p := range []string{"2019q3", "2019q1", "2019q3"} {
		require.NoError(t, l.LogEvent(ctx, Event{Item: p, ItemType: ItemTypeArchive, Event: EventPeriodComplete}))
	}
	require.NoError(t, l.LogEvent(ctx, Event{
		Item:     "2020q1",
		ItemType: ItemTypeArchive,
		Event:    EventError,
		Message:  "not a zip archive",
		Duration: 1500 * time.Millisecond,
	}))

	periods, err := l.CompletedPeriods(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2019q1", "2019q3"}, periods)

	var buf bytes.Buffer
	require.NoError(t, l.DisplayHistory(ctx, &buf, ItemTypeArchive, EventError, 10))
	assert.Contains(t, buf.String(), "2020q1")
	assert.Contains(t, buf.String(), "not a zip archive")
	assert.Contains(t, buf.String(), "Displayed 1 records.")
}

func TestLedgerFileReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "state.duckdb")

	l, err := Open(path, discardLogger())
	require.NoError(t, err)
	firstRun := l.RunID()
	l.Record(ctx, Event{Item: "2021q1", ItemType: ItemTypeArchive, Event: EventPeriodComplete})
	require.NoError(t, l.Close())

	l, err = Open(path, discardLogger())
	require.NoError(t, err)
	defer l.Close()
	assert.NotEqual(t, firstRun, l.RunID())

	periods, err := l.CompletedPeriods(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2021q1"}, periods)
}

func TestNilLedgerIsNoOp(t *testing.T) {
	var l *Ledger
	ctx := context.Background()
	assert.NoError(t, l.LogEvent(ctx, Event{Item: "x"}))
	l.Record(ctx, Event{Item: "x"})
	periods, err := l.CompletedPeriods(ctx)
	assert.NoError(t, err)
	assert.Empty(t, periods)
	assert.NoError(t, l.Close())
	assert.Equal(t, "", l.RunID())
}
