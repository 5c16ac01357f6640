package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brensch/edgarfsn/internal/report"
)

func batchTask(name string, items ...report.Item) Task {
	return Task{
		Name:  name,
		Total: func() (int, error) { return len(items), nil },
		Run: func(ctx context.Context, notify report.Notifier) (*report.Summary, string, error) {
			sum := report.Summary{Op: name}
			for _, it := range items {
				sum.Add(it)
				notify.Notify(it)
			}
			return &sum, "", nil
		},
	}
}

func newModel(tasks ...Task) *Model {
	return New(context.Background(), tasks, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// runCursor presses enter on the highlighted entry and feeds every message
// the task emits back into the model until it finishes.
func runCursor(t *testing.T, m *Model) {
	t.Helper()
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	require.Equal(t, screenRunning, m.screen)
	require.NotNil(t, m.run)

	batch, ok := cmd().(tea.BatchMsg)
	require.True(t, ok)
	events := m.run.events
	require.Nil(t, batch[0]())
	for msg := range events {
		m.Update(msg)
	}
}

func TestMenuNavigation(t *testing.T) {
	m := newModel(batchTask("Fetch Archives"), batchTask("Upload to Bucket"))
	assert.Equal(t, []string{"Fetch Archives", "Upload to Bucket", "Exit"}, m.choices())

	for range 3 {
		m.Update(tea.KeyMsg{Type: tea.KeyDown})
	}
	assert.Equal(t, 2, m.cursor)
	m.Update(tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, 1, m.cursor)
	assert.Contains(t, m.View(), "› Upload to Bucket")

	m.cursor = 2
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, screenQuitting, m.screen)
	assert.NotNil(t, cmd)
}

func TestTaskSuccessReturnsToMenu(t *testing.T) {
	m := newModel(batchTask("convert",
		report.Item{ID: "2019_3/num.tsv", Status: report.Succeeded},
		report.Item{ID: "2019_3/sub.tsv", Status: report.Skipped},
	))
	runCursor(t, m)

	assert.Equal(t, screenMenu, m.screen)
	assert.Nil(t, m.run)
	assert.NoError(t, m.err)
	assert.Contains(t, m.View(), "convert: 1 succeeded, 0 failed, 1 skipped (of 2)")
}

func TestTaskFailureShowsError(t *testing.T) {
	m := newModel(batchTask("fetch",
		report.Item{ID: "2019q3", Status: report.Succeeded},
		report.Item{ID: "2020q1", Status: report.Failed, Err: errors.New("not a zip archive")},
	))
	runCursor(t, m)

	assert.Equal(t, screenFailed, m.screen)
	require.Error(t, m.err)
	assert.Contains(t, m.View(), "2020q1")

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, screenMenu, m.screen)
	assert.NoError(t, m.err)
}

func TestTaskDetailWithoutSummary(t *testing.T) {
	m := newModel(Task{
		Name: "Inspect Parquet",
		Run: func(ctx context.Context, notify report.Notifier) (*report.Summary, string, error) {
			return nil, "2 tables", nil
		},
	})
	runCursor(t, m)
	assert.Equal(t, screenMenu, m.screen)
	assert.Equal(t, "2 tables", m.result)
}

func TestTotalErrorFailsTask(t *testing.T) {
	ran := false
	m := newModel(Task{
		Name:  "Upload to Bucket",
		Total: func() (int, error) { return 0, errors.New("walk: permission denied") },
		Run: func(ctx context.Context, notify report.Notifier) (*report.Summary, string, error) {
			ran = true
			return nil, "", nil
		},
	})
	runCursor(t, m)
	assert.False(t, ran)
	assert.Equal(t, screenFailed, m.screen)
	assert.ErrorContains(t, m.err, "permission denied")
}

func TestCancelledTaskIsNotAFailure(t *testing.T) {
	m := newModel(Task{
		Name: "fetch",
		Run: func(ctx context.Context, notify report.Notifier) (*report.Summary, string, error) {
			return &report.Summary{Op: "fetch", Cancelled: true}, "", context.Canceled
		},
	})
	runCursor(t, m)
	assert.Equal(t, screenMenu, m.screen)
	assert.NoError(t, m.err)
	assert.Contains(t, m.result, "fetch cancelled")
}

func TestRunViewRows(t *testing.T) {
	m := newModel(batchTask("upload"))
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, m.run)
	m.run.cancel()

	m.Update(totalMsg{total: 2})
	m.Update(itemMsg{item: report.Item{ID: "2019_3/source/num.tsv", Status: report.Failed, Err: errors.New("access denied")}})

	assert.Equal(t, 2, m.run.total)
	assert.Equal(t, 1, m.run.failed)
	view := m.View()
	assert.Contains(t, view, "2019_3/source/num.tsv")
	assert.Contains(t, view, "access denied")
	assert.Contains(t, view, "1/2")
	assert.Contains(t, view, "1 failed")
}
