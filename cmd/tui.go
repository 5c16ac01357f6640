package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/brensch/edgarfsn/internal/app"
	"github.com/brensch/edgarfsn/internal/inspector"
	"github.com/brensch/edgarfsn/internal/report"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Interactive terminal UI for fetching, converting, uploading and inspecting",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if logOutput == "" || logOutput == "stderr" || logOutput == "stdout" {
			getLogger().Warn("Logs written to the terminal will interleave with the UI; consider --log-output <file>.")
		}
		ctx, stop := signalContext()
		defer stop()

		model := app.New(ctx, uiTasks(), getLogger())
		if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return fmt.Errorf("terminal UI: %w", err)
		}
		return nil
	},
}

func uiTasks() []app.Task {
	cfg := getConfig()
	return []app.Task{
		{
			Name: "Fetch Archives",
			Total: func() (int, error) {
				if err := cfg.ValidateFetch(); err != nil {
					return 0, err
				}
				periods, err := resolvePeriods(cfg, nil, time.Now())
				return len(periods), err
			},
			Run: func(ctx context.Context, notify report.Notifier) (*report.Summary, string, error) {
				periods, err := resolvePeriods(cfg, nil, time.Now())
				if err != nil {
					return nil, "", err
				}
				sum, err := runFetch(ctx, cfg, periods, notify)
				if err != nil {
					return nil, "", err
				}
				return summaryResult(sum)
			},
		},
		{
			Name:  "Convert to Parquet",
			Total: func() (int, error) { return countConvertJobs(cfg) },
			Run: func(ctx context.Context, notify report.Notifier) (*report.Summary, string, error) {
				return summaryResult(runConvert(ctx, cfg, notify))
			},
		},
		{
			Name:  "Upload to Bucket",
			Total: func() (int, error) { return countUploadFiles(cfg) },
			Run: func(ctx context.Context, notify report.Notifier) (*report.Summary, string, error) {
				sum, err := runUpload(ctx, cfg, notify)
				if err != nil {
					return nil, "", err
				}
				return summaryResult(sum)
			},
		},
		{
			Name: "Inspect Parquet",
			Run: func(ctx context.Context, notify report.Notifier) (*report.Summary, string, error) {
				var buf bytes.Buffer
				tables, err := inspector.Inspect(ctx, cfg.DataDir, &buf, getLogger())
				if err != nil {
					return nil, "", err
				}
				return nil, fmt.Sprintf("%d tables\n%s", len(tables), buf.String()), nil
			},
		},
	}
}
