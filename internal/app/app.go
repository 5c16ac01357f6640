// Package app is the interactive terminal front end. Each menu entry runs one
// batch in a goroutine and streams its per-item outcomes into the view.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/brensch/edgarfsn/internal/report"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	cursorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("79")).Bold(true)
	hintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	statusGlyph  = map[report.Status]string{report.Succeeded: "✓", report.Skipped: "-", report.Failed: "✗"}
	statusStyles = map[report.Status]lipgloss.Style{
		report.Succeeded: lipgloss.NewStyle().Foreground(lipgloss.Color("46")),
		report.Skipped:   lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		report.Failed:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
)

const (
	exitChoice = "Exit"
	idWidth    = 36
)

// Task is one menu entry. Run reports every finished item through notify and
// returns the batch summary (nil for tasks that are not batches) plus any
// extra text to show. Total, when set, sizes the progress bar.
type Task struct {
	Name  string
	Total func() (int, error)
	Run   func(ctx context.Context, notify report.Notifier) (*report.Summary, string, error)
}

// taskRun is the state of the task currently executing.
type taskRun struct {
	task    Task
	cancel  context.CancelFunc
	events  chan tea.Msg
	started time.Time
	total   int
	items   []report.Item
	failed  int
}

// Model implements tea.Model.
type Model struct {
	screen Screen
	tasks  []Task
	cursor int

	bar     progress.Model
	spinner spinner.Model

	width, height int
	logger        *slog.Logger
	ctx           context.Context

	run    *taskRun
	result string
	err    error
}

func New(ctx context.Context, tasks []Task, logger *slog.Logger) *Model {
	dots := spinner.New(spinner.WithSpinner(spinner.MiniDot))
	dots.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return &Model{
		screen:  screenMenu,
		tasks:   tasks,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(60)),
		spinner: dots,
		width:   80,
		height:  24,
		logger:  logger,
		ctx:     ctx,
	}
}

func (m *Model) choices() []string {
	out := make([]string, 0, len(m.tasks)+1)
	for _, t := range m.tasks {
		out = append(out, t.Name)
	}
	return append(out, exitChoice)
}

func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.bar.Width = max(10, min(80, msg.Width-20))

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case totalMsg:
		if m.run != nil {
			m.run.total = msg.total
			return m, listen(m.run.events)
		}

	case itemMsg:
		if m.run != nil {
			m.run.items = append(m.run.items, msg.item)
			if msg.item.Status == report.Failed {
				m.run.failed++
			}
			return m, listen(m.run.events)
		}

	case doneMsg:
		m.finish(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	key := msg.String()
	if key == "ctrl+c" || key == "q" {
		if m.run != nil {
			m.logger.Info("Quit requested, cancelling task.", slog.String("task", m.run.task.Name))
			m.run.cancel()
		}
		m.screen = screenQuitting
		return tea.Quit
	}

	switch m.screen {
	case screenMenu:
		switch key {
		case "up", "k":
			m.cursor = max(0, m.cursor-1)
		case "down", "j":
			m.cursor = min(len(m.tasks), m.cursor+1)
		case "enter":
			if m.cursor == len(m.tasks) {
				m.screen = screenQuitting
				return tea.Quit
			}
			return m.start(m.tasks[m.cursor])
		}
	case screenRunning:
		if key == "esc" && m.run != nil {
			m.run.cancel()
		}
	case screenFailed:
		if key == "enter" || key == "esc" {
			m.err = nil
			m.screen = screenMenu
		}
	}
	return nil
}

// start launches task in its own goroutine and returns the commands that
// begin reading its events.
func (m *Model) start(task Task) tea.Cmd {
	ctx, cancel := context.WithCancel(m.ctx)
	run := &taskRun{task: task, cancel: cancel, events: make(chan tea.Msg), started: time.Now()}
	m.run, m.result, m.err = run, "", nil
	m.screen = screenRunning
	m.logger.Debug("Starting task.", slog.String("task", task.Name))

	launch := func() tea.Msg {
		go run.execute(ctx)
		return nil
	}
	return tea.Batch(launch, listen(run.events))
}

func (r *taskRun) execute(ctx context.Context) {
	defer close(r.events)
	var done doneMsg
	defer func() { r.events <- done }()

	if r.task.Total != nil {
		n, err := r.task.Total()
		if err != nil {
			done.err = err
			return
		}
		r.events <- totalMsg{total: n}
	}
	notify := func(it report.Item) {
		select {
		case r.events <- itemMsg{item: it}:
		case <-ctx.Done():
		}
	}
	done.summary, done.detail, done.err = r.task.Run(ctx, notify)
}

// listen returns the next message from a task, or nil once it has closed.
func listen(events chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-events
		if !ok {
			return nil
		}
		return msg
	}
}

func (m *Model) finish(msg doneMsg) {
	run := m.run
	if run == nil {
		return
	}
	m.run = nil
	run.cancel()
	elapsed := time.Since(run.started).Round(time.Millisecond)
	m.logger.Info("Task finished.", slog.String("task", run.task.Name), slog.Duration("elapsed", elapsed))

	var lines []string
	if msg.summary != nil {
		lines = append(lines, msg.summary.String())
	}
	if msg.detail != "" {
		lines = append(lines, msg.detail)
	}
	m.result = strings.Join(lines, "\n")
	m.screen = screenMenu

	err := msg.err
	switch {
	case errors.Is(err, context.Canceled):
		m.result = strings.TrimSpace(fmt.Sprintf("%s cancelled after %s\n%s", run.task.Name, elapsed, m.result))
		return
	case err == nil && msg.summary != nil && msg.summary.Failed() > 0:
		err = msg.summary.Err()
	}
	if err != nil {
		m.err = fmt.Errorf("%s: %w", run.task.Name, err)
		m.screen = screenFailed
	}
}

func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("EDGAR Financial Statement & Notes mirror"))
	b.WriteString("\n\n")

	var hint string
	switch m.screen {
	case screenMenu:
		b.WriteString(m.menuView())
		if m.result != "" {
			b.WriteString("\n" + hintStyle.Render(m.result) + "\n")
		}
		hint = "↑/↓ to move, enter to run, q to quit"
	case screenRunning:
		b.WriteString(m.runView())
		hint = "esc to cancel the task, q to cancel and quit"
	case screenFailed:
		b.WriteString(errorStyle.Bold(true).Render("Task failed"))
		b.WriteString("\n\n")
		if m.result != "" {
			b.WriteString(m.result + "\n\n")
		}
		if m.err != nil {
			b.WriteString(errorStyle.Width(max(20, m.width-4)).Render(m.err.Error()))
		}
		hint = "enter or esc for the menu, q to quit"
	case screenQuitting:
		return hintStyle.Render("Bye.") + "\n"
	}
	b.WriteString("\n\n" + hintStyle.Render(hint))
	return b.String()
}

func (m *Model) menuView() string {
	var b strings.Builder
	for i, choice := range m.choices() {
		if i == m.cursor {
			b.WriteString(cursorStyle.Render("› " + choice))
		} else {
			b.WriteString("  " + choice)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) runView() string {
	run := m.run
	if run == nil {
		return ""
	}
	var b strings.Builder
	done := len(run.items)
	fmt.Fprintf(&b, "%s %s  %s\n", m.spinner.View(), run.task.Name, time.Since(run.started).Round(time.Second))
	if run.total > 0 {
		b.WriteString(m.bar.ViewAs(min(1, float64(done)/float64(run.total))))
		fmt.Fprintf(&b, "  %d/%d", done, run.total)
	} else {
		fmt.Fprintf(&b, "%d done", done)
	}
	if run.failed > 0 {
		b.WriteString(errorStyle.Render(fmt.Sprintf("  %d failed", run.failed)))
	}
	b.WriteString("\n\n")

	if done == 0 {
		return b.String()
	}
	idCol := lipgloss.NewStyle().Width(idWidth).MaxHeight(1)
	b.WriteString(headerStyle.Render(idCol.Render("Item") + "  " + "Elapsed   Detail"))
	b.WriteString("\n")

	rows := run.items[max(0, done-max(1, m.height-10)):]
	detailWidth := max(10, m.width-idWidth-16)
	for _, it := range rows {
		style, ok := statusStyles[it.Status]
		if !ok {
			style = hintStyle
		}
		detail := it.Detail
		if it.Err != nil {
			detail = it.Err.Error()
			style = errorStyle
		}
		line := fmt.Sprintf("%s %s %-9s %s",
			style.Render(statusGlyph[it.Status]),
			idCol.Render(it.ID),
			it.Elapsed.Round(time.Millisecond),
			lipgloss.NewStyle().MaxWidth(detailWidth).Render(detail),
		)
		b.WriteString(line + "\n")
	}
	return b.String()
}
