package app

import (
	"github.com/brensch/edgarfsn/internal/report"
)

// Messages sent from a running task to the model. They travel over the
// task's events channel and are read one at a time by listen.

// totalMsg carries the number of items the task expects to report.
type totalMsg struct{ total int }

// itemMsg reports one finished period, file or object.
type itemMsg struct{ item report.Item }

// doneMsg is the last message of a task; the channel is closed after it.
type doneMsg struct {
	summary *report.Summary
	detail  string
	err     error
}
