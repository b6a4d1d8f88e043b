// Package display turns the task table into the lines the UI or batch
// writer prints: one fixed-width row per task, sorted by the active
// column.
package display

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/tiptop-linux/tiptop/pkg/config"
	"github.com/tiptop-linux/tiptop/pkg/expr"
	"github.com/tiptop-linux/tiptop/pkg/screen"
	"github.com/tiptop-linux/tiptop/pkg/task"
)

// Column indices outside the screen's own columns.
const (
	SortByPID = -1 // sort on the thread id
	// NumColumns() sorts on the command name.
)

// Build renders the text row of every displayable task and fills in
// its sort key. A task's Skip flag is set first and cleared only when
// it passes all filters, so a row left over from a previous tick never
// leaks into the display.
func Build(tb *task.Table, s *screen.Screen, opts *config.Options, width, activeCol int) {
	rowWidth := task.TxtLen
	if width >= 0 && width < rowWidth {
		rowWidth = width
	}

	for _, t := range tb.Tasks() {
		t.Skip = true

		// dead and not sticky: not changing anymore, row is up to date
		if t.Dead && !opts.Sticky {
			continue
		}
		if !opts.Idle && t.CPUPercent < opts.CPUThreshold {
			continue
		}
		if opts.OnlyPID != 0 && t.TID != opts.OnlyPID {
			continue
		}
		if opts.OnlyName != "" {
			if opts.ShowCmdline {
				if !strings.Contains(t.Cmdline, opts.OnlyName) {
					continue
				}
			} else if !strings.Contains(t.Name, opts.OnlyName) {
				continue
			}
		}

		buildRow(t, s, opts, rowWidth, activeCol)
		t.Skip = false
	}
}

func buildRow(t *task.Task, s *screen.Screen, opts *config.Options, rowWidth, activeCol int) {
	var sb strings.Builder

	// '+' tags the main thread of a multi-threaded process, '-' a
	// subordinate thread
	thr := ' '
	if t.NumThreads > 1 {
		if t.IsMain() {
			thr = '+'
		} else {
			thr = '-'
		}
	}

	if opts.ShowUser {
		fmt.Fprintf(&sb, "%5d%c %-10s ", t.TID, thr, t.Username)
	} else {
		fmt.Fprintf(&sb, "%5d%c ", t.TID, thr)
	}

	env := t.Env(s.CounterIndex)
	for col, c := range s.Columns() {
		if activeCol == col {
			t.Key.Num = 0
		}

		res, code := expr.Eval(c.Expr, env)

		var field string
		switch code {
		case expr.ErrorField:
			field = c.ErrorField
		case expr.EmptyField:
			field = c.EmptyField
		default:
			field = fmt.Sprintf(c.Format, res)
			if activeCol == col {
				t.Key.Num = res
			}
		}

		if sb.Len()+len(field) >= rowWidth {
			break
		}
		sb.WriteString(field)
		if sb.Len()+1 < rowWidth {
			sb.WriteByte(' ')
		}
	}

	tail := t.Name
	if opts.ShowCmdline {
		tail = t.Cmdline
	}
	remaining := rowWidth - sb.Len() - 1
	if remaining > 0 {
		sb.WriteString(runewidth.Truncate(tail, remaining, ""))
	}

	switch {
	case activeCol == SortByPID:
		t.Key.Int = t.TID
	case activeCol == s.NumColumns():
		t.Key.Str = tail
	}

	t.Row = sb.String()
}
