package display

import (
	"sort"
	"strings"

	"github.com/tiptop-linux/tiptop/pkg/config"
	"github.com/tiptop-linux/tiptop/pkg/task"
)

// Order selects the direction of the sort. Descending is the default,
// like every top: the busiest tasks first.
type Order int

const (
	Descending Order = iota
	Ascending
)

// Toggle flips the order.
func (o Order) Toggle() Order { return 1 - o }

// Sorted returns the tasks ordered by the active column. The sort is
// stable, so equal keys keep their insertion order; the table's own
// sequence is left untouched.
func Sorted(tb *task.Table, opts *config.Options, activeCol int, numColumns int, order Order) []*task.Task {
	tasks := make([]*task.Task, len(tb.Tasks()))
	copy(tasks, tb.Tasks())

	var less func(a, b *task.Task) bool
	switch {
	case activeCol == SortByPID:
		less = func(a, b *task.Task) bool { return a.TID > b.TID }
	case activeCol == numColumns:
		name := func(t *task.Task) string {
			if opts.ShowCmdline {
				return t.Cmdline
			}
			return t.Name
		}
		less = func(a, b *task.Task) bool {
			return strings.Compare(name(a), name(b)) > 0
		}
	default:
		less = func(a, b *task.Task) bool { return a.Key.Num > b.Key.Num }
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		if order == Ascending {
			return less(tasks[j], tasks[i])
		}
		return less(tasks[i], tasks[j])
	})
	return tasks
}
