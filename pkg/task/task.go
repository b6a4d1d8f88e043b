// Package task owns the monitored tasks: one record per kernel thread,
// the table they live in, and the sampler that keeps them current.
package task

import (
	"time"

	"github.com/tiptop-linux/tiptop/pkg/expr"
)

// TxtLen caps the rendered text row of a task.
const TxtLen = 200

// Sentinel marks a counter slot whose handle is invalid (the attach
// failed). A read that fails on a valid handle stores zero instead.
const Sentinel = expr.Sentinel

// Handle abstracts an open counter. The perf package provides the real
// one; tests script their own.
type Handle interface {
	Read() (uint64, error)
	Close() error
}

// SortKey is the explicit, typed sort key of a task for the active
// column, filled in by the row builder after the row is rendered.
type SortKey struct {
	Num float64
	Str string
	Int int
}

// Task describes one monitored thread.
type Task struct {
	TID        int
	PID        int // PID == TID for the main thread
	ProcID     int // processor last seen on, -1 unknown
	NumThreads int

	CPUPercent  float64
	CPUPercentS float64
	CPUPercentU float64

	timestamp    time.Time
	prevCPUTimeU uint64
	prevCPUTimeS uint64

	// One slot per screen counter; nil means the attach failed and
	// reads yield the sentinel.
	handles    []Handle
	Values     []uint64
	PrevValues []uint64

	Username string
	Name     string
	Cmdline  string

	Dead bool
	// Skip is recomputed by the row builder each tick: dead, idle or
	// filtered-out tasks keep their row but are not displayed.
	Skip bool

	Row string
	Key SortKey
}

// newTask allocates a record with room for numEvents counters.
func newTask(tid, pid, numEvents int) *Task {
	return &Task{
		TID:        tid,
		PID:        pid,
		ProcID:     -1,
		handles:    make([]Handle, numEvents),
		Values:     make([]uint64, numEvents),
		PrevValues: make([]uint64, numEvents),
	}
}

// NumEvents returns the number of counter slots.
func (t *Task) NumEvents() int { return len(t.handles) }

// HandleValid reports whether slot i holds an open counter.
func (t *Task) HandleValid(i int) bool { return t.handles[i] != nil }

// closeHandles shuts every open counter of the task. Every dead path
// funnels through here so the budget accounting stays exact.
func (t *Task) closeHandles() {
	for i, h := range t.handles {
		if h != nil {
			h.Close()
			t.handles[i] = nil
		}
	}
}

// IsMain reports whether the task is the main thread of its process.
func (t *Task) IsMain() bool { return t.PID == t.TID }

// env adapts a task and its screen to expression evaluation.
type env struct {
	task    *Task
	aliases func(alias string) (int, bool)
}

// Env returns an expression evaluation environment over the task,
// resolving aliases through the given lookup (the active screen).
func (t *Task) Env(counterIndex func(alias string) (int, bool)) expr.Env {
	return env{task: t, aliases: counterIndex}
}

func (e env) CounterIndex(alias string) (int, bool) { return e.aliases(alias) }
func (e env) Value(i int) uint64                    { return e.task.Values[i] }
func (e env) PrevValue(i int) uint64                { return e.task.PrevValues[i] }

func (e env) Reserved(alias string) (float64, bool) {
	switch alias {
	case expr.AliasCPUTot:
		return e.task.CPUPercent, true
	case expr.AliasCPUSys:
		return e.task.CPUPercentS, true
	case expr.AliasCPUUser:
		return e.task.CPUPercentU, true
	case expr.AliasProcID:
		return float64(e.task.ProcID), true
	}
	return 0, false
}
