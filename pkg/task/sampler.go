package task

import (
	"errors"
	"os/user"
	"strconv"
	"strings"
	"time"

	"github.com/tiptop-linux/tiptop/pkg/config"
	"github.com/tiptop-linux/tiptop/pkg/errsink"
	"github.com/tiptop-linux/tiptop/pkg/perf"
	"github.com/tiptop-linux/tiptop/pkg/procfs"
	"github.com/tiptop-linux/tiptop/pkg/screen"
)

// OpenFunc attaches one counter to a thread. The default goes through
// the perf package; tests substitute scripted handles.
type OpenFunc func(ev perf.Event, tid int, opts perf.Options) (Handle, error)

// Sampler discovers tasks, attaches counters and refreshes the table
// once per tick. A tick is a straight-line sequence on one goroutine;
// no state here needs locking.
type Sampler struct {
	fs     procfs.FS
	opts   *config.Options
	errs   *errsink.Sink
	budget *perf.Budget
	clkTck float64

	open OpenFunc
	now  func() time.Time

	// Reaper is invoked with the tid of every task found zombie, so the
	// main loop can tell when the spawned child is done.
	Reaper func(tid int)
}

// NewSampler wires a sampler against the real proc filesystem and the
// perf syscall layer.
func NewSampler(fs procfs.FS, opts *config.Options, errs *errsink.Sink, budget *perf.Budget) *Sampler {
	return &Sampler{
		fs:     fs,
		opts:   opts,
		errs:   errs,
		budget: budget,
		clkTck: float64(procfs.ClockTicks()),
		open: func(ev perf.Event, tid int, o perf.Options) (Handle, error) {
			return perf.Open(ev, tid, o, budget)
		},
		now: time.Now,
	}
}

// Update runs one full sampling tick: discover new tasks, then refresh
// statistics for every live one. It returns the number of dead tasks
// in the table.
func (sm *Sampler) Update(tb *Table, s *screen.Screen) int {
	sm.Discover(tb, s)

	numDead := 0
	for _, t := range tb.Tasks() {
		if t.Dead {
			numDead++
			continue
		}

		st, err := sm.fs.ReadTaskStat(t.PID, t.TID)
		if err != nil {
			// task disappeared between ticks
			numDead++
			t.Dead = true
			t.closeHandles()
			continue
		}

		zombie := st.State == 'Z'
		if !zombie {
			// Zombie times are garbage; freeze the percentages on the
			// last good sample instead.
			now := sm.now()
			elapsed := now.Sub(t.timestamp).Seconds() * sm.clkTck
			if elapsed > 0 {
				prev := t.prevCPUTimeS + t.prevCPUTimeU
				curr := st.STime + st.UTime
				t.CPUPercent = 100 * float64(curr-prev) / elapsed
				t.CPUPercentS = 100 * float64(st.STime-t.prevCPUTimeS) / elapsed
				t.CPUPercentU = 100 * float64(st.UTime-t.prevCPUTimeU) / elapsed
			}
			t.timestamp = now
			t.prevCPUTimeS = st.STime
			t.prevCPUTimeU = st.UTime
		}
		t.ProcID = st.Processor

		// Save the previous readings for the whole record before
		// touching any counter, so delta() sees exactly last tick's
		// values.
		copy(t.PrevValues, t.Values)

		for i, h := range t.handles {
			if h == nil {
				t.Values[i] = Sentinel
				continue
			}
			v, err := h.Read()
			if err != nil {
				t.Values[i] = 0
				continue
			}
			t.Values[i] = v
		}

		if zombie {
			numDead++
			t.Dead = true
			t.closeHandles()
			if sm.Reaper != nil {
				sm.Reaper(t.TID)
			}
		}
	}
	return numDead
}

// Discover scans the proc filesystem for threads not yet in the table
// and attaches the active screen's counters to each. The scan is
// skipped entirely when no task has been created on the host since the
// previous tick.
func (sm *Sampler) Discover(tb *Table, s *screen.Screen) {
	recent, err := sm.fs.MostRecentPID()
	if err == nil {
		if recent == tb.mostRecentPID {
			return
		}
		tb.mostRecentPID = recent
	}

	pids, err := sm.fs.ListPIDs()
	if err != nil {
		sm.errs.Errorf("Could not list processes: %v", err)
		return
	}

	for _, pid := range pids {
		st, err := sm.fs.ReadStatus(pid)
		if err != nil {
			sm.errs.Errorf("Could not read info for process %d (gone already?)", pid)
			continue
		}

		cmdline := ""
		if sm.skipByPID(pid, st, &cmdline) || sm.skipByUser(st.UID) {
			continue
		}

		tids, err := sm.fs.ListTIDs(pid)
		if err != nil {
			// died just now, will be marked dead next tick
			continue
		}

		for _, tid := range tids {
			if tb.Get(tid) != nil {
				continue
			}
			if cmdline == "" {
				cmdline = sm.fs.Cmdline(pid)
			}

			t := newTask(tid, pid, s.NumCounters())
			t.Name = st.Name
			t.NumThreads = st.Threads
			t.Cmdline = cmdline
			t.Username = lookupUsername(st.UID)
			tb.Add(t)

			sm.attach(t, s)
		}
	}
}

// attach opens one counter per screen counter. A failed slot stays nil
// so reads yield the sentinel; tasks are admitted even when every
// attach failed.
func (sm *Sampler) attach(t *Task, s *screen.Screen) {
	perfOpts := perf.Options{ShowKernel: sm.opts.ShowKernel}
	for i, c := range s.Counters() {
		h, err := sm.open(perf.Event{Type: c.Type, Config: c.Config}, t.TID, perfOpts)
		if err != nil {
			if errors.Is(err, perf.ErrBudget) {
				sm.errs.Errorf("Files limit reached for PID %d (%s)", t.TID, t.Name)
			} else {
				sm.errs.Errorf("Could not attach counter '%s' to PID %d (%s): %v",
					c.Alias, t.TID, t.Name, err)
			}
			continue
		}
		t.handles[i] = h
	}
}

func (sm *Sampler) skipByPID(pid int, st procfs.Status, cmdline *string) bool {
	if sm.opts.OnlyPID != 0 && pid != sm.opts.OnlyPID {
		return true
	}
	if sm.opts.OnlyName != "" {
		if sm.opts.ShowCmdline {
			*cmdline = sm.fs.Cmdline(pid)
			return !strings.Contains(*cmdline, sm.opts.OnlyName)
		}
		return !strings.Contains(st.Name, sm.opts.OnlyName)
	}
	return false
}

// skipByUser keeps a non-root invoker on its own tasks; root monitors
// everybody else's (its own are too many).
func (sm *Sampler) skipByUser(uid int) bool {
	if sm.opts.EUID != 0 {
		return uid != sm.opts.EUID
	}
	return uid == 0
}

// Accumulate folds per-thread statistics into the owning process when
// threads are not displayed individually. A single sentinel reading on
// any thread poisons the owner's value for that counter.
func (sm *Sampler) Accumulate(tb *Table) {
	for _, t := range tb.Tasks() {
		if t.IsMain() || t.Dead {
			continue
		}
		owner := tb.Get(t.PID)
		if owner == nil {
			continue
		}
		owner.CPUPercent += t.CPUPercent
		for i, v := range t.Values {
			if i >= len(owner.Values) {
				break
			}
			if owner.Values[i] == Sentinel {
				continue
			}
			if v == Sentinel {
				owner.Values[i] = Sentinel
				continue
			}
			owner.Values[i] += v
		}
	}
}

// ResetValues zeroes the accumulated statistics of every main task.
// Needed when switching from per-process back to per-thread display:
// the accumulated values are much larger than a single thread's and
// would show transient garbage.
func (sm *Sampler) ResetValues(tb *Table) {
	for _, t := range tb.Tasks() {
		if t.Dead || !t.IsMain() {
			continue
		}
		t.CPUPercent = 0
		for i := range t.Values {
			t.Values[i] = 0
		}
	}
}

// RefreshNameCmdline re-reads the name (and optionally command line)
// of pid. Used right after spawning a child: at fork time both fields
// still belong to the monitor, they are only correct after exec.
func (sm *Sampler) RefreshNameCmdline(tb *Table, pid int, nameOnly bool) {
	t := tb.Get(pid)
	if t == nil {
		return
	}
	if st, err := sm.fs.ReadStatus(pid); err == nil {
		t.Name = st.Name
	}
	if !nameOnly {
		t.Cmdline = sm.fs.Cmdline(pid)
	}
}

func lookupUsername(uid int) string {
	u, err := user.LookupId(strconv.Itoa(uid))
	if err != nil {
		return ""
	}
	return u.Username
}

