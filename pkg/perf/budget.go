//go:build linux

package perf

import (
	"errors"

	"golang.org/x/sys/unix"

	"github.com/tiptop-linux/tiptop/pkg/procfs"
)

// ErrBudget is returned by Open when the handle budget is exhausted.
// Callers record the failed slot with the sentinel instead of making
// the syscall.
var ErrBudget = errors.New("perf: file handle budget exhausted")

// slack keeps a few descriptors free for the monitor's own files.
const slack = 10

// fallbackLimit is used when the open-file limit cannot be determined.
const fallbackLimit = 200

// Budget bounds the number of simultaneously open counter handles.
// Counters are the scarcest resource in the system: one handle per
// (thread, counter) pair adds up fast on busy hosts.
type Budget struct {
	limit int
	open  int
}

// NewBudget derives the handle ceiling from the process's soft open
// file limit, read from its limits file, with a getrlimit fallback.
func NewBudget(fs procfs.FS, pid int) *Budget {
	limit, err := fs.MaxOpenFiles(pid)
	if err != nil || limit <= 0 {
		var rl unix.Rlimit
		if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rl); err == nil && rl.Cur > 0 && rl.Cur < 1<<20 {
			limit = int(rl.Cur)
		}
	}
	if limit <= slack {
		return &Budget{limit: fallbackLimit}
	}
	return &Budget{limit: limit - slack}
}

// NewBudgetWithLimit builds a budget with an explicit ceiling. Tests
// use it to provoke exhaustion.
func NewBudgetWithLimit(limit int) *Budget {
	return &Budget{limit: limit}
}

// Open returns the number of handles currently held.
func (b *Budget) Open() int { return b.open }

// Limit returns the ceiling.
func (b *Budget) Limit() int { return b.limit }

// Exhausted reports whether another acquire would fail.
func (b *Budget) Exhausted() bool { return b.open >= b.limit }

func (b *Budget) tryAcquire() bool {
	if b.open >= b.limit {
		return false
	}
	b.open++
	return true
}

func (b *Budget) release() {
	if b.open > 0 {
		b.open--
	}
}
