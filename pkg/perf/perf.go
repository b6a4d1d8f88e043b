//go:build linux

// Package perf wraps the perf_event_open syscall for per-task counting
// counters. A Counter owns its kernel file descriptor and gives it back
// to the shared budget exactly once, no matter how many paths try to
// close it.
package perf

import (
	"encoding/binary"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Event identifies a kernel counter: an event class plus an event code
// within it.
type Event struct {
	Type   uint32
	Config uint64
}

// Options adjusts how a counter is attached.
type Options struct {
	// ShowKernel counts kernel activity too; requires privileges.
	ShowKernel bool
}

// Counter is an open per-task counting counter.
type Counter struct {
	fd     int
	budget *Budget
	closed bool
}

// Open attaches a counter to the thread tid on every CPU. The counter
// starts enabled and pinned, and excludes hypervisor activity; kernel
// activity is excluded unless opts says otherwise.
func Open(ev Event, tid int, opts Options, budget *Budget) (*Counter, error) {
	if budget != nil && !budget.tryAcquire() {
		return nil, ErrBudget
	}

	attr := unix.PerfEventAttr{
		Type:   ev.Type,
		Config: ev.Config,
		Size:   uint32(unsafe.Sizeof(unix.PerfEventAttr{})),
		Bits:   unix.PerfBitPinned | unix.PerfBitExcludeHv,
	}
	if !opts.ShowKernel {
		attr.Bits |= unix.PerfBitExcludeKernel
	}

	fd, err := unix.PerfEventOpen(&attr, tid, -1, -1, 0)
	if err != nil {
		if budget != nil {
			budget.release()
		}
		return nil, err
	}
	return &Counter{fd: fd, budget: budget}, nil
}

// Read returns the accumulated count: eight bytes, native endian. A
// short read is benign (the kernel has no data yet) and reports zero.
func (c *Counter) Read() (uint64, error) {
	var buf [8]byte
	n, err := unix.Read(c.fd, buf[:])
	if err != nil {
		return 0, err
	}
	if n < len(buf) {
		return 0, nil
	}
	return binary.NativeEndian.Uint64(buf[:]), nil
}

// Close releases the file descriptor and returns the slot to the
// budget. Safe to call more than once.
func (c *Counter) Close() error {
	if c == nil || c.closed {
		return nil
	}
	c.closed = true
	err := unix.Close(c.fd)
	if c.budget != nil {
		c.budget.release()
	}
	return err
}
