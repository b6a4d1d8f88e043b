//go:build linux

package perf

import (
	"bytes"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/tiptop-linux/tiptop/pkg/procfs"
)

// minKernel is the first release with the perf event syscall.
const minKernel = "2.6.31"

// Check opens a basic cycles counter on the calling thread and closes
// it again. A failure here means no counter will ever attach, so the
// returned error explains the most likely cause: wrong OS, kernel too
// old, paranoia level too strict, or something genuinely unknown.
func Check(fs procfs.FS) error {
	paranoia, paranoiaErr := fs.ParanoidLevel()
	if paranoiaErr != nil {
		return fmt.Errorf("system does not support performance events: %w", paranoiaErr)
	}

	cycles := Event{Type: unix.PERF_TYPE_HARDWARE, Config: unix.PERF_COUNT_HW_CPU_CYCLES}
	c, err := Open(cycles, 0, Options{}, nil)
	if err == nil {
		return c.Close()
	}

	var uts unix.Utsname
	if unameErr := unix.Uname(&uts); unameErr == nil {
		sysname := cstring(uts.Sysname[:])
		release := cstring(uts.Release[:])
		if sysname != "Linux" {
			return fmt.Errorf("cannot attach performance counters: OS identifies itself as %q, not Linux", sysname)
		}
		if release < minKernel {
			return fmt.Errorf("cannot attach performance counters: Linux %s+ required, running %q", minKernel, release)
		}
	}
	if paranoia >= 3 {
		return fmt.Errorf("cannot attach performance counters: perf_event_paranoid is %d; run as root or lower it", paranoia)
	}
	return fmt.Errorf("cannot attach performance counters: %w", err)
}

func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
