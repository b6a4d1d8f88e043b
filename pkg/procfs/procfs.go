// Package procfs reads the handful of process-information files the
// monitor depends on. All readers hang off an FS value so tests can
// point them at a fabricated tree.
package procfs

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// FS represents a mount point of the proc pseudo-filesystem.
type FS struct {
	root string
}

// NewFS returns an FS rooted at path.
func NewFS(path string) FS {
	return FS{root: path}
}

// Default is the real /proc.
var Default = NewFS("/proc")

func (fs FS) path(parts ...string) string {
	return filepath.Join(append([]string{fs.root}, parts...)...)
}

// MostRecentPID returns the last field of loadavg, the PID of the most
// recently created task on the host. Comparing it across ticks is a
// cheap way to tell whether a full directory scan is needed at all.
func (fs FS) MostRecentPID() (int, error) {
	data, err := os.ReadFile(fs.path("loadavg"))
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return 0, fmt.Errorf("malformed loadavg")
	}
	pid, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil {
		return 0, fmt.Errorf("malformed loadavg: %w", err)
	}
	return pid, nil
}

// ListPIDs returns the numeric directory entries of the proc root.
func (fs FS) ListPIDs() ([]int, error) {
	entries, err := os.ReadDir(fs.root)
	if err != nil {
		return nil, err
	}
	pids := make([]int, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		pid, err := strconv.Atoi(e.Name())
		if err != nil || pid == 0 {
			continue
		}
		pids = append(pids, pid)
	}
	return pids, nil
}

// ListTIDs returns the thread ids under <pid>/task.
func (fs FS) ListTIDs(pid int) ([]int, error) {
	entries, err := os.ReadDir(fs.path(strconv.Itoa(pid), "task"))
	if err != nil {
		return nil, err
	}
	tids := make([]int, 0, len(entries))
	for _, e := range entries {
		tid, err := strconv.Atoi(e.Name())
		if err != nil || tid == 0 {
			continue
		}
		tids = append(tids, tid)
	}
	return tids, nil
}

// Status holds the fields of <pid>/status the monitor cares about.
type Status struct {
	Name    string
	UID     int
	Threads int
}

// ReadStatus parses Name, Uid (real) and Threads out of <pid>/status.
// All three must be present; a partial read means the process vanished
// mid-parse.
func (fs FS) ReadStatus(pid int) (Status, error) {
	f, err := os.Open(fs.path(strconv.Itoa(pid), "status"))
	if err != nil {
		return Status{}, err
	}
	defer f.Close()

	var st Status
	needed := 3
	sc := bufio.NewScanner(f)
	for sc.Scan() && needed > 0 {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "Name:"):
			st.Name = strings.TrimSpace(strings.TrimPrefix(line, "Name:"))
			needed--
		case strings.HasPrefix(line, "Uid:"):
			fields := strings.Fields(line)
			if len(fields) < 2 {
				return Status{}, fmt.Errorf("malformed Uid line in status of pid %d", pid)
			}
			st.UID, err = strconv.Atoi(fields[1])
			if err != nil {
				return Status{}, fmt.Errorf("malformed Uid line in status of pid %d: %w", pid, err)
			}
			needed--
		case strings.HasPrefix(line, "Threads:"):
			fields := strings.Fields(line)
			if len(fields) < 2 {
				return Status{}, fmt.Errorf("malformed Threads line in status of pid %d", pid)
			}
			st.Threads, err = strconv.Atoi(fields[1])
			if err != nil {
				return Status{}, fmt.Errorf("malformed Threads line in status of pid %d: %w", pid, err)
			}
			needed--
		}
	}
	if err := sc.Err(); err != nil {
		return Status{}, err
	}
	if needed != 0 {
		return Status{}, fmt.Errorf("incomplete status for pid %d (gone already?)", pid)
	}
	return st, nil
}

// TaskStat holds the positional fields of <pid>/task/<tid>/stat used
// for %CPU and processor placement.
type TaskStat struct {
	State     byte
	UTime     uint64 // user time, clock ticks
	STime     uint64 // system time, clock ticks
	Processor int    // -1 when unparseable
}

// ReadTaskStat parses fields 3 (state), 14-15 (utime, stime) and 39
// (processor) of the per-thread stat file. The comm field may contain
// spaces and parentheses, so everything before the last ") " is
// skipped wholesale.
func (fs FS) ReadTaskStat(pid, tid int) (TaskStat, error) {
	data, err := os.ReadFile(fs.path(strconv.Itoa(pid), "task", strconv.Itoa(tid), "stat"))
	if err != nil {
		return TaskStat{}, err
	}

	i := bytes.LastIndex(data, []byte(") "))
	if i < 0 {
		return TaskStat{}, fmt.Errorf("malformed stat for tid %d", tid)
	}
	fields := strings.Fields(string(data[i+2:]))
	// fields[0] is overall field 3 (state); utime and stime are overall
	// fields 14-15, the processor is overall field 39.
	if len(fields) < 13 || len(fields[0]) == 0 {
		return TaskStat{}, fmt.Errorf("malformed stat for tid %d", tid)
	}

	st := TaskStat{State: fields[0][0], Processor: -1}
	st.UTime, err = strconv.ParseUint(fields[11], 10, 64)
	if err != nil {
		st.UTime = 0
		st.STime = 0
		return st, nil
	}
	st.STime, err = strconv.ParseUint(fields[12], 10, 64)
	if err != nil {
		st.UTime = 0
		st.STime = 0
		return st, nil
	}
	if len(fields) >= 37 {
		if cpu, err := strconv.Atoi(fields[36]); err == nil {
			st.Processor = cpu
		}
	}
	return st, nil
}

// Cmdline returns the command line of pid with NUL separators turned
// into spaces. Tasks without one (kernel threads, zombies) report
// "[null]", matching what the row tail displays.
func (fs FS) Cmdline(pid int) string {
	data, err := os.ReadFile(fs.path(strconv.Itoa(pid), "cmdline"))
	if err != nil || len(data) == 0 || data[0] == 0 {
		return "[null]"
	}
	data = bytes.TrimRight(data, "\x00")
	return string(bytes.ReplaceAll(data, []byte{0}, []byte{' '}))
}

// MaxOpenFiles returns the soft "Max open files" limit of pid, read
// from its limits file. Zero with a nil error means the line was
// missing or its value is not numeric.
func (fs FS) MaxOpenFiles(pid int) (int, error) {
	f, err := os.Open(fs.path(strconv.Itoa(pid), "limits"))
	if err != nil {
		return 0, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "Max open files") {
			continue
		}
		fields := strings.Fields(strings.TrimPrefix(line, "Max open files"))
		if len(fields) == 0 {
			return 0, nil
		}
		limit, err := strconv.Atoi(fields[0])
		if err != nil {
			return 0, nil
		}
		return limit, nil
	}
	return 0, sc.Err()
}

// ParanoidLevel reads the kernel's perf event paranoia setting, trying
// the legacy file name first like the original perf tools do.
func (fs FS) ParanoidLevel() (int, error) {
	for _, name := range []string{
		"sys/kernel/perf_counter_paranoid",
		"sys/kernel/perf_event_paranoid",
	} {
		data, err := os.ReadFile(fs.path(name))
		if err != nil {
			continue
		}
		level, err := strconv.Atoi(strings.TrimSpace(string(data)))
		if err != nil {
			return 0, fmt.Errorf("malformed paranoid level: %w", err)
		}
		return level, nil
	}
	return 0, fmt.Errorf("perf event paranoid file missing")
}

// ClockTicks returns the number of clock ticks per second used to
// scale utime/stime. CLK_TCK overrides for tests; 100 is the value on
// every mainstream Linux build.
func ClockTicks() int {
	if v, _ := strconv.Atoi(os.Getenv("CLK_TCK")); v > 0 {
		return v
	}
	return 100
}
