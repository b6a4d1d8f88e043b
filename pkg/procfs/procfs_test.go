package procfs

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProc returns an FS rooted at an empty temporary directory; each
// test writes the files it needs.
func fakeProc(t *testing.T) (FS, string) {
	t.Helper()
	root := t.TempDir()
	return NewFS(root), root
}

func writeFile(t *testing.T, root string, name, content string) {
	t.Helper()
	full := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestMostRecentPID(t *testing.T) {
	fs, root := fakeProc(t)
	writeFile(t, root, "loadavg", "0.52 0.58 0.59 1/389 31337\n")

	pid, err := fs.MostRecentPID()
	require.NoError(t, err)
	assert.Equal(t, 31337, pid)
}

func TestReadStatus(t *testing.T) {
	fs, root := fakeProc(t)
	writeFile(t, root, "42/status",
		"Name:\tcc1\nState:\tR (running)\nUid:\t1000\t1000\t1000\t1000\nThreads:\t3\n")

	st, err := fs.ReadStatus(42)
	require.NoError(t, err)
	assert.Equal(t, "cc1", st.Name)
	assert.Equal(t, 1000, st.UID)
	assert.Equal(t, 3, st.Threads)
}

func TestReadStatusIncomplete(t *testing.T) {
	fs, root := fakeProc(t)
	writeFile(t, root, "42/status", "Name:\tcc1\nUid:\t1000\t1000\t1000\t1000\n")

	_, err := fs.ReadStatus(42)
	assert.Error(t, err)
}

// statLine fabricates a stat file whose overall fields 3, 14, 15 and
// 39 carry the given state, utime, stime and processor.
func statLine(state string, utime, stime, processor int) string {
	fields := make([]string, 37)
	for i := range fields {
		fields[i] = "0"
	}
	fields[0] = state
	fields[11] = strconv.Itoa(utime)
	fields[12] = strconv.Itoa(stime)
	fields[36] = strconv.Itoa(processor)
	return "123 (some prog) " + strings.Join(fields, " ") + "\n"
}

func TestReadTaskStat(t *testing.T) {
	fs, root := fakeProc(t)
	writeFile(t, root, "42/task/43/stat", statLine("S", 250, 120, 5))

	st, err := fs.ReadTaskStat(42, 43)
	require.NoError(t, err)
	assert.Equal(t, byte('S'), st.State)
	assert.Equal(t, uint64(250), st.UTime)
	assert.Equal(t, uint64(120), st.STime)
	assert.Equal(t, 5, st.Processor)
}

func TestReadTaskStatZombieAndParenName(t *testing.T) {
	fs, root := fakeProc(t)
	// comm with spaces and a closing paren
	line := statLine("Z", 10, 20, 2)
	line = "99 (weird) name)) " + line[len("123 (some prog) "):]
	writeFile(t, root, "42/task/99/stat", line)

	st, err := fs.ReadTaskStat(42, 99)
	require.NoError(t, err)
	assert.Equal(t, byte('Z'), st.State)
	assert.Equal(t, uint64(10), st.UTime)
}

func TestReadTaskStatShort(t *testing.T) {
	fs, root := fakeProc(t)
	writeFile(t, root, "42/task/43/stat", "123 (x) R 1 1\n")

	st, err := fs.ReadTaskStat(42, 43)
	require.Error(t, err)
	assert.Equal(t, TaskStat{}, st)
}

func TestReadTaskStatGone(t *testing.T) {
	fs, _ := fakeProc(t)
	_, err := fs.ReadTaskStat(42, 43)
	assert.Error(t, err)
}

func TestCmdline(t *testing.T) {
	fs, root := fakeProc(t)
	writeFile(t, root, "42/cmdline", "/usr/libexec/gcc/cc1\x00main.c\x00\x00")
	assert.Equal(t, "/usr/libexec/gcc/cc1 main.c", fs.Cmdline(42))

	writeFile(t, root, "43/cmdline", "")
	assert.Equal(t, "[null]", fs.Cmdline(43))

	assert.Equal(t, "[null]", fs.Cmdline(44))
}

func TestListTIDs(t *testing.T) {
	fs, root := fakeProc(t)
	writeFile(t, root, "42/task/42/stat", "x")
	writeFile(t, root, "42/task/57/stat", "x")

	tids, err := fs.ListTIDs(42)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{42, 57}, tids)
}

func TestMaxOpenFiles(t *testing.T) {
	fs, root := fakeProc(t)
	writeFile(t, root, "42/limits",
		"Limit                     Soft Limit           Hard Limit           Units\n"+
			"Max cpu time              unlimited            unlimited            seconds\n"+
			"Max open files            1024                 4096                 files\n")

	limit, err := fs.MaxOpenFiles(42)
	require.NoError(t, err)
	assert.Equal(t, 1024, limit)
}

func TestParanoidLevel(t *testing.T) {
	fs, root := fakeProc(t)
	writeFile(t, root, "sys/kernel/perf_event_paranoid", "2\n")

	level, err := fs.ParanoidLevel()
	require.NoError(t, err)
	assert.Equal(t, 2, level)

	// legacy name wins when both exist
	writeFile(t, root, "sys/kernel/perf_counter_paranoid", "1\n")
	level, err = fs.ParanoidLevel()
	require.NoError(t, err)
	assert.Equal(t, 1, level)
}

func TestClockTicks(t *testing.T) {
	t.Setenv("CLK_TCK", "")
	assert.Equal(t, 100, ClockTicks())
	t.Setenv("CLK_TCK", "250")
	assert.Equal(t, 250, ClockTicks())
}
