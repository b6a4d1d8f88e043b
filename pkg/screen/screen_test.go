package screen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/tiptop-linux/tiptop/pkg/errsink"
)

func newRegistry(t *testing.T) (*Registry, *errsink.Sink) {
	t.Helper()
	errs := errsink.New(nil)
	return NewRegistry(errs), errs
}

func TestNewScreenPrepend(t *testing.T) {
	r, _ := newRegistry(t)
	r.NewScreen("user1", "", false)
	r.NewScreen("user2", "", false)
	r.NewScreen("builtin", "", true)

	assert.Equal(t, "builtin", r.Get(0).Name)
	assert.Equal(t, "user1", r.Get(1).Name)
	assert.Equal(t, 2, r.Index(r.Get(2)))
	assert.Nil(t, r.Get(3))
	assert.Equal(t, "(no desc)", r.Get(0).Desc)
}

func TestGetByNameSubstring(t *testing.T) {
	r, _ := newRegistry(t)
	r.NewScreen("branch", "", false)
	r.NewScreen("default", "", false)

	assert.Equal(t, "default", r.GetByName("efau").Name)
	assert.Equal(t, "branch", r.GetByName("branch").Name)
	assert.Nil(t, r.GetByName("nope"))
}

func TestAddCounter(t *testing.T) {
	r, _ := newRegistry(t)
	s := r.NewScreen("s", "", false)

	assert.True(t, s.AddCounter("CYCLE", "CPU_CYCLES", "HARDWARE"))
	assert.True(t, s.AddCounter("RAWC", "0x53003c", "RAW"))
	assert.True(t, s.AddCounter("FAULTS", "2", "SOFTWARE"))
	assert.True(t, s.AddCounter("SUM", "1 + 2 * 8", ""))

	counters := s.Counters()
	require.Len(t, counters, 4)
	assert.Equal(t, uint64(unix.PERF_COUNT_HW_CPU_CYCLES), counters[0].Config)
	assert.Equal(t, uint32(unix.PERF_TYPE_RAW), counters[1].Type)
	assert.Equal(t, uint64(0x53003c), counters[1].Config)
	assert.Equal(t, uint64(17), counters[3].Config)
	// empty type defaults to HARDWARE
	assert.Equal(t, uint32(unix.PERF_TYPE_HARDWARE), counters[3].Type)
}

func TestAddCounterRejections(t *testing.T) {
	r, errs := newRegistry(t)
	s := r.NewScreen("s", "", false)

	assert.False(t, s.AddCounter("X", "CPU_CYCLES", "NO_SUCH_TYPE"))
	assert.False(t, s.AddCounter("X", "NO_SUCH_EVENT", "HARDWARE"))
	assert.False(t, s.AddCounter("X", "CPU_CYCLES + 1", "HARDWARE")) // names only stand alone
	assert.Equal(t, 3, errs.Count())

	for i := 0; i < MaxEvents; i++ {
		assert.True(t, s.AddCounterValue("C", uint64(i), unix.PERF_TYPE_RAW))
	}
	assert.False(t, s.AddCounterValue("ONE_TOO_MANY", 0, unix.PERF_TYPE_RAW))
}

func TestAddColumnBumpsUsed(t *testing.T) {
	r, _ := newRegistry(t)
	s := r.NewScreen("s", "", false)
	s.AddCounterValue("CYCLE", unix.PERF_COUNT_HW_CPU_CYCLES, unix.PERF_TYPE_HARDWARE)
	s.AddCounterValue("INSN", unix.PERF_COUNT_HW_INSTRUCTIONS, unix.PERF_TYPE_HARDWARE)

	require.True(t, s.AddColumn("  IPC", " %4.2f", "ipc", "delta(INSN)/delta(CYCLE)"))
	require.True(t, s.AddColumn(" %CPU", "%5.1f", "cpu", "CPU_TOT"))

	assert.Equal(t, 1, s.Counters()[0].Used())
	assert.Equal(t, 1, s.Counters()[1].Used())

	col := s.Columns()[0]
	assert.Len(t, col.EmptyField, len(col.Header))
	assert.Len(t, col.ErrorField, len(col.Header))
	assert.True(t, strings.HasSuffix(col.EmptyField, "-"))
	assert.True(t, strings.HasSuffix(col.ErrorField, "?"))
}

func TestAddColumnUnknownAliasRejected(t *testing.T) {
	r, errs := newRegistry(t)
	s := r.NewScreen("scr", "", false)
	s.AddCounterValue("INSN", unix.PERF_COUNT_HW_INSTRUCTIONS, unix.PERF_TYPE_HARDWARE)

	assert.False(t, s.AddColumn(" BAD", "%5.1f", "", "delta(UNKNOWN)/delta(INSN)"))
	assert.Equal(t, 0, s.NumColumns())
	// the rejected column must not leak a used bump onto INSN
	assert.Equal(t, 0, s.Counters()[0].Used())

	lines := errs.Lines()
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[0], "UNKNOWN")
	assert.Contains(t, lines[0], "scr")
}

func TestAddColumnParseFailureRejected(t *testing.T) {
	r, errs := newRegistry(t)
	s := r.NewScreen("scr", "", false)

	assert.False(t, s.AddColumn(" BAD", "%5.1f", "", "1 +"))
	assert.Equal(t, 1, errs.Count())
}

func TestTampPrunesUnusedCounters(t *testing.T) {
	r, errs := newRegistry(t)
	s := r.NewScreen("s", "", false)
	s.AddCounterValue("CYCLE", unix.PERF_COUNT_HW_CPU_CYCLES, unix.PERF_TYPE_HARDWARE)
	s.AddCounterValue("DEADWEIGHT", unix.PERF_COUNT_HW_BUS_CYCLES, unix.PERF_TYPE_HARDWARE)
	s.AddCounterValue("INSN", unix.PERF_COUNT_HW_INSTRUCTIONS, unix.PERF_TYPE_HARDWARE)
	require.True(t, s.AddColumn("  IPC", " %4.2f", "", "delta(INSN)/delta(CYCLE)"))

	r.Tamp()

	require.Equal(t, 2, s.NumCounters())
	for _, c := range s.Counters() {
		assert.Greater(t, c.Used(), 0)
	}
	// columns stay well typed after the shift
	i, ok := s.CounterIndex("INSN")
	require.True(t, ok)
	assert.Equal(t, 1, i)
	assert.Equal(t, 1, errs.Count())
}

func TestBuiltinScreens(t *testing.T) {
	r, errs := newRegistry(t)
	r.RegisterBuiltins()
	r.Tamp()

	require.Equal(t, 2, r.Len())
	def := r.Get(0)
	assert.Equal(t, "default", def.Name)
	assert.Equal(t, 5, def.NumCounters())
	assert.Equal(t, 9, def.NumColumns())

	branch := r.Get(1)
	assert.Equal(t, "branch", branch.Name)
	assert.Equal(t, 3, branch.NumCounters())
	assert.Equal(t, 4, branch.NumColumns())

	// builtins reference every counter they declare
	assert.Equal(t, 0, errs.Count())
}

func TestGenHeader(t *testing.T) {
	r, _ := newRegistry(t)
	r.RegisterBuiltins()
	def := r.Get(0)

	hdr := GenHeader(def, HeaderLayout{}, 200, 0)
	assert.True(t, strings.HasPrefix(hdr, "  PID [ %CPU]"))
	assert.Contains(t, hdr, "COMMAND")
	assert.NotContains(t, hdr, "user")

	hdr = GenHeader(def, HeaderLayout{ShowUser: true}, 200, SortByPID)
	assert.True(t, strings.HasPrefix(hdr, " [PID] user"))

	hdr = GenHeader(def, HeaderLayout{Batch: true, Timestamp: true, Epoch: true}, 200, def.NumColumns())
	assert.True(t, strings.HasPrefix(hdr, "timest      epoch "))
	assert.True(t, strings.HasSuffix(hdr, "[COMMAND]"))

	// outside batch mode the batch-only fields disappear
	hdr = GenHeader(def, HeaderLayout{Timestamp: true, Epoch: true}, 200, 1)
	assert.False(t, strings.HasPrefix(hdr, "timest"))

	assert.LessOrEqual(t, len(GenHeader(def, HeaderLayout{}, 20, 0)), 20)
}
