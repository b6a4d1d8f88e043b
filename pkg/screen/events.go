package screen

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/tiptop-linux/tiptop/pkg/expr"
)

// Predefined event classes, by the names accepted in configuration
// files. Order matters: reverse lookup returns the first match.
var typeNames = []struct {
	id   uint32
	name string
}{
	{unix.PERF_TYPE_HARDWARE, "HARDWARE"},
	{unix.PERF_TYPE_SOFTWARE, "SOFTWARE"},
	{unix.PERF_TYPE_TRACEPOINT, "TRACEPOINT"},
	{unix.PERF_TYPE_HW_CACHE, "HW_CACHE"},
	{unix.PERF_TYPE_RAW, "RAW"},
}

// Predefined event codes. The cache selectors share numeric values
// with the generic hardware events, so reverse lookup keeps the
// generic names first.
var eventNames = []struct {
	id   uint64
	name string
}{
	{unix.PERF_COUNT_HW_CPU_CYCLES, "CPU_CYCLES"},
	{unix.PERF_COUNT_HW_INSTRUCTIONS, "INSTRUCTIONS"},
	{unix.PERF_COUNT_HW_CACHE_REFERENCES, "CACHE_REFERENCES"},
	{unix.PERF_COUNT_HW_CACHE_MISSES, "CACHE_MISSES"},
	{unix.PERF_COUNT_HW_BRANCH_INSTRUCTIONS, "BRANCH_INSTRUCTIONS"},
	{unix.PERF_COUNT_HW_BRANCH_MISSES, "BRANCH_MISSES"},
	{unix.PERF_COUNT_HW_BUS_CYCLES, "BUS_CYCLES"},

	{unix.PERF_COUNT_HW_CACHE_L1D, "L1D"},
	{unix.PERF_COUNT_HW_CACHE_L1I, "L1I"},
	{unix.PERF_COUNT_HW_CACHE_LL, "LL"},
	{unix.PERF_COUNT_HW_CACHE_DTLB, "DTLB"},
	{unix.PERF_COUNT_HW_CACHE_ITLB, "ITLB"},
	{unix.PERF_COUNT_HW_CACHE_BPU, "BPU"},

	{unix.PERF_COUNT_HW_CACHE_OP_READ, "OP_READ"},
	{unix.PERF_COUNT_HW_CACHE_OP_WRITE, "OP_WRITE"},
	{unix.PERF_COUNT_HW_CACHE_OP_PREFETCH, "OP_PREFETCH"},
	{unix.PERF_COUNT_HW_CACHE_RESULT_ACCESS, "RESULT_ACCESS"},
	{unix.PERF_COUNT_HW_CACHE_RESULT_MISS, "RESULT_MISS"},
}

// counterType maps a class name or numeric literal to the kernel event
// class. An empty name means HARDWARE.
func counterType(name string) (uint32, bool) {
	if name == "" {
		return unix.PERF_TYPE_HARDWARE, true
	}
	if name[0] >= '0' && name[0] <= '9' {
		v, err := strconv.ParseUint(name, 0, 32)
		if err != nil {
			return 0, false
		}
		return uint32(v), true
	}
	for _, t := range typeNames {
		if t.name == name {
			return t.id, true
		}
	}
	return 0, false
}

// counterConfig resolves a config attribute: a predefined event name,
// or an arithmetic expression of numeric literals (decimal or 0x...).
func counterConfig(config string) (uint64, bool) {
	config = strings.TrimSpace(config)
	if config == "" {
		return 0, false
	}

	if c := config[0]; c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' {
		for _, e := range eventNames {
			if e.name == config {
				return e.id, true
			}
		}
		return 0, false
	}

	// hex literals are not part of the expression grammar; accept a
	// bare one here
	if strings.HasPrefix(config, "0x") || strings.HasPrefix(config, "0X") {
		v, err := strconv.ParseUint(config, 0, 64)
		if err != nil {
			return 0, false
		}
		return v, true
	}

	e, err := expr.Parse(config)
	if err != nil {
		return 0, false
	}
	v, err := expr.EvalConst(e)
	if err != nil {
		return 0, false
	}
	return v, true
}

// TypeName canonicalizes an event class back to its configuration
// name, or a hex literal when the class has none.
func TypeName(typ uint32) string {
	for _, t := range typeNames {
		if t.id == typ {
			return t.name
		}
	}
	return fmt.Sprintf("0x%x", typ)
}

// ConfigName canonicalizes an event code back to its configuration
// name, or a hex literal when the code has none.
func ConfigName(config uint64) string {
	for _, e := range eventNames {
		if e.id == config {
			return e.name
		}
	}
	return fmt.Sprintf("0x%x", config)
}
