package screen

import "golang.org/x/sys/unix"

// RegisterBuiltins prepends the built-in screens. They only use the
// target-independent events generalized by the kernel, so they work on
// any hardware.
func (r *Registry) RegisterBuiltins() {
	r.branchScreen()
	r.defaultScreen()
}

func (r *Registry) defaultScreen() *Screen {
	s := r.NewScreen("default", "Screen by default", true)

	s.AddCounterValue("CYCLE", unix.PERF_COUNT_HW_CPU_CYCLES, unix.PERF_TYPE_HARDWARE)
	s.AddCounterValue("INSN", unix.PERF_COUNT_HW_INSTRUCTIONS, unix.PERF_TYPE_HARDWARE)
	s.AddCounterValue("MISS", unix.PERF_COUNT_HW_CACHE_MISSES, unix.PERF_TYPE_HARDWARE)
	s.AddCounterValue("BR", unix.PERF_COUNT_HW_BRANCH_MISSES, unix.PERF_TYPE_HARDWARE)
	s.AddCounterValue("BUS", unix.PERF_COUNT_HW_BUS_CYCLES, unix.PERF_TYPE_HARDWARE)

	s.AddColumn(" %CPU", "%5.1f", "Total CPU usage", "CPU_TOT")
	s.AddColumn(" %SYS", "%5.1f", "System CPU usage", "CPU_SYS")
	s.AddColumn("   P", "  %2.0f", "Processor where last seen", "PROC_ID")
	s.AddColumn("  Mcycle", "%8.2f", "Cycles (millions)", "delta(CYCLE) / 1e6")
	s.AddColumn("  Minstr", "%8.2f", "Instructions (millions)", "delta(INSN) / 1e6")
	s.AddColumn("  IPC", " %4.2f", "Executed instructions per cycle", "delta(INSN)/delta(CYCLE)")
	s.AddColumn(" %MISS", "%6.2f", "Cache miss per 100 instructions", "100*delta(MISS)/delta(INSN)")
	s.AddColumn(" %BMIS", "%6.2f", "Mispredicted branches per 100 instructions", "100*delta(BR)/delta(INSN)")
	s.AddColumn(" %BUS", "%5.1f", "Bus cycles per executed instruction", "delta(BUS)/delta(INSN)")
	return s
}

func (r *Registry) branchScreen() *Screen {
	s := r.NewScreen("branch", "Branch prediction statistics", true)

	s.AddCounterValue("INSTR", unix.PERF_COUNT_HW_INSTRUCTIONS, unix.PERF_TYPE_HARDWARE)
	s.AddCounterValue("BR", unix.PERF_COUNT_HW_BRANCH_INSTRUCTIONS, unix.PERF_TYPE_HARDWARE)
	s.AddCounterValue("BMISS", unix.PERF_COUNT_HW_BRANCH_MISSES, unix.PERF_TYPE_HARDWARE)

	s.AddColumn("  %CPU", " %5.1f", "CPU usage", "CPU_TOT")
	s.AddColumn("   %MIS/I", "   %6.2f", "Mispredictions per 100 instructions",
		"100 * delta(BMISS) / delta(INSTR)")
	s.AddColumn("   %MISP", "   %5.2f", "Mispredictions per 100 branch instructions",
		"100 * delta(BMISS) / delta(BR)")
	s.AddColumn("  %BR/I", "  %5.1f", "Proportion of branch instructions",
		"100 * delta(BR) / delta(INSTR)")
	return s
}
