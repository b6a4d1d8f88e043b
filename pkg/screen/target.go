package screen

import (
	"bufio"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
)

// archSelector is the value a counter's arch attribute must carry for
// this build to use it.
func archSelector() string {
	switch runtime.GOARCH {
	case "amd64", "386":
		return "x86"
	case "arm", "arm64":
		return "arm"
	case "ppc64", "ppc64le":
		return "powerpc"
	default:
		return runtime.GOARCH
	}
}

// MatchTarget reports whether a counter restricted to arch applies to
// the host.
func MatchTarget(arch string) bool {
	return strings.EqualFold(arch, archSelector())
}

var modelOnce = sync.OnceValue(cpuFingerprint)

// cpuFingerprint derives the FF_MM family/model selector from
// /proc/cpuinfo. Empty when the fields are absent (non-x86 hosts).
func cpuFingerprint() string {
	f, err := os.Open("/proc/cpuinfo")
	if err != nil {
		return ""
	}
	defer f.Close()

	family, model := -1, -1
	sc := bufio.NewScanner(f)
	for sc.Scan() && (family < 0 || model < 0) {
		key, value, found := strings.Cut(sc.Text(), ":")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch key {
		case "cpu family":
			fmt.Sscanf(value, "%d", &family)
		case "model":
			fmt.Sscanf(value, "%d", &model)
		}
	}
	if family < 0 || model < 0 {
		return ""
	}
	return fmt.Sprintf("%02X_%02X", family, model)
}

// MatchModel reports whether a counter restricted to a CPU
// family/model fingerprint applies to the host.
func MatchModel(model string) bool {
	fp := modelOnce()
	return fp != "" && strings.EqualFold(model, fp)
}
