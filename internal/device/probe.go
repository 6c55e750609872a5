// Package device detects the execution capabilities of the host: whether a
// hardware-accelerated inference backend is available and whether the
// platform is constrained (mobile-class memory/CPU). The probe is pure, never
// fails, and is evaluated once per process; capabilities are assumed stable
// for the process lifetime.
package device

import (
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"rembgd/pkg/types"
)

// Capabilities is the result of probing the runtime environment.
type Capabilities struct {
	// Accelerated reports whether a GPU-class backend can be used.
	Accelerated bool `json:"accelerated"`
	// ConstrainedPlatform reports whether the host is a constrained
	// (mobile-class) device that should only run small CPU models.
	ConstrainedPlatform bool `json:"constrained_platform"`
}

// Backend returns the backend the capabilities permit for the given model.
func (c Capabilities) Backend(mdl types.Model) types.Backend {
	if c.Accelerated && mdl.Preferred == types.BackendGPU {
		return types.BackendGPU
	}
	return mdl.Fallback
}

var (
	probeOnce sync.Once
	probed    Capabilities
)

// Probe returns the cached capabilities of the host. Any detection failure
// degrades to Accelerated=false rather than returning an error; re-probing
// is not supported.
func Probe() Capabilities {
	probeOnce.Do(func() {
		probed = detect()
	})
	return probed
}

func detect() Capabilities {
	caps := Capabilities{
		Accelerated:         hasAccelerator(),
		ConstrainedPlatform: isConstrained(),
	}
	// Explicit overrides win over detection, mirroring what operators need
	// when the heuristics misfire on exotic hardware.
	if envBool("REMBGD_FORCE_CPU") {
		caps.Accelerated = false
	}
	if envBool("REMBGD_CONSTRAINED") {
		caps.ConstrainedPlatform = true
	}
	return caps
}

// hasAccelerator checks for a usable GPU device node. The check is
// best-effort: anything that cannot be stat'ed counts as absent.
func hasAccelerator() bool {
	if runtime.GOOS == "darwin" {
		// Metal is always present on supported macOS hardware.
		return true
	}
	for _, p := range []string{"/dev/nvidia0", "/dev/dri/renderD128", "/dev/kfd"} {
		if _, err := os.Stat(p); err == nil {
			return true
		}
	}
	return false
}

// isConstrained classifies hosts with few cores or a small cgroup memory
// limit as constrained.
func isConstrained() bool {
	if runtime.GOARCH == "arm" {
		return true
	}
	if runtime.NumCPU() <= 2 {
		return true
	}
	if limit, ok := cgroupMemoryLimitMB(); ok && limit > 0 && limit < 2048 {
		return true
	}
	return false
}

// cgroupMemoryLimitMB reads the cgroup v2 memory limit when present.
func cgroupMemoryLimitMB() (int, bool) {
	b, err := os.ReadFile("/sys/fs/cgroup/memory.max")
	if err != nil {
		return 0, false
	}
	s := strings.TrimSpace(string(b))
	if s == "max" {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return int(n / (1024 * 1024)), true
}

func envBool(key string) bool {
	v := strings.TrimSpace(os.Getenv(key))
	return v == "1" || strings.EqualFold(v, "true")
}
