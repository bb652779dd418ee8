package workerpool

import (
	"os"
	"runtime"
	"strconv"
)

// EnvWorkers overrides the computed worker count.
const EnvWorkers = "VIDLOOP_WORKERS"

// ForCPU returns a worker count for CPU-bound work: one per usable CPU,
// capped at max when max > 0. GOMAXPROCS is used instead of NumCPU so
// container CPU limits are respected.
func ForCPU(max int) int {
	if v := os.Getenv(EnvWorkers); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	n := runtime.GOMAXPROCS(0)
	if max > 0 && n > max {
		n = max
	}
	if n < 1 {
		n = 1
	}
	return n
}
