// Package workers sizes the bounded worker pools used for scanning and
// reconciliation.
package workers

import "runtime"

// MemoryPerWorker is the free memory budget reserved for one worker.
const MemoryPerWorker = 128 << 20

// Size returns min(2 x CPU, free memory / MemoryPerWorker, max), never less
// than 1. A non-positive max means no configured upper bound. When free
// memory is unknown only CPU and max apply.
func Size(max int) int {
	return compute(runtime.NumCPU(), freeMemory(), max)
}

func compute(cpus int, freeBytes uint64, max int) int {
	n := 2 * cpus
	if freeBytes > 0 {
		if byMem := int(freeBytes / MemoryPerWorker); byMem < n {
			n = byMem
		}
	}
	if max > 0 && max < n {
		n = max
	}
	if n < 1 {
		n = 1
	}
	return n
}
