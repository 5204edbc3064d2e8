//go:build linux

package workers

import "golang.org/x/sys/unix"

// freeMemory reports free plus buffer memory, or 0 when unknown.
func freeMemory() uint64 {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0
	}
	unit := uint64(info.Unit)
	if unit == 0 {
		unit = 1
	}
	return (uint64(info.Freeram) + uint64(info.Bufferram)) * unit
}
