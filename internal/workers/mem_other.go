//go:build !linux

package workers

func freeMemory() uint64 {
	return 0
}
