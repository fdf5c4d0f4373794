//go:build !linux

package sampler

// sharedMemory has no portable source outside /proc on non-Linux
// platforms; memory_shared is reported as 0 there, matching psutil's
// own per-platform pmem field availability.
func sharedMemory(_ int32) (uint64, bool) { return 0, false }
