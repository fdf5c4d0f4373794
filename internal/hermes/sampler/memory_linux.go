//go:build linux

package sampler

import (
	"os"
	"strconv"
	"strings"
)

// pageSize is the Linux page size assumed when converting /proc/*/statm's
// page-count fields to bytes. 4096 holds on every architecture this
// agent targets.
const pageSize = 4096

// sharedMemory reads the third field of /proc/<pid>/statm (shared
// resident pages) the same way psutil does on Linux to fill in
// memory_shared, a field gopsutil's MemoryInfoStat does not expose.
func sharedMemory(pid int32) (uint64, bool) {
	data, err := os.ReadFile("/proc/" + strconv.Itoa(int(pid)) + "/statm")
	if err != nil {
		return 0, false
	}
	fields := strings.Fields(string(data))
	if len(fields) < 3 {
		return 0, false
	}
	sharedPages, err := strconv.ParseUint(fields[2], 10, 64)
	if err != nil {
		return 0, false
	}
	return sharedPages * pageSize, true
}
