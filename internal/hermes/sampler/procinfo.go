package sampler

import "context"

// procInfo holds the raw per-process attributes gathered from the OS,
// mirroring the PROCESS_ATTRS tuple read by process.py's
// psutil.process_iter call.
type procInfo struct {
	PID          int32
	PPID         int32
	CreateTimeMs int64
	Status       string
	Username     string
	Cwd          string
	Name         string
	Exe          string
	Cmdline      string

	CPUUser    float64
	CPUSystem  float64
	CPUPercent float64

	MemResident uint64
	MemVirtual  uint64
	MemShared   uint64

	IOReadCount  *uint64
	IOWriteCount *uint64
	IOReadBytes  *uint64
	IOWriteBytes *uint64

	ThreadsNum         int32
	FileDescriptorsNum int32

	CtxVoluntary   int64
	CtxInvoluntary int64
}

// lister enumerates all live processes, skipping any that disappear
// mid-enumeration. It is a seam so tests can supply a fixed process set
// without touching the real OS.
type lister func(ctx context.Context) ([]procInfo, error)
