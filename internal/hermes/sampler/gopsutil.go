package sampler

import (
	"context"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

// gopsutilLister is the default lister, grounded on process.py's
// psutil.process_iter(attrs=PROCESS_ATTRS, ad_value=None) call.
func gopsutilLister(ctx context.Context) ([]procInfo, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]procInfo, 0, len(procs))
	for _, p := range procs {
		info, ok := readProcInfo(ctx, p)
		if !ok {
			// Process disappeared mid-enumeration; skip silently.
			continue
		}
		out = append(out, info)
	}
	return out, nil
}

func readProcInfo(ctx context.Context, p *process.Process) (procInfo, bool) {
	ppid, err := p.PpidWithContext(ctx)
	if err != nil {
		return procInfo{}, false
	}
	createTimeMs, err := p.CreateTimeWithContext(ctx)
	if err != nil {
		return procInfo{}, false
	}
	name, err := p.NameWithContext(ctx)
	if err != nil {
		return procInfo{}, false
	}

	info := procInfo{
		PID:          p.Pid,
		PPID:         ppid,
		CreateTimeMs: createTimeMs,
		Name:         name,
	}

	info.Cwd, _ = p.CwdWithContext(ctx)
	info.Exe, _ = p.ExeWithContext(ctx)
	info.Username, _ = p.UsernameWithContext(ctx)

	if cmdline, err := p.CmdlineSliceWithContext(ctx); err == nil {
		info.Cmdline = strings.Join(cmdline, " ")
	}

	if statuses, err := p.StatusWithContext(ctx); err == nil && len(statuses) > 0 {
		info.Status = statuses[0]
	}

	if times, err := p.TimesWithContext(ctx); err == nil && times != nil {
		info.CPUUser = times.User
		info.CPUSystem = times.System
	}

	if pct, err := p.CPUPercentWithContext(ctx); err == nil {
		info.CPUPercent = pct
	}

	if mem, err := p.MemoryInfoWithContext(ctx); err == nil && mem != nil {
		info.MemResident = mem.RSS
		info.MemVirtual = mem.VMS
	}
	if shared, ok := sharedMemory(p.Pid); ok {
		info.MemShared = shared
	}

	if io, err := p.IOCountersWithContext(ctx); err == nil && io != nil {
		info.IOReadCount = uptr(io.ReadCount)
		info.IOWriteCount = uptr(io.WriteCount)
		info.IOReadBytes = uptr(io.ReadBytes)
		info.IOWriteBytes = uptr(io.WriteBytes)
	}

	if threads, err := p.NumThreadsWithContext(ctx); err == nil {
		info.ThreadsNum = threads
	}
	if fds, err := p.NumFDsWithContext(ctx); err == nil {
		info.FileDescriptorsNum = fds
	}
	if ctxSw, err := p.NumCtxSwitchesWithContext(ctx); err == nil && ctxSw != nil {
		info.CtxVoluntary = ctxSw.Voluntary
		info.CtxInvoluntary = ctxSw.Involuntary
	}

	return info, true
}

func uptr(v uint64) *uint64 { return &v }
