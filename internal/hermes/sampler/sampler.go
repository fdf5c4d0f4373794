// Package sampler enumerates OS processes, joins them against a service
// catalog, and computes per-process metrics including hourly-normalized
// deltas against the previous sample, grounded on process.py's
// list_processes/init_process_info/list_ancestors_tags.
package sampler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"hermes-agent/internal/hermes/domain"
	"hermes-agent/internal/platform/logger"
)

// Sampler implements domain.Sampler. Each call to Sample replaces the
// previous-snapshot map wholesale; concurrent scrapes on the same
// Sampler are not a supported usage pattern, though the internal mutex
// makes them memory-safe regardless.
type Sampler struct {
	Catalog domain.CatalogResolver
	Host    domain.HostIPPort

	list lister

	mu   sync.Mutex
	prev map[string]domain.ProcessSample
}

// New builds a Sampler backed by the real OS (gopsutil enumeration,
// catalog resolver, and host IP port).
func New(catalog domain.CatalogResolver, host domain.HostIPPort) *Sampler {
	return &Sampler{
		Catalog: catalog,
		Host:    host,
		list:    gopsutilLister,
		prev:    make(map[string]domain.ProcessSample),
	}
}

// Sample runs one scrape: resolve host and catalog, enumerate processes,
// compute ancestor tags and hourly deltas, then atomically replace the
// previous-snapshot map.
func (s *Sampler) Sample(ctx context.Context) ([]domain.ProcessSample, error) {
	log := logger.Named("hermes.sampler")
	startTime := time.Now()
	nowSeconds := unixSeconds(startTime)

	host := s.resolveHost(log)
	catalogTags := s.resolveCatalog(ctx, log)

	infos, err := s.listProcesses(ctx)
	if err != nil {
		return nil, err
	}

	byLongPID := make(map[string]*domain.ProcessSample, len(infos))
	byPID := make(map[int32]*domain.ProcessSample, len(infos))

	for _, info := range infos {
		sample := buildSample(info, host, catalogTags)
		byLongPID[sample.LongPID] = &sample
		byPID[sample.PID] = &sample
	}

	s.mu.Lock()
	prev := s.prev
	s.mu.Unlock()

	out := make([]domain.ProcessSample, 0, len(byLongPID))
	for _, sample := range byLongPID {
		sample.AllTags = append(
			append(domain.Tags{}, sample.OwnTags...),
			ancestorTags(byPID, sample.PPID, map[int32]bool{})...,
		)

		if p, ok := prev[sample.LongPID]; ok {
			applyHourlyDiffs(sample, &p, nowSeconds)
		}

		sample.UTCTimestamp = nowSeconds
		sample.Host = host

		out = append(out, *sample)
	}

	next := make(map[string]domain.ProcessSample, len(byLongPID))
	for k, v := range byLongPID {
		next[k] = *v
	}
	s.mu.Lock()
	s.prev = next
	s.mu.Unlock()

	log.Info().
		Int("count", len(out)).
		Dur("elapsed", time.Since(startTime)).
		Msg("prepared process scrape")
	return out, nil
}

func (s *Sampler) resolveHost(log *logger.Logger) string {
	if s.Host == nil {
		return ""
	}
	host, err := s.Host.PrivateIP()
	if err != nil {
		log.Warn().Err(err).Msg("failed to resolve private ip")
		return ""
	}
	return host
}

func (s *Sampler) resolveCatalog(ctx context.Context, log *logger.Logger) map[int32]domain.Tags {
	if s.Catalog == nil {
		return map[int32]domain.Tags{}
	}
	tags, err := s.Catalog.Resolve(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("service catalog resolution failed; continuing with partial data")
	}
	if tags == nil {
		tags = map[int32]domain.Tags{}
	}
	return tags
}

func (s *Sampler) listProcesses(ctx context.Context) ([]procInfo, error) {
	l := s.list
	if l == nil {
		l = gopsutilLister
	}
	return l(ctx)
}

// buildSample converts a raw procInfo into a domain.ProcessSample with
// cumulative fields initialized and own_tags/all_tags seeded from the
// service catalog (catalog wins over a process-name fallback).
func buildSample(info procInfo, host string, catalog map[int32]domain.Tags) domain.ProcessSample {
	own, ok := catalog[info.PID]
	if !ok || len(own) == 0 {
		own = domain.Tags{info.Name}
	}
	own = append(domain.Tags{}, own...)

	return domain.ProcessSample{
		LongPID:    fmt.Sprintf("%s:%d:%d", host, info.PID, info.CreateTimeMs),
		PID:        info.PID,
		PPID:       info.PPID,
		CreateTime: info.CreateTimeMs,
		Status:     info.Status,
		Username:   info.Username,
		Cwd:        info.Cwd,
		Name:       info.Name,
		Exe:        info.Exe,
		Cmdline:    info.Cmdline,

		OwnTags: own,
		AllTags: append(domain.Tags{}, own...),

		CPUUser:    info.CPUUser,
		CPUSystem:  info.CPUSystem,
		CPUPercent: info.CPUPercent,

		MemoryResident: info.MemResident,
		MemoryVirtual:  info.MemVirtual,
		MemoryShared:   info.MemShared,

		DiskIOReadCount:  info.IOReadCount,
		DiskIOWriteCount: info.IOWriteCount,
		DiskIOReadBytes:  info.IOReadBytes,
		DiskIOWriteBytes: info.IOWriteBytes,

		ThreadsNum:         info.ThreadsNum,
		FileDescriptorsNum: info.FileDescriptorsNum,

		CtxSwitchesVoluntary:   info.CtxVoluntary,
		CtxSwitchesInvoluntary: info.CtxInvoluntary,
	}
}

// ancestorTags walks the parent chain starting at ppid, appending each
// ancestor's own_tags in child-to-root order and stopping at the first
// missing ancestor or at a parent whose own ppid is 0, 1, or 2 (whose
// own_tags are still appended when that parent is present), mirroring
// process.py's list_ancestors_tags.
func ancestorTags(byPID map[int32]*domain.ProcessSample, ppid int32, visited map[int32]bool) domain.Tags {
	parent, ok := byPID[ppid]
	if !ok || visited[ppid] {
		return nil
	}
	visited[ppid] = true

	tags := append(domain.Tags{}, parent.OwnTags...)
	if parent.PPID == 0 || parent.PPID == 1 || parent.PPID == 2 {
		return tags
	}
	return append(tags, ancestorTags(byPID, parent.PPID, visited)...)
}

// applyHourlyDiffs populates the *_1h_diff fields when the previous
// sample's elapsed time is strictly positive, guarding against a
// clock-skew or duplicate-call edge case (elapsed <= 0 leaves them
// absent). IO counter deltas are populated only when both samples
// carried them.
func applyHourlyDiffs(sample, prev *domain.ProcessSample, nowSeconds float64) {
	elapsed := nowSeconds - prev.UTCTimestamp
	if elapsed <= 0 {
		return
	}
	diffCoef := 3600 / elapsed

	sample.CPUUser1hDiff = fptr((sample.CPUUser - prev.CPUUser) * diffCoef)
	sample.CPUSystem1hDiff = fptr((sample.CPUSystem - prev.CPUSystem) * diffCoef)

	if sample.DiskIOReadCount != nil && prev.DiskIOReadCount != nil {
		sample.DiskIOReadCount1hDiff = fptr(udiff(*sample.DiskIOReadCount, *prev.DiskIOReadCount) * diffCoef)
		sample.DiskIOWriteCount1hDiff = fptr(udiff(*sample.DiskIOWriteCount, *prev.DiskIOWriteCount) * diffCoef)
		sample.DiskIOReadBytes1hDiff = fptr(udiff(*sample.DiskIOReadBytes, *prev.DiskIOReadBytes) * diffCoef)
		sample.DiskIOWriteBytes1hDiff = fptr(udiff(*sample.DiskIOWriteBytes, *prev.DiskIOWriteBytes) * diffCoef)
	}

	sample.CtxSwitchesVoluntary1hDiff = fptr(idiff(sample.CtxSwitchesVoluntary, prev.CtxSwitchesVoluntary) * diffCoef)
	sample.CtxSwitchesInvoluntary1hDiff = fptr(idiff(sample.CtxSwitchesInvoluntary, prev.CtxSwitchesInvoluntary) * diffCoef)
}

func fptr(v float64) *float64 { return &v }

func udiff(cur, prev uint64) float64 { return float64(cur) - float64(prev) }

func idiff(cur, prev int64) float64 { return float64(cur) - float64(prev) }

func unixSeconds(t time.Time) float64 { return float64(t.UnixNano()) / 1e9 }
