// Package catalog discovers managed-service PID-to-tag mappings from the
// host's service manager, grounded on process.py's
// identify_appscale_services/identify_appscale_service_processes/
// identify_appscale_slice_processes.
package catalog

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"hermes-agent/internal/hermes/domain"
	"hermes-agent/internal/platform/logger"
)

// serviceNamePattern parses a systemd unit name into its before-@ and
// after-@ parts, matching process.py's SERVICE_NAME_PATTERN exactly.
var serviceNamePattern = regexp.MustCompile(
	`(appscale-)?(?P<before_at>[^@]+)(@(?P<after_at>[^.]+))?.service`,
)

// pidSliceLinePattern parses one line of cgroup.procs enumeration output,
// matching process.py's PID_SLICE_LINE_PATTERN exactly.
var pidSliceLinePattern = regexp.MustCompile(
	`(?P<pid>\d+) /sys/fs/cgroup/systemd/appscale\.slice/appscale-(?P<name>[^.]+)\.slice/`,
)

const (
	dependenciesCmd = `cat /lib/systemd/system/appscale-*.target ` +
		`| grep -E "^After=.*\.service$" | cut -d "=" -f 2`
	servicesCmd = `systemctl --no-legend list-units "appscale-*.service" ` +
		`| cut -d " " -f 1`
	sliceProcessesCmd = `for slice in /sys/fs/cgroup/systemd/appscale.slice/appscale-*.slice/; ` +
		`do sed -e "s|$| ${slice}|" ${slice}/cgroup.procs ; done`
)

// Resolver runs the two discovery passes and merges their results,
// grounded on process.py's get_known_processes.
type Resolver struct {
	run Runner
}

// NewResolver builds a Resolver. A nil runner defaults to the
// os/exec-backed implementation with the mandated 5s timeout.
func NewResolver(runner Runner) *Resolver {
	if runner == nil {
		runner = NewExecRunner()
	}
	return &Resolver{run: runner}
}

// Resolve runs unit-based discovery then cgroup-slice discovery and
// merges them, the slice pass overriding the unit pass on PID collision.
// A failed pass logs a warning and contributes nothing; Resolve itself
// never fails the scrape.
func (r *Resolver) Resolve(ctx context.Context) (map[int32]domain.Tags, error) {
	known := make(map[int32]domain.Tags)
	for pid, tags := range r.identifyServiceProcesses(ctx) {
		known[pid] = tags
	}
	for pid, tags := range r.identifySliceProcesses(ctx) {
		known[pid] = tags
	}
	return known, nil
}

func (r *Resolver) identifyAppscaleServices(ctx context.Context) []string {
	log := logger.Named("hermes.catalog")

	var services []string
	if out, err := r.run.Run(ctx, dependenciesCmd); err != nil {
		log.Warn().Err(err).Msg("failed to detect appscale dependency services")
	} else {
		services = append(services, splitNonEmptyLines(out)...)
	}

	if out, err := r.run.Run(ctx, servicesCmd); err != nil {
		log.Warn().Err(err).Msg("failed to detect appscale own services")
	} else {
		services = append(services, splitNonEmptyLines(out)...)
	}
	return services
}

func (r *Resolver) identifyServiceProcesses(ctx context.Context) map[int32]domain.Tags {
	log := logger.Named("hermes.catalog")
	known := make(map[int32]domain.Tags)

	for _, service := range r.identifyAppscaleServices(ctx) {
		service = strings.TrimSpace(service)
		if service == "" {
			continue
		}

		out, err := r.run.Run(ctx, "systemctl show --property MainPID --value "+service)
		if err != nil {
			log.Warn().Err(err).Str("service", service).Msg("failed to get Main PID")
			continue
		}

		out = strings.Trim(out, " \t\n")
		pid, convErr := strconv.Atoi(out)
		if convErr != nil || pid == 0 {
			continue
		}

		m := serviceNamePattern.FindStringSubmatch(service)
		if m == nil {
			log.Warn().Str("service", service).Msg("could not parse service name")
			continue
		}
		beforeAt := m[serviceNamePattern.SubexpIndex("before_at")]
		afterAt := m[serviceNamePattern.SubexpIndex("after_at")]

		tags := domain.Tags{domain.AppscaleTag, beforeAt}
		if afterAt != "" {
			for _, part := range strings.Split(afterAt, "_") {
				tags = append(tags, "_"+part)
			}
		}
		known[int32(pid)] = tags
	}
	return known
}

func (r *Resolver) identifySliceProcesses(ctx context.Context) map[int32]domain.Tags {
	log := logger.Named("hermes.catalog")

	out, err := r.run.Run(ctx, sliceProcessesCmd)
	if err != nil {
		log.Warn().Err(err).Msg("failed to detect appscale-slice processes")
		return map[int32]domain.Tags{}
	}

	detected := make(map[int32]domain.Tags)
	for _, line := range splitNonEmptyLines(out) {
		m := pidSliceLinePattern.FindStringSubmatch(line)
		if m == nil {
			log.Warn().Str("line", line).Msg("could not parse PID-slice line")
			continue
		}
		pid, _ := strconv.Atoi(m[pidSliceLinePattern.SubexpIndex("pid")])
		name := m[pidSliceLinePattern.SubexpIndex("name")]
		detected[int32(pid)] = domain.Tags{domain.AppscaleTag, name}
	}
	return detected
}

func splitNonEmptyLines(s string) []string {
	s = strings.Trim(s, " \t\n")
	if s == "" {
		return nil
	}
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}
