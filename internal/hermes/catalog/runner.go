package catalog

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	perr "hermes-agent/internal/platform/errors"
	"hermes-agent/internal/platform/logger"
)

// subprocessTimeout is the fixed wall-clock budget for every external
// command invocation.
const subprocessTimeout = 5 * time.Second

// Runner executes a shell command and returns its stdout, grounded on
// helper.py's subprocess() coroutine: timeout-bound, stderr always
// logged when non-empty, non-zero exit is an error.
type Runner interface {
	Run(ctx context.Context, shellCmd string) (stdout string, err error)
}

// execRunner is the default Runner, shelling out via "sh -c".
type execRunner struct{}

// NewExecRunner returns the default os/exec-backed Runner.
func NewExecRunner() Runner { return execRunner{} }

func (execRunner) Run(ctx context.Context, shellCmd string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, subprocessTimeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, "sh", "-c", shellCmd)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	if stderr.Len() > 0 {
		logger.Named("hermes.catalog").Warn().
			Str("cmd", shellCmd).
			Str("stderr", stderr.String()).
			Msg("subprocess stderr")
	}

	if cctx.Err() == context.DeadlineExceeded {
		return "", perr.Subprocessf("timed out waiting for subprocess `%s`", shellCmd)
	}
	if err != nil {
		return "", perr.Subprocessf("subprocess `%s` failed: %v (%s)", shellCmd, err, stderr.String())
	}
	return stdout.String(), nil
}
