// Package cmdrun is the narrow subprocess seam used by hardware probes.
package cmdrun

import (
	"context"
	"errors"
	"os/exec"
	"time"
)

// Result captures a finished command.
type Result struct {
	ExitCode int
	Output   string
	TimedOut bool
}

// Runner executes one shell command with a wall-clock timeout. The OS
// implementation is ShellRunner; tests substitute FakeRunner.
type Runner interface {
	Run(ctx context.Context, command string, timeout time.Duration) (Result, error)
}

// ShellRunner runs commands through `sh -c` with stdout and stderr merged.
type ShellRunner struct{}

func (ShellRunner) Run(ctx context.Context, command string, timeout time.Duration) (Result, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	out, err := cmd.CombinedOutput()
	res := Result{Output: string(out)}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
		res.ExitCode = -1
		return res, nil
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, err
	}
	res.ExitCode = 0
	return res, nil
}

// FakeRunner returns canned results keyed by command string. Unknown
// commands fail with exit code 127.
type FakeRunner struct {
	Results map[string]Result
	Calls   []string
}

func (f *FakeRunner) Run(_ context.Context, command string, _ time.Duration) (Result, error) {
	f.Calls = append(f.Calls, command)
	if res, ok := f.Results[command]; ok {
		return res, nil
	}
	return Result{ExitCode: 127, Output: "command not found"}, nil
}
