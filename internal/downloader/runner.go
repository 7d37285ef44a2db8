package downloader

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// RunResult holds the output of a finished tool invocation.
type RunResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Runner invokes an external tool. The error is non-nil whenever the
// tool did not exit 0; ExitCode is populated when the process ran.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (RunResult, error)
}

// ExecRunner runs tools as subprocesses.
type ExecRunner struct{}

// Run executes the named tool and waits for it to finish.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (RunResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	res := RunResult{
		Stdout: stdout.Bytes(),
		Stderr: stderr.Bytes(),
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
	}
	return res, err
}
