package builtin

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"
)

// commandResult is the outcome of one external command
type commandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
	Duration time.Duration
}

// commandRunner runs name with args in dir ("" for the current directory)
type commandRunner func(ctx context.Context, dir, name string, args ...string) (*commandResult, error)

// runCommand and lookPath are replaced in tests
var (
	runCommand commandRunner = execCommand
	lookPath                 = exec.LookPath
)

// execCommand runs a process to completion. A non-zero exit is reported in
// the result, not as an error. Only a failure to start is an error.
func execCommand(ctx context.Context, dir, name string, args ...string) (*commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := &commandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
		res.ExitCode = -1
		return res, nil
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		return nil, err
	}
	return res, nil
}

// available reports whether an executable is on PATH
func available(name string) bool {
	_, err := lookPath(name)
	return err == nil
}
