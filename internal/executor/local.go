package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"fleetsync/pkg/logging"
)

// LocalExecutor runs commands through `sh -c` on this machine.
type LocalExecutor struct {
	// Shell defaults to "sh".
	Shell string
}

// NewLocalExecutor creates a LocalExecutor using sh.
func NewLocalExecutor() *LocalExecutor {
	return &LocalExecutor{Shell: "sh"}
}

// Run implements Executor.
func (e *LocalExecutor) Run(ctx context.Context, target Target, command string, timeout time.Duration) (Result, error) {
	if timeout <= 0 {
		return Result{}, fmt.Errorf("command timeout must be positive")
	}
	shell := e.Shell
	if shell == "" {
		shell = "sh"
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, shell, "-c", command)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Background children may keep the pipes open after sh is killed.
	cmd.WaitDelay = 500 * time.Millisecond

	start := time.Now()
	err := cmd.Run()
	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
		res.ExitCode = -1
		logging.Debug("LocalExecutor", "Command on %s timed out after %s", target.Name, timeout)
		return res, nil
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, fmt.Errorf("failed to start command on %s: %w", target.Name, err)
	}
	return res, nil
}
