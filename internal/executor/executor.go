package executor

import (
	"context"
	"fmt"
	"time"
)

// Target identifies where a command runs.
type Target struct {
	// Name is the node name, used for logs and error messages.
	Name  string `json:"name" yaml:"name"`
	Local bool   `json:"local,omitempty" yaml:"local,omitempty"`
	User  string `json:"user,omitempty" yaml:"user,omitempty"`
	Host  string `json:"host,omitempty" yaml:"host,omitempty"`
	// Port is the SSH port; 0 selects the executor default.
	Port int `json:"port,omitempty" yaml:"port,omitempty"`
}

func (t Target) String() string {
	if t.Local {
		return t.Name + " (local)"
	}
	if t.User != "" {
		return fmt.Sprintf("%s (%s@%s)", t.Name, t.User, t.Host)
	}
	return fmt.Sprintf("%s (%s)", t.Name, t.Host)
}

// Result is the outcome of a command that was started on the target.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
	Duration time.Duration
}

// OK reports whether the command exited with status 0 within its timeout.
func (r Result) OK() bool {
	return r.ExitCode == 0 && !r.TimedOut
}

// Executor runs shell commands against a target.
//
// A non-nil error means the command could not be started or the target could
// not be reached. A command that ran and failed is reported through
// Result.ExitCode or Result.TimedOut with a nil error.
type Executor interface {
	Run(ctx context.Context, target Target, command string, timeout time.Duration) (Result, error)
}

// Mux dispatches to Local or Remote depending on Target.Local, so callers
// never branch on locality themselves.
type Mux struct {
	Local  Executor
	Remote Executor
}

// NewMux creates a multiplexer over a local and a remote executor.
func NewMux(local, remote Executor) *Mux {
	return &Mux{Local: local, Remote: remote}
}

// Run implements Executor.
func (m *Mux) Run(ctx context.Context, target Target, command string, timeout time.Duration) (Result, error) {
	if target.Local {
		if m.Local == nil {
			return Result{}, fmt.Errorf("no local executor configured for %s", target)
		}
		return m.Local.Run(ctx, target, command, timeout)
	}
	if m.Remote == nil {
		return Result{}, fmt.Errorf("no remote executor configured for %s", target)
	}
	if target.Host == "" {
		return Result{}, fmt.Errorf("remote target %s has no host", target.Name)
	}
	return m.Remote.Run(ctx, target, command, timeout)
}
