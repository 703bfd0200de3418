package mock

import (
	"context"
	"strings"
	"sync"
	"time"

	"fleetsync/internal/executor"
)

// Call records one command run through a ScriptedExecutor.
type Call struct {
	Node    string
	Command string
	Timeout time.Duration
}

type scriptRule struct {
	node     string
	contains string
	result   executor.Result
	err      error
}

// ScriptedExecutor answers commands from rules registered with On and
// OnNode. The most recently added matching rule wins. Unmatched commands
// exit 127.
type ScriptedExecutor struct {
	mu     sync.Mutex
	rules  []scriptRule
	failed map[string]error
	calls  []Call
}

// NewScriptedExecutor creates an executor with no rules.
func NewScriptedExecutor() *ScriptedExecutor {
	return &ScriptedExecutor{failed: make(map[string]error)}
}

// On answers every command containing contains with res, on any node.
func (s *ScriptedExecutor) On(contains string, res executor.Result) *ScriptedExecutor {
	return s.OnNode("", contains, res)
}

// OnNode answers commands containing contains on node with res.
func (s *ScriptedExecutor) OnNode(node, contains string, res executor.Result) *ScriptedExecutor {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, scriptRule{node: node, contains: contains, result: res})
	return s
}

// FailNode makes every command on node return err, as an unreachable host
// would.
func (s *ScriptedExecutor) FailNode(node string, err error) *ScriptedExecutor {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed[node] = err
	return s
}

// Run implements executor.Executor.
func (s *ScriptedExecutor) Run(ctx context.Context, target executor.Target, command string, timeout time.Duration) (executor.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Node: target.Name, Command: command, Timeout: timeout})

	if err := ctx.Err(); err != nil {
		return executor.Result{}, err
	}
	if err, ok := s.failed[target.Name]; ok {
		return executor.Result{}, err
	}
	for i := len(s.rules) - 1; i >= 0; i-- {
		r := s.rules[i]
		if r.node != "" && r.node != target.Name {
			continue
		}
		if strings.Contains(command, r.contains) {
			return r.result, r.err
		}
	}
	return executor.Result{ExitCode: 127, Stderr: "sh: command not found"}, nil
}

// Calls returns the commands run so far.
func (s *ScriptedExecutor) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// ScriptedChecker answers beacon API checks per node and port. Ports without
// an answer look closed.
type ScriptedChecker struct {
	mu        sync.Mutex
	responses map[string]map[int]executor.Response
	failed    map[string]error
	checks    int
}

// NewScriptedChecker creates a checker with every port closed.
func NewScriptedChecker() *ScriptedChecker {
	return &ScriptedChecker{
		responses: make(map[string]map[int]executor.Response),
		failed:    make(map[string]error),
	}
}

// Serve makes port on node answer 200 with a beacon version body.
func (p *ScriptedChecker) Serve(node string, port int, version string) *ScriptedChecker {
	return p.Respond(node, port, executor.Response{
		StatusCode: 200,
		Body:       []byte(`{"data":{"version":"` + version + `"}}`),
	})
}

// Respond sets the answer for port on node.
func (p *ScriptedChecker) Respond(node string, port int, resp executor.Response) *ScriptedChecker {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.responses[node] == nil {
		p.responses[node] = make(map[int]executor.Response)
	}
	p.responses[node][port] = resp
	return p
}

// Close removes the answer for port on node.
func (p *ScriptedChecker) Close(node string, port int) *ScriptedChecker {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.responses[node], port)
	return p
}

// FailNode makes every check on node return err.
func (p *ScriptedChecker) FailNode(node string, err error) *ScriptedChecker {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed[node] = err
	return p
}

// Checks returns the number of checks issued.
func (p *ScriptedChecker) Checks() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.checks
}

// Get implements executor.Checker.
func (p *ScriptedChecker) Get(ctx context.Context, target executor.Target, port int, _ string, _ time.Duration) (executor.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checks++
	if err := ctx.Err(); err != nil {
		return executor.Response{}, err
	}
	if err, ok := p.failed[target.Name]; ok {
		return executor.Response{}, err
	}
	return p.responses[target.Name][port], nil
}

// Post implements executor.Checker.
func (p *ScriptedChecker) Post(ctx context.Context, target executor.Target, port int, path string, _ []byte, timeout time.Duration) (executor.Response, error) {
	return p.Get(ctx, target, port, path, timeout)
}
