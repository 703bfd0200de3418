package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"fleetsync/internal/executor"
	"fleetsync/internal/metrics"
	"fleetsync/pkg/logging"
	pkgstrings "fleetsync/pkg/strings"
)

// containerFormat is passed to docker ps --format. The separators are real
// tabs; parseContainers also accepts whitespace-separated output.
const containerFormat = "{{.Names}}\t{{.Image}}\t{{.Status}}\t{{.Ports}}"

// Options tunes an Engine. Zero values select the defaults.
type Options struct {
	CandidatePaths   []string
	CandidatePorts   []int
	PathTimeout      time.Duration
	ContainerTimeout time.Duration
	PortTimeout      time.Duration
	Classifier       NetworkClassifier
	Metrics          *metrics.Recorder
}

func (o Options) withDefaults() Options {
	if len(o.CandidatePaths) == 0 {
		o.CandidatePaths = DefaultCandidatePaths
	}
	if len(o.CandidatePorts) == 0 {
		o.CandidatePorts = DefaultCandidatePorts
	}
	if o.PathTimeout <= 0 {
		o.PathTimeout = 5 * time.Second
	}
	if o.ContainerTimeout <= 0 {
		o.ContainerTimeout = 8 * time.Second
	}
	if o.PortTimeout <= 0 {
		o.PortTimeout = 6 * time.Second
	}
	if o.Classifier == nil {
		o.Classifier = NewMarkerClassifier()
	}
	return o
}

// Engine discovers nodes through an Executor and a Checker.
type Engine struct {
	exec    executor.Executor
	checker executor.Checker
	opts    Options
}

// NewEngine creates a discovery engine.
func NewEngine(exec executor.Executor, checker executor.Checker, opts Options) *Engine {
	return &Engine{exec: exec, checker: checker, opts: opts.withDefaults()}
}

// Discover implements Discoverer. It never returns an error; failed steps
// are listed in Result.Errors.
func (e *Engine) Discover(ctx context.Context, target executor.Target) (*Result, error) {
	start := time.Now()
	res := NewResult(target)
	logging.Info("Discovery", "Starting discovery for %s", target)

	steps := []struct {
		name string
		run  func(context.Context, *Result) error
	}{
		{"docker path discovery", e.discoverPaths},
		{"container enumeration", e.discoverContainers},
		{"network inference", e.inferNetworks},
		{"api port discovery", e.discoverPorts},
		{"stack detection", e.inferStacks},
		{"client detection", e.inferClients},
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("discovery cancelled before %s: %v", step.name, err))
			break
		}
		if err := step.run(ctx, res); err != nil {
			msg := fmt.Sprintf("%s failed: %v", step.name, err)
			logging.Warn("Discovery", "%s: %s", target.Name, msg)
			res.Errors = append(res.Errors, msg)
		}
	}

	elapsed := time.Since(start)
	e.opts.Metrics.ObserveDiscovery(target.Name, elapsed, len(res.Errors))
	logging.Info("Discovery", "Discovery for %s finished in %s: %d containers, networks %v, stacks %v, %d errors",
		target.Name, elapsed.Round(time.Millisecond), len(res.Containers), res.NetworkKeys(), res.DetectedStacks, len(res.Errors))
	return res, nil
}

func (e *Engine) discoverPaths(ctx context.Context, res *Result) error {
	quoted := make([]string, len(e.opts.CandidatePaths))
	for i, p := range e.opts.CandidatePaths {
		quoted[i] = globQuote(p)
	}
	// Unmatched globs stay literal and fail the -d test.
	cmd := fmt.Sprintf(`for p in %s; do [ -d "$p" ] && printf '%%s\n' "$p"; done; true`, strings.Join(quoted, " "))

	out, err := e.run(ctx, res.Target, cmd, e.opts.PathTimeout)
	if err != nil {
		return err
	}
	seen := make(map[string]bool)
	for _, line := range strings.Split(out, "\n") {
		p := strings.TrimSpace(line)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		res.DockerPaths = append(res.DockerPaths, p)
		logging.Debug("Discovery", "%s: found docker path %s", res.NodeName, p)
	}
	return nil
}

func (e *Engine) discoverContainers(ctx context.Context, res *Result) error {
	out, err := e.run(ctx, res.Target, "docker ps --format "+executor.ShellQuote(containerFormat), e.opts.ContainerTimeout)
	if err != nil {
		return err
	}
	res.Containers = parseContainers(out)
	logging.Debug("Discovery", "%s: found %d running containers", res.NodeName, len(res.Containers))
	return nil
}

func (e *Engine) inferNetworks(_ context.Context, res *Result) error {
	res.Networks = e.opts.Classifier.Classify(res.Containers, res.DockerPaths)
	if res.Networks == nil {
		res.Networks = []Network{}
	}
	return nil
}

func (e *Engine) discoverPorts(ctx context.Context, res *Result) error {
	for _, port := range e.opts.CandidatePorts {
		resp, err := e.checker.Get(ctx, res.Target, port, VersionEndpoint, e.opts.PortTimeout)
		if err != nil {
			// The transport is down; the remaining ports would fail the same way.
			return fmt.Errorf("port %d: %w", port, err)
		}
		version, ok := parseVersion(resp)
		if !ok {
			continue
		}
		network := NetworkForPort(port)
		res.APIPorts = append(res.APIPorts, PortBinding{Network: network, Port: port, Version: version})
		logging.Debug("Discovery", "%s: beacon API on port %d (%s) %s", res.NodeName, port, network, version)
	}
	return nil
}

func (e *Engine) inferStacks(_ context.Context, res *Result) error {
	stacks := make(map[string]bool)
	for _, c := range res.Containers {
		for _, rule := range StackRules {
			if rule.Match(c) {
				stacks[rule.Stack] = true
			}
		}
	}
	for s := range stacks {
		res.DetectedStacks = append(res.DetectedStacks, s)
	}
	sort.Strings(res.DetectedStacks)
	return nil
}

func (e *Engine) inferClients(_ context.Context, res *Result) error {
	for _, c := range res.Containers {
		role, ok := ClassifyRole(c)
		if !ok {
			continue
		}
		if _, taken := res.Clients[role]; taken {
			continue
		}
		res.Clients[role] = Client{
			Name:      ClientFromImage(c.Image),
			Container: c.Name,
			Image:     strings.ToLower(c.Image),
		}
	}
	return nil
}

// run executes cmd and returns stdout, turning a failed or timed out
// command into an error.
func (e *Engine) run(ctx context.Context, target executor.Target, cmd string, timeout time.Duration) (string, error) {
	res, err := e.exec.Run(ctx, target, cmd, timeout)
	if err != nil {
		return "", err
	}
	if res.TimedOut {
		return "", fmt.Errorf("timed out after %s", timeout)
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("exit status %d: %s", res.ExitCode, pkgstrings.CheckOutput(res.Stderr))
	}
	return res.Stdout, nil
}

// parseContainers reads docker ps output. Lines with tabs are split on tabs;
// other lines are split on whitespace, with port mappings recognised by
// their "->" or "/tcp" shape. Lines with fewer than three columns are
// skipped.
func parseContainers(out string) []Container {
	containers := []Container{}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		if strings.Contains(line, "\t") {
			parts := strings.Split(line, "\t")
			if len(parts) < 3 {
				continue
			}
			c := Container{
				Name:   strings.TrimSpace(parts[0]),
				Image:  strings.TrimSpace(parts[1]),
				Status: strings.TrimSpace(parts[2]),
			}
			if len(parts) > 3 {
				c.Ports = strings.TrimSpace(strings.Join(parts[3:], " "))
			}
			containers = append(containers, c)
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		var status, ports []string
		for _, f := range fields[2:] {
			if isPortField(f) {
				ports = append(ports, f)
			} else {
				status = append(status, f)
			}
		}
		containers = append(containers, Container{
			Name:   fields[0],
			Image:  fields[1],
			Status: strings.Join(status, " "),
			Ports:  strings.Join(ports, " "),
		})
	}
	return containers
}

func isPortField(f string) bool {
	f = strings.TrimSuffix(f, ",")
	return strings.Contains(f, "->") || strings.HasSuffix(f, "/tcp") || strings.HasSuffix(f, "/udp")
}

type versionBody struct {
	Data struct {
		Version string `json:"version"`
	} `json:"data"`
}

// parseVersion accepts a 2xx response with a JSON data.version, or any
// other non-empty 2xx body.
func parseVersion(resp executor.Response) (string, bool) {
	if !resp.OK() {
		return "", false
	}
	body := strings.TrimSpace(string(resp.Body))
	if body == "" {
		return "", false
	}
	var v versionBody
	if err := json.Unmarshal([]byte(body), &v); err == nil && v.Data.Version != "" {
		return v.Data.Version, true
	}
	return "", true
}

// globQuote quotes p for sh while leaving * and ? unquoted so they expand.
func globQuote(p string) string {
	var b strings.Builder
	start := 0
	for i, r := range p {
		if r == '*' || r == '?' {
			if i > start {
				b.WriteString(executor.ShellQuote(p[start:i]))
			}
			b.WriteRune(r)
			start = i + 1
		}
	}
	if start < len(p) {
		b.WriteString(executor.ShellQuote(p[start:]))
	}
	return b.String()
}
