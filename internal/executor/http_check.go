package executor

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Response is the outcome of an HTTP check against a node's API port.
// StatusCode is 0 when no HTTP response was received.
type Response struct {
	StatusCode int
	Body       []byte
	TimedOut   bool
}

// OK reports a 2xx response.
func (r Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Checker issues HTTP requests to an API port as seen from the node itself.
// Like Executor, the error return is reserved for transport failures.
type Checker interface {
	Get(ctx context.Context, target Target, port int, path string, timeout time.Duration) (Response, error)
	Post(ctx context.Context, target Target, port int, path string, body []byte, timeout time.Duration) (Response, error)
}

// statusMarker separates the body from the status code appended by curl -w.
const statusMarker = "\n__FLEETSYNC_HTTP_STATUS__:"

// ExecChecker runs curl on the node through an Executor, so ports bound to the
// node's loopback interface are reachable without tunnels.
type ExecChecker struct {
	Exec Executor
	// Host is the address curl connects to on the node; defaults to localhost.
	Host string
}

// NewExecChecker creates an ExecChecker.
func NewExecChecker(exec Executor) *ExecChecker {
	return &ExecChecker{Exec: exec, Host: "localhost"}
}

// Get implements Checker.
func (p *ExecChecker) Get(ctx context.Context, target Target, port int, path string, timeout time.Duration) (Response, error) {
	return p.do(ctx, target, "GET", port, path, nil, timeout)
}

// Post implements Checker.
func (p *ExecChecker) Post(ctx context.Context, target Target, port int, path string, body []byte, timeout time.Duration) (Response, error) {
	return p.do(ctx, target, "POST", port, path, body, timeout)
}

func (p *ExecChecker) do(ctx context.Context, target Target, method string, port int, path string, body []byte, timeout time.Duration) (Response, error) {
	if port <= 0 || port > 65535 {
		return Response{}, fmt.Errorf("invalid port %d", port)
	}
	cmd := curlCommand(p.host(), method, port, path, body, timeout)

	// Give curl its own deadline and leave headroom for process start-up.
	res, err := p.Exec.Run(ctx, target, cmd, timeout+2*time.Second)
	if err != nil {
		return Response{}, err
	}
	if res.TimedOut {
		return Response{TimedOut: true}, nil
	}
	if res.ExitCode != 0 {
		// curl exit 28 is its own timeout.
		return Response{TimedOut: res.ExitCode == 28}, nil
	}
	return parseCurlOutput(res.Stdout), nil
}

func (p *ExecChecker) host() string {
	if p.Host == "" {
		return "localhost"
	}
	return p.Host
}

func curlCommand(host, method string, port int, path string, body []byte, timeout time.Duration) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	url := fmt.Sprintf("http://%s:%d%s", host, port, path)
	secs := strconv.FormatFloat(timeout.Seconds(), 'f', -1, 64)

	args := []string{"curl", "-s", "-m", secs, "-X", method, "-w", ShellQuote(statusMarker + "%{http_code}")}
	if method == "POST" {
		args = append(args, "-H", ShellQuote("Content-Type: application/json"), "--data-binary", ShellQuote(string(body)))
	}
	args = append(args, ShellQuote(url))
	return strings.Join(args, " ")
}

func parseCurlOutput(out string) Response {
	idx := strings.LastIndex(out, statusMarker)
	if idx < 0 {
		return Response{}
	}
	code, err := strconv.Atoi(strings.TrimSpace(out[idx+len(statusMarker):]))
	if err != nil {
		return Response{}
	}
	return Response{StatusCode: code, Body: []byte(out[:idx])}
}

// ShellQuote quotes s for POSIX sh.
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
