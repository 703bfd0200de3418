package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"fleetsync/pkg/logging"
)

// SSHConfig configures authentication and host verification for SSHExecutor.
type SSHConfig struct {
	DefaultUser string
	DefaultPort int
	// KeyFiles are private keys tried after the agent. Passphrase protected
	// keys are skipped; load them into the agent instead.
	KeyFiles []string
	// KnownHostsFile defaults to ~/.ssh/known_hosts.
	KnownHostsFile        string
	InsecureIgnoreHostKey bool
	ConnectTimeout        time.Duration
	// AgentSocket defaults to $SSH_AUTH_SOCK; set to "-" to disable the agent.
	AgentSocket string
}

// SSHExecutor runs commands on remote nodes. One client connection is kept per
// user@host:port and every command gets its own session.
type SSHExecutor struct {
	cfg SSHConfig

	mu      sync.Mutex
	clients map[string]*ssh.Client

	// dial is replaceable in tests.
	dial func(ctx context.Context, addr string, cfg *ssh.ClientConfig) (*ssh.Client, error)
}

// NewSSHExecutor creates an SSHExecutor.
func NewSSHExecutor(cfg SSHConfig) *SSHExecutor {
	if cfg.DefaultUser == "" {
		cfg.DefaultUser = "root"
	}
	if cfg.DefaultPort == 0 {
		cfg.DefaultPort = 22
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	return &SSHExecutor{
		cfg:     cfg,
		clients: make(map[string]*ssh.Client),
		dial:    dialSSH,
	}
}

func dialSSH(ctx context.Context, addr string, cfg *ssh.ClientConfig) (*ssh.Client, error) {
	d := net.Dialer{Timeout: cfg.Timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})
	return ssh.NewClient(c, chans, reqs), nil
}

func (e *SSHExecutor) resolve(target Target) (user, addr string) {
	user = target.User
	if user == "" {
		user = e.cfg.DefaultUser
	}
	port := target.Port
	if port == 0 {
		port = e.cfg.DefaultPort
	}
	return user, net.JoinHostPort(target.Host, strconv.Itoa(port))
}

// Run implements Executor.
func (e *SSHExecutor) Run(ctx context.Context, target Target, command string, timeout time.Duration) (Result, error) {
	if timeout <= 0 {
		return Result{}, fmt.Errorf("command timeout must be positive")
	}
	user, addr := e.resolve(target)
	key := user + "@" + addr

	session, err := e.session(ctx, key, user, addr)
	if err != nil {
		return Result{}, fmt.Errorf("ssh %s: %w", key, err)
	}
	defer session.Close()

	var stdout, stderr syncBuffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	start := time.Now()
	if err := session.Start(command); err != nil {
		e.drop(key)
		return Result{}, fmt.Errorf("ssh %s: failed to start command: %w", key, err)
	}

	done := make(chan error, 1)
	go func() { done <- session.Wait() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		res := Result{Stdout: stdout.String(), Stderr: stderr.String(), Duration: time.Since(start)}
		if err == nil {
			return res, nil
		}
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitStatus()
			return res, nil
		}
		// Connection dropped mid-command; the cached client is unusable.
		e.drop(key)
		return res, fmt.Errorf("ssh %s: %w", key, err)

	case <-timer.C:
		_ = session.Signal(ssh.SIGKILL)
		_ = session.Close()
		// Let the copy goroutines see EOF so the captured output is complete.
		select {
		case <-done:
		case <-time.After(closeGrace):
		}
		logging.Debug("SSHExecutor", "Command on %s timed out after %s", key, timeout)
		return Result{
			ExitCode: -1,
			TimedOut: true,
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			Duration: time.Since(start),
		}, nil

	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		_ = session.Close()
		return Result{Duration: time.Since(start)}, ctx.Err()
	}
}

// closeGrace bounds how long a timed out command's output is drained.
const closeGrace = time.Second

// syncBuffer is a bytes.Buffer safe for the session's copy goroutines to
// write while Run reads it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// session opens a session on the cached client, reconnecting once when the
// cached connection turns out to be dead.
func (e *SSHExecutor) session(ctx context.Context, key, user, addr string) (*ssh.Session, error) {
	client, cached, err := e.client(ctx, key, user, addr)
	if err != nil {
		return nil, err
	}
	s, err := client.NewSession()
	if err == nil {
		return s, nil
	}
	e.drop(key)
	if !cached {
		return nil, err
	}

	logging.Debug("SSHExecutor", "Cached connection to %s is dead, reconnecting: %v", key, err)
	client, _, err = e.client(ctx, key, user, addr)
	if err != nil {
		return nil, err
	}
	s, err = client.NewSession()
	if err != nil {
		e.drop(key)
		return nil, err
	}
	return s, nil
}

func (e *SSHExecutor) client(ctx context.Context, key, user, addr string) (*ssh.Client, bool, error) {
	e.mu.Lock()
	if c, ok := e.clients[key]; ok {
		e.mu.Unlock()
		return c, true, nil
	}
	e.mu.Unlock()

	cfg, err := e.clientConfig(user)
	if err != nil {
		return nil, false, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, e.cfg.ConnectTimeout)
	defer cancel()

	c, err := e.dial(dialCtx, addr, cfg)
	if err != nil {
		return nil, false, fmt.Errorf("failed to connect: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if existing, ok := e.clients[key]; ok {
		// Another goroutine connected first.
		c.Close()
		return existing, true, nil
	}
	e.clients[key] = c
	logging.Debug("SSHExecutor", "Connected to %s", key)
	return c, false, nil
}

func (e *SSHExecutor) drop(key string) {
	e.mu.Lock()
	c, ok := e.clients[key]
	delete(e.clients, key)
	e.mu.Unlock()
	if ok {
		_ = c.Close()
	}
}

func (e *SSHExecutor) clientConfig(user string) (*ssh.ClientConfig, error) {
	auth := e.authMethods()
	if len(auth) == 0 {
		return nil, fmt.Errorf("no SSH credentials available: start an ssh-agent or configure ssh.keyFiles")
	}
	hostKey, err := e.hostKeyCallback()
	if err != nil {
		return nil, err
	}
	return &ssh.ClientConfig{
		User:            user,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         e.cfg.ConnectTimeout,
	}, nil
}

func (e *SSHExecutor) authMethods() []ssh.AuthMethod {
	var methods []ssh.AuthMethod

	sock := e.cfg.AgentSocket
	if sock == "" {
		sock = os.Getenv("SSH_AUTH_SOCK")
	}
	if sock != "" && sock != "-" {
		if conn, err := net.Dial("unix", sock); err == nil {
			methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
		} else {
			logging.Debug("SSHExecutor", "SSH agent at %s unavailable: %v", sock, err)
		}
	}

	var signers []ssh.Signer
	for _, path := range e.cfg.KeyFiles {
		signer, err := loadKey(path)
		if err != nil {
			logging.Warn("SSHExecutor", "Skipping key %s: %v", path, err)
			continue
		}
		signers = append(signers, signer)
	}
	if len(signers) > 0 {
		methods = append(methods, ssh.PublicKeys(signers...))
	}
	return methods
}

func loadKey(path string) (ssh.Signer, error) {
	data, err := os.ReadFile(expandHome(path))
	if err != nil {
		return nil, err
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) {
			return nil, fmt.Errorf("key is passphrase protected")
		}
		return nil, err
	}
	return signer, nil
}

func (e *SSHExecutor) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if e.cfg.InsecureIgnoreHostKey {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	path := e.cfg.KnownHostsFile
	if path == "" {
		path = "~/.ssh/known_hosts"
	}
	cb, err := knownhosts.New(expandHome(path))
	if err != nil {
		return nil, fmt.Errorf("failed to load known hosts %s: %w", path, err)
	}
	return cb, nil
}

// Close closes all cached connections.
func (e *SSHExecutor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var errs []error
	for key, c := range e.clients {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(e.clients, key)
	}
	return errors.Join(errs...)
}

func expandHome(path string) string {
	if len(path) >= 2 && path[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
