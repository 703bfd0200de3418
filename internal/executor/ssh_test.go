package executor

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"encoding/pem"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

// testSSHServer is a minimal exec-only SSH server. Commands are answered from
// a table; "hang" never completes.
type testSSHServer struct {
	t        *testing.T
	listener net.Listener
	config   *ssh.ServerConfig
	replies  map[string]testReply

	mu    sync.Mutex
	conns []net.Conn
	execs atomic.Int32
}

type testReply struct {
	stdout string
	stderr string
	status uint32
}

func newTestSSHServer(t *testing.T, replies map[string]testReply) *testSSHServer {
	t.Helper()

	_, hostPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	hostSigner, err := ssh.NewSignerFromKey(hostPriv)
	require.NoError(t, err)

	cfg := &ssh.ServerConfig{
		PublicKeyCallback: func(ssh.ConnMetadata, ssh.PublicKey) (*ssh.Permissions, error) {
			return &ssh.Permissions{}, nil
		},
	}
	cfg.AddHostKey(hostSigner)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &testSSHServer{t: t, listener: l, config: cfg, replies: replies}
	go s.serve()
	t.Cleanup(func() {
		l.Close()
		s.dropConnections()
	})
	return s
}

func (s *testSSHServer) port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

func (s *testSSHServer) dropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		c.Close()
	}
	s.conns = nil
}

func (s *testSSHServer) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()
		go s.handle(conn)
	}
}

func (s *testSSHServer) handle(conn net.Conn) {
	_, chans, reqs, err := ssh.NewServerConn(conn, s.config)
	if err != nil {
		return
	}
	go ssh.DiscardRequests(reqs)
	for nc := range chans {
		if nc.ChannelType() != "session" {
			_ = nc.Reject(ssh.UnknownChannelType, "session only")
			continue
		}
		ch, requests, err := nc.Accept()
		if err != nil {
			continue
		}
		go s.session(ch, requests)
	}
}

func (s *testSSHServer) session(ch ssh.Channel, requests <-chan *ssh.Request) {
	defer ch.Close()
	for req := range requests {
		if req.Type != "exec" {
			if req.WantReply {
				_ = req.Reply(false, nil)
			}
			continue
		}
		n := binary.BigEndian.Uint32(req.Payload[:4])
		command := string(req.Payload[4 : 4+n])
		_ = req.Reply(true, nil)
		s.execs.Add(1)

		if command == "hang" || command == "noisy-hang" {
			if command == "noisy-hang" {
				_, _ = ch.Write([]byte("partial\n"))
				_, _ = ch.Stderr().Write([]byte("warming up\n"))
			}
			// Wait for the client to signal or close the channel.
			for range requests {
			}
			return
		}

		reply, ok := s.replies[command]
		if !ok {
			reply = testReply{stderr: "sh: " + command + ": not found\n", status: 127}
		}
		_, _ = ch.Write([]byte(reply.stdout))
		_, _ = ch.Stderr().Write([]byte(reply.stderr))
		status := make([]byte, 4)
		binary.BigEndian.PutUint32(status, reply.status)
		_, _ = ch.SendRequest("exit-status", false, status)
		return
	}
}

func writeClientKey(t *testing.T) string {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	block, err := ssh.MarshalPrivateKey(priv, "fleetsync-test")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0600))
	return path
}

func newTestSSHExecutor(t *testing.T) *SSHExecutor {
	t.Helper()
	e := NewSSHExecutor(SSHConfig{
		DefaultUser:           "egk",
		KeyFiles:              []string{writeClientKey(t)},
		InsecureIgnoreHostKey: true,
		ConnectTimeout:        2 * time.Second,
		AgentSocket:           "-",
	})
	t.Cleanup(func() { e.Close() })
	return e
}

func TestSSHExecutorRunsCommands(t *testing.T) {
	srv := newTestSSHServer(t, map[string]testReply{
		"docker ps": {stdout: "eth-docker-consensus-1\tsigp/lighthouse\tUp 2 hours\t\n"},
		"false":     {status: 1, stderr: "nope\n"},
	})
	e := newTestSSHExecutor(t)
	target := Target{Name: "alpha", Host: "127.0.0.1", Port: srv.port()}

	res, err := e.Run(context.Background(), target, "docker ps", 2*time.Second)
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, "eth-docker-consensus-1\tsigp/lighthouse\tUp 2 hours\t\n", res.Stdout)

	res, err = e.Run(context.Background(), target, "false", 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitCode)
	assert.Equal(t, "nope\n", res.Stderr)

	// Both commands shared one cached connection.
	assert.Len(t, e.clients, 1)
	assert.Equal(t, int32(2), srv.execs.Load())
}

func TestSSHExecutorTimeout(t *testing.T) {
	srv := newTestSSHServer(t, nil)
	e := newTestSSHExecutor(t)
	target := Target{Name: "alpha", Host: "127.0.0.1", Port: srv.port()}

	res, err := e.Run(context.Background(), target, "hang", 150*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, res.TimedOut)
	assert.Equal(t, -1, res.ExitCode)
}

func TestSSHExecutorTimeoutKeepsPartialOutput(t *testing.T) {
	srv := newTestSSHServer(t, nil)
	e := newTestSSHExecutor(t)
	target := Target{Name: "alpha", Host: "127.0.0.1", Port: srv.port()}

	res, err := e.Run(context.Background(), target, "noisy-hang", 200*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, res.TimedOut)
	assert.Equal(t, "partial\n", res.Stdout)
	assert.Equal(t, "warming up\n", res.Stderr)
}

func TestSyncBufferConcurrentWrites(t *testing.T) {
	var b syncBuffer
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = b.Write([]byte("x"))
		}()
		go func() {
			defer wg.Done()
			_ = b.String()
		}()
	}
	wg.Wait()
	assert.Len(t, b.String(), 20)
}

func TestSSHExecutorReconnectsOnceAfterDroppedConnection(t *testing.T) {
	srv := newTestSSHServer(t, map[string]testReply{"true": {}})
	e := newTestSSHExecutor(t)

	var dials atomic.Int32
	e.dial = func(ctx context.Context, addr string, cfg *ssh.ClientConfig) (*ssh.Client, error) {
		dials.Add(1)
		return dialSSH(ctx, addr, cfg)
	}
	target := Target{Name: "alpha", Host: "127.0.0.1", Port: srv.port()}

	_, err := e.Run(context.Background(), target, "true", 2*time.Second)
	require.NoError(t, err)

	srv.dropConnections()
	// Let the client notice the closed transport.
	time.Sleep(50 * time.Millisecond)

	res, err := e.Run(context.Background(), target, "true", 2*time.Second)
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, int32(2), dials.Load())
}

func TestSSHExecutorUnreachableHost(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	e := newTestSSHExecutor(t)
	_, err = e.Run(context.Background(), Target{Name: "alpha", Host: "127.0.0.1", Port: port}, "true", time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "egk@127.0.0.1:"+strconv.Itoa(port))
}

func TestSSHExecutorWithoutCredentials(t *testing.T) {
	e := NewSSHExecutor(SSHConfig{AgentSocket: "-", InsecureIgnoreHostKey: true})
	_, err := e.Run(context.Background(), Target{Name: "alpha", Host: "127.0.0.1", Port: 1}, "true", time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no SSH credentials")
}

func TestSSHExecutorKnownHostsMissingFile(t *testing.T) {
	e := NewSSHExecutor(SSHConfig{
		AgentSocket:    "-",
		KeyFiles:       []string{writeClientKey(t)},
		KnownHostsFile: filepath.Join(t.TempDir(), "known_hosts"),
	})
	_, err := e.Run(context.Background(), Target{Name: "alpha", Host: "127.0.0.1", Port: 1}, "true", time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "known hosts")
}
