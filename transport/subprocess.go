package transport

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"
)

// CommandOption configures a subprocess transport.
type CommandOption func(*cmdConfig)

type cmdConfig struct {
	dir      string
	env      map[string]string
	logger   *slog.Logger
	killWait time.Duration
}

// WithDir sets the working directory for the server process.
func WithDir(dir string) CommandOption {
	return func(c *cmdConfig) { c.dir = dir }
}

// WithEnv adds environment variables to the server process (on top of the
// parent environment).
func WithEnv(env map[string]string) CommandOption {
	return func(c *cmdConfig) { c.env = env }
}

// WithStderrLogger forwards the server's stderr lines to the given logger.
// By default stderr is forwarded to slog.Default.
func WithStderrLogger(l *slog.Logger) CommandOption {
	return func(c *cmdConfig) { c.logger = l }
}

// WithKillWait sets how long Close waits for the process to exit after its
// stdin is closed before killing it (default 2s).
func WithKillWait(d time.Duration) CommandOption {
	return func(c *cmdConfig) { c.killWait = d }
}

// Command spawns a language server subprocess and returns a transport wired
// to its stdin/stdout. Stderr is drained line by line into a logger so the
// server can never block on a full stderr pipe. Close closes the server's
// stdin, waits briefly for a clean exit, then kills the process.
func Command(name string, args []string, opts ...CommandOption) (Transport, error) {
	cfg := &cmdConfig{
		logger:   slog.Default(),
		killWait: 2 * time.Second,
	}
	for _, o := range opts {
		o(cfg)
	}

	cmd := exec.Command(name, args...)
	cmd.Dir = cfg.dir
	cmd.Env = os.Environ()
	for k, v := range cfg.env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdin.Close()
		stdout.Close()
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		stderr.Close()
		return nil, fmt.Errorf("starting %s: %w", name, err)
	}

	t := &subprocessTransport{
		cmd:      cmd,
		stdin:    stdin,
		stdout:   stdout,
		killWait: cfg.killWait,
		waitDone: make(chan struct{}),
	}

	go t.drainStderr(stderr, cfg.logger, name)
	go func() {
		t.waitErr = cmd.Wait()
		close(t.waitDone)
	}()

	return t, nil
}

type subprocessTransport struct {
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	stdout   io.ReadCloser
	killWait time.Duration

	// waitDone is closed once the cmd.Wait goroutine has stored the exit
	// result in waitErr. Any number of observers (Exited channels, Close)
	// may wait on it.
	waitDone chan struct{}
	waitErr  error

	closeOnce sync.Once
	closeErr  error
}

func (t *subprocessTransport) Read(p []byte) (int, error)  { return t.stdout.Read(p) }
func (t *subprocessTransport) Write(p []byte) (int, error) { return t.stdin.Write(p) }

func (t *subprocessTransport) Close() error {
	t.closeOnce.Do(func() {
		t.stdin.Close()
		select {
		case <-t.waitDone:
		case <-time.After(t.killWait):
			t.cmd.Process.Kill()
			<-t.waitDone
		}
		t.closeErr = t.waitErr
		t.stdout.Close()
	})
	return t.closeErr
}

// Exited reports process termination. The returned channel receives the
// error from Wait once the server process exits for any reason. Each call
// returns an independent channel, so exit observation never steals the
// result from another observer.
func (t *subprocessTransport) Exited() <-chan error {
	ch := make(chan error, 1)
	go func() {
		<-t.waitDone
		ch <- t.waitErr
	}()
	return ch
}

// Exited returns the process-exit channel of a Command transport, or nil if
// the transport is not subprocess-backed.
func Exited(t Transport) <-chan error {
	if st, ok := t.(*subprocessTransport); ok {
		return st.Exited()
	}
	return nil
}

func (t *subprocessTransport) drainStderr(r io.Reader, logger *slog.Logger, name string) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		logger.Debug("server stderr", "server", name, "line", sc.Text())
	}
}
