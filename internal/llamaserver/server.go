// internal/llamaserver/server.go
// Package llamaserver launches and supervises a local llama-server process that
// serves the configured GGUF weights.
package llamaserver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"github.com/mwiater/sage/internal/appconfig"
	"github.com/mwiater/sage/internal/logging"
)

// allLayers is passed to -ngl when every layer should be offloaded.
const allLayers = 999

// Options describes one llama-server invocation.
type Options struct {
	Binary      string
	ModelPath   string
	ContextSize int
	GPULayers   int
	Host        string
	Port        int
	Embeddings  bool
}

// OptionsFromConfig derives the launch options from the model settings. The
// server listens on the host and port of the configured model URL.
func OptionsFromConfig(cfg *appconfig.Config) (Options, error) {
	parsed, err := url.Parse(cfg.ModelURL())
	if err != nil {
		return Options{}, fmt.Errorf("parse model url %q: %w", cfg.ModelURL(), err)
	}
	host := parsed.Hostname()
	if host == "" {
		host = "127.0.0.1"
	}
	port := 8080
	if p := parsed.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return Options{}, fmt.Errorf("parse model url port %q: %w", p, err)
		}
	}
	return Options{
		Binary:      cfg.ServerBinary(),
		ModelPath:   cfg.ModelPath(),
		ContextSize: cfg.ContextSize(),
		GPULayers:   cfg.GPULayers(),
		Host:        host,
		Port:        port,
		Embeddings:  cfg.EmbeddingType() == appconfig.TypeLlamaCpp && cfg.EmbeddingURL() == cfg.ModelURL(),
	}, nil
}

// Args returns the llama-server command line arguments.
func (o Options) Args() []string {
	layers := o.GPULayers
	if layers < 0 {
		layers = allLayers
	}
	args := []string{
		"-m", o.ModelPath,
		"-c", strconv.Itoa(o.ContextSize),
		"-ngl", strconv.Itoa(layers),
		"--host", o.Host,
		"--port", strconv.Itoa(o.Port),
	}
	if o.Embeddings {
		args = append(args, "--embeddings")
	}
	return args
}

// Server is a running llama-server child process.
type Server struct {
	cmd  *exec.Cmd
	done chan error
	err  error
}

// Start launches llama-server. It returns once the process has started; callers
// wait for the model to load through the provider's readiness check.
func Start(ctx context.Context, opts Options) (*Server, error) {
	if _, err := os.Stat(opts.ModelPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("model weights not found at %q", opts.ModelPath)
		}
		return nil, fmt.Errorf("model weights %q not accessible: %w", opts.ModelPath, err)
	}
	if err := portFree(opts.Host, opts.Port); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, opts.Binary, opts.Args()...)
	cmd.Env = os.Environ()
	output := newLineLogger("llama-server")
	cmd.Stdout = output
	cmd.Stderr = output

	if err := cmd.Start(); err != nil {
		logging.LogEvent("llama-server failed to start: %v", err)
		return nil, fmt.Errorf("start %s: %w", opts.Binary, err)
	}
	logging.LogEvent("llama-server started: binary=%s pid=%d args=%v", opts.Binary, cmd.Process.Pid, opts.Args())

	s := &Server{cmd: cmd, done: make(chan error, 1)}
	go func() {
		err := cmd.Wait()
		_ = output.Close()
		s.done <- err
		close(s.done)
	}()
	return s, nil
}

// Done is closed after the process exits. It yields the exit error, if any.
func (s *Server) Done() <-chan error {
	return s.done
}

// Close asks the process to exit and kills it if it has not stopped after a grace period.
func (s *Server) Close() error {
	if s == nil || s.cmd == nil || s.cmd.Process == nil {
		return nil
	}
	_ = s.cmd.Process.Signal(syscall.SIGTERM)

	select {
	case err, ok := <-s.done:
		if ok {
			s.err = err
		}
	case <-time.After(5 * time.Second):
		_ = s.cmd.Process.Kill()
		if err, ok := <-s.done; ok {
			s.err = err
		}
	}

	var exitErr *exec.ExitError
	if errors.As(s.err, &exitErr) {
		// Terminated by our own signal.
		return nil
	}
	return s.err
}

func portFree(host string, port int) error {
	ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("llama-server port %d on %s is not available: %w", port, host, err)
	}
	return ln.Close()
}

// lineLogger forwards each line written by the child process to the log file.
type lineLogger struct {
	pw   *io.PipeWriter
	done chan struct{}
}

func newLineLogger(prefix string) *lineLogger {
	pr, pw := io.Pipe()
	l := &lineLogger{pw: pw, done: make(chan struct{})}
	go func() {
		defer close(l.done)
		scanner := bufio.NewScanner(pr)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			logging.LogFileOnly("[%s] %s", prefix, scanner.Text())
		}
		_, _ = io.Copy(io.Discard, pr)
	}()
	return l
}

func (l *lineLogger) Write(p []byte) (int, error) {
	return l.pw.Write(p)
}

func (l *lineLogger) Close() error {
	err := l.pw.Close()
	<-l.done
	return err
}
