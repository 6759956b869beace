// Package capture runs station command lines. Capture commands are shell
// pipelines (typically rtl_fm into sox) started in their own process group
// so that terminating a capture takes every stage of the pipeline with it.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

// ErrTimeout is returned by Output when the command outlives its timeout.
var ErrTimeout = errors.New("command timed out")

// Handle is a running capture pipeline.
type Handle interface {
	Pid() int
	// Done is closed once the whole pipeline has exited.
	Done() <-chan struct{}
	// Terminate signals the process group with SIGTERM. It is safe to call
	// more than once and after the process has exited.
	Terminate() error
}

// Launcher starts capture pipelines and runs short synchronous commands.
type Launcher interface {
	Launch(cmdline string) (Handle, error)
	Output(ctx context.Context, cmdline string, timeout time.Duration) (string, error)
}

// Shell runs command lines through sh -c.
type Shell struct {
	Log *log.Logger
}

// NewShell returns a launcher logging through logger.
func NewShell(logger *log.Logger) *Shell {
	return &Shell{Log: logger}
}

func command(ctx context.Context, cmdline string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, "sh", "-c", cmdline)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	return cmd
}

// Launch starts cmdline in a new process group and returns immediately.
// Output of the pipeline is discarded except for a short stderr tail that
// is logged when the process exits.
func (s *Shell) Launch(cmdline string) (Handle, error) {
	cmd := command(context.Background(), cmdline)
	tail := &tailBuffer{max: 512}
	cmd.Stderr = tail

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start capture: %w", err)
	}

	p := &Process{cmd: cmd, done: make(chan struct{})}
	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		p.err = err
		p.mu.Unlock()
		close(p.done)
		if err != nil && s.Log != nil {
			s.Log.Printf("capture: pid %d exited: %v %s", cmd.Process.Pid, err, strings.TrimSpace(tail.String()))
		}
	}()
	return p, nil
}

// Output runs cmdline synchronously and returns its trimmed combined output.
// When timeout elapses the whole process group is killed and ErrTimeout is
// returned.
func (s *Shell) Output(ctx context.Context, cmdline string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := command(ctx, cmdline)
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = time.Second

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return "", ErrTimeout
	}
	if err != nil {
		return strings.TrimSpace(out.String()), fmt.Errorf("%s: %w", cmdline, err)
	}
	return strings.TrimSpace(out.String()), nil
}

// Process is a pipeline started by Shell.Launch.
type Process struct {
	cmd  *exec.Cmd
	done chan struct{}

	mu  sync.Mutex
	err error
}

func (p *Process) Pid() int { return p.cmd.Process.Pid }

func (p *Process) Done() <-chan struct{} { return p.done }

// Err returns the exit error once Done is closed.
func (p *Process) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *Process) Terminate() error {
	select {
	case <-p.done:
		return nil
	default:
	}
	// The pipeline leader's pid is also its process group id.
	err := syscall.Kill(-p.cmd.Process.Pid, syscall.SIGTERM)
	if errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (t *tailBuffer) Write(b []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, b...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(b), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
