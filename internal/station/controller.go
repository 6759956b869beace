package station

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/large-farva/passrelay/internal/capture"
	"github.com/large-farva/passrelay/internal/config"
	"github.com/large-farva/passrelay/internal/metrics"
	"github.com/large-farva/passrelay/internal/power"
	"github.com/large-farva/passrelay/internal/upload"
)

// State is the controller's position in its state machine.
type State string

const (
	StateIdle         State = "IDLE"
	StateCapturing    State = "CAPTURING"
	StateShuttingDown State = "SHUTTING_DOWN"
)

// ErrStopped is returned by Handle once the controller loop has exited.
var ErrStopped = errors.New("controller stopped")

// Uploader receives finished recordings.
type Uploader interface {
	Upload(ctx context.Context, path, code string) upload.Outcome
}

// Status is a read-only view of the controller for the status endpoint.
type Status struct {
	State     State     `json:"state"`
	Code      string    `json:"code,omitempty"`
	Tag       string    `json:"tag,omitempty"`
	PID       int       `json:"pid,omitempty"`
	Output    string    `json:"output,omitempty"`
	StartedAt time.Time `json:"started_at,omitzero"`
	EndsAt    time.Time `json:"ends_at,omitzero"`
	Remaining int       `json:"remaining_seconds"`
	Exited    bool      `json:"exited,omitempty"`
}

// session is the one in-flight recording. Only the loop goroutine touches it.
type session struct {
	seq     uint64
	cmd     Command
	handle  capture.Handle
	path    string
	started time.Time
	end     time.Time
	timer   timer
	exited  bool
}

type timer interface {
	Stop() bool
}

type (
	commandEvent struct {
		req   Request
		err   error
		reply chan<- string
	}
	timerEvent struct{ seq uint64 }
	exitEvent  struct{ seq uint64 }
)

// Controller serializes every command, timer fire, and process exit through
// one goroutine, so the recording session needs no locking.
type Controller struct {
	log      *log.Logger
	table    Table
	launcher capture.Launcher
	power    power.Controller
	uploads  Uploader

	Dir             string
	DefaultDuration time.Duration
	Settle          time.Duration
	ExecTimeout     time.Duration
	MaxResponse     int

	events  chan any
	stopped chan struct{}
	once    sync.Once

	// Loop-owned.
	state State
	sess  *session
	seq   uint64
	ctx   context.Context

	busy     atomic.Bool
	snapshot atomic.Pointer[Status]
	uploadWG sync.WaitGroup

	// Uploads outlive Run; Wait cancels whatever is left when it gives up.
	uploadCtx    context.Context
	uploadCancel context.CancelFunc

	now       func() time.Time
	afterFunc func(time.Duration, func()) timer
}

// NewController builds a controller from the [recorder] section.
func NewController(cfg config.RecorderConfig, table Table, l capture.Launcher, pc power.Controller, up Uploader, logger *log.Logger) *Controller {
	c := &Controller{
		log:             logger,
		table:           table,
		launcher:        l,
		power:           pc,
		uploads:         up,
		Dir:             cfg.RecordingsDir,
		DefaultDuration: config.Seconds(cfg.DefaultDurationSeconds),
		Settle:          config.Seconds(cfg.SettleDelaySeconds),
		ExecTimeout:     config.Seconds(cfg.ExecTimeoutSeconds),
		MaxResponse:     cfg.ResponseMaxLen,
		events:          make(chan any),
		stopped:         make(chan struct{}),
		state:           StateIdle,
		ctx:             context.Background(),
		now:             time.Now,
		afterFunc: func(d time.Duration, f func()) timer {
			return time.AfterFunc(d, f)
		},
	}
	c.uploadCtx, c.uploadCancel = context.WithCancel(context.Background())
	c.snapshot.Store(&Status{State: StateIdle})
	return c
}

// Busy reports whether a recording session is active.
func (c *Controller) Busy() bool {
	return c.busy.Load()
}

// Status returns the latest controller view with the remaining time
// computed now.
func (c *Controller) Status() Status {
	st := *c.snapshot.Load()
	if !st.EndsAt.IsZero() {
		st.Remaining = max(0, int(st.EndsAt.Sub(c.now()).Seconds()))
	}
	return st
}

// Run processes events until ctx is cancelled, then terminates any capture
// and clears the session.
func (c *Controller) Run(ctx context.Context) {
	c.ctx = ctx
	defer c.once.Do(func() { close(c.stopped) })

	for {
		select {
		case <-ctx.Done():
			if c.sess != nil {
				c.log.Printf("station: shutting down, terminating capture for %s", c.sess.cmd.Code)
			}
			c.clearSession()
			c.publish()
			return
		case ev := <-c.events:
			c.handle(ev)
		}
	}
}

// Wait blocks until pending uploads finish or timeout elapses, then cancels
// any upload still running.
func (c *Controller) Wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		c.uploadWG.Wait()
		close(done)
	}()
	defer c.uploadCancel()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Handle runs one command line through the loop and returns the response
// line to send back.
func (c *Controller) Handle(ctx context.Context, line string) (string, error) {
	req, err := ParseLine(line)
	reply := make(chan string, 1)
	select {
	case c.events <- commandEvent{req: req, err: err, reply: reply}:
	case <-ctx.Done():
		return "", ctx.Err()
	case <-c.stopped:
		return "", ErrStopped
	}
	select {
	case r := <-reply:
		return r, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-c.stopped:
		return "", ErrStopped
	}
}

// post delivers an event unless the loop has exited.
func (c *Controller) post(ev any) bool {
	select {
	case c.events <- ev:
		return true
	case <-c.stopped:
		return false
	}
}

func (c *Controller) handle(ev any) {
	switch ev := ev.(type) {
	case commandEvent:
		ev.reply <- c.command(ev.req, ev.err)
	case timerEvent:
		c.timerFired(ev.seq)
	case exitEvent:
		c.processExited(ev.seq)
	}
	c.publish()
}

func (c *Controller) command(req Request, parseErr error) string {
	c.log.Printf("station: received command: %s", req.Line)

	if parseErr != nil {
		c.log.Printf("station: malformed command: %s", req.Line)
		metrics.StationCommand("bad_request")
		return TagBadRequest + ":" + req.Line
	}

	cmd, ok := c.table.Lookup(req.Code)
	if !ok {
		c.log.Printf("station: unknown command received: %s", req.Line)
		metrics.StationCommand("unknown")
		return TagUnknown + ":" + req.Line
	}

	var out, result string
	switch cmd.Kind {
	case KindShutdown:
		out, result = c.shutdown(cmd)
	case KindCapture:
		out, result = c.startCapture(cmd, req.Duration)
	case KindExec:
		out, result = c.exec(cmd)
	}
	metrics.StationCommand(result)

	resp := Respond(cmd.Tag, out, c.MaxResponse)
	c.log.Printf("station: response: %s", resp)
	return resp
}

func (c *Controller) startCapture(cmd Command, dur time.Duration) (string, string) {
	if c.state == StateShuttingDown {
		return "Cannot start: station is shutting down", "conflict"
	}
	if dur <= 0 {
		dur = c.DefaultDuration
	}

	now := c.now()
	if s := c.sess; s != nil && !s.exited {
		remaining := max(0, int(s.end.Sub(now).Seconds()))
		c.log.Printf("station: recording already in progress for %s, %d seconds remaining", s.cmd.Code, remaining)
		if s.cmd.Code != cmd.Code {
			msg := fmt.Sprintf("Ignoring new recording request for %s to avoid interrupting current recording of %s", cmd.Code, s.cmd.Code)
			c.log.Printf("station: %s", msg)
			return "Cannot start: " + msg, "conflict"
		}
		return fmt.Sprintf("Already recording satellite %s for %d more seconds", s.cmd.Code, remaining), "already_recording"
	}

	// Anything left here has exited on its own; its file is abandoned.
	c.clearSession()

	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		c.log.Printf("station: recordings directory: %v", err)
		return "Error: " + err.Error(), "error"
	}

	cmdline, _, path := cmd.expand(now.Format("20060102_150405"), c.Dir)
	c.log.Printf("station: starting command with duration %s: %s", dur, cmdline)

	h, err := c.launcher.Launch(cmdline)
	if err != nil {
		c.log.Printf("station: %v", err)
		return "Error: " + err.Error(), "error"
	}

	c.seq++
	seq := c.seq
	c.sess = &session{
		seq:     seq,
		cmd:     cmd,
		handle:  h,
		path:    path,
		started: now,
		end:     now.Add(dur),
		timer:   c.afterFunc(dur, func() { c.post(timerEvent{seq}) }),
	}
	c.state = StateCapturing
	c.busy.Store(true)

	go func() {
		<-h.Done()
		c.post(exitEvent{seq})
	}()

	c.log.Printf("station: output file will be %s", path)
	return fmt.Sprintf("Process started with PID %d, duration %d seconds", h.Pid(), int(dur.Seconds())), "capture_started"
}

// timerFired ends the session and hands its file to the uploader after the
// settle delay. The upload keeps running after Run returns, until Wait.
// Fires for an older session are ignored.
func (c *Controller) timerFired(seq uint64) {
	s := c.sess
	if s == nil || s.seq != seq {
		return
	}
	c.log.Printf("station: timer expired after %s, terminating %s", s.end.Sub(s.started), s.cmd.Code)
	c.clearSession()

	ctx := c.uploadCtx
	c.uploadWG.Add(1)
	go func() {
		defer c.uploadWG.Done()
		select {
		case <-time.After(c.Settle):
		case <-ctx.Done():
			c.log.Printf("station: uploads cancelled, keeping %s", s.path)
			return
		}
		outcome := c.uploads.Upload(ctx, s.path, s.cmd.Code)
		c.log.Printf("station: upload result for %s: %s", s.cmd.Code, outcome)
	}()
}

func (c *Controller) processExited(seq uint64) {
	s := c.sess
	if s == nil || s.seq != seq {
		return
	}
	s.exited = true
	c.log.Printf("station: capture process for %s exited before its timer", s.cmd.Code)
}

func (c *Controller) shutdown(cmd Command) (string, string) {
	if c.sess != nil {
		c.log.Printf("station: shutdown requested, abandoning capture for %s", c.sess.cmd.Code)
	}
	c.clearSession()
	c.state = StateShuttingDown

	if err := c.power.PowerDown("command " + cmd.Code); err != nil {
		c.log.Printf("station: power down: %v", err)
		return "Error: " + err.Error(), "shutdown"
	}
	return "Shutdown initiated", "shutdown"
}

func (c *Controller) exec(cmd Command) (string, string) {
	out, err := c.launcher.Output(c.ctx, cmd.Cmdline, c.ExecTimeout)
	switch {
	case errors.Is(err, capture.ErrTimeout):
		return "Command timed out", "timeout"
	case err != nil:
		c.log.Printf("station: command failed: %v", err)
		return "Error: " + err.Error(), "error"
	}
	c.log.Printf("station: command executed: %s", cmd.Cmdline)
	return out, "exec"
}

// clearSession terminates the capture process group and cancels the timer.
func (c *Controller) clearSession() {
	s := c.sess
	if s == nil {
		return
	}
	s.timer.Stop()
	if err := s.handle.Terminate(); err != nil {
		c.log.Printf("station: terminate pid %d: %v", s.handle.Pid(), err)
	}
	c.sess = nil
	if c.state == StateCapturing {
		c.state = StateIdle
	}
	c.busy.Store(false)
}

func (c *Controller) publish() {
	st := &Status{State: c.state}
	if s := c.sess; s != nil {
		st.Code = s.cmd.Code
		st.Tag = s.cmd.Tag
		st.PID = s.handle.Pid()
		st.Output = s.path
		st.StartedAt = s.started
		st.EndsAt = s.end
		st.Exited = s.exited
	}
	c.snapshot.Store(st)
}
