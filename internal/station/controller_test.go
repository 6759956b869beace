package station

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/large-farva/passrelay/internal/capture"
	"github.com/large-farva/passrelay/internal/config"
	"github.com/large-farva/passrelay/internal/upload"
)

type fakeHandle struct {
	pid        int
	done       chan struct{}
	once       sync.Once
	mu         sync.Mutex
	terminated int
}

func (h *fakeHandle) Pid() int { return h.pid }
func (h *fakeHandle) Done() <-chan struct{} { return h.done }

func (h *fakeHandle) Terminate() error {
	h.mu.Lock()
	h.terminated++
	h.mu.Unlock()
	h.exit()
	return nil
}

func (h *fakeHandle) exit() { h.once.Do(func() { close(h.done) }) }

func (h *fakeHandle) terminations() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.terminated
}

type fakeLauncher struct {
	mu       sync.Mutex
	launched []string
	handles  []*fakeHandle
	output   string
	err      error
}

func (l *fakeLauncher) Launch(cmdline string) (capture.Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.launched = append(l.launched, cmdline)
	h := &fakeHandle{pid: 4242 + len(l.handles), done: make(chan struct{})}
	l.handles = append(l.handles, h)
	return h, nil
}

func (l *fakeLauncher) Output(context.Context, string, time.Duration) (string, error) {
	return l.output, l.err
}

func (l *fakeLauncher) handle(i int) *fakeHandle {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.handles[i]
}

type fakePower struct {
	mu   sync.Mutex
	down int
}

func (p *fakePower) PowerDown(string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.down++
	return nil
}

func (p *fakePower) ScheduleShutdown(string) error { return nil }

type uploadCall struct{ path, code string }

type fakeUploader struct {
	calls   chan uploadCall
	outcome upload.Outcome

	// With release set, Upload holds until release closes or ctx ends and
	// reports ctx.Err() on ctxErr.
	release chan struct{}
	ctxErr  chan error
}

func (u *fakeUploader) Upload(ctx context.Context, path, code string) upload.Outcome {
	u.calls <- uploadCall{path, code}
	if u.release != nil {
		select {
		case <-u.release:
		case <-ctx.Done():
		}
		u.ctxErr <- ctx.Err()
	}
	return u.outcome
}

type fakeTimer struct {
	d       time.Duration
	fire    func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.stopped = true
	return true
}

type fixture struct {
	c        *Controller
	launcher *fakeLauncher
	power    *fakePower
	uploads  *fakeUploader
	dir      string
	clock    time.Time

	stop context.CancelFunc
	done chan struct{}

	mu     sync.Mutex
	timers []*fakeTimer
}

var start = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.Default().Recorder
	cfg.RecordingsDir = filepath.Join(t.TempDir(), "recordings")
	cfg.SettleDelaySeconds = 0

	f := &fixture{
		launcher: &fakeLauncher{},
		power:    &fakePower{},
		uploads:  &fakeUploader{calls: make(chan uploadCall, 4)},
		dir:      cfg.RecordingsDir,
		clock:    start,
	}
	f.c = NewController(cfg, DefaultTable(), f.launcher, f.power, f.uploads, log.New(io.Discard, "", 0))
	f.c.now = func() time.Time {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.clock
	}
	f.c.afterFunc = func(d time.Duration, fn func()) timer {
		f.mu.Lock()
		defer f.mu.Unlock()
		tm := &fakeTimer{d: d, fire: fn}
		f.timers = append(f.timers, tm)
		return tm
	}

	ctx, cancel := context.WithCancel(context.Background())
	f.stop, f.done = cancel, make(chan struct{})
	go func() {
		f.c.Run(ctx)
		close(f.done)
	}()
	t.Cleanup(func() {
		cancel()
		<-f.done
	})
	return f
}

func (f *fixture) send(t *testing.T, line string) string {
	t.Helper()
	resp, err := f.c.Handle(context.Background(), line)
	if err != nil {
		t.Fatalf("%s: %v", line, err)
	}
	return resp
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	f.clock = f.clock.Add(d)
	f.mu.Unlock()
}

func (f *fixture) timer(i int) *fakeTimer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.timers[i]
}

// fire delivers a timer and waits until the loop has handled it.
func (f *fixture) fire(t *testing.T, i int) {
	t.Helper()
	f.timer(i).fire()
	f.send(t, "noop")
}

func TestCaptureStarts(t *testing.T) {
	f := newFixture(t)
	resp := f.send(t, "107:600")

	if !strings.HasPrefix(resp, "107_NOAA19:Process started with PID 4242") {
		t.Errorf("response = %q", resp)
	}
	if len(resp) > len("107_NOAA19:")+50 {
		t.Errorf("response not truncated: %d bytes", len(resp))
	}
	if f.timer(0).d != 600*time.Second {
		t.Errorf("timer armed for %v", f.timer(0).d)
	}

	want := filepath.Join(f.dir, "noaa19_20250301_120000.wav")
	if !strings.Contains(f.launcher.launched[0], want) {
		t.Errorf("command line %q does not write %s", f.launcher.launched[0], want)
	}

	st := f.c.Status()
	if st.State != StateCapturing || st.Code != "107" || st.Remaining != 600 || !f.c.Busy() {
		t.Errorf("status = %+v", st)
	}
}

func TestDefaultDuration(t *testing.T) {
	f := newFixture(t)
	f.send(t, "105")
	if f.timer(0).d != 900*time.Second {
		t.Errorf("timer armed for %v, want the 900s default", f.timer(0).d)
	}
}

func TestSameCodeIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.send(t, "107:600")
	before := f.c.Status()

	f.advance(100 * time.Second)
	resp := f.send(t, "107:600")
	if !strings.HasPrefix(resp, "107_NOAA19:Already recording satellite 107 for 500") {
		t.Errorf("response = %q", resp)
	}

	after := f.c.Status()
	if !after.EndsAt.Equal(before.EndsAt) {
		t.Errorf("end time moved from %v to %v", before.EndsAt, after.EndsAt)
	}
	if len(f.launcher.launched) != 1 || len(f.timers) != 1 || f.timer(0).stopped {
		t.Error("re-request launched a process or re-armed the timer")
	}
}

func TestDifferentCodeConflicts(t *testing.T) {
	f := newFixture(t)
	f.send(t, "107:600")

	resp := f.send(t, "105:600")
	if !strings.HasPrefix(resp, "105_NOAA15:Cannot start: Ignoring new recording") {
		t.Errorf("response = %q", resp)
	}
	st := f.c.Status()
	if st.Code != "107" || len(f.launcher.launched) != 1 {
		t.Errorf("conflict changed state: %+v", st)
	}
	if f.launcher.handle(0).terminations() != 0 {
		t.Error("in-progress capture was interrupted")
	}
}

func TestTimerEndsSessionAndUploadsOnce(t *testing.T) {
	f := newFixture(t)
	f.send(t, "107:600")
	path := f.c.Status().Output

	f.advance(600 * time.Second)
	f.fire(t, 0)

	if st := f.c.Status(); st.State != StateIdle || f.c.Busy() {
		t.Errorf("status after timer = %+v", st)
	}
	if f.launcher.handle(0).terminations() != 1 {
		t.Error("capture process group not terminated")
	}

	select {
	case call := <-f.uploads.calls:
		if call.path != path || call.code != "107" {
			t.Errorf("upload = %+v, want %s", call, path)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("upload never invoked")
	}
	select {
	case call := <-f.uploads.calls:
		t.Errorf("second upload %+v", call)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUploadSurvivesLoopShutdown(t *testing.T) {
	f := newFixture(t)
	f.uploads.release = make(chan struct{})
	f.uploads.ctxErr = make(chan error, 1)
	f.send(t, "107:600")
	f.fire(t, 0)
	<-f.uploads.calls

	f.stop()
	<-f.done

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(f.uploads.release)
	}()
	if !f.c.Wait(5 * time.Second) {
		t.Fatal("Wait timed out")
	}
	if err := <-f.uploads.ctxErr; err != nil {
		t.Errorf("upload context ended early: %v", err)
	}
}

func TestWaitCancelsStragglers(t *testing.T) {
	f := newFixture(t)
	f.uploads.release = make(chan struct{})
	f.uploads.ctxErr = make(chan error, 1)
	f.send(t, "107:600")
	f.fire(t, 0)
	<-f.uploads.calls

	f.stop()
	<-f.done

	if f.c.Wait(50 * time.Millisecond) {
		t.Fatal("Wait reported a blocked upload as finished")
	}
	select {
	case err := <-f.uploads.ctxErr:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("upload ctx err = %v, want canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("upload not cancelled after Wait gave up")
	}
}

func TestUploadFailureLeavesIdle(t *testing.T) {
	f := newFixture(t)
	f.uploads.outcome = upload.Failed
	f.send(t, "106:60")
	f.fire(t, 0)
	<-f.uploads.calls

	f.send(t, "noop")
	if st := f.c.Status(); st.State != StateIdle {
		t.Errorf("state = %s after failed upload", st.State)
	}
}

func TestSameCodeAfterSessionEndsStartsFresh(t *testing.T) {
	f := newFixture(t)
	f.send(t, "107:600")
	f.advance(600 * time.Second)
	f.fire(t, 0)
	<-f.uploads.calls

	f.advance(time.Hour)
	resp := f.send(t, "107:600")
	if !strings.Contains(resp, "Process started") {
		t.Fatalf("response = %q", resp)
	}
	if len(f.launcher.launched) != 2 {
		t.Errorf("launched %d processes, want 2", len(f.launcher.launched))
	}

	// The first session's timer firing late must not end the new session.
	f.fire(t, 0)
	if st := f.c.Status(); st.State != StateCapturing {
		t.Errorf("stale timer ended the new session: %+v", st)
	}
}

func TestExitedProcessDoesNotBlockNewCapture(t *testing.T) {
	f := newFixture(t)
	f.send(t, "107:600")
	f.launcher.handle(0).exit()
	deadline := time.Now().Add(2 * time.Second)
	for !f.c.Status().Exited {
		if time.Now().After(deadline) {
			t.Fatal("exit not recorded")
		}
		time.Sleep(5 * time.Millisecond)
	}

	resp := f.send(t, "105:600")
	if !strings.Contains(resp, "Process started") {
		t.Errorf("response = %q", resp)
	}
	if !f.timer(0).stopped {
		t.Error("previous timer not cancelled")
	}
}

func TestShutdownMidCapture(t *testing.T) {
	f := newFixture(t)
	f.send(t, "107:600")

	resp := f.send(t, "104")
	if resp != "104_ACK:Shutdown initiated" {
		t.Errorf("response = %q", resp)
	}
	if f.power.down != 1 {
		t.Errorf("power down requested %d times", f.power.down)
	}
	st := f.c.Status()
	if st.State != StateShuttingDown || st.Code != "" || f.c.Busy() {
		t.Errorf("status = %+v", st)
	}
	if f.launcher.handle(0).terminations() != 1 || !f.timer(0).stopped {
		t.Error("capture not torn down")
	}
	select {
	case call := <-f.uploads.calls:
		t.Errorf("shutdown triggered upload %+v", call)
	default:
	}

	if resp := f.send(t, "105:60"); !strings.Contains(resp, "shutting down") {
		t.Errorf("capture after shutdown = %q", resp)
	}
}

func TestUnknownAndMalformed(t *testing.T) {
	f := newFixture(t)
	if resp := f.send(t, "999"); resp != "UNKNOWN_CODE:999" {
		t.Errorf("unknown = %q", resp)
	}
	if resp := f.send(t, "107:abc"); resp != "BAD_REQUEST:107:abc" {
		t.Errorf("malformed = %q", resp)
	}
	if f.c.Status().State != StateIdle || len(f.launcher.launched) != 0 {
		t.Error("bad input changed state")
	}
}

func TestExecCommand(t *testing.T) {
	f := newFixture(t)
	f.launcher.output = " 12:00:00 up 3 days,  2:14,  1 user,  load average: 0.08, 0.03, 0.01"
	resp := f.send(t, "103")
	if resp != "103_ACK:"+f.launcher.output[:50] {
		t.Errorf("response = %q", resp)
	}

	f.launcher.err = capture.ErrTimeout
	if resp := f.send(t, "103"); resp != "103_ACK:Command timed out" {
		t.Errorf("timeout response = %q", resp)
	}

	f.launcher.err = errors.New("exit status 1")
	if resp := f.send(t, "103"); !strings.HasPrefix(resp, "103_ACK:Error:") {
		t.Errorf("error response = %q", resp)
	}
}

func TestRunCancelTerminatesCapture(t *testing.T) {
	cfg := config.Default().Recorder
	cfg.RecordingsDir = t.TempDir()
	l := &fakeLauncher{}
	c := NewController(cfg, DefaultTable(), l, &fakePower{}, &fakeUploader{calls: make(chan uploadCall, 1)}, log.New(io.Discard, "", 0))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	if _, err := c.Handle(context.Background(), "108:60"); err != nil {
		t.Fatal(err)
	}
	cancel()
	<-done

	if l.handle(0).terminations() != 1 {
		t.Error("capture survived controller shutdown")
	}
	if _, err := c.Handle(context.Background(), "103"); !errors.Is(err, ErrStopped) {
		t.Errorf("err = %v, want ErrStopped", err)
	}
}
