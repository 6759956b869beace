package capture

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"
	"time"
)

func testShell() *Shell {
	return NewShell(log.New(io.Discard, "", 0))
}

func TestOutput(t *testing.T) {
	out, err := testShell().Output(context.Background(), "echo hello; echo world", 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if out != "hello\nworld" {
		t.Errorf("output = %q", out)
	}
}

func TestOutputFailure(t *testing.T) {
	out, err := testShell().Output(context.Background(), "echo nope >&2; exit 3", 5*time.Second)
	if err == nil {
		t.Fatal("expected an error for a non-zero exit")
	}
	if out != "nope" {
		t.Errorf("output = %q, want stderr captured", out)
	}
}

func TestOutputTimeoutKillsPipeline(t *testing.T) {
	start := time.Now()
	_, err := testShell().Output(context.Background(), "sleep 30 | cat", 200*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("timeout did not kill the pipeline promptly")
	}
}

func TestLaunchTerminateGroup(t *testing.T) {
	h, err := testShell().Launch("sleep 30 | sleep 30")
	if err != nil {
		t.Fatal(err)
	}
	if h.Pid() <= 0 {
		t.Fatalf("pid = %d", h.Pid())
	}
	if err := h.Terminate(); err != nil {
		t.Fatal(err)
	}
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline survived SIGTERM to its group")
	}
	if err := h.Terminate(); err != nil {
		t.Errorf("second terminate: %v", err)
	}
}

func TestLaunchExitsOnItsOwn(t *testing.T) {
	h, err := testShell().Launch("true")
	if err != nil {
		t.Fatal(err)
	}
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process never reported exit")
	}
	if p := h.(*Process); p.Err() != nil {
		t.Errorf("err = %v", p.Err())
	}
}

func TestTailBuffer(t *testing.T) {
	tb := &tailBuffer{max: 4}
	tb.Write([]byte("abc"))
	tb.Write([]byte("defg"))
	if got := tb.String(); got != "defg" {
		t.Errorf("tail = %q", got)
	}
	if !strings.HasSuffix(tb.String(), "g") {
		t.Error("lost newest byte")
	}
}
