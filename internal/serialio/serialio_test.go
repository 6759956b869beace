package serialio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"testing"
	"time"
)

// stream hands out queued chunks and behaves like a serial port with a
// short read timeout when the queue is empty.
type stream struct {
	mu      sync.Mutex
	chunks  []string
	written bytes.Buffer
	closed  bool
}

func (s *stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, io.EOF
	}
	if len(s.chunks) == 0 {
		s.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		s.mu.Lock()
		return 0, nil
	}
	n := copy(p, s.chunks[0])
	s.chunks[0] = s.chunks[0][n:]
	if s.chunks[0] == "" {
		s.chunks = s.chunks[1:]
	}
	return n, nil
}

func (s *stream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written.Write(p)
}

func (s *stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func testPort(chunks ...string) (*Port, *stream) {
	s := &stream{chunks: chunks}
	return New(s, log.New(io.Discard, "", 0)), s
}

func TestReadLineReassemblesChunks(t *testing.T) {
	p, _ := testPort("10", "7:6", "00\r\n\n  \n103\n")
	ctx := context.Background()

	for _, want := range []string{"107:600", "103"} {
		got, err := p.ReadLine(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("line = %q, want %q", got, want)
		}
	}
}

func TestReadLineReplacesNonASCII(t *testing.T) {
	p, _ := testPort("10\xff3\n")
	got, err := p.ReadLine(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != "10?3" {
		t.Errorf("line = %q", got)
	}
}

func TestReadLineCancels(t *testing.T) {
	p, _ := testPort()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := p.ReadLine(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v", err)
	}
}

func TestReadLineCapsLength(t *testing.T) {
	p, _ := testPort(strings.Repeat("x", maxLine+10) + "\n")
	got, err := p.ReadLine(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != maxLine {
		t.Errorf("len = %d, want %d", len(got), maxLine)
	}
}

func TestReadLineCutKeepsNextSegment(t *testing.T) {
	p, _ := testPort(strings.Repeat("x", maxLine-100), strings.Repeat("x", 100)+"107:600\n")
	ctx := context.Background()

	first, err := p.ReadLine(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if first != strings.Repeat("x", maxLine) {
		t.Errorf("first line has %d bytes, want %d", len(first), maxLine)
	}
	second, err := p.ReadLine(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if second != "107:600" {
		t.Errorf("second line = %q, want 107:600", second)
	}
}

func TestSend(t *testing.T) {
	p, s := testPort()
	if err := p.Send("Pi ready"); err != nil {
		t.Fatal(err)
	}
	if s.written.String() != "Pi ready\n" {
		t.Errorf("wrote %q", s.written.String())
	}
}

func TestReadAfterClose(t *testing.T) {
	p, _ := testPort()
	p.Close()
	if _, err := p.ReadLine(context.Background()); !errors.Is(err, io.EOF) {
		t.Errorf("err = %v, want EOF", err)
	}
}
