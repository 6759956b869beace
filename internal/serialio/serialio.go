// Package serialio frames newline-terminated ASCII lines over the serial
// port wired to the station's power controller.
package serialio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/large-farva/passrelay/internal/config"
)

// readTimeout bounds each blocking read so ReadLine can notice cancellation.
const readTimeout = time.Second

// maxLine caps a single line; longer input is cut and delivered as is.
const maxLine = 1024

// Port is a line-oriented serial link. Reads happen on one goroutine;
// Send may be called from any goroutine.
type Port struct {
	rw  io.ReadWriteCloser
	log *log.Logger

	wmu sync.Mutex
	buf []byte
}

// Open opens the configured port at 8N1, clears stale buffered input and
// output, and waits settle before returning so the other end is ready.
func Open(cfg config.LinkConfig, settle time.Duration, logger *log.Logger) (*Port, error) {
	mode := &serial.Mode{
		BaudRate: cfg.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	sp, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Port, err)
	}
	if err := sp.SetReadTimeout(readTimeout); err != nil {
		sp.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	if err := sp.ResetInputBuffer(); err != nil {
		logger.Printf("serial: reset input buffer: %v", err)
	}
	if err := sp.ResetOutputBuffer(); err != nil {
		logger.Printf("serial: reset output buffer: %v", err)
	}
	logger.Printf("serial: connection opened on %s at %d baud", cfg.Port, cfg.Baud)

	time.Sleep(settle)
	return New(sp, logger), nil
}

// New wraps an already open stream. Reads must return (0, nil) on timeout
// rather than blocking forever for cancellation to work.
func New(rw io.ReadWriteCloser, logger *log.Logger) *Port {
	return &Port{rw: rw, log: logger}
}

// ReadLine returns the next non-empty line with surrounding whitespace
// removed. Bytes that are not valid ASCII are replaced.
func (p *Port) ReadLine(ctx context.Context) (string, error) {
	chunk := make([]byte, 256)
	for {
		if line, ok := p.next(); ok {
			return line, nil
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}

		n, err := p.rw.Read(chunk)
		p.buf = append(p.buf, chunk[:n]...)
		if err != nil {
			return "", err
		}
	}
}

func (p *Port) next() (string, bool) {
	for {
		i := bytes.IndexByte(p.buf, '\n')
		rest := i + 1
		if i < 0 || i > maxLine {
			if len(p.buf) < maxLine {
				return "", false
			}
			// Forced cut: the next segment starts right at maxLine.
			i, rest = maxLine, maxLine
		}
		raw := p.buf[:i]
		p.buf = p.buf[rest:]
		if line := clean(raw); line != "" {
			return line, true
		}
	}
}

func clean(raw []byte) string {
	var b strings.Builder
	for _, c := range raw {
		if c < 0x80 {
			b.WriteByte(c)
		} else {
			b.WriteByte('?')
		}
	}
	return strings.TrimSpace(b.String())
}

// Send writes line followed by a newline.
func (p *Port) Send(line string) error {
	p.wmu.Lock()
	defer p.wmu.Unlock()
	_, err := io.WriteString(p.rw, line+"\n")
	return err
}

func (p *Port) Close() error {
	return p.rw.Close()
}
