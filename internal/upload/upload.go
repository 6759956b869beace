// Package upload moves finished captures off the station and decides
// whether the station may power down afterwards.
package upload

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/large-farva/passrelay/internal/config"
	"github.com/large-farva/passrelay/internal/metrics"
	"github.com/large-farva/passrelay/internal/power"
)

// Transfer copies a local file to remote storage.
type Transfer interface {
	Verify(ctx context.Context) error
	Copy(ctx context.Context, path string) error
}

// Sender writes one response line back to the power controller.
type Sender interface {
	Send(line string) error
}

// Outcome is the result of one upload attempt.
type Outcome int

const (
	Uploaded Outcome = iota
	UploadedShutdown
	Missing
	Failed
	Disabled
)

func (o Outcome) String() string {
	switch o {
	case Uploaded:
		return "uploaded"
	case UploadedShutdown:
		return "uploaded, shutting down"
	case Missing:
		return "file not found"
	case Failed:
		return "upload failed"
	case Disabled:
		return "upload disabled"
	}
	return "unknown"
}

// detailLen bounds error detail in logs and responses.
const detailLen = 50

// Dispatcher uploads completed captures.
type Dispatcher struct {
	transfer Transfer
	power    power.Controller
	send     Sender
	log      *log.Logger

	DeleteAfter   bool
	ShutdownAfter bool
	Grace         time.Duration

	// Busy reports whether a capture is in progress. Shutdown is only
	// requested while it returns false.
	Busy func() bool

	enabled atomic.Bool
	sleep   func(time.Duration)
}

// New builds a dispatcher from the [upload] section. It starts disabled
// when cfg.Enabled is false; otherwise Verify decides.
func New(cfg config.UploadConfig, transfer Transfer, pc power.Controller, send Sender, logger *log.Logger) *Dispatcher {
	d := &Dispatcher{
		transfer:      transfer,
		power:         pc,
		send:          send,
		log:           logger,
		DeleteAfter:   cfg.DeleteAfterUpload,
		ShutdownAfter: cfg.ShutdownAfterUpload,
		Grace:         config.Seconds(cfg.ShutdownGraceSeconds),
		Busy:          func() bool { return false },
		sleep:         time.Sleep,
	}
	d.enabled.Store(cfg.Enabled)
	return d
}

// Verify checks the transfer tool at startup. A failure disables uploads
// for the rest of the run; captures stay on disk.
func (d *Dispatcher) Verify(ctx context.Context) error {
	if !d.enabled.Load() {
		d.log.Printf("upload: disabled by configuration")
		return nil
	}
	if err := d.transfer.Verify(ctx); err != nil {
		d.enabled.Store(false)
		d.log.Printf("upload: disabled, transfer verification failed: %v", err)
		return err
	}
	d.log.Printf("upload: transfer verified")
	return nil
}

// Enabled reports whether uploads are attempted.
func (d *Dispatcher) Enabled() bool {
	return d.enabled.Load()
}

// Upload transfers path, recorded for satellite code. Failures leave the
// file in place for a later retry and never trigger shutdown.
func (d *Dispatcher) Upload(ctx context.Context, path, code string) Outcome {
	if _, err := os.Stat(path); err != nil {
		d.log.Printf("upload: file not found for upload: %s", path)
		return Missing
	}
	if !d.enabled.Load() {
		d.log.Printf("upload: disabled, keeping %s", path)
		return Disabled
	}

	filename := filepath.Base(path)
	d.log.Printf("upload: uploading %s", path)

	start := time.Now()
	err := d.transfer.Copy(ctx, path)
	metrics.Upload(time.Since(start), err)
	if err != nil {
		d.log.Printf("upload: failed to upload %s: %s", filename, truncate(err.Error(), detailLen))
		return Failed
	}
	d.log.Printf("upload: uploaded %s", filename)

	if d.DeleteAfter {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			d.log.Printf("upload: failed to delete local file: %v", err)
		} else {
			d.log.Printf("upload: deleted local file %s", path)
		}
	}

	d.notify(fmt.Sprintf("UPLOAD_SUCCESS:%s:%s", code, filename))

	if !d.ShutdownAfter || d.Busy() {
		return Uploaded
	}

	d.log.Printf("upload: initiating shutdown after successful upload")
	d.notify("SHUTDOWN_INITIATED:Upload complete")
	d.sleep(d.Grace)
	if err := d.power.ScheduleShutdown("upload complete"); err != nil {
		d.log.Printf("upload: shutdown: %v", err)
	}
	return UploadedShutdown
}

func (d *Dispatcher) notify(line string) {
	if err := d.send.Send(line); err != nil {
		d.log.Printf("upload: send %q: %v", line, err)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
