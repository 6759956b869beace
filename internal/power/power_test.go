package power

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/large-farva/passrelay/internal/config"
)

func TestDryRunOnlyLogs(t *testing.T) {
	var buf bytes.Buffer
	marker := filepath.Join(t.TempDir(), "ran")
	s := New(config.PowerConfig{ShutdownCommand: "touch " + marker, DryRun: true}, log.New(&buf, "", 0))

	if err := s.PowerDown("test"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(marker); err == nil {
		t.Error("dry run executed the command")
	}
	if !strings.Contains(buf.String(), "dry run") {
		t.Errorf("log = %q", buf.String())
	}
	if h := s.History(); len(h) != 1 || h[0] != "touch "+marker {
		t.Errorf("history = %v", h)
	}
}

func TestScheduleShutdownRunsDelayedCommand(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "delayed")
	s := New(config.PowerConfig{
		ShutdownCommand:        "false",
		DelayedShutdownCommand: "touch " + marker,
	}, log.New(&bytes.Buffer{}, "", 0))

	if err := s.ScheduleShutdown("upload complete"); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := os.Stat(marker); err == nil {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("delayed shutdown command never ran")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestMissingCommand(t *testing.T) {
	s := New(config.PowerConfig{}, log.New(&bytes.Buffer{}, "", 0))
	if err := s.PowerDown("x"); err == nil {
		t.Error("expected an error without a configured command")
	}
}
