// Package power powers the recording station down.
package power

import (
	"errors"
	"fmt"
	"log"
	"os/exec"
	"sync"

	"github.com/large-farva/passrelay/internal/config"
)

// Controller is what the station asks to power the host down.
type Controller interface {
	// PowerDown shuts the station down now.
	PowerDown(reason string) error
	// ScheduleShutdown shuts the station down after the host's own delay,
	// leaving the power controller time to react.
	ScheduleShutdown(reason string) error
}

// Shell runs the configured shutdown command lines. With DryRun set it only
// logs what it would run.
type Shell struct {
	Now     string
	Delayed string
	DryRun  bool
	Log     *log.Logger

	mu      sync.Mutex
	history []string
}

// New builds a Shell from the [power] section.
func New(cfg config.PowerConfig, logger *log.Logger) *Shell {
	return &Shell{
		Now:     cfg.ShutdownCommand,
		Delayed: cfg.DelayedShutdownCommand,
		DryRun:  cfg.DryRun,
		Log:     logger,
	}
}

func (s *Shell) PowerDown(reason string) error {
	return s.run(s.Now, reason)
}

func (s *Shell) ScheduleShutdown(reason string) error {
	return s.run(s.Delayed, reason)
}

// History returns every command line requested so far, including dry runs.
func (s *Shell) History() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.history...)
}

// run starts cmdline without waiting for it; a shutdown command may never
// return control to us.
func (s *Shell) run(cmdline, reason string) error {
	s.mu.Lock()
	s.history = append(s.history, cmdline)
	s.mu.Unlock()

	if cmdline == "" {
		return errors.New("no shutdown command configured")
	}
	if s.DryRun {
		s.Log.Printf("power: dry run, would execute %q (%s)", cmdline, reason)
		return nil
	}

	s.Log.Printf("power: executing %q (%s)", cmdline, reason)
	cmd := exec.Command("sh", "-c", cmdline)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start shutdown: %w", err)
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			s.Log.Printf("power: %q: %v", cmdline, err)
		}
	}()
	return nil
}
