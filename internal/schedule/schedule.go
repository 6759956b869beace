// Package schedule holds the current predicted pass list and turns it into
// size-bounded snapshots for publication. A Schedule is immutable once
// stored; each prediction cycle builds a new one and swaps it in whole.
package schedule

import (
	"sync/atomic"
	"time"

	"github.com/large-farva/passrelay/internal/predict"
)

// Schedule is one prediction cycle's output, ordered by rise time.
type Schedule struct {
	Passes    []predict.Pass
	Observer  predict.Observer
	Generated time.Time
}

// Next returns the first pass that has not yet risen at now.
func (s *Schedule) Next(now time.Time) (predict.Pass, bool) {
	for _, p := range s.Passes {
		if p.Rise.After(now) {
			return p, true
		}
	}
	return predict.Pass{}, false
}

// Upcoming returns every pass that has not yet set at now.
func (s *Schedule) Upcoming(now time.Time) []predict.Pass {
	for i, p := range s.Passes {
		if p.Set.After(now) {
			return s.Passes[i:]
		}
	}
	return nil
}

// Find looks up a pass by identifier.
func (s *Schedule) Find(id string) (predict.Pass, bool) {
	for _, p := range s.Passes {
		if p.ID == id {
			return p, true
		}
	}
	return predict.Pass{}, false
}

// Holder publishes the current Schedule to concurrent readers. The poll loop
// is the only writer.
type Holder struct {
	cur atomic.Pointer[Schedule]
}

var empty = &Schedule{}

// Load returns the current schedule, never nil.
func (h *Holder) Load() *Schedule {
	if s := h.cur.Load(); s != nil {
		return s
	}
	return empty
}

// Replace swaps in a new schedule.
func (h *Holder) Replace(s *Schedule) {
	h.cur.Store(s)
}
