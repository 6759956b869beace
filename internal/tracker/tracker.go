// Package tracker decides when an upcoming pass is imminent and makes sure
// each pass is acted on at most once. Per-pass state lives only in memory;
// it is rebuilt from the schedule and the clock after a restart.
package tracker

import (
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/large-farva/passrelay/internal/config"
	"github.com/large-farva/passrelay/internal/metrics"
	"github.com/large-farva/passrelay/internal/predict"
	"github.com/large-farva/passrelay/internal/schedule"
	"github.com/large-farva/passrelay/internal/telemetry"
	"github.com/large-farva/passrelay/internal/ws"
)

// ErrUnknownPass is returned for operations on a pass that was never
// prepared.
var ErrUnknownPass = errors.New("pass not tracked")

// State is the lifecycle record of one prepared pass. Prepared is always
// true for a stored State; Completed only ever goes from false to true.
type State struct {
	PassID         string    `json:"pass_id"`
	Satellite      string    `json:"satellite"`
	Prepared       bool      `json:"prepared"`
	Notified       bool      `json:"notified"`
	Completed      bool      `json:"completed"`
	ScheduledStart time.Time `json:"scheduled_start"`
	ScheduledEnd   time.Time `json:"scheduled_end"`
	PreparedAt     time.Time `json:"prepared_at"`
	Rise           time.Time `json:"rise"`
}

// Notifier shows a local notification, e.g. on the operator's desktop.
type Notifier interface {
	Notify(title, body string) error
}

// Tracker walks the schedule on every poll and prepares the next pass once
// it is within the lead time.
type Tracker struct {
	hub      *ws.Hub
	log      *log.Logger
	dispatch *Dispatcher
	desktop  Notifier

	Lead      time.Duration
	PadBefore time.Duration
	PadAfter  time.Duration

	mu       sync.Mutex
	passes   map[string]*State
	lastNext string
}

// New builds a tracker from the [notify] section.
func New(hub *ws.Hub, cfg config.NotifyConfig, dispatch *Dispatcher, logger *log.Logger) *Tracker {
	dispatch.Allow = cfg.Satellites
	dispatch.Codes = cfg.Codes
	return &Tracker{
		hub:       hub,
		log:       logger,
		dispatch:  dispatch,
		Lead:      config.Seconds(cfg.LeadTimeSeconds),
		PadBefore: config.Seconds(cfg.PadBeforeSeconds),
		PadAfter:  config.Seconds(cfg.PadAfterSeconds),
		passes:    make(map[string]*State),
	}
}

// SetDesktop enables local notifications on prepare.
func (t *Tracker) SetDesktop(n Notifier) {
	t.desktop = n
}

// Poll checks whether the next pass in s is imminent at now. It returns the
// new State and true only on the poll that prepares a pass; every later poll
// for the same pass is a no-op.
func (t *Tracker) Poll(s *schedule.Schedule, now time.Time) (State, bool) {
	next, ok := s.Next(now)
	if !ok {
		return State{}, false
	}
	until := next.Rise.Sub(now)

	t.mu.Lock()
	if next.ID != t.lastNext {
		t.lastNext = next.ID
		t.log.Printf("tracker: next pass: %s (%s) in %.1f minutes", next.Satellite, next.Category, until.Minutes())
	}
	if until <= 0 || until >= t.Lead {
		t.mu.Unlock()
		return State{}, false
	}
	if _, seen := t.passes[next.ID]; seen {
		t.mu.Unlock()
		return State{}, false
	}

	st := &State{
		PassID:         next.ID,
		Satellite:      next.Satellite,
		Prepared:       true,
		ScheduledStart: next.Rise.Add(-t.PadBefore),
		ScheduledEnd:   next.Set.Add(t.PadAfter),
		PreparedAt:     now,
		Rise:           next.Rise,
	}
	t.passes[next.ID] = st
	t.mu.Unlock()

	t.log.Printf("tracker: preparing for pass %s in %.1f minutes", next.ID, until.Minutes())
	notified := t.dispatch.Dispatch(next, st.ScheduledStart, st.ScheduledEnd)

	t.mu.Lock()
	st.Notified = notified
	out := *st
	t.mu.Unlock()

	if notified {
		metrics.Notification("sent")
	} else {
		metrics.Notification("skipped")
	}
	t.announce(next, out)
	return out, true
}

func (t *Tracker) announce(p predict.Pass, st State) {
	t.hub.BroadcastJSON(telemetry.Prepared{
		Event:     telemetry.NewEvent(telemetry.EventPrepared, "tracker"),
		PassID:    st.PassID,
		Satellite: st.Satellite,
		Notified:  st.Notified,
		RiseTime:  p.Rise.UTC().Format(time.RFC3339),
	})

	if t.desktop != nil {
		body := fmt.Sprintf("%s rises at %s, max elevation %.0f°", p.Satellite, p.Rise.Local().Format("15:04:05"), p.MaxElevation)
		if err := t.desktop.Notify("Pass imminent", body); err != nil {
			t.log.Printf("tracker: desktop notification: %v", err)
		}
	}
}

// MarkCompleted records that a prepared pass has been captured.
func (t *Tracker) MarkCompleted(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.passes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPass, id)
	}
	st.Completed = true
	return nil
}

// Get returns the state of one pass.
func (t *Tracker) Get(id string) (State, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.passes[id]
	if !ok {
		return State{}, false
	}
	return *st, true
}

// States returns every tracked pass ordered by rise time.
func (t *Tracker) States() []State {
	t.mu.Lock()
	out := make([]State, 0, len(t.passes))
	for _, st := range t.passes {
		out = append(out, *st)
	}
	t.mu.Unlock()

	slices.SortFunc(out, func(a, b State) int { return a.Rise.Compare(b.Rise) })
	return out
}

// Prune forgets passes whose capture window ended more than keep ago. A
// pruned pass has already set, so it can never be the next pass again.
func (t *Tracker) Prune(now time.Time, keep time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for id, st := range t.passes {
		if now.Sub(st.ScheduledEnd) > keep {
			delete(t.passes, id)
			n++
		}
	}
	return n
}
