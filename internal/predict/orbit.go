package predict

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/akhenakh/sgp4"

	"github.com/large-farva/passrelay/internal/catalog"
)

// Observer is a fixed ground position.
type Observer struct {
	Lat float64 // degrees North
	Lon float64 // degrees East
	Alt float64 // meters above sea level
}

// PassEvent is the raw rise/peak/set geometry of one pass as reported by an
// OrbitQuery, before any filtering or scoring.
type PassEvent struct {
	Rise         time.Time
	Peak         time.Time
	Set          time.Time
	MaxElevation float64 // degrees
	RiseAzimuth  float64
	SetAzimuth   float64
}

// ErrNoPass is returned when no pass starts within the query's search window.
var ErrNoPass = errors.New("no pass found")

// OrbitQuery finds the next pass of a satellite over an observer that rises
// at or after a given instant.
type OrbitQuery interface {
	NextPass(sat catalog.Satellite, obs Observer, after time.Time) (PassEvent, error)
}

// passStepSeconds is the propagation step used when scanning for passes.
const passStepSeconds = 5

// SGP4Query answers NextPass by running SGP4 propagation over a search
// window. Each window is computed once per satellite and reused for the
// successive NextPass calls a prediction cycle makes; new elements or a new
// observer invalidate it.
type SGP4Query struct {
	// Window is how far past the query instant passes are searched for.
	Window time.Duration

	mu      sync.Mutex
	windows map[string]*passWindow
}

type passWindow struct {
	line1  string
	line2  string
	obs    Observer
	from   time.Time
	to     time.Time
	events []PassEvent
}

// NewSGP4Query returns a query that searches window-sized spans at a time.
func NewSGP4Query(window time.Duration) *SGP4Query {
	return &SGP4Query{
		Window:  window,
		windows: make(map[string]*passWindow),
	}
}

func (q *SGP4Query) NextPass(sat catalog.Satellite, obs Observer, after time.Time) (PassEvent, error) {
	q.mu.Lock()
	w := q.windows[sat.Name]
	q.mu.Unlock()

	if w != nil && w.reusable(sat, obs, after) {
		if ev, ok := w.next(after); ok {
			return ev, nil
		}
	}

	w, err := q.compute(sat, obs, after)
	if err != nil {
		return PassEvent{}, err
	}

	q.mu.Lock()
	q.windows[sat.Name] = w
	q.mu.Unlock()

	if ev, ok := w.next(after); ok {
		return ev, nil
	}
	return PassEvent{}, ErrNoPass
}

// reusable reports whether w was computed from the same elements and
// observer and still covers t.
func (w *passWindow) reusable(sat catalog.Satellite, obs Observer, t time.Time) bool {
	return w.line1 == sat.Elements.Line1 && w.line2 == sat.Elements.Line2 &&
		w.obs == obs && !t.Before(w.from) && t.Before(w.to)
}

// next returns the first event rising at or after t that closes before the
// window end; passes cut off by the window boundary are not trusted.
func (w *passWindow) next(t time.Time) (PassEvent, bool) {
	for _, ev := range w.events {
		if ev.Rise.Before(t) {
			continue
		}
		if !ev.Set.Before(w.to) {
			return PassEvent{}, false
		}
		return ev, true
	}
	return PassEvent{}, false
}

func (q *SGP4Query) compute(sat catalog.Satellite, obs Observer, from time.Time) (*passWindow, error) {
	tle, err := sgp4.ParseTLE(sat.Name + "\n" + sat.Elements.Line1 + "\n" + sat.Elements.Line2)
	if err != nil {
		return nil, fmt.Errorf("parse elements for %s: %w", sat.Name, err)
	}

	window := q.Window
	if window <= 0 {
		window = 48 * time.Hour
	}
	to := from.Add(window)

	raw, err := tle.GeneratePasses(obs.Lat, obs.Lon, obs.Alt, from, to, passStepSeconds)
	if err != nil {
		return nil, fmt.Errorf("propagate %s: %w", sat.Name, err)
	}

	w := &passWindow{line1: sat.Elements.Line1, line2: sat.Elements.Line2, obs: obs, from: from, to: to}
	for _, rp := range raw {
		w.events = append(w.events, PassEvent{
			Rise:         rp.AOS,
			Peak:         rp.MaxElevationTime,
			Set:          rp.LOS,
			MaxElevation: rp.MaxElevation,
			RiseAzimuth:  rp.AOSAzimuth,
			SetAzimuth:   rp.LOSAzimuth,
		})
	}
	return w, nil
}
