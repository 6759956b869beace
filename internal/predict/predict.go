// Package predict computes upcoming satellite passes for a ground station.
// It walks an OrbitQuery forward across the lookahead horizon for every
// tracked satellite, filters passes by elevation and duration, scores them,
// and returns a single rise-ordered schedule. TLE fetching and station
// location resolution (static config or gpsd) live here too.
package predict

import (
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	"github.com/large-farva/passrelay/internal/catalog"
	"github.com/large-farva/passrelay/internal/config"
	"github.com/large-farva/passrelay/internal/ws"
)

// Pass describes a single predicted overhead pass, from rise (AOS) to set
// (LOS). ID is stable across re-predictions of the same physical pass.
type Pass struct {
	ID           string
	Satellite    string
	Category     catalog.Category
	Frequency    float64
	Mode         string
	Rise         time.Time
	Peak         time.Time
	Set          time.Time
	MaxElevation float64
	RiseAzimuth  float64
	SetAzimuth   float64
	Duration     time.Duration
	Priority     float64
}

// PassID builds the deterministic identifier for a pass.
func PassID(satellite string, rise time.Time) string {
	return satellite + "_" + rise.UTC().Format("20060102_150405")
}

// ErrStaleElements marks a satellite skipped because its elements are too
// old to propagate with useful accuracy.
var ErrStaleElements = errors.New("orbital elements are stale")

// cursorStep is how far past a pass's set time the next query starts.
const cursorStep = time.Minute

// Predictor turns a satellite catalog into a schedule of usable passes.
type Predictor struct {
	hub   *ws.Hub
	log   *log.Logger
	query OrbitQuery
	score Scorer

	Horizon       time.Duration
	MinElevation  float64
	MinDuration   time.Duration
	MaxElementAge time.Duration
}

// NewPredictor wires a predictor from the [predict] and [priority] sections.
func NewPredictor(hub *ws.Hub, cfg config.Config, query OrbitQuery, logger *log.Logger) *Predictor {
	return &Predictor{
		hub:           hub,
		log:           logger,
		query:         query,
		score:         NewScorer(cfg.Priority),
		Horizon:       time.Duration(cfg.Predict.LookaheadHours) * time.Hour,
		MinElevation:  cfg.Predict.MinElevation,
		MinDuration:   config.Seconds(cfg.Predict.MinDurationSeconds),
		MaxElementAge: time.Duration(cfg.Predict.MaxElementAgeDays) * 24 * time.Hour,
	}
}

// Predict returns every pass in [now, now+Horizon) that clears both quality
// thresholds, sorted by rise time. A satellite that cannot be propagated is
// logged and skipped; the others still contribute.
func (p *Predictor) Predict(sats []catalog.Satellite, obs Observer, now time.Time) []Pass {
	end := now.Add(p.Horizon)

	var all []Pass
	for _, sat := range sats {
		passes, err := p.satellitePasses(sat, obs, now, end)
		if err != nil {
			p.log.Printf("predict: skipping %s: %v", sat.Name, err)
			p.hub.Log("predict", "warn", fmt.Sprintf("skipping %s: %v", sat.Name, err))
			continue
		}
		if len(passes) > 0 {
			p.log.Printf("predict: %s: %d passes", sat.Name, len(passes))
		}
		all = append(all, passes...)
	}

	slices.SortStableFunc(all, func(a, b Pass) int {
		if c := a.Rise.Compare(b.Rise); c != 0 {
			return c
		}
		return strings.Compare(a.Satellite, b.Satellite)
	})

	p.hub.Log("predict", "info", fmt.Sprintf("found %d passes in next %s", len(all), p.Horizon))

	return all
}

func (p *Predictor) satellitePasses(sat catalog.Satellite, obs Observer, now, end time.Time) ([]Pass, error) {
	if p.MaxElementAge > 0 && sat.Elements.Age(now) > p.MaxElementAge {
		return nil, fmt.Errorf("%w: epoch %s", ErrStaleElements, sat.Elements.Epoch.Format(time.DateOnly))
	}

	var passes []Pass
	for cursor := now; cursor.Before(end); {
		ev, err := p.query.NextPass(sat, obs, cursor)
		if errors.Is(err, ErrNoPass) {
			break
		}
		if err != nil {
			return passes, err
		}
		if !ev.Set.Before(end) {
			break
		}
		if !ev.Rise.Before(ev.Peak) || !ev.Peak.Before(ev.Set) {
			p.log.Printf("predict: %s: dropping malformed pass rise=%s peak=%s set=%s",
				sat.Name, ev.Rise.Format(time.RFC3339), ev.Peak.Format(time.RFC3339), ev.Set.Format(time.RFC3339))
		} else if pass, ok := p.accept(sat, ev); ok {
			passes = append(passes, pass)
		}

		next := ev.Set.Add(cursorStep)
		if !next.After(cursor) {
			// A query that does not move forward would spin forever.
			return passes, fmt.Errorf("orbit query did not advance past %s", cursor.Format(time.RFC3339))
		}
		cursor = next
	}
	return passes, nil
}

// accept applies the elevation and duration thresholds and scores the pass.
func (p *Predictor) accept(sat catalog.Satellite, ev PassEvent) (Pass, bool) {
	dur := ev.Set.Sub(ev.Rise)
	if ev.MaxElevation <= p.MinElevation || dur <= p.MinDuration {
		return Pass{}, false
	}
	return Pass{
		ID:           PassID(sat.Name, ev.Rise),
		Satellite:    sat.Name,
		Category:     sat.Category,
		Frequency:    sat.Frequency,
		Mode:         sat.Mode,
		Rise:         ev.Rise,
		Peak:         ev.Peak,
		Set:          ev.Set,
		MaxElevation: ev.MaxElevation,
		RiseAzimuth:  ev.RiseAzimuth,
		SetAzimuth:   ev.SetAzimuth,
		Duration:     dur,
		Priority:     p.score.Score(ev.MaxElevation, dur, sat.Category),
	}, true
}
