// Package demo simulates orbital geometry so trackerd, passctl, and the
// station can be exercised end-to-end without TLE data, network access, or
// a radio. The synthetic passes cycle through real satellite names and
// frequencies with plausible elevations and durations, and are a pure
// function of time so re-prediction yields the same pass identifiers.
package demo

import (
	"context"
	"hash/fnv"
	"math/rand/v2"
	"time"

	"github.com/large-farva/passrelay/internal/catalog"
	"github.com/large-farva/passrelay/internal/predict"
)

// Names are the satellites the demo catalog advertises.
var Names = []string{"NOAA 15", "NOAA 18", "NOAA 19", "ISS (ZARYA)", "METEOR-M2 3"}

// Catalog returns a demo satellite set with elements stamped at now so
// they never look stale.
func Catalog(frequencies map[string]float64, now time.Time) []catalog.Satellite {
	sats := make([]catalog.Satellite, 0, len(Names))
	for i, name := range Names {
		sats = append(sats, catalog.Satellite{
			Name:      name,
			Category:  catalog.Categorize(name),
			Frequency: catalog.Frequency(name, frequencies),
			Mode:      catalog.Mode(name),
			Elements:  catalog.Elements{NoradID: 90000 + i, Epoch: now},
		})
	}
	return sats
}

// Source serves the demo catalog in place of fetched elements.
type Source struct {
	Frequencies map[string]float64
}

func (s Source) Satellites(_ context.Context, _ bool) ([]catalog.Satellite, error) {
	return Catalog(s.Frequencies, time.Now().UTC()), nil
}

// Query is a synthetic predict.OrbitQuery. Each satellite passes once per
// Interval, phase-shifted by a hash of its name.
type Query struct {
	Interval time.Duration
}

// New creates a demo query with passes every interval per satellite.
func New(interval time.Duration) *Query {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	return &Query{Interval: interval}
}

func (q *Query) NextPass(sat catalog.Satellite, _ predict.Observer, after time.Time) (predict.PassEvent, error) {
	seed := nameHash(sat.Name)
	phase := time.Duration(seed % uint64(q.Interval))

	// Slot k rises at phase + k*Interval since the Unix epoch.
	since := after.Sub(time.Unix(0, 0)) - phase
	k := int64(since / q.Interval)
	if since%q.Interval != 0 && since > 0 {
		k++
	}
	rise := time.Unix(0, 0).Add(phase + time.Duration(k)*q.Interval).UTC()

	// Plausible parameters, fixed per (satellite, slot).
	rng := rand.New(rand.NewPCG(seed, uint64(k)))
	maxElev := 10.0 + rng.Float64()*75.0
	dur := 6*time.Minute + time.Duration(rng.IntN(9*60))*time.Second
	peak := rise.Add(dur/2 + time.Duration(rng.IntN(30)-15)*time.Second)

	return predict.PassEvent{
		Rise:         rise,
		Peak:         peak,
		Set:          rise.Add(dur),
		MaxElevation: maxElev,
		RiseAzimuth:  rng.Float64() * 360,
		SetAzimuth:   rng.Float64() * 360,
	}, nil
}

func nameHash(name string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	return h.Sum64()
}
