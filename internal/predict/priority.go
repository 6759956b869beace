package predict

import (
	"math"
	"time"

	"github.com/large-farva/passrelay/internal/catalog"
	"github.com/large-farva/passrelay/internal/config"
)

// Scorer ranks a pass by how much it is worth capturing. Elevation and
// duration are each normalized onto 0..10, saturating at the configured
// thresholds, blended by weight, and scaled by a per-category multiplier.
type Scorer struct {
	ExcellentElevation float64
	LongPass           time.Duration
	ElevationWeight    float64
	DurationWeight     float64
	Multipliers        map[catalog.Category]float64
}

// NewScorer builds a Scorer from the [priority] config section.
func NewScorer(cfg config.PriorityConfig) Scorer {
	m := make(map[catalog.Category]float64, len(cfg.Multipliers))
	for k, v := range cfg.Multipliers {
		m[catalog.Category(k)] = v
	}
	return Scorer{
		ExcellentElevation: cfg.ExcellentElevation,
		LongPass:           time.Duration(cfg.LongPassMinutes * float64(time.Minute)),
		ElevationWeight:    cfg.ElevationWeight,
		DurationWeight:     cfg.DurationWeight,
		Multipliers:        m,
	}
}

const normCeiling = 10.0

// Score returns the priority of a pass, rounded to one decimal.
func (s Scorer) Score(elevation float64, duration time.Duration, cat catalog.Category) float64 {
	elev := normalize(elevation, s.ExcellentElevation)
	dur := normalize(duration.Seconds(), s.LongPass.Seconds())

	raw := (elev*s.ElevationWeight + dur*s.DurationWeight) * s.multiplier(cat)
	return math.Round(raw*10) / 10
}

// MaxScore is the upper bound of Score for this configuration.
func (s Scorer) MaxScore() float64 {
	best := 0.0
	for _, c := range catalog.Categories {
		best = math.Max(best, s.multiplier(c))
	}
	return math.Round(normCeiling*(s.ElevationWeight+s.DurationWeight)*best*10) / 10
}

func (s Scorer) multiplier(cat catalog.Category) float64 {
	if m, ok := s.Multipliers[cat]; ok {
		return m
	}
	return 1.0
}

// normalize maps v onto 0..10 where ceiling maps to 10.
func normalize(v, ceiling float64) float64 {
	if v <= 0 || ceiling <= 0 {
		return 0
	}
	return math.Min(normCeiling, v/(ceiling/normCeiling))
}
