package predict

import (
	"testing"
	"time"

	"github.com/large-farva/passrelay/internal/catalog"
	"github.com/large-farva/passrelay/internal/config"
)

func defaultScorer() Scorer {
	return NewScorer(config.Default().Priority)
}

func TestScore(t *testing.T) {
	s := defaultScorer()
	tests := []struct {
		name string
		elev float64
		dur  time.Duration
		cat  catalog.Category
		want float64
	}{
		{"perfect weather pass", 90, 20 * time.Minute, catalog.CategoryWeather, 12.0},
		{"saturates above ceilings", 120, time.Hour, catalog.CategoryWeather, 12.0},
		{"perfect polar pass", 90, 20 * time.Minute, catalog.CategoryPolar, 15.0},
		{"half of both, amateur", 45, 10 * time.Minute, catalog.CategoryAmateur, 5.0},
		{"negative inputs clamp", -10, -time.Minute, catalog.CategoryStation, 0},
		{"unknown category uses 1.0", 90, 20 * time.Minute, catalog.Category("mystery"), 10.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Score(tt.elev, tt.dur, tt.cat); got != tt.want {
				t.Errorf("Score = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScoreMonotonic(t *testing.T) {
	s := defaultScorer()
	for _, cat := range catalog.Categories {
		prev := -1.0
		for elev := 0.0; elev <= 100; elev += 0.5 {
			got := s.Score(elev, 8*time.Minute, cat)
			if got < prev {
				t.Fatalf("%s: score fell from %.1f to %.1f at elev %.1f", cat, prev, got, elev)
			}
			prev = got
		}

		prev = -1.0
		for dur := time.Duration(0); dur <= 30*time.Minute; dur += 7 * time.Second {
			got := s.Score(35, dur, cat)
			if got < prev {
				t.Fatalf("%s: score fell from %.1f to %.1f at dur %v", cat, prev, got, dur)
			}
			prev = got
		}
	}
}

func TestMaxScore(t *testing.T) {
	s := defaultScorer()
	if got := s.MaxScore(); got != 15.0 {
		t.Errorf("MaxScore = %v, want 15.0", got)
	}
	for _, cat := range catalog.Categories {
		if got := s.Score(90, time.Hour, cat); got > s.MaxScore() {
			t.Errorf("%s: score %v exceeds MaxScore", cat, got)
		}
	}
}
