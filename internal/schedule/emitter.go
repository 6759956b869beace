package schedule

import (
	"encoding/json"
	"time"

	"github.com/large-farva/passrelay/internal/config"
	"github.com/large-farva/passrelay/internal/predict"
)

// Entry is the reduced per-pass record that goes on the wire.
type Entry struct {
	ID           string  `json:"id"`
	Satellite    string  `json:"satellite"`
	Category     string  `json:"category"`
	RiseTime     string  `json:"rise_time"`
	SetTime      string  `json:"set_time"`
	MaxElevation float64 `json:"max_elevation"`
	Priority     float64 `json:"priority"`
}

// Location is the observer position carried in a snapshot.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Snapshot is the published schedule message.
type Snapshot struct {
	Passes      []Entry  `json:"passes"`
	TotalPasses int      `json:"total_passes"`
	Updated     string   `json:"updated"`
	Location    Location `json:"location"`
}

// Batch is one chunk of the full schedule.
type Batch struct {
	Batch        int     `json:"batch"`
	TotalBatches int     `json:"total_batches"`
	Data         []Entry `json:"data"`
}

// Completion closes a batched publication.
type Completion struct {
	Status       string `json:"status"`
	TotalItems   int    `json:"total_items"`
	TotalBatches int    `json:"total_batches"`
	Timestamp    string `json:"timestamp"`
}

// Emitter serializes schedules under a count and byte budget.
type Emitter struct {
	MaxPasses int
	MaxBytes  int
	BatchSize int
}

// NewEmitter builds an Emitter from the [publish] section.
func NewEmitter(cfg config.PublishConfig) Emitter {
	return Emitter{
		MaxPasses: cfg.MaxPasses,
		MaxBytes:  cfg.MaxPayloadBytes,
		BatchSize: cfg.BatchSize,
	}
}

// Encode returns the snapshot payload and the number of passes it carries.
// It keeps the soonest MaxPasses passes and then drops from the far end until
// the payload fits MaxBytes. It never fails on size: at worst the pass list
// is empty.
func (e Emitter) Encode(s *Schedule, now time.Time) ([]byte, int, error) {
	n := min(len(s.Passes), e.MaxPasses)
	entries := make([]Entry, 0, n)
	for _, p := range s.Passes[:n] {
		entries = append(entries, toEntry(p))
	}

	snap := Snapshot{
		Passes:      entries,
		TotalPasses: len(s.Passes),
		Updated:     now.UTC().Format(time.RFC3339),
		Location:    Location{Lat: s.Observer.Lat, Lon: s.Observer.Lon},
	}

	for {
		b, err := json.Marshal(snap)
		if err != nil {
			return nil, 0, err
		}
		if len(b) <= e.MaxBytes || len(snap.Passes) == 0 {
			return b, len(snap.Passes), nil
		}
		snap.Passes = snap.Passes[:len(snap.Passes)-1]
	}
}

// Batches splits the whole schedule into BatchSize chunks and returns them
// with the trailing completion record.
func (e Emitter) Batches(s *Schedule, now time.Time) ([]Batch, Completion) {
	size := max(e.BatchSize, 1)
	total := (len(s.Passes) + size - 1) / size

	batches := make([]Batch, 0, total)
	for i := 0; i < len(s.Passes); i += size {
		chunk := s.Passes[i:min(i+size, len(s.Passes))]
		data := make([]Entry, 0, len(chunk))
		for _, p := range chunk {
			data = append(data, toEntry(p))
		}
		batches = append(batches, Batch{Batch: i/size + 1, TotalBatches: total, Data: data})
	}

	return batches, Completion{
		Status:       "complete",
		TotalItems:   len(s.Passes),
		TotalBatches: total,
		Timestamp:    now.UTC().Format(time.RFC3339),
	}
}

func toEntry(p predict.Pass) Entry {
	return Entry{
		ID:           p.ID,
		Satellite:    p.Satellite,
		Category:     string(p.Category),
		RiseTime:     p.Rise.UTC().Format(time.RFC3339),
		SetTime:      p.Set.UTC().Format(time.RFC3339),
		MaxElevation: p.MaxElevation,
		Priority:     p.Priority,
	}
}
