package tracker

import (
	"log"
	"slices"
	"time"

	"github.com/large-farva/passrelay/internal/broker"
	"github.com/large-farva/passrelay/internal/metrics"
	"github.com/large-farva/passrelay/internal/predict"
)

// Dispatcher decides whether an imminent pass is announced to the station
// and, if so, sends the power-on and schedule messages.
type Dispatcher struct {
	pub    broker.Publisher
	log    *log.Logger
	topics broker.Topics

	// Allow restricts notifications to these satellites. Empty notifies all.
	Allow []string
	// Codes maps satellite names to the station command code.
	Codes map[string]int
}

// NewDispatcher creates a dispatcher publishing through pub.
func NewDispatcher(pub broker.Publisher, topics broker.Topics, logger *log.Logger) *Dispatcher {
	return &Dispatcher{pub: pub, topics: topics, log: logger}
}

// Allowed reports whether satellite passes the allow-list.
func (d *Dispatcher) Allowed(satellite string) bool {
	return len(d.Allow) == 0 || slices.Contains(d.Allow, satellite)
}

// Dispatch announces p with the padded capture window [start, end]. It
// returns whether the satellite was allowed; publish failures are logged
// and never retried here.
func (d *Dispatcher) Dispatch(p predict.Pass, start, end time.Time) bool {
	if !d.Allowed(p.Satellite) {
		d.log.Printf("tracker: skipping notifications for %s (not in notification list)", p.Satellite)
		return false
	}

	d.log.Printf("tracker: sending notifications for %s pass", p.Satellite)

	if d.topics.PowerControl != "" {
		msg := broker.PowerOn{
			Command:          broker.CommandPowerOn,
			Reason:           "Preparing for " + p.Satellite + " pass",
			Code:             d.Codes[p.Satellite],
			ScheduledTime:    start.UTC().Format(time.RFC3339),
			DurationEstimate: int(p.Duration.Seconds()),
		}
		d.publish("power_on", d.topics.PowerControl, msg)
	}

	d.publish("schedule_pass", d.topics.Command(), broker.SchedulePass{
		Command: broker.CommandSchedulePass,
		Pass: broker.PassParams{
			ID:           p.ID,
			Satellite:    p.Satellite,
			Category:     string(p.Category),
			Frequency:    p.Frequency,
			Mode:         p.Mode,
			StartTime:    start.UTC().Format(time.RFC3339),
			EndTime:      end.UTC().Format(time.RFC3339),
			MaxElevation: p.MaxElevation,
			Duration:     p.Duration.Seconds(),
		},
	})
	return true
}

func (d *Dispatcher) publish(kind, topic string, v any) {
	err := broker.PublishJSON(d.pub, topic, v)
	metrics.Publish(kind, err)
	if err != nil {
		d.log.Printf("tracker: publish %s to %s: %v", kind, topic, err)
	}
}
