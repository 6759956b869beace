// Package telemetry defines the typed event structs that flow over the
// WebSocket connection between trackerd and its clients. passctl decodes the
// same structs when watching, so the schema lives in one place.
package telemetry

import "time"

// EventType identifies the kind of WebSocket event.
type EventType string

const (
	EventHeartbeat EventType = "heartbeat"
	EventState     EventType = "state"
	EventLog       EventType = "log"
	EventSchedule  EventType = "schedule"
	EventPrepared  EventType = "prepared"
	EventResponse  EventType = "response"
	EventBroker    EventType = "broker"
)

// Event is the base envelope shared by every event type.
type Event struct {
	Type      EventType `json:"type"`
	TS        string    `json:"ts"`
	Component string    `json:"component,omitempty"`
}

// NewEvent stamps an envelope with the current time.
func NewEvent(t EventType, component string) Event {
	return Event{Type: t, TS: NowTS(), Component: component}
}

// NowTS returns the current UTC time as an RFC 3339 nano string, matching the
// timestamp format used across all events.
func NowTS() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// Heartbeat is sent periodically so clients can detect connectivity and
// monitor daemon uptime.
type Heartbeat struct {
	Event
	State         string `json:"state"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	BrokerOnline  bool   `json:"broker_online"`
}

// StateTransition is emitted whenever the tracker loop changes state
// (e.g. IDLE -> PREDICTING).
type StateTransition struct {
	Event
	From string `json:"from"`
	To   string `json:"to"`
}

// LogLine carries a human-readable log message at a severity level.
type LogLine struct {
	Event
	Level   string `json:"level"`
	Message string `json:"message"`
}

// ScheduleUpdate announces a freshly predicted schedule.
type ScheduleUpdate struct {
	Event
	Passes int    `json:"passes"`
	Next   string `json:"next,omitempty"`
}

// Prepared is emitted when a pass crosses the imminent threshold.
type Prepared struct {
	Event
	PassID    string `json:"pass_id"`
	Satellite string `json:"satellite"`
	Notified  bool   `json:"notified"`
	RiseTime  string `json:"rise_time"`
}

// Response relays a message the station or power controller published
// back over the broker.
type Response struct {
	Event
	Topic   string `json:"topic"`
	Payload string `json:"payload"`
}

// BrokerState reports broker connectivity changes.
type BrokerState struct {
	Event
	Connected bool   `json:"connected"`
	Detail    string `json:"detail,omitempty"`
}
