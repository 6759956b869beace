// Package broker isolates publish/subscribe transport behind a narrow
// interface so the tracker and station logic can be tested without a real
// broker. The MQTT implementation handles reconnect, backoff, and the
// last-will "offline" announcement.
package broker

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotConnected is returned by Publish while the connection is down or the
// client has given up reconnecting.
var ErrNotConnected = errors.New("broker not connected")

// Handler receives one inbound message.
type Handler func(topic string, payload []byte)

// Publisher sends one message.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// Client is everything the rest of passrelay needs from a broker.
type Client interface {
	Publisher
	Subscribe(topic string, h Handler) error
	IsConnected() bool
	Close()
}

// PublishJSON marshals v and publishes it to topic.
func PublishJSON(c Publisher, topic string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", topic, err)
	}
	return c.Publish(topic, b)
}

// Topics derives every topic name from the configured prefix.
type Topics struct {
	Prefix       string
	PowerControl string
}

func (t Topics) Schedule() string { return t.Prefix + "schedule" }
func (t Topics) ScheduleBatch() string { return t.Prefix + "schedule/full/batch" }
func (t Topics) ScheduleComplete() string { return t.Prefix + "schedule/full/complete" }
func (t Topics) Command() string { return t.Prefix + "command" }
func (t Topics) Status() string { return t.Prefix + "status" }
func (t Topics) Responses() string { return t.Prefix + "response/#" }
func (t Topics) StationResponse() string { return t.Prefix + "response/station" }
func (t Topics) PowerStatus() string { return t.PowerControl + "/status" }

// StatusMessage is published on the status topic and registered as the
// last will.
type StatusMessage struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp"`
}

// NewStatus stamps a status message with the current time.
func NewStatus(status, message string) StatusMessage {
	return StatusMessage{Status: status, Message: message, Timestamp: time.Now().UTC().Format(time.RFC3339)}
}

// Disabled is the Client used when mqtt.enabled is false. Every publish
// reports ErrNotConnected so callers log it like any other outage.
type Disabled struct{}

func (Disabled) Publish(string, []byte) error { return ErrNotConnected }
func (Disabled) Subscribe(string, Handler) error { return nil }
func (Disabled) IsConnected() bool { return false }
func (Disabled) Close() {}
