package station

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/large-farva/passrelay/internal/broker"
)

// Link carries command lines in and response lines out. The serial port is
// the usual link; Bridge stands in when the station listens on the broker.
type Link interface {
	ReadLine(ctx context.Context) (string, error)
	Send(line string) error
	Close() error
}

// Serve announces readiness on link and answers each line until ctx is
// cancelled or the link fails.
func Serve(ctx context.Context, link Link, c *Controller, logger *log.Logger) error {
	if err := link.Send(TagReady); err != nil {
		return fmt.Errorf("send ready: %w", err)
	}
	logger.Printf("station: sent %q, waiting for commands", TagReady)

	for {
		line, err := link.ReadLine(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		if line == "" {
			continue
		}

		resp, err := c.Handle(ctx, line)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrStopped) {
				return nil
			}
			return err
		}
		if err := link.Send(resp); err != nil {
			logger.Printf("station: send response: %v", err)
		}
	}
}

// Bridge turns power_on messages from the broker into command lines and
// publishes responses on the station response topic.
type Bridge struct {
	client broker.Client
	topics broker.Topics
	log    *log.Logger
	lines  chan string
}

// NewBridge subscribes to the power control topic.
func NewBridge(client broker.Client, topics broker.Topics, logger *log.Logger) (*Bridge, error) {
	if topics.PowerControl == "" {
		return nil, errors.New("bridge needs mqtt.power_control_topic")
	}
	b := &Bridge{
		client: client,
		topics: topics,
		log:    logger,
		lines:  make(chan string, 16),
	}
	if err := client.Subscribe(topics.PowerControl, b.receive); err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", topics.PowerControl, err)
	}
	return b, nil
}

func (b *Bridge) receive(topic string, payload []byte) {
	var msg broker.PowerOn
	if err := json.Unmarshal(payload, &msg); err != nil {
		b.log.Printf("bridge: bad message on %s: %v", topic, err)
		return
	}
	if msg.Command != broker.CommandPowerOn {
		return
	}
	line, ok := bridgeLine(msg)
	if !ok {
		b.log.Printf("bridge: power_on without a station code (%s), ignoring", msg.Reason)
		return
	}

	select {
	case b.lines <- line:
	default:
		b.log.Printf("bridge: backlog full, dropping %q", line)
	}
}

// bridgeLine renders a power_on as "CODE:SECONDS", or just "CODE" when the
// duration is unknown.
func bridgeLine(msg broker.PowerOn) (string, bool) {
	if msg.Code <= 0 {
		return "", false
	}
	if msg.DurationEstimate <= 0 {
		return fmt.Sprint(msg.Code), true
	}
	return fmt.Sprintf("%d:%d", msg.Code, msg.DurationEstimate), true
}

func (b *Bridge) ReadLine(ctx context.Context) (string, error) {
	select {
	case line := <-b.lines:
		return line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (b *Bridge) Send(line string) error {
	return b.client.Publish(b.topics.StationResponse(), []byte(line))
}

func (b *Bridge) Close() error {
	b.client.Close()
	return nil
}
