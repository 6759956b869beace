package broker

import (
	"crypto/rand"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/large-farva/passrelay/internal/config"
	"github.com/large-farva/passrelay/internal/metrics"
)

// MQTT is a Client backed by the Eclipse Paho client. Network processing
// runs on paho's own goroutines; nothing here blocks the caller beyond the
// configured publish timeout.
type MQTT struct {
	client  mqtt.Client
	log     *log.Logger
	qos     byte
	timeout time.Duration

	maxAttempts int
	maxDelay    time.Duration
	attempts    atomic.Int64
	gaveUp      atomic.Bool
	closed      chan struct{}
	closeOnce   sync.Once

	mu   sync.Mutex
	subs map[string]Handler

	onState func(connected bool, detail string)
}

// Dial configures the client and starts connecting in the background. It
// returns immediately; use IsConnected to observe the link. onState, when
// non-nil, is called on every connectivity change.
func Dial(cfg config.MQTTConfig, topics Topics, logger *log.Logger, onState func(connected bool, detail string)) *MQTT {
	m := &MQTT{
		log:         logger,
		onState:     onState,
		qos:         byte(cfg.QoS),
		timeout:     config.Seconds(cfg.PublishTimeoutSeconds),
		maxAttempts: cfg.MaxReconnects,
		maxDelay:    config.Seconds(cfg.MaxReconnectDelaySeconds),
		closed:      make(chan struct{}),
		subs:        make(map[string]Handler),
	}

	port := cfg.Port
	useTLS := cfg.TLS || strings.Contains(cfg.Broker, "shiftr.io")
	scheme := "tcp"
	if useTLS {
		scheme = "ssl"
		if port == 1883 {
			port = 8883
		}
	}
	server := fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker, port)

	clientID := cfg.ClientID + "_" + randomSuffix()
	will, _ := json.Marshal(NewStatus("offline", ""))

	opts := mqtt.NewClientOptions().
		AddBroker(server).
		SetClientID(clientID).
		SetCleanSession(true).
		SetKeepAlive(config.Seconds(cfg.KeepaliveSeconds)).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(config.Seconds(cfg.MaxReconnectDelaySeconds)).
		SetOrderMatters(false).
		SetWill(topics.Status(), string(will), byte(cfg.QoS), false).
		SetOnConnectHandler(m.onConnect).
		SetConnectionLostHandler(m.onConnectionLost).
		SetConnectionAttemptHandler(m.onAttempt)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	if useTLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	m.client = mqtt.NewClient(opts)
	logger.Printf("broker: connecting to %s as %s", server, clientID)
	go m.connectLoop(func() error {
		tok := m.client.Connect()
		tok.Wait()
		return tok.Error()
	}, m.wait)
	return m
}

// connectLoop retries the first connection with the same doubling backoff
// paho applies to reconnects. Once connected, paho's auto-reconnect takes
// over. It stops when the attempt limit is hit or the client is closed.
func (m *MQTT) connectLoop(connect func() error, wait func(time.Duration) bool) {
	delay := time.Second
	for attempt := 1; ; attempt++ {
		err := connect()
		if err == nil {
			return
		}
		if m.gaveUp.Load() {
			return
		}
		m.log.Printf("broker: connect attempt %d failed: %v, retrying in %s", attempt, err, delay)
		if !wait(delay) {
			return
		}
		delay = nextDelay(delay, m.maxDelay)
	}
}

func nextDelay(d, ceiling time.Duration) time.Duration {
	d *= 2
	if ceiling > 0 && d > ceiling {
		return ceiling
	}
	return d
}

func (m *MQTT) wait(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-m.closed:
		return false
	}
}

func randomSuffix() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func (m *MQTT) onAttempt(broker *url.URL, tlsCfg *tls.Config) *tls.Config {
	n := m.attempts.Add(1)
	if m.maxAttempts > 0 && n > int64(m.maxAttempts) && m.gaveUp.CompareAndSwap(false, true) {
		m.log.Printf("broker: giving up after %d connection attempts, continuing without notifications", n-1)
		m.notify(false, "reconnect limit reached")
		// Disconnect from a fresh goroutine; paho holds locks during the attempt callback.
		go m.client.Disconnect(0)
	}
	return tlsCfg
}

func (m *MQTT) onConnect(c mqtt.Client) {
	m.attempts.Store(0)
	m.log.Printf("broker: connected")
	metrics.BrokerConnected(true)
	m.notify(true, "connected")

	m.mu.Lock()
	subs := make(map[string]Handler, len(m.subs))
	for topic, h := range m.subs {
		subs[topic] = h
	}
	m.mu.Unlock()

	for topic, h := range subs {
		if tok := c.Subscribe(topic, m.qos, wrap(h)); tok.WaitTimeout(m.timeout) && tok.Error() != nil {
			m.log.Printf("broker: subscribe %s: %v", topic, tok.Error())
		}
	}
}

func (m *MQTT) onConnectionLost(_ mqtt.Client, err error) {
	m.log.Printf("broker: connection lost: %v", err)
	metrics.BrokerConnected(false)
	m.notify(false, err.Error())
}

func (m *MQTT) notify(connected bool, detail string) {
	if m.onState != nil {
		m.onState(connected, detail)
	}
}

func wrap(h Handler) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		h(msg.Topic(), msg.Payload())
	}
}

// Publish sends payload without retain. It fails fast with ErrNotConnected
// while the link is down and waits at most the publish timeout otherwise.
func (m *MQTT) Publish(topic string, payload []byte) error {
	if !m.IsConnected() {
		return ErrNotConnected
	}
	tok := m.client.Publish(topic, m.qos, false, payload)
	if !tok.WaitTimeout(m.timeout) {
		return fmt.Errorf("publish %s: timed out after %s", topic, m.timeout)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe registers h for topic. Subscriptions are replayed on every
// reconnect since sessions are clean.
func (m *MQTT) Subscribe(topic string, h Handler) error {
	m.mu.Lock()
	m.subs[topic] = h
	m.mu.Unlock()

	if !m.IsConnected() {
		return nil
	}
	tok := m.client.Subscribe(topic, m.qos, wrap(h))
	if !tok.WaitTimeout(m.timeout) {
		return fmt.Errorf("subscribe %s: timed out", topic)
	}
	return tok.Error()
}

// IsConnected reports whether the link is currently usable.
func (m *MQTT) IsConnected() bool {
	return !m.gaveUp.Load() && m.client.IsConnectionOpen()
}

// Degraded reports whether the client has stopped reconnecting.
func (m *MQTT) Degraded() bool {
	return m.gaveUp.Load()
}

// Close disconnects, letting in-flight work finish for a short while.
func (m *MQTT) Close() {
	m.closeOnce.Do(func() { close(m.closed) })
	m.client.Disconnect(250)
	metrics.BrokerConnected(false)
}
