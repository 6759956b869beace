// Package app wires together trackerd's HTTP server, WebSocket hub, and the
// scheduler loop. It owns the daemon's lifecycle and is the single source of
// truth for the current operating state.
package app

import (
	"context"
	"log"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/large-farva/passrelay/internal/broker"
	"github.com/large-farva/passrelay/internal/config"
	"github.com/large-farva/passrelay/internal/metrics"
	"github.com/large-farva/passrelay/internal/predict"
	"github.com/large-farva/passrelay/internal/schedule"
	"github.com/large-farva/passrelay/internal/scheduler"
	"github.com/large-farva/passrelay/internal/telemetry"
	"github.com/large-farva/passrelay/internal/tracker"
	"github.com/large-farva/passrelay/internal/ws"
)

// Options holds everything the App needs from the caller.
type Options struct {
	Logger     *log.Logger
	Cfg        config.Config
	ConfigPath string
	Bind       string

	Hub       *ws.Hub
	Scheduler *scheduler.Runner
	Holder    *schedule.Holder
	Tracker   *tracker.Tracker
	Broker    broker.Client
	// Store is nil in demo mode.
	Store *predict.TLEStore
}

// App is the top-level daemon process.
type App struct {
	log        *log.Logger
	cfg        config.Config
	configPath string
	bind       string
	server     *http.Server

	startedAt time.Time
	state     atomic.Value // current state string (BOOTING, IDLE, etc.)

	wsHub     *ws.Hub
	scheduler *scheduler.Runner
	holder    *schedule.Holder
	tracker   *tracker.Tracker
	broker    broker.Client
	store     *predict.TLEStore
	emitter   schedule.Emitter
}

// New creates an App in the BOOTING state. Call Run to start serving.
func New(opts Options) *App {
	hub := opts.Hub
	if hub == nil {
		hub = ws.NewHub()
	}
	b := opts.Broker
	if b == nil {
		b = broker.Disabled{}
	}
	a := &App{
		log:        opts.Logger,
		cfg:        opts.Cfg,
		configPath: opts.ConfigPath,
		bind:       opts.Bind,
		startedAt:  time.Now(),
		wsHub:      hub,
		scheduler:  opts.Scheduler,
		holder:     opts.Holder,
		tracker:    opts.Tracker,
		broker:     b,
		store:      opts.Store,
		emitter:    schedule.NewEmitter(opts.Cfg.Publish),
	}
	a.state.Store("BOOTING")
	return a
}

// Handler builds the HTTP routing table.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", a.handleHealthz)
	mux.HandleFunc("/api/status", a.handleStatus)
	mux.HandleFunc("/api/version", a.handleVersion)
	mux.HandleFunc("/api/satellites", a.handleSatellites)
	mux.HandleFunc("/api/config", a.handleConfig)
	mux.HandleFunc("/api/passes", a.handlePasses)
	mux.HandleFunc("/api/next-pass", a.handleNextPass)
	mux.HandleFunc("/api/schedule", a.handleSchedule)
	mux.HandleFunc("/api/tracked", a.handleTracked)
	mux.HandleFunc("/api/tle-info", a.handleTLEInfo)
	mux.HandleFunc("/api/predict", a.handlePredict)
	mux.HandleFunc("/api/tle-refresh", a.handleTLERefresh)
	mux.HandleFunc("/api/pause", a.handlePause)
	mux.HandleFunc("/api/resume", a.handleResume)
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/ws", a.wsHub.Handler())
	return metrics.Middleware(mux)
}

// Run starts the HTTP server, WebSocket hub, heartbeat ticker, and the
// scheduler loop. It blocks until the context is cancelled or the server
// returns an error.
func (a *App) Run(ctx context.Context) error {
	bind := a.bind
	if bind == "" && a.cfg.Server.Bind != "" {
		bind = a.cfg.Server.Bind
	}
	if bind == "" {
		bind = "0.0.0.0:8080"
	}

	a.server = &http.Server{
		Addr:              bind,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", bind)
	if err != nil {
		return err
	}

	a.log.Printf("listening on http://%s", bind)

	go a.wsHub.Run(ctx)
	a.transition("IDLE")
	go a.heartbeatLoop(ctx)
	go a.scheduler.Run(ctx, a.transition)

	go func() {
		<-ctx.Done()
		a.log.Printf("shutdown requested")
		_ = a.server.Shutdown(context.Background())
	}()

	if err := a.server.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// transition atomically updates the daemon state and broadcasts the change
// to all connected WebSocket clients.
func (a *App) transition(newState string) {
	old := a.state.Load().(string)
	if old == newState {
		return
	}
	a.state.Store(newState)

	a.wsHub.BroadcastJSON(telemetry.StateTransition{
		Event: telemetry.NewEvent(telemetry.EventState, "trackerd"),
		From:  old,
		To:    newState,
	})
}

// heartbeatLoop sends a periodic heartbeat event so clients can detect
// connectivity and track uptime without polling.
func (a *App) heartbeatLoop(ctx context.Context) {
	t := time.NewTicker(10 * time.Second)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.wsHub.BroadcastJSON(telemetry.Heartbeat{
				Event:         telemetry.NewEvent(telemetry.EventHeartbeat, "trackerd"),
				State:         a.state.Load().(string),
				UptimeSeconds: int64(time.Since(a.startedAt).Seconds()),
				BrokerOnline:  a.broker.IsConnected(),
			})
		}
	}
}

// RelayResponses subscribes to station and power-controller responses and
// forwards them to the log and the hub.
func (a *App) RelayResponses(topics broker.Topics) {
	relay := func(topic string, payload []byte) {
		a.log.Printf("broker: response on %s: %s", topic, payload)
		a.wsHub.BroadcastJSON(telemetry.Response{
			Event:   telemetry.NewEvent(telemetry.EventResponse, "broker"),
			Topic:   topic,
			Payload: string(payload),
		})
	}
	subs := []string{topics.Responses()}
	if topics.PowerControl != "" {
		subs = append(subs, topics.PowerStatus())
	}
	for _, topic := range subs {
		if err := a.broker.Subscribe(topic, relay); err != nil {
			a.log.Printf("broker: subscribe %s: %v", topic, err)
		}
	}
}
