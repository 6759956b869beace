// Trackerd is the prediction-side daemon. It predicts passes over the
// observer, publishes the schedule to the broker, signals the recording
// station ahead of each pass, and serves the HTTP/WebSocket API. Shutdown is
// handled gracefully on SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/large-farva/passrelay/internal/app"
	"github.com/large-farva/passrelay/internal/broker"
	"github.com/large-farva/passrelay/internal/catalog"
	"github.com/large-farva/passrelay/internal/config"
	"github.com/large-farva/passrelay/internal/demo"
	"github.com/large-farva/passrelay/internal/predict"
	"github.com/large-farva/passrelay/internal/schedule"
	"github.com/large-farva/passrelay/internal/scheduler"
	"github.com/large-farva/passrelay/internal/telemetry"
	"github.com/large-farva/passrelay/internal/tracker"
	"github.com/large-farva/passrelay/internal/ws"
)

func main() {
	var (
		configPath = pflag.StringP("config", "c", "/etc/passrelay/passrelay.toml", "Path to config TOML")
		bind       = pflag.String("bind", "", "HTTP bind address (overrides server.bind)")
		demoMode   = pflag.Bool("demo", false, "Use the synthetic orbit model instead of TLE data")
	)
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if *demoMode {
		cfg.Demo.Enabled = true
	}

	out := io.Writer(os.Stdout)
	if cfg.Logging.File != "" {
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatalf("open log file: %v", err)
		}
		defer f.Close()
		out = io.MultiWriter(os.Stdout, f)
	}
	flags := log.LstdFlags | log.Lmicroseconds
	if cfg.Logging.Level == "debug" {
		flags |= log.Lshortfile
	}
	logger := log.New(out, "trackerd ", flags)

	if err := os.MkdirAll(cfg.Data.Root, 0o755); err != nil {
		logger.Printf("data root %s: %v", cfg.Data.Root, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := ws.NewHub()
	topics := broker.Topics{Prefix: cfg.MQTT.TopicPrefix, PowerControl: cfg.MQTT.PowerControlTopic}

	var client broker.Client = broker.Disabled{}
	if cfg.MQTT.Enabled {
		client = broker.Dial(cfg.MQTT, topics, logger, func(connected bool, detail string) {
			hub.BroadcastJSON(telemetry.BrokerState{
				Event:     telemetry.NewEvent(telemetry.EventBroker, "broker"),
				Connected: connected,
				Detail:    detail,
			})
		})
	}
	defer client.Close()

	obsCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	observer := predict.ResolveObserver(obsCtx, cfg.Observer, logger)
	cancel()

	var (
		source scheduler.SatelliteSource
		query  predict.OrbitQuery
		store  *predict.TLEStore
	)
	if cfg.Demo.Enabled {
		logger.Printf("demo mode: synthetic passes every %d minutes", cfg.Demo.PassIntervalMinutes)
		source = demo.Source{Frequencies: cfg.Predict.Frequencies}
		query = demo.New(time.Duration(cfg.Demo.PassIntervalMinutes) * time.Minute)
	} else {
		store = predict.NewTLEStore(cfg.Predict.TLESources, cfg.Data.Root, cfg.Predict.TLERefreshHours)
		source = &predict.ElementCatalog{
			Store: store,
			Selection: catalog.Selection{
				Names:       cfg.Predict.Satellites,
				Categories:  cfg.Predict.Categories,
				Frequencies: cfg.Predict.Frequencies,
			},
		}
		query = predict.NewSGP4Query(time.Duration(cfg.Predict.LookaheadHours) * time.Hour)
	}

	holder := &schedule.Holder{}
	tr := tracker.New(hub, cfg.Notify, tracker.NewDispatcher(client, topics, logger), logger)
	if cfg.Notify.Desktop {
		tr.SetDesktop(tracker.NewDesktop("passrelay", ""))
	}

	runner := scheduler.New(hub, cfg, scheduler.Deps{
		Predictor: predict.NewPredictor(hub, cfg, query, logger),
		Source:    source,
		Holder:    holder,
		Tracker:   tr,
		Publisher: client,
		Observer:  observer,
	}, logger)

	a := app.New(app.Options{
		Logger:     logger,
		Cfg:        cfg,
		ConfigPath: *configPath,
		Bind:       *bind,
		Hub:        hub,
		Scheduler:  runner,
		Holder:     holder,
		Tracker:    tr,
		Broker:     client,
		Store:      store,
	})
	if cfg.MQTT.Enabled {
		a.RelayResponses(topics)
	}

	if err := a.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("trackerd failed: %v", err)
	}

	// Brief pause so the scheduler can publish its offline status.
	time.Sleep(250 * time.Millisecond)
}
