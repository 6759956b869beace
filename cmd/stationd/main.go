// Stationd is the recording-side daemon. It reads numeric command lines
// from the power controller's serial link (or the broker bridge), runs the
// matching capture or system command, and uploads finished recordings.
// SIGINT or SIGTERM terminates any running capture before exit.
package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/large-farva/passrelay/internal/broker"
	"github.com/large-farva/passrelay/internal/capture"
	"github.com/large-farva/passrelay/internal/config"
	"github.com/large-farva/passrelay/internal/power"
	"github.com/large-farva/passrelay/internal/serialio"
	"github.com/large-farva/passrelay/internal/station"
	"github.com/large-farva/passrelay/internal/upload"
)

func main() {
	var (
		configPath = pflag.StringP("config", "c", "/etc/passrelay/passrelay.toml", "Path to config TOML")
		bind       = pflag.String("bind", "", "Status HTTP bind address (overrides server.station_bind)")
		port       = pflag.String("port", "", "Serial device (overrides link.port)")
		dryRun     = pflag.Bool("dry-run", false, "Log shutdown commands instead of running them")
	)
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if *port != "" {
		cfg.Link.Port = *port
	}
	if *dryRun {
		cfg.Power.DryRun = true
	}
	if *bind != "" {
		cfg.Server.StationBind = *bind
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
	logger := log.New(out, "stationd ", flags)

	table, err := station.TableFromConfig(cfg.Recorder.Commands)
	if err != nil {
		logger.Fatalf("command table: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	link, err := openLink(cfg, logger)
	if err != nil {
		logger.Fatalf("link: %v", err)
	}

	pc := power.New(cfg.Power, logger)
	uploads := upload.New(cfg.Upload, upload.NewRclone(cfg.Upload), pc, link, logger)
	_ = uploads.Verify(ctx)

	ctrl := station.NewController(cfg.Recorder, table, capture.NewShell(logger), pc, uploads, logger)
	uploads.Busy = ctrl.Busy

	loopDone := make(chan struct{})
	go func() {
		ctrl.Run(ctx)
		close(loopDone)
	}()

	srv := &http.Server{
		Addr:              cfg.Server.StationBind,
		Handler:           station.NewServer(ctrl, uploads.Enabled, cfg.Link.Mode).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	if srv.Addr != "" {
		go func() {
			logger.Printf("status listening on http://%s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Printf("status server: %v", err)
			}
		}()
	}

	var once sync.Once
	teardown := func() {
		once.Do(func() {
			stop()
			<-loopDone
			if !ctrl.Wait(time.Minute) {
				logger.Printf("uploads still running at exit")
			}
			_ = srv.Shutdown(context.Background())
			if err := link.Close(); err != nil {
				logger.Printf("close link: %v", err)
			}
			logger.Printf("stopped")
		})
	}
	defer teardown()

	if err := station.Serve(ctx, link, ctrl, logger); err != nil {
		logger.Printf("serve: %v", err)
	}
}

func openLink(cfg config.Config, logger *log.Logger) (station.Link, error) {
	switch cfg.Link.Mode {
	case "mqtt":
		topics := broker.Topics{Prefix: cfg.MQTT.TopicPrefix, PowerControl: cfg.MQTT.PowerControlTopic}
		b, err := station.NewBridge(broker.Dial(cfg.MQTT, topics, logger, nil), topics, logger)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		p, err := serialio.Open(cfg.Link, config.Seconds(cfg.Recorder.SettleDelaySeconds), logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}
