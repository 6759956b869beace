// Package scheduler runs trackerd's single cooperative loop: a fast poll
// that asks the tracker whether the next pass is imminent, periodic
// re-prediction and element refresh, and commands from the HTTP API. The
// broker runs on its own goroutines; nothing here waits on it for longer
// than a publish timeout.
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/large-farva/passrelay/internal/broker"
	"github.com/large-farva/passrelay/internal/catalog"
	"github.com/large-farva/passrelay/internal/config"
	"github.com/large-farva/passrelay/internal/metrics"
	"github.com/large-farva/passrelay/internal/predict"
	"github.com/large-farva/passrelay/internal/schedule"
	"github.com/large-farva/passrelay/internal/telemetry"
	"github.com/large-farva/passrelay/internal/tracker"
	"github.com/large-farva/passrelay/internal/ws"
)

// Loop states reported through setState.
const (
	StateIdle       = "IDLE"
	StateRefreshing = "REFRESHING"
	StatePredicting = "PREDICTING"
	StateTracking   = "TRACKING"
	StatePaused     = "PAUSED"
)

// Command represents an external command sent to the scheduler via its
// Commands channel. The Reply channel receives exactly one result.
type Command struct {
	Type    string
	Payload json.RawMessage
	Reply   chan<- CommandResult
}

// CommandResult is the response sent back through a Command's Reply channel.
type CommandResult struct {
	OK                bool   `json:"ok"`
	Message           string `json:"message,omitempty"`
	Error             string `json:"error,omitempty"`
	SatellitesUpdated int    `json:"satellites_updated,omitempty"`
	Passes            int    `json:"passes,omitempty"`
}

// SatelliteSource supplies the tracked satellite set.
type SatelliteSource interface {
	Satellites(ctx context.Context, refresh bool) ([]catalog.Satellite, error)
}

// exhaustedBackoff bounds how often an empty schedule triggers re-prediction.
const exhaustedBackoff = 5 * time.Minute

// prunePasses is how long tracked passes are kept after their window ends.
const prunePasses = 24 * time.Hour

// Runner owns the tracker loop.
type Runner struct {
	Hub *ws.Hub
	Cfg config.Config
	Log *log.Logger

	// Commands receives external commands from HTTP handlers.
	Commands chan Command

	predictor *predict.Predictor
	source    SatelliteSource
	holder    *schedule.Holder
	tracker   *tracker.Tracker
	emitter   schedule.Emitter
	pub       broker.Publisher
	topics    broker.Topics

	paused atomic.Bool

	mu          sync.RWMutex
	sats        []catalog.Satellite
	observer    predict.Observer
	lastPredict time.Time
	lastRefresh time.Time
	lastError   string

	// Now is the loop's clock.
	Now func() time.Time
}

// Deps groups the collaborators the loop drives.
type Deps struct {
	Predictor *predict.Predictor
	Source    SatelliteSource
	Holder    *schedule.Holder
	Tracker   *tracker.Tracker
	Publisher broker.Publisher
	Observer  predict.Observer
}

// New creates a scheduler over the given collaborators.
func New(hub *ws.Hub, cfg config.Config, deps Deps, logger *log.Logger) *Runner {
	return &Runner{
		Hub:       hub,
		Cfg:       cfg,
		Log:       logger,
		Commands:  make(chan Command, 4),
		predictor: deps.Predictor,
		source:    deps.Source,
		holder:    deps.Holder,
		tracker:   deps.Tracker,
		emitter:   schedule.NewEmitter(cfg.Publish),
		pub:       deps.Publisher,
		topics:    broker.Topics{Prefix: cfg.MQTT.TopicPrefix, PowerControl: cfg.MQTT.PowerControlTopic},
		observer:  deps.Observer,
		Now:       func() time.Time { return time.Now().UTC() },
	}
}

// IsPaused reports whether notifications are paused.
func (r *Runner) IsPaused() bool {
	return r.paused.Load()
}

// Satellites returns the currently tracked satellite set.
func (r *Runner) Satellites() []catalog.Satellite {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sats
}

// Observer returns the station position predictions are made for.
func (r *Runner) Observer() predict.Observer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.observer
}

// Status summarizes loop timing for the status endpoint.
type Status struct {
	Paused      bool   `json:"paused"`
	Satellites  int    `json:"satellites"`
	LastPredict string `json:"last_predict,omitempty"`
	LastRefresh string `json:"last_refresh,omitempty"`
	LastError   string `json:"last_error,omitempty"`
}

// Status returns a snapshot of loop bookkeeping.
func (r *Runner) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st := Status{Paused: r.paused.Load(), Satellites: len(r.sats), LastError: r.lastError}
	if !r.lastPredict.IsZero() {
		st.LastPredict = r.lastPredict.Format(time.RFC3339)
	}
	if !r.lastRefresh.IsZero() {
		st.LastRefresh = r.lastRefresh.Format(time.RFC3339)
	}
	return st
}

// Run is the main loop.
//
// Lifecycle:
//  1. Load satellites and predict (REFRESHING, PREDICTING)
//  2. Every check interval, poll the tracker for an imminent pass (TRACKING)
//  3. Refresh elements every tle_refresh_hours, then re-predict
//  4. Re-predict every repredict_hours, or early when no future pass remains
func (r *Runner) Run(ctx context.Context, setState func(string)) {
	r.Hub.Log("scheduler", "info", "scheduler started")
	r.publishStatus("online", "")

	r.refresh(ctx, false, setState)
	r.predict(setState)
	r.poll()

	tick := time.NewTicker(config.Seconds(r.Cfg.Predict.CheckIntervalSeconds))
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			r.publishStatus("offline", "")
			return
		case cmd := <-r.Commands:
			r.handleCommand(ctx, cmd, setState)
		case <-tick.C:
			r.step(ctx, setState)
		}
	}
}

// step is one tick of the loop.
func (r *Runner) step(ctx context.Context, setState func(string)) {
	now := r.Now()

	r.mu.RLock()
	sinceRefresh := now.Sub(r.lastRefresh)
	sincePredict := now.Sub(r.lastPredict)
	r.mu.RUnlock()

	switch {
	case sinceRefresh > time.Duration(r.Cfg.Predict.TLERefreshHours)*time.Hour:
		r.Log.Printf("scheduler: performing periodic element refresh")
		r.refresh(ctx, true, setState)
		r.predict(setState)
	case sincePredict > time.Duration(r.Cfg.Predict.RepredictHours)*time.Hour:
		r.predict(setState)
	case r.exhausted(now) && sincePredict > exhaustedBackoff:
		r.Log.Printf("scheduler: no future passes, re-predicting")
		r.predict(setState)
	}

	r.poll()
}

func (r *Runner) exhausted(now time.Time) bool {
	_, ok := r.holder.Load().Next(now)
	return !ok
}

// poll runs the imminent-pass check unless paused.
func (r *Runner) poll() {
	if r.paused.Load() {
		return
	}
	if st, ok := r.tracker.Poll(r.holder.Load(), r.Now()); ok {
		r.Hub.Log("scheduler", "info", fmt.Sprintf("prepared %s (notified: %t)", st.PassID, st.Notified))
	}
}

// refresh reloads the satellite set. On failure the previous set is kept.
func (r *Runner) refresh(ctx context.Context, force bool, setState func(string)) (int, error) {
	setState(StateRefreshing)
	defer r.settle(setState)

	sats, err := r.source.Satellites(ctx, force)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastRefresh = r.Now()
	if err != nil {
		r.lastError = "element refresh: " + err.Error()
		r.Log.Printf("scheduler: element refresh failed: %v", err)
		r.Hub.Log("scheduler", "error", "element refresh failed: "+err.Error())
		r.publishStatus("error", r.lastError)
		return 0, err
	}
	r.sats = sats
	r.lastError = ""
	r.Log.Printf("scheduler: tracking %d satellites", len(sats))
	return len(sats), nil
}

// predict recomputes the schedule and swaps it in whole.
func (r *Runner) predict(setState func(string)) int {
	setState(StatePredicting)
	defer r.settle(setState)

	r.mu.RLock()
	sats, obs := r.sats, r.observer
	r.mu.RUnlock()

	now := r.Now()
	start := time.Now()
	passes := r.predictor.Predict(sats, obs, now)
	metrics.ObservePrediction(time.Since(start), len(passes))

	s := &schedule.Schedule{Passes: passes, Observer: obs, Generated: now}
	r.holder.Replace(s)

	r.mu.Lock()
	r.lastPredict = now
	r.mu.Unlock()

	if n := r.tracker.Prune(now, prunePasses); n > 0 {
		r.Log.Printf("scheduler: pruned %d finished passes", n)
	}

	r.Log.Printf("scheduler: found %d passes for the next %d hours", len(passes), r.Cfg.Predict.LookaheadHours)
	update := telemetry.ScheduleUpdate{Event: telemetry.NewEvent(telemetry.EventSchedule, "scheduler"), Passes: len(passes)}
	if next, ok := s.Next(now); ok {
		update.Next = next.ID
	}
	r.Hub.BroadcastJSON(update)

	r.publishSchedule(s, now)
	return len(passes)
}

func (r *Runner) publishSchedule(s *schedule.Schedule, now time.Time) {
	payload, n, err := r.emitter.Encode(s, now)
	if err != nil {
		r.Log.Printf("scheduler: encode schedule: %v", err)
		return
	}
	if n < min(len(s.Passes), r.emitter.MaxPasses) {
		r.Log.Printf("scheduler: schedule truncated to %d passes to fit %d bytes", n, r.emitter.MaxBytes)
	}
	err = r.pub.Publish(r.topics.Schedule(), payload)
	metrics.Publish("schedule", err)
	if err != nil {
		r.Log.Printf("scheduler: publish schedule: %v", err)
		return
	}

	if r.Cfg.Publish.FullSchedule {
		batches, done := r.emitter.Batches(s, now)
		go r.publishBatches(batches, done)
	}
}

// publishBatches sends the full schedule off the loop, pacing batches so
// the broker is not flooded.
func (r *Runner) publishBatches(batches []schedule.Batch, done schedule.Completion) {
	r.Log.Printf("scheduler: publishing %d passes in %d batches", done.TotalItems, done.TotalBatches)
	for _, b := range batches {
		if err := broker.PublishJSON(r.pub, r.topics.ScheduleBatch(), b); err != nil {
			r.Log.Printf("scheduler: batch %d/%d: %v", b.Batch, b.TotalBatches, err)
			return
		}
		time.Sleep(500 * time.Millisecond)
	}
	if err := broker.PublishJSON(r.pub, r.topics.ScheduleComplete(), done); err != nil {
		r.Log.Printf("scheduler: batch completion: %v", err)
	}
}

func (r *Runner) publishStatus(status, message string) {
	err := broker.PublishJSON(r.pub, r.topics.Status(), broker.NewStatus(status, message))
	if err != nil && !errors.Is(err, broker.ErrNotConnected) {
		r.Log.Printf("scheduler: publish status: %v", err)
	}
}

func (r *Runner) settle(setState func(string)) {
	if r.paused.Load() {
		setState(StatePaused)
	} else {
		setState(StateTracking)
	}
}

// handleCommand dispatches an incoming command to the appropriate handler.
func (r *Runner) handleCommand(ctx context.Context, cmd Command, setState func(string)) {
	switch cmd.Type {
	case "predict":
		n := r.predict(setState)
		r.poll()
		cmd.Reply <- CommandResult{OK: true, Message: fmt.Sprintf("schedule recomputed, %d passes", n), Passes: n}
	case "tle_refresh":
		r.handleTLERefreshCommand(ctx, cmd, setState)
	case "pause":
		r.handlePauseCommand(cmd, setState)
	case "resume":
		r.handleResumeCommand(cmd, setState)
	case "complete":
		r.handleCompleteCommand(cmd)
	default:
		cmd.Reply <- CommandResult{OK: false, Error: "unknown command: " + cmd.Type}
	}
}

// handleTLERefreshCommand forces an element refresh and re-predicts.
func (r *Runner) handleTLERefreshCommand(ctx context.Context, cmd Command, setState func(string)) {
	n, err := r.refresh(ctx, true, setState)
	if err != nil {
		cmd.Reply <- CommandResult{OK: false, Error: "TLE refresh failed: " + err.Error()}
		return
	}
	passes := r.predict(setState)

	msg := fmt.Sprintf("TLE data refreshed, %d satellites updated", n)
	r.Hub.Log("scheduler", "info", msg)
	cmd.Reply <- CommandResult{OK: true, Message: msg, SatellitesUpdated: n, Passes: passes}
}

func (r *Runner) handlePauseCommand(cmd Command, setState func(string)) {
	if r.paused.Load() {
		cmd.Reply <- CommandResult{OK: true, Message: "scheduler already paused"}
		return
	}
	r.paused.Store(true)
	setState(StatePaused)
	r.Hub.Log("scheduler", "info", "notifications paused by user")
	cmd.Reply <- CommandResult{OK: true, Message: "scheduler paused"}
}

func (r *Runner) handleResumeCommand(cmd Command, setState func(string)) {
	if !r.paused.Load() {
		cmd.Reply <- CommandResult{OK: true, Message: "scheduler already running"}
		return
	}
	r.paused.Store(false)
	setState(StateTracking)
	r.Hub.Log("scheduler", "info", "notifications resumed by user")
	cmd.Reply <- CommandResult{OK: true, Message: "scheduler resumed"}
}

func (r *Runner) handleCompleteCommand(cmd Command) {
	var payload struct {
		PassID string `json:"pass_id"`
	}
	if err := json.Unmarshal(cmd.Payload, &payload); err != nil || payload.PassID == "" {
		cmd.Reply <- CommandResult{OK: false, Error: "invalid payload: pass_id required"}
		return
	}
	if err := r.tracker.MarkCompleted(payload.PassID); err != nil {
		cmd.Reply <- CommandResult{OK: false, Error: err.Error()}
		return
	}
	cmd.Reply <- CommandResult{OK: true, Message: "pass " + payload.PassID + " marked completed"}
}
