package app

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/large-farva/passrelay/internal/broker"
	"github.com/large-farva/passrelay/internal/config"
	"github.com/large-farva/passrelay/internal/demo"
	"github.com/large-farva/passrelay/internal/predict"
	"github.com/large-farva/passrelay/internal/schedule"
	"github.com/large-farva/passrelay/internal/scheduler"
	"github.com/large-farva/passrelay/internal/tracker"
)

// newTestServer runs a demo-mode scheduler behind the trackerd handlers.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	cfg := config.Default()
	cfg.Demo.Enabled = true
	cfg.MQTT.Enabled = false
	cfg.Data.Root = t.TempDir()

	holder := &schedule.Holder{}
	topics := broker.Topics{Prefix: cfg.MQTT.TopicPrefix}
	tr := tracker.New(nil, cfg.Notify, tracker.NewDispatcher(broker.Disabled{}, topics, logger), logger)
	runner := scheduler.New(nil, cfg, scheduler.Deps{
		Predictor: predict.NewPredictor(nil, cfg, demo.New(10*time.Minute), logger),
		Source:    demo.Source{Frequencies: cfg.Predict.Frequencies},
		Holder:    holder,
		Tracker:   tr,
		Publisher: broker.Disabled{},
		Observer:  predict.Observer{Lat: cfg.Observer.Latitude, Lon: cfg.Observer.Longitude},
	}, logger)

	a := New(Options{
		Logger:    logger,
		Cfg:       cfg,
		Scheduler: runner,
		Holder:    holder,
		Tracker:   tr,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go runner.Run(ctx, a.transition)

	srv := httptest.NewServer(a.Handler())
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})

	// The first command is served after the initial prediction.
	res := post(t, srv, "/api/predict")
	if !res.OK || res.Passes == 0 {
		t.Fatalf("initial predict: %+v", res)
	}
	return srv
}

func post(t *testing.T, srv *httptest.Server, path string) scheduler.CommandResult {
	t.Helper()
	resp, err := http.Post(srv.URL+path, "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var res scheduler.CommandResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("%s: %v", path, err)
	}
	return res
}

func getJSON(t *testing.T, srv *httptest.Server, path string, v any) int {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("%s: %v", path, err)
		}
	}
	return resp.StatusCode
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "ok\n" {
		t.Errorf("healthz = %d %q", resp.StatusCode, body)
	}
}

func TestHealthDetailed(t *testing.T) {
	srv := newTestServer(t)
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	req.Header.Set("Accept", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body struct {
		Healthy bool           `json:"healthy"`
		Checks  map[string]any `json:"checks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if !body.Healthy {
		t.Errorf("unhealthy: %v", body.Checks)
	}
	if _, ok := body.Checks["broker"]; ok {
		t.Error("broker check reported with mqtt disabled")
	}
}

func TestStatus(t *testing.T) {
	srv := newTestServer(t)
	var body map[string]any
	getJSON(t, srv, "/api/status", &body)

	if body["name"] != "passrelay" || body["mode"] != "demo" {
		t.Errorf("status = %v", body)
	}
	if body["broker_connected"] != false {
		t.Error("broker reported connected while disabled")
	}
	if _, ok := body["next_pass"]; !ok {
		t.Error("status missing next_pass")
	}
}

func TestPassesFilters(t *testing.T) {
	srv := newTestServer(t)

	var all struct {
		Passes []passJSON `json:"passes"`
	}
	getJSON(t, srv, "/api/passes?count=3", &all)
	if len(all.Passes) != 3 {
		t.Errorf("count=3 returned %d passes", len(all.Passes))
	}

	var one struct {
		Passes []passJSON `json:"passes"`
	}
	getJSON(t, srv, "/api/passes?satellite=noaa%2019", &one)
	if len(one.Passes) == 0 {
		t.Fatal("no NOAA 19 passes in demo schedule")
	}
	for _, p := range one.Passes {
		if p.Satellite != "NOAA 19" {
			t.Errorf("filter leaked %s", p.Satellite)
		}
	}
}

func TestNextPass(t *testing.T) {
	srv := newTestServer(t)
	var body struct {
		Pass      *passJSON `json:"pass"`
		Countdown int       `json:"countdown_s"`
	}
	getJSON(t, srv, "/api/next-pass", &body)
	if body.Pass == nil {
		t.Fatal("no next pass")
	}
	if body.Countdown < 0 {
		t.Errorf("countdown = %d", body.Countdown)
	}
	if !strings.HasPrefix(body.Pass.ID, body.Pass.Satellite+"_") {
		t.Errorf("id %q does not start with satellite name", body.Pass.ID)
	}
}

func TestSchedule(t *testing.T) {
	srv := newTestServer(t)
	var snap schedule.Snapshot
	getJSON(t, srv, "/api/schedule", &snap)
	if len(snap.Passes) == 0 || len(snap.Passes) > 15 {
		t.Errorf("snapshot has %d passes", len(snap.Passes))
	}
	if snap.TotalPasses < len(snap.Passes) {
		t.Errorf("total %d < published %d", snap.TotalPasses, len(snap.Passes))
	}
}

func TestTLEInfoUnavailableInDemo(t *testing.T) {
	srv := newTestServer(t)
	if code := getJSON(t, srv, "/api/tle-info", nil); code != http.StatusConflict {
		t.Errorf("tle-info = %d, want 409", code)
	}
}

func TestPauseResume(t *testing.T) {
	srv := newTestServer(t)

	if res := post(t, srv, "/api/pause"); !res.OK || res.Message != "scheduler paused" {
		t.Errorf("pause = %+v", res)
	}
	var status map[string]any
	getJSON(t, srv, "/api/status", &status)
	if sched, _ := status["scheduler"].(map[string]any); sched["paused"] != true {
		t.Errorf("scheduler status = %v", status["scheduler"])
	}
	if res := post(t, srv, "/api/resume"); !res.OK || res.Message != "scheduler resumed" {
		t.Errorf("resume = %+v", res)
	}
}

func TestCommandRequiresPost(t *testing.T) {
	srv := newTestServer(t)
	if code := getJSON(t, srv, "/api/pause", nil); code != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/pause = %d, want 405", code)
	}
}
