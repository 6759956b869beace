package ctl

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/large-farva/passrelay/internal/telemetry"
)

func TestGetJSONReportsErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"ok":false,"error":"not available in demo mode"}`, http.StatusConflict)
	}))
	defer srv.Close()

	var v any
	err := getJSON(srv.URL+"/", "/api/tle-info", &v)
	if err == nil || !strings.Contains(err.Error(), "not available in demo mode") {
		t.Errorf("err = %v", err)
	}
}

func TestPostJSONSendsPost(t *testing.T) {
	var method, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		json.NewEncoder(w).Encode(commandResult{OK: true, Message: "scheduler paused"})
	}))
	defer srv.Close()

	var res commandResult
	if err := postJSON(srv.URL, "/api/pause", nil, &res); err != nil {
		t.Fatal(err)
	}
	if method != http.MethodPost || path != "/api/pause" || res.Message != "scheduler paused" {
		t.Errorf("got %s %s %+v", method, path, res)
	}
}

func TestPassesQuery(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		w.Write([]byte(`{"passes":[],"station":{}}`))
	}))
	defer srv.Close()

	if err := Passes(srv.URL, PassesOptions{Count: 3, Satellite: "NOAA 19", JSON: true}); err != nil {
		t.Fatal(err)
	}
	if query != "count=3&satellite=NOAA+19" {
		t.Errorf("query = %q", query)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := map[time.Duration]string{
		45 * time.Second:                             "45s",
		14*time.Minute + 8*time.Second:               "14m 8s",
		2*time.Hour + 14*time.Minute + 8*time.Second: "2h 14m 8s",
	}
	for d, want := range tests {
		if got := formatDuration(d); got != want {
			t.Errorf("formatDuration(%s) = %q, want %q", d, got, want)
		}
	}
}

func TestRenderEventHandlesEveryType(t *testing.T) {
	events := []any{
		telemetry.Heartbeat{Event: telemetry.NewEvent(telemetry.EventHeartbeat, "trackerd"), State: "TRACKING"},
		telemetry.StateTransition{Event: telemetry.NewEvent(telemetry.EventState, "trackerd"), From: "IDLE", To: "PREDICTING"},
		telemetry.LogLine{Event: telemetry.NewEvent(telemetry.EventLog, "tracker"), Level: "warn", Message: "x"},
		telemetry.ScheduleUpdate{Event: telemetry.NewEvent(telemetry.EventSchedule, "scheduler"), Passes: 12},
		telemetry.Prepared{Event: telemetry.NewEvent(telemetry.EventPrepared, "tracker"), Satellite: "NOAA 19"},
		telemetry.Response{Event: telemetry.NewEvent(telemetry.EventResponse, "broker"), Topic: "t", Payload: "p"},
		telemetry.BrokerState{Event: telemetry.NewEvent(telemetry.EventBroker, "broker")},
		map[string]any{"type": "mystery"},
	}
	for _, ev := range events {
		raw, _ := json.Marshal(ev)
		renderEvent(raw)
	}
	renderEvent([]byte("not json"))
}
