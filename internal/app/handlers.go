package app

import (
	"encoding/json"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/large-farva/passrelay/internal/predict"
	"github.com/large-farva/passrelay/internal/scheduler"
)

// ---------------------------------------------------------------------------
// Core handlers
// ---------------------------------------------------------------------------

func (a *App) handleHealthz(w http.ResponseWriter, r *http.Request) {
	// If the client asks for JSON, return component-level health checks.
	if r.Header.Get("Accept") == "application/json" {
		a.handleHealthDetailed(w, r)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (a *App) handleStatus(w http.ResponseWriter, _ *http.Request) {
	now := time.Now().UTC()
	s := a.holder.Load()

	resp := map[string]any{
		"name":             "passrelay",
		"state":            a.state.Load().(string),
		"uptime_seconds":   int64(time.Since(a.startedAt).Seconds()),
		"data_root":        a.cfg.Data.Root,
		"demo_enabled":     a.cfg.Demo.Enabled,
		"broker_connected": a.broker.IsConnected(),
		"passes":           len(s.Passes),
		"ws_clients":       a.wsHub.Clients(),
		"ws_dropped":       a.wsHub.Dropped(),
		"scheduler":        a.scheduler.Status(),
	}

	if a.cfg.Demo.Enabled {
		resp["mode"] = "demo"
	} else {
		resp["mode"] = "live"
	}

	if next, ok := s.Next(now); ok {
		resp["next_pass"] = toPassJSON(next)
	}

	if du, ok := diskUsage(a.cfg.Data.Root); ok {
		resp["disk"] = du
	}

	writeJSON(w, resp)
}

func (a *App) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{
		"version":    Version,
		"go_version": GoVersion,
		"built_at":   BuiltAt,
	})
}

func (a *App) handleSatellites(w http.ResponseWriter, _ *http.Request) {
	type satJSON struct {
		Name     string  `json:"name"`
		NoradID  int     `json:"norad_id"`
		Category string  `json:"category"`
		FreqHz   float64 `json:"freq_hz"`
		Mode     string  `json:"mode"`
		Epoch    string  `json:"epoch"`
		AgeHours float64 `json:"age_hours"`
	}

	now := time.Now().UTC()
	src := a.scheduler.Satellites()
	sats := make([]satJSON, len(src))
	for i, s := range src {
		sats[i] = satJSON{
			Name:     s.Name,
			NoradID:  s.Elements.NoradID,
			Category: string(s.Category),
			FreqHz:   s.Frequency,
			Mode:     s.Mode,
			Epoch:    s.Elements.Epoch.Format(time.RFC3339),
			AgeHours: round1(s.Elements.Age(now).Hours()),
		}
	}
	writeJSON(w, map[string]any{"satellites": sats})
}

func (a *App) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, a.cfg)
}

func (a *App) handlePasses(w http.ResponseWriter, r *http.Request) {
	passes := filterSatellite(a.holder.Load().Upcoming(time.Now().UTC()), r.URL.Query().Get("satellite"))

	countStr := r.URL.Query().Get("count")
	if countStr != "" {
		if n, err := strconv.Atoi(countStr); err == nil && n > 0 && n < len(passes) {
			passes = passes[:n]
		}
	}

	result := make([]passJSON, len(passes))
	for i, p := range passes {
		result[i] = toPassJSON(p)
	}

	writeJSON(w, map[string]any{
		"passes":  result,
		"station": a.station(),
	})
}

func (a *App) handleNextPass(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	var candidates []predict.Pass
	for _, p := range a.holder.Load().Passes {
		if p.Rise.After(now) {
			candidates = append(candidates, p)
		}
	}
	candidates = filterSatellite(candidates, r.URL.Query().Get("satellite"))

	resp := map[string]any{"pass": nil, "station": a.station()}
	if len(candidates) > 0 {
		next := candidates[0]
		resp["pass"] = toPassJSON(next)
		resp["countdown_s"] = int(next.Rise.Sub(now).Seconds())
		if st, ok := a.tracker.Get(next.ID); ok {
			resp["tracked"] = st
		}
	}
	writeJSON(w, resp)
}

// handleSchedule returns exactly the snapshot that would be published.
func (a *App) handleSchedule(w http.ResponseWriter, _ *http.Request) {
	b, _, err := a.emitter.Encode(a.holder.Load(), time.Now().UTC())
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(b)
}

func (a *App) handleTracked(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{"passes": a.tracker.States()})
}

func (a *App) handleTLEInfo(w http.ResponseWriter, _ *http.Request) {
	if a.store == nil {
		jsonError(w, "not available in demo mode", http.StatusConflict)
		return
	}
	writeJSON(w, map[string]any{"sources": a.store.Info()})
}

func (a *App) handleHealthDetailed(w http.ResponseWriter, _ *http.Request) {
	checks := map[string]any{}
	allOK := true

	// Check data directory.
	tmpPath := filepath.Join(a.cfg.Data.Root, ".healthcheck")
	if err := os.WriteFile(tmpPath, []byte("ok"), 0o644); err != nil {
		checks["data_dir"] = map[string]any{"ok": false, "error": err.Error()}
		allOK = false
	} else {
		os.Remove(tmpPath)
		checks["data_dir"] = map[string]any{"ok": true, "path": a.cfg.Data.Root}
	}
	if du, ok := diskUsage(a.cfg.Data.Root); ok {
		if du.low() {
			checks["disk"] = map[string]any{"ok": false, "error": "less than 64 MiB free", "available_bytes": du.AvailableBytes}
			allOK = false
		} else {
			checks["disk"] = map[string]any{"ok": true, "available_bytes": du.AvailableBytes}
		}
	}

	// Broker connectivity is reported but never fails the check: the tracker
	// keeps predicting while the broker is away.
	if a.cfg.MQTT.Enabled {
		checks["broker"] = map[string]any{"ok": a.broker.IsConnected()}
	}

	s := a.holder.Load()
	if _, ok := s.Next(time.Now().UTC()); !ok {
		checks["schedule"] = map[string]any{"ok": false, "error": "no upcoming passes"}
		allOK = false
	} else {
		checks["schedule"] = map[string]any{"ok": true, "passes": len(s.Passes), "generated": s.Generated.Format(time.RFC3339)}
	}

	if a.configPath != "" {
		if _, err := os.Stat(a.configPath); err != nil {
			checks["config_file"] = map[string]any{"ok": false, "error": err.Error()}
			allOK = false
		} else {
			checks["config_file"] = map[string]any{"ok": true, "path": a.configPath}
		}
	}

	status := http.StatusOK
	if !allOK {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"healthy": allOK,
		"checks":  checks,
	})
}

// ---------------------------------------------------------------------------
// Scheduler controls
// ---------------------------------------------------------------------------

func (a *App) handlePredict(w http.ResponseWriter, r *http.Request) {
	a.command(w, r, "predict")
}

func (a *App) handleTLERefresh(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		jsonError(w, "not available in demo mode", http.StatusConflict)
		return
	}
	a.command(w, r, "tle_refresh")
}

func (a *App) handlePause(w http.ResponseWriter, r *http.Request) {
	a.command(w, r, "pause")
}

func (a *App) handleResume(w http.ResponseWriter, r *http.Request) {
	a.command(w, r, "resume")
}

func (a *App) command(w http.ResponseWriter, r *http.Request, cmdType string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	result, ok := a.sendSchedulerCommand(r, cmdType, nil)
	if !ok {
		jsonError(w, "scheduler did not respond", http.StatusServiceUnavailable)
		return
	}
	writeCommandResult(w, result)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// sendSchedulerCommand sends a command to the scheduler and waits for the
// reply, giving up when the request is cancelled.
func (a *App) sendSchedulerCommand(r *http.Request, cmdType string, payload json.RawMessage) (scheduler.CommandResult, bool) {
	reply := make(chan scheduler.CommandResult, 1)
	cmd := scheduler.Command{
		Type:    cmdType,
		Payload: payload,
		Reply:   reply,
	}
	select {
	case a.scheduler.Commands <- cmd:
	case <-r.Context().Done():
		return scheduler.CommandResult{}, false
	}
	select {
	case res := <-reply:
		return res, true
	case <-r.Context().Done():
		return scheduler.CommandResult{}, false
	}
}

func (a *App) station() map[string]any {
	obs := a.scheduler.Observer()
	return map[string]any{
		"lat": obs.Lat,
		"lon": obs.Lon,
		"alt": obs.Alt,
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ok":    false,
		"error": msg,
	})
}

// writeCommandResult writes a scheduler.CommandResult as JSON.
func writeCommandResult(w http.ResponseWriter, result scheduler.CommandResult) {
	w.Header().Set("Content-Type", "application/json")
	if !result.OK {
		w.WriteHeader(http.StatusInternalServerError)
	}
	_ = json.NewEncoder(w).Encode(result)
}

type passJSON struct {
	ID          string  `json:"id"`
	Satellite   string  `json:"satellite"`
	Category    string  `json:"category"`
	FreqHz      float64 `json:"freq_hz"`
	Mode        string  `json:"mode"`
	Rise        string  `json:"rise"`
	Peak        string  `json:"peak"`
	Set         string  `json:"set"`
	MaxElev     float64 `json:"max_elev"`
	RiseAzimuth float64 `json:"rise_azimuth"`
	SetAzimuth  float64 `json:"set_azimuth"`
	DurationS   int     `json:"duration_s"`
	Priority    float64 `json:"priority"`
}

func toPassJSON(p predict.Pass) passJSON {
	return passJSON{
		ID:          p.ID,
		Satellite:   p.Satellite,
		Category:    string(p.Category),
		FreqHz:      p.Frequency,
		Mode:        p.Mode,
		Rise:        p.Rise.Format(time.RFC3339),
		Peak:        p.Peak.Format(time.RFC3339),
		Set:         p.Set.Format(time.RFC3339),
		MaxElev:     round1(p.MaxElevation),
		RiseAzimuth: round1(p.RiseAzimuth),
		SetAzimuth:  round1(p.SetAzimuth),
		DurationS:   int(p.Duration.Seconds()),
		Priority:    p.Priority,
	}
}

func filterSatellite(passes []predict.Pass, name string) []predict.Pass {
	if name == "" {
		return passes
	}
	var filtered []predict.Pass
	for _, p := range passes {
		if strings.EqualFold(p.Satellite, name) {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
