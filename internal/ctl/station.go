package ctl

import (
	"fmt"
	"strings"
	"time"
)

// StationStatus shows the recording station's state as served by stationd.
func StationStatus(stationURL string, jsonOutput bool) error {
	stationURL = strings.TrimRight(stationURL, "/")

	var resp struct {
		Name           string   `json:"name"`
		Link           string   `json:"link"`
		UptimeSeconds  int64    `json:"uptime_seconds"`
		UploadsEnabled bool     `json:"uploads_enabled"`
		Commands       []string `json:"commands"`
		Recorder       struct {
			State     string    `json:"state"`
			Code      string    `json:"code"`
			Tag       string    `json:"tag"`
			PID       int       `json:"pid"`
			Output    string    `json:"output"`
			StartedAt time.Time `json:"started_at"`
			Remaining int       `json:"remaining_seconds"`
			Exited    bool      `json:"exited"`
		} `json:"recorder"`
	}
	if err := getJSON(stationURL, "/api/status", &resp); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(resp)
	}

	r := resp.Recorder
	uploads := colorize(yellow, "disabled")
	if resp.UploadsEnabled {
		uploads = colorize(green, "enabled")
	}

	fmt.Println()
	fmt.Println(header("  RECORDING STATION"))
	fmt.Println("  " + strings.Repeat("─", 50))
	fmt.Printf("  State:       %s\n", colorize(stateColor(r.State), r.State))
	if r.Code != "" {
		fmt.Printf("  Recording:   %s (pid %d)\n", r.Tag, r.PID)
		fmt.Printf("  Output:      %s\n", r.Output)
		fmt.Printf("  Remaining:   %s\n", formatDuration(time.Duration(r.Remaining)*time.Second))
		if r.Exited {
			fmt.Printf("  Process:     %s\n", colorize(red, "exited early"))
		}
	}
	fmt.Printf("  Link:        %s\n", resp.Link)
	fmt.Printf("  Uploads:     %s\n", uploads)
	fmt.Printf("  Commands:    %s\n", strings.Join(resp.Commands, " "))
	fmt.Printf("  Uptime:      %s\n", formatDuration(time.Duration(resp.UptimeSeconds)*time.Second))
	fmt.Printf("  Host:        %s\n", stationURL)
	fmt.Println()
	return nil
}
