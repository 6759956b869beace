package ctl

import (
	"fmt"
	"strings"
	"time"
)

// StatusResponse mirrors the JSON returned by GET /api/status.
type StatusResponse struct {
	Name            string `json:"name"`
	State           string `json:"state"`
	Mode            string `json:"mode"`
	UptimeSeconds   int64  `json:"uptime_seconds"`
	DataRoot        string `json:"data_root"`
	BrokerConnected bool   `json:"broker_connected"`
	Passes          int    `json:"passes"`
	WSClients       int    `json:"ws_clients"`
	Scheduler       struct {
		Paused      bool      `json:"paused"`
		Satellites  int       `json:"satellites"`
		LastPredict time.Time `json:"last_predict"`
		LastRefresh time.Time `json:"last_refresh"`
		LastError   string    `json:"last_error"`
	} `json:"scheduler"`
	NextPass *PassJSON `json:"next_pass"`
	Disk     *struct {
		TotalBytes     uint64 `json:"total_bytes"`
		UsedBytes      uint64 `json:"used_bytes"`
		AvailableBytes uint64 `json:"available_bytes"`
	} `json:"disk"`
}

// Status fetches the daemon status and prints a formatted summary.
func Status(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var s StatusResponse
	if err := getJSON(baseURL, "/api/status", &s); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(s)
	}

	uptime := formatDuration(time.Duration(s.UptimeSeconds) * time.Second)
	stateStr := colorize(stateColor(s.State), s.State)
	broker := colorize(red, "offline")
	if s.BrokerConnected {
		broker = colorize(green, "connected")
	}

	fmt.Println()
	fmt.Println(header("  PASSRELAY STATUS"))
	fmt.Println(colorize(dim, "  "+strings.Repeat("─", 38)))
	fmt.Printf("  %-12s %s (%s)\n", colorize(dim, "Daemon:"), s.Name, s.Mode)
	fmt.Printf("  %-12s %s\n", colorize(dim, "State:"), stateStr)
	fmt.Printf("  %-12s %s\n", colorize(dim, "Uptime:"), uptime)
	fmt.Printf("  %-12s %s\n", colorize(dim, "Broker:"), broker)
	fmt.Printf("  %-12s %d satellites, %d passes\n", colorize(dim, "Schedule:"), s.Scheduler.Satellites, s.Passes)
	if s.Scheduler.Paused {
		fmt.Printf("  %-12s %s\n", colorize(dim, "Scheduler:"), colorize(yellow, "PAUSED"))
	}
	if !s.Scheduler.LastPredict.IsZero() {
		fmt.Printf("  %-12s %s\n", colorize(dim, "Predicted:"), s.Scheduler.LastPredict.Local().Format("2006-01-02 15:04 MST"))
	}
	if s.Scheduler.LastError != "" {
		fmt.Printf("  %-12s %s\n", colorize(dim, "Last error:"), colorize(red, s.Scheduler.LastError))
	}
	if p := s.NextPass; p != nil {
		fmt.Printf("  %-12s %s at %s (%.1f°)\n", colorize(dim, "Next pass:"), colorize(bold, p.Satellite), formatPassTime(p.Rise), p.MaxElev)
	}
	fmt.Printf("  %-12s %s\n", colorize(dim, "Data:"), s.DataRoot)
	if s.Disk != nil {
		fmt.Printf("  %-12s %s free of %s\n", colorize(dim, "Disk:"),
			formatBytes(int64(s.Disk.AvailableBytes)), formatBytes(int64(s.Disk.TotalBytes)))
	}
	fmt.Printf("  %-12s %d\n", colorize(dim, "Watchers:"), s.WSClients)
	fmt.Printf("  %-12s %s\n", colorize(dim, "Host:"), baseURL)
	fmt.Println()

	return nil
}
