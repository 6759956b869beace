package ctl

import (
	"fmt"
	"time"
)

// TrackedJSON mirrors the tracker's per-pass state.
type TrackedJSON struct {
	PassID         string    `json:"pass_id"`
	Satellite      string    `json:"satellite"`
	Prepared       bool      `json:"prepared"`
	Notified       bool      `json:"notified"`
	Completed      bool      `json:"completed"`
	ScheduledStart time.Time `json:"scheduled_start"`
	ScheduledEnd   time.Time `json:"scheduled_end"`
	PreparedAt     time.Time `json:"prepared_at"`
	Rise           time.Time `json:"rise"`
}

// Tracked lists the passes the tracker has prepared the station for.
func Tracked(baseURL string, jsonOutput bool) error {
	var resp struct {
		Passes []TrackedJSON `json:"passes"`
	}
	if err := getJSON(baseURL, "/api/tracked", &resp); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(resp)
	}

	fmt.Println()
	fmt.Println(header("  TRACKED PASSES"))
	fmt.Println()

	if len(resp.Passes) == 0 {
		fmt.Println(colorize(dim, "  No passes prepared yet."))
		fmt.Println()
		return nil
	}

	t := newTable("  ", "Satellite", "Rise", "Window", "Notified", "Completed")
	for _, p := range resp.Passes {
		window := p.ScheduledStart.Local().Format("15:04:05") + " - " + p.ScheduledEnd.Local().Format("15:04:05")
		t.row(p.Satellite, p.Rise.Local().Format("2006-01-02 15:04 MST"), window, yesNo(p.Notified), yesNo(p.Completed))
	}
	t.flush()
	fmt.Println()

	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
