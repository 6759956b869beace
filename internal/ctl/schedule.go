package ctl

import (
	"fmt"
	"strconv"
)

// Schedule prints the snapshot trackerd publishes to the broker.
func Schedule(baseURL string, jsonOutput bool) error {
	var snap struct {
		Passes []struct {
			ID           string  `json:"id"`
			Satellite    string  `json:"satellite"`
			Category     string  `json:"category"`
			RiseTime     string  `json:"rise_time"`
			SetTime      string  `json:"set_time"`
			MaxElevation float64 `json:"max_elevation"`
			Priority     float64 `json:"priority"`
		} `json:"passes"`
		TotalPasses int    `json:"total_passes"`
		Updated     string `json:"updated"`
		Location    struct {
			Lat float64 `json:"lat"`
			Lon float64 `json:"lon"`
		} `json:"location"`
	}
	if err := getJSON(baseURL, "/api/schedule", &snap); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(snap)
	}

	fmt.Println()
	fmt.Println(header("  PUBLISHED SCHEDULE"))
	fmt.Printf("  %s %d of %d passes, updated %s\n",
		colorize(dim, "Snapshot:"), len(snap.Passes), snap.TotalPasses, formatPassTime(snap.Updated))
	fmt.Printf("  %s %.4f, %.4f\n", colorize(dim, "Location:"), snap.Location.Lat, snap.Location.Lon)
	fmt.Println()

	t := newTable("  ", "#", "Satellite", "Category", "Rise", "Elev", "Priority")
	for i, p := range snap.Passes {
		t.row(strconv.Itoa(i+1), p.Satellite, p.Category, formatPassTime(p.RiseTime),
			fmt.Sprintf("%.1f°", p.MaxElevation), fmt.Sprintf("%.1f", p.Priority))
	}
	t.flush()
	fmt.Println()

	return nil
}
