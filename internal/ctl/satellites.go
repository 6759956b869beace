package ctl

import (
	"fmt"
	"strconv"
)

// Satellites lists the tracked satellite set from the daemon.
func Satellites(baseURL string, jsonOutput bool) error {
	var resp struct {
		Satellites []struct {
			Name     string  `json:"name"`
			NoradID  int     `json:"norad_id"`
			Category string  `json:"category"`
			FreqHz   float64 `json:"freq_hz"`
			Mode     string  `json:"mode"`
			Epoch    string  `json:"epoch"`
			AgeHours float64 `json:"age_hours"`
		} `json:"satellites"`
	}
	if err := getJSON(baseURL, "/api/satellites", &resp); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(resp)
	}

	fmt.Println()
	fmt.Println(header("  SATELLITE CATALOG"))

	t := newTable("  ", "Name", "NORAD ID", "Category", "Frequency", "Mode", "TLE age")
	for _, s := range resp.Satellites {
		freq := "-"
		if s.FreqHz > 0 {
			freq = fmt.Sprintf("%.3f MHz", s.FreqHz/1e6)
		}
		t.row(s.Name, strconv.Itoa(s.NoradID), s.Category, freq, s.Mode, fmt.Sprintf("%.1fh", s.AgeHours))
	}
	t.flush()
	fmt.Println()

	return nil
}
