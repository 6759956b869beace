package ctl

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Health checks daemon health via GET /healthz, asking for the per-component
// report.
func Health(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	req, err := http.NewRequest(http.MethodGet, baseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		if jsonOutput {
			return printJSON(map[string]any{"healthy": false, "url": baseURL, "error": err.Error()})
		}
		return err
	}
	defer resp.Body.Close()

	var report struct {
		Healthy bool `json:"healthy"`
		Checks  map[string]struct {
			OK    bool   `json:"ok"`
			Error string `json:"error"`
		} `json:"checks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return fmt.Errorf("HTTP %s: %w", resp.Status, err)
	}

	if jsonOutput {
		return printJSON(report)
	}

	fmt.Println()
	if report.Healthy {
		fmt.Printf("  %s  trackerd is healthy at %s\n", colorize(green, "HEALTHY"), colorize(dim, baseURL))
	} else {
		fmt.Printf("  %s  trackerd returned HTTP %d at %s\n", colorize(red, "UNHEALTHY"), resp.StatusCode, colorize(dim, baseURL))
	}

	names := make([]string, 0, len(report.Checks))
	for name := range report.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := report.Checks[name]
		mark := colorize(green, "ok  ")
		if !c.OK {
			mark = colorize(red, "FAIL")
		}
		fmt.Printf("    %s %-12s %s\n", mark, name, colorize(dim, c.Error))
	}
	fmt.Println()

	return nil
}
