package ctl

import (
	"fmt"
	"strconv"
	"time"
)

// TLEInfo shows where each element source was last served from.
func TLEInfo(baseURL string, jsonOutput bool) error {
	var resp struct {
		Sources []struct {
			Name      string    `json:"name"`
			URL       string    `json:"url"`
			Path      string    `json:"path"`
			Tier      string    `json:"tier"`
			Entries   int       `json:"entries"`
			FetchedAt time.Time `json:"fetched_at"`
			CacheAge  string    `json:"cache_age"`
			LastError string    `json:"last_error"`
		} `json:"sources"`
	}
	if err := getJSON(baseURL, "/api/tle-info", &resp); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(resp)
	}

	fmt.Println()
	fmt.Println(header("  TLE SOURCES"))

	t := newTable("  ", "Source", "Tier", "Entries", "Fetched", "Error")
	for _, s := range resp.Sources {
		fetched := "never"
		if !s.FetchedAt.IsZero() {
			fetched = formatDuration(time.Since(s.FetchedAt)) + " ago"
		}
		tier := s.Tier
		if tier == "" {
			tier = "-"
		}
		t.row(s.Name, tier, strconv.Itoa(s.Entries), fetched, s.LastError)
	}
	t.flush()
	fmt.Println()
	return nil
}
