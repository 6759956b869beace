package ctl

import (
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// PassJSON mirrors one pass as served by trackerd.
type PassJSON struct {
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

type stationJSON struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	Alt float64 `json:"alt"`
}

// PassesOptions controls the passes command output.
type PassesOptions struct {
	Count     int
	Satellite string
	JSON      bool
}

// Passes lists upcoming satellite passes from the daemon.
func Passes(baseURL string, opts PassesOptions) error {
	params := url.Values{}
	if opts.Count > 0 {
		params.Set("count", strconv.Itoa(opts.Count))
	}
	if opts.Satellite != "" {
		params.Set("satellite", opts.Satellite)
	}
	path := "/api/passes"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var resp struct {
		Passes  []PassJSON  `json:"passes"`
		Station stationJSON `json:"station"`
	}
	if err := getJSON(baseURL, path, &resp); err != nil {
		return err
	}

	if opts.JSON {
		return printJSON(resp)
	}

	fmt.Println()
	fmt.Println(header("  UPCOMING PASSES"))
	fmt.Printf("  %s %.4f, %.4f, %.0fm\n",
		colorize(dim, "Station:"),
		resp.Station.Lat, resp.Station.Lon, resp.Station.Alt,
	)
	fmt.Println()

	if len(resp.Passes) == 0 {
		fmt.Println(colorize(dim, "  No upcoming passes found."))
		fmt.Println()
		return nil
	}

	t := newTable("  ", "#", "Satellite", "Rise", "Set", "Elev", "Duration", "Priority")
	for i, p := range resp.Passes {
		t.row(
			strconv.Itoa(i+1),
			p.Satellite,
			formatPassTime(p.Rise),
			formatPassTime(p.Set),
			fmt.Sprintf("%.1f°", p.MaxElev),
			formatDuration(time.Duration(p.DurationS)*time.Second),
			fmt.Sprintf("%.1f", p.Priority),
		)
	}
	t.flush()
	fmt.Println()

	return nil
}

// formatPassTime parses an RFC3339 timestamp and returns a local time string.
func formatPassTime(s string) string {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return s
	}
	return t.Local().Format("2006-01-02 15:04 MST")
}
