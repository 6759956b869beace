package ctl

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// NextPassOptions configures the next-pass command.
type NextPassOptions struct {
	Satellite string
	JSON      bool
}

// NextPass shows the next upcoming satellite pass.
func NextPass(baseURL string, opts NextPassOptions) error {
	path := "/api/next-pass"
	if opts.Satellite != "" {
		path += "?satellite=" + url.QueryEscape(opts.Satellite)
	}

	var resp struct {
		Pass       *PassJSON    `json:"pass"`
		CountdownS int          `json:"countdown_s"`
		Tracked    *TrackedJSON `json:"tracked,omitempty"`
	}
	if err := getJSON(baseURL, path, &resp); err != nil {
		return err
	}

	if opts.JSON {
		return printJSON(resp)
	}

	fmt.Println()
	fmt.Println(header("  NEXT PASS"))
	fmt.Println("  " + strings.Repeat("─", 42))

	if resp.Pass == nil {
		fmt.Println("  No upcoming passes found.")
		fmt.Println()
		return nil
	}

	p := resp.Pass
	countdown := time.Duration(resp.CountdownS) * time.Second

	fmt.Printf("  Satellite:  %s (%s)\n", p.Satellite, p.Category)
	fmt.Printf("  Frequency:  %.3f MHz %s\n", p.FreqHz/1e6, p.Mode)
	fmt.Printf("  Rise:       %s  az %.0f°\n", formatPassTime(p.Rise), p.RiseAzimuth)
	fmt.Printf("  Set:        %s  az %.0f°\n", formatPassTime(p.Set), p.SetAzimuth)
	fmt.Printf("  Max elev:   %.1f°\n", p.MaxElev)
	fmt.Printf("  Duration:   %s\n", formatDuration(time.Duration(p.DurationS)*time.Second))
	fmt.Printf("  Priority:   %.1f\n", p.Priority)

	if countdown > 0 {
		fmt.Printf("  Countdown:  %s\n", formatDuration(countdown))
	} else {
		fmt.Printf("  Status:     %s\n", colorize(green, "NOW"))
	}
	if t := resp.Tracked; t != nil && t.Prepared {
		fmt.Printf("  Station:    %s\n", colorize(blue, "prepared"))
	}

	fmt.Println()
	return nil
}
