package ctl

import "fmt"

type commandResult struct {
	OK                bool   `json:"ok"`
	Message           string `json:"message"`
	Error             string `json:"error"`
	SatellitesUpdated int    `json:"satellites_updated,omitempty"`
	Passes            int    `json:"passes,omitempty"`
}

// TLERefresh forces a fresh element download followed by a prediction.
func TLERefresh(baseURL string, jsonOutput bool) error {
	var resp commandResult
	if err := postJSON(baseURL, "/api/tle-refresh", nil, &resp); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(resp)
	}

	fmt.Println()
	if resp.OK {
		fmt.Printf("  %s  %s (%d satellites, %d passes)\n", colorize(green, "REFRESHED"), resp.Message, resp.SatellitesUpdated, resp.Passes)
	} else {
		fmt.Printf("  %s  %s\n", colorize(red, "FAILED"), resp.Error)
	}
	fmt.Println()

	return nil
}

// Predict recomputes the schedule from the current elements.
func Predict(baseURL string, jsonOutput bool) error {
	var resp commandResult
	if err := postJSON(baseURL, "/api/predict", nil, &resp); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(resp)
	}

	fmt.Println()
	if resp.OK {
		fmt.Printf("  %s  %d passes\n", colorize(green, "PREDICTED"), resp.Passes)
	} else {
		fmt.Printf("  %s  %s\n", colorize(red, "FAILED"), resp.Error)
	}
	fmt.Println()

	return nil
}
