package ctl

import "fmt"

// Pause stops imminent-pass handling on the daemon. Prediction continues.
func Pause(baseURL string, jsonOutput bool) error {
	return schedulerControl(baseURL, "/api/pause", "PAUSED", jsonOutput)
}

// Resume resumes imminent-pass handling on the daemon.
func Resume(baseURL string, jsonOutput bool) error {
	return schedulerControl(baseURL, "/api/resume", "RESUMED", jsonOutput)
}

func schedulerControl(baseURL, path, label string, jsonOutput bool) error {
	var result commandResult
	if err := postJSON(baseURL, path, nil, &result); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(result)
	}

	if result.OK {
		fmt.Printf("\n  %s  %s\n\n", colorize(green, label), result.Message)
	} else {
		fmt.Printf("\n  %s  %s\n\n", colorize(red, "ERROR"), result.Error)
	}
	return nil
}
