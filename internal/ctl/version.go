package ctl

import (
	"fmt"
	"runtime"
	"strings"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// VersionInfo prints the CLI version next to trackerd's GET /api/version and
// flags a mismatch between the two.
func VersionInfo(baseURL string, jsonOutput bool) error {
	var daemon struct {
		Version   string `json:"version"`
		GoVersion string `json:"go_version"`
		BuiltAt   string `json:"built_at"`
	}
	daemonErr := getJSON(baseURL, "/api/version", &daemon)

	if jsonOutput {
		resp := map[string]any{
			"cli": map[string]any{
				"version":    Version,
				"go_version": runtime.Version(),
			},
		}
		if daemonErr == nil {
			resp["daemon"] = daemon
		} else {
			resp["daemon_error"] = daemonErr.Error()
		}
		return printJSON(resp)
	}

	fmt.Println()
	fmt.Println(header("  PASSRELAY VERSION"))
	fmt.Println(colorize(dim, "  "+strings.Repeat("─", 38)))
	fmt.Printf("  %-12s %s\n", colorize(dim, "CLI:"), Version+" ("+runtime.Version()+")")
	if daemonErr != nil {
		fmt.Printf("  %-12s %s\n", colorize(dim, "trackerd:"), colorize(red, "unreachable: "+daemonErr.Error()))
	} else {
		fmt.Printf("  %-12s %s\n", colorize(dim, "trackerd:"), daemon.Version+" ("+daemon.GoVersion+")")
		fmt.Printf("  %-12s %s\n", colorize(dim, "Built:"), daemon.BuiltAt)
		if daemon.Version != Version {
			fmt.Printf("  %s\n", colorize(yellow, "CLI and daemon versions differ"))
		}
	}
	fmt.Println()

	return nil
}
