// Passctl is the command-line client for monitoring and controlling a
// running trackerd instance, and for checking on the recording station. It
// connects over HTTP and WebSocket to query status and stream live events.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/large-farva/passrelay/internal/ctl"
)

func main() {
	var (
		host    = pflag.StringP("host", "H", "http://127.0.0.1:8080", "trackerd URL (e.g. http://192.168.8.1:8080)")
		station = pflag.StringP("station", "S", "http://127.0.0.1:8081", "stationd URL")
		jsonOut = pflag.Bool("json", false, "Output raw JSON instead of formatted text")
		filter  = pflag.StringSlice("filter", nil, "Event types to show in watch (e.g. --filter state,prepared)")
	)

	// Stop parsing global flags at the first non-flag argument (the command
	// name), so subcommand-specific flags like --count are not rejected.
	pflag.CommandLine.SetInterspersed(false)
	pflag.Parse()

	if pflag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	cmd := pflag.Arg(0)
	subArgs := pflag.Args()[1:]

	var err error
	switch cmd {
	// ── Query commands ────────────────────────────────────────────
	case "status":
		err = ctl.Status(*host, *jsonOut)

	case "health":
		err = ctl.Health(*host, *jsonOut)

	case "version":
		err = ctl.VersionInfo(*host, *jsonOut)

	case "satellites":
		err = ctl.Satellites(*host, *jsonOut)

	case "config":
		err = ctl.Config(*host, *jsonOut)

	case "passes":
		opts := ctl.PassesOptions{JSON: *jsonOut}
		passFlags := pflag.NewFlagSet("passes", pflag.ContinueOnError)
		passFlags.IntVar(&opts.Count, "count", 0, "Limit number of passes shown")
		passFlags.StringVar(&opts.Satellite, "satellite", "", "Filter by satellite name")
		_ = passFlags.Parse(subArgs)
		err = ctl.Passes(*host, opts)

	case "next-pass":
		opts := ctl.NextPassOptions{JSON: *jsonOut}
		npFlags := pflag.NewFlagSet("next-pass", pflag.ContinueOnError)
		npFlags.StringVar(&opts.Satellite, "satellite", "", "Filter by satellite name")
		_ = npFlags.Parse(subArgs)
		err = ctl.NextPass(*host, opts)

	case "schedule":
		err = ctl.Schedule(*host, *jsonOut)

	case "tracked":
		err = ctl.Tracked(*host, *jsonOut)

	case "tle-info":
		err = ctl.TLEInfo(*host, *jsonOut)

	case "station":
		err = ctl.StationStatus(*station, *jsonOut)

	// ── Control commands ──────────────────────────────────────────
	case "predict":
		err = ctl.Predict(*host, *jsonOut)

	case "tle-refresh":
		err = ctl.TLERefresh(*host, *jsonOut)

	case "pause":
		err = ctl.Pause(*host, *jsonOut)

	case "resume":
		err = ctl.Resume(*host, *jsonOut)

	// ── Live streaming ────────────────────────────────────────────
	case "watch":
		err = ctl.Watch(*host, ctl.WatchOptions{
			Filter: *filter,
			JSON:   *jsonOut,
		})

	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Print(`
  passctl: passrelay control CLI

  USAGE
    passctl [flags] <command> [command-flags]

  COMMANDS (query)
    status          Show tracker state, uptime, broker link, and next pass
    health          Check tracker and component health
    version         Show CLI and daemon version information
    satellites      List the tracked satellites
    config          Show the daemon's running configuration
    passes          List upcoming passes
    next-pass       Show the next upcoming pass
    schedule        Show the schedule snapshot published to the broker
    tracked         List passes the station has been prepared for
    tle-info        Show element source tiers and freshness
    station         Show the recording station's state (talks to stationd)

  COMMANDS (control)
    predict         Recompute the schedule from current elements
    tle-refresh     Force an element download, then recompute
    pause           Stop preparing the station for passes
    resume          Resume preparing the station

  COMMANDS (live)
    watch           Stream live events from trackerd (Ctrl-C to stop)

  GLOBAL FLAGS
    -H, --host URL      trackerd base URL (default: http://127.0.0.1:8080)
    -S, --station URL   stationd base URL (default: http://127.0.0.1:8081)
        --json          Output raw JSON instead of formatted text
        --filter TYPE   Event types to show in watch (comma-separated):
                        heartbeat, state, log, schedule, prepared,
                        response, broker

  COMMAND FLAGS
    passes:
        --count N           Limit number of passes shown
        --satellite NAME    Filter by satellite name

    next-pass:
        --satellite NAME    Filter by satellite name

  EXAMPLES
    passctl status
    passctl --json status
    passctl --host http://192.168.8.1:8080 --filter prepared,response watch
    passctl passes --satellite "NOAA 19" --count 5
    passctl next-pass
    passctl tle-refresh
    passctl --station http://pi.local:8081 station

`)
}
