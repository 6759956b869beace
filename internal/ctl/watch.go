package ctl

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/large-farva/passrelay/internal/telemetry"
)

// WatchOptions controls the watch command behavior.
type WatchOptions struct {
	Filter []string // event types to show (empty = all)
	JSON   bool     // output raw JSON per event
}

// Watch connects to the daemon's WebSocket endpoint and streams events to
// the terminal in a human-readable format until interrupted.
func Watch(baseURL string, opts WatchOptions) error {
	baseURL = strings.TrimRight(baseURL, "/")

	u, err := url.Parse(baseURL)
	if err != nil {
		return err
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	u.Path = "/ws"
	u.RawQuery = ""

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	if !opts.JSON {
		fmt.Println()
		fmt.Printf("  %s %s\n", colorize(green, "connected"), colorize(dim, u.String()))
		if len(opts.Filter) > 0 {
			fmt.Printf("  %s %s\n", colorize(dim, "filter:"), colorize(dim, strings.Join(opts.Filter, ", ")))
		}
		fmt.Println(colorize(dim, "  "+strings.Repeat("─", 50)))
		fmt.Println()
	}

	// Build a filter set for O(1) lookup.
	filterSet := make(map[string]bool, len(opts.Filter))
	for _, f := range opts.Filter {
		filterSet[f] = true
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}

			if len(filterSet) > 0 {
				var ev telemetry.Event
				if err := json.Unmarshal(msg, &ev); err == nil && !filterSet[string(ev.Type)] {
					continue
				}
			}

			if opts.JSON {
				fmt.Println(string(msg))
			} else {
				renderEvent(msg)
			}
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sig:
		if !opts.JSON {
			fmt.Println()
			fmt.Println(colorize(dim, "  disconnecting..."))
		}
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
			time.Now().Add(1*time.Second),
		)
		return nil
	case <-done:
		return nil
	}
}

// renderEvent decodes a telemetry event and prints it in a human-friendly
// format. Unrecognized event types fall back to indented JSON.
func renderEvent(raw []byte) {
	var ev telemetry.Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		fmt.Printf("  %s\n", string(raw))
		return
	}
	ts := colorize(dim, formatEventTime(ev.TS))

	switch ev.Type {
	case telemetry.EventHeartbeat:
		var hb telemetry.Heartbeat
		_ = json.Unmarshal(raw, &hb)
		broker := colorize(dim, "broker up")
		if !hb.BrokerOnline {
			broker = colorize(yellow, "broker down")
		}
		fmt.Printf("  %s %s  %s  up %s  %s\n",
			ts,
			colorize(dim, "heartbeat"),
			colorize(stateColor(hb.State), hb.State),
			colorize(dim, formatDuration(time.Duration(hb.UptimeSeconds)*time.Second)),
			broker,
		)

	case telemetry.EventState:
		var st telemetry.StateTransition
		_ = json.Unmarshal(raw, &st)
		fmt.Printf("  %s %s  %s %s %s\n",
			ts,
			colorize(bold, "STATE"),
			colorize(stateColor(st.From), st.From),
			colorize(dim, "->"),
			colorize(stateColor(st.To), st.To),
		)

	case telemetry.EventLog:
		var l telemetry.LogLine
		_ = json.Unmarshal(raw, &l)
		src := ""
		if l.Component != "" {
			src = colorize(dim, "["+l.Component+"] ")
		}
		fmt.Printf("  %s %s  %s%s\n", ts, formatLogLevel(l.Level), src, l.Message)

	case telemetry.EventSchedule:
		var su telemetry.ScheduleUpdate
		_ = json.Unmarshal(raw, &su)
		next := ""
		if su.Next != "" {
			next = colorize(dim, "next "+su.Next)
		}
		fmt.Printf("  %s %s  %d passes  %s\n", ts, colorize(cyan, padRight("schedule", 9)), su.Passes, next)

	case telemetry.EventPrepared:
		var p telemetry.Prepared
		_ = json.Unmarshal(raw, &p)
		sent := colorize(green, "station notified")
		if !p.Notified {
			sent = colorize(dim, "not notified")
		}
		fmt.Println()
		fmt.Printf("  %s %s\n", ts, header("PASS IMMINENT"))
		fmt.Printf("    %-14s %s\n", colorize(dim, "Satellite:"), colorize(bold, p.Satellite))
		fmt.Printf("    %-14s %s\n", colorize(dim, "Rise:"), formatPassTime(p.RiseTime))
		fmt.Printf("    %-14s %s\n", colorize(dim, "Pass:"), p.PassID)
		fmt.Printf("    %-14s %s\n", colorize(dim, "Dispatch:"), sent)
		fmt.Println()

	case telemetry.EventResponse:
		var r telemetry.Response
		_ = json.Unmarshal(raw, &r)
		fmt.Printf("  %s %s  %s %s\n", ts, colorize(blue, padRight("response", 9)), colorize(dim, r.Topic), r.Payload)

	case telemetry.EventBroker:
		var b telemetry.BrokerState
		_ = json.Unmarshal(raw, &b)
		state := colorize(green, "connected")
		if !b.Connected {
			state = colorize(red, "disconnected")
		}
		fmt.Printf("  %s %s  %s %s\n", ts, colorize(bold, padRight("broker", 9)), state, colorize(dim, b.Detail))

	default:
		var v any
		_ = json.Unmarshal(raw, &v)
		pretty, err := json.MarshalIndent(v, "  ", "  ")
		if err != nil {
			fmt.Printf("  %s\n", string(raw))
			return
		}
		fmt.Printf("  %s\n", string(pretty))
	}
}

// formatEventTime shortens an event timestamp to local wall-clock time.
func formatEventTime(tsRaw string) string {
	if tsRaw == "" {
		return "        "
	}
	t, err := time.Parse(time.RFC3339Nano, tsRaw)
	if err != nil {
		return tsRaw
	}
	return t.Local().Format("15:04:05")
}

// formatLogLevel returns a colored, fixed-width log level label.
func formatLogLevel(level string) string {
	switch level {
	case "info":
		return colorize(green, "INFO ")
	case "warn":
		return colorize(yellow, "WARN ")
	case "error":
		return colorize(red, "ERROR")
	default:
		return padRight(level, 5)
	}
}
