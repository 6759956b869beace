package ctl

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Config fetches and displays the daemon's running configuration.
func Config(baseURL string, jsonOutput bool) error {
	var raw json.RawMessage
	if err := getJSON(baseURL, "/api/config", &raw); err != nil {
		return err
	}

	if jsonOutput {
		var v any
		_ = json.Unmarshal(raw, &v)
		return printJSON(v)
	}

	var cfg struct {
		Data struct {
			Root string `json:"root"`
		} `json:"data"`
		Server struct {
			Bind string `json:"bind"`
		} `json:"server"`
		Demo struct {
			Enabled             bool `json:"enabled"`
			PassIntervalMinutes int  `json:"pass_interval_minutes"`
		} `json:"demo"`
		Observer struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
			Altitude  float64 `json:"altitude"`
			UseGPSD   bool    `json:"use_gpsd"`
			GPSDHost  string  `json:"gpsd_host"`
		} `json:"observer"`
		Predict struct {
			TLERefreshHours    int      `json:"tle_refresh_hours"`
			LookaheadHours     int      `json:"lookahead_hours"`
			RepredictHours     int      `json:"repredict_hours"`
			MinElevation       float64  `json:"min_elevation"`
			MinDurationSeconds int      `json:"min_duration_seconds"`
			Satellites         []string `json:"satellites"`
		} `json:"predict"`
		Notify struct {
			LeadTimeSeconds  int      `json:"lead_time_seconds"`
			PadBeforeSeconds int      `json:"pad_before_seconds"`
			PadAfterSeconds  int      `json:"pad_after_seconds"`
			Satellites       []string `json:"satellites"`
			Desktop          bool     `json:"desktop"`
		} `json:"notify"`
		Publish struct {
			MaxPasses       int  `json:"max_passes"`
			MaxPayloadBytes int  `json:"max_payload_bytes"`
			FullSchedule    bool `json:"full_schedule"`
		} `json:"publish"`
		MQTT struct {
			Enabled           bool   `json:"enabled"`
			Broker            string `json:"broker"`
			Port              int    `json:"port"`
			TopicPrefix       string `json:"topic_prefix"`
			PowerControlTopic string `json:"power_control_topic"`
		} `json:"mqtt"`
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(header("  DAEMON CONFIGURATION"))
	fmt.Println(colorize(dim, "  "+strings.Repeat("─", 50)))

	section := func(name string) {
		fmt.Printf("\n  %s\n", colorize(bold, "["+name+"]"))
	}
	field := func(key string, val any) {
		fmt.Printf("    %-22s %v\n", colorize(dim, key+":"), val)
	}
	list := func(v []string) string {
		if len(v) == 0 {
			return "(all)"
		}
		return strings.Join(v, ", ")
	}

	section("data")
	field("root", cfg.Data.Root)

	section("server")
	field("bind", cfg.Server.Bind)

	section("demo")
	field("enabled", cfg.Demo.Enabled)
	field("pass_interval_minutes", cfg.Demo.PassIntervalMinutes)

	section("observer")
	field("latitude", cfg.Observer.Latitude)
	field("longitude", cfg.Observer.Longitude)
	field("altitude", cfg.Observer.Altitude)
	field("use_gpsd", cfg.Observer.UseGPSD)
	field("gpsd_host", cfg.Observer.GPSDHost)

	section("predict")
	field("tle_refresh_hours", cfg.Predict.TLERefreshHours)
	field("lookahead_hours", cfg.Predict.LookaheadHours)
	field("repredict_hours", cfg.Predict.RepredictHours)
	field("min_elevation", cfg.Predict.MinElevation)
	field("min_duration_seconds", cfg.Predict.MinDurationSeconds)
	field("satellites", list(cfg.Predict.Satellites))

	section("notify")
	field("lead_time_seconds", cfg.Notify.LeadTimeSeconds)
	field("pad_before_seconds", cfg.Notify.PadBeforeSeconds)
	field("pad_after_seconds", cfg.Notify.PadAfterSeconds)
	field("satellites", list(cfg.Notify.Satellites))
	field("desktop", cfg.Notify.Desktop)

	section("publish")
	field("max_passes", cfg.Publish.MaxPasses)
	field("max_payload_bytes", cfg.Publish.MaxPayloadBytes)
	field("full_schedule", cfg.Publish.FullSchedule)

	section("mqtt")
	field("enabled", cfg.MQTT.Enabled)
	field("broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker, cfg.MQTT.Port))
	field("topic_prefix", cfg.MQTT.TopicPrefix)
	field("power_control_topic", cfg.MQTT.PowerControlTopic)

	fmt.Println()

	return nil
}
