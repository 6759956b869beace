package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadLayersOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "passrelay.toml")
	raw := `
[observer]
latitude = 51.5
longitude = -0.12

[notify]
satellites = ["NOAA 19"]

[link]
mode = "mqtt"

[[recorder.commands]]
code = "200"
kind = "exec"
command = "df -h"
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Observer.Latitude != 51.5 || cfg.Observer.Longitude != -0.12 {
		t.Errorf("observer = %+v", cfg.Observer)
	}
	if cfg.Observer.Altitude != 10 {
		t.Errorf("altitude default lost: %v", cfg.Observer.Altitude)
	}
	if len(cfg.Notify.Satellites) != 1 || cfg.Notify.Codes["NOAA 19"] != 107 {
		t.Errorf("notify = %+v", cfg.Notify)
	}
	if cfg.Link.Mode != "mqtt" || cfg.Link.Baud != 9600 {
		t.Errorf("link = %+v", cfg.Link)
	}
	if len(cfg.Recorder.Commands) != 1 || cfg.Recorder.Commands[0].Command != "df -h" {
		t.Errorf("commands = %+v", cfg.Recorder.Commands)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestLoadRejectsBadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	os.WriteFile(path, []byte("[observer\nlatitude = "), 0o644)
	if _, err := Load(path); err == nil {
		t.Error("expected a parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"latitude", func(c *Config) { c.Observer.Latitude = 91 }, "observer.latitude"},
		{"min elevation", func(c *Config) { c.Predict.MinElevation = -1 }, "min_elevation"},
		{"check interval", func(c *Config) { c.Predict.CheckIntervalSeconds = 60 }, "check_interval_seconds"},
		{"lead time", func(c *Config) { c.Notify.LeadTimeSeconds = 0 }, "lead_time_seconds"},
		{"payload floor", func(c *Config) { c.Publish.MaxPayloadBytes = 100 }, "max_payload_bytes"},
		{"batch size", func(c *Config) { c.Publish.FullSchedule = true; c.Publish.BatchSize = 0 }, "batch_size"},
		{"broker", func(c *Config) { c.MQTT.Broker = "" }, "mqtt.broker"},
		{"qos", func(c *Config) { c.MQTT.QoS = 3 }, "mqtt.qos"},
		{"response len", func(c *Config) { c.Recorder.ResponseMaxLen = 0 }, "response_max_len"},
		{"command kind", func(c *Config) {
			c.Recorder.Commands = []CommandConfig{{Code: "1", Kind: "launch"}}
		}, "unknown kind"},
		{"link mode", func(c *Config) { c.Link.Mode = "usb" }, "link.mode"},
		{"mqtt link needs broker", func(c *Config) { c.Link.Mode = "mqtt"; c.MQTT.Enabled = false }, "requires mqtt.enabled"},
		{"serial port", func(c *Config) { c.Link.Port = "" }, "link.port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := Validate(cfg)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate = %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestSeconds(t *testing.T) {
	if got := Seconds(90).String(); got != "1m30s" {
		t.Errorf("Seconds(90) = %s", got)
	}
}
