// Package config handles loading, defaulting, and validation of the passrelay
// TOML configuration file. Both daemons read the same file; trackerd uses the
// prediction and notification sections, stationd the recorder, link, upload,
// and power sections. Every section maps to a typed struct so the rest of the
// codebase gets strong typing without manual key lookups.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the top-level configuration, mirroring the TOML sections.
type Config struct {
	Data     DataConfig     `toml:"data"     json:"data"`
	Logging  LoggingConfig  `toml:"logging"  json:"logging"`
	Server   ServerConfig   `toml:"server"   json:"server"`
	Demo     DemoConfig     `toml:"demo"     json:"demo"`
	Observer ObserverConfig `toml:"observer" json:"observer"`
	Predict  PredictConfig  `toml:"predict"  json:"predict"`
	Priority PriorityConfig `toml:"priority" json:"priority"`
	Notify   NotifyConfig   `toml:"notify"   json:"notify"`
	Publish  PublishConfig  `toml:"publish"  json:"publish"`
	MQTT     MQTTConfig     `toml:"mqtt"     json:"mqtt"`
	Recorder RecorderConfig `toml:"recorder" json:"recorder"`
	Link     LinkConfig     `toml:"link"     json:"link"`
	Upload   UploadConfig   `toml:"upload"   json:"upload"`
	Power    PowerConfig    `toml:"power"    json:"power"`
}

type DataConfig struct {
	Root string `toml:"root" json:"root"`
}

type LoggingConfig struct {
	Level string `toml:"level" json:"level"`
	File  string `toml:"file"  json:"file"`
}

type ServerConfig struct {
	Bind        string `toml:"bind"         json:"bind"`
	StationBind string `toml:"station_bind" json:"station_bind"`
}

// DemoConfig swaps SGP4 propagation for a synthetic orbit model so the whole
// pipeline can run without TLE data or network access.
type DemoConfig struct {
	Enabled             bool `toml:"enabled"               json:"enabled"`
	PassIntervalMinutes int  `toml:"pass_interval_minutes" json:"pass_interval_minutes"`
}

type ObserverConfig struct {
	Latitude  float64 `toml:"latitude"  json:"latitude"`
	Longitude float64 `toml:"longitude" json:"longitude"`
	Altitude  float64 `toml:"altitude"  json:"altitude"`
	UseGPSD   bool    `toml:"use_gpsd"  json:"use_gpsd"`
	GPSDHost  string  `toml:"gpsd_host" json:"gpsd_host"`
}

// TLESource is one CelesTrak group (or any URL serving 3-line TLE text).
type TLESource struct {
	Name string `toml:"name" json:"name"`
	URL  string `toml:"url"  json:"url"`
}

type PredictConfig struct {
	TLESources           []TLESource        `toml:"tle_sources"            json:"tle_sources"`
	TLERefreshHours      int                `toml:"tle_refresh_hours"      json:"tle_refresh_hours"`
	LookaheadHours       int                `toml:"lookahead_hours"        json:"lookahead_hours"`
	RepredictHours       int                `toml:"repredict_hours"        json:"repredict_hours"`
	CheckIntervalSeconds int                `toml:"check_interval_seconds" json:"check_interval_seconds"`
	MinElevation         float64            `toml:"min_elevation"          json:"min_elevation"`
	MinDurationSeconds   int                `toml:"min_duration_seconds"   json:"min_duration_seconds"`
	MaxElementAgeDays    int                `toml:"max_element_age_days"   json:"max_element_age_days"`
	Satellites           []string           `toml:"satellites"             json:"satellites"`
	Categories           map[string]bool    `toml:"categories"             json:"categories"`
	Frequencies          map[string]float64 `toml:"frequencies"            json:"frequencies"`
}

// PriorityConfig holds the tunable weights of the pass priority score.
type PriorityConfig struct {
	ExcellentElevation float64            `toml:"excellent_elevation" json:"excellent_elevation"`
	LongPassMinutes    float64            `toml:"long_pass_minutes"   json:"long_pass_minutes"`
	ElevationWeight    float64            `toml:"elevation_weight"    json:"elevation_weight"`
	DurationWeight     float64            `toml:"duration_weight"     json:"duration_weight"`
	Multipliers        map[string]float64 `toml:"multipliers"         json:"multipliers"`
}

type NotifyConfig struct {
	LeadTimeSeconds  int            `toml:"lead_time_seconds"  json:"lead_time_seconds"`
	PadBeforeSeconds int            `toml:"pad_before_seconds" json:"pad_before_seconds"`
	PadAfterSeconds  int            `toml:"pad_after_seconds"  json:"pad_after_seconds"`
	Satellites       []string       `toml:"satellites"         json:"satellites"`
	Codes            map[string]int `toml:"codes"              json:"codes"`
	Desktop          bool           `toml:"desktop"            json:"desktop"`
}

// PublishConfig bounds the schedule snapshot. With FullSchedule set the
// whole pass list is additionally published in BatchSize chunks under
// <prefix>schedule/full/batch followed by <prefix>schedule/full/complete.
type PublishConfig struct {
	MaxPasses       int  `toml:"max_passes"        json:"max_passes"`
	MaxPayloadBytes int  `toml:"max_payload_bytes" json:"max_payload_bytes"`
	FullSchedule    bool `toml:"full_schedule"     json:"full_schedule"`
	BatchSize       int  `toml:"batch_size"        json:"batch_size"`
}

type MQTTConfig struct {
	Enabled                  bool   `toml:"enabled"                     json:"enabled"`
	Broker                   string `toml:"broker"                      json:"broker"`
	Port                     int    `toml:"port"                        json:"port"`
	Username                 string `toml:"username"                    json:"username"`
	Password                 string `toml:"password"                    json:"-"`
	TLS                      bool   `toml:"tls"                         json:"tls"`
	TopicPrefix              string `toml:"topic_prefix"                json:"topic_prefix"`
	ClientID                 string `toml:"client_id"                   json:"client_id"`
	PowerControlTopic        string `toml:"power_control_topic"         json:"power_control_topic"`
	KeepaliveSeconds         int    `toml:"keepalive_seconds"           json:"keepalive_seconds"`
	QoS                      int    `toml:"qos"                         json:"qos"`
	MaxReconnectDelaySeconds int    `toml:"max_reconnect_delay_seconds" json:"max_reconnect_delay_seconds"`
	MaxReconnects            int    `toml:"max_reconnects"              json:"max_reconnects"`
	PublishTimeoutSeconds    int    `toml:"publish_timeout_seconds"     json:"publish_timeout_seconds"`
}

// CommandConfig is one row of the station command table. Kind is one of
// "exec", "capture", or "shutdown".
type CommandConfig struct {
	Code       string `toml:"code"        json:"code"`
	Kind       string `toml:"kind"        json:"kind"`
	Command    string `toml:"command"     json:"command"`
	Response   string `toml:"response"    json:"response"`
	OutputFile string `toml:"output_file" json:"output_file"`
}

type RecorderConfig struct {
	RecordingsDir          string          `toml:"recordings_dir"           json:"recordings_dir"`
	DefaultDurationSeconds int             `toml:"default_duration_seconds" json:"default_duration_seconds"`
	SettleDelaySeconds     int             `toml:"settle_delay_seconds"     json:"settle_delay_seconds"`
	ExecTimeoutSeconds     int             `toml:"exec_timeout_seconds"     json:"exec_timeout_seconds"`
	ResponseMaxLen         int             `toml:"response_max_len"         json:"response_max_len"`
	Commands               []CommandConfig `toml:"commands"                 json:"commands"`
}

// LinkConfig selects where stationd reads command lines from: a serial port
// wired to the power controller, or a broker bridge.
type LinkConfig struct {
	Mode string `toml:"mode" json:"mode"`
	Port string `toml:"port" json:"port"`
	Baud int    `toml:"baud" json:"baud"`
}

type UploadConfig struct {
	Enabled              bool     `toml:"enabled"                json:"enabled"`
	RclonePath           string   `toml:"rclone_path"            json:"rclone_path"`
	Remote               string   `toml:"remote"                 json:"remote"`
	Folder               string   `toml:"folder"                 json:"folder"`
	ExtraArgs            []string `toml:"extra_args"             json:"extra_args"`
	DeleteAfterUpload    bool     `toml:"delete_after_upload"    json:"delete_after_upload"`
	ShutdownAfterUpload  bool     `toml:"shutdown_after_upload"  json:"shutdown_after_upload"`
	ShutdownGraceSeconds int      `toml:"shutdown_grace_seconds" json:"shutdown_grace_seconds"`
	TimeoutMinutes       int      `toml:"timeout_minutes"        json:"timeout_minutes"`
}

type PowerConfig struct {
	ShutdownCommand        string `toml:"shutdown_command"         json:"shutdown_command"`
	DelayedShutdownCommand string `toml:"delayed_shutdown_command" json:"delayed_shutdown_command"`
	DryRun                 bool   `toml:"dry_run"                  json:"dry_run"`
}

// Default returns a Config populated with sane defaults. Values here are
// used whenever the TOML file omits a field.
func Default() Config {
	return Config{
		Data: DataConfig{
			Root: "/var/lib/passrelay",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Bind:        "0.0.0.0:8080",
			StationBind: "0.0.0.0:8081",
		},
		Demo: DemoConfig{
			Enabled:             false,
			PassIntervalMinutes: 10,
		},
		Observer: ObserverConfig{
			Latitude:  40.699484,
			Longitude: -73.974255,
			Altitude:  10,
			GPSDHost:  "localhost:2947",
		},
		Predict: PredictConfig{
			TLESources: []TLESource{
				{Name: "weather", URL: "https://celestrak.org/NORAD/elements/gp.php?GROUP=weather&FORMAT=tle"},
				{Name: "noaa", URL: "https://celestrak.org/NORAD/elements/gp.php?GROUP=noaa&FORMAT=tle"},
				{Name: "amateur", URL: "https://celestrak.org/NORAD/elements/gp.php?GROUP=amateur&FORMAT=tle"},
				{Name: "stations", URL: "https://celestrak.org/NORAD/elements/gp.php?GROUP=stations&FORMAT=tle"},
				{Name: "goes", URL: "https://celestrak.org/NORAD/elements/gp.php?GROUP=goes&FORMAT=tle"},
			},
			TLERefreshHours:      24,
			LookaheadHours:       24,
			RepredictHours:       6,
			CheckIntervalSeconds: 30,
			MinElevation:         20,
			MinDurationSeconds:   300,
			MaxElementAgeDays:    14,
			Categories: map[string]bool{
				"weather":     true,
				"polar":       true,
				"station":     true,
				"amateur":     true,
				"specialized": false,
				"other":       false,
			},
			Frequencies: map[string]float64{
				"NOAA 15":     137.62e6,
				"NOAA 18":     137.9125e6,
				"NOAA 19":     137.1e6,
				"METEOR-M 2":  137.1e6,
				"METEOR-M2 2": 137.9e6,
				"ISS (ZARYA)": 145.8e6,
				"AO-91":       145.96e6,
				"AO-92":       145.88e6,
				"SO-50":       436.795e6,
			},
		},
		Priority: PriorityConfig{
			ExcellentElevation: 90,
			LongPassMinutes:    20,
			ElevationWeight:    0.6,
			DurationWeight:     0.4,
			Multipliers: map[string]float64{
				"weather":     1.2,
				"polar":       1.5,
				"station":     1.3,
				"amateur":     1.0,
				"specialized": 0.8,
				"other":       0.7,
			},
		},
		Notify: NotifyConfig{
			LeadTimeSeconds:  120,
			PadBeforeSeconds: 120,
			PadAfterSeconds:  60,
			Codes: map[string]int{
				"NOAA 15":     105,
				"NOAA 18":     106,
				"NOAA 19":     107,
				"ISS (ZARYA)": 108,
			},
		},
		Publish: PublishConfig{
			MaxPasses:       15,
			MaxPayloadBytes: 65000,
			BatchSize:       10,
		},
		MQTT: MQTTConfig{
			Enabled:                  true,
			Broker:                   "localhost",
			Port:                     1883,
			TopicPrefix:              "satellite/",
			ClientID:                 "sat_tracker",
			PowerControlTopic:        "arduino/power",
			KeepaliveSeconds:         120,
			QoS:                      0,
			MaxReconnectDelaySeconds: 120,
			MaxReconnects:            20,
			PublishTimeoutSeconds:    5,
		},
		Recorder: RecorderConfig{
			RecordingsDir:          "/var/lib/passrelay/recordings",
			DefaultDurationSeconds: 900,
			SettleDelaySeconds:     2,
			ExecTimeoutSeconds:     5,
			ResponseMaxLen:         50,
		},
		Link: LinkConfig{
			Mode: "serial",
			Port: "/dev/ttyS0",
			Baud: 9600,
		},
		Upload: UploadConfig{
			Enabled:              true,
			RclonePath:           "rclone",
			Remote:               "gdrive:",
			Folder:               "PiShare",
			ExtraArgs:            []string{"--drive-shared-with-me"},
			DeleteAfterUpload:    true,
			ShutdownAfterUpload:  true,
			ShutdownGraceSeconds: 2,
			TimeoutMinutes:       30,
		},
		Power: PowerConfig{
			ShutdownCommand:        "sudo shutdown -h now",
			DelayedShutdownCommand: "sudo shutdown -h +1",
		},
	}
}

// Load reads the TOML file at path, layers it on top of the defaults, and
// validates the result. An error is returned if the file can't be read,
// parsed, or if any constraint is violated.
func Load(path string) (Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := toml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}

	if err := Validate(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// minPayloadBytes is large enough for an empty schedule envelope, so the
// emitter can always produce something that fits.
const minPayloadBytes = 256

// Validate checks every constraint the daemons rely on.
func Validate(cfg Config) error {
	if cfg.Data.Root == "" {
		return errors.New("data.root must not be empty")
	}
	if cfg.Observer.Latitude < -90 || cfg.Observer.Latitude > 90 {
		return errors.New("observer.latitude must be between -90 and 90")
	}
	if cfg.Observer.Longitude < -180 || cfg.Observer.Longitude > 180 {
		return errors.New("observer.longitude must be between -180 and 180")
	}
	if cfg.Predict.MinElevation < 0 || cfg.Predict.MinElevation > 90 {
		return errors.New("predict.min_elevation must be between 0 and 90")
	}
	if cfg.Predict.MinDurationSeconds < 0 {
		return errors.New("predict.min_duration_seconds must be >= 0")
	}
	if cfg.Predict.TLERefreshHours < 1 {
		return errors.New("predict.tle_refresh_hours must be >= 1")
	}
	if cfg.Predict.LookaheadHours < 1 {
		return errors.New("predict.lookahead_hours must be >= 1")
	}
	if cfg.Predict.RepredictHours < 1 {
		return errors.New("predict.repredict_hours must be >= 1")
	}
	if cfg.Predict.CheckIntervalSeconds < 1 || cfg.Predict.CheckIntervalSeconds >= 60 {
		return errors.New("predict.check_interval_seconds must be between 1 and 59")
	}
	if cfg.Priority.ExcellentElevation <= 0 {
		return errors.New("priority.excellent_elevation must be > 0")
	}
	if cfg.Priority.LongPassMinutes <= 0 {
		return errors.New("priority.long_pass_minutes must be > 0")
	}
	if cfg.Priority.ElevationWeight < 0 || cfg.Priority.DurationWeight < 0 {
		return errors.New("priority weights must be >= 0")
	}
	if cfg.Notify.LeadTimeSeconds < 1 {
		return errors.New("notify.lead_time_seconds must be >= 1")
	}
	if cfg.Notify.PadBeforeSeconds < 0 || cfg.Notify.PadAfterSeconds < 0 {
		return errors.New("notify padding must be >= 0")
	}
	if cfg.Publish.MaxPasses < 0 {
		return errors.New("publish.max_passes must be >= 0")
	}
	if cfg.Publish.MaxPayloadBytes < minPayloadBytes {
		return fmt.Errorf("publish.max_payload_bytes must be >= %d", minPayloadBytes)
	}
	if cfg.Publish.FullSchedule && cfg.Publish.BatchSize < 1 {
		return errors.New("publish.batch_size must be >= 1")
	}
	if cfg.MQTT.Enabled {
		if cfg.MQTT.Broker == "" {
			return errors.New("mqtt.broker must not be empty when mqtt is enabled")
		}
		if cfg.MQTT.QoS < 0 || cfg.MQTT.QoS > 2 {
			return errors.New("mqtt.qos must be 0, 1, or 2")
		}
		if cfg.MQTT.MaxReconnects < 0 {
			return errors.New("mqtt.max_reconnects must be >= 0")
		}
	}
	if cfg.Recorder.RecordingsDir == "" {
		return errors.New("recorder.recordings_dir must not be empty")
	}
	if cfg.Recorder.DefaultDurationSeconds < 1 {
		return errors.New("recorder.default_duration_seconds must be >= 1")
	}
	if cfg.Recorder.ExecTimeoutSeconds < 1 {
		return errors.New("recorder.exec_timeout_seconds must be >= 1")
	}
	if cfg.Recorder.ResponseMaxLen < 1 {
		return errors.New("recorder.response_max_len must be >= 1")
	}
	for _, c := range cfg.Recorder.Commands {
		if c.Code == "" {
			return errors.New("recorder.commands: code must not be empty")
		}
		switch c.Kind {
		case "exec", "capture", "shutdown":
		default:
			return fmt.Errorf("recorder.commands %s: unknown kind %q", c.Code, c.Kind)
		}
	}
	switch cfg.Link.Mode {
	case "serial":
		if cfg.Link.Port == "" {
			return errors.New("link.port must not be empty in serial mode")
		}
		if cfg.Link.Baud <= 0 {
			return errors.New("link.baud must be > 0")
		}
	case "mqtt":
		if !cfg.MQTT.Enabled {
			return errors.New("link.mode mqtt requires mqtt.enabled")
		}
	default:
		return fmt.Errorf("link.mode must be serial or mqtt, got %q", cfg.Link.Mode)
	}
	return nil
}

// Seconds converts an integer config value to a time.Duration.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
