// Package config loads and validates the toml configuration file
// describing the MQTT broker and the set of cameras to supervise
// (SPEC_FULL.md §6, §10.2).
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/gtfodev/neolink/pkg/camera"
	"github.com/gtfodev/neolink/pkg/discovery"
)

// Config is the top-level decoded document.
type Config struct {
	Bind    string   `toml:"bind"`
	MQTT    *MQTT    `toml:"mqtt"`
	Cameras []Camera `toml:"cameras"`
}

// MQTT describes the broker connection used by the mqtt/mqtt-rtsp
// subcommands.
type MQTT struct {
	BrokerAddr string `toml:"broker_addr"`
	Port       int    `toml:"port"`
	Username   string `toml:"username"`
	Password   string `toml:"password"`
}

// Camera is one `[[cameras]]` block.
type Camera struct {
	Name     string `toml:"name"`
	Username string `toml:"username"`
	Password string `toml:"password"`

	UID     string `toml:"uid"`
	Address string `toml:"address"`

	Discovery string `toml:"discovery"`
	Stream    string `toml:"stream"`

	Debug             bool   `toml:"debug"`
	Enabled           bool   `toml:"enabled"`
	UpdateTime        bool   `toml:"update_time"`
	PrintFormat       string `toml:"print_format"`
	IdleDisconnect    bool   `toml:"idle_disconnect"`
	PushNotifications bool   `toml:"push_notifications"`

	Pause CameraPause `toml:"pause"`
	MQTT  CameraMQTT  `toml:"mqtt"`
}

// CameraPause is the `[cameras.pause]` block.
type CameraPause struct {
	OnMotion bool     `toml:"on_motion"`
	OnClient bool     `toml:"on_client"`
	Timeout  Duration `toml:"timeout"`
}

// Duration parses toml string values like "30s" via UnmarshalText, since
// BurntSushi/toml has no native duration type.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) String() string { return time.Duration(d).String() }

// CameraMQTT is the `[cameras.mqtt]` feature-toggle block.
type CameraMQTT struct {
	EnableMotion     bool `toml:"enable_motion"`
	EnableLight      bool `toml:"enable_light"`
	EnableBattery    bool `toml:"enable_battery"`
	EnablePreview    bool `toml:"enable_preview"`
	EnableFloodlight bool `toml:"enable_floodlight"`

	BatteryUpdateMs    int `toml:"battery_update"`
	PreviewUpdateMs    int `toml:"preview_update"`
	FloodlightUpdateMs int `toml:"floodlight_update"`

	Discovery CameraMQTTDiscovery `toml:"discovery"`
}

// CameraMQTTDiscovery is the `[cameras.mqtt.discovery]` block controlling
// Home Assistant MQTT discovery payloads.
type CameraMQTTDiscovery struct {
	Topic    string   `toml:"topic"`
	Features []string `toml:"features"`
}

// Error wraps a configuration problem: invalid toml or a failed
// validation rule (SPEC_FULL.md §7's ConfigError taxonomy).
type Error struct {
	Msg string
	Err error
}

func (e *Error) Error() string { return e.Msg }
func (e *Error) Unwrap() error { return e.Err }

// Load reads and validates the toml file at path.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, &Error{Msg: fmt.Sprintf("config: parse %s: %v", path, err), Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the required fields and invariants of §6: every camera
// needs a name and exactly one of uid/address, and non-negative pause
// timeouts.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Cameras))
	for i := range c.Cameras {
		cam := &c.Cameras[i]
		if cam.Name == "" {
			return &Error{Msg: fmt.Sprintf("config: cameras[%d]: missing name", i)}
		}
		if seen[cam.Name] {
			return &Error{Msg: fmt.Sprintf("config: duplicate camera name %q", cam.Name)}
		}
		seen[cam.Name] = true

		if (cam.UID == "") == (cam.Address == "") {
			return &Error{Msg: fmt.Sprintf("config: camera %q: exactly one of uid/address is required", cam.Name)}
		}
		if cam.Pause.Timeout < 0 {
			return &Error{Msg: fmt.Sprintf("config: camera %q: pause.timeout must be >= 0", cam.Name)}
		}
		if _, err := parseStrategy(cam.Discovery); err != nil {
			return &Error{Msg: fmt.Sprintf("config: camera %q: %v", cam.Name, err)}
		}
		if _, err := parseStream(cam.Stream); err != nil {
			return &Error{Msg: fmt.Sprintf("config: camera %q: %v", cam.Name, err)}
		}
	}
	return nil
}

func parseStrategy(s string) (discovery.Strategy, error) {
	switch s {
	case "", "local":
		return discovery.StrategyLocal, nil
	case "remote":
		return discovery.StrategyRemote, nil
	case "map":
		return discovery.StrategyMap, nil
	case "relay":
		return discovery.StrategyRelay, nil
	case "cellular":
		return discovery.StrategyCellular, nil
	default:
		return "", fmt.Errorf("unknown discovery strategy %q", s)
	}
}

func parseStream(s string) (camera.StreamKind, error) {
	switch s {
	case "", "Main":
		return camera.StreamMain, nil
	case "Sub":
		return camera.StreamSub, nil
	case "Third":
		return camera.StreamThird, nil
	case "None":
		return camera.StreamNone, nil
	default:
		return "", fmt.Errorf("unknown stream kind %q", s)
	}
}

// ToCameraConfig converts a decoded `[[cameras]]` block into the typed
// camera.Config the supervisor consumes. Validate must have already
// succeeded; the strategy/stream parse errors are ignored here since they
// were already checked.
func ToCameraConfig(cam Camera) camera.Config {
	strategy, _ := parseStrategy(cam.Discovery)
	stream, _ := parseStream(cam.Stream)
	return camera.Config{
		Name:           cam.Name,
		Username:       cam.Username,
		Password:       cam.Password,
		UID:            cam.UID,
		Address:        cam.Address,
		Discovery:      strategy,
		Stream:         stream,
		Debug:          cam.Debug,
		Enabled:        cam.Enabled,
		IdleDisconnect: cam.IdleDisconnect,
		Pause: camera.PausePolicy{
			OnMotion: cam.Pause.OnMotion,
			OnClient: cam.Pause.OnClient,
			Timeout:  time.Duration(cam.Pause.Timeout),
		},
	}
}
