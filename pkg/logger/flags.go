package logger

import (
	"flag"
	"fmt"
	"strings"
)

// Flags holds all logging-related command-line flags
type Flags struct {
	LogLevel        string
	LogFormat       string
	LogFile         string
	DebugWire       bool
	DebugUDP        bool
	DebugDiscovery  bool
	DebugSession    bool
	DebugMedia      bool
	DebugCamera     bool
	DebugAll        bool
}

// RegisterFlags registers logging flags with the given FlagSet
func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{}

	fs.StringVar(&f.LogLevel, "log-level", "info",
		"Log level: debug, info, warn, error")
	fs.StringVar(&f.LogLevel, "l", "info",
		"Log level (shorthand)")

	fs.StringVar(&f.LogFormat, "log-format", "text",
		"Log output format: text, json")

	fs.StringVar(&f.LogFile, "log-file", "",
		"Log output file path (default: stdout)")
	fs.StringVar(&f.LogFile, "o", "",
		"Log output file path (shorthand)")

	// Debug category flags
	fs.BoolVar(&f.DebugWire, "debug-wire", false,
		"Enable wire codec debugging (header decode, encryption mode)")
	fs.BoolVar(&f.DebugUDP, "debug-udp", false,
		"Enable UDP reliability layer debugging (ack, retransmit, window)")
	fs.BoolVar(&f.DebugDiscovery, "debug-discovery", false,
		"Enable discovery strategy debugging (local/remote/map/relay attempts)")
	fs.BoolVar(&f.DebugSession, "debug-session", false,
		"Enable BC session state machine debugging (login, keepalive, reply matching)")
	fs.BoolVar(&f.DebugMedia, "debug-media", false,
		"Enable media demux debugging (frame boundaries, resync)")
	fs.BoolVar(&f.DebugCamera, "debug-camera", false,
		"Enable camera supervisor debugging (reconnect, pause policy)")
	fs.BoolVar(&f.DebugAll, "debug-all", false,
		"Enable all debug categories")

	return f
}

// ToConfig converts Flags to a logger Config
func (f *Flags) ToConfig() (*Config, error) {
	cfg := NewConfig()

	// Parse log level
	level, err := ParseLevel(f.LogLevel)
	if err != nil {
		return nil, err
	}
	cfg.Level = level

	// Parse format
	format, err := ParseFormat(f.LogFormat)
	if err != nil {
		return nil, err
	}
	cfg.Format = format

	// Set output file
	cfg.OutputFile = f.LogFile

	// Enable debug categories
	if f.DebugAll {
		cfg.EnableCategory(DebugAll)
		// Force debug level when any debug category is enabled
		cfg.Level = LevelDebug
	} else {
		if f.DebugWire {
			cfg.EnableCategory(DebugWire)
			cfg.Level = LevelDebug
		}
		if f.DebugUDP {
			cfg.EnableCategory(DebugUDP)
			cfg.Level = LevelDebug
		}
		if f.DebugDiscovery {
			cfg.EnableCategory(DebugDiscovery)
			cfg.Level = LevelDebug
		}
		if f.DebugSession {
			cfg.EnableCategory(DebugSession)
			cfg.Level = LevelDebug
		}
		if f.DebugMedia {
			cfg.EnableCategory(DebugMedia)
			cfg.Level = LevelDebug
		}
		if f.DebugCamera {
			cfg.EnableCategory(DebugCamera)
			cfg.Level = LevelDebug
		}
	}

	return cfg, nil
}

// PrintUsageExamples prints usage examples for logging flags
func PrintUsageExamples() {
	examples := `
Logging Examples:

  Basic usage (INFO level, text format to stdout):
    ./neolink rtsp

  Enable DEBUG level:
    ./neolink rtsp --log-level debug
    ./neolink rtsp -l debug

  Log to file:
    ./neolink rtsp --log-file neolink.log
    ./neolink rtsp -o neolink.log

  JSON format for structured logging:
    ./neolink rtsp --log-format json -o neolink.json

  Debug the wire codec only:
    ./neolink rtsp --debug-wire

  Debug the BC session state machine only:
    ./neolink rtsp --debug-session

  Debug multiple categories:
    ./neolink rtsp --debug-wire --debug-udp --debug-session

  Debug everything:
    ./neolink rtsp --debug-all -o debug.log

  Production logging (WARN level, JSON to file):
    ./neolink rtsp -l warn --log-format json -o production.log
`
	fmt.Println(examples)
}

// String returns a string representation of enabled flags
func (f *Flags) String() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("level=%s", f.LogLevel))
	parts = append(parts, fmt.Sprintf("format=%s", f.LogFormat))

	if f.LogFile != "" {
		parts = append(parts, fmt.Sprintf("output=%s", f.LogFile))
	} else {
		parts = append(parts, "output=stdout")
	}

	var debugCategories []string
	if f.DebugAll {
		debugCategories = append(debugCategories, "all")
	} else {
		if f.DebugWire {
			debugCategories = append(debugCategories, "wire")
		}
		if f.DebugUDP {
			debugCategories = append(debugCategories, "udp")
		}
		if f.DebugDiscovery {
			debugCategories = append(debugCategories, "discovery")
		}
		if f.DebugSession {
			debugCategories = append(debugCategories, "session")
		}
		if f.DebugMedia {
			debugCategories = append(debugCategories, "media")
		}
		if f.DebugCamera {
			debugCategories = append(debugCategories, "camera")
		}
	}

	if len(debugCategories) > 0 {
		parts = append(parts, fmt.Sprintf("debug=[%s]", strings.Join(debugCategories, ",")))
	}

	return strings.Join(parts, " ")
}
