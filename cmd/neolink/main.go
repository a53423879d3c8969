// Command neolink is the unified composition root: one binary, one
// subcommand per §6's CLI surface, dispatched behind a single
// flag.FlagSet-per-subcommand (SPEC_FULL.md §10.5). It replaces the
// teacher's separate cmd/relay, cmd/multi-relay, cmd/diagnose, cmd/verify
// binaries with one entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gtfodev/neolink/pkg/logger"
)

func main() {
	sub, args := "", os.Args[1:]
	if len(os.Args) >= 2 {
		sub, args = os.Args[1], os.Args[2:]
	} else if mode := os.Getenv("NEO_LINK_MODE"); mode != "" {
		// Container-style invocation: no subcommand given, fall back to
		// NEO_LINK_MODE so `docker run -e NEO_LINK_MODE=rtsp neolink` works
		// without an explicit command line.
		sub = mode
	} else {
		usage()
		os.Exit(1)
	}

	var err error
	switch sub {
	case "rtsp":
		err = runRTSP(args)
	case "mqtt":
		err = runMQTT(args)
	case "mqtt-rtsp":
		err = runMQTTRTSP(args)
	case "image":
		err = runImage(args)
	case "battery":
		err = runBattery(args)
	case "pir":
		err = runPir(args)
	case "reboot":
		err = runReboot(args)
	case "status-light":
		err = runStatusLight(args)
	case "talk":
		err = runTalk(args)
	case "ptz":
		err = runPtz(args)
	case "-h", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "neolink: unknown subcommand %q\n\n", sub)
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "neolink %s: %v\n", sub, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: neolink <subcommand> [options]

Subcommands:
  rtsp                                        run the RTSP bridge
  mqtt                                        run the MQTT bridge
  mqtt-rtsp                                   run both bridges together
  image --file-path <p> [--use-stream] <cam>  capture a still image
  battery <camera>                            query battery status
  pir <camera> on|off                         set PIR detection
  reboot <camera>                             reboot a camera
  status-light <camera> on|off                set the status LED
  talk <camera> [--adpcm-file f] [--microphone]
                                               two-way audio talk-back
  ptz <camera> control <speed> <dir> | preset [id] | assign <id> <name> | zoom <factor>
                                               pan/tilt/zoom control

All subcommands accept --config <path> (default neolink.toml).
`)
	logger.PrintUsageExamples()
}

// withSignalContext returns a context cancelled on SIGINT/SIGTERM.
func withSignalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx, cancel
}

// newLogger builds the process logger from a subcommand's registered
// logging flags, in the teacher's RegisterFlags/ToConfig/SetDefault idiom.
func newLogger(fs *flag.FlagSet, logFlags *logger.Flags) (*logger.Logger, error) {
	logCfg, err := logFlags.ToConfig()
	if err != nil {
		return nil, fmt.Errorf("configuring logger: %w", err)
	}
	log, err := logger.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger.SetDefault(log)
	return log, nil
}
