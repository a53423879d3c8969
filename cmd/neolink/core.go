package main

import (
	"context"
	"flag"
	"fmt"
	"strconv"

	"github.com/gtfodev/neolink/pkg/camera"
	"github.com/gtfodev/neolink/pkg/config"
	"github.com/gtfodev/neolink/pkg/discovery"
	"github.com/gtfodev/neolink/pkg/logger"
	"github.com/gtfodev/neolink/pkg/udptransport"
)

// runSingleCamera loads cfg, finds the named camera, starts a standalone
// supervisor for just that camera (these subcommands issue one request
// and exit, so there is no need to start every camera in the config),
// waits for it to connect, runs fn, then stops the supervisor.
func runSingleCamera(ctx context.Context, configPath, name string, log *logger.Logger, fn func(ctx context.Context, sup *camera.Supervisor) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	camCfg, err := findCamera(cfg, name)
	if err != nil {
		return err
	}
	camCfg.Enabled = true

	bind := cfg.Bind
	if bind == "" {
		bind = "0.0.0.0:0"
	}
	manager, err := udptransport.NewManager(ctx, bind, log.Logger)
	if err != nil {
		return fmt.Errorf("binding udp manager: %w", err)
	}
	defer manager.Close()

	engine := discovery.NewEngine(manager, log.Logger)
	sup := camera.New(ctx, camCfg, engine, log.Logger)
	go sup.Run()
	defer sup.Stop()

	if err := waitReady(ctx, sup); err != nil {
		return fmt.Errorf("waiting for %s to connect: %w", name, err)
	}
	if sup.State() != camera.StateConnected {
		return fmt.Errorf("camera %q is disabled", name)
	}
	return fn(ctx, sup)
}

func runBattery(args []string) error {
	fs := flag.NewFlagSet("battery", flag.ExitOnError)
	configPath := singleCameraConfigFlag(fs)
	logFlags := logger.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: neolink battery <camera>")
	}
	log, err := newLogger(fs, logFlags)
	if err != nil {
		return err
	}
	defer log.Close()

	ctx, cancel := withSignalContext()
	defer cancel()
	return runSingleCamera(ctx, *configPath, fs.Arg(0), log, func(ctx context.Context, sup *camera.Supervisor) error {
		payload, err := sup.Query(ctx, camera.QueryBattery)
		if err != nil {
			return err
		}
		percent, voltage, err := camera.ParseBatteryInfo(payload)
		if err != nil {
			return err
		}
		fmt.Printf("battery: %d%% (%.2fV)\n", percent, voltage)
		return nil
	})
}

func runPir(args []string) error {
	fs := flag.NewFlagSet("pir", flag.ExitOnError)
	configPath := singleCameraConfigFlag(fs)
	logFlags := logger.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("usage: neolink pir <camera> on|off")
	}
	on, err := parseOnOff(fs.Arg(1))
	if err != nil {
		return err
	}
	log, err := newLogger(fs, logFlags)
	if err != nil {
		return err
	}
	defer log.Close()

	ctx, cancel := withSignalContext()
	defer cancel()
	return runSingleCamera(ctx, *configPath, fs.Arg(0), log, func(ctx context.Context, sup *camera.Supervisor) error {
		kind := camera.ControlPirOff
		if on {
			kind = camera.ControlPirOn
		}
		return sup.Control(ctx, camera.ControlRequest{Kind: kind})
	})
}

func runReboot(args []string) error {
	fs := flag.NewFlagSet("reboot", flag.ExitOnError)
	configPath := singleCameraConfigFlag(fs)
	logFlags := logger.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: neolink reboot <camera>")
	}
	log, err := newLogger(fs, logFlags)
	if err != nil {
		return err
	}
	defer log.Close()

	ctx, cancel := withSignalContext()
	defer cancel()
	return runSingleCamera(ctx, *configPath, fs.Arg(0), log, func(ctx context.Context, sup *camera.Supervisor) error {
		return sup.Control(ctx, camera.ControlRequest{Kind: camera.ControlReboot})
	})
}

func runStatusLight(args []string) error {
	fs := flag.NewFlagSet("status-light", flag.ExitOnError)
	configPath := singleCameraConfigFlag(fs)
	logFlags := logger.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("usage: neolink status-light <camera> on|off")
	}
	on, err := parseOnOff(fs.Arg(1))
	if err != nil {
		return err
	}
	log, err := newLogger(fs, logFlags)
	if err != nil {
		return err
	}
	defer log.Close()

	ctx, cancel := withSignalContext()
	defer cancel()
	return runSingleCamera(ctx, *configPath, fs.Arg(0), log, func(ctx context.Context, sup *camera.Supervisor) error {
		kind := camera.ControlLedOff
		if on {
			kind = camera.ControlLedOn
		}
		return sup.Control(ctx, camera.ControlRequest{Kind: kind})
	})
}

func runPtz(args []string) error {
	fs := flag.NewFlagSet("ptz", flag.ExitOnError)
	configPath := singleCameraConfigFlag(fs)
	logFlags := logger.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return fmt.Errorf("usage: neolink ptz <camera> control <speed> <dir> | preset [id] | assign <id> <name> | zoom <factor>")
	}
	name := fs.Arg(0)
	op := fs.Arg(1)
	rest := fs.Args()[2:]

	req, err := buildPtzRequest(op, rest)
	if err != nil {
		return err
	}

	log, err := newLogger(fs, logFlags)
	if err != nil {
		return err
	}
	defer log.Close()

	ctx, cancel := withSignalContext()
	defer cancel()
	return runSingleCamera(ctx, *configPath, name, log, func(ctx context.Context, sup *camera.Supervisor) error {
		return sup.Control(ctx, req)
	})
}

func buildPtzRequest(op string, rest []string) (camera.ControlRequest, error) {
	switch op {
	case "control":
		if len(rest) != 2 {
			return camera.ControlRequest{}, fmt.Errorf("usage: neolink ptz <camera> control <speed> <dir>")
		}
		speed, err := strconv.Atoi(rest[0])
		if err != nil {
			return camera.ControlRequest{}, fmt.Errorf("invalid speed %q: %w", rest[0], err)
		}
		return camera.ControlRequest{Kind: camera.ControlPtzMove, PtzSpeed: speed, PtzDirection: rest[1]}, nil
	case "preset":
		id := 0
		if len(rest) == 1 {
			parsed, err := strconv.Atoi(rest[0])
			if err != nil {
				return camera.ControlRequest{}, fmt.Errorf("invalid preset id %q: %w", rest[0], err)
			}
			id = parsed
		}
		return camera.ControlRequest{Kind: camera.ControlPtzPreset, PresetID: id}, nil
	case "assign":
		if len(rest) != 2 {
			return camera.ControlRequest{}, fmt.Errorf("usage: neolink ptz <camera> assign <id> <name>")
		}
		id, err := strconv.Atoi(rest[0])
		if err != nil {
			return camera.ControlRequest{}, fmt.Errorf("invalid preset id %q: %w", rest[0], err)
		}
		return camera.ControlRequest{Kind: camera.ControlPtzAssign, PresetID: id, PresetName: rest[1]}, nil
	case "zoom":
		if len(rest) != 1 {
			return camera.ControlRequest{}, fmt.Errorf("usage: neolink ptz <camera> zoom <factor>")
		}
		factor, err := strconv.ParseFloat(rest[0], 64)
		if err != nil {
			return camera.ControlRequest{}, fmt.Errorf("invalid zoom factor %q: %w", rest[0], err)
		}
		return camera.ControlRequest{Kind: camera.ControlZoom, ZoomFactor: factor}, nil
	default:
		return camera.ControlRequest{}, fmt.Errorf("unknown ptz operation %q", op)
	}
}

func parseOnOff(s string) (bool, error) {
	switch s {
	case "on":
		return true, nil
	case "off":
		return false, nil
	default:
		return false, fmt.Errorf("expected on|off, got %q", s)
	}
}
