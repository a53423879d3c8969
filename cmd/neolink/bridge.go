package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/gtfodev/neolink/pkg/logger"
	"github.com/gtfodev/neolink/pkg/statusapi"
)

// defaultPort returns NEO_LINK_PORT if set and valid, else 8554.
func defaultPort() int {
	if v := os.Getenv("NEO_LINK_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			return port
		}
	}
	return 8554
}

// runRTSP, runMQTT, and runMQTTRTSP all build the full registry (exercising
// discovery, BC session, and media demux for every configured camera) and
// hand off to a Publisher. Only the Publisher's collaborator is out of
// scope; everything upstream of it is real.
func runRTSP(args []string) error   { return runBridge("rtsp", args) }
func runMQTT(args []string) error   { return runBridge("mqtt", args) }
func runMQTTRTSP(args []string) error { return runBridge("mqtt-rtsp", args) }

func runBridge(kind string, args []string) error {
	fs := flag.NewFlagSet(kind, flag.ExitOnError)
	configPath := singleCameraConfigFlag(fs)
	statusAddr := fs.String("status-addr", "", "address to serve /api/cameras and /api/config on (empty disables)")
	port := fs.Int("port", defaultPort(), "port the external rtsp/mqtt collaborator listens on (NEO_LINK_PORT)")
	logFlags := logger.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	log, err := newLogger(fs, logFlags)
	if err != nil {
		return err
	}
	defer log.Close()

	ctx, cancel := withSignalContext()
	defer cancel()

	cfg, reg, manager, err := bootstrap(ctx, *configPath, log)
	if err != nil {
		return err
	}
	defer manager.Close()
	defer reg.StopAll()

	if *statusAddr != "" {
		api := statusapi.NewServer(reg, cfg, log.Logger)
		if err := api.Start(ctx, *statusAddr); err != nil {
			return fmt.Errorf("starting status API: %w", err)
		}
		defer api.Stop(context.Background())
	}

	publisher := noopPublisher{kind: kind, log: log}
	log.Info("neolink "+kind+" running", "cameras", len(cfg.Cameras), "port", *port, "pid", os.Getpid())
	return publisher.Serve(ctx, reg)
}
