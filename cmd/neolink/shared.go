package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/gtfodev/neolink/pkg/camera"
	"github.com/gtfodev/neolink/pkg/config"
	"github.com/gtfodev/neolink/pkg/discovery"
	"github.com/gtfodev/neolink/pkg/logger"
	"github.com/gtfodev/neolink/pkg/registry"
	"github.com/gtfodev/neolink/pkg/udptransport"
)

// bootstrap loads config, builds the shared UDP manager and discovery
// engine, and starts a registry with every enabled camera. Callers are
// responsible for calling reg.StopAll() and manager.Close() on shutdown.
func bootstrap(ctx context.Context, configPath string, log *logger.Logger) (*config.Config, *registry.Registry, *udptransport.Manager, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}

	bind := cfg.Bind
	if bind == "" {
		bind = "0.0.0.0:0"
	}
	manager, err := udptransport.NewManager(ctx, bind, log.Logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("binding udp manager: %w", err)
	}

	engine := discovery.NewEngine(manager, log.Logger)
	reg := registry.New(engine, log.Logger)

	for _, cam := range cfg.Cameras {
		cc := config.ToCameraConfig(cam)
		if err := reg.Add(ctx, cc); err != nil {
			manager.Close()
			return nil, nil, nil, fmt.Errorf("registering camera %q: %w", cc.Name, err)
		}
	}

	return cfg, reg, manager, nil
}

// singleCameraConfigFlag registers --config on fs and returns a pointer to
// its value, which fs.Parse fills in.
func singleCameraConfigFlag(fs *flag.FlagSet) *string {
	return fs.String("config", "neolink.toml", "path to the toml configuration file")
}

// findCamera returns the named camera's config block, for single-camera
// CORE subcommands (battery, pir, reboot, status-light, ptz) that do not
// need the full registry.
func findCamera(cfg *config.Config, name string) (camera.Config, error) {
	for _, cam := range cfg.Cameras {
		if cam.Name == name {
			return config.ToCameraConfig(cam), nil
		}
	}
	return camera.Config{}, fmt.Errorf("camera %q not found in config", name)
}

// waitReady blocks until sup reaches StateConnected, StateDisabled, or ctx
// is cancelled, returning an error in the latter case.
func waitReady(ctx context.Context, sup *camera.Supervisor) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		switch sup.State() {
		case camera.StateConnected, camera.StateDisabled:
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
