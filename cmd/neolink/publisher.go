package main

import (
	"context"

	"github.com/gtfodev/neolink/pkg/logger"
	"github.com/gtfodev/neolink/pkg/registry"
)

// Publisher is the contract boundary between CORE (discovery, BC session,
// media demux, camera supervision — all fully built and exercised by the
// subcommands below) and an external RTSP/MQTT server implementation,
// which is outside this build's scope (SPEC_FULL.md §10.5).
type Publisher interface {
	// Serve runs until ctx is cancelled, publishing every registered
	// camera's media.Hub and handling incoming control traffic.
	Serve(ctx context.Context, reg *registry.Registry) error
}

// noopPublisher is the default Publisher: it logs that the collaborator
// is out of scope and returns once ctx is cancelled, so `neolink rtsp`
// still exercises discovery, login, and media demux for every configured
// camera without requiring a real RTSP server.
type noopPublisher struct {
	kind string
	log  *logger.Logger
}

func (p noopPublisher) Serve(ctx context.Context, reg *registry.Registry) error {
	p.log.Info(p.kind+" bridge is outside this build's scope; cameras are connected and demuxing, waiting for shutdown", "cameras", len(reg.Names()))
	<-ctx.Done()
	return nil
}
