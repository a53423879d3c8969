// Package camera implements the per-camera supervisor actor: login,
// subscription management, pause/idle policy, and control/query dispatch
// (SPEC_FULL.md §4.6).
package camera

import (
	"time"

	"github.com/gtfodev/neolink/pkg/discovery"
)

// StreamKind selects which camera stream a subscriber wants.
type StreamKind string

const (
	StreamMain  StreamKind = "Main"
	StreamSub   StreamKind = "Sub"
	StreamThird StreamKind = "Third"
	StreamNone  StreamKind = "None"
)

// PausePolicy controls when the supervisor keeps the upstream <Preview>
// subscription alive versus pausing it (SPEC_FULL.md §4.6).
type PausePolicy struct {
	OnMotion bool
	OnClient bool
	Timeout  time.Duration
}

// Config is one camera's static configuration, matching the `[[cameras]]`
// TOML block of SPEC_FULL.md §6.
type Config struct {
	Name     string
	Username string
	Password string

	UID     string
	Address string

	Discovery discovery.Strategy
	Stream    StreamKind

	Debug          bool
	Enabled        bool
	IdleDisconnect bool
	Pause          PausePolicy
}
