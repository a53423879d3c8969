package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/gtfodev/neolink/pkg/udptransport"
)

const (
	localTimeout  = 3 * time.Second
	remoteTimeout = 5 * time.Second
	mapWaitTime   = 30 * time.Second
	relayTimeout  = 5 * time.Second

	// vendorRateLimit throttles outbound requests to any single vendor
	// discovery server (SPEC_FULL.md §4.3).
	vendorRateLimit = 5
	vendorRateBurst = 1
)

// Config describes one camera's discovery parameters.
type Config struct {
	UID           string
	Address       string // host:port, enables the "direct" shortcut
	Strategy      Strategy
	VendorServers []string
}

// Binding is an established transport ready to be wrapped by bcsession.
type Binding struct {
	Session    *udptransport.Session
	RemoteAddr net.Addr
	SID        uint32
	DeviceID   []byte
}

// Engine runs the local/direct/remote/map/relay strategy chain.
type Engine struct {
	manager *udptransport.Manager
	logger  *slog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewEngine builds a discovery engine over an already-bound UDP manager.
func NewEngine(manager *udptransport.Manager, logger *slog.Logger) *Engine {
	return &Engine{manager: manager, logger: logger, limiters: make(map[string]*rate.Limiter)}
}

func (e *Engine) limiterFor(server string) *rate.Limiter {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.limiters[server]
	if !ok {
		l = rate.NewLimiter(rate.Limit(vendorRateLimit), vendorRateBurst)
		e.limiters[server] = l
	}
	return l
}

// Discover walks the strategy chain for cfg and returns the first
// established binding, or DiscoveryError{Unreachable} if every strategy
// fails.
func (e *Engine) Discover(ctx context.Context, cfg Config) (*Binding, error) {
	if len(cfg.VendorServers) == 0 {
		cfg.VendorServers = DefaultVendorServers
	}
	attempts := order(cfg.Strategy, cfg.Address != "")

	var lastErr error
	for _, kind := range attempts {
		b, err := e.attempt(ctx, kind, cfg)
		if err == nil {
			if e.logger != nil {
				e.logger.Info("discovery succeeded", "uid", cfg.UID, "strategy", kind)
			}
			return b, nil
		}
		lastErr = err
		if e.logger != nil {
			e.logger.Warn("discovery strategy failed", "uid", cfg.UID, "strategy", kind, "error", err)
		}
		if ctx.Err() != nil {
			break
		}
	}
	return nil, errUnreachable(lastErr)
}

func (e *Engine) attempt(ctx context.Context, kind string, cfg Config) (*Binding, error) {
	switch kind {
	case "direct":
		return e.attemptDirect(ctx, cfg)
	case "local":
		return e.attemptLocal(ctx, cfg)
	case "remote":
		return e.attemptRemote(ctx, cfg)
	case "map":
		return e.attemptMap(ctx, cfg)
	case "relay":
		return e.attemptRelay(ctx, cfg)
	default:
		return nil, fmt.Errorf("discovery: unknown strategy %q", kind)
	}
}

func (e *Engine) attemptDirect(ctx context.Context, cfg Config) (*Binding, error) {
	addr, err := net.ResolveUDPAddr("udp", cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("discovery: resolving %q: %w", cfg.Address, err)
	}
	sid := newSID()
	sess := e.manager.NewSession(sid, addr)
	return &Binding{Session: sess, RemoteAddr: addr, SID: sid}, nil
}

func (e *Engine) attemptLocal(ctx context.Context, cfg Config) (*Binding, error) {
	lctx, cancel := context.WithTimeout(ctx, localTimeout)
	defer cancel()

	if err := e.manager.Broadcast(queryPayload(CmdUIDQuery, cfg.UID), VendorPort); err != nil {
		return nil, fmt.Errorf("discovery: broadcast: %w", err)
	}

	for {
		d, addr, err := e.manager.RawReceive(lctx)
		if err != nil {
			return nil, fmt.Errorf("discovery: local: %w", err)
		}
		cmd, sid, uid, deviceID, err := parseReply(d.Payload)
		if err != nil || cmd != CmdUIDReply || uid != cfg.UID {
			continue
		}
		sess := e.manager.NewSession(sid, addr)
		return &Binding{Session: sess, RemoteAddr: addr, SID: sid, DeviceID: deviceID}, nil
	}
}

func (e *Engine) attemptRemote(ctx context.Context, cfg Config) (*Binding, error) {
	rctx, cancel := context.WithTimeout(ctx, remoteTimeout)
	defer cancel()

	req, err := buildUIDBindingRequest(cfg.UID)
	if err != nil {
		return nil, err
	}

	for _, server := range cfg.VendorServers {
		limiter := e.limiterFor(server)
		if err := limiter.Wait(rctx); err != nil {
			return nil, fmt.Errorf("discovery: rate limit wait: %w", err)
		}
		vendorAddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", server, VendorPort))
		if err != nil {
			continue
		}
		if err := e.manager.SendDiscovery(req.Raw, vendorAddr); err != nil {
			continue
		}
		d, addr, err := e.manager.RawReceive(rctx)
		if err != nil {
			continue
		}
		reportedAddr, err := parseAddressReport(d.Payload)
		if err != nil {
			continue
		}
		sid := newSID()
		sess := e.manager.NewSession(sid, reportedAddr)
		return &Binding{Session: sess, RemoteAddr: addr, SID: sid}, nil
	}
	return nil, errVendorRefused(fmt.Errorf("no vendor server answered"))
}

func (e *Engine) attemptMap(ctx context.Context, cfg Config) (*Binding, error) {
	mctx, cancel := context.WithTimeout(ctx, mapWaitTime)
	defer cancel()

	for _, server := range cfg.VendorServers {
		limiter := e.limiterFor(server)
		if err := limiter.Wait(mctx); err != nil {
			return nil, err
		}
		vendorAddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", server, VendorPort))
		if err != nil {
			continue
		}
		if err := e.manager.SendDiscovery(queryPayload(CmdRegister, cfg.UID), vendorAddr); err != nil {
			continue
		}
	}

	for {
		d, addr, err := e.manager.RawReceive(mctx)
		if err != nil {
			return nil, errUIDUnknown(fmt.Errorf("map wait expired: %w", err))
		}
		cmd, sid, uid, deviceID, err := parseReply(d.Payload)
		if err != nil || cmd != CmdUIDReply || uid != cfg.UID {
			continue
		}
		sess := e.manager.NewSession(sid, addr)
		return &Binding{Session: sess, RemoteAddr: addr, SID: sid, DeviceID: deviceID}, nil
	}
}

func (e *Engine) attemptRelay(ctx context.Context, cfg Config) (*Binding, error) {
	rctx, cancel := context.WithTimeout(ctx, relayTimeout)
	defer cancel()

	for _, server := range cfg.VendorServers {
		limiter := e.limiterFor(server)
		if err := limiter.Wait(rctx); err != nil {
			return nil, err
		}
		vendorAddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", server, VendorPort))
		if err != nil {
			continue
		}
		if err := e.manager.SendDiscovery(queryPayload(CmdRelayRequest, cfg.UID), vendorAddr); err != nil {
			continue
		}
		d, _, err := e.manager.RawReceive(rctx)
		if err != nil {
			continue
		}
		cmd, sid, _, deviceID, err := parseReply(d.Payload)
		if err != nil || cmd != CmdRelayGranted {
			continue
		}
		sess := e.manager.NewSession(sid, vendorAddr)
		return &Binding{Session: sess, RemoteAddr: vendorAddr, SID: sid, DeviceID: deviceID}, nil
	}
	return nil, errUnreachable(fmt.Errorf("no relay granted"))
}

func newSID() uint32 {
	return rand.Uint32()
}
