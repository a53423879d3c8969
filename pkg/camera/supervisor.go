package camera

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gtfodev/neolink/pkg/bcsession"
	"github.com/gtfodev/neolink/pkg/discovery"
	"github.com/gtfodev/neolink/pkg/media"
	"github.com/gtfodev/neolink/pkg/udptransport"
	"github.com/gtfodev/neolink/pkg/wire"
)

// State is the supervisor's own lifecycle, distinct from the underlying
// bcsession.State (SPEC_FULL.md §4.6).
type State int32

const (
	StateStarting State = iota
	StateConnected
	StateReconnecting
	StateIdle
	StateDisabled
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateIdle:
		return "idle"
	case StateDisabled:
		return "disabled"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

const (
	idleDisconnectTimeout = 30 * time.Second
	reconnectBackoffMin   = 1 * time.Second
	reconnectBackoffMax   = 60 * time.Second
)

// Supervisor owns one camera's BC session, media hubs, and command queue.
type Supervisor struct {
	cfg     Config
	engine  *discovery.Engine
	logger  *slog.Logger
	bus     *eventBus
	queue   *CommandQueue

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	session     *bcsession.Session
	binding     *discovery.Binding
	hubs        map[StreamKind]*media.Hub
	subscribers map[StreamKind]int
	hasMotion   bool
	lastActive  time.Time

	state atomic.Int32
}

// New constructs a supervisor in StateStarting; call Run to begin
// connecting.
func New(ctx context.Context, cfg Config, engine *discovery.Engine, logger *slog.Logger) *Supervisor {
	sctx, cancel := context.WithCancel(ctx)
	s := &Supervisor{
		cfg:         cfg,
		engine:      engine,
		logger:      logger,
		bus:         newEventBus(),
		ctx:         sctx,
		cancel:      cancel,
		hubs:        make(map[StreamKind]*media.Hub),
		subscribers: make(map[StreamKind]int),
		lastActive:  time.Now(),
	}
	s.queue = NewCommandQueue(sctx)
	for _, k := range []StreamKind{StreamMain, StreamSub, StreamThird} {
		s.hubs[k] = media.NewHub(logger)
	}
	s.state.Store(int32(StateStarting))
	return s
}

// State reports the supervisor's current lifecycle stage.
func (s *Supervisor) State() State { return State(s.state.Load()) }

func (s *Supervisor) setState(st State) {
	s.state.Store(int32(st))
	if s.logger != nil {
		s.logger.Debug("camera state change", "camera", s.cfg.Name, "state", st.String())
	}
}

func (s *Supervisor) currentSession() *bcsession.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

func (s *Supervisor) noteActivity() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

// Events returns a channel of future supervisor events and an unsubscribe
// func, per SPEC_FULL.md §4.6's `events()` operation.
func (s *Supervisor) Events() (<-chan Event, func()) {
	return s.bus.Subscribe()
}

// SubscribeStream returns a media.Subscriber for the given stream kind,
// reference-counted so the upstream <Preview> subscription starts/stops
// per the pause policy.
func (s *Supervisor) SubscribeStream(kind StreamKind) (*media.Subscriber, func(), error) {
	s.mu.Lock()
	hub, ok := s.hubs[kind]
	if !ok {
		s.mu.Unlock()
		return nil, nil, fmt.Errorf("camera: unsupported stream kind %q", kind)
	}
	s.subscribers[kind]++
	s.mu.Unlock()

	sub := hub.Subscribe()
	s.noteActivity()

	release := func() {
		hub.Unsubscribe(sub)
		s.mu.Lock()
		s.subscribers[kind]--
		s.mu.Unlock()
	}
	return sub, release, nil
}

func (s *Supervisor) totalSubscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalSubscribersLocked()
}

// Subscribers reports the current reference count across every stream
// kind, for status reporting.
func (s *Supervisor) Subscribers() int {
	return s.totalSubscribers()
}

// Run drives the supervisor's full lifecycle: connect, login, subscribe to
// the configured stream, demux media into hubs, serve control/query
// traffic, and reconnect on failure with exponential back-off. It blocks
// until ctx is cancelled.
func (s *Supervisor) Run() {
	defer s.setState(StateStopped)
	if !s.cfg.Enabled {
		s.setState(StateDisabled)
		<-s.ctx.Done()
		return
	}

	backoff := reconnectBackoffMin
	for {
		if s.ctx.Err() != nil {
			return
		}
		err := s.connectAndServe()
		if s.ctx.Err() != nil {
			return
		}
		s.bus.Publish(Event{Kind: EventDisconnect, Err: err})
		s.setState(StateReconnecting)
		if s.logger != nil {
			s.logger.Warn("camera disconnected, reconnecting", "camera", s.cfg.Name, "error", err, "backoff", backoff)
		}

		select {
		case <-time.After(backoff):
		case <-s.ctx.Done():
			return
		}
		backoff = nextBackoff(backoff)
	}
}

// nextBackoff doubles prev, capped at reconnectBackoffMax
// (SPEC_FULL.md §8 scenario 6: exponential back-off starting at 1s).
func nextBackoff(prev time.Duration) time.Duration {
	next := prev * 2
	if next > reconnectBackoffMax {
		next = reconnectBackoffMax
	}
	return next
}

func (s *Supervisor) connectAndServe() error {
	binding, err := s.engine.Discover(s.ctx, discovery.Config{
		UID: s.cfg.UID, Address: s.cfg.Address, Strategy: s.cfg.Discovery,
	})
	if err != nil {
		return fmt.Errorf("camera: %s: discovery: %w", s.cfg.Name, err)
	}

	transport := sessionReadWriteCloser{binding.Session}
	bc := bcsession.New(s.ctx, transport, s.cfg.Username, s.cfg.Password, s.logger)
	if err := bc.Login(s.ctx); err != nil {
		_ = binding.Session.Close()
		return fmt.Errorf("camera: %s: login: %w", s.cfg.Name, err)
	}

	s.mu.Lock()
	s.session = bc
	s.binding = binding
	backoffReset := s.state.Load() == int32(StateReconnecting)
	s.mu.Unlock()
	s.setState(StateConnected)
	if backoffReset {
		s.bus.Publish(Event{Kind: EventReconnect})
	}

	motionCh := make(chan wire.Message, 8)
	unsubMotion := bc.Subscribe(wire.MsgIDMotionAlarm, motionCh)
	defer unsubMotion()

	mediaCh := make(chan wire.Message, 64)
	unsubMedia := bc.Subscribe(wire.MsgIDMedia, mediaCh)
	defer unsubMedia()

	sessionCtx, sessionCancel := context.WithCancel(s.ctx)
	var wg sync.WaitGroup
	wg.Add(2)
	runErr := make(chan error, 1)
	go func() { runErr <- bc.Run() }()
	go func() { defer wg.Done(); s.motionLoop(sessionCtx, motionCh) }()
	go func() { defer wg.Done(); s.mediaLoop(sessionCtx, mediaCh) }()
	go s.pauseLoop()
	go s.idleDisconnectLoop()

	err = <-runErr
	sessionCancel()
	s.mu.Lock()
	s.session = nil
	s.mu.Unlock()
	wg.Wait()
	return err
}

func (s *Supervisor) motionLoop(ctx context.Context, ch chan wire.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			s.mu.Lock()
			s.hasMotion = true
			s.mu.Unlock()
			s.bus.Publish(Event{Kind: EventMotionStart})
		}
	}
}

func (s *Supervisor) mediaLoop(ctx context.Context, ch chan wire.Message) {
	demux := media.NewDemux(s.logger)
	for {
		var msg wire.Message
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			msg = m
		}
		frames, err := demux.Feed(msg.Payload)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("media demux error", "camera", s.cfg.Name, "error", err)
			}
			continue
		}
		s.mu.Lock()
		hub := s.hubs[s.cfg.Stream]
		s.mu.Unlock()
		if hub == nil {
			continue
		}
		for _, f := range frames {
			hub.Publish(f)
		}
	}
}

// pauseLoop implements the pause policy: starts/stops the upstream preview
// subscription as (has_client, has_motion) change (SPEC_FULL.md §4.6).
func (s *Supervisor) pauseLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	subscribed := false
	var falseSince time.Time

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}
		sess := s.currentSession()
		if sess == nil {
			return
		}
		want := s.wantPreview()
		if want {
			falseSince = time.Time{}
			if !subscribed {
				if err := s.sendPreviewStart(sess); err == nil {
					subscribed = true
				}
			}
			continue
		}
		if !subscribed {
			continue
		}
		if falseSince.IsZero() {
			falseSince = time.Now()
			continue
		}
		if time.Since(falseSince) >= s.cfg.Pause.Timeout {
			if err := s.sendPreviewStop(sess); err == nil {
				subscribed = false
			}
		}
	}
}

// wantPreview reports whether the pause policy currently wants the upstream
// preview subscription running, given the present client/motion state.
func (s *Supervisor) wantPreview() bool {
	s.mu.Lock()
	hasClient := s.totalSubscribersLocked() > 0
	hasMotion := s.hasMotion
	s.mu.Unlock()
	return hasClient && (!s.cfg.Pause.OnMotion || hasMotion)
}

func (s *Supervisor) totalSubscribersLocked() int {
	total := 0
	for _, n := range s.subscribers {
		total += n
	}
	return total
}

func (s *Supervisor) sendPreviewStart(sess *bcsession.Session) error {
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()
	_, err := sess.Request(ctx, wire.MsgIDMedia, nil, []byte(`<Preview version="1.1"><channelId>0</channelId><handle>0</handle></Preview>`))
	return err
}

func (s *Supervisor) sendPreviewStop(sess *bcsession.Session) error {
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()
	_, err := sess.Request(ctx, wire.MsgIDPreviewStop, nil, []byte(`<Preview version="1.1"><channelId>0</channelId><handle>1</handle></Preview>`))
	return err
}

// idleDisconnectLoop tears down the session when nothing has happened for
// idleDisconnectTimeout, if IdleDisconnect is enabled (SPEC_FULL.md §4.6).
func (s *Supervisor) idleDisconnectLoop() {
	if !s.cfg.IdleDisconnect {
		return
	}
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}
		sess := s.currentSession()
		if sess == nil {
			return
		}
		if s.isIdle() {
			if s.logger != nil {
				s.logger.Info("idle disconnect", "camera", s.cfg.Name)
			}
			_ = sess.Close()
			return
		}
	}
}

// isIdle reports whether idleDisconnectTimeout has elapsed with no
// subscriber, motion, or other activity.
func (s *Supervisor) isIdle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalSubscribersLocked() == 0 && !s.hasMotion && time.Since(s.lastActive) >= idleDisconnectTimeout
}

// Stop cancels the supervisor. Callers that launched Run in a goroutine
// should wait on that goroutine themselves to know it has fully exited.
func (s *Supervisor) Stop() {
	s.cancel()
	s.queue.Close()
}

// sessionReadWriteCloser adapts *udptransport.Session (which exposes
// Read/Write/Close but not net.Conn) to io.ReadWriteCloser for bcsession.
type sessionReadWriteCloser struct {
	*udptransport.Session
}
