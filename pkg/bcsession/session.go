// Package bcsession implements the BC session state machine: login,
// encryption negotiation, request/response matching, and notification
// fanout on top of a byte-oriented transport (SPEC_FULL.md §4.4).
package bcsession

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gtfodev/neolink/pkg/wire"
)

// State is a BC session's lifecycle stage.
type State int32

const (
	StateConnected State = iota
	StateAuthenticating
	StateActive
	StateClosing
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateAuthenticating:
		return "authenticating"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Error is the SessionError taxonomy (SPEC_FULL.md §7).
type Error struct {
	Kind string // Timeout, RemoteStatus, NotAuthorized, TransportLost, Cancelled
	Code uint16
	Err  error
}

func (e *Error) Error() string {
	if e.Kind == "RemoteStatus" {
		return fmt.Sprintf("bcsession: remote status %d", e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("bcsession: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("bcsession: %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

var (
	ErrTimeout       = &Error{Kind: "Timeout"}
	ErrNotAuthorized = &Error{Kind: "NotAuthorized"}
	ErrTransportLost = &Error{Kind: "TransportLost"}
	ErrCancelled     = &Error{Kind: "Cancelled"}
)

const (
	defaultRequestTimeout = 5 * time.Second
	loginTimeout          = 10 * time.Second
	pingInterval          = 10 * time.Second
	pingDeadline          = 30 * time.Second
	closingDrainGrace     = 2 * time.Second
)

type replyKey struct {
	msgID  uint32
	msgNum uint32
}

// Session is one logical conversation with a camera.
type Session struct {
	transport io.ReadWriteCloser
	codec     *wire.Codec
	username  string
	password  string
	logger    *slog.Logger

	state atomic.Int32

	mu         sync.Mutex
	nextMsgNum uint32
	waiters    map[replyKey]chan wire.Message
	subs       map[uint32]map[int]chan wire.Message
	nextSubID  int
	lastPingOK time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
}

// New wraps transport with a fresh Connected-state session and starts its
// reader loop, so replies to Login's requests are dispatched. Callers invoke
// Login to proceed to Active.
func New(ctx context.Context, transport io.ReadWriteCloser, username, password string, logger *slog.Logger) *Session {
	sctx, cancel := context.WithCancel(ctx)
	s := &Session{
		transport: transport,
		codec:     wire.NewCodec(),
		username:  username,
		password:  password,
		logger:    logger,
		waiters:   make(map[replyKey]chan wire.Message),
		subs:      make(map[uint32]map[int]chan wire.Message),
		ctx:       sctx,
		cancel:    cancel,
	}
	s.state.Store(int32(StateConnected))
	s.wg.Add(1)
	go s.readLoop()
	return s
}

// State reports the session's current lifecycle stage.
func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
	if s.logger != nil {
		s.logger.Debug("session state change", "state", st.String())
	}
}

// Request sends a message and waits for its matched response (or a request
// timeout / transport loss), per SPEC_FULL.md §4.4.
func (s *Session) Request(ctx context.Context, msgID uint32, extension, payload []byte) (wire.Message, error) {
	if st := s.State(); st == StateClosing || st == StateClosed || st == StateFailed {
		return wire.Message{}, ErrTransportLost
	}
	s.mu.Lock()
	num := s.nextMsgNum
	s.nextMsgNum++
	ch := make(chan wire.Message, 1)
	key := replyKey{msgID: msgID, msgNum: num}
	s.waiters[key] = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.waiters, key)
		s.mu.Unlock()
	}()

	magic, class := wire.MagicModern, wire.ClassModernRequest
	if s.State() == StateConnected {
		// Pre-login: spec.md:96 requires the legacy-login exchange here, not
		// the modern AES-encrypted request path.
		magic, class = wire.MagicLegacy, wire.ClassLegacyRequest
	}

	msg := wire.Message{
		Header: wire.Header{
			Magic:            magic,
			MessageID:        msgID,
			Class:            class,
			EncryptionOffset: num,
		},
		Extension: extension,
		Payload:   payload,
	}
	if err := s.codec.WriteMessage(s.transport, msg); err != nil {
		return wire.Message{}, fmt.Errorf("bcsession: write: %w", ErrTransportLost)
	}

	rctx := ctx
	if rctx == nil {
		var rcancel context.CancelFunc
		rctx, rcancel = context.WithTimeout(s.ctx, defaultRequestTimeout)
		defer rcancel()
	}

	select {
	case reply, ok := <-ch:
		if !ok {
			return wire.Message{}, ErrTransportLost
		}
		if reply.Header.StatusCode != 0x00c8 && reply.Header.StatusCode != 0 {
			return reply, &Error{Kind: "RemoteStatus", Code: reply.Header.StatusCode}
		}
		return reply, nil
	case <-rctx.Done():
		return wire.Message{}, ErrTimeout
	case <-s.ctx.Done():
		return wire.Message{}, ErrCancelled
	}
}

// Subscribe registers ch to receive camera-initiated notifications for
// msgID (no matching outbound request). Returns an unsubscribe func.
func (s *Session) Subscribe(msgID uint32, ch chan wire.Message) func() {
	s.mu.Lock()
	if s.subs[msgID] == nil {
		s.subs[msgID] = make(map[int]chan wire.Message)
	}
	id := s.nextSubID
	s.nextSubID++
	s.subs[msgID][id] = ch
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs[msgID], id)
		s.mu.Unlock()
	}
}

// Run starts the keepalive loop; it blocks until the session fails or ctx
// is cancelled. Login must have already completed.
func (s *Session) Run() error {
	s.wg.Add(1)
	go s.pingLoop()
	s.wg.Wait()
	return s.closeErr
}

func (s *Session) readLoop() {
	defer s.wg.Done()
	defer s.fail(ErrTransportLost)

	br := bufio.NewReader(s.transport)
	for {
		msg, err := s.codec.ReadMessage(br)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("bc session read failed", "error", err)
			}
			return
		}
		s.dispatch(msg)
	}
}

func (s *Session) dispatch(msg wire.Message) {
	if msg.Header.MessageID == wire.MsgIDPing {
		s.mu.Lock()
		s.lastPingOK = time.Now()
		s.mu.Unlock()
	}

	key := replyKey{msgID: msg.Header.MessageID, msgNum: msg.Header.EncryptionOffset}
	s.mu.Lock()
	ch, ok := s.waiters[key]
	var subs []chan wire.Message
	if !ok {
		for _, c := range s.subs[msg.Header.MessageID] {
			subs = append(subs, c)
		}
	}
	s.mu.Unlock()

	if ok {
		select {
		case ch <- msg:
		default:
		}
		return
	}
	for _, c := range subs {
		select {
		case c <- msg:
		default:
			if s.logger != nil {
				s.logger.Warn("dropping notification, subscriber full", "msg_id", msg.Header.MessageID)
			}
		}
	}
}

func (s *Session) pingLoop() {
	defer s.wg.Done()
	s.mu.Lock()
	s.lastPingOK = time.Now()
	s.mu.Unlock()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(s.ctx, defaultRequestTimeout)
			_, err := s.Request(ctx, wire.MsgIDPing, nil, nil)
			cancel()
			if err != nil {
				if s.logger != nil {
					s.logger.Warn("keepalive probe failed", "error", err)
				}
			}
			s.mu.Lock()
			stale := time.Since(s.lastPingOK) > pingDeadline
			s.mu.Unlock()
			if stale {
				s.fail(ErrTimeout)
				return
			}
		}
	}
}

func (s *Session) fail(reason error) {
	s.closeOnce.Do(func() {
		s.setState(StateFailed)
		s.closeErr = reason
		s.mu.Lock()
		for _, ch := range s.waiters {
			close(ch)
		}
		s.mu.Unlock()
		s.cancel()
		_ = s.transport.Close()
	})
}

// Close begins graceful shutdown: stop accepting new requests, drain
// in-flight replies for a short grace period, then close the transport.
func (s *Session) Close() error {
	s.setState(StateClosing)
	time.Sleep(closingDrainGrace)
	s.fail(errors.New("bcsession: closed"))
	s.setState(StateClosed)
	s.wg.Wait()
	return nil
}
