package udptransport

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
)

// Manager owns one UDP socket and demultiplexes inbound datagrams to the
// Session registered for their sid. This lets the discovery engine's
// broadcast fan-out and a camera's long-lived reliability session share one
// local port.
type Manager struct {
	conn   net.PacketConn
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[uint32]*Session

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager binds a UDP socket on localAddr (":0" for an ephemeral port)
// and starts its receive loop.
func NewManager(ctx context.Context, localAddr string, logger *slog.Logger) (*Manager, error) {
	conn, err := net.ListenPacket("udp", localAddr)
	if err != nil {
		return nil, fmt.Errorf("udptransport: listen: %w", err)
	}
	mctx, cancel := context.WithCancel(ctx)
	m := &Manager{
		conn:     conn,
		logger:   logger,
		sessions: make(map[uint32]*Session),
		ctx:      mctx,
		cancel:   cancel,
	}
	m.wg.Add(1)
	go m.receiveLoop()
	return m, nil
}

// LocalAddr returns the bound local address.
func (m *Manager) LocalAddr() net.Addr { return m.conn.LocalAddr() }

// NewSession creates and registers a reliable session to peer, keyed by sid.
// The caller is responsible for picking a sid that does not collide with any
// other session on this Manager (SPEC_FULL.md's discovery engine allocates
// sids per the vendor protocol's own id space).
func (m *Manager) NewSession(sid uint32, peer net.Addr) *Session {
	send := func(d Datagram) error {
		_, err := m.conn.WriteTo(Encode(d), peer)
		return err
	}
	s := NewSession(m.ctx, sid, send, m.logger)
	m.mu.Lock()
	m.sessions[sid] = s
	m.mu.Unlock()
	return s
}

// SendDiscovery writes a single, unreliable DISCOVERY datagram to addr; used
// for the broadcast and vendor-lookup probes of the discovery engine, which
// manage their own retry/timeout rather than riding a Session.
func (m *Manager) SendDiscovery(payload []byte, addr net.Addr) error {
	_, err := m.conn.WriteTo(Encode(Datagram{Kind: KindDiscovery, Payload: payload}), addr)
	return err
}

// Broadcast writes a DISCOVERY datagram to every broadcast-capable local
// interface on the given port (SPEC_FULL.md §4.3 strategy 1).
func (m *Manager) Broadcast(payload []byte, port int) error {
	addrs, err := broadcastAddresses(port)
	if err != nil {
		return err
	}
	var firstErr error
	for _, a := range addrs {
		if _, err := m.conn.WriteTo(Encode(Datagram{Kind: KindDiscovery, Payload: payload}), a); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// RawReceive exposes raw (non-reliability-layer) datagrams to a discovery
// caller awaiting a one-shot reply; it returns the next datagram read from
// the socket, unfiltered. It is used by the discovery engine's local,
// remote and map strategies, which do not want a full Session until a
// candidate endpoint is confirmed.
func (m *Manager) RawReceive(ctx context.Context) (Datagram, net.Addr, error) {
	buf := make([]byte, 2048)
	type result struct {
		d    Datagram
		addr net.Addr
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		n, addr, err := m.conn.ReadFrom(buf)
		if err != nil {
			ch <- result{err: err}
			return
		}
		d, err := Decode(buf[:n])
		ch <- result{d: d, addr: addr, err: err}
	}()
	select {
	case r := <-ch:
		return r.d, r.addr, r.err
	case <-ctx.Done():
		return Datagram{}, nil, ctx.Err()
	}
}

func (m *Manager) receiveLoop() {
	defer m.wg.Done()
	buf := make([]byte, 2048)
	for {
		if err := m.conn.SetReadDeadline(deadlineFor(m.ctx)); err != nil {
			return
		}
		n, addr, err := m.conn.ReadFrom(buf)
		if err != nil {
			if m.ctx.Err() != nil {
				return
			}
			continue
		}
		d, err := Decode(buf[:n])
		if err != nil {
			if m.logger != nil {
				m.logger.Debug("dropping corrupt datagram", "peer", addr, "error", err)
			}
			continue
		}
		m.mu.RLock()
		sess, ok := m.sessions[d.SID]
		m.mu.RUnlock()
		if ok {
			sess.Deliver(d)
		}
	}
}

// Close shuts down the socket and every registered session.
func (m *Manager) Close() error {
	m.cancel()
	m.mu.Lock()
	for _, s := range m.sessions {
		_ = s.Close()
	}
	m.mu.Unlock()
	err := m.conn.Close()
	m.wg.Wait()
	return err
}
