package camera

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/gtfodev/neolink/pkg/bcsession"
	"github.com/gtfodev/neolink/pkg/wire"
	"github.com/stretchr/testify/require"
)

func testConfig(name string) Config {
	return Config{
		Name:     name,
		Username: "admin",
		Password: "",
		Address:  "127.0.0.1:0",
		Stream:   StreamMain,
	}
}

// TestNextBackoffDoublesAndCaps covers SPEC_FULL.md §8 scenario 6: exponential
// back-off starting at 1s, doubling, capped at reconnectBackoffMax.
func TestNextBackoffDoublesAndCaps(t *testing.T) {
	b := reconnectBackoffMin
	require.Equal(t, 1*time.Second, b)
	b = nextBackoff(b)
	require.Equal(t, 2*time.Second, b)
	b = nextBackoff(b)
	require.Equal(t, 4*time.Second, b)

	b = 40 * time.Second
	b = nextBackoff(b)
	require.Equal(t, reconnectBackoffMax, b)

	b = nextBackoff(reconnectBackoffMax)
	require.Equal(t, reconnectBackoffMax, b)
}

// TestWantPreviewReflectsClientAndMotion covers the pause policy predicate
// (SPEC_FULL.md §4.6, §8 scenario 5) without needing any real session.
func TestWantPreviewReflectsClientAndMotion(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := testConfig("cam")
	cfg.Pause = PausePolicy{OnMotion: true, Timeout: time.Second}
	sup := New(ctx, cfg, nil, nil)
	defer sup.Stop()

	require.False(t, sup.wantPreview(), "no client, no motion")

	_, release, err := sup.SubscribeStream(StreamMain)
	require.NoError(t, err)
	require.False(t, sup.wantPreview(), "client present but on_motion requires motion")

	sup.mu.Lock()
	sup.hasMotion = true
	sup.mu.Unlock()
	require.True(t, sup.wantPreview(), "client present and motion detected")

	release()
	require.False(t, sup.wantPreview(), "client released")
}

// TestWantPreviewIgnoresMotionWhenPolicyDisabled covers on_motion=false: any
// client alone is enough.
func TestWantPreviewIgnoresMotionWhenPolicyDisabled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := testConfig("cam")
	cfg.Pause = PausePolicy{OnMotion: false, Timeout: time.Second}
	sup := New(ctx, cfg, nil, nil)
	defer sup.Stop()

	_, release, err := sup.SubscribeStream(StreamMain)
	require.NoError(t, err)
	defer release()
	require.True(t, sup.wantPreview())
}

// TestIsIdleThreshold covers the idle-disconnect timing condition
// (SPEC_FULL.md §4.6): idle only once no subscriber, no motion, and
// idleDisconnectTimeout has elapsed since the last activity.
func TestIsIdleThreshold(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := testConfig("cam")
	cfg.IdleDisconnect = true
	sup := New(ctx, cfg, nil, nil)
	defer sup.Stop()

	sup.mu.Lock()
	sup.lastActive = time.Now()
	sup.mu.Unlock()
	require.False(t, sup.isIdle(), "just active")

	sup.mu.Lock()
	sup.lastActive = time.Now().Add(-idleDisconnectTimeout - time.Second)
	sup.mu.Unlock()
	require.True(t, sup.isIdle(), "idle timeout elapsed, no subscriber or motion")

	sup.mu.Lock()
	sup.hasMotion = true
	sup.mu.Unlock()
	require.False(t, sup.isIdle(), "motion active blocks idle")

	sup.mu.Lock()
	sup.hasMotion = false
	sup.mu.Unlock()
	_, release, err := sup.SubscribeStream(StreamMain)
	require.NoError(t, err)
	require.False(t, sup.isIdle(), "subscriber present blocks idle")
	release()
	require.True(t, sup.isIdle(), "idle again once subscriber drops")
}

// fakeCamera decodes requests written by a *bcsession.Session and replies
// with a matching success response, just enough to let sendPreviewStart /
// sendPreviewStop complete over a real wire.Codec round trip.
type fakeCamera struct {
	conn net.Conn
	msgs chan wire.Message
}

func newFakeCamera(t *testing.T, conn net.Conn) *fakeCamera {
	f := &fakeCamera{conn: conn, msgs: make(chan wire.Message, 16)}
	go f.serve(t)
	return f
}

func (f *fakeCamera) serve(t *testing.T) {
	codec := wire.NewCodec()
	br := bufio.NewReader(f.conn)
	for {
		msg, err := codec.ReadMessage(br)
		if err != nil {
			close(f.msgs)
			return
		}
		f.msgs <- msg

		respClass := wire.ClassModernResponse
		if msg.Header.Class == wire.ClassLegacyRequest {
			respClass = wire.ClassLegacyResponse
		}
		reply := wire.Message{
			Header: wire.Header{
				Magic:            msg.Header.Magic,
				MessageID:        msg.Header.MessageID,
				EncryptionOffset: msg.Header.EncryptionOffset,
				StatusCode:       0x00c8,
				Class:            respClass,
			},
		}
		if err := codec.WriteMessage(f.conn, reply); err != nil {
			return
		}
	}
}

// TestPauseLoopSendsPreviewStopOnWire covers SPEC_FULL.md §8 scenario 5: once
// the last subscriber drops, a <Preview> stop (msg id 4) is sent within the
// configured timeout, and sendPreviewStart fires first with msg id 3.
func TestPauseLoopSendsPreviewStopOnWire(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := testConfig("cam")
	cfg.Pause = PausePolicy{OnClient: true, Timeout: 1500 * time.Millisecond}
	sup := New(ctx, cfg, nil, nil)
	defer sup.Stop()

	clientConn, cameraConn := net.Pipe()
	defer clientConn.Close()
	defer cameraConn.Close()
	fake := newFakeCamera(t, cameraConn)

	sess := bcsession.New(ctx, clientConn, cfg.Username, cfg.Password, nil)
	sup.mu.Lock()
	sup.session = sess
	sup.mu.Unlock()

	_, release, err := sup.SubscribeStream(StreamMain)
	require.NoError(t, err)

	go sup.pauseLoop()

	var start wire.Message
	select {
	case start = <-fake.msgs:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for preview start")
	}
	require.Equal(t, wire.MsgIDMedia, start.Header.MessageID)

	release()

	var stop wire.Message
	select {
	case stop = <-fake.msgs:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for preview stop")
	}
	require.Equal(t, wire.MsgIDPreviewStop, stop.Header.MessageID)
}
