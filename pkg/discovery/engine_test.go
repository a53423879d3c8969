package discovery

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gtfodev/neolink/pkg/udptransport"
)

func TestReplyPayloadRoundTrip(t *testing.T) {
	raw := encodeReply(CmdUIDReply, 42, "ABCDEFGH", []byte{1, 2, 3})
	cmd, sid, uid, dev, err := parseReply(raw)
	require.NoError(t, err)
	require.Equal(t, CmdUIDReply, cmd)
	require.EqualValues(t, 42, sid)
	require.Equal(t, "ABCDEFGH", uid)
	require.Equal(t, []byte{1, 2, 3}, dev)
}

func TestAttemptDirectCreatesSession(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mgr, err := udptransport.NewManager(ctx, ":0", nil)
	require.NoError(t, err)
	defer mgr.Close()

	e := NewEngine(mgr, nil)
	b, err := e.Discover(ctx, Config{UID: "X", Address: "127.0.0.1:59999", Strategy: StrategyLocal})
	require.NoError(t, err)
	require.NotNil(t, b.Session)
}

func TestAttemptLocalFindsCamera(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mgr, err := udptransport.NewManager(ctx, ":0", nil)
	require.NoError(t, err)
	defer mgr.Close()

	cameraConn, err := net.ListenUDP("udp", &net.UDPAddr{Port: VendorPort})
	require.NoError(t, err)
	defer cameraConn.Close()

	go func() {
		buf := make([]byte, 1024)
		n, addr, err := cameraConn.ReadFrom(buf)
		if err != nil {
			return
		}
		d, err := udptransport.Decode(buf[:n])
		if err != nil || d.Kind != udptransport.KindDiscovery {
			return
		}
		reply := encodeReply(CmdUIDReply, 7, "MYCAM01", []byte{0xaa})
		_, _ = cameraConn.WriteTo(udptransport.Encode(udptransport.Datagram{Kind: udptransport.KindDiscovery, Payload: reply}), addr)
	}()

	e := NewEngine(mgr, nil)
	lctx, lcancel := context.WithTimeout(ctx, 2*time.Second)
	defer lcancel()
	b, err := e.attemptLocal(lctx, Config{UID: "MYCAM01"})
	require.NoError(t, err)
	require.EqualValues(t, 7, b.SID)
	require.Equal(t, []byte{0xaa}, b.DeviceID)
}
