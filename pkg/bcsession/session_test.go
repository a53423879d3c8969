package bcsession

import (
	"bufio"
	"context"
	"encoding/xml"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gtfodev/neolink/pkg/wire"
)

// fakeCamera plays the server side of a login handshake over an in-memory
// pipe: legacy probe -> nonce -> modern login -> 200 OK, then answers ping
// probes so the session's keepalive loop stays healthy.
func fakeCamera(t *testing.T, conn net.Conn) {
	t.Helper()
	codec := wire.NewCodec()
	br := bufio.NewReader(conn)

	probe, err := codec.ReadMessage(br)
	require.NoError(t, err)
	require.Equal(t, wire.MsgIDLogin, probe.Header.MessageID)

	nonceXML, err := xml.Marshal(encryptionNonce{Type: "md5", Nonce: "13BCECE33DA453DB"})
	require.NoError(t, err)
	require.NoError(t, codec.WriteMessage(conn, wire.Message{
		Header: wire.Header{
			Magic: wire.MagicModern, MessageID: wire.MsgIDLogin, Class: wire.ClassModernResponse,
			StatusCode: 0x00c8, EncryptionOffset: probe.Header.EncryptionOffset,
		},
		Payload: nonceXML,
	}))

	creds := wire.NewCredentials("admin", "password")
	keys, err := wire.DeriveAESKeys("13BCECE33DA453DB", creds)
	require.NoError(t, err)
	codec.SetAES(keys)

	modern, err := codec.ReadMessage(br)
	require.NoError(t, err)
	require.Equal(t, wire.MsgIDLogin, modern.Header.MessageID)

	require.NoError(t, codec.WriteMessage(conn, wire.Message{
		Header: wire.Header{
			Magic: wire.MagicModern, MessageID: wire.MsgIDLogin, Class: wire.ClassModernResponse,
			StatusCode: 0x00c8, EncryptionOffset: modern.Header.EncryptionOffset,
		},
		Payload: []byte(`<DeviceInfo></DeviceInfo>`),
	}))

	for {
		msg, err := codec.ReadMessage(br)
		if err != nil {
			return
		}
		if msg.Header.MessageID == wire.MsgIDPing {
			_ = codec.WriteMessage(conn, wire.Message{
				Header: wire.Header{
					Magic: wire.MagicModern, MessageID: wire.MsgIDPing, Class: wire.ClassModernResponse,
					StatusCode: 0x00c8, EncryptionOffset: msg.Header.EncryptionOffset,
				},
			})
		}
	}
}

func TestLoginTransitionsToActive(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()
	go fakeCamera(t, serverConn)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New(ctx, clientConn, "admin", "password", nil)
	require.Equal(t, StateConnected, s.State())
	require.NoError(t, s.Login(ctx))
	require.Equal(t, StateActive, s.State())
}

func TestNotificationFanout(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()
	go fakeCamera(t, serverConn)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := New(ctx, clientConn, "admin", "password", nil)
	require.NoError(t, s.Login(ctx))

	ch := make(chan wire.Message, 1)
	unsub := s.Subscribe(wire.MsgIDMotionAlarm, ch)
	defer unsub()

	go s.dispatch(wire.Message{Header: wire.Header{MessageID: wire.MsgIDMotionAlarm}, Payload: []byte("motion")})

	select {
	case got := <-ch:
		require.Equal(t, []byte("motion"), got.Payload)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for notification")
	}
}
