package wire

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	cases := []Header{
		{Magic: MagicModern, MessageID: 1, Class: ClassModernRequest, EncryptionOffset: 0x12, PayloadOffset: 8},
		{Magic: MagicLegacy, MessageID: 1, Class: ClassLegacyResponse, StatusCode: 0x00c8},
	}
	for _, h := range cases {
		buf := EncodeHeader(nil, h)
		got, n, err := DecodeHeader(buf)
		require.NoError(t, err)
		require.Equal(t, len(buf), n)
		require.Equal(t, h, got)
	}
}

func TestXORCryptSymmetric(t *testing.T) {
	data := []byte("<Preview version=\"1.1\"><channelId>0</channelId></Preview>")
	enc := xorCrypt(data, 0x12)
	dec := xorCrypt(enc, 0x12)
	require.Equal(t, data, dec)
	require.NotEqual(t, data, enc)
}

func TestAESCryptSymmetric(t *testing.T) {
	creds := NewCredentials("admin", "")
	keys, err := DeriveAESKeys("13BCECE33DA453DB", creds)
	require.NoError(t, err)

	data := []byte(`<LoginUser version="1.1"><userName>YWRtaW4=</userName></LoginUser>`)
	enc, err := aesCrypt(data, keys, false)
	require.NoError(t, err)
	dec, err := aesCrypt(enc, keys, true)
	require.NoError(t, err)
	require.Equal(t, data, dec)
}

func TestCodecWriteReadRoundTrip(t *testing.T) {
	creds := NewCredentials("admin", "")
	keys, err := DeriveAESKeys("13BCECE33DA453DB", creds)
	require.NoError(t, err)

	var buf bytes.Buffer
	writer := NewCodec()
	writer.SetAES(keys)

	msg := Message{
		Header: Header{
			Magic:            MagicModern,
			MessageID:        MsgIDLogin,
			Class:            ClassModernRequest,
			EncryptionOffset: 0x0,
		},
		Extension: []byte(`<Extension><binaryData>0</binaryData></Extension>`),
		Payload:   []byte(`<LoginUser version="1.1"></LoginUser>`),
	}
	require.NoError(t, writer.WriteMessage(&buf, msg))

	reader := NewCodec()
	reader.SetAES(keys)
	got, err := reader.ReadMessage(bufio.NewReader(&buf))
	require.NoError(t, err)
	require.Equal(t, msg.Extension, got.Extension)
	require.Equal(t, msg.Payload, got.Payload)
	require.Equal(t, msg.Header.MessageID, got.Header.MessageID)
}

// TestDecodeHeaderLegacyLoginFixture decodes the literal legacy-magic login
// header captured from a camera (SPEC_FULL.md §8 scenario 1). Legacy magic
// carries little-endian integer fields; getting this backwards makes the
// login exchange undecodable.
func TestDecodeHeaderLegacyLoginFixture(t *testing.T) {
	fixture := []byte{
		0xf0, 0xde, 0xbc, 0x0a,
		0x01, 0x00, 0x00, 0x00,
		0x91, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x01,
		0x01, 0xdd,
		0x14, 0x66,
		0x00, 0x00, 0x00, 0x00, // PayloadOffset: no Extension region on this reply
	}
	h, n, err := DecodeHeader(fixture)
	require.NoError(t, err)
	require.Equal(t, fixedHeaderSize+4, n)
	require.Equal(t, MagicLegacy, h.Magic)
	require.Equal(t, uint32(1), h.MessageID)
	require.Equal(t, uint32(0x91), h.BodyLength)
	require.Equal(t, ClassModernRequest, h.Class)
	require.Equal(t, uint32(0), h.PayloadOffset)
	require.False(t, h.HasExtension())
}

func TestDecodeHeaderRejectsShortBuffer(t *testing.T) {
	_, _, err := DecodeHeader([]byte{0x01, 0x02})
	require.ErrorIs(t, err, ErrFrame)
}

func TestDecodeHeaderRejectsBadMagic(t *testing.T) {
	b := make([]byte, 20)
	_, _, err := DecodeHeader(b)
	require.ErrorIs(t, err, ErrFrame)
}
