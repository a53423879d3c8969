package media

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func encodeVideo(magic [4]byte, codecID byte, width, height uint16, ptsMs uint32, data []byte) []byte {
	buf := make([]byte, 0, videoHeaderSize+len(data))
	buf = append(buf, magic[:]...)
	buf = append(buf, codecID)
	var b2 [2]byte
	binary.LittleEndian.PutUint16(b2[:], width)
	buf = append(buf, b2[:]...)
	binary.LittleEndian.PutUint16(b2[:], height)
	buf = append(buf, b2[:]...)
	var b4 [4]byte
	binary.LittleEndian.PutUint32(b4[:], ptsMs)
	buf = append(buf, b4[:]...)
	binary.LittleEndian.PutUint32(b4[:], uint32(len(data)))
	buf = append(buf, b4[:]...)
	buf = append(buf, data...)
	return buf
}

func TestDemuxSingleKeyframe(t *testing.T) {
	d := NewDemux(nil)
	nalu := []byte{0, 0, 0, 1, 0x65, 1, 2, 3, 4}
	wire := encodeVideo(magicVideoI, 1, 1920, 1080, 33, nalu)

	frames, err := d.Feed(wire)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	require.True(t, frames[0].IsKeyframe())
	require.Equal(t, 1920, frames[0].Width)
	require.NotEmpty(t, frames[0].RTPPackets)
}

func TestDemuxSpansMultipleFeeds(t *testing.T) {
	d := NewDemux(nil)
	nalu := make([]byte, 4000)
	for i := range nalu {
		nalu[i] = byte(i)
	}
	wire := encodeVideo(magicVideoP, 1, 640, 480, 66, nalu)

	half := len(wire) / 2
	frames, err := d.Feed(wire[:half])
	require.NoError(t, err)
	require.Empty(t, frames)

	frames, err = d.Feed(wire[half:])
	require.NoError(t, err)
	require.Len(t, frames, 1)
	require.Equal(t, nalu, frames[0].Bytes)
}

func TestDemuxResyncOnCorruptMagic(t *testing.T) {
	d := NewDemux(nil)
	good := encodeVideo(magicVideoI, 1, 100, 100, 0, []byte{1, 2, 3})
	garbage := []byte{0xff, 0xff, 0xff, 0xff}
	input := append(append([]byte(nil), garbage...), good...)

	frames, err := d.Feed(input)
	require.NoError(t, err)
	require.Len(t, frames, 1)
}

func TestHubKeyframeGating(t *testing.T) {
	h := NewHub(nil)
	sub := h.Subscribe()

	h.Publish(Frame{Kind: KindVideoPframe, Bytes: []byte{1}})
	select {
	case <-sub.Frames:
		t.Fatal("should not deliver P-frame before first keyframe")
	default:
	}

	h.Publish(Frame{Kind: KindVideoKeyframe, Bytes: []byte{2}})
	got := <-sub.Frames
	require.True(t, got.IsKeyframe())
}

func TestHubSlowConsumerEjection(t *testing.T) {
	h := NewHub(nil)
	sub := h.Subscribe()
	h.Publish(Frame{Kind: KindVideoKeyframe, Bytes: []byte{0}})
	<-sub.Frames

	for i := 0; i < defaultQueueDepth+2; i++ {
		h.Publish(Frame{Kind: KindVideoKeyframe, Bytes: []byte{byte(i)}})
	}

	_, ok := <-sub.Frames
	for ok {
		_, ok = <-sub.Frames
	}
	require.ErrorIs(t, sub.Err(), ErrSlowConsumer)
}
