package media

import (
	"time"

	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
)

const (
	rtpMTU       = 1200
	h264ClockHz  = 90000
	rtpPayloadID = 96
	ssrc         = 0x4e454f4c // "NEOL"
)

// h264Packetizer wraps pion's RTP packetizer so every decoded video frame
// can also be handed to subscribers as ready-made RTP payload bytes
// (SPEC_FULL.md §10.4), the same way the teacher packetizes NALUs for its
// WebRTC bridge.
type h264Packetizer struct {
	p rtp.Packetizer
}

func newH264Packetizer() *h264Packetizer {
	return &h264Packetizer{
		p: rtp.NewPacketizer(rtpMTU, rtpPayloadID, ssrc, &codecs.H264Payloader{}, rtp.NewRandomSequencer(), h264ClockHz),
	}
}

// Packetize converts one Annex-B access unit into RTP packet bytes at the
// given presentation time.
func (h *h264Packetizer) Packetize(nalus []byte, pts time.Duration) [][]byte {
	samples := uint32(pts.Seconds() * h264ClockHz)
	packets := h.p.Packetize(nalus, samples)
	out := make([][]byte, 0, len(packets))
	for _, pkt := range packets {
		b, err := pkt.Marshal()
		if err != nil {
			continue
		}
		out = append(out, b)
	}
	return out
}
