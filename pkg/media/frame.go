// Package media implements the BcMedia inner-container demultiplexer:
// parsing the byte stream carried in a BC session's message-id-3 payload
// into typed, timestamped frames (SPEC_FULL.md §4.5).
package media

import "time"

// Kind tags the variant a Frame carries.
type Kind int

const (
	KindVideoKeyframe Kind = iota
	KindVideoPframe
	KindAudioAAC
	KindAudioADPCM
	KindInfo
)

func (k Kind) String() string {
	switch k {
	case KindVideoKeyframe:
		return "video-keyframe"
	case KindVideoPframe:
		return "video-pframe"
	case KindAudioAAC:
		return "audio-aac"
	case KindAudioADPCM:
		return "audio-adpcm"
	case KindInfo:
		return "info"
	default:
		return "unknown"
	}
}

// Frame is one decoded BcMedia inner frame, carrying both the raw bytes and
// (for video) an RTP-packetized form so an external RTSP collaborator needs
// no BC-protocol knowledge (SPEC_FULL.md §10.4).
type Frame struct {
	Kind Kind
	PTS  time.Duration

	// Video fields.
	Codec         string // "H264" or "H265"
	Width, Height int
	RTPPackets    [][]byte

	// Audio fields.
	SampleRate int
	BlockSize  int // ADPCM only

	Bytes []byte // raw payload: Annex-B NALUs, AAC AU, ADPCM block, or info bytes
}

// IsKeyframe reports whether this frame can start a new subscriber stream.
func (f Frame) IsKeyframe() bool {
	return f.Kind == KindVideoKeyframe
}

// IsVideo reports whether this frame carries video.
func (f Frame) IsVideo() bool {
	return f.Kind == KindVideoKeyframe || f.Kind == KindVideoPframe
}
