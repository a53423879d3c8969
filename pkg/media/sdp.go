package media

import (
	"fmt"

	"github.com/pion/sdp/v3"
)

// BuildSDP constructs a session description for the current stream codec,
// so an external RTSP collaborator can answer DESCRIBE without any
// BC-protocol knowledge (SPEC_FULL.md §10.3).
func BuildSDP(streamName string, f Frame) *sdp.SessionDescription {
	payloadType := rtpPayloadID
	codecName := f.Codec
	if codecName == "" {
		codecName = "H264"
	}

	desc := &sdp.SessionDescription{
		Version: 0,
		Origin: sdp.Origin{
			Username:       "-",
			SessionID:      1,
			SessionVersion: 1,
			NetworkType:    "IN",
			AddressType:    "IP4",
			UnicastAddress: "0.0.0.0",
		},
		SessionName: sdp.SessionName(streamName),
		TimeDescriptions: []sdp.TimeDescription{
			{Timing: sdp.Timing{StartTime: 0, StopTime: 0}},
		},
		MediaDescriptions: []*sdp.MediaDescription{
			{
				MediaName: sdp.MediaName{
					Media:   "video",
					Port:    sdp.RangedPort{Value: 0},
					Protos:  []string{"RTP", "AVP"},
					Formats: []string{fmt.Sprintf("%d", payloadType)},
				},
				Attributes: []sdp.Attribute{
					sdp.NewAttribute("rtpmap", fmt.Sprintf("%d %s/%d", payloadType, codecName, h264ClockHz)),
					sdp.NewAttribute("control", "trackID=0"),
				},
			},
		},
	}
	return desc
}
