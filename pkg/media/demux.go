package media

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Inner-container magics. Reverse-engineered constants identifying each
// BcMedia frame kind (SPEC_FULL.md §4.5); do not attempt to re-derive them.
var (
	magicVideoI    = [4]byte{'b', 'c', 'v', 'i'}
	magicVideoP    = [4]byte{'b', 'c', 'v', 'p'}
	magicAudioAAC  = [4]byte{'b', 'c', 'a', 'a'}
	magicAudioADPC = [4]byte{'b', 'c', 'a', 'd'}
	magicInfo      = [4]byte{'b', 'c', 'i', 'n'}
)

// ErrResync marks a parse error recovered by flushing to the next magic
// boundary (SPEC_FULL.md §4.5 invariant iii); non-fatal.
var ErrResync = errors.New("media: resync")

// Demux reassembles the BcMedia inner container across BC message
// boundaries and emits typed frames. Not goroutine-safe: feed it from the
// single reader goroutine that owns the underlying BC session.
type Demux struct {
	buf    []byte
	logger *slog.Logger
	pack   *h264Packetizer
}

// NewDemux returns an empty demultiplexer.
func NewDemux(logger *slog.Logger) *Demux {
	return &Demux{logger: logger, pack: newH264Packetizer()}
}

// Feed appends payload bytes from one BC message-id-3 delivery and returns
// every complete inner frame that can now be parsed out. Trailing partial
// bytes remain buffered for the next Feed call.
func (d *Demux) Feed(payload []byte) ([]Frame, error) {
	d.buf = append(d.buf, payload...)

	var frames []Frame
	for {
		f, n, err := d.parseOne(d.buf)
		if err != nil {
			if errors.Is(err, errShortBuffer) {
				break
			}
			if errors.Is(err, ErrResync) {
				if d.logger != nil {
					d.logger.Warn("media demux resync", "error", err)
				}
				skip := resyncSkip(d.buf)
				if skip == 0 {
					break
				}
				d.buf = d.buf[skip:]
				continue
			}
			return frames, err
		}
		d.buf = d.buf[n:]
		if f != nil {
			frames = append(frames, *f)
		}
	}
	return frames, nil
}

var errShortBuffer = errors.New("media: short buffer")

const innerHeaderPrefix = 4 + 4 // magic + dataLen

// parseOne attempts to parse exactly one inner frame from the front of buf.
// It returns (frame, bytesConsumed, err). A nil frame with no error can
// occur for a frame kind that carries no payload worth surfacing (reserved
// for future extension; unused today but keeps the contract honest).
func (d *Demux) parseOne(buf []byte) (*Frame, int, error) {
	if len(buf) < 4 {
		return nil, 0, errShortBuffer
	}
	magic := [4]byte{buf[0], buf[1], buf[2], buf[3]}

	switch magic {
	case magicVideoI, magicVideoP:
		return d.parseVideo(buf, magic == magicVideoI)
	case magicAudioAAC:
		return d.parseAudioAAC(buf)
	case magicAudioADPC:
		return d.parseAudioADPCM(buf)
	case magicInfo:
		return d.parseInfo(buf)
	default:
		return nil, 0, fmt.Errorf("media: %w: unrecognized magic % x", ErrResync, magic)
	}
}

// resyncSkip finds the next plausible magic boundary after position 1, so a
// corrupt frame doesn't wedge the demultiplexer forever.
func resyncSkip(buf []byte) int {
	for i := 1; i+4 <= len(buf); i++ {
		m := [4]byte{buf[i], buf[i+1], buf[i+2], buf[i+3]}
		if m == magicVideoI || m == magicVideoP || m == magicAudioAAC || m == magicAudioADPC || m == magicInfo {
			return i
		}
	}
	return 0
}

// video inner header: magic(4) codecID(1) width(2) height(2) ptsMs(4) dataLen(4)
const videoHeaderSize = 4 + 1 + 2 + 2 + 4 + 4

func (d *Demux) parseVideo(buf []byte, keyframe bool) (*Frame, int, error) {
	if len(buf) < videoHeaderSize {
		return nil, 0, errShortBuffer
	}
	codecID := buf[4]
	width := binary.LittleEndian.Uint16(buf[5:7])
	height := binary.LittleEndian.Uint16(buf[7:9])
	ptsMs := binary.LittleEndian.Uint32(buf[9:13])
	dataLen := binary.LittleEndian.Uint32(buf[13:17])
	total := videoHeaderSize + int(dataLen)
	if len(buf) < total {
		return nil, 0, errShortBuffer
	}
	data := append([]byte(nil), buf[videoHeaderSize:total]...)

	codec := "H264"
	if codecID == 2 {
		codec = "H265"
	}

	kind := KindVideoPframe
	if keyframe {
		kind = KindVideoKeyframe
	}
	f := &Frame{
		Kind:   kind,
		Codec:  codec,
		Width:  int(width),
		Height: int(height),
		PTS:    time.Duration(ptsMs) * time.Millisecond,
		Bytes:  data,
	}
	f.RTPPackets = d.pack.Packetize(data, f.PTS)
	return f, total, nil
}

// audio AAC inner header: magic(4) sampleRate(4) dataLen(4)
const audioAACHeaderSize = 4 + 4 + 4

func (d *Demux) parseAudioAAC(buf []byte) (*Frame, int, error) {
	if len(buf) < audioAACHeaderSize {
		return nil, 0, errShortBuffer
	}
	sampleRate := binary.LittleEndian.Uint32(buf[4:8])
	dataLen := binary.LittleEndian.Uint32(buf[8:12])
	total := audioAACHeaderSize + int(dataLen)
	if len(buf) < total {
		return nil, 0, errShortBuffer
	}
	data := append([]byte(nil), buf[audioAACHeaderSize:total]...)
	return &Frame{Kind: KindAudioAAC, SampleRate: int(sampleRate), Bytes: data}, total, nil
}

// audio ADPCM inner header: magic(4) sampleRate(4) blockSize(2) dataLen(4)
const audioADPCMHeaderSize = 4 + 4 + 2 + 4

func (d *Demux) parseAudioADPCM(buf []byte) (*Frame, int, error) {
	if len(buf) < audioADPCMHeaderSize {
		return nil, 0, errShortBuffer
	}
	sampleRate := binary.LittleEndian.Uint32(buf[4:8])
	blockSize := binary.LittleEndian.Uint16(buf[8:10])
	dataLen := binary.LittleEndian.Uint32(buf[10:14])
	total := audioADPCMHeaderSize + int(dataLen)
	if len(buf) < total {
		return nil, 0, errShortBuffer
	}
	data := append([]byte(nil), buf[audioADPCMHeaderSize:total]...)
	return &Frame{Kind: KindAudioADPCM, SampleRate: int(sampleRate), BlockSize: int(blockSize), Bytes: data}, total, nil
}

// info inner header: magic(4) dataLen(4)
const infoHeaderSize = 4 + 4

func (d *Demux) parseInfo(buf []byte) (*Frame, int, error) {
	if len(buf) < infoHeaderSize {
		return nil, 0, errShortBuffer
	}
	dataLen := binary.LittleEndian.Uint32(buf[4:8])
	total := infoHeaderSize + int(dataLen)
	if len(buf) < total {
		return nil, 0, errShortBuffer
	}
	data := append([]byte(nil), buf[infoHeaderSize:total]...)
	return &Frame{Kind: KindInfo, Bytes: data}, total, nil
}
