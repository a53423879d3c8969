// Package wire implements the Baichuan (BC) message codec: header framing,
// Extension/Payload body layout, and the XOR/AES-CFB encryption modes used by
// Reolink-family cameras.
package wire

import (
	"encoding/binary"
	"fmt"
)

// Magic marks the byte order of the integer fields that follow a BC header.
type Magic uint32

const (
	// MagicLegacy is emitted by older firmware; integer fields after it are
	// little-endian.
	MagicLegacy Magic = 0x0abcdef0
	// MagicModern is emitted by current firmware; integer fields after it are
	// big-endian.
	MagicModern Magic = 0xf0bcde0a
)

var (
	legacyMagicBytes = [4]byte{0xf0, 0xde, 0xbc, 0x0a}
	modernMagicBytes = [4]byte{0x0a, 0xbc, 0xde, 0xf0}
)

// Class identifies the message kind and, crucially, whether a payload-offset
// field follows the fixed 20-byte core of the header. These values are fixed
// by captured firmware fixtures (SPEC_FULL.md §8 scenario 1) rather than
// derived from any public documentation.
type Class uint16

const (
	ClassLegacyRequest  Class = 0x6514
	ClassLegacyResponse Class = 0x0114
	ClassModernRequest  Class = 0x6614
	ClassModernResponse Class = 0x0614
)

// hasPayloadOffset reports whether this class carries the extra 4-byte
// payload-offset field splitting the body into Extension+Payload regions.
func (c Class) hasPayloadOffset() bool {
	return c == ClassModernRequest || c == ClassModernResponse
}

func (c Class) isResponse() bool {
	return c == ClassLegacyResponse || c == ClassModernResponse
}

// fixedHeaderSize is the fixed portion common to every BC header, before the
// optional payload-offset field.
const fixedHeaderSize = 20

// Header is the decoded fixed-size prefix of a BC message.
type Header struct {
	Magic            Magic
	MessageID        uint32
	BodyLength       uint32
	EncryptionOffset uint32 // also: channel id, XOR key seed
	StatusCode       uint16
	Class            Class
	PayloadOffset    uint32 // 0 when the class carries no Extension region
}

// byteOrder returns the integer encoding for this header's magic.
func (h Header) byteOrder() binary.ByteOrder {
	if h.Magic == MagicLegacy {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// HasExtension reports whether this header's body begins with an Extension
// XML region before the Payload region.
func (h Header) HasExtension() bool {
	return h.Class.hasPayloadOffset() && h.PayloadOffset > 0
}

// IsResponse reports whether this header belongs to a response/notification
// message rather than a request.
func (h Header) IsResponse() bool {
	return h.Class.isResponse()
}

// Size returns the on-wire byte length of this header (20 or 24 bytes).
func (h Header) Size() int {
	if h.Class.hasPayloadOffset() {
		return fixedHeaderSize + 4
	}
	return fixedHeaderSize
}

// decodeMagic identifies which magic a 4-byte prefix carries.
func decodeMagic(b []byte) (Magic, error) {
	switch [4]byte{b[0], b[1], b[2], b[3]} {
	case legacyMagicBytes:
		return MagicLegacy, nil
	case modernMagicBytes:
		return MagicModern, nil
	default:
		return 0, fmt.Errorf("wire: %w: unrecognized magic % x", ErrFrame, b[:4])
	}
}

// encodeMagic returns the 4 on-wire bytes for a magic value.
func encodeMagic(m Magic) [4]byte {
	if m == MagicLegacy {
		return legacyMagicBytes
	}
	return modernMagicBytes
}

// DecodeHeader reads a Header from the front of b. It returns the number of
// bytes consumed. b must contain at least fixedHeaderSize bytes; callers
// should peek the class before deciding whether 4 more trailing bytes are
// needed (see Codec.ReadMessage).
func DecodeHeader(b []byte) (Header, int, error) {
	if len(b) < fixedHeaderSize {
		return Header{}, 0, fmt.Errorf("wire: %w: short header (%d bytes)", ErrFrame, len(b))
	}
	magic, err := decodeMagic(b)
	if err != nil {
		return Header{}, 0, err
	}
	var h Header
	h.Magic = magic
	order := h.byteOrder()
	h.MessageID = order.Uint32(b[4:8])
	h.BodyLength = order.Uint32(b[8:12])
	h.EncryptionOffset = order.Uint32(b[12:16])
	h.StatusCode = order.Uint16(b[16:18])
	h.Class = Class(order.Uint16(b[18:20]))

	n := fixedHeaderSize
	if h.Class.hasPayloadOffset() {
		if len(b) < fixedHeaderSize+4 {
			return Header{}, 0, fmt.Errorf("wire: %w: short extended header", ErrFrame)
		}
		h.PayloadOffset = order.Uint32(b[20:24])
		n = fixedHeaderSize + 4
	}
	return h, n, nil
}

// EncodeHeader appends the on-wire bytes of h to dst and returns the result.
func EncodeHeader(dst []byte, h Header) []byte {
	order := h.byteOrder()
	magic := encodeMagic(h.Magic)
	dst = append(dst, magic[:]...)

	var tmp [4]byte
	order.PutUint32(tmp[:], h.MessageID)
	dst = append(dst, tmp[:]...)
	order.PutUint32(tmp[:], h.BodyLength)
	dst = append(dst, tmp[:]...)
	order.PutUint32(tmp[:], h.EncryptionOffset)
	dst = append(dst, tmp[:]...)

	var tmp2 [2]byte
	order.PutUint16(tmp2[:], h.StatusCode)
	dst = append(dst, tmp2[:]...)
	order.PutUint16(tmp2[:], uint16(h.Class))
	dst = append(dst, tmp2[:]...)

	if h.Class.hasPayloadOffset() {
		order.PutUint32(tmp[:], h.PayloadOffset)
		dst = append(dst, tmp[:]...)
	}
	return dst
}
