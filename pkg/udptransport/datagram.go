// Package udptransport implements a reliable, ordered byte stream over UDP:
// the transport BC sessions ride when no direct TCP path is available, and
// the substrate for vendor discovery exchanges (SPEC_FULL.md §4.2, §4.3).
package udptransport

import (
	"encoding/binary"
	"fmt"

	"github.com/sigurn/crc16"
	"github.com/sigurn/crc8"
)

// Kind identifies a datagram's role in the reliability protocol.
type Kind byte

const (
	KindData Kind = iota
	KindAck
	KindDiscovery
	KindKeepalive
	KindFin
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "DATA"
	case KindAck:
		return "ACK"
	case KindDiscovery:
		return "DISCOVERY"
	case KindKeepalive:
		return "KEEPALIVE"
	case KindFin:
		return "FIN"
	default:
		return "UNKNOWN"
	}
}

var (
	crc16Table = crc16.MakeTable(crc16.CRC16_CCITT_FALSE)
	crc8Table  = crc8.MakeTable(crc8.CRC8)
)

// datagramHeaderSize is the fixed prefix before any checksum/payload: sid(4)
// + kind(1) + seq(4).
const datagramHeaderSize = 9

// Datagram is one on-wire reliability-layer frame.
type Datagram struct {
	SID     uint32
	Kind    Kind
	Seq     uint32 // sequence number for DATA, cumulative ack for ACK
	Payload []byte
}

// ErrCorrupt marks a datagram whose checksum did not match; the transport
// drops it without placing it in the reorder buffer (SPEC_FULL.md §4.2).
var ErrCorrupt = fmt.Errorf("udptransport: checksum mismatch")

// Encode serializes d, appending the correct integrity checksum for its
// Kind: CRC16/CCITT for DATA/ACK chunks, CRC8 for the short, fixed-format
// DISCOVERY sub-messages. KEEPALIVE carries no payload and no checksum.
func Encode(d Datagram) []byte {
	buf := make([]byte, datagramHeaderSize, datagramHeaderSize+2+len(d.Payload))
	binary.BigEndian.PutUint32(buf[0:4], d.SID)
	buf[4] = byte(d.Kind)
	binary.BigEndian.PutUint32(buf[5:9], d.Seq)

	switch d.Kind {
	case KindData, KindAck:
		var sum [2]byte
		binary.BigEndian.PutUint16(sum[:], crc16.Checksum(d.Payload, crc16Table))
		buf = append(buf, sum[:]...)
		buf = append(buf, d.Payload...)
	case KindDiscovery:
		sum := crc8.Checksum(d.Payload, crc8Table)
		buf = append(buf, sum)
		buf = append(buf, d.Payload...)
	case KindKeepalive, KindFin:
		// no payload, no checksum
	}
	return buf
}

// Decode parses a received datagram, verifying its checksum. A checksum
// mismatch returns ErrCorrupt and the datagram must be discarded by the
// caller, not placed in the reorder buffer.
func Decode(b []byte) (Datagram, error) {
	if len(b) < datagramHeaderSize {
		return Datagram{}, fmt.Errorf("udptransport: short datagram (%d bytes)", len(b))
	}
	d := Datagram{
		SID:  binary.BigEndian.Uint32(b[0:4]),
		Kind: Kind(b[4]),
		Seq:  binary.BigEndian.Uint32(b[5:9]),
	}
	rest := b[datagramHeaderSize:]

	switch d.Kind {
	case KindData, KindAck:
		if len(rest) < 2 {
			return Datagram{}, fmt.Errorf("udptransport: missing crc16")
		}
		want := binary.BigEndian.Uint16(rest[:2])
		payload := rest[2:]
		if crc16.Checksum(payload, crc16Table) != want {
			return Datagram{}, ErrCorrupt
		}
		d.Payload = payload
	case KindDiscovery:
		if len(rest) < 1 {
			return Datagram{}, fmt.Errorf("udptransport: missing crc8")
		}
		want := rest[0]
		payload := rest[1:]
		if crc8.Checksum(payload, crc8Table) != want {
			return Datagram{}, ErrCorrupt
		}
		d.Payload = payload
	case KindKeepalive, KindFin:
		// no payload
	default:
		return Datagram{}, fmt.Errorf("udptransport: unknown kind %d", b[4])
	}
	return d, nil
}
