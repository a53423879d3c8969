package discovery

import (
	"encoding/binary"
	"fmt"
)

// Command tags a DISCOVERY sub-message's payload shape (SPEC_FULL.md §6).
type Command byte

const (
	CmdUIDQuery       Command = 1
	CmdUIDReply       Command = 2
	CmdRegister       Command = 3
	CmdRegisterAck    Command = 4
	CmdRelayRequest   Command = 5
	CmdRelayGranted   Command = 6
)

// queryPayload encodes a local-broadcast or vendor UID lookup request.
func queryPayload(cmd Command, uid string) []byte {
	buf := make([]byte, 0, 2+len(uid))
	buf = append(buf, byte(cmd))
	buf = append(buf, byte(len(uid)))
	buf = append(buf, []byte(uid)...)
	return buf
}

// parseReply parses a local-broadcast reply: [cmd][sid:4][uidLen][uid][deviceIDLen][deviceID].
func parseReply(b []byte) (cmd Command, sid uint32, uid string, deviceID []byte, err error) {
	if len(b) < 1+4+1 {
		return 0, 0, "", nil, fmt.Errorf("discovery: short reply (%d bytes)", len(b))
	}
	cmd = Command(b[0])
	sid = binary.BigEndian.Uint32(b[1:5])
	uidLen := int(b[5])
	if len(b) < 6+uidLen+1 {
		return 0, 0, "", nil, fmt.Errorf("discovery: truncated reply uid")
	}
	uid = string(b[6 : 6+uidLen])
	devLenPos := 6 + uidLen
	devLen := int(b[devLenPos])
	if len(b) < devLenPos+1+devLen {
		return 0, 0, "", nil, fmt.Errorf("discovery: truncated reply device id")
	}
	deviceID = append([]byte(nil), b[devLenPos+1:devLenPos+1+devLen]...)
	return cmd, sid, uid, deviceID, nil
}

// encodeReply is the counterpart to parseReply; the package's tests use it
// to build camera replies.
func encodeReply(cmd Command, sid uint32, uid string, deviceID []byte) []byte {
	buf := make([]byte, 0, 1+4+1+len(uid)+1+len(deviceID))
	buf = append(buf, byte(cmd))
	var sidBuf [4]byte
	binary.BigEndian.PutUint32(sidBuf[:], sid)
	buf = append(buf, sidBuf[:]...)
	buf = append(buf, byte(len(uid)))
	buf = append(buf, []byte(uid)...)
	buf = append(buf, byte(len(deviceID)))
	buf = append(buf, deviceID...)
	return buf
}
