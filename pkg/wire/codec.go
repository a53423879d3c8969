package wire

import (
	"bufio"
	"fmt"
	"io"
)

// Codec encodes and decodes BC messages on a byte-oriented transport (a TCP
// socket or the byte stream exposed by pkg/udptransport). It is not
// goroutine-safe; callers serialize reads on one goroutine and writes on
// another, matching the BC session's single-reader design (SPEC_FULL.md §5).
type Codec struct {
	mode Encryption
	keys Keys

	// legacyXOR selects the alternate key-stream derivation on retry, per
	// SPEC_FULL.md §9 open question (i).
	legacyXOR bool
}

// NewCodec returns a Codec with no encryption, suitable for the legacy-login
// exchange that precedes key derivation.
func NewCodec() *Codec {
	return &Codec{mode: EncryptionNone}
}

// SetXOR switches the codec to XOR body encryption.
func (c *Codec) SetXOR() {
	c.mode = EncryptionXOR
	c.legacyXOR = false
}

// SetAES switches the codec to AES-CFB body encryption with the given
// derived session keys.
func (c *Codec) SetAES(keys Keys) {
	c.mode = EncryptionAES
	c.keys = keys
}

// Mode reports the codec's current encryption mode.
func (c *Codec) Mode() Encryption { return c.mode }

// RetryLegacyXOR flips the XOR key-stream derivation used on the next
// decrypt attempt. Callers should call this once and retry a failed decode
// before giving up, per SPEC_FULL.md §9.
func (c *Codec) RetryLegacyXOR() {
	c.legacyXOR = !c.legacyXOR
}

// ReadMessage reads and decodes the next BC message from r.
func (c *Codec) ReadMessage(r *bufio.Reader) (Message, error) {
	prefix, err := r.Peek(fixedHeaderSize)
	if err != nil {
		return Message{}, fmt.Errorf("wire: %w: reading header: %v", ErrFrame, err)
	}
	class := prefixClass(prefix)
	headerLen := fixedHeaderSize
	if class.hasPayloadOffset() {
		headerLen = fixedHeaderSize + 4
	}
	raw, err := r.Peek(headerLen)
	if err != nil {
		return Message{}, fmt.Errorf("wire: %w: reading extended header: %v", ErrFrame, err)
	}
	h, n, err := DecodeHeader(raw)
	if err != nil {
		return Message{}, err
	}
	if _, err := r.Discard(n); err != nil {
		return Message{}, fmt.Errorf("wire: %w: %v", ErrFrame, err)
	}

	body := make([]byte, h.BodyLength)
	if _, err := io.ReadFull(r, body); err != nil {
		return Message{}, fmt.Errorf("wire: %w: reading body: %v", ErrFrame, err)
	}

	plain, err := c.decryptBody(body, h.EncryptionOffset)
	if err != nil {
		return Message{}, err
	}

	msg := Message{Header: h}
	if h.HasExtension() {
		if int(h.PayloadOffset) > len(plain) {
			return Message{}, fmt.Errorf("wire: %w: payload offset %d exceeds body %d", ErrFrame, h.PayloadOffset, len(plain))
		}
		msg.Extension = plain[:h.PayloadOffset]
		msg.Payload = plain[h.PayloadOffset:]
	} else {
		msg.Payload = plain
	}
	return msg, nil
}

// WriteMessage encrypts and writes msg to w.
func (c *Codec) WriteMessage(w io.Writer, msg Message) error {
	plain := make([]byte, 0, len(msg.Extension)+len(msg.Payload))
	plain = append(plain, msg.Extension...)
	plain = append(plain, msg.Payload...)

	cipherBody, err := c.encryptBody(plain, msg.Header.EncryptionOffset)
	if err != nil {
		return err
	}

	h := msg.Header
	h.BodyLength = uint32(len(cipherBody))
	if len(msg.Extension) > 0 {
		h.PayloadOffset = uint32(len(msg.Extension))
	}

	buf := EncodeHeader(make([]byte, 0, h.Size()+len(cipherBody)), h)
	buf = append(buf, cipherBody...)
	_, err = w.Write(buf)
	if err != nil {
		return fmt.Errorf("wire: %w: %v", ErrFrame, err)
	}
	return nil
}

func (c *Codec) decryptBody(body []byte, offset uint32) ([]byte, error) {
	switch c.mode {
	case EncryptionNone:
		return body, nil
	case EncryptionXOR:
		if c.legacyXOR {
			return xorCryptLegacy(body, offset), nil
		}
		return xorCrypt(body, offset), nil
	case EncryptionAES:
		return aesCrypt(body, c.keys, true)
	default:
		return nil, fmt.Errorf("wire: %w: unknown encryption mode", ErrDecrypt)
	}
}

func (c *Codec) encryptBody(body []byte, offset uint32) ([]byte, error) {
	switch c.mode {
	case EncryptionNone:
		return body, nil
	case EncryptionXOR:
		if c.legacyXOR {
			return xorCryptLegacy(body, offset), nil
		}
		return xorCrypt(body, offset), nil
	case EncryptionAES:
		return aesCrypt(body, c.keys, false)
	default:
		return nil, fmt.Errorf("wire: %w: unknown encryption mode", ErrDecrypt)
	}
}

// prefixClass extracts just the Class field from a peeked, not-yet-validated
// header prefix, tolerating either magic's byte order. Used only to decide
// how many more bytes to peek before full validation in DecodeHeader.
func prefixClass(b []byte) Class {
	if len(b) < 20 {
		return 0
	}
	if [4]byte{b[0], b[1], b[2], b[3]} == legacyMagicBytes {
		// Legacy magic: little-endian integer fields.
		return Class(uint16(b[19])<<8 | uint16(b[18]))
	}
	// Modern magic: big-endian integer fields.
	return Class(uint16(b[18])<<8 | uint16(b[19]))
}
