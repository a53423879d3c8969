package wire

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"fmt"
)

// Encryption identifies the body-encryption scheme in effect for a session.
type Encryption int

const (
	EncryptionNone Encryption = iota
	EncryptionXOR
	EncryptionAES
)

func (e Encryption) String() string {
	switch e {
	case EncryptionNone:
		return "none"
	case EncryptionXOR:
		return "xor"
	case EncryptionAES:
		return "aes"
	default:
		return "unknown"
	}
}

// xorTable is the 256-byte constant firmware uses to seed the XOR key
// stream. Reverse-engineered from captured traffic; do not re-derive it.
var xorTable = [256]byte{
	0x85, 0xa0, 0xae, 0x78, 0xa6, 0x6b, 0x4b, 0x8a, 0xf4, 0x36, 0xeb, 0xc9, 0x34, 0x69, 0x5b, 0x52,
	0xab, 0xc2, 0xaf, 0xa3, 0x4c, 0xd4, 0x6b, 0xc2, 0x91, 0xf6, 0x5e, 0x7c, 0x12, 0x3f, 0x2a, 0x0d,
	0xea, 0x64, 0x91, 0x55, 0x04, 0x11, 0x05, 0x25, 0x02, 0xaf, 0xae, 0x63, 0xe5, 0x51, 0x1c, 0xc6,
	0x04, 0x20, 0xd1, 0x11, 0xeb, 0x6b, 0xea, 0x5a, 0x01, 0x28, 0xab, 0x1b, 0x0f, 0xec, 0xd1, 0x7f,
	0xd8, 0x60, 0xc2, 0x84, 0x26, 0x1d, 0x37, 0x61, 0xcd, 0x10, 0xa8, 0xb4, 0xbc, 0xad, 0x1c, 0x27,
	0x11, 0x67, 0x54, 0x22, 0x16, 0xe2, 0x6e, 0x74, 0x35, 0x78, 0x5a, 0x00, 0x20, 0xd5, 0x88, 0xed,
	0x90, 0x9e, 0x46, 0x73, 0x7d, 0x5f, 0x5d, 0x80, 0xe6, 0xff, 0xd7, 0x97, 0xb0, 0xbc, 0x3c, 0xb8,
	0xf2, 0x85, 0x9e, 0x1f, 0x57, 0xfe, 0x00, 0xf1, 0x29, 0x50, 0x3f, 0x3a, 0xcd, 0x1f, 0x27, 0x16,
	0xf0, 0xc3, 0xab, 0xcd, 0xe8, 0x6a, 0xc8, 0x86, 0xfe, 0x93, 0x96, 0x9f, 0xae, 0x2d, 0x17, 0x0a,
	0x67, 0x1f, 0x51, 0xd8, 0x34, 0x37, 0xa7, 0xcd, 0xe6, 0xd8, 0x9c, 0xa1, 0x80, 0xda, 0x5f, 0xd2,
	0x17, 0xdc, 0x86, 0x27, 0x09, 0x21, 0x6f, 0x41, 0xb6, 0x3c, 0x79, 0x09, 0x48, 0x09, 0xb0, 0x59,
	0x50, 0x64, 0xe1, 0x9f, 0xab, 0x60, 0x0c, 0x4c, 0x7e, 0x89, 0x89, 0xa7, 0x23, 0xf7, 0x5d, 0x70,
	0x5a, 0x61, 0x90, 0x67, 0x37, 0x8c, 0xb8, 0x01, 0x28, 0xa4, 0x44, 0x15, 0xd2, 0x23, 0xcb, 0xa2,
	0xa8, 0xf1, 0xf6, 0x01, 0xb3, 0xee, 0xb4, 0x5c, 0x90, 0xea, 0x77, 0x95, 0x80, 0x12, 0xef, 0x76,
	0xa0, 0x08, 0x17, 0xda, 0x39, 0x47, 0x10, 0xc2, 0x5c, 0x80, 0x18, 0xc5, 0x3f, 0x0a, 0x75, 0x20,
	0xb1, 0xf9, 0xcf, 0x44, 0xdf, 0xaf, 0x69, 0x93, 0xa1, 0x4c, 0x29, 0xdb, 0x88, 0xe1, 0x4d, 0x4a,
}

// xorCrypt returns a copy of data XORed in place against the table, keyed by
// offset. Symmetric: calling it twice with the same offset restores data.
// Some older firmware uses a different key-stream derivation; callers that
// fail to decrypt on the first try should retry with xorCryptLegacy
// (SPEC_FULL.md §9 open question i).
func xorCrypt(data []byte, offset uint32) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		idx := (uint32(i) + offset) % 256
		out[i] = b ^ xorTable[idx]
	}
	return out
}

// xorCryptLegacy is the alternate key-stream derivation seen on some older
// firmware: the first key byte is the table entry at offset mod 256, and
// each later key byte is the table entry after the previous key byte's
// value, independent of the byte position.
func xorCryptLegacy(data []byte, offset uint32) []byte {
	out := make([]byte, len(data))
	key := xorTable[offset%256]
	for i, b := range data {
		out[i] = b ^ key
		key = xorTable[(uint32(key)+1)%256]
	}
	return out
}

// Credentials holds the MD5-hashed, NUL-padded username/password pair used
// to derive AES session keys.
type Credentials struct {
	Username [32]byte
	Password [32]byte
}

// NewCredentials hashes and pads username/password per the login handshake:
// MD5 hash, 31 bytes, plus a trailing NUL.
func NewCredentials(username, password string) Credentials {
	var c Credentials
	uh := md5.Sum([]byte(username))
	ph := md5.Sum([]byte(password))
	hex := func(sum [16]byte) [32]byte {
		var out [32]byte
		const digits = "0123456789abcdef"
		for i, b := range sum {
			out[i*2] = digits[b>>4]
			out[i*2+1] = digits[b&0x0f]
		}
		out[31] = 0 // 31 hash characters plus the trailing NUL
		return out
	}
	c.Username = hex(uh)
	c.Password = hex(ph)
	return c
}

// Keys holds the derived AES-CFB-128 key/IV for one BC session.
type Keys struct {
	Key [16]byte
	IV  [16]byte
}

// DeriveAESKeys computes the session AES key/IV from the camera-supplied
// nonce and the login credentials, per SPEC_FULL.md §4.1: key = MD5(first half
// of nonce ⊕ password hash), IV = MD5(second half of nonce ⊕ username hash).
func DeriveAESKeys(nonce string, creds Credentials) (Keys, error) {
	if len(nonce) < 16 {
		return Keys{}, fmt.Errorf("wire: %w: nonce too short (%d chars)", ErrDecrypt, len(nonce))
	}
	nb := []byte(nonce)
	half := len(nb) / 2
	first, second := nb[:half], nb[half:]

	xorInto := func(a []byte, b [32]byte) []byte {
		out := make([]byte, len(a))
		for i := range a {
			out[i] = a[i] ^ b[i%len(b)]
		}
		return out
	}

	var k Keys
	k.Key = md5.Sum(xorInto(first, creds.Password))
	k.IV = md5.Sum(xorInto(second, creds.Username))
	return k, nil
}

// aesStream builds a CFB stream cipher for encrypt or decrypt use. BC uses
// CFB in both directions with the same derived key/IV (the offset field is
// not used to rekey AES, unlike XOR mode).
func aesStream(k Keys, decrypt bool) (cipher.Stream, error) {
	block, err := aes.NewCipher(k.Key[:])
	if err != nil {
		return nil, fmt.Errorf("wire: %w: %v", ErrDecrypt, err)
	}
	if decrypt {
		return cipher.NewCFBDecrypter(block, k.IV[:]), nil
	}
	return cipher.NewCFBEncrypter(block, k.IV[:]), nil
}

func aesCrypt(data []byte, k Keys, decrypt bool) ([]byte, error) {
	stream, err := aesStream(k, decrypt)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	stream.XORKeyStream(out, data)
	return out, nil
}
