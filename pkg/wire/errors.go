package wire

import "errors"

// Sentinel errors identifying the CodecError taxonomy. Wrap with fmt.Errorf's
// %w so callers can errors.Is against these.
var (
	// ErrFrame marks a truncated header, impossible length, or otherwise
	// unparseable byte frame.
	ErrFrame = errors.New("wire: frame error")
	// ErrDecrypt marks a failed decryption (bad key material, corrupted
	// ciphertext).
	ErrDecrypt = errors.New("wire: decrypt error")
	// ErrSchema marks a body that decoded but failed to match the known XML
	// schema for its message id. The raw bytes are preserved on the message
	// for debugging rather than discarded.
	ErrSchema = errors.New("wire: schema error")
)
