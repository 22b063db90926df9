package nonces

import (
	"encoding/hex"
	"fmt"
)

const (
	// NonceSize is the width of a nonce in bytes.
	NonceSize = 32
	// PrefixSize is the width of a nonce prefix: everything except the
	// low-order byte.
	PrefixSize = NonceSize - 1
)

// Nonce is a 256-bit anti-replay token. The high-order 31 bytes form the
// prefix addressing a bitmap word; the low-order byte selects a bit within
// that word. This follows the permit2 nonce schema.
type Nonce [NonceSize]byte

// Prefix returns the high-order 31 bytes addressing the bitmap word.
func (n Nonce) Prefix() []byte {
	return append([]byte(nil), n[:PrefixSize]...)
}

// Index returns the bit position within the word.
func (n Nonce) Index() uint8 {
	return n[PrefixSize]
}

// String renders the nonce as lowercase hex.
func (n Nonce) String() string {
	return hex.EncodeToString(n[:])
}

// FromBytes builds a nonce from a raw 32-byte slice.
func FromBytes(raw []byte) (Nonce, error) {
	if len(raw) != NonceSize {
		return Nonce{}, fmt.Errorf("nonces: expected %d bytes, got %d", NonceSize, len(raw))
	}
	var n Nonce
	copy(n[:], raw)
	return n, nil
}

// FromParts reassembles a nonce from a 31-byte prefix and a bit index.
func FromParts(prefix []byte, index uint8) (Nonce, error) {
	if len(prefix) != PrefixSize {
		return Nonce{}, fmt.Errorf("nonces: expected %d prefix bytes, got %d", PrefixSize, len(prefix))
	}
	var n Nonce
	copy(n[:PrefixSize], prefix)
	n[PrefixSize] = index
	return n, nil
}
