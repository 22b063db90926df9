package salts

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// SaltSize is the width of a salt in bytes.
const SaltSize = 4

// Salt is a short rotating value embedded in versioned nonces. Revoking a
// salt invalidates every unused nonce minted under it without rewriting the
// nonce bitmap.
type Salt [SaltSize]byte

// Derive deterministically derives a salt from the execution context's random
// seed and a small attempt counter: the first four bytes of
// sha256(seed || attempt).
func Derive(seed [32]byte, attempt uint8) Salt {
	input := make([]byte, len(seed)+1)
	copy(input, seed[:])
	input[len(seed)] = attempt
	sum := sha256.Sum256(input)

	var salt Salt
	copy(salt[:], sum[:SaltSize])
	return salt
}

// Bytes returns the salt as a fresh byte slice.
func (s Salt) Bytes() []byte {
	return append([]byte(nil), s[:]...)
}

// String renders the salt as lowercase hex.
func (s Salt) String() string {
	return hex.EncodeToString(s[:])
}

// Parse decodes a hex-encoded salt.
func Parse(s string) (Salt, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Salt{}, fmt.Errorf("salts: parse %q: %w", s, err)
	}
	if len(raw) != SaltSize {
		return Salt{}, fmt.Errorf("salts: parse %q: expected %d bytes, got %d", s, SaltSize, len(raw))
	}
	var salt Salt
	copy(salt[:], raw)
	return salt, nil
}

// FromBytes builds a salt from a raw 4-byte slice.
func FromBytes(raw []byte) (Salt, error) {
	if len(raw) != SaltSize {
		return Salt{}, fmt.Errorf("salts: expected %d bytes, got %d", SaltSize, len(raw))
	}
	var salt Salt
	copy(salt[:], raw)
	return salt, nil
}
