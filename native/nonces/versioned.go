package nonces

import (
	"bytes"
	"encoding/binary"
	"time"

	"swapclear/native/salts"
)

// Versioned nonce layout inside the 32-byte nonce slot:
//
//	MAGIC (4 bytes) || VERSION (1 byte) || PAYLOAD (27 bytes)
//
// V1 payload:
//
//	SALT (4 bytes) || DEADLINE nanos, int64 LE (8 bytes) || RANDOM (15 bytes)
//
// A raw nonce that does not start with the magic constant, or whose remainder
// does not parse as a known version, is a legacy opaque nonce.
var magicPrefix = [4]byte{0x56, 0x28, 0xf6, 0xc6}

// VersionV1 tags the only current variant.
const VersionV1 byte = 0

const randomSize = 15

// Versioned is the decoded form of a self-describing nonce: a salted,
// time-bounded value with random filler bytes.
type Versioned struct {
	Version  byte
	Salt     salts.Salt
	Deadline time.Time
	Random   [randomSize]byte
}

// NewV1 builds a V1 versioned nonce. The deadline is truncated to nanosecond
// precision by encoding.
func NewV1(salt salts.Salt, deadline time.Time, random [randomSize]byte) Versioned {
	return Versioned{Version: VersionV1, Salt: salt, Deadline: deadline, Random: random}
}

// HasExpired reports whether the embedded deadline has passed relative to now.
func (v Versioned) HasExpired(now time.Time) bool {
	return v.Deadline.Before(now)
}

// Encode packs the versioned nonce into the 32-byte nonce slot.
func (v Versioned) Encode() Nonce {
	var n Nonce
	copy(n[:4], magicPrefix[:])
	n[4] = v.Version
	copy(n[5:9], v.Salt[:])
	binary.LittleEndian.PutUint64(n[9:17], uint64(v.Deadline.UnixNano()))
	copy(n[17:], v.Random[:])
	return n
}

// Decode attempts to interpret a raw nonce as versioned. It is a pure
// function: it succeeds only when the magic prefix matches and the remainder
// parses as a known version, and reports false otherwise so the caller treats
// the value as legacy.
func Decode(n Nonce) (Versioned, bool) {
	if !bytes.Equal(n[:4], magicPrefix[:]) {
		return Versioned{}, false
	}
	if n[4] != VersionV1 {
		return Versioned{}, false
	}
	var v Versioned
	v.Version = VersionV1
	copy(v.Salt[:], n[5:9])
	nanos := int64(binary.LittleEndian.Uint64(n[9:17]))
	v.Deadline = time.Unix(0, nanos).UTC()
	copy(v.Random[:], n[17:])
	return v, true
}
