package nonces

import (
	"crypto/rand"
	"testing"
	"time"

	"swapclear/native/salts"
)

func TestVersionedRoundTrip(t *testing.T) {
	salt, err := salts.FromBytes([]byte{0xde, 0xad, 0xbe, 0xef})
	if err != nil {
		t.Fatalf("salt: %v", err)
	}
	deadline := time.Unix(1_800_000_000, 123_456_789).UTC()
	var random [15]byte
	for i := range random {
		random[i] = byte(i + 1)
	}

	v := NewV1(salt, deadline, random)
	decoded, ok := Decode(v.Encode())
	if !ok {
		t.Fatalf("encoded nonce must decode as versioned")
	}
	if decoded.Salt != salt {
		t.Fatalf("salt mismatch: %s", decoded.Salt)
	}
	if !decoded.Deadline.Equal(deadline) {
		t.Fatalf("deadline mismatch: %s vs %s", decoded.Deadline, deadline)
	}
	if decoded.Random != random {
		t.Fatalf("random mismatch: %v", decoded.Random)
	}
}

func TestRandomLegacyNonceDecodesAsLegacy(t *testing.T) {
	for i := 0; i < 64; i++ {
		var raw [NonceSize]byte
		if _, err := rand.Read(raw[:]); err != nil {
			t.Fatalf("rand: %v", err)
		}
		n := Nonce(raw)
		if _, ok := Decode(n); ok {
			// A uniformly random nonce starting with the magic prefix is a
			// one-in-2^32 event; hitting it in 64 draws means the decoder is
			// broken.
			t.Fatalf("random nonce %s decoded as versioned", n)
		}
	}
}

func TestUnknownVersionIsLegacy(t *testing.T) {
	salt, _ := salts.FromBytes([]byte{1, 2, 3, 4})
	n := NewV1(salt, time.Unix(1_800_000_000, 0), [15]byte{}).Encode()
	n[4] = 0x7f // unknown version tag
	if _, ok := Decode(n); ok {
		t.Fatalf("unknown version must be treated as legacy")
	}
}

func TestHasExpired(t *testing.T) {
	salt, _ := salts.FromBytes([]byte{1, 2, 3, 4})
	now := time.Unix(1_800_000_000, 0).UTC()

	expired := NewV1(salt, now.Add(-time.Hour), [15]byte{})
	if !expired.HasExpired(now) {
		t.Fatalf("past deadline must report expired")
	}
	live := NewV1(salt, now.Add(time.Hour), [15]byte{})
	if live.HasExpired(now) {
		t.Fatalf("future deadline must not report expired")
	}
	exact := NewV1(salt, now, [15]byte{})
	if exact.HasExpired(now) {
		t.Fatalf("deadline equal to now has not expired yet")
	}
}
