package nonces

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

// ErrNonceUsed indicates the nonce bit was already set: the payload is a
// replay and must be rejected.
var ErrNonceUsed = errors.New("nonces: nonce already used")

// Store exposes the word-level state access required by the bitmap. A word is
// the 256-bit bitset recorded under one 31-byte prefix; absent words read as
// all-zero.
type Store interface {
	Word(prefix []byte) (*uint256.Int, bool, error)
	SetWord(prefix []byte, word *uint256.Int) error
	DeleteWord(prefix []byte) error
	// IterateWords visits every stored word in ascending prefix order.
	IterateWords(fn func(prefix []byte, word *uint256.Int) (bool, error)) error
}

// Bitmap is a sparse used-bit tracker keyed by 248-bit prefixes. It is the
// single point of replay prevention: Commit performs an atomic test-and-set
// under the ledger's sequential execution model.
type Bitmap struct {
	store Store
}

// NewBitmap wraps the supplied word store.
func NewBitmap(store Store) *Bitmap {
	return &Bitmap{store: store}
}

func bitMask(index uint8) *uint256.Int {
	return new(uint256.Int).Lsh(uint256.NewInt(1), uint(index))
}

// IsUsed reports whether the nonce bit is set. Absent words read as unused.
func (b *Bitmap) IsUsed(n Nonce) (bool, error) {
	word, ok, err := b.store.Word(n.Prefix())
	if err != nil || !ok {
		return false, err
	}
	return !new(uint256.Int).And(word, bitMask(n.Index())).IsZero(), nil
}

// Commit sets the nonce bit. An already-set bit fails with ErrNonceUsed and
// applies no mutation.
func (b *Bitmap) Commit(n Nonce) error {
	prefix := n.Prefix()
	word, ok, err := b.store.Word(prefix)
	if err != nil {
		return err
	}
	if !ok {
		word = new(uint256.Int)
	}
	mask := bitMask(n.Index())
	if !new(uint256.Int).And(word, mask).IsZero() {
		return ErrNonceUsed
	}
	word = new(uint256.Int).Or(word, mask)
	if err := b.store.SetWord(prefix, word); err != nil {
		return fmt.Errorf("nonces: commit %s: %w", n, err)
	}
	return nil
}

// CleanupByPrefix removes the entire word for the supplied prefix, reclaiming
// its storage. It returns whether anything was removed. Eligibility (only
// expired or salt-invalidated nonces may be reclaimed) is the caller's
// responsibility.
func (b *Bitmap) CleanupByPrefix(prefix []byte) (bool, error) {
	if len(prefix) != PrefixSize {
		return false, fmt.Errorf("nonces: expected %d prefix bytes, got %d", PrefixSize, len(prefix))
	}
	_, ok, err := b.store.Word(prefix)
	if err != nil || !ok {
		return false, err
	}
	if err := b.store.DeleteWord(prefix); err != nil {
		return false, err
	}
	return true, nil
}

// Iterate visits every used nonce in ascending prefix order, low bits first
// within a word. Diagnostics and migration only; execution never walks the
// bitmap.
func (b *Bitmap) Iterate(fn func(Nonce) (bool, error)) error {
	return b.store.IterateWords(func(prefix []byte, word *uint256.Int) (bool, error) {
		for index := 0; index < 256; index++ {
			if new(uint256.Int).And(word, bitMask(uint8(index))).IsZero() {
				continue
			}
			n, err := FromParts(prefix, uint8(index))
			if err != nil {
				return false, err
			}
			cont, err := fn(n)
			if err != nil || !cont {
				return cont, err
			}
		}
		return true, nil
	})
}
