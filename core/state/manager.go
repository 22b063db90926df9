package state

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/rlp"

	"swapclear/storage"
)

// ErrNoBatch indicates Commit or Discard was called without a preceding Begin.
var ErrNoBatch = errors.New("state: no staged batch")

type overlayEntry struct {
	value   []byte
	deleted bool
}

// Manager provides an RLP-encoded key-value layer over the backing store with
// a staged overlay. While a batch is open every write lands in the overlay;
// Commit flushes it to the store, Discard drops it. Reads see the overlay
// first, so in-flight batches always observe their own writes. Rejected
// batches therefore leave the persisted state untouched.
//
// The execution model is strictly sequential per ledger, so Manager performs
// no locking of its own.
type Manager struct {
	db      storage.Database
	overlay map[string]overlayEntry
}

// NewManager wraps the supplied database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Begin opens a staged batch. Nested batches are not supported; a second
// Begin keeps accumulating into the same overlay.
func (m *Manager) Begin() {
	if m.overlay == nil {
		m.overlay = make(map[string]overlayEntry)
	}
}

// InBatch reports whether a staged batch is open.
func (m *Manager) InBatch() bool {
	return m.overlay != nil
}

// Commit flushes the staged overlay into the backing store and closes the
// batch. The flush is applied write-by-write; the backing store is expected
// to be durable per operation (LevelDB) so a half-applied flush can only be
// caused by an I/O failure, which is surfaced to the caller.
func (m *Manager) Commit() error {
	if m.overlay == nil {
		return ErrNoBatch
	}
	keys := make([]string, 0, len(m.overlay))
	for k := range m.overlay {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		entry := m.overlay[k]
		if entry.deleted {
			if err := m.db.Delete([]byte(k)); err != nil {
				return fmt.Errorf("state: commit delete %q: %w", k, err)
			}
			continue
		}
		if err := m.db.Put([]byte(k), entry.value); err != nil {
			return fmt.Errorf("state: commit put %q: %w", k, err)
		}
	}
	m.overlay = nil
	return nil
}

// Discard drops the staged overlay without touching the backing store.
func (m *Manager) Discard() {
	m.overlay = nil
}

// KVPut stores the provided value under the supplied key using RLP encoding.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	if m.overlay != nil {
		m.overlay[string(key)] = overlayEntry{value: encoded}
		return nil
	}
	return m.db.Put(key, encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the
// key existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, ok, err := m.rawGet(key)
	if err != nil || !ok {
		return false, err
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVHas reports whether the key exists in state.
func (m *Manager) KVHas(key []byte) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	_, ok, err := m.rawGet(key)
	return ok, err
}

// KVDelete removes the supplied key. Missing keys are ignored.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	if m.overlay != nil {
		m.overlay[string(key)] = overlayEntry{deleted: true}
		return nil
	}
	return m.db.Delete(key)
}

func (m *Manager) rawGet(key []byte) ([]byte, bool, error) {
	if m.overlay != nil {
		if entry, ok := m.overlay[string(key)]; ok {
			if entry.deleted {
				return nil, false, nil
			}
			return entry.value, true, nil
		}
	}
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// KVIterate walks every key under the supplied prefix in key order, merging
// the staged overlay with the backing store. The callback receives the raw
// RLP value; returning false stops the walk early.
func (m *Manager) KVIterate(prefix []byte, fn func(key, value []byte) (bool, error)) error {
	var staged []string
	for k, entry := range m.overlay {
		if strings.HasPrefix(k, string(prefix)) && !entry.deleted {
			staged = append(staged, k)
		}
	}
	sort.Strings(staged)

	it := m.db.NewIterator(prefix)
	defer it.Release()

	emit := func(key, value []byte) (bool, error) {
		return fn(key, value)
	}

	i := 0
	for it.Next() {
		key := it.Key()
		if m.overlay != nil {
			if _, ok := m.overlay[string(key)]; ok {
				// Overlay wins: the staged version (if not a delete) is
				// emitted by the merge below.
				continue
			}
		}
		for i < len(staged) && bytes.Compare([]byte(staged[i]), key) < 0 {
			cont, err := emit([]byte(staged[i]), m.overlay[staged[i]].value)
			if err != nil || !cont {
				return err
			}
			i++
		}
		cont, err := emit(key, it.Value())
		if err != nil || !cont {
			return err
		}
	}
	for ; i < len(staged); i++ {
		cont, err := emit([]byte(staged[i]), m.overlay[staged[i]].value)
		if err != nil || !cont {
			return err
		}
	}
	return nil
}
