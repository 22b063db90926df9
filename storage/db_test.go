package storage

import (
	"errors"
	"testing"
)

func TestMemDBPutGetDelete(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	if _, err := db.Get([]byte("missing")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := db.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("put: %v", err)
	}
	value, err := db.Get([]byte("k"))
	if err != nil || string(value) != "v" {
		t.Fatalf("get: %v value=%q", err, value)
	}
	ok, err := db.Has([]byte("k"))
	if err != nil || !ok {
		t.Fatalf("has: %v ok=%v", err, ok)
	}
	if err := db.Delete([]byte("k")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := db.Get([]byte("k")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemDBIteratorPrefixOrder(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	entries := map[string]string{
		"a/2": "two",
		"a/1": "one",
		"a/3": "three",
		"b/1": "other",
	}
	for k, v := range entries {
		if err := db.Put([]byte(k), []byte(v)); err != nil {
			t.Fatalf("put %s: %v", k, err)
		}
	}

	it := db.NewIterator([]byte("a/"))
	defer it.Release()
	var keys []string
	for it.Next() {
		keys = append(keys, string(it.Key()))
	}
	if len(keys) != 3 || keys[0] != "a/1" || keys[1] != "a/2" || keys[2] != "a/3" {
		t.Fatalf("unexpected iteration order %v", keys)
	}
}

func TestMemDBIteratorSnapshot(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	if err := db.Put([]byte("p/1"), []byte("v")); err != nil {
		t.Fatalf("put: %v", err)
	}
	it := db.NewIterator([]byte("p/"))
	defer it.Release()
	if err := db.Delete([]byte("p/1")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !it.Next() {
		t.Fatalf("iterator should still see the snapshotted key")
	}
}
