// Package kvstore is the flat string-keyed persistence layer. All
// regeneration state lives here as JSON values under string keys;
// there is no other durable format.
//
// Backend is the raw byte-level seam (SQLite in production, an
// in-memory map in tests). Store wraps a Backend with JSON encoding
// and per-call failure isolation: a Store call never panics and never
// returns an error. Failures are logged and reported through the
// boolean result alone, so one bad key or one failed write can never
// take down a scan pass.
package kvstore

import (
	"encoding/json"
	"io"
	"log"
)

// Backend is raw keyed byte storage.
type Backend interface {
	// Get returns the stored value and whether the key was present.
	Get(key string) (value []byte, ok bool, err error)
	// Set stores value under key, replacing any previous value.
	Set(key string, value []byte) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(key string) error
	// Keys returns every stored key in unspecified order.
	Keys() ([]string, error)
	Close() error
}

// Store is the typed adapter the engine and workflows talk to.
type Store struct {
	b   Backend
	log *log.Logger
}

// New wraps a Backend. A nil logger discards failure logs.
func New(b Backend, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Store{b: b, log: logger}
}

// Get loads and decodes the value under key into v. It returns false
// when the key is absent, the read fails, or the stored bytes do not
// decode; in every false case the caller must treat the key as absent.
func (s *Store) Get(key string, v any) bool {
	raw, ok, err := s.b.Get(key)
	if err != nil {
		s.log.Printf("get %s: %v", key, err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		s.log.Printf("get %s: decode: %v", key, err)
		return false
	}
	return true
}

// Has reports whether key currently holds a value. Read failures count
// as absent, same as Get.
func (s *Store) Has(key string) bool {
	_, ok, err := s.b.Get(key)
	if err != nil {
		s.log.Printf("has %s: %v", key, err)
		return false
	}
	return ok
}

// Set encodes v and stores it under key. On a false return the previous
// value for key is unspecified; callers relying on durability retry on
// a later tick.
func (s *Store) Set(key string, v any) bool {
	raw, err := json.Marshal(v)
	if err != nil {
		s.log.Printf("set %s: encode: %v", key, err)
		return false
	}
	if err := s.b.Set(key, raw); err != nil {
		s.log.Printf("set %s: %v", key, err)
		return false
	}
	return true
}

// Remove deletes key.
func (s *Store) Remove(key string) bool {
	if err := s.b.Remove(key); err != nil {
		s.log.Printf("remove %s: %v", key, err)
		return false
	}
	return true
}

// Keys lists every stored key, unordered. On a listing failure it
// returns nil; a scan over nil simply does nothing until the next tick.
func (s *Store) Keys() []string {
	keys, err := s.b.Keys()
	if err != nil {
		s.log.Printf("keys: %v", err)
		return nil
	}
	return keys
}
