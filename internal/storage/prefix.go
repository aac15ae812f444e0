// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package storage

// PrefixDB wraps a DB and prepends a fixed prefix to all keys,
// so several stores can share one underlying database.
type PrefixDB struct {
	inner  DB
	prefix []byte
}

var _ DB = (*PrefixDB)(nil)

// NewPrefixDB creates a new PrefixDB wrapping inner with the given prefix.
func NewPrefixDB(inner DB, prefix string) *PrefixDB {
	return &PrefixDB{inner: inner, prefix: []byte(prefix)}
}

// prefixed returns key with the prefix prepended.
func (p *PrefixDB) prefixed(key []byte) []byte {
	out := make([]byte, 0, len(p.prefix)+len(key))
	out = append(out, p.prefix...)

	return append(out, key...)
}

// Get retrieves a value by key.
func (p *PrefixDB) Get(key []byte) ([]byte, error) {
	return p.inner.Get(p.prefixed(key))
}

// Put stores a key-value pair.
func (p *PrefixDB) Put(key, value []byte) error {
	return p.inner.Put(p.prefixed(key), value)
}

// Delete removes a key.
func (p *PrefixDB) Delete(key []byte) error {
	return p.inner.Delete(p.prefixed(key))
}

// Has checks if a key exists.
func (p *PrefixDB) Has(key []byte) (bool, error) {
	return p.inner.Has(p.prefixed(key))
}

// ForEach iterates over all keys with the given prefix, keys are passed to fn without the PrefixDB prefix.
func (p *PrefixDB) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	return p.inner.ForEach(p.prefixed(prefix), func(key, value []byte) error {
		return fn(key[len(p.prefix):], value)
	})
}

// Close is a no-op, the inner DB manages its own lifecycle.
func (p *PrefixDB) Close() error {
	return nil
}
