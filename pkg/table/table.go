// Package table implements an open-addressed hash table: linear
// probing, 75% max load, tombstone deletion, and the specialised
// FindString probe used solely by the VM's string-intern table. It
// backs globals, methods, fields, and interning (pkg/vm, pkg/object)
// so their tombstone/weak-purge behaviour is real and observable
// rather than hidden behind Go's builtin map.
package table

import (
	"bytes"

	"github.com/valp-lang/valp/pkg/value"
)

const maxLoad = 0.75

// Key is satisfied by canonical string keys (pkg/object.String). The
// table only needs a stable hash and the underlying bytes to run
// find_string-style probing; key lookups compare by identity first and
// fall back to byte content (see sameKey).
type Key interface {
	Hash() uint32
	Bytes() []byte
}

type entry struct {
	key       Key // nil = empty, or tombstone if tombstone == true
	value     value.Value
	tombstone bool
}

// Table is an open-addressed map from a Key to a value.Value.
// The zero value is ready to use.
type Table struct {
	entries []entry
	// count is occupied slots: live entries plus tombstones, so a
	// rebuild happens before the table fills with tombstones.
	count int
}

// Len reports the number of live (non-tombstone) entries.
func (t *Table) Len() int {
	n := 0
	for _, e := range t.entries {
		if e.key != nil && !e.tombstone {
			n++
		}
	}
	return n
}

func (t *Table) Get(key Key) (value.Value, bool) {
	if len(t.entries) == 0 {
		return value.Nil, false
	}
	e := t.findEntry(t.entries, key)
	if e.key == nil || e.tombstone {
		return value.Nil, false
	}
	return e.value, true
}

// Set inserts or overwrites key's value. Reports true if this created a
// brand-new key (not previously present, even as a tombstone).
func (t *Table) Set(key Key, v value.Value) bool {
	if float64(t.count+1) > float64(len(t.entries))*maxLoad {
		t.grow()
	}
	e := t.findEntry(t.entries, key)
	isNew := e.key == nil
	if isNew && !e.tombstone {
		t.count++
	}
	e.key = key
	e.value = v
	e.tombstone = false
	return isNew
}

// Delete removes key, leaving a tombstone so later probes still find
// keys that hashed past this slot.
func (t *Table) Delete(key Key) bool {
	if len(t.entries) == 0 {
		return false
	}
	e := t.findEntry(t.entries, key)
	if e.key == nil || e.tombstone {
		return false
	}
	e.key = nil
	e.value = value.Bool(true)
	e.tombstone = true
	return true
}

// FindString probes for a canonical string by content rather than by
// Key identity. This is the sole place string identity is established.
func (t *Table) FindString(hash uint32, bytesVal []byte) Key {
	if len(t.entries) == 0 {
		return nil
	}
	mask := uint32(len(t.entries) - 1)
	idx := hash & mask
	for {
		e := &t.entries[idx]
		if e.key == nil {
			if !e.tombstone {
				return nil
			}
		} else if e.key.Hash() == hash && bytes.Equal(e.key.Bytes(), bytesVal) {
			return e.key
		}
		idx = (idx + 1) & mask
	}
}

// RemoveWhite deletes every entry whose key is unmarked according to
// marked. The intern table holds its strings weakly: this must run
// between mark (trace) and sweep so dead interned strings leave the
// table before their storage is reclaimed.
func (t *Table) RemoveWhite(marked func(Key) bool) {
	for i := range t.entries {
		e := &t.entries[i]
		if e.key != nil && !e.tombstone && !marked(e.key) {
			e.key = nil
			e.value = value.Bool(true)
			e.tombstone = true
		}
	}
}

// Each iterates every live entry. The callback must not mutate the table.
func (t *Table) Each(fn func(Key, value.Value)) {
	for _, e := range t.entries {
		if e.key != nil && !e.tombstone {
			fn(e.key, e.value)
		}
	}
}

func (t *Table) findEntry(entries []entry, key Key) *entry {
	mask := uint32(len(entries) - 1)
	idx := key.Hash() & mask
	var tombstone *entry
	for {
		e := &entries[idx]
		if e.key == nil {
			if !e.tombstone {
				if tombstone != nil {
					return tombstone
				}
				return e
			}
			if tombstone == nil {
				tombstone = e
			}
		} else if e.key.Hash() == key.Hash() && sameKey(e.key, key) {
			return e
		}
		idx = (idx + 1) & mask
	}
}

// sameKey compares by identity first (canonical strings are already
// unique) and falls back to byte content so callers that haven't gone
// through interning yet still probe correctly.
func sameKey(a, b Key) bool {
	if a == b {
		return true
	}
	return bytes.Equal(a.Bytes(), b.Bytes())
}

func (t *Table) grow() {
	newCap := 8
	if len(t.entries) > 0 {
		newCap = len(t.entries) * 2
	}
	newEntries := make([]entry, newCap)
	count := 0
	for _, e := range t.entries {
		if e.key == nil {
			continue
		}
		dst := findEntryIn(newEntries, e.key)
		dst.key = e.key
		dst.value = e.value
		count++
	}
	t.entries = newEntries
	t.count = count
}

func findEntryIn(entries []entry, key Key) *entry {
	mask := uint32(len(entries) - 1)
	idx := key.Hash() & mask
	for {
		e := &entries[idx]
		if e.key == nil {
			return e
		}
		idx = (idx + 1) & mask
	}
}
