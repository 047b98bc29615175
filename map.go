// Copyright 2025 The Probemap Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package probemap provides a string-keyed hash map with open addressing
// and linear probing, plus a small companion dynamic array (see Vector).
// Both are embeddable, single-owner containers: there is no internal
// locking and no operation blocks or performs I/O.
//
// # Layout
//
// A Map[R] stores records of a user-defined type R directly in a single
// contiguous slot array. R must satisfy the Record constraint by exposing
// its key through a Key() string method. A slot is vacant iff the record
// it holds reports an empty key, so user keys must be non-empty; the zero
// value of R must report an empty key (true for any struct type whose key
// field is a string).
//
// Storing whole records rather than key/value pairs lets a caller keep the
// key adjacent to arbitrary payload fields with no per-entry allocation,
// at the cost of copying R on insert and lookup. GetRef exposes a pointer
// into the slot array for in-place value mutation between structural
// changes.
//
// # Probing
//
// Lookup computes the natural bucket hash(key) % capacity and scans
// forward sequentially, wrapping at the end of the slot array, until it
// finds a record with an equal key or hits a vacant slot. Capacity is not
// required to be a power of two. The map maintains the invariant that
// every record is reachable from its natural bucket by a contiguous run
// of occupied slots; insertion, growth, and deletion all preserve it.
//
// # Deletion
//
// Deletion is tombstone-free. After clearing the target slot the map
// walks the contiguous run of occupied slots that follows and reinserts
// each record via a fresh probe from its natural bucket, which may move
// it back into the gap just opened. This costs O(run length) per delete
// but keeps probe runs tight and requires no deleted markers or periodic
// rehash.
//
// # Growth
//
// The map grows before insertion would reach the load-factor threshold:
// a record is only placed once count+1 < floor(capacity*loadFactor).
// Growth allocates a fresh slot array of max(capacity+1,
// floor(capacity*growthFactor)) and re-probes every record under the new
// capacity. The old array is released only after the new one is fully
// populated, so a failed allocation cannot strand the map in a corrupt
// state.
package probemap

import (
	"fmt"
	"strings"
)

const (
	debug = false

	defaultInitialCapacity = 16
	defaultLoadFactor      = 0.75
	defaultGrowthFactor    = 2.0
)

// Record is the constraint on the element types a Map can hold. Key
// returns the record's key. Keys of live records must be non-empty: the
// empty key is the vacant-slot sentinel.
type Record interface {
	Key() string
}

// hashFn is the signature of the string hash used to pick a record's
// natural bucket. It must be deterministic for the lifetime of a map:
// the same function is used by insertion, lookup, and growth, and a
// record placed under one hash is unreachable under another.
type hashFn func(key string) uintptr

// hashString is the default hash: djb2 over the bytes of the key.
func hashString(key string) uintptr {
	h := uintptr(5381)
	for i := 0; i < len(key); i++ {
		h = ((h << 5) + h) + uintptr(key[i])
	}
	return h
}

// Map is a hash map from string keys to records with Put, Get, Delete,
// and All operations. The zero value is an empty map ready for use; the
// first insertion allocates at the default or configured capacity. New
// and Init apply options that override the hash function, allocator,
// resize policy, and cleanup callback.
//
// A Map is NOT goroutine-safe.
type Map[R Record] struct {
	// slots is capacity in length. A slot holds at most one record; it is
	// vacant iff the record's key is empty.
	slots []R
	// The number of live records.
	count int
	// Resize policy. Growth triggers when an insertion would reach
	// floor(capacity*loadFactor); the new capacity is the old multiplied
	// by growthFactor.
	loadFactor   float64
	growthFactor float64
	hash         hashFn
	// The allocator used for the slot array.
	allocator Allocator[R]
	// onEvict, if set, is invoked exactly once per superseded or removed
	// record. See WithCleanup.
	onEvict func(R)
}

// New constructs a Map with at least the specified initial capacity. If
// initialCapacity is 0 the map starts without an allocation and grows on
// the first insert.
func New[R Record](initialCapacity int, options ...option[R]) *Map[R] {
	m := &Map[R]{}
	m.Init(initialCapacity, options...)
	return m
}

// Init (re)initializes a map in place, discarding any previous state. It
// allows a Map embedded by value in a larger struct to be configured with
// options without a separate allocation.
func (m *Map[R]) Init(initialCapacity int, options ...option[R]) {
	*m = Map[R]{
		loadFactor:   defaultLoadFactor,
		growthFactor: defaultGrowthFactor,
		hash:         hashString,
		allocator:    defaultAllocator[R]{},
	}
	for _, op := range options {
		op.apply(m)
	}
	if initialCapacity > 0 {
		m.EnsureCapacity(initialCapacity)
	}
	m.checkInvariants()
}

// lazyInit fills in the defaults for a zero-value Map that is being
// mutated for the first time.
func (m *Map[R]) lazyInit() {
	if m.hash == nil {
		m.hash = hashString
	}
	if m.allocator == nil {
		m.allocator = defaultAllocator[R]{}
	}
	if m.loadFactor == 0 {
		m.loadFactor = defaultLoadFactor
	}
	if m.growthFactor == 0 {
		m.growthFactor = defaultGrowthFactor
	}
}

// Put inserts a record, overwriting any existing record with the same
// key. Overwriting does not change Len; the superseded record is handed
// to the cleanup callback, if one is configured, before it is replaced.
// Put panics if the record's key is empty.
func (m *Map[R]) Put(rec R) {
	key := rec.Key()
	if key == "" {
		panic("probemap: record has an empty key")
	}
	m.lazyInit()
	if len(m.slots) == 0 {
		m.resize(defaultInitialCapacity)
	}
	if m.count+1 >= int(float64(len(m.slots))*m.loadFactor) {
		m.grow()
	}

	capacity := uintptr(len(m.slots))
	h := m.hash(key) % capacity
	if debug {
		fmt.Printf("put(%q): bucket=%d capacity=%d count=%d\n", key, h, capacity, m.count)
	}
	for {
		k := m.slots[h].Key()
		if k == "" {
			m.slots[h] = rec
			m.count++
			break
		}
		if k == key {
			if m.onEvict != nil {
				m.onEvict(m.slots[h])
			}
			m.slots[h] = rec
			break
		}
		h++
		if h == capacity {
			h = 0
		}
	}
	m.checkInvariants()
}

// Get retrieves a copy of the record stored under key, returning
// ok=false if the key is not present. Looking up the empty key or
// probing an unallocated map returns ok=false without error.
func (m *Map[R]) Get(key string) (rec R, ok bool) {
	s := m.findSlot(key)
	if s == nil {
		return rec, false
	}
	return *s, true
}

// GetRef returns a pointer to the record stored under key, or nil if the
// key is not present. The pointer allows in-place mutation of payload
// fields but is invalidated by any mutating call on the map; mutating
// the key through it corrupts the map.
func (m *Map[R]) GetRef(key string) *R {
	return m.findSlot(key)
}

// findSlot probes for key and returns the slot holding it, or nil.
func (m *Map[R]) findSlot(key string) *R {
	if len(m.slots) == 0 || key == "" {
		return nil
	}
	capacity := uintptr(len(m.slots))
	h := m.hash(key) % capacity
	if debug {
		fmt.Printf("get(%q): bucket=%d capacity=%d\n", key, h, capacity)
	}
	for start := h; ; {
		k := m.slots[h].Key()
		if k == "" {
			return nil
		}
		if k == key {
			return &m.slots[h]
		}
		h++
		if h == capacity {
			h = 0
		}
		if h == start {
			// A full wrap means every slot is occupied and none matched.
			// That only happens on a degenerate table (e.g. one resized
			// below its record count by hand); terminate rather than
			// probe forever.
			return nil
		}
	}
}

// Delete removes the record stored under key. It is a noop to delete a
// non-existent key. The removed record is handed to the cleanup
// callback, if one is configured.
func (m *Map[R]) Delete(key string) {
	if len(m.slots) == 0 || key == "" {
		return
	}
	capacity := uintptr(len(m.slots))
	h := m.hash(key) % capacity
	for start := h; ; {
		k := m.slots[h].Key()
		if k == "" {
			return
		}
		if k == key {
			m.deleteAt(h)
			m.checkInvariants()
			return
		}
		h++
		if h == capacity {
			h = 0
		}
		if h == start {
			return
		}
	}
}

// deleteAt clears slot h and repairs the probe invariant for the
// contiguous run of occupied slots that follows it. Each record in the
// run is lifted out and reinserted via a fresh probe from its natural
// bucket, which may relocate it earlier in the run, including into the
// gap at h. The walk stops at the first vacant slot.
func (m *Map[R]) deleteAt(h uintptr) {
	capacity := uintptr(len(m.slots))
	var zero R
	if m.onEvict != nil {
		m.onEvict(m.slots[h])
	}
	m.slots[h] = zero
	m.count--

	j := h + 1
	if j == capacity {
		j = 0
	}
	for m.slots[j].Key() != "" {
		rec := m.slots[j]
		m.slots[j] = zero
		i := m.hash(rec.Key()) % capacity
		for m.slots[i].Key() != "" {
			i++
			if i == capacity {
				i = 0
			}
		}
		if debug && i != j {
			fmt.Printf("delete: relocating %q: %d -> %d\n", rec.Key(), j, i)
		}
		m.slots[i] = rec
		j++
		if j == capacity {
			j = 0
		}
	}
}

// grow expands the map per its resize policy, guaranteeing a strict
// capacity increase even when the growth factor rounds down to the
// current capacity or below.
func (m *Map[R]) grow() {
	newCapacity := int(float64(len(m.slots)) * m.growthFactor)
	if newCapacity <= len(m.slots) {
		newCapacity = len(m.slots) + 1
	}
	m.resize(newCapacity)
}

// resize moves the map to a fresh slot array of newCapacity slots,
// re-probing every record under the new capacity. Records are known
// unique so reinsertion skips the duplicate-key check. newCapacity is
// not validated against the record count; both the growth path and
// EnsureCapacity always pass a sufficient value. The old array is
// released only after the new one is fully populated.
func (m *Map[R]) resize(newCapacity int) {
	old := m.slots
	m.slots = m.allocator.AllocSlots(newCapacity)
	if debug {
		fmt.Printf("resize: capacity=%d->%d count=%d\n", len(old), newCapacity, m.count)
	}

	capacity := uintptr(newCapacity)
	for i := range old {
		key := old[i].Key()
		if key == "" {
			continue
		}
		h := m.hash(key) % capacity
		for m.slots[h].Key() != "" {
			h++
			if h == capacity {
				h = 0
			}
		}
		m.slots[h] = old[i]
	}

	if old != nil {
		m.allocator.FreeSlots(old)
	}
	m.checkInvariants()
}

// EnsureCapacity grows the map so that it has at least minCapacity
// slots. An unallocated map is allocated at max(minCapacity, the default
// initial capacity). EnsureCapacity never shrinks.
func (m *Map[R]) EnsureCapacity(minCapacity int) {
	m.lazyInit()
	if len(m.slots) == 0 {
		if minCapacity < defaultInitialCapacity {
			minCapacity = defaultInitialCapacity
		}
		m.slots = m.allocator.AllocSlots(minCapacity)
		return
	}
	if len(m.slots) < minCapacity {
		m.resize(minCapacity)
	}
}

// Clone returns an independent copy of the map with identical capacity,
// records, and resize policy. The copy is shallow: reference-typed
// fields inside records (including the string key's backing bytes) are
// aliased between the original and the clone.
func (m *Map[R]) Clone() *Map[R] {
	c := &Map[R]{}
	*c = *m
	if m.slots != nil {
		c.slots = c.allocator.AllocSlots(len(m.slots))
		copy(c.slots, m.slots)
	}
	return c
}

// Clear removes every record while retaining the current capacity. Each
// live record is handed to the cleanup callback, if one is configured.
func (m *Map[R]) Clear() {
	var zero R
	for i := range m.slots {
		if m.slots[i].Key() == "" {
			continue
		}
		if m.onEvict != nil {
			m.onEvict(m.slots[i])
		}
		m.slots[i] = zero
	}
	m.count = 0
	m.checkInvariants()
}

// Close releases the slot array back to the map's allocator and resets
// the map to its unallocated state. Close is idempotent, and a fresh
// insert after Close creates a new, unrelated allocation. Records are
// not passed to the cleanup callback; use Clear first if their resources
// must be released.
func (m *Map[R]) Close() {
	if m.slots != nil {
		m.allocator.FreeSlots(m.slots)
		m.slots = nil
	}
	m.count = 0
}

// All calls yield sequentially for each record in the map, in slot
// order. If yield returns false, iteration stops. The slot array is
// snapshotted up front, so the map may be mutated during iteration,
// though mutations are not guaranteed to be visible to the iteration.
func (m *Map[R]) All(yield func(rec R) bool) {
	slots := m.slots
	for i := range slots {
		if slots[i].Key() == "" {
			continue
		}
		if !yield(slots[i]) {
			return
		}
	}
}

// Len returns the number of records in the map.
func (m *Map[R]) Len() int {
	return m.count
}

// Cap returns the number of slots in the map.
func (m *Map[R]) Cap() int {
	return len(m.slots)
}

// LoadFactor returns the map's load-factor threshold.
func (m *Map[R]) LoadFactor() float64 {
	if m.loadFactor == 0 {
		return defaultLoadFactor
	}
	return m.loadFactor
}

// GrowthFactor returns the map's growth multiplier.
func (m *Map[R]) GrowthFactor() float64 {
	if m.growthFactor == 0 {
		return defaultGrowthFactor
	}
	return m.growthFactor
}

// SetLoadFactor overrides the load-factor threshold. It takes effect on
// the next resize decision, not retroactively. SetLoadFactor panics if
// factor is outside (0, 1): a factor of 1 or more would let the table
// fill completely and insertion probes would not terminate.
func (m *Map[R]) SetLoadFactor(factor float64) {
	if factor <= 0 || factor >= 1 {
		panic(fmt.Sprintf("probemap: load factor %v outside (0, 1)", factor))
	}
	m.loadFactor = factor
}

// SetGrowthFactor overrides the growth multiplier applied to the
// capacity on growth. It takes effect on the next resize decision.
// SetGrowthFactor panics if factor is not greater than 1.
func (m *Map[R]) SetGrowthFactor(factor float64) {
	if factor <= 1 {
		panic(fmt.Sprintf("probemap: growth factor %v must be > 1", factor))
	}
	m.growthFactor = factor
}

// checkInvariants verifies the structural invariants of the map when
// built with the invariants build tag: the record count matches the
// number of occupied slots, keys are unique, and every record is
// reachable from its natural bucket by a contiguous forward run of
// occupied slots.
func (m *Map[R]) checkInvariants() {
	if !invariants {
		return
	}
	capacity := uintptr(len(m.slots))
	seen := make(map[string]bool, m.count)
	var occupied int
	for i := uintptr(0); i < capacity; i++ {
		key := m.slots[i].Key()
		if key == "" {
			continue
		}
		occupied++
		if seen[key] {
			panic(fmt.Sprintf("invariant failed: duplicate key %q", key))
		}
		seen[key] = true
		for h := m.hash(key) % capacity; h != i; {
			if m.slots[h].Key() == "" {
				panic(fmt.Sprintf(
					"invariant failed: %q at slot %d unreachable from bucket %d: vacant slot %d\n%s",
					key, i, m.hash(key)%capacity, h, m.debugString()))
			}
			h++
			if h == capacity {
				h = 0
			}
		}
	}
	if occupied != m.count {
		panic(fmt.Sprintf("invariant failed: found %d occupied slots, but count is %d\n%s",
			occupied, m.count, m.debugString()))
	}
}

func (m *Map[R]) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "capacity=%d count=%d load-factor=%v growth-factor=%v\n",
		len(m.slots), m.count, m.loadFactor, m.growthFactor)
	for i := range m.slots {
		if key := m.slots[i].Key(); key != "" {
			fmt.Fprintf(&buf, "  %4d: %q [bucket=%d]\n", i, key, m.hash(key)%uintptr(len(m.slots)))
		} else {
			fmt.Fprintf(&buf, "  %4d: vacant\n", i)
		}
	}
	return buf.String()
}
