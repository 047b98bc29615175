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

package probemap

// option provides an interface to do work on a Map while it is being
// created.
type option[R Record] interface {
	apply(m *Map[R])
}

type hashOption[R Record] struct {
	hash func(key string) uintptr
}

func (op hashOption[R]) apply(m *Map[R]) {
	m.hash = op.hash
}

// WithHash is an option to replace the default djb2 string hash of a
// Map[R]. The function must be deterministic; records placed under one
// hash function are unreachable under another.
func WithHash[R Record](hash func(key string) uintptr) option[R] {
	return hashOption[R]{hash}
}

type loadFactorOption[R Record] struct {
	factor float64
}

func (op loadFactorOption[R]) apply(m *Map[R]) {
	m.SetLoadFactor(op.factor)
}

// WithLoadFactor is an option to set the load-factor threshold of a
// Map[R]. The factor must be in (0, 1).
func WithLoadFactor[R Record](factor float64) option[R] {
	return loadFactorOption[R]{factor}
}

type growthFactorOption[R Record] struct {
	factor float64
}

func (op growthFactorOption[R]) apply(m *Map[R]) {
	m.SetGrowthFactor(op.factor)
}

// WithGrowthFactor is an option to set the capacity multiplier a Map[R]
// applies when it grows. The factor must be greater than 1.
func WithGrowthFactor[R Record](factor float64) option[R] {
	return growthFactorOption[R]{factor}
}

type cleanupOption[R Record] struct {
	fn func(R)
}

func (op cleanupOption[R]) apply(m *Map[R]) {
	m.onEvict = op.fn
}

// WithCleanup is an option to register a cleanup callback on a Map[R].
// The map invokes the callback exactly once per superseded or removed
// record: on update-overwrite, on Delete, and on Clear, passing the
// record by value before its slot is reused. The callback is expected to
// release any resources the record owns and must not mutate the map.
func WithCleanup[R Record](fn func(rec R)) option[R] {
	return cleanupOption[R]{fn}
}

// Allocator specifies an interface for allocating and releasing the
// memory used by a Map's slot array. The default allocator uses Go's
// builtin make() and lets the GC reclaim memory.
//
// If the allocator manually manages memory then Map.Close must be called
// to ensure the final slot array is handed back to FreeSlots.
type Allocator[R Record] interface {
	// AllocSlots should return a slice equivalent to make([]R, n), with
	// every slot vacant (zero).
	AllocSlots(n int) []R

	// FreeSlots can optionally release the memory associated with the
	// supplied slice that is guaranteed to have been allocated by
	// AllocSlots.
	FreeSlots(v []R)
}

type defaultAllocator[R Record] struct{}

func (defaultAllocator[R]) AllocSlots(n int) []R {
	return make([]R, n)
}

func (defaultAllocator[R]) FreeSlots(v []R) {
}

type allocatorOption[R Record] struct {
	allocator Allocator[R]
}

func (op allocatorOption[R]) apply(m *Map[R]) {
	m.allocator = op.allocator
}

// WithAllocator is an option to specify the Allocator to use for a
// Map[R].
func WithAllocator[R Record](allocator Allocator[R]) option[R] {
	return allocatorOption[R]{allocator}
}
