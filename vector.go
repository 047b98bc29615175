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

import "fmt"

// Vector is a dynamic array of elements of type T with amortized-growth
// appends. Unlike the Map, which grows ahead of a load-factor threshold,
// a Vector grows only when completely full, multiplying its capacity by
// the growth factor. The zero value is an empty vector ready for use;
// the first push allocates at the default initial capacity.
//
// A Vector is NOT goroutine-safe.
type Vector[T any] struct {
	// elems is capacity in length; the first count entries are live.
	elems []T
	count int
	// growthFactor is the capacity multiplier applied when a push finds
	// the vector full. Zero means the default.
	growthFactor float64
}

// NewVector constructs a Vector with at least the specified initial
// capacity. If initialCapacity is 0 the vector starts without an
// allocation and grows on the first push.
func NewVector[T any](initialCapacity int) *Vector[T] {
	v := &Vector[T]{}
	if initialCapacity > 0 {
		v.EnsureCapacity(initialCapacity)
	}
	return v
}

// Len returns the number of elements in the vector.
func (v *Vector[T]) Len() int {
	return v.count
}

// Cap returns the number of element slots allocated.
func (v *Vector[T]) Cap() int {
	return len(v.elems)
}

// GrowthFactor returns the vector's growth multiplier.
func (v *Vector[T]) GrowthFactor() float64 {
	if v.growthFactor == 0 {
		return defaultGrowthFactor
	}
	return v.growthFactor
}

// SetGrowthFactor overrides the growth multiplier applied to the
// capacity when the vector is grown. It panics if factor is not greater
// than 1.
func (v *Vector[T]) SetGrowthFactor(factor float64) {
	if factor <= 1 {
		panic(fmt.Sprintf("probemap: growth factor %v must be > 1", factor))
	}
	v.growthFactor = factor
}

// Push appends an element to the end of the vector, growing it if full.
func (v *Vector[T]) Push(elem T) {
	if v.count >= len(v.elems) {
		newCapacity := int(float64(len(v.elems)) * v.GrowthFactor())
		if newCapacity <= len(v.elems) {
			newCapacity = len(v.elems) + 1
		}
		if newCapacity < defaultInitialCapacity {
			newCapacity = defaultInitialCapacity
		}
		v.setCapacity(newCapacity)
	}
	v.elems[v.count] = elem
	v.count++
}

// Pop removes and returns the last element, returning ok=false if the
// vector is empty.
func (v *Vector[T]) Pop() (elem T, ok bool) {
	if v.count == 0 {
		return elem, false
	}
	v.count--
	elem = v.elems[v.count]
	// Zero the vacated slot so the vector does not pin references held
	// by the popped element.
	var zero T
	v.elems[v.count] = zero
	return elem, true
}

// At returns a copy of the element at index i. It panics if i is out of
// range.
func (v *Vector[T]) At(i int) T {
	return v.Slice()[i]
}

// Set replaces the element at index i. It panics if i is out of range.
func (v *Vector[T]) Set(i int, elem T) {
	v.Slice()[i] = elem
}

// Slice returns the live elements as a slice sharing the vector's
// backing array. The slice is invalidated by any growth of the vector.
func (v *Vector[T]) Slice() []T {
	return v.elems[:v.count]
}

// Delete removes the element at index i, shifting subsequent elements
// down. An out-of-range index is a noop.
func (v *Vector[T]) Delete(i int) {
	if i < 0 || i >= v.count {
		return
	}
	copy(v.elems[i:], v.elems[i+1:v.count])
	v.count--
	var zero T
	v.elems[v.count] = zero
}

// EnsureCapacity grows the vector so that it has at least minCapacity
// element slots. It never shrinks.
func (v *Vector[T]) EnsureCapacity(minCapacity int) {
	if len(v.elems) == 0 && minCapacity < defaultInitialCapacity {
		minCapacity = defaultInitialCapacity
	}
	if len(v.elems) < minCapacity {
		v.setCapacity(minCapacity)
	}
}

func (v *Vector[T]) setCapacity(newCapacity int) {
	elems := make([]T, newCapacity)
	copy(elems, v.elems[:v.count])
	v.elems = elems
}

// Clone returns an independent copy of the vector with identical
// capacity and elements. The copy is shallow: reference-typed fields
// inside elements are aliased between the original and the clone.
func (v *Vector[T]) Clone() *Vector[T] {
	return v.CloneWithCapacity(0)
}

// CloneWithCapacity is Clone with a capacity floor: the copy is
// allocated with at least minCapacity element slots.
func (v *Vector[T]) CloneWithCapacity(minCapacity int) *Vector[T] {
	capacity := len(v.elems)
	if capacity < minCapacity {
		capacity = minCapacity
	}
	c := &Vector[T]{
		elems:        make([]T, capacity),
		count:        v.count,
		growthFactor: v.growthFactor,
	}
	copy(c.elems, v.elems[:v.count])
	return c
}

// Clear removes every element while retaining the current capacity.
func (v *Vector[T]) Clear() {
	var zero T
	for i := 0; i < v.count; i++ {
		v.elems[i] = zero
	}
	v.count = 0
}

// Free releases the vector's backing array and resets it to the
// unallocated state. If cleanup is non-nil it is called once per live
// element, in index order, before the array is dropped. Free is
// idempotent, and a fresh push after Free creates a new allocation.
func (v *Vector[T]) Free(cleanup func(elem T)) {
	if cleanup != nil {
		for i := 0; i < v.count; i++ {
			cleanup(v.elems[i])
		}
	}
	v.elems = nil
	v.count = 0
}
