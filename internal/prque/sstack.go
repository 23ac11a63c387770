// CookieJar - A contestant's algorithm toolbox
// Copyright (c) 2013 Peter Szilagyi. All rights reserved.
//
// CookieJar is dual licensed: use of this source code is governed by a BSD
// license that can be found in the LICENSE file. Alternatively, the CookieJar
// toolbox may be used in accordance with the terms and conditions contained
// in a signed written agreement between you and the author(s).

// This is a duplicated and slightly modified version of "gopkg.in/karalabe/cookiejar.v2/collections/prque".

package prque

// The size of a block of data
const blockSize = 4096

// A prioritized item in the sorted stack.
//
// Note: priorities can "wrap around" the int64 range, a comes before b if (a.priority - b.priority) > 0.
// The difference between the lowest and highest priorities in the queue at any point should be less than 2^63.
type item[V any] struct {
	value    V
	priority int64
}

// SetIndexCallback is called when the element is moved to a new index.
// Providing SetIndexCallback is optional, it is needed only if the application needs
// to delete elements other than the top one.
type SetIndexCallback[V any] func(data V, index int)

// Internal sortable stack data structure. Implements the Push and Pop ops for
// the stack (heap) functionality and the Len, Less and Swap methods for the
// sortability requirements of the heaps.
type sstack[V any] struct {
	setIndex   SetIndexCallback[V]
	size       int
	capacity   int
	offset     int
	wrapAround bool

	blocks [][]*item[V]
	active []*item[V]
}

// newSstack creates a new, empty stack.
func newSstack[V any](setIndex SetIndexCallback[V], wrapAround bool) *sstack[V] {
	result := new(sstack[V])
	result.setIndex = setIndex
	result.wrapAround = wrapAround
	result.active = make([]*item[V], blockSize)
	result.blocks = [][]*item[V]{result.active}
	result.capacity = blockSize
	return result
}

// Pushes a value onto the stack, expanding it if necessary. Required by
// heap.Interface.
func (s *sstack[V]) Push(data any) {
	if s.size == s.capacity {
		s.active = make([]*item[V], blockSize)
		s.blocks = append(s.blocks, s.active)
		s.capacity += blockSize
		s.offset = 0
	} else if s.offset == blockSize {
		s.active = s.blocks[s.size/blockSize]
		s.offset = 0
	}
	it := data.(*item[V])
	if s.setIndex != nil {
		s.setIndex(it.value, s.size)
	}
	s.active[s.offset] = it
	s.offset++
	s.size++
}

// Pops a value off the stack and returns it. Currently no shrinking is done.
// Required by heap.Interface.
func (s *sstack[V]) Pop() (res any) {
	s.size--
	s.offset--
	if s.offset < 0 {
		s.offset = blockSize - 1
		s.active = s.blocks[s.size/blockSize]
	}
	it := s.active[s.offset]
	s.active[s.offset] = nil
	if s.setIndex != nil {
		s.setIndex(it.value, -1)
	}
	return it
}

// Len returns the length of the stack. Required by sort.Interface.
func (s *sstack[V]) Len() int {
	return s.size
}

// Less compares the priority of two elements of the stack (higher is first),
// or wraps around if the queue was configured to do so.
func (s *sstack[V]) Less(i, j int) bool {
	a := s.blocks[i/blockSize][i%blockSize].priority
	b := s.blocks[j/blockSize][j%blockSize].priority
	if s.wrapAround {
		return (a - b) > 0
	}
	return a > b
}

// Swap swaps two elements in the stack.
func (s *sstack[V]) Swap(i, j int) {
	ib, io, jb, jo := i/blockSize, i%blockSize, j/blockSize, j%blockSize
	a, b := s.blocks[jb][jo], s.blocks[ib][io]
	if s.setIndex != nil {
		s.setIndex(a.value, i)
		s.setIndex(b.value, j)
	}
	s.blocks[ib][io], s.blocks[jb][jo] = a, b
}

// Reset clears the contents of the stack.
func (s *sstack[V]) Reset() {
	*s = *newSstack(s.setIndex, s.wrapAround)
}
