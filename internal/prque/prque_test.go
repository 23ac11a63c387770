// CookieJar - A contestant's algorithm toolbox
// Copyright (c) 2013 Peter Szilagyi. All rights reserved.
//
// CookieJar is dual licensed: use of this source code is governed by a BSD
// license that can be found in the LICENSE file. Alternatively, the CookieJar
// toolbox may be used in accordance with the terms and conditions contained
// in a signed written agreement between you and the author(s).

package prque

import "testing"

func TestPrquePopOrdersByDescendingPriority(t *testing.T) {
	q := New[string](nil)
	q.Push("low", 1)
	q.Push("high", 10)
	q.Push("mid", 5)

	var order []string
	for !q.Empty() {
		v, _ := q.Pop()
		order = append(order, v)
	}
	want := []string{"high", "mid", "low"}
	for i, v := range want {
		if order[i] != v {
			t.Fatalf("pop order mismatch at %d: have %s, want %s", i, order[i], v)
		}
	}
}

func TestPrquePeekDoesNotRemove(t *testing.T) {
	q := New[string](nil)
	q.Push("only", 1)

	v, p := q.Peek()
	if v != "only" || p != 1 {
		t.Fatalf("unexpected peek result: %v %v", v, p)
	}
	if q.Size() != 1 {
		t.Fatalf("peek should not remove, size = %d", q.Size())
	}
}

func TestPrqueSetIndexTracksPosition(t *testing.T) {
	indexOf := make(map[string]int)
	q := New[string](func(data string, index int) {
		indexOf[data] = index
	})
	q.Push("a", 1)
	q.Push("b", 2)
	q.Push("c", 3)

	if indexOf["c"] != 0 {
		t.Fatalf("expected top-priority item c at index 0, got %d", indexOf["c"])
	}

	q.Remove(indexOf["c"])
	if _, ok := indexOf["c"]; !ok {
		t.Fatalf("expected removal callback with index -1 to still have run")
	}
	if indexOf["c"] != -1 {
		t.Fatalf("expected removed item's tracked index to become -1, got %d", indexOf["c"])
	}
}

func TestPrqueResetEmptiesQueue(t *testing.T) {
	q := New[int](nil)
	q.Push(1, 1)
	q.Push(2, 2)
	q.Reset()
	if !q.Empty() || q.Size() != 0 {
		t.Fatalf("expected empty queue after reset")
	}
}

func TestNewWrapAroundHandlesNegativePriorityDelta(t *testing.T) {
	q := NewWrapAround[string](nil)
	q.Push("a", 3)
	q.Push("b", 5)

	v, _ := q.Pop()
	if v != "b" {
		t.Fatalf("expected higher raw priority to pop first, got %s", v)
	}
}
