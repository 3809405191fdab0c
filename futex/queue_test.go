// Copyright 2026 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package futex

import "testing"

// newTestWaiters returns n waiters with their list elements wired up, as
// Wait() wires them before enqueueing.
func newTestWaiters(n int) []*waiter {
	ws := make([]*waiter, n)
	for i := range ws {
		w := new(waiter)
		w.q.elem = w
		ws[i] = w
	}
	return ws
}

// popAll drains q from the front and returns the waiters in pop order.
func popAll(q *waitQueue) []*waiter {
	var ws []*waiter
	for {
		w := q.popFront()
		if w == nil {
			return ws
		}
		ws = append(ws, w)
	}
}

func TestQueueFIFO(t *testing.T) {
	q := newWaitQueue()
	if !q.empty() {
		t.Fatalf("new queue is not empty")
	}
	if w := q.popFront(); w != nil {
		t.Fatalf("popFront() on empty queue returned %p", w)
	}
	ws := newTestWaiters(4)
	for i, w := range ws {
		q.pushBack(w)
		if got := q.len(); got != i+1 {
			t.Fatalf("len() = %d after %d pushes", got, i+1)
		}
	}
	for i, want := range ws {
		got := q.popFront()
		if got != want {
			t.Fatalf("popFront() #%d returned waiter %p, want %p", i, got, want)
		}
	}
	if !q.empty() {
		t.Fatalf("queue not empty after popping all waiters")
	}
}

// TestQueueRemoveMiddle checks that removing an interior waiter leaves the
// rest of the queue intact and in order.
func TestQueueRemoveMiddle(t *testing.T) {
	q := newWaitQueue()
	ws := newTestWaiters(3)
	for _, w := range ws {
		q.pushBack(w)
	}
	q.remove(ws[1])
	got := popAll(q)
	if len(got) != 2 || got[0] != ws[0] || got[1] != ws[2] {
		t.Fatalf("queue after interior removal popped %d waiters in wrong order", len(got))
	}
}

// TestQueueRemoveLastThenPush reproduces the stale-tail bug: after the most
// recently enqueued waiter is removed, a subsequent pushBack must still be
// reachable from the queue.
func TestQueueRemoveLastThenPush(t *testing.T) {
	q := newWaitQueue()
	ws := newTestWaiters(3)
	q.pushBack(ws[0])
	q.pushBack(ws[1])
	q.remove(ws[1]) // newest element; a stale tail would now point at it.
	q.pushBack(ws[2])
	got := popAll(q)
	if len(got) != 2 || got[0] != ws[0] || got[1] != ws[2] {
		t.Fatalf("waiter pushed after tail removal was lost or reordered")
	}
}

// TestQueueRemoveFirstThenPush is the mirror case: removing the oldest
// waiter must not leave the head pointing at unlinked storage.
func TestQueueRemoveFirstThenPush(t *testing.T) {
	q := newWaitQueue()
	ws := newTestWaiters(4)
	q.pushBack(ws[0])
	q.pushBack(ws[1])
	q.pushBack(ws[2])
	q.remove(ws[0])
	q.pushBack(ws[3])
	got := popAll(q)
	if len(got) != 3 || got[0] != ws[1] || got[1] != ws[2] || got[2] != ws[3] {
		t.Fatalf("queue order broken after removing the oldest waiter")
	}
}

func TestQueueRemoveOnlyElement(t *testing.T) {
	q := newWaitQueue()
	ws := newTestWaiters(2)
	q.pushBack(ws[0])
	q.remove(ws[0])
	if !q.empty() {
		t.Fatalf("queue not empty after removing its only waiter")
	}
	// The emptied queue must still accept new waiters.
	q.pushBack(ws[1])
	if q.len() != 1 || q.popFront() != ws[1] {
		t.Fatalf("queue unusable after emptying by removal")
	}
}

// TestQueuePoppedUnreachable checks that a popped waiter is no longer
// reachable from the queue.
func TestQueuePoppedUnreachable(t *testing.T) {
	q := newWaitQueue()
	ws := newTestWaiters(2)
	q.pushBack(ws[0])
	q.pushBack(ws[1])
	w := q.popFront()
	for e := q.head.next; e != &q.head; e = e.next {
		if e.elem == w {
			t.Fatalf("popped waiter still linked in queue")
		}
	}
	if w.q.next != nil || w.q.prev != nil {
		t.Fatalf("popped waiter retains stale linkage")
	}
}
