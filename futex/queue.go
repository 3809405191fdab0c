// Copyright 2026 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package futex

// --------------------------------

// A dll is an element of a circular doubly-linked list of waiters.  Every
// list has a sentinel element whose elem field is nil; an empty list is a
// sentinel linked to itself.
type dll struct {
	next *dll
	prev *dll
	elem *waiter // the waiter this element is embedded in, or nil for a sentinel.
}

// makeEmpty() makes list *l empty.
// Requires that *l is currently not part of a non-empty list.
func (l *dll) makeEmpty() {
	l.next = l
	l.prev = l
}

// isEmpty() returns whether list *l is empty.
// Requires that *l is currently part of a list, or the zero dll element.
func (l *dll) isEmpty() bool {
	return l.next == l
}

// insertAfter() inserts element *e into the list after position *p.
// Requires that *e is currently not part of a list and that *p is part of a list.
func (e *dll) insertAfter(p *dll) {
	e.next = p.next
	e.prev = p
	e.next.prev = e
	e.prev.next = e
}

// remove() removes *e from the list it is currently in.
// Requires that *e is currently part of a list.
func (e *dll) remove() {
	e.next.prev = e.prev
	e.prev.next = e.next
	e.next = nil
	e.prev = nil
}

// --------------------------------

// A waitQueue is the FIFO of waiters sharing one key.  New waiters are
// linked directly after the sentinel, so the sentinel's prev element is the
// oldest waiter and its next element the newest.  All operations preserve
// insertion order, and a table never holds an empty waitQueue.
type waitQueue struct {
	head dll
}

func newWaitQueue() *waitQueue {
	q := new(waitQueue)
	q.head.makeEmpty()
	return q
}

// empty() returns whether *q holds no waiters.
func (q *waitQueue) empty() bool {
	return q.head.isEmpty()
}

// pushBack() appends *w to the queue, behind every current waiter.
func (q *waitQueue) pushBack(w *waiter) {
	w.q.insertAfter(&q.head)
}

// popFront() removes and returns the oldest waiter, or nil if *q is empty.
func (q *waitQueue) popFront() *waiter {
	w := q.head.prev.elem
	if w != nil {
		w.q.remove()
	}
	return w
}

// remove() unlinks *w, which must be linked in *q.  Removal of an interior
// or final element leaves the sentinel's prev and next consistent, so a
// later pushBack cannot lose waiters behind a stale tail.
func (q *waitQueue) remove(w *waiter) {
	w.q.remove()
}

// len() returns the number of linked waiters.
func (q *waitQueue) len() int {
	n := 0
	for e := q.head.next; e != &q.head; e = e.next {
		n++
	}
	return n
}
