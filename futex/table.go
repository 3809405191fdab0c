// Copyright 2026 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package futex implements the kernel side of fast userspace mutexes: a
// table of wait queues keyed on userspace addresses, with Wait, Wake and
// Requeue operations.  Userspace manipulates a 32-bit word with atomic
// operations and enters the kernel only on contention, to park itself or to
// wake others.
//
// The host kernel's scheduler and the user-memory accessor are consumed
// through the interfaces in model.go; v.io/x/kernel/sched and
// v.io/x/kernel/usermem provide the standard implementations.
package futex

import "math"
import "sync"
import "time"

// Implementation notes
//
// The table is sharded into a fixed number of buckets by key hash.  Each
// bucket owns a mutex and the queues for the keys that hash to it; the
// bucket mutex is a leaf lock.  Holding it is what makes the classical
// check-then-sleep race-free: Wait loads the user word and enqueues under
// the same lock that Wake must take to pop waiters, so either the load sees
// the pre-modification value and the waiter is enqueued where the wake will
// find it, or it sees the post-modification value and returns Busy.
//
// A waiter lives on the waiting thread's stack and is linked into a bucket's
// queue (see waiter.go).  Every path that ends a wait --- Wake, Requeue's
// wake phase, or the deadline --- transitions the waiter's wakeup field out
// of unset and unlinks it while holding the bucket lock.  Whichever path
// takes the lock first and observes unset wins, so a wake that beats the
// timeout handler to the lock causes the wait to report OK: wakes win ties,
// and a TimedOut return never consumes a wakeup.
//
// Requeue takes two bucket locks.  They are acquired in bucket-index order
// (a single lock when both keys hash to the same bucket), which totally
// orders all two-lock sections and rules out the AB/BA deadlock.
//
// Parked threads are resumed with Parker.Unpark() only after the bucket
// lock is released.  The unpark may therefore land on a waiter that has
// already returned from Wait --- a timed-out waiter whose wake lost the
// race observes its unlinked state and leaves without consuming the
// semaphore --- which is why parkers must tolerate a late Unpark().

// Forever makes Wait block until a matching wake.
const Forever time.Duration = math.MaxInt64

// WakeAll makes Wake or Requeue apply to every waiter on the key.
const WakeAll = math.MaxInt32

// numBuckets is the shard count of a table.  Power of two, so the bucket
// index is a mask of the key hash.
const numBuckets = 1 << 10

// A bucket owns the wait queues for the subset of keys that hash to it.
type bucket struct {
	mu     sync.Mutex
	queues map[Key]*waitQueue // every queue present is non-empty.
}

// wakeLocked pops up to count waiters from the front of key's queue, marks
// each as woken, and returns their parkers for the caller to unpark once
// the bucket lock has been released.  Removes the queue if it empties.
func (b *bucket) wakeLocked(key Key, count int) []Parker {
	q := b.queues[key]
	if q == nil {
		return nil
	}
	var parkers []Parker
	for count > 0 {
		w := q.popFront()
		if w == nil {
			break
		}
		w.wakeup = wake
		w.bkt.Store(nil)
		parkers = append(parkers, w.parker)
		count--
	}
	if q.empty() {
		delete(b.queues, key)
	}
	return parkers
}

// A Table is the kernel-wide map from futex keys to wait queues.  One Table
// is created at boot and never destroyed.  All methods are safe for
// concurrent use; only Wait can suspend the caller.
type Table struct {
	sched   Scheduler
	buckets [numBuckets]bucket
}

// NewTable returns a table that parks and resumes threads via sched.
func NewTable(sched Scheduler) *Table {
	t := &Table{sched: sched}
	for i := range t.buckets {
		t.buckets[i].queues = make(map[Key]*waitQueue)
	}
	return t
}

func (t *Table) bucketOf(k Key) (*bucket, int) {
	i := int(k.hash() & (numBuckets - 1))
	return &t.buckets[i], i
}

// Wait checks that the word at addr in space holds expected and, if so,
// blocks the calling thread until a matching Wake, a Requeue wake, or the
// timeout.  The check and the enqueue are atomic with respect to every
// other futex operation on the same key.
//
// A zero timeout polls: the value is checked but the thread never blocks
// and no wakeup can be consumed.  Forever blocks until a matching wake.
// When Wait returns TimedOut, the elapsed monotonic time is at least the
// requested timeout.
func (t *Table) Wait(space AddressSpace, addr uintptr, expected uint32, timeout time.Duration) Status {
	if timeout < 0 {
		return InvalidArgs
	}
	key, ok := keyOf(space, addr)
	if !ok {
		return InvalidArgs
	}
	b, _ := t.bucketOf(key)

	b.mu.Lock()
	v, err := space.LoadUint32(addr)
	if err != nil {
		b.mu.Unlock()
		return InvalidArgs
	}
	if v != expected {
		b.mu.Unlock()
		return Busy
	}
	if timeout == 0 {
		b.mu.Unlock()
		return TimedOut
	}

	var w waiter
	w.key = key
	w.parker = t.sched.NewParker()
	w.q.elem = &w
	q := b.queues[key]
	if q == nil {
		q = newWaitQueue()
		b.queues[key] = q
	}
	q.pushBack(&w)
	w.bkt.Store(b)
	b.mu.Unlock()

	var deadline time.Time
	if timeout != Forever {
		deadline = t.sched.Now().Add(timeout)
	}

	for {
		outcome := w.parker.Park(deadline)

		// Lock the bucket that currently owns the waiter, chasing
		// any concurrent requeue that moves it between the load and
		// the lock.  A nil bucket means a wake unlinked us; the
		// acquire load also orders the wakeup field written before
		// the waker's Store.
		cur := w.bkt.Load()
		for cur != nil {
			cur.mu.Lock()
			if w.bkt.Load() == cur {
				break
			}
			cur.mu.Unlock()
			cur = w.bkt.Load()
		}
		if cur == nil {
			break
		}
		if outcome == Woken {
			// Resumed while still queued, so the wakeup was not
			// ours (the parker can in principle wake spuriously).
			// Park again for the remaining time.
			cur.mu.Unlock()
			continue
		}
		// The deadline elapsed and no wake has claimed us.  Unlink
		// from the queue we are on now, which may not be the one we
		// enqueued on if a Requeue moved us.
		w.wakeup = timedout
		q := cur.queues[w.key]
		q.remove(&w)
		if q.empty() {
			delete(cur.queues, w.key)
		}
		w.bkt.Store(nil)
		cur.mu.Unlock()
		break
	}

	if w.wakeup == wake {
		return OK
	}
	return TimedOut
}

// Wake resumes up to count waiters queued on addr in space, in the order
// they enqueued.  Waking zero waiters, or waking an address nobody waits
// on, is OK.
func (t *Table) Wake(space AddressSpace, addr uintptr, count int) Status {
	if count < 0 {
		return InvalidArgs
	}
	key, ok := keyOf(space, addr)
	if !ok {
		return InvalidArgs
	}
	b, _ := t.bucketOf(key)

	b.mu.Lock()
	parkers := b.wakeLocked(key, count)
	b.mu.Unlock()

	for _, p := range parkers {
		p.Unpark()
	}
	return OK
}

// Requeue atomically checks that the word at addrFrom holds expected, wakes
// up to wakeCount waiters queued on addrFrom, and moves up to requeueCount
// further waiters to the back of addrTo's queue.  Moved waiters keep their
// FIFO order and are thereafter woken by wakes on addrTo.
//
// Requeueing a key onto itself is rejected: moving a waiter onto the queue
// it is already on is degenerate.
func (t *Table) Requeue(space AddressSpace, addrFrom uintptr, wakeCount int, expected uint32, addrTo uintptr, requeueCount int) Status {
	if wakeCount < 0 || requeueCount < 0 {
		return InvalidArgs
	}
	keyFrom, ok := keyOf(space, addrFrom)
	if !ok {
		return InvalidArgs
	}
	keyTo, ok := keyOf(space, addrTo)
	if !ok {
		return InvalidArgs
	}
	if keyFrom == keyTo {
		return InvalidArgs
	}

	bFrom, iFrom := t.bucketOf(keyFrom)
	bTo, iTo := t.bucketOf(keyTo)

	// Lower bucket index locks first; one lock if the keys collide.
	switch {
	case iFrom == iTo:
		bFrom.mu.Lock()
	case iFrom < iTo:
		bFrom.mu.Lock()
		bTo.mu.Lock()
	default:
		bTo.mu.Lock()
		bFrom.mu.Lock()
	}
	unlock := func() {
		bFrom.mu.Unlock()
		if iFrom != iTo {
			bTo.mu.Unlock()
		}
	}

	v, err := space.LoadUint32(addrFrom)
	if err != nil {
		unlock()
		return InvalidArgs
	}
	if v != expected {
		unlock()
		return Busy
	}

	parkers := bFrom.wakeLocked(keyFrom, wakeCount)

	if qFrom := bFrom.queues[keyFrom]; qFrom != nil {
		var qTo *waitQueue
		for n := requeueCount; n > 0; n-- {
			w := qFrom.popFront()
			if w == nil {
				break
			}
			if qTo == nil {
				qTo = bTo.queues[keyTo]
				if qTo == nil {
					qTo = newWaitQueue()
					bTo.queues[keyTo] = qTo
				}
			}
			w.key = keyTo
			qTo.pushBack(w)
			w.bkt.Store(bTo)
		}
		if qFrom.empty() {
			delete(bFrom.queues, keyFrom)
		}
	}

	unlock()
	for _, p := range parkers {
		p.Unpark()
	}
	return OK
}

// Waiting returns the number of waiters currently queued on addr in space,
// or zero if addr is not a valid futex address.  It is a diagnostic for
// tests and tooling; the count may be stale by the time the caller sees it.
func (t *Table) Waiting(space AddressSpace, addr uintptr) int {
	key, ok := keyOf(space, addr)
	if !ok {
		return 0
	}
	b, _ := t.bucketOf(key)
	b.mu.Lock()
	n := 0
	if q := b.queues[key]; q != nil {
		n = q.len()
	}
	b.mu.Unlock()
	return n
}
