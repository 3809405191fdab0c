// Copyright 2026 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fsync

import "sync/atomic"

import "v.io/x/kernel/futex"

// A Cond is a Mesa-style condition variable backed by a futex word that
// counts wakeups.  As with all Mesa-style condition variables, Wait must be
// used in a loop that re-tests the predicate.
//
// The zero value is a Cond with no waiters.
type Cond struct {
	seq uint32
}

// Wait atomically releases *m and blocks the calling thread on *c, then
// reacquires *m before returning.  The caller must hold *m.  Wakeups can be
// spurious: a waiter released by Broadcast's requeue path wakes only as the
// mutex frees up, and a Signal racing the unlock can resume a thread whose
// predicate is already false again.
func (c *Cond) Wait(m *Mutex) {
	seq := atomic.LoadUint32(&c.seq)
	m.Unlock()
	// Busy here means a signal arrived between the load and the sleep;
	// that counts as our wakeup.
	table.Wait(space, addr(&c.seq), seq, futex.Forever)
	// Reacquire.  We may have been requeued onto the mutex word by
	// Broadcast and woken by its Unlock, so acquire in the contended
	// state to keep the wake chain going.
	for atomic.SwapUint32(&m.state, mutexContended) != mutexFree {
		table.Wait(space, addr(&m.state), mutexContended, futex.Forever)
	}
}

// Signal wakes at least one thread currently blocked in Wait, if any.
func (c *Cond) Signal() {
	atomic.AddUint32(&c.seq, 1)
	table.Wake(space, addr(&c.seq), 1)
}

// Broadcast wakes every thread currently blocked in Wait on *c.  One
// waiter is woken to run immediately; the rest are requeued onto *m's
// word, so they wake one at a time as the lock is handed down instead of
// stampeding for it.  The caller must hold *m.
func (c *Cond) Broadcast(m *Mutex) {
	seq := atomic.AddUint32(&c.seq, 1)
	// The requeued waiters sleep on m.state without having gone through
	// Lock, so force the contended state; the caller's Unlock then wakes
	// the first of them.
	atomic.StoreUint32(&m.state, mutexContended)
	if table.Requeue(space, addr(&c.seq), 1, seq, addr(&m.state), futex.WakeAll) == futex.Busy {
		// Lost a race with another signaller; fall back to waking
		// everyone on the condition word.
		table.Wake(space, addr(&c.seq), futex.WakeAll)
	}
}
