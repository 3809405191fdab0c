// Copyright 2026 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fsync

import "sync/atomic"

import "v.io/x/kernel/futex"

// Mutex states.  The word reaches mutexContended only on a slow path (a
// Lock whose fast path failed, a Cond waiter reacquiring, or
// Cond.Broadcast), so an uncontended Lock/Unlock pair never enters the
// kernel.
const (
	mutexFree      = 0
	mutexLocked    = 1
	mutexContended = 2
)

// A Mutex is a mutual exclusion lock backed by a single futex word.
// The zero value is an unlocked mutex.
//
// A Mutex may be locked in one thread and unlocked in another.
type Mutex struct {
	state uint32
}

// TryLock attempts to acquire *m without blocking and returns whether it
// succeeded.
func (m *Mutex) TryLock() bool {
	return atomic.CompareAndSwapUint32(&m.state, mutexFree, mutexLocked)
}

// Lock blocks until *m is free and then acquires it.
func (m *Mutex) Lock() {
	if m.TryLock() {
		return
	}
	// Announce contention before sleeping; whoever holds the lock will
	// then wake us from Unlock.  A woken thread acquires with the
	// contended state, since it cannot know it was the last waiter.
	for atomic.SwapUint32(&m.state, mutexContended) != mutexFree {
		table.Wait(space, addr(&m.state), mutexContended, futex.Forever)
	}
}

// Unlock releases *m and wakes one waiter if the lock was contended.
func (m *Mutex) Unlock() {
	switch atomic.SwapUint32(&m.state, mutexFree) {
	case mutexLocked:
		// No waiters.
	case mutexContended:
		table.Wake(space, addr(&m.state), 1)
	default:
		panic("fsync: Unlock of unlocked Mutex")
	}
}
