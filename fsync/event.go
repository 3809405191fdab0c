// Copyright 2026 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fsync

import "sync/atomic"

import "v.io/x/kernel/futex"

// An Event is a one-shot gate: Wait blocks until the first Signal, and
// every Wait after that returns immediately.  The zero value is an
// unsignalled event.
type Event struct {
	signalled uint32
}

// Wait blocks the calling thread until *e has been signalled.
func (e *Event) Wait() {
	for atomic.LoadUint32(&e.signalled) == 0 {
		// Busy means Signal got in between the load and the sleep.
		table.Wait(space, addr(&e.signalled), 0, futex.Forever)
	}
}

// Signal marks *e signalled and wakes every waiter.  Signalling an already
// signalled event is a no-op.
func (e *Event) Signal() {
	if atomic.SwapUint32(&e.signalled, 1) == 0 {
		table.Wake(space, addr(&e.signalled), futex.WakeAll)
	}
}
