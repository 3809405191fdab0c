// Copyright 2026 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package futex

import "time"

// An AddressSpace mediates access to the 32-bit words that futex keys name.
// The Table never touches user memory directly; every load and every address
// check goes through the space supplied by the caller.
type AddressSpace interface {
	// ID returns a value that distinguishes this space from every other
	// space for the lifetime of the kernel.  Identical addresses in
	// different spaces are different futexes.
	ID() uint64

	// Validate returns a non-nil error if addr is not a readable address
	// aligned to align bytes within the space.
	Validate(addr, align uintptr) error

	// LoadUint32 atomically loads the 32-bit word at addr.  The load must
	// be atomic with respect to concurrent user stores to the same word.
	LoadUint32(addr uintptr) (uint32, error)
}

// Values returned by Parker.Park().
const (
	Woken   = iota // Unpark() was called.
	Expired        // the deadline arrived first.
)

// A Parker blocks and resumes a single thread.  A Parker carries at most one
// pending wakeup: an Unpark() before Park() makes the next Park() return
// immediately, and further Unpark() calls are no-ops until that wakeup is
// consumed.
type Parker interface {
	// Park blocks the calling thread until Unpark() is called or the
	// deadline arrives, and reports which happened.  A zero deadline
	// means no deadline.
	Park(deadline time.Time) int

	// Unpark resumes the thread blocked in Park(), if any, else leaves
	// a wakeup pending.  It never blocks.
	Unpark()
}

// A Scheduler is the slice of the host thread scheduler the futex subsystem
// consumes: a monotonic clock and park tokens for the calling thread.
// Package v.io/x/kernel/sched provides the goroutine-backed implementation.
type Scheduler interface {
	// Now returns the current time.  The value must carry a monotonic
	// reading so that deadline arithmetic is immune to wall-clock steps.
	Now() time.Time

	// NewParker returns a park token for the calling thread.
	NewParker() Parker
}
