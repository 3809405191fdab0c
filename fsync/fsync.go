// Copyright 2026 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fsync provides synchronization primitives built the way
// userspace builds them on the futex syscalls: each primitive is one or
// two 32-bit words manipulated with atomic operations, and the kernel is
// entered only on contention.  Event is a one-shot gate, Mutex is the
// classic three-state futex mutex, and Cond is a condition variable whose
// Broadcast requeues waiters onto the mutex instead of waking a thundering
// herd.
//
// The zero value of every primitive is valid and ready to use, as with the
// types in the sync package.
package fsync

import (
	"v.io/x/kernel/futex"
	"v.io/x/kernel/sched"
	"v.io/x/kernel/usermem"
)

// All primitives in a process share one futex table and one address space,
// the way threads of a process share the kernel's.
var (
	space = usermem.NewNative()
	table = futex.NewTable(sched.New())
)

func addr(word *uint32) uintptr {
	return usermem.AddrOf(word)
}
