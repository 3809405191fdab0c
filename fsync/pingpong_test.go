// Copyright 2026 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fsync_test

import "sync"
import "testing"

import "v.io/x/kernel/fsync"

// The benchmarks in this file ping-pong back and forth between two threads
// as they count i from 0 to limit, comparing the futex-backed primitives
// with the sync package.  The setting of GOMAXPROCS, and the exact choices
// of the thread scheduler, can have great effect on the timings.
type pingPong struct {
	mu fsync.Mutex
	cv [2]fsync.Cond

	mutex sync.Mutex
	cond  [2]*sync.Cond

	i     int
	limit int
}

// ---------------------------------------

// futexPingPong is run by each thread in BenchmarkPingPongFutex.
func (pp *pingPong) futexPingPong(parity int) {
	pp.mu.Lock()
	for pp.i < pp.limit {
		for (pp.i & 1) == parity {
			pp.cv[parity].Wait(&pp.mu)
		}
		pp.i++
		pp.cv[1-parity].Signal()
	}
	pp.mu.Unlock()
}

// BenchmarkPingPongFutex measures the wakeup speed of fsync.Mutex and
// fsync.Cond used to ping-pong back and forth between two threads.
func BenchmarkPingPongFutex(b *testing.B) {
	pp := pingPong{limit: b.N}
	go pp.futexPingPong(0)
	pp.futexPingPong(1)
}

// ---------------------------------------

// syncPingPong is run by each thread in BenchmarkPingPongSync.
func (pp *pingPong) syncPingPong(parity int) {
	pp.mutex.Lock()
	for pp.i < pp.limit {
		for (pp.i & 1) == parity {
			pp.cond[parity].Wait()
		}
		pp.i++
		pp.cond[1-parity].Signal()
	}
	pp.mutex.Unlock()
}

// BenchmarkPingPongSync is the sync.Mutex/sync.Cond baseline for
// BenchmarkPingPongFutex.
func BenchmarkPingPongSync(b *testing.B) {
	pp := pingPong{limit: b.N}
	pp.cond[0] = sync.NewCond(&pp.mutex)
	pp.cond[1] = sync.NewCond(&pp.mutex)
	go pp.syncPingPong(0)
	pp.syncPingPong(1)
}

// BenchmarkUncontendedMutex measures a Lock/Unlock pair that never enters
// the kernel.
func BenchmarkUncontendedMutex(b *testing.B) {
	pp := pingPong{}
	for i := 0; i < b.N; i++ {
		pp.mu.Lock()
		pp.mu.Unlock()
	}
}
