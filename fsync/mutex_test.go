// Copyright 2026 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fsync_test

import "testing"

import "v.io/x/kernel/fsync"

// A testData is the state shared between the threads of the counting
// tests below.
type testData struct {
	nThreads  int // number of test threads; constant after init.
	loopCount int // iteration count for each test thread; constant after init.

	mu fsync.Mutex // protects i, id and finishedThreads.
	i  int         // counter incremented by test loops.
	id int         // id of the current lock-holding thread in some tests.

	done            fsync.Cond // signalled when finishedThreads==nThreads.
	finishedThreads int        // count of threads that have finished.
}

// threadFinished indicates that a thread has finished its operations on
// *td by incrementing td.finishedThreads, signalling td.done when it
// reaches td.nThreads.  See waitForAllThreads.
func (td *testData) threadFinished() {
	td.mu.Lock()
	td.finishedThreads++
	if td.finishedThreads == td.nThreads {
		td.done.Broadcast(&td.mu)
	}
	td.mu.Unlock()
}

// waitForAllThreads waits until all td.nThreads have called
// threadFinished, then returns.
func (td *testData) waitForAllThreads() {
	td.mu.Lock()
	for td.finishedThreads != td.nThreads {
		td.done.Wait(&td.mu)
	}
	td.mu.Unlock()
}

// ---------------------------------------

// countingLoop is the body of each thread in TestMutexNThread.  *td is the
// state shared by the test threads, and id is unique to each thread.
func countingLoop(td *testData, id int) {
	n := td.loopCount
	for i := 0; i != n; i++ {
		td.mu.Lock()
		td.id = id
		td.i++
		if td.id != id {
			panic("td.id != id while lock held")
		}
		td.mu.Unlock()
	}
	td.threadFinished()
}

// TestMutexNThread creates several threads that all increment a counter
// under one Mutex, and checks that nothing is lost.
func TestMutexNThread(t *testing.T) {
	loopCount := 100000
	if testing.Short() {
		loopCount = 10000
	}
	td := testData{nThreads: 5, loopCount: loopCount}
	for i := 0; i != td.nThreads; i++ {
		go countingLoop(&td, i)
	}
	td.waitForAllThreads()
	if want := td.nThreads * td.loopCount; td.i != want {
		t.Errorf("counter is %d, want %d", td.i, want)
	}
}

func TestMutexTryLock(t *testing.T) {
	var mu fsync.Mutex
	if !mu.TryLock() {
		t.Fatalf("TryLock() of a free Mutex failed")
	}
	if mu.TryLock() {
		t.Fatalf("TryLock() of a held Mutex succeeded")
	}
	mu.Unlock()
	if !mu.TryLock() {
		t.Fatalf("TryLock() after Unlock() failed")
	}
	mu.Unlock()
}

func TestMutexUnlockFreePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("Unlock() of an unlocked Mutex did not panic")
		}
	}()
	var mu fsync.Mutex
	mu.Unlock()
}
