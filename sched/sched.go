// Copyright 2026 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sched implements the scheduler interface consumed by package
// futex on top of goroutines: park tokens backed by a binary semaphore and
// a reusable deadline timer, and a monotonic clock.
package sched

import (
	"time"

	"v.io/x/kernel/futex"
)

// A Sched hands out park tokens for goroutines.  The zero value is ready to
// use and all methods may be called concurrently.
type Sched struct{}

// New returns a scheduler for the futex table to park and resume
// goroutines with.
func New() *Sched {
	return &Sched{}
}

// Now returns the current time.  Go's time.Now carries a monotonic clock
// reading, so deadlines computed from it are immune to wall-clock steps.
func (*Sched) Now() time.Time {
	return time.Now()
}

// NewParker returns a park token for the calling goroutine.
func (*Sched) NewParker() futex.Parker {
	return &parker{sem: make(chan struct{}, 1)}
}

// A parker is a binary semaphore with a deadline.  sem holds at most one
// pending wakeup, so an Unpark before Park makes the next Park return
// immediately and duplicate Unparks collapse into one.
type parker struct {
	sem chan struct{}

	// timer is allocated on the first deadline Park and reused after
	// that.  Invariant between Parks: the timer is stopped and its
	// channel drained.
	timer *time.Timer
}

// Park blocks until Unpark is called or the deadline arrives.  A zero
// deadline means no deadline.
func (p *parker) Park(deadline time.Time) int {
	if deadline.IsZero() {
		<-p.sem
		return futex.Woken
	}
	d := time.Until(deadline)
	if d <= 0 {
		// The deadline has already arrived; a wakeup that has also
		// already arrived still wins.
		select {
		case <-p.sem:
			return futex.Woken
		default:
			return futex.Expired
		}
	}
	if p.timer == nil {
		p.timer = time.NewTimer(d)
	} else {
		p.timer.Reset(d)
	}
	select {
	case <-p.sem:
		if !p.timer.Stop() {
			// The timer fired between the semaphore receive and
			// the Stop; drain it synchronously so the next Reset
			// starts clean.
			<-p.timer.C
		}
		return futex.Woken
	case <-p.timer.C:
		return futex.Expired
	}
}

// Unpark resumes the goroutine blocked in Park, if any, else leaves a
// wakeup pending.  It never blocks, and is safe to call after the parked
// goroutine has given up and moved on.
func (p *parker) Unpark() {
	select {
	case p.sem <- struct{}{}:
	default: // a wakeup is already pending.
	}
}
