// Copyright 2026 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command futexstress drives mixed wait/wake/requeue load against a futex
// table and reports operation counts and wait-latency percentiles.  It is
// the closest thing the subsystem has to a contention benchmark: many
// goroutines wait with short random timeouts on a small set of words while
// wakers bump values, wake random counts, and shuffle waiters between
// words with requeue.
package main

import (
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/pflag"
	"github.com/sugawarayuuta/sonnet"
	"v.io/x/lib/cmd/pflagvar"
	"v.io/x/lib/timing"
	"v.io/x/lib/vlog"

	"v.io/x/kernel/futex"
	"v.io/x/kernel/sched"
	"v.io/x/kernel/usermem"
)

type config struct {
	Words    int           `cmdline:"words,8,number of futex words to contend on"`
	Waiters  int           `cmdline:"waiters,64,concurrent waiting goroutines"`
	Wakers   int           `cmdline:"wakers,4,concurrent waking goroutines"`
	Duration time.Duration `cmdline:"duration,5s,how long to apply load"`
	Requeue  bool          `cmdline:"requeue,true,mix requeue operations into the load"`
	JSON     bool          `cmdline:"json,false,emit results as JSON on stdout"`
}

// results is what one run produces.  The latency percentiles cover every
// Wait call that ended in a wakeup.
type results struct {
	Waits      uint64  `json:"waits"`
	Woken      uint64  `json:"woken"`
	Timeouts   uint64  `json:"timeouts"`
	Busy       uint64  `json:"busy"`
	Wakes      uint64  `json:"wakes"`
	Requeues   uint64  `json:"requeues"`
	P50Micros  int64   `json:"p50_micros"`
	P90Micros  int64   `json:"p90_micros"`
	P99Micros  int64   `json:"p99_micros"`
	ElapsedSec float64 `json:"elapsed_sec"`
}

// A run holds the shared state of one stress run.
type run struct {
	cfg   config
	table *futex.Table
	space *usermem.Native
	words []uint32
	stop  uint32

	res results

	mu        sync.Mutex
	latencies []time.Duration // wait latencies for Waits that returned OK
}

func (r *run) wordAddr(i int) uintptr {
	return usermem.AddrOf(&r.words[i])
}

// waitLoop is the body of each waiter goroutine.  Each iteration waits on a
// random word for the value it last saw there, with a short random timeout
// so the run cannot wedge on a lost wakeup bug: such a bug shows up as a
// timeout spike instead.
func (r *run) waitLoop() {
	rnd := rand.New(rand.NewSource(rand.Int63()))
	var lat []time.Duration
	for atomic.LoadUint32(&r.stop) == 0 {
		i := rnd.Intn(len(r.words))
		v := atomic.LoadUint32(&r.words[i])
		timeout := time.Duration(1+rnd.Intn(2000)) * time.Microsecond
		start := time.Now()
		st := r.table.Wait(r.space, r.wordAddr(i), v, timeout)
		atomic.AddUint64(&r.res.Waits, 1)
		switch st {
		case futex.OK:
			atomic.AddUint64(&r.res.Woken, 1)
			lat = append(lat, time.Since(start))
		case futex.TimedOut:
			atomic.AddUint64(&r.res.Timeouts, 1)
		case futex.Busy:
			atomic.AddUint64(&r.res.Busy, 1)
		default:
			vlog.Fatalf("unexpected wait status %v", st)
		}
	}
	r.mu.Lock()
	r.latencies = append(r.latencies, lat...)
	r.mu.Unlock()
}

// wakeLoop is the body of each waker goroutine.  It bumps a word (so
// correct userspace protocols would retry) and then wakes a small random
// number of waiters; occasionally it requeues everybody onto another word
// instead.
func (r *run) wakeLoop() {
	rnd := rand.New(rand.NewSource(rand.Int63()))
	for atomic.LoadUint32(&r.stop) == 0 {
		i := rnd.Intn(len(r.words))
		atomic.AddUint32(&r.words[i], 1)
		if r.cfg.Requeue && len(r.words) > 1 && rnd.Intn(8) == 0 {
			j := rnd.Intn(len(r.words))
			for j == i {
				j = rnd.Intn(len(r.words))
			}
			v := atomic.LoadUint32(&r.words[i])
			if r.table.Requeue(r.space, r.wordAddr(i), 1, v, r.wordAddr(j), futex.WakeAll) == futex.OK {
				atomic.AddUint64(&r.res.Requeues, 1)
			}
		} else {
			r.table.Wake(r.space, r.wordAddr(i), 1+rnd.Intn(4))
			atomic.AddUint64(&r.res.Wakes, 1)
		}
		time.Sleep(time.Duration(rnd.Intn(500)) * time.Microsecond)
	}
}

// drain wakes every word until nobody is left waiting, so the run never
// leaks a parked goroutine.
func (r *run) drain() {
	for i := range r.words {
		for r.table.Waiting(r.space, r.wordAddr(i)) > 0 {
			atomic.AddUint32(&r.words[i], 1)
			r.table.Wake(r.space, r.wordAddr(i), futex.WakeAll)
		}
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	i := int(p * float64(len(sorted)-1))
	return sorted[i]
}

func (r *run) execute(timer timing.Timer) {
	timer.Push("load")
	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Waiters; i++ {
		wg.Add(1)
		go func() { defer wg.Done(); r.waitLoop() }()
	}
	for i := 0; i < r.cfg.Wakers; i++ {
		wg.Add(1)
		go func() { defer wg.Done(); r.wakeLoop() }()
	}
	start := time.Now()
	time.Sleep(r.cfg.Duration)
	atomic.StoreUint32(&r.stop, 1)
	timer.Pop()

	timer.Push("drain")
	r.drain()
	wg.Wait()
	r.res.ElapsedSec = time.Since(start).Seconds()
	timer.Pop()

	sort.Slice(r.latencies, func(i, j int) bool { return r.latencies[i] < r.latencies[j] })
	r.res.P50Micros = percentile(r.latencies, 0.50).Microseconds()
	r.res.P90Micros = percentile(r.latencies, 0.90).Microseconds()
	r.res.P99Micros = percentile(r.latencies, 0.99).Microseconds()
}

func main() {
	var cfg config
	if err := pflagvar.RegisterFlagsInStruct(pflag.CommandLine, "cmdline", &cfg, nil, nil); err != nil {
		fmt.Fprintf(os.Stderr, "futexstress: %v\n", err)
		os.Exit(1)
	}
	pflag.Parse()
	if cfg.Words < 1 || cfg.Waiters < 1 || cfg.Wakers < 1 {
		fmt.Fprintln(os.Stderr, "futexstress: words, waiters and wakers must all be positive")
		os.Exit(1)
	}

	r := &run{
		cfg:   cfg,
		table: futex.NewTable(sched.New()),
		space: usermem.NewNative(),
		words: make([]uint32, cfg.Words),
	}
	vlog.Infof("futexstress: %d waiters, %d wakers, %d words for %v", cfg.Waiters, cfg.Wakers, cfg.Words, cfg.Duration)

	timer := timing.NewFullTimer("futexstress")
	r.execute(timer)
	timer.Finish()
	vlog.VI(1).Infof("phase timing:\n%s", timer.String())

	if cfg.JSON {
		out, err := sonnet.Marshal(&r.res)
		if err != nil {
			vlog.Fatalf("marshalling results: %v", err)
		}
		fmt.Println(string(out))
		return
	}
	vlog.Infof("waits=%d woken=%d timeouts=%d busy=%d wakes=%d requeues=%d",
		r.res.Waits, r.res.Woken, r.res.Timeouts, r.res.Busy, r.res.Wakes, r.res.Requeues)
	vlog.Infof("wakeup latency p50=%dus p90=%dus p99=%dus over %.1fs",
		r.res.P50Micros, r.res.P90Micros, r.res.P99Micros, r.res.ElapsedSec)
	vlog.FlushLog()
}
