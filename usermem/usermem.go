// Copyright 2026 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package usermem mediates the futex subsystem's access to user-supplied
// memory: address validation and atomic 32-bit loads, with faults surfaced
// as errors rather than panics.
package usermem

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"v.io/x/lib/vlog"
)

// A Fault describes a failed access to a user address.
type Fault struct {
	Addr uintptr
}

func (f *Fault) Error() string {
	return fmt.Sprintf("fault at user address %#x", f.Addr)
}

// fault traces and returns a fault for addr.
func fault(addr uintptr) error {
	f := &Fault{Addr: addr}
	vlog.VI(2).Infof("usermem: %v", f)
	return f
}

// nextID hands out address-space identifiers.
var nextID uint64

func newID() uint64 {
	return atomic.AddUint64(&nextID, 1)
}

// addrSink publishes every word handed to AddrOf.
var addrSink unsafe.Pointer

// AddrOf returns the user address of a word, for callers that keep their
// futex words in kernel-visible Go variables (tests, the stress tool, and
// the primitives in v.io/x/kernel/fsync).  The caller must keep the word
// reachable while the address is in use.
//
// Publishing the pointer through addrSink forces the word onto the heap,
// where the collector will not move it.  A stack-resident word could move
// when its goroutine's stack grows, silently changing its address.
func AddrOf(word *uint32) uintptr {
	atomic.StorePointer(&addrSink, unsafe.Pointer(word))
	return uintptr(unsafe.Pointer(word))
}

// A Native address space covers the kernel's own memory: any non-null,
// aligned address is valid, and loads go straight to the word.  It is the
// space used when userspace and kernel share an address space, as in the
// in-process kernel builds.
type Native struct {
	id uint64
}

// NewNative returns a native address space with a fresh identifier.
func NewNative() *Native {
	return &Native{id: newID()}
}

// ID returns the space's identifier.
func (s *Native) ID() uint64 {
	return s.id
}

// Validate checks that addr is non-null and aligned to align bytes, which
// must be a power of two.
func (s *Native) Validate(addr, align uintptr) error {
	if addr == 0 || addr&(align-1) != 0 {
		return fault(addr)
	}
	return nil
}

// LoadUint32 atomically loads the word at addr.
func (s *Native) LoadUint32(addr uintptr) (uint32, error) {
	if err := s.Validate(addr, 4); err != nil {
		return 0, err
	}
	return atomic.LoadUint32((*uint32)(unsafe.Pointer(addr))), nil
}

// A Bounded address space is backed by an explicit range of words starting
// at a synthetic base address; any access outside the range faults.  It
// stands in for a real process address space where some pages are unmapped,
// which makes it the space to use when exercising fault handling.
type Bounded struct {
	id    uint64
	base  uintptr
	words []uint32
}

// NewBounded returns a bounded space of nwords 32-bit words mapped at base.
// base must itself be 4-byte aligned and non-zero.
func NewBounded(base uintptr, nwords int) *Bounded {
	if base == 0 || base&3 != 0 {
		panic("usermem: misaligned base for bounded space")
	}
	return &Bounded{id: newID(), base: base, words: make([]uint32, nwords)}
}

// ID returns the space's identifier.
func (s *Bounded) ID() uint64 {
	return s.id
}

// Validate checks that addr is non-null, aligned to align bytes, and falls
// within the mapped range.
func (s *Bounded) Validate(addr, align uintptr) error {
	if addr == 0 || addr&(align-1) != 0 {
		return fault(addr)
	}
	if addr < s.base || addr >= s.base+uintptr(len(s.words))*4 {
		return fault(addr)
	}
	return nil
}

// LoadUint32 atomically loads the word at addr.
func (s *Bounded) LoadUint32(addr uintptr) (uint32, error) {
	if err := s.Validate(addr, 4); err != nil {
		return 0, err
	}
	return atomic.LoadUint32(&s.words[(addr-s.base)/4]), nil
}

// StoreUint32 atomically stores v to the word at addr.  Bounded spaces are
// kernel-owned, so the store is offered here rather than through a copyout
// path.
func (s *Bounded) StoreUint32(addr uintptr, v uint32) error {
	if err := s.Validate(addr, 4); err != nil {
		return err
	}
	atomic.StoreUint32(&s.words[(addr-s.base)/4], v)
	return nil
}
