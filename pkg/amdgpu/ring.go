// Copyright 2026 The drmshim Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package amdgpu

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Ring writes pre-encoded command dwords into a user queue's ring buffer and
// publishes them to the device.
//
// The memory passed to NewRing is CPU mappings of the buffers named in the
// queue's MQD. Packet encoding is the caller's business; Ring only copies
// dwords and moves the write pointer.
//
// A Ring is not safe for concurrent use.
type Ring struct {
	ring     []byte
	wptr     *uint64
	doorbell *uint64

	// pending is the write pointer, in dwords, including uncommitted writes.
	pending uint64
}

// NewRing returns a Ring over the given mappings. ring must be a non-empty
// multiple of 4 bytes. wptr is the 64-bit write pointer. doorbellIndex
// selects the queue's 64-bit slot in doorbell, i.e. the MQD's doorbell offset
// divided by two.
func NewRing(ring, wptr, doorbell []byte, doorbellIndex int) (*Ring, error) {
	if len(ring) == 0 || len(ring)%4 != 0 {
		return nil, fmt.Errorf("ring size %d is not a positive multiple of 4: %w", len(ring), unix.EINVAL)
	}
	w, err := word64(wptr, 0)
	if err != nil {
		return nil, fmt.Errorf("write pointer: %w", err)
	}
	db, err := word64(doorbell, doorbellIndex)
	if err != nil {
		return nil, fmt.Errorf("doorbell: %w", err)
	}
	return &Ring{
		ring:     ring,
		wptr:     w,
		doorbell: db,
		pending:  atomic.LoadUint64(w),
	}, nil
}

// word64 returns the aligned 64-bit word at index i of b.
func word64(b []byte, i int) (*uint64, error) {
	if i < 0 || len(b) < (i+1)*8 {
		return nil, fmt.Errorf("%d bytes too short for 64-bit slot %d: %w", len(b), i, unix.EINVAL)
	}
	p := unsafe.Pointer(&b[i*8])
	if uintptr(p)%8 != 0 {
		return nil, fmt.Errorf("slot %d at %#x is not 8-byte aligned: %w", i, uintptr(p), unix.EINVAL)
	}
	return (*uint64)(p), nil
}

// Size returns the ring size in dwords.
func (r *Ring) Size() int {
	return len(r.ring) / 4
}

// WritePointer returns the write pointer in dwords, including writes not yet
// committed. It increases monotonically; the ring offset is its value modulo
// Size.
func (r *Ring) WritePointer() uint64 {
	return r.pending
}

// Write copies words into the ring at the write pointer, wrapping at the end
// of the ring. The device does not see them until Commit.
//
// Write does not know how far the device has read; callers must not write
// more than the free space they have observed through the read pointer.
func (r *Ring) Write(words ...uint32) error {
	size := uint64(r.Size())
	if uint64(len(words)) > size {
		return fmt.Errorf("writing %d dwords to a ring of %d: %w", len(words), size, unix.ENOSPC)
	}
	for _, w := range words {
		off := (r.pending % size) * 4
		binary.LittleEndian.PutUint32(r.ring[off:off+4], w)
		r.pending++
	}
	return nil
}

// Commit publishes the write pointer and rings the doorbell, after which the
// device may consume everything written so far.
func (r *Ring) Commit() {
	atomic.StoreUint64(r.wptr, r.pending)
	atomic.StoreUint64(r.doorbell, r.pending)
}
