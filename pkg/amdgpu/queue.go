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
	"errors"
	"fmt"
	"sync"
	"unsafe"

	abi "github.com/drmshim/drmshim/pkg/abi/amdgpu"
	"github.com/drmshim/drmshim/pkg/drm"
	"github.com/drmshim/drmshim/pkg/log"
)

// ErrQueueFreed is returned by operations on a queue after Free.
var ErrQueueFreed = errors.New("user queue already freed")

// MQD describes the memory of a user-mode queue. All addresses are GPU
// virtual addresses of buffers the caller has allocated and mapped.
type MQD struct {
	// QueueVA and QueueSize locate the ring buffer.
	QueueVA   uint64
	QueueSize uint64

	// RptrVA and WptrVA locate the 64-bit read and write pointers.
	RptrVA uint64
	WptrVA uint64

	// DoorbellHandle is the GEM handle of the doorbell object, and
	// DoorbellOffset the queue's doorbell slot in it, in dwords.
	DoorbellHandle uint32
	DoorbellOffset uint32

	// ShadowVA and CSAVA are used by GFX queues; CSAVA also by SDMA queues.
	ShadowVA uint64
	CSAVA    uint64

	// EOPVA is used by compute queues.
	EOPVA uint64

	// Flags are AMDGPU_USERQ_CREATE_FLAGS_*.
	Flags uint32
}

// Queue is a user-mode queue created on a Device.
//
// A queue is created by CreateQueue and must be released with Free exactly
// once. Its id is not reused by this Queue after Free.
type Queue struct {
	dev *Device
	id  uint32
	ip  uint32

	// mu protects freed.
	mu    sync.Mutex
	freed bool
}

// userqArgs keeps the IP specific payload next to the argument.
type userqArgs struct {
	u       abi.Userq
	gfx     abi.UserqMQDGfx11
	compute abi.UserqMQDComputeGfx11
	sdma    abi.UserqMQDSDMAGfx11
}

// CreateQueue creates a user-mode queue on hardware IP ip (AMDGPU_HW_IP_GFX,
// AMDGPU_HW_IP_COMPUTE or AMDGPU_HW_IP_DMA). On failure the kernel's error is
// returned unchanged and no queue exists.
func (d *Device) CreateQueue(ip uint32, mqd *MQD) (*Queue, error) {
	args := &userqArgs{}
	var pins drm.Pins
	defer pins.Unpin()

	in := &args.u.In
	in.Op = abi.AMDGPU_USERQ_OP_CREATE
	in.IPType = ip
	in.DoorbellHandle = mqd.DoorbellHandle
	in.DoorbellOffset = mqd.DoorbellOffset
	in.Flags = mqd.Flags
	in.QueueVA = mqd.QueueVA
	in.QueueSize = mqd.QueueSize
	in.RptrVA = mqd.RptrVA
	in.WptrVA = mqd.WptrVA
	switch ip {
	case abi.AMDGPU_HW_IP_GFX:
		args.gfx = abi.UserqMQDGfx11{ShadowVA: mqd.ShadowVA, CSAVA: mqd.CSAVA}
		in.MQD, in.MQDSize = pins.Addr(unsafe.Pointer(&args.gfx)), abi.SizeofUserqMQDGfx11
	case abi.AMDGPU_HW_IP_COMPUTE:
		args.compute = abi.UserqMQDComputeGfx11{EOPVA: mqd.EOPVA}
		in.MQD, in.MQDSize = pins.Addr(unsafe.Pointer(&args.compute)), abi.SizeofUserqMQDComputeGfx11
	case abi.AMDGPU_HW_IP_DMA:
		args.sdma = abi.UserqMQDSDMAGfx11{CSAVA: mqd.CSAVA}
		in.MQD, in.MQDSize = pins.Addr(unsafe.Pointer(&args.sdma)), abi.SizeofUserqMQDSDMAGfx11
	}

	if err := d.dev.Ioctl(abi.DRM_IOCTL_AMDGPU_USERQ, unsafe.Pointer(&args.u)); err != nil {
		return nil, fmt.Errorf("creating user queue on IP %d: %w", ip, err)
	}
	q := &Queue{dev: d, id: args.u.Out().QueueID, ip: ip}
	log.Debugf("created user queue %d on IP %d", q.id, ip)
	return q, nil
}

// ID returns the kernel id of the queue.
func (q *Queue) ID() uint32 {
	return q.id
}

// IP returns the hardware IP the queue runs on.
func (q *Queue) IP() uint32 {
	return q.ip
}

// Freed reports whether Free has succeeded.
func (q *Queue) Freed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.freed
}

// Free destroys the queue. The kernel unmaps the queue's memory from the
// device; the caller may release it afterwards.
//
// Free after a successful Free returns ErrQueueFreed without calling into
// the kernel.
func (q *Queue) Free() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.freed {
		return fmt.Errorf("queue %d: %w", q.id, ErrQueueFreed)
	}
	var args abi.Userq
	args.In.Op = abi.AMDGPU_USERQ_OP_FREE
	args.In.QueueID = q.id
	if err := q.dev.dev.Ioctl(abi.DRM_IOCTL_AMDGPU_USERQ, unsafe.Pointer(&args)); err != nil {
		return fmt.Errorf("freeing user queue %d: %w", q.id, err)
	}
	q.freed = true
	log.Debugf("freed user queue %d", q.id)
	return nil
}

// checkLive returns ErrQueueFreed if q has been freed.
func (q *Queue) checkLive() error {
	if q.Freed() {
		return fmt.Errorf("queue %d: %w", q.id, ErrQueueFreed)
	}
	return nil
}
