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
	"fmt"
	"math"
	"unsafe"

	abi "github.com/drmshim/drmshim/pkg/abi/amdgpu"
	"github.com/drmshim/drmshim/pkg/drm"
	"golang.org/x/sys/unix"
)

// SignalRequest names the sync objects to attach to the completion of the
// queue's pending writes to a set of buffer objects.
type SignalRequest struct {
	SyncObjs []drm.SyncObj
	ReadBOs  []uint32
	WriteBOs []uint32
}

// signalArgs keeps the handle arrays next to the argument.
type signalArgs struct {
	s        abi.UserqSignal
	syncObjs []uint32
	readBOs  []uint32
	writeBOs []uint32
}

// Signal makes each sync object in req signal once the work submitted to q so
// far, touching the listed buffer objects, completes. The signal is one-shot
// and cannot be cancelled.
func (q *Queue) Signal(req SignalRequest) error {
	if err := q.checkLive(); err != nil {
		return err
	}
	args := &signalArgs{
		syncObjs: syncObjHandles(req.SyncObjs),
		readBOs:  append([]uint32(nil), req.ReadBOs...),
		writeBOs: append([]uint32(nil), req.WriteBOs...),
	}
	var pins drm.Pins
	defer pins.Unpin()
	args.s = abi.UserqSignal{
		QueueID:           q.id,
		SyncObjHandles:    drm.SliceAddr(&pins, args.syncObjs),
		NumSyncObjHandles: uint64(len(args.syncObjs)),
		BOReadHandles:     drm.SliceAddr(&pins, args.readBOs),
		BOWriteHandles:    drm.SliceAddr(&pins, args.writeBOs),
		NumBOReadHandles:  uint32(len(args.readBOs)),
		NumBOWriteHandles: uint32(len(args.writeBOs)),
	}
	if err := q.dev.dev.Ioctl(abi.DRM_IOCTL_AMDGPU_USERQ_SIGNAL, unsafe.Pointer(&args.s)); err != nil {
		return fmt.Errorf("signaling on user queue %d: %w", q.id, err)
	}
	return nil
}

// WaitRequest names what a queue is about to wait for.
type WaitRequest struct {
	// QueueID is the queue that will wait.
	QueueID uint32

	SyncObjs []drm.SyncObj

	// TimelineSyncObjs are waited on at the matching TimelinePoints.
	TimelineSyncObjs []drm.SyncObj
	TimelinePoints   []uint64

	ReadBOs  []uint32
	WriteBOs []uint32
}

// FenceInfo is a fence as seen by the GPU: it has signaled once the 64-bit
// memory at VA holds at least Value. Callers poll it or encode it into a
// wait packet on their queue.
type FenceInfo struct {
	VA    uint64
	Value uint64
}

type waitArgs struct {
	w         abi.UserqWait
	syncObjs  []uint32
	timelines []uint32
	points    []uint64
	readBOs   []uint32
	writeBOs  []uint32
	fences    []abi.UserqFenceInfo
}

func newWaitArgs(req *WaitRequest, pins *drm.Pins) (*waitArgs, error) {
	if len(req.TimelineSyncObjs) != len(req.TimelinePoints) {
		return nil, fmt.Errorf("%d timeline sync objects with %d points: %w", len(req.TimelineSyncObjs), len(req.TimelinePoints), unix.EINVAL)
	}
	if len(req.TimelineSyncObjs) > math.MaxUint16 {
		return nil, fmt.Errorf("%d timeline sync objects: %w", len(req.TimelineSyncObjs), unix.EINVAL)
	}
	args := &waitArgs{
		syncObjs:  syncObjHandles(req.SyncObjs),
		timelines: syncObjHandles(req.TimelineSyncObjs),
		points:    append([]uint64(nil), req.TimelinePoints...),
		readBOs:   append([]uint32(nil), req.ReadBOs...),
		writeBOs:  append([]uint32(nil), req.WriteBOs...),
	}
	args.w = abi.UserqWait{
		WaitqID:                   req.QueueID,
		SyncObjHandles:            drm.SliceAddr(pins, args.syncObjs),
		SyncObjTimelineHandles:    drm.SliceAddr(pins, args.timelines),
		SyncObjTimelinePoints:     drm.SliceAddr(pins, args.points),
		BOReadHandles:             drm.SliceAddr(pins, args.readBOs),
		BOWriteHandles:            drm.SliceAddr(pins, args.writeBOs),
		NumSyncObjTimelineHandles: uint16(len(args.timelines)),
		NumSyncObjHandles:         uint32(len(args.syncObjs)),
		NumBOReadHandles:          uint32(len(args.readBOs)),
		NumBOWriteHandles:         uint32(len(args.writeBOs)),
	}
	return args, nil
}

// WaitCount returns the number of fences the kernel would report for req.
// It is the first phase of Wait, for callers sizing packet buffers ahead of
// time.
func (d *Device) WaitCount(req WaitRequest) (int, error) {
	var pins drm.Pins
	defer pins.Unpin()
	args, err := newWaitArgs(&req, &pins)
	if err != nil {
		return 0, err
	}
	if err := d.dev.Ioctl(abi.DRM_IOCTL_AMDGPU_USERQ_WAIT, unsafe.Pointer(&args.w)); err != nil {
		return 0, fmt.Errorf("counting fences for queue %d: %w", req.QueueID, err)
	}
	return int(args.w.NumFences), nil
}

// Wait returns the fences req.QueueID must wait for before touching the
// objects in req. It does not block.
//
// The kernel is asked for the fence count first, then for exactly that many
// fences. The returned slice is owned by the caller.
func (d *Device) Wait(req WaitRequest) ([]FenceInfo, error) {
	var pins drm.Pins
	defer pins.Unpin()
	args, err := newWaitArgs(&req, &pins)
	if err != nil {
		return nil, err
	}
	if err := d.dev.Ioctl(abi.DRM_IOCTL_AMDGPU_USERQ_WAIT, unsafe.Pointer(&args.w)); err != nil {
		return nil, fmt.Errorf("counting fences for queue %d: %w", req.QueueID, err)
	}
	n := int(args.w.NumFences)
	if n == 0 {
		return []FenceInfo{}, nil
	}

	args.fences = make([]abi.UserqFenceInfo, n)
	args.w.OutFences = drm.SliceAddr(&pins, args.fences)
	args.w.NumFences = uint16(n)
	if err := d.dev.Ioctl(abi.DRM_IOCTL_AMDGPU_USERQ_WAIT, unsafe.Pointer(&args.w)); err != nil {
		return nil, fmt.Errorf("retrieving %d fences for queue %d: %w", n, req.QueueID, err)
	}
	if got := int(args.w.NumFences); got < n {
		n = got
	}

	fences := make([]FenceInfo, n)
	for i := range fences {
		fences[i] = FenceInfo{VA: args.fences[i].VA, Value: args.fences[i].Value}
	}
	return fences, nil
}

// Wait is Device.Wait with q as the waiting queue. It fails with
// ErrQueueFreed once q has been freed.
func (q *Queue) Wait(req WaitRequest) ([]FenceInfo, error) {
	if err := q.checkLive(); err != nil {
		return nil, err
	}
	req.QueueID = q.id
	return q.dev.Wait(req)
}

func syncObjHandles(objs []drm.SyncObj) []uint32 {
	h := make([]uint32, len(objs))
	for i, s := range objs {
		h[i] = uint32(s)
	}
	return h
}
