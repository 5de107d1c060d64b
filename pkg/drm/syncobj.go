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

package drm

import (
	"fmt"
	"math"
	"runtime"
	"time"
	"unsafe"

	abi "github.com/drmshim/drmshim/pkg/abi/drm"
	"github.com/drmshim/drmshim/pkg/fd"
	"golang.org/x/sys/unix"
)

// SyncObj is a sync object handle, valid only on the device that created or
// imported it. It must be released with DestroySyncObj.
type SyncObj uint32

// CreateSyncObj creates a sync object. flags may include
// DRM_SYNCOBJ_CREATE_SIGNALED.
func (d *Device) CreateSyncObj(flags uint32) (SyncObj, error) {
	args := abi.SyncObjCreate{Flags: flags}
	if err := d.Ioctl(abi.DRM_IOCTL_SYNCOBJ_CREATE, unsafe.Pointer(&args)); err != nil {
		return 0, fmt.Errorf("creating sync object: %w", err)
	}
	return SyncObj(args.Handle), nil
}

// DestroySyncObj releases a sync object handle.
func (d *Device) DestroySyncObj(s SyncObj) error {
	args := abi.SyncObjDestroy{Handle: uint32(s)}
	if err := d.Ioctl(abi.DRM_IOCTL_SYNCOBJ_DESTROY, unsafe.Pointer(&args)); err != nil {
		return fmt.Errorf("destroying sync object %d: %w", s, err)
	}
	return nil
}

// ExportSyncObj exports s as a file descriptor owned by the caller, which can
// be passed to another process or device. flags may include
// DRM_SYNCOBJ_HANDLE_TO_FD_FLAGS_EXPORT_SYNC_FILE.
func (d *Device) ExportSyncObj(s SyncObj, flags uint32) (*fd.FD, error) {
	args := abi.SyncObjHandle{Handle: uint32(s), Flags: flags, FD: -1}
	if err := d.Ioctl(abi.DRM_IOCTL_SYNCOBJ_HANDLE_TO_FD, unsafe.Pointer(&args)); err != nil {
		return nil, fmt.Errorf("exporting sync object %d: %w", s, err)
	}
	return fd.New(int(args.FD)), nil
}

// ImportSyncObj imports a sync object exported by ExportSyncObj. f remains
// owned by the caller.
func (d *Device) ImportSyncObj(f *fd.FD, flags uint32) (SyncObj, error) {
	args := abi.SyncObjHandle{Flags: flags, FD: int32(f.FD())}
	err := d.Ioctl(abi.DRM_IOCTL_SYNCOBJ_FD_TO_HANDLE, unsafe.Pointer(&args))
	runtime.KeepAlive(f)
	if err != nil {
		return 0, fmt.Errorf("importing sync object from fd %d: %w", f.FD(), err)
	}
	return SyncObj(args.Handle), nil
}

// waitArgs keeps the handle array alongside the argument.
type waitArgs struct {
	w       abi.SyncObjWait
	handles []uint32
}

// WaitSyncObjs blocks in the kernel until the sync objects signal.
//
// By default the wait finishes when any object signals, and the index of the
// first signaled object is returned. flags may include
// DRM_SYNCOBJ_WAIT_FLAGS_WAIT_ALL and DRM_SYNCOBJ_WAIT_FLAGS_WAIT_FOR_SUBMIT.
//
// timeout is relative. A zero timeout polls, a negative timeout waits
// forever. Expiry is reported as an error matching unix.ETIME.
func (d *Device) WaitSyncObjs(objs []SyncObj, timeout time.Duration, flags uint32) (int, error) {
	if len(objs) == 0 {
		return 0, fmt.Errorf("waiting on zero sync objects: %w", unix.EINVAL)
	}
	deadline, err := absDeadline(timeout)
	if err != nil {
		return 0, err
	}

	args := &waitArgs{handles: handles(objs)}
	var pins Pins
	defer pins.Unpin()
	args.w = abi.SyncObjWait{
		Handles:      SliceAddr(&pins, args.handles),
		TimeoutNsec:  deadline,
		CountHandles: uint32(len(args.handles)),
		Flags:        flags,
	}
	if err := d.Ioctl(abi.DRM_IOCTL_SYNCOBJ_WAIT, unsafe.Pointer(&args.w)); err != nil {
		return 0, fmt.Errorf("waiting on %d sync objects: %w", len(objs), err)
	}
	return int(args.w.FirstSignaled), nil
}

// SignalSyncObjs signals each of objs from the CPU.
func (d *Device) SignalSyncObjs(objs []SyncObj) error {
	if err := d.syncObjArray(abi.DRM_IOCTL_SYNCOBJ_SIGNAL, objs); err != nil {
		return fmt.Errorf("signaling %d sync objects: %w", len(objs), err)
	}
	return nil
}

// ResetSyncObjs returns each of objs to the unsignaled state.
func (d *Device) ResetSyncObjs(objs []SyncObj) error {
	if err := d.syncObjArray(abi.DRM_IOCTL_SYNCOBJ_RESET, objs); err != nil {
		return fmt.Errorf("resetting %d sync objects: %w", len(objs), err)
	}
	return nil
}

type arrayArgs struct {
	a       abi.SyncObjArray
	handles []uint32
}

func (d *Device) syncObjArray(cmd uint32, objs []SyncObj) error {
	if len(objs) == 0 {
		return nil
	}
	args := &arrayArgs{handles: handles(objs)}
	var pins Pins
	defer pins.Unpin()
	args.a = abi.SyncObjArray{
		Handles:      SliceAddr(&pins, args.handles),
		CountHandles: uint32(len(args.handles)),
	}
	return d.Ioctl(cmd, unsafe.Pointer(&args.a))
}

func handles(objs []SyncObj) []uint32 {
	h := make([]uint32, len(objs))
	for i, s := range objs {
		h[i] = uint32(s)
	}
	return h
}

// absDeadline converts a relative timeout to the absolute CLOCK_MONOTONIC
// nanosecond deadline expected by DRM_IOCTL_SYNCOBJ_WAIT.
func absDeadline(timeout time.Duration) (int64, error) {
	switch {
	case timeout == 0:
		return 0, nil
	case timeout < 0:
		return math.MaxInt64, nil
	}
	var now unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &now); err != nil {
		return 0, fmt.Errorf("reading CLOCK_MONOTONIC: %w", err)
	}
	if rem := math.MaxInt64 - now.Nano(); int64(timeout) > rem {
		return math.MaxInt64, nil
	}
	return now.Nano() + int64(timeout), nil
}
