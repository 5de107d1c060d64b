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

package drmtest

import (
	"os"
	"sync"
	"time"
	"unsafe"

	abi "github.com/drmshim/drmshim/pkg/abi/drm"
	"golang.org/x/sys/unix"
)

// fence is the state shared by every handle of one sync object.
type fence struct {
	signaled bool
}

// SyncObjs simulates the kernel's sync object table.
//
// Exported descriptors are real eventfds so they can be passed around and
// closed like the kernel's, but only this table can import them.
type SyncObjs struct {
	mu      sync.Mutex
	next    uint32
	handles map[uint32]*fence
	files   map[int]*fence
	changed chan struct{}
}

// InstallSyncObjs registers the sync object ioctls on k.
func (k *Kernel) InstallSyncObjs() *SyncObjs {
	s := &SyncObjs{
		next:    1,
		handles: make(map[uint32]*fence),
		files:   make(map[int]*fence),
		changed: make(chan struct{}),
	}
	k.Handle(abi.DRM_IOCTL_SYNCOBJ_CREATE, s.create)
	k.Handle(abi.DRM_IOCTL_SYNCOBJ_DESTROY, s.destroy)
	k.Handle(abi.DRM_IOCTL_SYNCOBJ_HANDLE_TO_FD, s.handleToFD)
	k.Handle(abi.DRM_IOCTL_SYNCOBJ_FD_TO_HANDLE, s.fdToHandle)
	k.Handle(abi.DRM_IOCTL_SYNCOBJ_WAIT, s.wait)
	k.Handle(abi.DRM_IOCTL_SYNCOBJ_SIGNAL, func(arg unsafe.Pointer) error { return s.setAll(arg, true) })
	k.Handle(abi.DRM_IOCTL_SYNCOBJ_RESET, func(arg unsafe.Pointer) error { return s.setAll(arg, false) })
	return s
}

// Live returns the number of live handles.
func (s *SyncObjs) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

// Signaled reports whether handle refers to a signaled object.
func (s *SyncObjs) Signaled(handle uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.handles[handle]
	return ok && f.signaled
}

func (s *SyncObjs) add(f *fence) uint32 {
	h := s.next
	s.next++
	s.handles[h] = f
	return h
}

func (s *SyncObjs) create(arg unsafe.Pointer) error {
	a := (*abi.SyncObjCreate)(arg)
	if a.Flags&^abi.DRM_SYNCOBJ_CREATE_SIGNALED != 0 {
		return unix.EINVAL
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a.Handle = s.add(&fence{signaled: a.Flags&abi.DRM_SYNCOBJ_CREATE_SIGNALED != 0})
	return nil
}

func (s *SyncObjs) destroy(arg unsafe.Pointer) error {
	a := (*abi.SyncObjDestroy)(arg)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.handles[a.Handle]; !ok {
		return unix.EINVAL
	}
	delete(s.handles, a.Handle)
	return nil
}

func (s *SyncObjs) handleToFD(arg unsafe.Pointer) error {
	a := (*abi.SyncObjHandle)(arg)
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.handles[a.Handle]
	if !ok {
		return unix.ENOENT
	}
	efd, err := unix.Eventfd(0, unix.EFD_CLOEXEC)
	if err != nil {
		return err
	}
	s.files[efd] = f
	a.FD = int32(efd)
	return nil
}

func (s *SyncObjs) fdToHandle(arg unsafe.Pointer) error {
	a := (*abi.SyncObjHandle)(arg)
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[int(a.FD)]
	if !ok {
		return unix.EINVAL
	}
	a.Handle = s.add(f)
	return nil
}

func (s *SyncObjs) lookup(handles []uint32) ([]*fence, error) {
	fs := make([]*fence, len(handles))
	for i, h := range handles {
		f, ok := s.handles[h]
		if !ok {
			return nil, unix.ENOENT
		}
		fs[i] = f
	}
	return fs, nil
}

func (s *SyncObjs) setAll(arg unsafe.Pointer, signaled bool) error {
	a := (*abi.SyncObjArray)(arg)
	s.mu.Lock()
	defer s.mu.Unlock()
	fs, err := s.lookup(Slice[uint32](a.Handles, int(a.CountHandles)))
	if err != nil {
		return err
	}
	for _, f := range fs {
		f.signaled = signaled
	}
	if signaled {
		close(s.changed)
		s.changed = make(chan struct{})
	}
	return nil
}

func (s *SyncObjs) wait(arg unsafe.Pointer) error {
	a := (*abi.SyncObjWait)(arg)
	if a.CountHandles == 0 {
		return unix.EINVAL
	}
	handles := Slice[uint32](a.Handles, int(a.CountHandles))
	all := a.Flags&abi.DRM_SYNCOBJ_WAIT_FLAGS_WAIT_ALL != 0
	for {
		s.mu.Lock()
		fs, err := s.lookup(handles)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		first, done := -1, all
		for i, f := range fs {
			if f.signaled && first < 0 {
				first = i
			}
			if all && !f.signaled {
				done = false
			}
		}
		if !all {
			done = first >= 0
		}
		changed := s.changed
		s.mu.Unlock()

		if done {
			if all {
				first = 0
			}
			a.FirstSignaled = uint32(first)
			return nil
		}

		remaining := time.Duration(a.TimeoutNsec - monotonicNow())
		if a.TimeoutNsec == 0 || remaining <= 0 {
			return unix.ETIME
		}
		timer := time.NewTimer(remaining)
		select {
		case <-changed:
			timer.Stop()
		case <-timer.C:
			return unix.ETIME
		}
	}
}

func monotonicNow() int64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		panic(os.NewSyscallError("clock_gettime", err))
	}
	return ts.Nano()
}
