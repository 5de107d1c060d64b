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
	"runtime"
	"unsafe"

	"github.com/drmshim/drmshim/pkg/fd"
	"golang.org/x/sys/unix"
)

// hostIoctler issues ioctls on a host descriptor.
type hostIoctler struct {
	fd *fd.FD
}

// Ioctl implements Ioctler.Ioctl.
//
// Syscall rather than RawSyscall is used since some commands (sync object
// waits) block.
func (h hostIoctler) Ioctl(cmd uint32, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(h.fd.FD()), uintptr(cmd), uintptr(arg))
	runtime.KeepAlive(h.fd)
	if errno != 0 {
		return errno
	}
	return nil
}

// Pins keeps buffers referenced by address from ioctl arguments in place
// until Unpin is called. Argument structs carry user pointers as uint64, which
// the garbage collector does not trace.
type Pins struct {
	p runtime.Pinner
}

// Addr pins the object at ptr and returns its address. A nil ptr yields 0.
func (p *Pins) Addr(ptr unsafe.Pointer) uint64 {
	if ptr == nil {
		return 0
	}
	p.p.Pin(ptr)
	return uint64(uintptr(ptr))
}

// Unpin releases every object pinned by p.
func (p *Pins) Unpin() {
	p.p.Unpin()
}

// SliceAddr pins the backing array of s and returns its address, or 0 if s
// is empty.
func SliceAddr[T any](p *Pins, s []T) uint64 {
	if len(s) == 0 {
		return 0
	}
	return p.Addr(unsafe.Pointer(unsafe.SliceData(s)))
}
