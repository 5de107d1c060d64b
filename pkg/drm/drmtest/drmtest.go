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

// Package drmtest provides an in-memory DRM kernel for tests.
//
// A Kernel implements drm.Ioctler by dispatching each command to a handler
// registered for it. Handlers see the argument exactly as the kernel would:
// a pointer to the argument struct, with user pointers stored as integers.
package drmtest

import (
	"sync"
	"unsafe"

	abi "github.com/drmshim/drmshim/pkg/abi/drm"
	"github.com/drmshim/drmshim/pkg/drm"
	"golang.org/x/sys/unix"
)

// HandlerFunc handles one ioctl. It returns nil or a unix.Errno.
type HandlerFunc func(arg unsafe.Pointer) error

// Kernel is a fake DRM driver.
type Kernel struct {
	mu       sync.Mutex
	handlers map[uint32]HandlerFunc
	calls    []uint32
}

// NewKernel returns a Kernel whose driver reports the given name.
func NewKernel(driver string) *Kernel {
	k := &Kernel{handlers: make(map[uint32]HandlerFunc)}
	k.SetVersion(drm.VersionInfo{
		Major: 1,
		Name:  driver,
		Date:  "20260101",
		Desc:  driver + " fake",
	})
	return k
}

// NewDevice returns a drm.Device backed by a new Kernel.
func NewDevice(driver string) (*drm.Device, *Kernel) {
	k := NewKernel(driver)
	return drm.NewDevice(k), k
}

// Handle registers fn for cmd, replacing any previous handler.
func (k *Kernel) Handle(cmd uint32, fn HandlerFunc) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.handlers[cmd] = fn
}

// Ioctl implements drm.Ioctler.Ioctl. Commands without a handler fail with
// ENOTTY, as they would on a driver that does not implement them.
func (k *Kernel) Ioctl(cmd uint32, arg unsafe.Pointer) error {
	k.mu.Lock()
	fn, ok := k.handlers[cmd]
	k.calls = append(k.calls, cmd)
	k.mu.Unlock()
	if !ok {
		return unix.ENOTTY
	}
	return fn(arg)
}

// Calls returns the commands issued so far, in order.
func (k *Kernel) Calls() []uint32 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]uint32(nil), k.calls...)
}

// Count returns the number of times cmd was issued.
func (k *Kernel) Count(cmd uint32) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	n := 0
	for _, c := range k.calls {
		if c == cmd {
			n++
		}
	}
	return n
}

// SetVersion makes DRM_IOCTL_VERSION report v, following the kernel's
// length/copy protocol.
func (k *Kernel) SetVersion(v drm.VersionInfo) {
	k.Handle(abi.DRM_IOCTL_VERSION, func(arg unsafe.Pointer) error {
		a := (*abi.Version)(arg)
		a.Major, a.Minor, a.Patchlevel = v.Major, v.Minor, v.Patchlevel
		a.NameLen = copyString(a.Name, a.NameLen, v.Name)
		a.DateLen = copyString(a.Date, a.DateLen, v.Date)
		a.DescLen = copyString(a.Desc, a.DescLen, v.Desc)
		return nil
	})
}

// copyString copies s to the user buffer at addr of size n, and returns the
// full length of s.
func copyString(addr, n uint64, s string) uint64 {
	if addr != 0 && n > 0 {
		copy(Slice[byte](addr, int(n)), s)
	}
	return uint64(len(s))
}

// Slice returns the n elements of T at the user address addr.
//
// addr must come from drm.Pins or drm.SliceAddr during the ioctl being
// handled: the buffer is pinned until the ioctl returns, so it can neither
// move nor be freed while the handler uses the slice.
func Slice[T any](addr uint64, n int) []T {
	if addr == 0 || n == 0 {
		return nil
	}
	// Reload the address from memory as a pointer. Unlike a uintptr
	// conversion, this is not an arithmetic pointer derivation.
	p := *(*unsafe.Pointer)(unsafe.Pointer(&addr))
	return unsafe.Slice((*T)(p), n)
}
