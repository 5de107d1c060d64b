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

// Package fd provides an owned host file descriptor.
package fd

import (
	"os"
	"runtime"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// FD owns a host file descriptor: a DRM device node, or a sync object or
// dma-buf exported from one.
//
// Unlike os.File, FD never puts the descriptor into non-blocking mode (ioctls
// on DRM nodes are synchronous) and provides Release to hand ownership to
// another owner, e.g. a peer process. Like os.File, FD closes the descriptor
// from a finalizer if the owner forgets to.
type FD struct {
	// fd is accessed atomically so Close/Release can swap it.
	fd int64
}

// New creates a new FD.
//
// New takes ownership of fd.
func New(fd int) *FD {
	if fd < 0 {
		return &FD{-1}
	}
	f := &FD{int64(fd)}
	runtime.SetFinalizer(f, (*FD).Close)
	return f
}

// Open is equivalent to open(2) with O_CLOEXEC.
func Open(path string, flags int) (*FD, error) {
	for {
		f, err := unix.Open(path, flags|unix.O_CLOEXEC, 0)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, &os.PathError{Op: "open", Path: path, Err: err}
		}
		return New(f), nil
	}
}

// Dup returns a new FD referring to the same file description, owned by the
// caller. f retains ownership of its own descriptor.
func (f *FD) Dup() (*FD, error) {
	nfd, err := unix.FcntlInt(uintptr(f.FD()), unix.F_DUPFD_CLOEXEC, 0)
	runtime.KeepAlive(f)
	if err != nil {
		return nil, err
	}
	return New(nfd), nil
}

// Close closes the file descriptor contained in the FD.
//
// Close is safe to call multiple times, but will return an error after the
// first call.
//
// Concurrently calling Close and any other method is undefined.
func (f *FD) Close() error {
	runtime.SetFinalizer(f, nil)
	return unix.Close(int(atomic.SwapInt64(&f.fd, -1)))
}

// Release relinquishes ownership of the contained file descriptor.
//
// Concurrently calling Release and any other method is undefined.
func (f *FD) Release() int {
	runtime.SetFinalizer(f, nil)
	return int(atomic.SwapInt64(&f.fd, -1))
}

// FD returns the file descriptor owned by FD. FD retains ownership.
func (f *FD) FD() int {
	return int(atomic.LoadInt64(&f.fd))
}

// Valid returns true if f still owns a descriptor.
func (f *FD) Valid() bool {
	return f.FD() >= 0
}
