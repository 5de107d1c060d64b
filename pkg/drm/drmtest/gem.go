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
	"unsafe"

	abi "github.com/drmshim/drmshim/pkg/abi/drm"
	"golang.org/x/sys/unix"
)

// gemObject is a buffer object. Its memfd stands in for the dma-buf the
// kernel would export.
type gemObject struct {
	file *os.File
}

// fileID identifies an open file independently of the descriptor.
type fileID struct {
	dev, ino uint64
}

// GEMObjects simulates GEM handles and PRIME export and import.
//
// Exports return a new descriptor for the object's memfd. Imports resolve a
// descriptor to its object by device and inode, so every descriptor of one
// object, dups included, imports as the same handle.
type GEMObjects struct {
	mu      sync.Mutex
	next    uint32
	handles map[uint32]*gemObject
	// objects indexes every object ever created by file. Objects stay
	// importable after their last handle is closed, like a dma-buf kept
	// alive by an exported descriptor.
	objects map[fileID]*gemObject
}

// InstallGEM registers GEM_CLOSE and the PRIME ioctls on k.
func (k *Kernel) InstallGEM() *GEMObjects {
	g := &GEMObjects{
		next:    1,
		handles: make(map[uint32]*gemObject),
		objects: make(map[fileID]*gemObject),
	}
	k.Handle(abi.DRM_IOCTL_GEM_CLOSE, g.close)
	k.Handle(abi.DRM_IOCTL_PRIME_HANDLE_TO_FD, g.handleToFD)
	k.Handle(abi.DRM_IOCTL_PRIME_FD_TO_HANDLE, g.fdToHandle)
	return g
}

// Create allocates a buffer object of size bytes and returns its handle.
// Buffer allocation is driver specific, so there is no ioctl for it here.
func (g *GEMObjects) Create(size int64) (uint32, error) {
	mfd, err := unix.MemfdCreate("gem", unix.MFD_CLOEXEC)
	if err != nil {
		return 0, os.NewSyscallError("memfd_create", err)
	}
	file := os.NewFile(uintptr(mfd), "gem")
	if err := file.Truncate(size); err != nil {
		file.Close()
		return 0, err
	}
	id, err := identify(mfd)
	if err != nil {
		file.Close()
		return 0, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	o := &gemObject{file: file}
	g.objects[id] = o
	return g.add(o), nil
}

// Live returns the number of open handles.
func (g *GEMObjects) Live() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.handles)
}

func (g *GEMObjects) add(o *gemObject) uint32 {
	h := g.next
	g.next++
	g.handles[h] = o
	return h
}

func (g *GEMObjects) close(arg unsafe.Pointer) error {
	a := (*abi.GEMClose)(arg)
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.handles[a.Handle]; !ok {
		return unix.EINVAL
	}
	delete(g.handles, a.Handle)
	return nil
}

func (g *GEMObjects) handleToFD(arg unsafe.Pointer) error {
	a := (*abi.PrimeHandle)(arg)
	if a.Flags&^uint32(abi.DRM_CLOEXEC|abi.DRM_RDWR) != 0 {
		return unix.EINVAL
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.handles[a.Handle]
	if !ok {
		return unix.ENOENT
	}
	cmd := unix.F_DUPFD
	if a.Flags&abi.DRM_CLOEXEC != 0 {
		cmd = unix.F_DUPFD_CLOEXEC
	}
	nfd, err := unix.FcntlInt(o.file.Fd(), cmd, 0)
	if err != nil {
		return err
	}
	a.FD = int32(nfd)
	return nil
}

func (g *GEMObjects) fdToHandle(arg unsafe.Pointer) error {
	a := (*abi.PrimeHandle)(arg)
	id, err := identify(int(a.FD))
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.objects[id]
	if !ok {
		// Not a dma-buf.
		return unix.EINVAL
	}
	for h, other := range g.handles {
		if other == o {
			a.Handle = h
			return nil
		}
	}
	a.Handle = g.add(o)
	return nil
}

func identify(fd int) (fileID, error) {
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return fileID{}, err
	}
	return fileID{dev: uint64(st.Dev), ino: st.Ino}, nil
}
