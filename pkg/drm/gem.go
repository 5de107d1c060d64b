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
	"runtime"
	"unsafe"

	abi "github.com/drmshim/drmshim/pkg/abi/drm"
	"github.com/drmshim/drmshim/pkg/fd"
)

// CloseGEM releases a GEM buffer object handle.
func (d *Device) CloseGEM(handle uint32) error {
	args := abi.GEMClose{Handle: handle}
	if err := d.Ioctl(abi.DRM_IOCTL_GEM_CLOSE, unsafe.Pointer(&args)); err != nil {
		return fmt.Errorf("closing GEM handle %d: %w", handle, err)
	}
	return nil
}

// PrimeHandleToFD exports a GEM handle as a dma-buf descriptor owned by the
// caller. flags is typically DRM_CLOEXEC|DRM_RDWR.
func (d *Device) PrimeHandleToFD(handle, flags uint32) (*fd.FD, error) {
	args := abi.PrimeHandle{Handle: handle, Flags: flags, FD: -1}
	if err := d.Ioctl(abi.DRM_IOCTL_PRIME_HANDLE_TO_FD, unsafe.Pointer(&args)); err != nil {
		return nil, fmt.Errorf("exporting GEM handle %d: %w", handle, err)
	}
	return fd.New(int(args.FD)), nil
}

// PrimeFDToHandle imports a dma-buf descriptor as a GEM handle on d. f remains
// owned by the caller.
func (d *Device) PrimeFDToHandle(f *fd.FD) (uint32, error) {
	args := abi.PrimeHandle{FD: int32(f.FD())}
	err := d.Ioctl(abi.DRM_IOCTL_PRIME_FD_TO_HANDLE, unsafe.Pointer(&args))
	runtime.KeepAlive(f)
	if err != nil {
		return 0, fmt.Errorf("importing dma-buf fd %d: %w", f.FD(), err)
	}
	return args.Handle, nil
}
