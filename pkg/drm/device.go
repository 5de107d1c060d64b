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

// Package drm provides access to Direct Rendering Manager device nodes: the
// core ioctls shared by every DRM driver, sync objects, GEM handles, and
// discovery of the nodes present on the host.
//
// Driver-specific ioctls (amdgpu, nvidia-drm) are issued by their own
// packages through Device.Ioctl.
package drm

import (
	"errors"
	"fmt"
	"unsafe"

	abi "github.com/drmshim/drmshim/pkg/abi/drm"
	"github.com/drmshim/drmshim/pkg/fd"
	"golang.org/x/sys/unix"
)

// Ioctler issues a single ioctl. arg points to the argument struct for cmd.
//
// Implementations return the raw unix.Errno on failure; Device takes care of
// EINTR and error decoration.
type Ioctler interface {
	Ioctl(cmd uint32, arg unsafe.Pointer) error
}

// IoctlError is returned when the kernel fails an ioctl.
type IoctlError struct {
	// Cmd is the encoded ioctl request.
	Cmd uint32

	// Errno is the error returned by the kernel.
	Errno unix.Errno
}

// Error implements error.Error.
func (e *IoctlError) Error() string {
	return fmt.Sprintf("ioctl %#08x (nr %#02x): %v", e.Cmd, abi.IOC_NR(e.Cmd), e.Errno)
}

// Unwrap returns the kernel errno, so errors.Is(err, unix.EINVAL) works.
func (e *IoctlError) Unwrap() error {
	return e.Errno
}

// Device is an open DRM device node.
type Device struct {
	// fd is the host descriptor, nil for devices created by NewDevice.
	fd   *fd.FD
	ioc  Ioctler
	path string
}

// Open opens the DRM node at path, e.g. /dev/dri/renderD128.
func Open(path string) (*Device, error) {
	f, err := fd.Open(path, unix.O_RDWR)
	if err != nil {
		return nil, err
	}
	return &Device{fd: f, ioc: hostIoctler{f}, path: path}, nil
}

// NewDevice returns a Device that issues ioctls through ioc. The device has
// no host descriptor: Map and FD are unavailable.
func NewDevice(ioc Ioctler) *Device {
	return &Device{ioc: ioc}
}

// Path returns the path the device was opened from, or "" for devices
// created by NewDevice.
func (d *Device) Path() string {
	return d.path
}

// FD returns the host descriptor of the device, or -1 if there is none. The
// Device retains ownership.
func (d *Device) FD() int {
	if d.fd == nil {
		return -1
	}
	return d.fd.FD()
}

// Close releases the device.
func (d *Device) Close() error {
	if d.fd == nil {
		return nil
	}
	return d.fd.Close()
}

// Ioctl issues cmd with argument arg.
//
// A call interrupted by a signal is restarted. Any other kernel error is
// returned as an *IoctlError; no other retry is attempted.
func (d *Device) Ioctl(cmd uint32, arg unsafe.Pointer) error {
	for {
		err := d.ioc.Ioctl(cmd, arg)
		if err == nil {
			return nil
		}
		var errno unix.Errno
		if !errors.As(err, &errno) {
			return err
		}
		if errno == unix.EINTR {
			continue
		}
		return &IoctlError{Cmd: cmd, Errno: errno}
	}
}
