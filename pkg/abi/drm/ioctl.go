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

// Package drm contains definitions from the core Linux DRM uAPI
// (include/uapi/drm/drm.h).
//
// Struct layouts assume a 64-bit kernel ABI (amd64 and arm64).
package drm

// ioctl(2) request encoding, from include/uapi/asm-generic/ioctl.h.
const (
	IOC_NRBITS   = 8
	IOC_TYPEBITS = 8
	IOC_SIZEBITS = 14
	IOC_DIRBITS  = 2

	IOC_NRSHIFT   = 0
	IOC_TYPESHIFT = IOC_NRSHIFT + IOC_NRBITS
	IOC_SIZESHIFT = IOC_TYPESHIFT + IOC_TYPEBITS
	IOC_DIRSHIFT  = IOC_SIZESHIFT + IOC_SIZEBITS

	IOC_NONE  = 0
	IOC_WRITE = 1
	IOC_READ  = 2

	IOC_SIZEMASK = (1 << IOC_SIZEBITS) - 1
)

// IOC encodes an ioctl request number.
func IOC(dir, typ, nr, size uint32) uint32 {
	if size > IOC_SIZEMASK {
		panic("ioctl argument size too large")
	}
	return dir<<IOC_DIRSHIFT | typ<<IOC_TYPESHIFT | nr<<IOC_NRSHIFT | size<<IOC_SIZESHIFT
}

// IO is equivalent to _IO(typ, nr).
func IO(typ, nr uint32) uint32 {
	return IOC(IOC_NONE, typ, nr, 0)
}

// IOR is equivalent to _IOR(typ, nr, size).
func IOR(typ, nr, size uint32) uint32 {
	return IOC(IOC_READ, typ, nr, size)
}

// IOW is equivalent to _IOW(typ, nr, size).
func IOW(typ, nr, size uint32) uint32 {
	return IOC(IOC_WRITE, typ, nr, size)
}

// IOWR is equivalent to _IOWR(typ, nr, size).
func IOWR(typ, nr, size uint32) uint32 {
	return IOC(IOC_READ|IOC_WRITE, typ, nr, size)
}

// IOC_NR extracts the command number from an encoded request.
func IOC_NR(cmd uint32) uint32 {
	return (cmd >> IOC_NRSHIFT) & ((1 << IOC_NRBITS) - 1)
}

// IOC_SIZE extracts the argument size from an encoded request.
func IOC_SIZE(cmd uint32) uint32 {
	return (cmd >> IOC_SIZESHIFT) & IOC_SIZEMASK
}

// IOC_DIR extracts the direction bits from an encoded request.
func IOC_DIR(cmd uint32) uint32 {
	return (cmd >> IOC_DIRSHIFT) & ((1 << IOC_DIRBITS) - 1)
}

const (
	// DRM_IOCTL_BASE is the IOC_TYPE of all DRM ioctls.
	DRM_IOCTL_BASE = uint32('d')

	// DRM_COMMAND_BASE is the first command number available to drivers.
	// Driver-private commands are numbered relative to it.
	DRM_COMMAND_BASE = 0x40
	DRM_COMMAND_END  = 0xa0
)

// CommandNone encodes a driver-private command without an argument, like
// libdrm's drmCommandNone.
func CommandNone(nr uint32) uint32 {
	return IO(DRM_IOCTL_BASE, DRM_COMMAND_BASE+nr)
}

// CommandWrite encodes a driver-private command whose argument is only read
// by the kernel, like libdrm's drmCommandWrite.
func CommandWrite(nr, size uint32) uint32 {
	return IOW(DRM_IOCTL_BASE, DRM_COMMAND_BASE+nr, size)
}

// CommandWriteRead encodes a driver-private command whose argument is read
// and written back by the kernel, like libdrm's drmCommandWriteRead.
func CommandWriteRead(nr, size uint32) uint32 {
	return IOWR(DRM_IOCTL_BASE, DRM_COMMAND_BASE+nr, size)
}
