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
	"golang.org/x/sys/unix"
)

// Flags shared by PRIME and sync object fd export.
const (
	DRM_CLOEXEC = unix.O_CLOEXEC
	DRM_RDWR    = unix.O_RDWR
)

// Sync object flags.
const (
	DRM_SYNCOBJ_CREATE_SIGNALED = 1 << 0

	DRM_SYNCOBJ_FD_TO_HANDLE_FLAGS_IMPORT_SYNC_FILE = 1 << 0
	DRM_SYNCOBJ_HANDLE_TO_FD_FLAGS_EXPORT_SYNC_FILE = 1 << 0

	DRM_SYNCOBJ_WAIT_FLAGS_WAIT_ALL        = 1 << 0
	DRM_SYNCOBJ_WAIT_FLAGS_WAIT_FOR_SUBMIT = 1 << 1
	DRM_SYNCOBJ_WAIT_FLAGS_WAIT_AVAILABLE  = 1 << 2
	DRM_SYNCOBJ_WAIT_FLAGS_WAIT_DEADLINE   = 1 << 3
)

// Version is struct drm_version.
type Version struct {
	Major      int32
	Minor      int32
	Patchlevel int32
	Pad0       [4]byte
	NameLen    uint64
	Name       uint64 // char __user *
	DateLen    uint64
	Date       uint64 // char __user *
	DescLen    uint64
	Desc       uint64 // char __user *
}

// GEMClose is struct drm_gem_close.
type GEMClose struct {
	Handle uint32
	Pad    uint32
}

// PrimeHandle is struct drm_prime_handle.
type PrimeHandle struct {
	Handle uint32
	Flags  uint32
	FD     int32
}

// SyncObjCreate is struct drm_syncobj_create.
type SyncObjCreate struct {
	Handle uint32
	Flags  uint32
}

// SyncObjDestroy is struct drm_syncobj_destroy.
type SyncObjDestroy struct {
	Handle uint32
	Pad    uint32
}

// SyncObjHandle is struct drm_syncobj_handle.
type SyncObjHandle struct {
	Handle uint32
	Flags  uint32
	FD     int32
	Pad    uint32
}

// SyncObjWait is struct drm_syncobj_wait, without the trailing deadline_nsec
// field added in Linux 6.5. The kernel zero-extends shorter arguments, so this
// layout works on old and new kernels as long as
// DRM_SYNCOBJ_WAIT_FLAGS_WAIT_DEADLINE is not set.
type SyncObjWait struct {
	Handles       uint64 // __u32 __user *
	TimeoutNsec   int64  // absolute CLOCK_MONOTONIC
	CountHandles  uint32
	Flags         uint32
	FirstSignaled uint32
	Pad           uint32
}

// SyncObjArray is struct drm_syncobj_array.
type SyncObjArray struct {
	Handles      uint64 // __u32 __user *
	CountHandles uint32
	Pad          uint32
}

// Sizes of the structs above, in bytes.
const (
	SizeofVersion        = 64
	SizeofGEMClose       = 8
	SizeofPrimeHandle    = 12
	SizeofSyncObjCreate  = 8
	SizeofSyncObjDestroy = 8
	SizeofSyncObjHandle  = 16
	SizeofSyncObjWait    = 32
	SizeofSyncObjArray   = 16
)

// Core DRM ioctls.
var (
	DRM_IOCTL_VERSION            = IOWR(DRM_IOCTL_BASE, 0x00, SizeofVersion)
	DRM_IOCTL_GEM_CLOSE          = IOW(DRM_IOCTL_BASE, 0x09, SizeofGEMClose)
	DRM_IOCTL_PRIME_HANDLE_TO_FD = IOWR(DRM_IOCTL_BASE, 0x2d, SizeofPrimeHandle)
	DRM_IOCTL_PRIME_FD_TO_HANDLE = IOWR(DRM_IOCTL_BASE, 0x2e, SizeofPrimeHandle)

	DRM_IOCTL_SYNCOBJ_CREATE       = IOWR(DRM_IOCTL_BASE, 0xbf, SizeofSyncObjCreate)
	DRM_IOCTL_SYNCOBJ_DESTROY      = IOWR(DRM_IOCTL_BASE, 0xc0, SizeofSyncObjDestroy)
	DRM_IOCTL_SYNCOBJ_HANDLE_TO_FD = IOWR(DRM_IOCTL_BASE, 0xc1, SizeofSyncObjHandle)
	DRM_IOCTL_SYNCOBJ_FD_TO_HANDLE = IOWR(DRM_IOCTL_BASE, 0xc2, SizeofSyncObjHandle)
	DRM_IOCTL_SYNCOBJ_WAIT         = IOWR(DRM_IOCTL_BASE, 0xc3, SizeofSyncObjWait)
	DRM_IOCTL_SYNCOBJ_RESET        = IOWR(DRM_IOCTL_BASE, 0xc4, SizeofSyncObjArray)
	DRM_IOCTL_SYNCOBJ_SIGNAL       = IOWR(DRM_IOCTL_BASE, 0xc5, SizeofSyncObjArray)
)
