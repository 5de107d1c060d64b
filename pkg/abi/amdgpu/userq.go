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

package amdgpu

import (
	"unsafe"
)

// User queue operations.
const (
	AMDGPU_USERQ_OP_CREATE = 1
	AMDGPU_USERQ_OP_FREE   = 2
)

// User queue creation flags.
const (
	AMDGPU_USERQ_CREATE_FLAGS_QUEUE_PRIORITY_MASK  = 0x3
	AMDGPU_USERQ_CREATE_FLAGS_QUEUE_PRIORITY_SHIFT = 0
	AMDGPU_USERQ_CREATE_FLAGS_QUEUE_SECURE         = 1 << 2
)

// UserqIn is struct drm_amdgpu_userq_in.
type UserqIn struct {
	Op             uint32
	QueueID        uint32
	IPType         uint32
	DoorbellHandle uint32 // GEM handle of the doorbell object
	DoorbellOffset uint32 // in dwords, relative to the doorbell object
	Flags          uint32
	QueueVA        uint64
	QueueSize      uint64
	RptrVA         uint64
	WptrVA         uint64
	MQD            uint64 // void __user *, IP specific
	MQDSize        uint64
}

// UserqOut is struct drm_amdgpu_userq_out.
type UserqOut struct {
	QueueID uint32
	Pad     uint32
}

// Userq is union drm_amdgpu_userq. The kernel writes UserqOut over the
// leading bytes of UserqIn.
type Userq struct {
	In UserqIn
}

// Out returns the output view of the union.
func (u *Userq) Out() *UserqOut {
	return (*UserqOut)(unsafe.Pointer(&u.In))
}

// UserqMQDGfx11 is struct drm_amdgpu_userq_mqd_gfx11, the IP specific
// payload for AMDGPU_HW_IP_GFX queues.
type UserqMQDGfx11 struct {
	ShadowVA uint64
	CSAVA    uint64
}

// UserqMQDComputeGfx11 is struct drm_amdgpu_userq_mqd_compute_gfx11, the IP
// specific payload for AMDGPU_HW_IP_COMPUTE queues.
type UserqMQDComputeGfx11 struct {
	EOPVA uint64
}

// UserqMQDSDMAGfx11 is struct drm_amdgpu_userq_mqd_sdma_gfx11, the IP specific
// payload for AMDGPU_HW_IP_DMA queues.
type UserqMQDSDMAGfx11 struct {
	CSAVA uint64
}

// UserqSignal is struct drm_amdgpu_userq_signal.
type UserqSignal struct {
	QueueID           uint32
	Pad               uint32
	SyncObjHandles    uint64 // __u32 __user *
	NumSyncObjHandles uint64
	BOReadHandles     uint64 // __u32 __user *
	BOWriteHandles    uint64 // __u32 __user *
	NumBOReadHandles  uint32
	NumBOWriteHandles uint32
}

// UserqWait is struct drm_amdgpu_userq_wait.
//
// NumFences is in/out: on input it is the capacity of OutFences; the kernel
// stores the number of fences required. A zero capacity and a null OutFences
// pointer only query the count.
type UserqWait struct {
	WaitqID                   uint32
	Pad                       uint32
	SyncObjHandles            uint64 // __u32 __user *
	SyncObjTimelineHandles    uint64 // __u32 __user *
	SyncObjTimelinePoints     uint64 // __u64 __user *
	BOReadHandles             uint64 // __u32 __user *
	BOWriteHandles            uint64 // __u32 __user *
	NumSyncObjTimelineHandles uint16
	NumFences                 uint16
	NumSyncObjHandles         uint32
	NumBOReadHandles          uint32
	NumBOWriteHandles         uint32
	OutFences                 uint64 // struct drm_amdgpu_userq_fence_info __user *
}

// UserqFenceInfo is struct drm_amdgpu_userq_fence_info: a GPU address and the
// value it holds once the fence has signaled.
type UserqFenceInfo struct {
	VA    uint64
	Value uint64
}
