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

// Package nvdrm contains definitions from the nvidia-drm ioctl interface
// (kernel-open/nvidia-drm/nvidia-drm-ioctl.h in
// https://github.com/NVIDIA/open-gpu-kernel-modules).
package nvdrm

import (
	"github.com/drmshim/drmshim/pkg/abi/drm"
)

// DriverName is the name reported by DRM_IOCTL_VERSION.
const DriverName = "nvidia-drm"

// Driver-private command numbers, relative to DRM_COMMAND_BASE.
const (
	DRM_NVIDIA_GET_CRTC_CRC32              = 0x00
	DRM_NVIDIA_GEM_IMPORT_NVKMS_MEMORY     = 0x01
	DRM_NVIDIA_GEM_IMPORT_USERSPACE_MEMORY = 0x02
	DRM_NVIDIA_GET_DEV_INFO                = 0x03
	DRM_NVIDIA_FENCE_SUPPORTED             = 0x04
	DRM_NVIDIA_FENCE_CONTEXT_CREATE        = 0x05
	DRM_NVIDIA_GEM_FENCE_ATTACH            = 0x06
	DRM_NVIDIA_GET_CLIENT_CAPABILITY       = 0x08
	DRM_NVIDIA_GEM_EXPORT_NVKMS_MEMORY     = 0x09
	DRM_NVIDIA_GEM_MAP_OFFSET              = 0x0a
	DRM_NVIDIA_GEM_ALLOC_NVKMS_MEMORY      = 0x0b
	DRM_NVIDIA_GET_CRTC_CRC32_V2           = 0x0c
	DRM_NVIDIA_GEM_EXPORT_DMABUF_MEMORY    = 0x0d
	DRM_NVIDIA_GEM_IDENTIFY_OBJECT         = 0x0e
)

// GEM object types reported by DRM_NVIDIA_GEM_IDENTIFY_OBJECT
// (drm_nvidia_gem_object_type).
const (
	NV_GEM_OBJECT_NVKMS      = 0
	NV_GEM_OBJECT_DMABUF     = 1
	NV_GEM_OBJECT_USERMEMORY = 2
	NV_GEM_OBJECT_UNKNOWN    = 0x7fffffff
)

// GEMImportNVKMSMemoryParams is struct
// drm_nvidia_gem_import_nvkms_memory_params.
type GEMImportNVKMSMemoryParams struct {
	MemSize         uint64 // IN
	NVKMSParamsPtr  uint64 // IN
	NVKMSParamsSize uint64 // IN
	Handle          uint32 // OUT
	Pad             uint32
}

// GEMImportUserspaceMemoryParams is struct
// drm_nvidia_gem_import_userspace_memory_params.
type GEMImportUserspaceMemoryParams struct {
	Size    uint64 // IN
	Address uint64 // IN
	Handle  uint32 // OUT
	Pad     uint32
}

// GetDevInfoParams is struct drm_nvidia_get_dev_info_params.
type GetDevInfoParams struct {
	GPUID        uint32 // OUT
	PrimaryIndex uint32 // OUT; the "card%d" value

	// See DRM_FORMAT_MOD_NVIDIA_BLOCK_LINEAR_2D for these.
	GenericPageKind    uint32 // OUT
	PageKindGeneration uint32 // OUT
	SectorLayout       uint32 // OUT
}

// FenceContextCreateParams is struct
// drm_nvidia_fence_context_create_params.
type FenceContextCreateParams struct {
	Handle uint32 // OUT
	Index  uint32 // IN
	Size   uint64 // IN

	ImportMemNVKMSParamsPtr  uint64 // IN
	ImportMemNVKMSParamsSize uint64 // IN

	EventNVKMSParamsPtr  uint64 // IN
	EventNVKMSParamsSize uint64 // IN
}

// GEMFenceAttachParams is struct drm_nvidia_gem_fence_attach_params.
type GEMFenceAttachParams struct {
	Handle             uint32 // IN
	FenceContextHandle uint32 // IN
	SemThresh          uint32 // IN
}

// GEMExportNVKMSMemoryParams is struct
// drm_nvidia_gem_export_nvkms_memory_params.
type GEMExportNVKMSMemoryParams struct {
	Handle          uint32 // IN
	Pad             uint32
	NVKMSParamsPtr  uint64 // IN
	NVKMSParamsSize uint64 // IN
}

// GEMMapOffsetParams is struct drm_nvidia_gem_map_offset_params.
type GEMMapOffsetParams struct {
	Handle uint32 // IN
	Pad    uint32
	Offset uint64 // OUT, fake offset for mmap(2) on the DRM fd
}

// GEMAllocNVKMSMemoryParams is struct
// drm_nvidia_gem_alloc_nvkms_memory_params.
type GEMAllocNVKMSMemoryParams struct {
	Handle       uint32 // OUT
	BlockLinear  uint8  // IN
	Compressible uint8  // IN/OUT
	Pad          uint16
	MemorySize   uint64 // IN
}

// GEMExportDMABufMemoryParams is struct
// drm_nvidia_gem_export_dmabuf_memory_params.
type GEMExportDMABufMemoryParams struct {
	Handle          uint32 // IN
	Pad             uint32
	NVKMSParamsPtr  uint64 // IN
	NVKMSParamsSize uint64 // IN
}

// GEMIdentifyObjectParams is struct drm_nvidia_gem_identify_object_params.
type GEMIdentifyObjectParams struct {
	Handle     uint32 // IN
	ObjectType uint32 // OUT, NV_GEM_OBJECT_*
}

// Sizes of the structs in this package, in bytes.
const (
	SizeofGEMImportNVKMSMemoryParams     = 32
	SizeofGEMImportUserspaceMemoryParams = 24
	SizeofGetDevInfoParams               = 20
	SizeofFenceContextCreateParams       = 48
	SizeofGEMFenceAttachParams           = 12
	SizeofGEMExportNVKMSMemoryParams     = 24
	SizeofGEMMapOffsetParams             = 16
	SizeofGEMAllocNVKMSMemoryParams      = 16
	SizeofGEMExportDMABufMemoryParams    = 24
	SizeofGEMIdentifyObjectParams        = 8
)

// Encoded ioctl commands.
var (
	DRM_IOCTL_NVIDIA_GEM_IMPORT_NVKMS_MEMORY     = drm.CommandWriteRead(DRM_NVIDIA_GEM_IMPORT_NVKMS_MEMORY, SizeofGEMImportNVKMSMemoryParams)
	DRM_IOCTL_NVIDIA_GEM_IMPORT_USERSPACE_MEMORY = drm.CommandWriteRead(DRM_NVIDIA_GEM_IMPORT_USERSPACE_MEMORY, SizeofGEMImportUserspaceMemoryParams)
	DRM_IOCTL_NVIDIA_GET_DEV_INFO                = drm.CommandWriteRead(DRM_NVIDIA_GET_DEV_INFO, SizeofGetDevInfoParams)
	DRM_IOCTL_NVIDIA_FENCE_SUPPORTED             = drm.CommandNone(DRM_NVIDIA_FENCE_SUPPORTED)
	DRM_IOCTL_NVIDIA_FENCE_CONTEXT_CREATE        = drm.CommandWriteRead(DRM_NVIDIA_FENCE_CONTEXT_CREATE, SizeofFenceContextCreateParams)
	DRM_IOCTL_NVIDIA_GEM_FENCE_ATTACH            = drm.CommandWrite(DRM_NVIDIA_GEM_FENCE_ATTACH, SizeofGEMFenceAttachParams)
	DRM_IOCTL_NVIDIA_GEM_EXPORT_NVKMS_MEMORY     = drm.CommandWriteRead(DRM_NVIDIA_GEM_EXPORT_NVKMS_MEMORY, SizeofGEMExportNVKMSMemoryParams)
	DRM_IOCTL_NVIDIA_GEM_MAP_OFFSET              = drm.CommandWriteRead(DRM_NVIDIA_GEM_MAP_OFFSET, SizeofGEMMapOffsetParams)
	DRM_IOCTL_NVIDIA_GEM_ALLOC_NVKMS_MEMORY      = drm.CommandWriteRead(DRM_NVIDIA_GEM_ALLOC_NVKMS_MEMORY, SizeofGEMAllocNVKMSMemoryParams)
	DRM_IOCTL_NVIDIA_GEM_EXPORT_DMABUF_MEMORY    = drm.CommandWriteRead(DRM_NVIDIA_GEM_EXPORT_DMABUF_MEMORY, SizeofGEMExportDMABufMemoryParams)
	DRM_IOCTL_NVIDIA_GEM_IDENTIFY_OBJECT         = drm.CommandWriteRead(DRM_NVIDIA_GEM_IDENTIFY_OBJECT, SizeofGEMIdentifyObjectParams)
)
