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

// Package amdgpu contains definitions from the amdgpu DRM uAPI
// (include/uapi/drm/amdgpu_drm.h).
package amdgpu

import (
	"github.com/drmshim/drmshim/pkg/abi/drm"
)

// Driver-private command numbers, relative to DRM_COMMAND_BASE.
const (
	DRM_AMDGPU_INFO         = 0x05
	DRM_AMDGPU_USERQ        = 0x16
	DRM_AMDGPU_USERQ_SIGNAL = 0x17
	DRM_AMDGPU_USERQ_WAIT   = 0x18
)

// Hardware IP blocks.
const (
	AMDGPU_HW_IP_GFX      = 0
	AMDGPU_HW_IP_COMPUTE  = 1
	AMDGPU_HW_IP_DMA      = 2
	AMDGPU_HW_IP_UVD      = 3
	AMDGPU_HW_IP_VCE      = 4
	AMDGPU_HW_IP_UVD_ENC  = 5
	AMDGPU_HW_IP_VCN_DEC  = 6
	AMDGPU_HW_IP_VCN_ENC  = 7
	AMDGPU_HW_IP_VCN_JPEG = 8
	AMDGPU_HW_IP_VPE      = 9
)

// GEM domains.
const (
	AMDGPU_GEM_DOMAIN_CPU      = 0x1
	AMDGPU_GEM_DOMAIN_GTT      = 0x2
	AMDGPU_GEM_DOMAIN_VRAM     = 0x4
	AMDGPU_GEM_DOMAIN_GDS      = 0x8
	AMDGPU_GEM_DOMAIN_GWS      = 0x10
	AMDGPU_GEM_DOMAIN_OA       = 0x20
	AMDGPU_GEM_DOMAIN_DOORBELL = 0x40
)

// Info queries.
const (
	AMDGPU_INFO_ACCEL_WORKING = 0x00
	AMDGPU_INFO_HW_IP_INFO    = 0x02
	AMDGPU_INFO_FW_VERSION    = 0x0e
	AMDGPU_INFO_DEV_INFO      = 0x16
)

// Family ids, as reported in DeviceInfo.Family.
const (
	AMDGPU_FAMILY_SI        = 110
	AMDGPU_FAMILY_CI        = 120
	AMDGPU_FAMILY_KV        = 125
	AMDGPU_FAMILY_VI        = 130
	AMDGPU_FAMILY_CZ        = 135
	AMDGPU_FAMILY_AI        = 141
	AMDGPU_FAMILY_RV        = 142
	AMDGPU_FAMILY_NV        = 143
	AMDGPU_FAMILY_VGH       = 144
	AMDGPU_FAMILY_GC_11_0_0 = 145
	AMDGPU_FAMILY_YC        = 146
	AMDGPU_FAMILY_GC_11_0_1 = 148
	AMDGPU_FAMILY_GC_10_3_6 = 149
	AMDGPU_FAMILY_GC_11_5_0 = 150
	AMDGPU_FAMILY_GC_10_3_7 = 151
	AMDGPU_FAMILY_GC_12_0_0 = 152
)

// Info is struct drm_amdgpu_info. The trailing union is kept as raw words;
// the query-specific accessors below name the ones in use.
type Info struct {
	ReturnPointer uint64 // void __user *
	ReturnSize    uint32
	Query         uint32
	Union         [4]uint32
}

// SetHWIPQuery fills the query_hw_ip member of the union.
func (i *Info) SetHWIPQuery(ipType, ipInstance uint32) {
	i.Union[0] = ipType
	i.Union[1] = ipInstance
}

// SetFWQuery fills the query_fw member of the union.
func (i *Info) SetFWQuery(fwType, ipInstance, index uint32) {
	i.Union[0] = fwType
	i.Union[1] = ipInstance
	i.Union[2] = index
}

// Firmware types for AMDGPU_INFO_FW_VERSION queries.
const (
	AMDGPU_INFO_FW_VCE     = 0x01
	AMDGPU_INFO_FW_UVD     = 0x02
	AMDGPU_INFO_FW_GMC     = 0x03
	AMDGPU_INFO_FW_GFX_ME  = 0x04
	AMDGPU_INFO_FW_GFX_PFP = 0x05
	AMDGPU_INFO_FW_GFX_CE  = 0x06
	AMDGPU_INFO_FW_GFX_RLC = 0x07
	AMDGPU_INFO_FW_GFX_MEC = 0x08
	AMDGPU_INFO_FW_SMC     = 0x0a
	AMDGPU_INFO_FW_SDMA    = 0x0b
	AMDGPU_INFO_FW_SOS     = 0x0c
	AMDGPU_INFO_FW_ASD     = 0x0d
	AMDGPU_INFO_FW_VCN     = 0x0e
)

// HWIPInfo is the leading part of struct drm_amdgpu_info_hw_ip, up to and
// including ip_discovery_version.
type HWIPInfo struct {
	HWIPVersionMajor   uint32
	HWIPVersionMinor   uint32
	CapabilitiesFlags  uint64
	IBStartAlignment   uint32
	IBSizeAlignment    uint32
	AvailableRings     uint32 // bitmask
	IPDiscoveryVersion uint32
}

// FirmwareInfo is struct drm_amdgpu_info_firmware.
type FirmwareInfo struct {
	Ver     uint32
	Feature uint32
}

// DeviceInfo is the leading part of struct drm_amdgpu_info_device, up to and
// including ids_flags. The kernel copies min(return_size, sizeof) bytes, so
// the prefix is sufficient for identification.
type DeviceInfo struct {
	DeviceID                 uint32
	ChipRev                  uint32
	ExternalRev              uint32
	PCIRev                   uint32
	Family                   uint32
	NumShaderEngines         uint32
	NumShaderArraysPerEngine uint32
	GPUCounterFreq           uint32
	MaxEngineClock           uint64
	MaxMemoryClock           uint64
	CUActiveNumber           uint32
	CUAOMask                 uint32
	CUBitmap                 [4][4]uint32
	EnabledRBPipesMask       uint32
	NumRBPipes               uint32
	NumHWGfxContexts         uint32
	PCIeGen                  uint32
	IDsFlags                 uint64
}

// Sizes of the structs in this package, in bytes.
const (
	SizeofInfo                 = 32
	SizeofDeviceInfo           = 144
	SizeofHWIPInfo             = 32
	SizeofFirmwareInfo         = 8
	SizeofUserq                = 72
	SizeofUserqMQDGfx11        = 16
	SizeofUserqMQDComputeGfx11 = 8
	SizeofUserqMQDSDMAGfx11    = 8
	SizeofUserqSignal          = 48
	SizeofUserqWait            = 72
	SizeofUserqFenceInfo       = 16
)

// Encoded ioctl commands.
var (
	DRM_IOCTL_AMDGPU_INFO         = drm.CommandWrite(DRM_AMDGPU_INFO, SizeofInfo)
	DRM_IOCTL_AMDGPU_USERQ        = drm.CommandWriteRead(DRM_AMDGPU_USERQ, SizeofUserq)
	DRM_IOCTL_AMDGPU_USERQ_SIGNAL = drm.CommandWriteRead(DRM_AMDGPU_USERQ_SIGNAL, SizeofUserqSignal)
	DRM_IOCTL_AMDGPU_USERQ_WAIT   = drm.CommandWriteRead(DRM_AMDGPU_USERQ_WAIT, SizeofUserqWait)
)
