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

// Package nvdrm wraps the driver-private ioctls of the nvidia-drm driver:
// fence contexts, NVKMS and userspace memory import/export, and GEM object
// queries.
//
// NVKMS parameter blocks are opaque to this package. They are passed to the
// kernel by address and may be written back by it.
package nvdrm

import (
	"errors"
	"fmt"
	"unsafe"

	abi "github.com/drmshim/drmshim/pkg/abi/nvdrm"
	"github.com/drmshim/drmshim/pkg/cleanup"
	"github.com/drmshim/drmshim/pkg/drm"
)

// DriverName is the driver name reported by nvidia DRM nodes.
const DriverName = abi.DriverName

// ErrNotNVIDIA is returned when a device is bound to another driver.
var ErrNotNVIDIA = errors.New("not an nvidia-drm device")

// Device is an nvidia-drm device.
type Device struct {
	dev   *drm.Device
	owned bool
}

// New checks that dev is driven by nvidia-drm. dev remains owned by the
// caller.
func New(dev *drm.Device) (*Device, error) {
	name, err := dev.DriverName()
	if err != nil {
		return nil, err
	}
	if name != DriverName {
		return nil, fmt.Errorf("driver %q: %w", name, ErrNotNVIDIA)
	}
	return &Device{dev: dev}, nil
}

// Open opens the nvidia-drm node at path.
func Open(path string) (*Device, error) {
	dev, err := drm.Open(path)
	if err != nil {
		return nil, err
	}
	cu := cleanup.Make(func() { dev.Close() })
	defer cu.Clean()

	d, err := New(dev)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	d.owned = true
	cu.Release()
	return d, nil
}

// Close releases the device if it was opened by Open.
func (d *Device) Close() error {
	if !d.owned {
		return nil
	}
	return d.dev.Close()
}

// DRM returns the underlying DRM device.
func (d *Device) DRM() *drm.Device {
	return d.dev
}

// FenceSupported returns nil if the driver supports fence contexts.
func (d *Device) FenceSupported() error {
	if err := d.dev.Ioctl(abi.DRM_IOCTL_NVIDIA_FENCE_SUPPORTED, nil); err != nil {
		return fmt.Errorf("fence support: %w", err)
	}
	return nil
}

// FenceContextParams describes a fence context.
type FenceContextParams struct {
	Index uint32
	Size  uint64

	// ImportMemNVKMSParams and EventNVKMSParams are NVKMS parameter blocks.
	ImportMemNVKMSParams []byte
	EventNVKMSParams     []byte
}

// CreateFenceContext creates a fence context and returns its handle.
func (d *Device) CreateFenceContext(p FenceContextParams) (uint32, error) {
	var pins drm.Pins
	defer pins.Unpin()
	args := abi.FenceContextCreateParams{
		Index:                    p.Index,
		Size:                     p.Size,
		ImportMemNVKMSParamsPtr:  drm.SliceAddr(&pins, p.ImportMemNVKMSParams),
		ImportMemNVKMSParamsSize: uint64(len(p.ImportMemNVKMSParams)),
		EventNVKMSParamsPtr:      drm.SliceAddr(&pins, p.EventNVKMSParams),
		EventNVKMSParamsSize:     uint64(len(p.EventNVKMSParams)),
	}
	if err := d.dev.Ioctl(abi.DRM_IOCTL_NVIDIA_FENCE_CONTEXT_CREATE, unsafe.Pointer(&args)); err != nil {
		return 0, fmt.Errorf("creating fence context %d: %w", p.Index, err)
	}
	return args.Handle, nil
}

// AttachFence attaches a fence from fenceContext to the GEM object handle,
// signaled when the context semaphore reaches semThresh.
func (d *Device) AttachFence(handle, fenceContext, semThresh uint32) error {
	args := abi.GEMFenceAttachParams{
		Handle:             handle,
		FenceContextHandle: fenceContext,
		SemThresh:          semThresh,
	}
	if err := d.dev.Ioctl(abi.DRM_IOCTL_NVIDIA_GEM_FENCE_ATTACH, unsafe.Pointer(&args)); err != nil {
		return fmt.Errorf("attaching fence context %d to GEM handle %d: %w", fenceContext, handle, err)
	}
	return nil
}

// ImportNVKMSMemory wraps NVKMS memory of size bytes in a GEM object.
func (d *Device) ImportNVKMSMemory(size uint64, nvkmsParams []byte) (uint32, error) {
	var pins drm.Pins
	defer pins.Unpin()
	args := abi.GEMImportNVKMSMemoryParams{
		MemSize:         size,
		NVKMSParamsPtr:  drm.SliceAddr(&pins, nvkmsParams),
		NVKMSParamsSize: uint64(len(nvkmsParams)),
	}
	if err := d.dev.Ioctl(abi.DRM_IOCTL_NVIDIA_GEM_IMPORT_NVKMS_MEMORY, unsafe.Pointer(&args)); err != nil {
		return 0, fmt.Errorf("importing NVKMS memory: %w", err)
	}
	return args.Handle, nil
}

// ImportUserspaceMemory wraps size bytes of process memory at address in a
// GEM object.
func (d *Device) ImportUserspaceMemory(size, address uint64) (uint32, error) {
	args := abi.GEMImportUserspaceMemoryParams{Size: size, Address: address}
	if err := d.dev.Ioctl(abi.DRM_IOCTL_NVIDIA_GEM_IMPORT_USERSPACE_MEMORY, unsafe.Pointer(&args)); err != nil {
		return 0, fmt.Errorf("importing user memory at %#x: %w", address, err)
	}
	return args.Handle, nil
}

// DevInfo describes an nvidia-drm device.
type DevInfo struct {
	GPUID uint32

	// PrimaryIndex is N in the device's cardN node.
	PrimaryIndex uint32

	GenericPageKind    uint32
	PageKindGeneration uint32
	SectorLayout       uint32
}

// DevInfo queries the device.
func (d *Device) DevInfo() (DevInfo, error) {
	var args abi.GetDevInfoParams
	if err := d.dev.Ioctl(abi.DRM_IOCTL_NVIDIA_GET_DEV_INFO, unsafe.Pointer(&args)); err != nil {
		return DevInfo{}, fmt.Errorf("querying device info: %w", err)
	}
	return DevInfo{
		GPUID:              args.GPUID,
		PrimaryIndex:       args.PrimaryIndex,
		GenericPageKind:    args.GenericPageKind,
		PageKindGeneration: args.PageKindGeneration,
		SectorLayout:       args.SectorLayout,
	}, nil
}

// ExportNVKMSMemory exports the memory of a GEM object to NVKMS. The kernel
// fills nvkmsParams.
func (d *Device) ExportNVKMSMemory(handle uint32, nvkmsParams []byte) error {
	var pins drm.Pins
	defer pins.Unpin()
	args := abi.GEMExportNVKMSMemoryParams{
		Handle:          handle,
		NVKMSParamsPtr:  drm.SliceAddr(&pins, nvkmsParams),
		NVKMSParamsSize: uint64(len(nvkmsParams)),
	}
	if err := d.dev.Ioctl(abi.DRM_IOCTL_NVIDIA_GEM_EXPORT_NVKMS_MEMORY, unsafe.Pointer(&args)); err != nil {
		return fmt.Errorf("exporting GEM handle %d to NVKMS: %w", handle, err)
	}
	return nil
}

// MapOffset returns the fake offset at which the GEM object can be mapped
// from the device, e.g. with drm.Device.Map.
func (d *Device) MapOffset(handle uint32) (uint64, error) {
	args := abi.GEMMapOffsetParams{Handle: handle}
	if err := d.dev.Ioctl(abi.DRM_IOCTL_NVIDIA_GEM_MAP_OFFSET, unsafe.Pointer(&args)); err != nil {
		return 0, fmt.Errorf("map offset of GEM handle %d: %w", handle, err)
	}
	return args.Offset, nil
}

// AllocParams describes an NVKMS memory allocation.
type AllocParams struct {
	Size         uint64
	BlockLinear  bool
	Compressible bool
}

// AllocNVKMSMemory allocates NVKMS memory and returns its GEM handle, and
// whether the driver made it compressible.
func (d *Device) AllocNVKMSMemory(p AllocParams) (uint32, bool, error) {
	args := abi.GEMAllocNVKMSMemoryParams{
		BlockLinear:  boolToU8(p.BlockLinear),
		Compressible: boolToU8(p.Compressible),
		MemorySize:   p.Size,
	}
	if err := d.dev.Ioctl(abi.DRM_IOCTL_NVIDIA_GEM_ALLOC_NVKMS_MEMORY, unsafe.Pointer(&args)); err != nil {
		return 0, false, fmt.Errorf("allocating %d bytes of NVKMS memory: %w", p.Size, err)
	}
	return args.Handle, args.Compressible != 0, nil
}

// ExportDMABufMemory exports the memory of a GEM object as a dma-buf through
// NVKMS. The kernel fills nvkmsParams.
func (d *Device) ExportDMABufMemory(handle uint32, nvkmsParams []byte) error {
	var pins drm.Pins
	defer pins.Unpin()
	args := abi.GEMExportDMABufMemoryParams{
		Handle:          handle,
		NVKMSParamsPtr:  drm.SliceAddr(&pins, nvkmsParams),
		NVKMSParamsSize: uint64(len(nvkmsParams)),
	}
	if err := d.dev.Ioctl(abi.DRM_IOCTL_NVIDIA_GEM_EXPORT_DMABUF_MEMORY, unsafe.Pointer(&args)); err != nil {
		return fmt.Errorf("exporting GEM handle %d as dma-buf: %w", handle, err)
	}
	return nil
}

// ObjectType is the kind of memory behind a GEM object.
type ObjectType uint32

// Object types.
const (
	ObjectNVKMS      ObjectType = abi.NV_GEM_OBJECT_NVKMS
	ObjectDMABuf     ObjectType = abi.NV_GEM_OBJECT_DMABUF
	ObjectUserMemory ObjectType = abi.NV_GEM_OBJECT_USERMEMORY
	ObjectUnknown    ObjectType = abi.NV_GEM_OBJECT_UNKNOWN
)

// String implements fmt.Stringer.
func (t ObjectType) String() string {
	switch t {
	case ObjectNVKMS:
		return "nvkms"
	case ObjectDMABuf:
		return "dmabuf"
	case ObjectUserMemory:
		return "usermemory"
	case ObjectUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("ObjectType(%d)", uint32(t))
	}
}

// IdentifyObject returns the type of the GEM object handle.
func (d *Device) IdentifyObject(handle uint32) (ObjectType, error) {
	args := abi.GEMIdentifyObjectParams{Handle: handle}
	if err := d.dev.Ioctl(abi.DRM_IOCTL_NVIDIA_GEM_IDENTIFY_OBJECT, unsafe.Pointer(&args)); err != nil {
		return ObjectUnknown, fmt.Errorf("identifying GEM handle %d: %w", handle, err)
	}
	return ObjectType(args.ObjectType), nil
}

func boolToU8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
