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

// Package amdgpu drives AMD GPUs through the amdgpu DRM driver: device
// identification, user-mode queues, and the fence signal/wait protocol
// between them.
//
// The package issues ioctls and nothing else. Buffer objects backing queue
// rings, read/write pointers and doorbells are allocated and mapped by the
// caller and must outlive the queues using them.
package amdgpu

import (
	"errors"
	"fmt"
	"unsafe"

	abi "github.com/drmshim/drmshim/pkg/abi/amdgpu"
	"github.com/drmshim/drmshim/pkg/amdgpu/asicid"
	"github.com/drmshim/drmshim/pkg/cleanup"
	"github.com/drmshim/drmshim/pkg/drm"
	"github.com/drmshim/drmshim/pkg/log"
)

// DriverName is the DRM driver name of amdgpu devices.
const DriverName = "amdgpu"

// ErrNotAMDGPU is returned when a device is bound to another driver.
var ErrNotAMDGPU = errors.New("not an amdgpu device")

// Device is an initialized amdgpu device.
type Device struct {
	dev     *drm.Device
	version drm.VersionInfo
	info    abi.DeviceInfo

	// owned is set if Close should close dev.
	owned bool
}

// Initialize checks that dev is driven by amdgpu and queries its identity.
// dev remains owned by the caller.
func Initialize(dev *drm.Device) (*Device, error) {
	v, err := dev.Version()
	if err != nil {
		return nil, err
	}
	if v.Name != DriverName {
		return nil, fmt.Errorf("driver %q: %w", v.Name, ErrNotAMDGPU)
	}
	d := &Device{dev: dev, version: v}
	if err := d.Query(abi.AMDGPU_INFO_DEV_INFO, unsafe.Pointer(&d.info), abi.SizeofDeviceInfo); err != nil {
		return nil, fmt.Errorf("querying device info: %w", err)
	}
	log.Debugf("amdgpu %v: driver %d.%d.%d, family %d", d.ASICID(), v.Major, v.Minor, v.Patchlevel, d.info.Family)
	return d, nil
}

// Open opens and initializes the amdgpu node at path.
func Open(path string) (*Device, error) {
	dev, err := drm.Open(path)
	if err != nil {
		return nil, err
	}
	cu := cleanup.Make(func() { dev.Close() })
	defer cu.Clean()

	d, err := Initialize(dev)
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

// DRM returns the underlying DRM device, e.g. to manage sync objects.
func (d *Device) DRM() *drm.Device {
	return d.dev
}

// ASICID returns the PCI device and revision ids of the GPU.
func (d *Device) ASICID() asicid.ID {
	return asicid.ID{DeviceID: d.info.DeviceID, RevisionID: d.info.PCIRev}
}

// Info returns the device information reported at initialization.
func (d *Device) Info() abi.DeviceInfo {
	return d.info
}

// DriverVersion returns the kernel driver version.
func (d *Device) DriverVersion() drm.VersionInfo {
	return d.version
}

// MarketingName resolves the product name of the GPU from the amdgpu.ids
// table. An empty name with a nil error means the table or the row is
// missing.
func (d *Device) MarketingName(opts asicid.Options) (string, error) {
	return asicid.Resolve(opts, d.ASICID())
}

// Query issues an AMDGPU_INFO query, with the kernel copying up to size bytes
// of the result to out.
func (d *Device) Query(query uint32, out unsafe.Pointer, size uint32) error {
	return d.query(&abi.Info{Query: query}, out, size)
}

// HWIPInfo returns the version and available rings of a hardware IP block,
// e.g. AMDGPU_HW_IP_GFX instance 0.
func (d *Device) HWIPInfo(ipType, ipInstance uint32) (abi.HWIPInfo, error) {
	var info abi.HWIPInfo
	args := abi.Info{Query: abi.AMDGPU_INFO_HW_IP_INFO}
	args.SetHWIPQuery(ipType, ipInstance)
	if err := d.query(&args, unsafe.Pointer(&info), abi.SizeofHWIPInfo); err != nil {
		return abi.HWIPInfo{}, fmt.Errorf("querying hw ip %d instance %d: %w", ipType, ipInstance, err)
	}
	return info, nil
}

// FirmwareVersion returns the version of a loaded firmware, e.g.
// AMDGPU_INFO_FW_GFX_MEC. index selects the pipe for per-pipe firmware.
func (d *Device) FirmwareVersion(fwType, ipInstance, index uint32) (abi.FirmwareInfo, error) {
	var fw abi.FirmwareInfo
	args := abi.Info{Query: abi.AMDGPU_INFO_FW_VERSION}
	args.SetFWQuery(fwType, ipInstance, index)
	if err := d.query(&args, unsafe.Pointer(&fw), abi.SizeofFirmwareInfo); err != nil {
		return abi.FirmwareInfo{}, fmt.Errorf("querying firmware %d: %w", fwType, err)
	}
	return fw, nil
}

// query issues args with its return buffer set to out.
func (d *Device) query(args *abi.Info, out unsafe.Pointer, size uint32) error {
	var pins drm.Pins
	defer pins.Unpin()
	args.ReturnPointer = pins.Addr(out)
	args.ReturnSize = size
	return d.dev.Ioctl(abi.DRM_IOCTL_AMDGPU_INFO, unsafe.Pointer(args))
}
