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
	"sync"
	"testing"
	"unsafe"

	abi "github.com/drmshim/drmshim/pkg/abi/amdgpu"
	"github.com/drmshim/drmshim/pkg/drm"
	"github.com/drmshim/drmshim/pkg/drm/drmtest"
	"golang.org/x/sys/unix"
)

// fakeInfo is what the fake driver reports for AMDGPU_INFO_DEV_INFO.
var fakeInfo = abi.DeviceInfo{
	DeviceID: 0x744c,
	ChipRev:  0x00,
	PCIRev:   0xc8,
	Family:   abi.AMDGPU_FAMILY_GC_11_0_0,
}

// fakeHWIP is reported for AMDGPU_INFO_HW_IP_INFO on GFX and compute instance 0.
var fakeHWIP = abi.HWIPInfo{
	HWIPVersionMajor: 11,
	HWIPVersionMinor: 0,
	IBStartAlignment: 32,
	IBSizeAlignment:  32,
	AvailableRings:   0x1,
}

// fakeFirmware holds the AMDGPU_INFO_FW_VERSION replies by firmware type.
var fakeFirmware = map[uint32]abi.FirmwareInfo{
	abi.AMDGPU_INFO_FW_GFX_ME:  {Ver: 0x7c4, Feature: 38},
	abi.AMDGPU_INFO_FW_GFX_MEC: {Ver: 0x1f0, Feature: 38},
}

// fakeQueue is a queue as recorded by the fake driver.
type fakeQueue struct {
	in      abi.UserqIn
	gfx     abi.UserqMQDGfx11
	compute abi.UserqMQDComputeGfx11
}

// fakeAMDGPU simulates the amdgpu user queue ioctls.
type fakeAMDGPU struct {
	*drmtest.Kernel

	mu     sync.Mutex
	nextID uint32
	seq    uint64
	queues map[uint32]*fakeQueue
	// fences holds the last fence signaled for each written buffer object.
	fences map[uint32]abi.UserqFenceInfo
}

func newFakeDevice(t *testing.T) (*Device, *fakeAMDGPU) {
	t.Helper()
	dev, k := drmtest.NewDevice(DriverName)
	k.SetVersion(drm.VersionInfo{Major: 3, Minor: 61, Name: DriverName, Date: "20150101", Desc: "AMD GPU"})
	f := &fakeAMDGPU{
		Kernel: k,
		nextID: 1,
		queues: make(map[uint32]*fakeQueue),
		fences: make(map[uint32]abi.UserqFenceInfo),
	}
	k.Handle(abi.DRM_IOCTL_AMDGPU_INFO, f.info)
	k.Handle(abi.DRM_IOCTL_AMDGPU_USERQ, f.userq)
	k.Handle(abi.DRM_IOCTL_AMDGPU_USERQ_SIGNAL, f.signal)
	k.Handle(abi.DRM_IOCTL_AMDGPU_USERQ_WAIT, f.wait)

	d, err := Initialize(dev)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	return d, f
}

func (f *fakeAMDGPU) info(arg unsafe.Pointer) error {
	a := (*abi.Info)(arg)
	var src []byte
	switch a.Query {
	case abi.AMDGPU_INFO_DEV_INFO:
		src = unsafe.Slice((*byte)(unsafe.Pointer(&fakeInfo)), abi.SizeofDeviceInfo)
	case abi.AMDGPU_INFO_HW_IP_INFO:
		ipType, ipInstance := a.Union[0], a.Union[1]
		if ipType > abi.AMDGPU_HW_IP_COMPUTE || ipInstance != 0 {
			return unix.EINVAL
		}
		src = unsafe.Slice((*byte)(unsafe.Pointer(&fakeHWIP)), abi.SizeofHWIPInfo)
	case abi.AMDGPU_INFO_FW_VERSION:
		fw, ok := fakeFirmware[a.Union[0]]
		if !ok || a.Union[1] != 0 {
			return unix.EINVAL
		}
		src = unsafe.Slice((*byte)(unsafe.Pointer(&fw)), abi.SizeofFirmwareInfo)
	default:
		return unix.EINVAL
	}
	// The kernel copies at most ReturnSize bytes.
	copy(drmtest.Slice[byte](a.ReturnPointer, int(a.ReturnSize)), src)
	return nil
}

func (f *fakeAMDGPU) userq(arg unsafe.Pointer) error {
	u := (*abi.Userq)(arg)
	f.mu.Lock()
	defer f.mu.Unlock()
	switch u.In.Op {
	case abi.AMDGPU_USERQ_OP_CREATE:
		q := &fakeQueue{in: u.In}
		switch u.In.IPType {
		case abi.AMDGPU_HW_IP_GFX:
			if u.In.MQD == 0 || u.In.MQDSize != abi.SizeofUserqMQDGfx11 {
				return unix.EINVAL
			}
			q.gfx = drmtest.Slice[abi.UserqMQDGfx11](u.In.MQD, 1)[0]
		case abi.AMDGPU_HW_IP_COMPUTE:
			if u.In.MQD == 0 || u.In.MQDSize != abi.SizeofUserqMQDComputeGfx11 {
				return unix.EINVAL
			}
			q.compute = drmtest.Slice[abi.UserqMQDComputeGfx11](u.In.MQD, 1)[0]
		default:
			return unix.EINVAL
		}
		if u.In.QueueVA == 0 || u.In.QueueSize == 0 {
			return unix.EINVAL
		}
		id := f.nextID
		f.nextID++
		f.queues[id] = q
		u.Out().QueueID = id
		return nil
	case abi.AMDGPU_USERQ_OP_FREE:
		if _, ok := f.queues[u.In.QueueID]; !ok {
			return unix.EINVAL
		}
		delete(f.queues, u.In.QueueID)
		return nil
	default:
		return unix.EINVAL
	}
}

func (f *fakeAMDGPU) signal(arg unsafe.Pointer) error {
	s := (*abi.UserqSignal)(arg)
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.queues[s.QueueID]; !ok {
		return unix.ENOENT
	}
	f.seq++
	fence := abi.UserqFenceInfo{VA: 0x100000 + uint64(s.QueueID)*8, Value: f.seq}
	for _, bo := range drmtest.Slice[uint32](s.BOWriteHandles, int(s.NumBOWriteHandles)) {
		f.fences[bo] = fence
	}
	return nil
}

func (f *fakeAMDGPU) wait(arg unsafe.Pointer) error {
	w := (*abi.UserqWait)(arg)
	f.mu.Lock()
	defer f.mu.Unlock()

	var pending []abi.UserqFenceInfo
	bos := append(drmtest.Slice[uint32](w.BOReadHandles, int(w.NumBOReadHandles)),
		drmtest.Slice[uint32](w.BOWriteHandles, int(w.NumBOWriteHandles))...)
	for _, bo := range bos {
		if fence, ok := f.fences[bo]; ok {
			pending = append(pending, fence)
		}
	}

	if w.NumFences == 0 {
		w.NumFences = uint16(len(pending))
		return nil
	}
	if int(w.NumFences) < len(pending) || w.OutFences == 0 {
		return unix.EINVAL
	}
	copy(drmtest.Slice[abi.UserqFenceInfo](w.OutFences, int(w.NumFences)), pending)
	w.NumFences = uint16(len(pending))
	return nil
}

func (f *fakeAMDGPU) live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queues)
}

func (f *fakeAMDGPU) queue(id uint32) *fakeQueue {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queues[id]
}
