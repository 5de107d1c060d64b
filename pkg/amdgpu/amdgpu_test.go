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
	"errors"
	"os"
	"path/filepath"
	"testing"

	abi "github.com/drmshim/drmshim/pkg/abi/amdgpu"
	"github.com/drmshim/drmshim/pkg/amdgpu/asicid"
	"github.com/drmshim/drmshim/pkg/drm"
	"github.com/drmshim/drmshim/pkg/drm/drmtest"
	"github.com/google/go-cmp/cmp"
	"golang.org/x/sys/unix"
)

func gfxMQD() *MQD {
	return &MQD{
		QueueVA:        0x10000,
		QueueSize:      0x1000,
		RptrVA:         0x11000,
		WptrVA:         0x11008,
		DoorbellHandle: 3,
		DoorbellOffset: 4,
		ShadowVA:       0x20000,
		CSAVA:          0x30000,
	}
}

func TestInitialize(t *testing.T) {
	d, _ := newFakeDevice(t)
	if got, want := d.ASICID(), (asicid.ID{DeviceID: 0x744c, RevisionID: 0xc8}); got != want {
		t.Errorf("ASICID() = %v, want %v", got, want)
	}
	if got := d.Info().Family; got != abi.AMDGPU_FAMILY_GC_11_0_0 {
		t.Errorf("Info().Family = %d, want %d", got, abi.AMDGPU_FAMILY_GC_11_0_0)
	}
	if v := d.DriverVersion(); v.Major != 3 || v.Minor != 61 {
		t.Errorf("DriverVersion() = %v, want 3.61", v)
	}
}

func TestInitializeWrongDriver(t *testing.T) {
	dev, _ := drmtest.NewDevice("i915")
	if _, err := Initialize(dev); !errors.Is(err, ErrNotAMDGPU) {
		t.Errorf("Initialize error = %v, want ErrNotAMDGPU", err)
	}
}

func TestHWIPInfo(t *testing.T) {
	d, _ := newFakeDevice(t)
	for _, tc := range []struct {
		name       string
		ipType     uint32
		ipInstance uint32
		want       abi.HWIPInfo
		wantErr    error
	}{
		{name: "gfx", ipType: abi.AMDGPU_HW_IP_GFX, want: fakeHWIP},
		{name: "compute", ipType: abi.AMDGPU_HW_IP_COMPUTE, want: fakeHWIP},
		{name: "missing instance", ipType: abi.AMDGPU_HW_IP_GFX, ipInstance: 1, wantErr: unix.EINVAL},
		{name: "missing ip", ipType: abi.AMDGPU_HW_IP_VPE, wantErr: unix.EINVAL},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := d.HWIPInfo(tc.ipType, tc.ipInstance)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("HWIPInfo error = %v, want %v", err, tc.wantErr)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("HWIPInfo mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFirmwareVersion(t *testing.T) {
	d, _ := newFakeDevice(t)
	for _, tc := range []struct {
		name    string
		fwType  uint32
		want    abi.FirmwareInfo
		wantErr error
	}{
		{name: "me", fwType: abi.AMDGPU_INFO_FW_GFX_ME, want: abi.FirmwareInfo{Ver: 0x7c4, Feature: 38}},
		{name: "mec", fwType: abi.AMDGPU_INFO_FW_GFX_MEC, want: abi.FirmwareInfo{Ver: 0x1f0, Feature: 38}},
		{name: "not loaded", fwType: abi.AMDGPU_INFO_FW_UVD, wantErr: unix.EINVAL},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := d.FirmwareVersion(tc.fwType, 0, 0)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("FirmwareVersion error = %v, want %v", err, tc.wantErr)
			}
			if got != tc.want {
				t.Errorf("FirmwareVersion = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestMarketingName(t *testing.T) {
	d, _ := newFakeDevice(t)
	path := filepath.Join(t.TempDir(), "amdgpu.ids")
	if err := os.WriteFile(path, []byte("1.0.0\n744C,\tC8,\tAMD Radeon RX 7900 XTX\n"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	name, err := d.MarketingName(asicid.Options{TablePath: path})
	if err != nil {
		t.Fatalf("MarketingName failed: %v", err)
	}
	if name != "AMD Radeon RX 7900 XTX" {
		t.Errorf("MarketingName() = %q, want %q", name, "AMD Radeon RX 7900 XTX")
	}
}

func TestQueueCreateFree(t *testing.T) {
	d, f := newFakeDevice(t)

	q, err := d.CreateQueue(abi.AMDGPU_HW_IP_GFX, gfxMQD())
	if err != nil {
		t.Fatalf("CreateQueue failed: %v", err)
	}
	fq := f.queue(q.ID())
	if fq == nil {
		t.Fatalf("kernel has no queue %d", q.ID())
	}
	if diff := cmp.Diff(abi.UserqMQDGfx11{ShadowVA: 0x20000, CSAVA: 0x30000}, fq.gfx); diff != "" {
		t.Errorf("GFX MQD mismatch (-want +got):\n%s", diff)
	}
	if fq.in.DoorbellHandle != 3 || fq.in.DoorbellOffset != 4 || fq.in.WptrVA != 0x11008 {
		t.Errorf("queue memory not passed through: %+v", fq.in)
	}

	if err := q.Free(); err != nil {
		t.Fatalf("Free failed: %v", err)
	}
	if n := f.live(); n != 0 {
		t.Errorf("%d queues live after Free, want 0", n)
	}

	// The freed queue is dead locally; the kernel never sees the misuse.
	calls := f.Count(abi.DRM_IOCTL_AMDGPU_USERQ)
	if err := q.Free(); !errors.Is(err, ErrQueueFreed) {
		t.Errorf("second Free error = %v, want ErrQueueFreed", err)
	}
	if err := q.Signal(SignalRequest{WriteBOs: []uint32{1}}); !errors.Is(err, ErrQueueFreed) {
		t.Errorf("Signal after Free error = %v, want ErrQueueFreed", err)
	}
	if _, err := q.Wait(WaitRequest{ReadBOs: []uint32{1}}); !errors.Is(err, ErrQueueFreed) {
		t.Errorf("Wait after Free error = %v, want ErrQueueFreed", err)
	}
	if got := f.Count(abi.DRM_IOCTL_AMDGPU_USERQ); got != calls {
		t.Errorf("misuse after Free reached the kernel: %d USERQ calls, want %d", got, calls)
	}

	// A new queue needs a new create and gets a new id.
	q2, err := d.CreateQueue(abi.AMDGPU_HW_IP_GFX, gfxMQD())
	if err != nil {
		t.Fatalf("CreateQueue failed: %v", err)
	}
	defer q2.Free()
	if q2.ID() == q.ID() {
		t.Errorf("new queue reused freed id %d", q.ID())
	}
}

func TestCreateComputeQueue(t *testing.T) {
	d, f := newFakeDevice(t)
	mqd := gfxMQD()
	mqd.EOPVA = 0x40000
	q, err := d.CreateQueue(abi.AMDGPU_HW_IP_COMPUTE, mqd)
	if err != nil {
		t.Fatalf("CreateQueue failed: %v", err)
	}
	defer q.Free()
	if got := f.queue(q.ID()).compute.EOPVA; got != 0x40000 {
		t.Errorf("EOP VA = %#x, want %#x", got, 0x40000)
	}
	if q.IP() != abi.AMDGPU_HW_IP_COMPUTE {
		t.Errorf("IP() = %d, want %d", q.IP(), abi.AMDGPU_HW_IP_COMPUTE)
	}
}

func TestCreateQueueKernelError(t *testing.T) {
	d, f := newFakeDevice(t)
	q, err := d.CreateQueue(abi.AMDGPU_HW_IP_VCN_ENC, gfxMQD())
	if !errors.Is(err, unix.EINVAL) {
		t.Errorf("CreateQueue error = %v, want EINVAL", err)
	}
	var ioctlErr *drm.IoctlError
	if !errors.As(err, &ioctlErr) || ioctlErr.Cmd != abi.DRM_IOCTL_AMDGPU_USERQ {
		t.Errorf("CreateQueue error %v does not carry the USERQ command", err)
	}
	if q != nil {
		t.Errorf("CreateQueue returned a queue on failure")
	}
	if n := f.live(); n != 0 {
		t.Errorf("%d queues live after failed create", n)
	}
}

func TestSignalWait(t *testing.T) {
	d, f := newFakeDevice(t)
	producer, err := d.CreateQueue(abi.AMDGPU_HW_IP_GFX, gfxMQD())
	if err != nil {
		t.Fatalf("CreateQueue failed: %v", err)
	}
	defer producer.Free()
	consumer, err := d.CreateQueue(abi.AMDGPU_HW_IP_GFX, gfxMQD())
	if err != nil {
		t.Fatalf("CreateQueue failed: %v", err)
	}
	defer consumer.Free()

	const shared = 9
	if err := producer.Signal(SignalRequest{SyncObjs: []drm.SyncObj{5}, WriteBOs: []uint32{shared}}); err != nil {
		t.Fatalf("Signal failed: %v", err)
	}

	req := WaitRequest{QueueID: consumer.ID(), SyncObjs: []drm.SyncObj{5}, ReadBOs: []uint32{shared}}
	count, err := d.WaitCount(req)
	if err != nil {
		t.Fatalf("WaitCount failed: %v", err)
	}
	if count < 1 {
		t.Fatalf("WaitCount = %d, want at least 1", count)
	}

	before := f.Count(abi.DRM_IOCTL_AMDGPU_USERQ_WAIT)
	fences, err := consumer.Wait(req)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if len(fences) != count {
		t.Errorf("Wait returned %d fences, WaitCount reported %d", len(fences), count)
	}
	want := []FenceInfo{{VA: 0x100000 + uint64(producer.ID())*8, Value: 1}}
	if diff := cmp.Diff(want, fences); diff != "" {
		t.Errorf("fences mismatch (-want +got):\n%s", diff)
	}
	if n := f.Count(abi.DRM_IOCTL_AMDGPU_USERQ_WAIT) - before; n != 2 {
		t.Errorf("Wait issued %d ioctls, want 2", n)
	}
}

func TestWaitNothingPending(t *testing.T) {
	d, f := newFakeDevice(t)
	fences, err := d.Wait(WaitRequest{QueueID: 1, ReadBOs: []uint32{42}})
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if len(fences) != 0 {
		t.Errorf("Wait returned %v, want no fences", fences)
	}
	if n := f.Count(abi.DRM_IOCTL_AMDGPU_USERQ_WAIT); n != 1 {
		t.Errorf("Wait issued %d ioctls, want 1", n)
	}
}

func TestWaitTimelineMismatch(t *testing.T) {
	d, f := newFakeDevice(t)
	_, err := d.Wait(WaitRequest{TimelineSyncObjs: []drm.SyncObj{1, 2}, TimelinePoints: []uint64{10}})
	if !errors.Is(err, unix.EINVAL) {
		t.Errorf("Wait error = %v, want EINVAL", err)
	}
	if n := f.Count(abi.DRM_IOCTL_AMDGPU_USERQ_WAIT); n != 0 {
		t.Errorf("invalid request reached the kernel %d times", n)
	}
}

func TestSignalUnknownQueue(t *testing.T) {
	d, _ := newFakeDevice(t)
	q := &Queue{dev: d, id: 77, ip: abi.AMDGPU_HW_IP_GFX}
	if err := q.Signal(SignalRequest{WriteBOs: []uint32{1}}); !errors.Is(err, unix.ENOENT) {
		t.Errorf("Signal error = %v, want ENOENT", err)
	}
}
