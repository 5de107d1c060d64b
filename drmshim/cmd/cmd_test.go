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

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unsafe"

	amdabi "github.com/drmshim/drmshim/pkg/abi/amdgpu"
	nvabi "github.com/drmshim/drmshim/pkg/abi/nvdrm"
	"github.com/drmshim/drmshim/pkg/amdgpu/asicid"
	"github.com/drmshim/drmshim/pkg/drm"
	"github.com/drmshim/drmshim/pkg/drm/drmtest"
	"github.com/google/go-cmp/cmp"
	"golang.org/x/sys/unix"
	"gopkg.in/yaml.v3"
)

func TestHexFlag(t *testing.T) {
	for _, tc := range []struct {
		in      string
		want    uint32
		wantErr bool
	}{
		{in: "744c", want: 0x744c},
		{in: "0x744C", want: 0x744c},
		{in: " c8 ", want: 0xc8},
		{in: "zz", wantErr: true},
		{in: "100000000", wantErr: true},
	} {
		var h hexFlag
		err := h.Set(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("Set(%q) succeeded, want error", tc.in)
			}
			continue
		}
		if err != nil || h.v != tc.want || !h.set {
			t.Errorf("Set(%q) = %v, value %#x, want %#x", tc.in, err, h.v, tc.want)
		}
	}
}

var testNodes = []drm.Node{
	{
		Name:     "card0",
		Kind:     drm.Primary,
		Driver:   "amdgpu",
		VendorID: drm.VendorAMD,
		DeviceID: 0x744c,
		Revision: 0xc8,
		Slot:     "0000:03:00.0",
	},
	{
		Name:     "renderD128",
		Kind:     drm.Render,
		VendorID: drm.VendorNVIDIA,
		DeviceID: 0x2684,
		Revision: 0xa1,
		Slot:     "0000:0a:00.0",
	},
}

func TestWriteNodes(t *testing.T) {
	var buf bytes.Buffer
	if err := writeNodes(&buf, testNodes); err != nil {
		t.Fatalf("writeNodes failed: %v", err)
	}
	want := strings.Join([]string{
		"NAME        KIND     DRIVER  VENDOR  DEVICE  REV  SLOT",
		"card0       primary  amdgpu  amd     744c    c8   0000:03:00.0",
		"renderD128  render   -       nvidia  2684    a1   0000:0a:00.0",
		"",
	}, "\n")
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("writeNodes output mismatch (-want +got):\n%s", diff)
	}
}

func TestFilterVendor(t *testing.T) {
	got := filterVendor(testNodes, drm.VendorNVIDIA)
	if diff := cmp.Diff(testNodes[1:], got); diff != "" {
		t.Errorf("filterVendor mismatch (-want +got):\n%s", diff)
	}
	if got := filterVendor(testNodes, 0x8086); len(got) != 0 {
		t.Errorf("filterVendor(8086) = %v, want none", got)
	}
}

func writeTable(t *testing.T) asicid.Options {
	t.Helper()
	path := filepath.Join(t.TempDir(), asicid.TableName)
	table := "# amdgpu.ids\n1.0.0\n744C,\tC8,\tAMD Radeon RX 7900 XTX\n"
	if err := os.WriteFile(path, []byte(table), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return asicid.Options{TablePath: path}
}

// newAMDGPU returns a fake amdgpu device. Unless extended is set it answers
// only the device info query.
func newAMDGPU(extended bool) *drm.Device {
	dev, k := drmtest.NewDevice("amdgpu")
	k.Handle(amdabi.DRM_IOCTL_AMDGPU_INFO, func(arg unsafe.Pointer) error {
		a := (*amdabi.Info)(arg)
		switch {
		case a.Query == amdabi.AMDGPU_INFO_DEV_INFO:
			drmtest.Slice[amdabi.DeviceInfo](a.ReturnPointer, 1)[0] = amdabi.DeviceInfo{
				DeviceID:         0x744c,
				PCIRev:           0xc8,
				Family:           amdabi.AMDGPU_FAMILY_GC_11_0_0,
				NumShaderEngines: 6,
				CUActiveNumber:   96,
				MaxEngineClock:   2500000,
				MaxMemoryClock:   1250000,
			}
		case extended && a.Query == amdabi.AMDGPU_INFO_HW_IP_INFO && a.Union[0] == amdabi.AMDGPU_HW_IP_GFX:
			drmtest.Slice[amdabi.HWIPInfo](a.ReturnPointer, 1)[0] = amdabi.HWIPInfo{
				HWIPVersionMajor: 11,
				AvailableRings:   0x3,
			}
		case extended && a.Query == amdabi.AMDGPU_INFO_FW_VERSION && a.Union[0] == amdabi.AMDGPU_INFO_FW_GFX_MEC:
			drmtest.Slice[amdabi.FirmwareInfo](a.ReturnPointer, 1)[0] = amdabi.FirmwareInfo{Ver: 0x1f0, Feature: 38}
		default:
			return unix.EINVAL
		}
		return nil
	})
	return dev
}

func TestCollectReportAMDGPU(t *testing.T) {
	base := AMDGPUReport{
		ASICID:        "744c:c8",
		MarketingName: "AMD Radeon RX 7900 XTX",
		Family:        amdabi.AMDGPU_FAMILY_GC_11_0_0,
		ShaderEngines: 6,
		ComputeUnits:  96,
		MaxEngineKHz:  2500000,
		MaxMemoryKHz:  1250000,
	}
	extended := base
	extended.GFXIPVersion = "11.0"
	extended.GFXRings = 2
	extended.MECFirmware = 0x1f0
	extended.MECFeature = 38

	for _, tc := range []struct {
		name     string
		extended bool
		want     AMDGPUReport
	}{
		// Failed HW IP and firmware queries leave their fields empty.
		{name: "device info only", want: base},
		{name: "extended", extended: true, want: extended},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r, err := collectReport(newAMDGPU(tc.extended), writeTable(t))
			if err != nil {
				t.Fatalf("collectReport failed: %v", err)
			}
			want := &Report{
				Driver: DriverReport{
					Name:    "amdgpu",
					Version: "1.0.0",
					Date:    "20260101",
					Desc:    "amdgpu fake",
				},
				AMDGPU: &tc.want,
			}
			if diff := cmp.Diff(want, r); diff != "" {
				t.Errorf("collectReport mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCollectReportMissingTable(t *testing.T) {
	opts := asicid.Options{
		TablePath:  filepath.Join(t.TempDir(), "missing", asicid.TableName),
		SearchRoot: t.TempDir(),
	}
	r, err := collectReport(newAMDGPU(false), opts)
	if err != nil {
		t.Fatalf("collectReport failed: %v", err)
	}
	if r.AMDGPU == nil || r.AMDGPU.MarketingName != "" {
		t.Errorf("collectReport = %+v, want an amdgpu section without a name", r.AMDGPU)
	}
}

func TestWriteTableVersion(t *testing.T) {
	found := writeTable(t)
	missing := asicid.Options{
		TablePath:  filepath.Join(t.TempDir(), "missing", asicid.TableName),
		SearchRoot: t.TempDir(),
	}
	for _, tc := range []struct {
		name string
		opts asicid.Options
		want string
	}{
		{name: "found", opts: found, want: "Table: " + found.TablePath + " version 1.0.0\n"},
		{name: "missing", opts: missing, want: "Table: none found\n"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := writeTableVersion(&buf, tc.opts); err != nil {
				t.Fatalf("writeTableVersion failed: %v", err)
			}
			if diff := cmp.Diff(tc.want, buf.String()); diff != "" {
				t.Errorf("output mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCollectReportNVIDIA(t *testing.T) {
	for _, fences := range []bool{false, true} {
		dev, k := drmtest.NewDevice(nvabi.DriverName)
		k.Handle(nvabi.DRM_IOCTL_NVIDIA_GET_DEV_INFO, func(arg unsafe.Pointer) error {
			a := (*nvabi.GetDevInfoParams)(arg)
			a.GPUID = 0x300
			a.PrimaryIndex = 1
			return nil
		})
		if fences {
			k.Handle(nvabi.DRM_IOCTL_NVIDIA_FENCE_SUPPORTED, func(unsafe.Pointer) error { return nil })
		}

		r, err := collectReport(dev, asicid.Options{})
		if err != nil {
			t.Fatalf("collectReport failed: %v", err)
		}
		want := &NVIDIAReport{GPUID: 0x300, PrimaryIndex: 1, FenceSupported: fences}
		if diff := cmp.Diff(want, r.NVIDIA); diff != "" {
			t.Errorf("fences %t: nvidia report mismatch (-want +got):\n%s", fences, diff)
		}
		if r.AMDGPU != nil {
			t.Errorf("fences %t: unexpected amdgpu section %+v", fences, r.AMDGPU)
		}
	}
}

func TestCollectReportOtherDriver(t *testing.T) {
	dev, _ := drmtest.NewDevice("i915")
	r, err := collectReport(dev, asicid.Options{})
	if err != nil {
		t.Fatalf("collectReport failed: %v", err)
	}
	if r.Driver.Name != "i915" || r.AMDGPU != nil || r.NVIDIA != nil {
		t.Errorf("collectReport = %+v, want only an i915 driver section", r)
	}
}

var testReport = &Report{
	Path: "/dev/dri/renderD128",
	Driver: DriverReport{
		Name:    "amdgpu",
		Version: "3.61.0",
		Date:    "20150101",
		Desc:    "AMD GPU",
	},
	AMDGPU: &AMDGPUReport{
		ASICID:        "744c:c8",
		MarketingName: "AMD Radeon RX 7900 XTX",
		Family:        145,
		ShaderEngines: 6,
		ComputeUnits:  96,
		MaxEngineKHz:  2500000,
		MaxMemoryKHz:  1250000,
		GFXIPVersion:  "11.0",
		GFXRings:      2,
		MECFirmware:   0x1f0,
		MECFeature:    38,
	},
}

func TestWriteReportText(t *testing.T) {
	var buf bytes.Buffer
	if err := writeReport(&buf, "text", testReport); err != nil {
		t.Fatalf("writeReport failed: %v", err)
	}
	want := `Device: /dev/dri/renderD128
Driver: amdgpu 3.61.0 (20150101) AMD GPU
ASIC: 744c:c8 AMD Radeon RX 7900 XTX
Family: 145
Shader engines: 6, compute units: 96
Max clocks: engine 2500000 kHz, memory 1250000 kHz
GFX IP: 11.0, rings: 2
MEC firmware: 0x1f0, feature 38
`
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("text report mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteReportStructured(t *testing.T) {
	for _, tc := range []struct {
		format    string
		unmarshal func([]byte, any) error
	}{
		{format: "yaml", unmarshal: yaml.Unmarshal},
		{format: "json", unmarshal: json.Unmarshal},
	} {
		t.Run(tc.format, func(t *testing.T) {
			var buf bytes.Buffer
			if err := writeReport(&buf, tc.format, testReport); err != nil {
				t.Fatalf("writeReport failed: %v", err)
			}
			if !strings.Contains(buf.String(), "marketing_name") || strings.Contains(buf.String(), "nvidia") {
				t.Errorf("unexpected keys in output:\n%s", buf.String())
			}
			var got Report
			if err := tc.unmarshal(buf.Bytes(), &got); err != nil {
				t.Fatalf("decoding output: %v\n%s", err, buf.String())
			}
			if diff := cmp.Diff(testReport, &got); diff != "" {
				t.Errorf("decoded report mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWriteReportInvalidFormat(t *testing.T) {
	if err := writeReport(&bytes.Buffer{}, "xml", testReport); err == nil {
		t.Errorf("writeReport(xml) succeeded, want error")
	}
}

func TestRoundTrip(t *testing.T) {
	dev, k := drmtest.NewDevice("amdgpu")
	objs := k.InstallSyncObjs()

	for i := 0; i < 3; i++ {
		if _, err := roundTrip(context.Background(), dev, 5*time.Second, time.Millisecond); err != nil {
			t.Fatalf("round %d: %v", i, err)
		}
	}
	if n := objs.Live(); n != 0 {
		t.Errorf("%d sync objects leaked", n)
	}
}

func TestRoundTripTimeout(t *testing.T) {
	dev, k := drmtest.NewDevice("amdgpu")
	objs := k.InstallSyncObjs()

	_, err := roundTrip(context.Background(), dev, 10*time.Millisecond, time.Minute)
	if !errors.Is(err, unix.ETIME) {
		t.Errorf("roundTrip = %v, want ETIME", err)
	}
	if n := objs.Live(); n != 0 {
		t.Errorf("%d sync objects leaked", n)
	}
}
