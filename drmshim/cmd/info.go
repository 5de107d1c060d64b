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
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/bits"
	"os"

	"github.com/drmshim/drmshim/drmshim/cmd/util"
	"github.com/drmshim/drmshim/drmshim/config"
	abi "github.com/drmshim/drmshim/pkg/abi/amdgpu"
	"github.com/drmshim/drmshim/pkg/amdgpu"
	"github.com/drmshim/drmshim/pkg/amdgpu/asicid"
	"github.com/drmshim/drmshim/pkg/drm"
	"github.com/drmshim/drmshim/pkg/log"
	"github.com/drmshim/drmshim/pkg/nvdrm"
	"github.com/google/subcommands"
	"gopkg.in/yaml.v3"
)

// Info implements subcommands.Command for the "info" command.
type Info struct {
	format string
}

// Name implements subcommands.Command.Name.
func (*Info) Name() string {
	return "info"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Info) Synopsis() string {
	return "print driver and GPU information of a DRM device"
}

// Usage implements subcommands.Command.Usage.
func (*Info) Usage() string {
	return `info [flags] [device] - print driver and GPU information.

If device is omitted, the configured device is used.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (i *Info) SetFlags(f *flag.FlagSet) {
	f.StringVar(&i.format, "format", "text", "output format: text, yaml or json.")
}

// Execute implements subcommands.Command.Execute.
func (i *Info) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() > 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)
	path := devicePath(conf, f)

	dev, err := drm.Open(path)
	if err != nil {
		util.Fatalf("%v", err)
	}
	defer dev.Close()

	r, err := collectReport(dev, conf.ASICIDOptions())
	if err != nil {
		util.Fatalf("%s: %v", path, err)
	}
	if err := writeReport(os.Stdout, i.format, r); err != nil {
		util.Fatalf("%v", err)
	}
	return subcommands.ExitSuccess
}

// Report describes a DRM device.
type Report struct {
	Path   string        `json:"path" yaml:"path"`
	Driver DriverReport  `json:"driver" yaml:"driver"`
	AMDGPU *AMDGPUReport `json:"amdgpu,omitempty" yaml:"amdgpu,omitempty"`
	NVIDIA *NVIDIAReport `json:"nvidia,omitempty" yaml:"nvidia,omitempty"`
}

// DriverReport is the kernel driver version.
type DriverReport struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
	Date    string `json:"date" yaml:"date"`
	Desc    string `json:"desc" yaml:"desc"`
}

// AMDGPUReport is the amdgpu device information.
type AMDGPUReport struct {
	ASICID        string `json:"asic_id" yaml:"asic_id"`
	MarketingName string `json:"marketing_name,omitempty" yaml:"marketing_name,omitempty"`
	Family        uint32 `json:"family" yaml:"family"`
	ShaderEngines uint32 `json:"shader_engines" yaml:"shader_engines"`
	ComputeUnits  uint32 `json:"compute_units" yaml:"compute_units"`
	MaxEngineKHz  uint64 `json:"max_engine_clock_khz" yaml:"max_engine_clock_khz"`
	MaxMemoryKHz  uint64 `json:"max_memory_clock_khz" yaml:"max_memory_clock_khz"`

	// Left empty if the kernel does not answer the query.
	GFXIPVersion string `json:"gfx_ip_version,omitempty" yaml:"gfx_ip_version,omitempty"`
	GFXRings     int    `json:"gfx_rings,omitempty" yaml:"gfx_rings,omitempty"`
	MECFirmware  uint32 `json:"mec_firmware,omitempty" yaml:"mec_firmware,omitempty"`
	MECFeature   uint32 `json:"mec_feature,omitempty" yaml:"mec_feature,omitempty"`
}

// NVIDIAReport is the nvidia-drm device information.
type NVIDIAReport struct {
	GPUID          uint32 `json:"gpu_id" yaml:"gpu_id"`
	PrimaryIndex   uint32 `json:"primary_index" yaml:"primary_index"`
	FenceSupported bool   `json:"fence_supported" yaml:"fence_supported"`
}

// collectReport queries dev. Driver specific sections are filled for amdgpu
// and nvidia-drm devices.
func collectReport(dev *drm.Device, opts asicid.Options) (*Report, error) {
	v, err := dev.Version()
	if err != nil {
		return nil, err
	}
	r := &Report{
		Path: dev.Path(),
		Driver: DriverReport{
			Name:    v.Name,
			Version: fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patchlevel),
			Date:    v.Date,
			Desc:    v.Desc,
		},
	}

	switch v.Name {
	case amdgpu.DriverName:
		d, err := amdgpu.Initialize(dev)
		if err != nil {
			return nil, err
		}
		info := d.Info()
		r.AMDGPU = &AMDGPUReport{
			ASICID:        d.ASICID().String(),
			Family:        info.Family,
			ShaderEngines: info.NumShaderEngines,
			ComputeUnits:  info.CUActiveNumber,
			MaxEngineKHz:  info.MaxEngineClock,
			MaxMemoryKHz:  info.MaxMemoryClock,
		}
		name, err := d.MarketingName(opts)
		if err != nil {
			// The rest of the report is still useful.
			log.Warningf("Resolving marketing name of %s: %v", d.ASICID(), err)
		}
		r.AMDGPU.MarketingName = name
		if hw, err := d.HWIPInfo(abi.AMDGPU_HW_IP_GFX, 0); err != nil {
			log.Warningf("Querying GFX IP of %s: %v", d.ASICID(), err)
		} else {
			r.AMDGPU.GFXIPVersion = fmt.Sprintf("%d.%d", hw.HWIPVersionMajor, hw.HWIPVersionMinor)
			r.AMDGPU.GFXRings = bits.OnesCount32(hw.AvailableRings)
		}
		if fw, err := d.FirmwareVersion(abi.AMDGPU_INFO_FW_GFX_MEC, 0, 0); err != nil {
			log.Warningf("Querying MEC firmware of %s: %v", d.ASICID(), err)
		} else {
			r.AMDGPU.MECFirmware = fw.Ver
			r.AMDGPU.MECFeature = fw.Feature
		}

	case nvdrm.DriverName:
		d, err := nvdrm.New(dev)
		if err != nil {
			return nil, err
		}
		info, err := d.DevInfo()
		if err != nil {
			return nil, err
		}
		r.NVIDIA = &NVIDIAReport{
			GPUID:          info.GPUID,
			PrimaryIndex:   info.PrimaryIndex,
			FenceSupported: d.FenceSupported() == nil,
		}
	}
	return r, nil
}

// writeReport writes r to w in the given format.
func writeReport(w io.Writer, format string, r *Report) error {
	switch format {
	case "text":
		return writeReportText(w, r)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		b, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", b)
		return err
	default:
		return errors.New("invalid output format, must be 'text', 'yaml' or 'json'")
	}
}

func writeReportText(w io.Writer, r *Report) error {
	var err error
	printf := func(format string, args ...any) {
		if err == nil {
			_, err = fmt.Fprintf(w, format, args...)
		}
	}
	printf("Device: %s\n", r.Path)
	printf("Driver: %s %s (%s) %s\n", r.Driver.Name, r.Driver.Version, r.Driver.Date, r.Driver.Desc)
	if a := r.AMDGPU; a != nil {
		name := a.MarketingName
		if name == "" {
			name = "unknown"
		}
		printf("ASIC: %s %s\n", a.ASICID, name)
		printf("Family: %d\n", a.Family)
		printf("Shader engines: %d, compute units: %d\n", a.ShaderEngines, a.ComputeUnits)
		printf("Max clocks: engine %d kHz, memory %d kHz\n", a.MaxEngineKHz, a.MaxMemoryKHz)
		if a.GFXIPVersion != "" {
			printf("GFX IP: %s, rings: %d\n", a.GFXIPVersion, a.GFXRings)
		}
		if a.MECFirmware != 0 {
			printf("MEC firmware: %#x, feature %d\n", a.MECFirmware, a.MECFeature)
		}
	}
	if n := r.NVIDIA; n != nil {
		printf("GPU ID: %#x\n", n.GPUID)
		printf("Primary node: card%d\n", n.PrimaryIndex)
		printf("Fences: %t\n", n.FenceSupported)
	}
	return err
}
