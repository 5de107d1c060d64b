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
	"fmt"
	"unsafe"

	abi "github.com/drmshim/drmshim/pkg/abi/drm"
)

// VersionInfo describes the kernel driver bound to a device.
type VersionInfo struct {
	Major      int32
	Minor      int32
	Patchlevel int32
	Name       string
	Date       string
	Desc       string
}

// String implements fmt.Stringer.
func (v VersionInfo) String() string {
	return fmt.Sprintf("%s %d.%d.%d (%s)", v.Name, v.Major, v.Minor, v.Patchlevel, v.Date)
}

// versionArgs keeps the string buffers next to the argument so all of them
// live as long as the call.
type versionArgs struct {
	v    abi.Version
	name []byte
	date []byte
	desc []byte
}

// Version returns the driver version of d.
//
// DRM_IOCTL_VERSION is issued twice: once to learn the string lengths, and
// once with buffers of those lengths.
func (d *Device) Version() (VersionInfo, error) {
	args := &versionArgs{}
	if err := d.Ioctl(abi.DRM_IOCTL_VERSION, unsafe.Pointer(&args.v)); err != nil {
		return VersionInfo{}, fmt.Errorf("querying driver version lengths: %w", err)
	}

	args.name = make([]byte, args.v.NameLen)
	args.date = make([]byte, args.v.DateLen)
	args.desc = make([]byte, args.v.DescLen)

	var pins Pins
	defer pins.Unpin()
	args.v.Name = SliceAddr(&pins, args.name)
	args.v.Date = SliceAddr(&pins, args.date)
	args.v.Desc = SliceAddr(&pins, args.desc)
	if err := d.Ioctl(abi.DRM_IOCTL_VERSION, unsafe.Pointer(&args.v)); err != nil {
		return VersionInfo{}, fmt.Errorf("querying driver version: %w", err)
	}

	return VersionInfo{
		Major:      args.v.Major,
		Minor:      args.v.Minor,
		Patchlevel: args.v.Patchlevel,
		Name:       truncate(args.name, args.v.NameLen),
		Date:       truncate(args.date, args.v.DateLen),
		Desc:       truncate(args.desc, args.v.DescLen),
	}, nil
}

// DriverName returns the name of the kernel driver bound to d.
func (d *Device) DriverName() (string, error) {
	v, err := d.Version()
	if err != nil {
		return "", err
	}
	return v.Name, nil
}

// truncate returns buf as a string, cut to n bytes in case the string shrank
// between the two calls.
func truncate(buf []byte, n uint64) string {
	if n < uint64(len(buf)) {
		buf = buf[:n]
	}
	return string(buf)
}
