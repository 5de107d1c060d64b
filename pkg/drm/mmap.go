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
	"sync"

	"golang.org/x/sys/unix"
)

// Mapping is a shared mapping of a region of a device file, such as a buffer
// object or a doorbell page.
type Mapping struct {
	mu sync.Mutex
	b  []byte
}

// Map maps length bytes of the device file at offset, read-write and shared.
// offset is usually a fake offset handed out by a driver map ioctl.
func (d *Device) Map(offset int64, length int) (*Mapping, error) {
	if d.fd == nil {
		return nil, fmt.Errorf("mapping device without host descriptor: %w", unix.ENODEV)
	}
	b, err := unix.Mmap(d.fd.FD(), offset, length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap offset %#x length %#x: %w", offset, length, err)
	}
	return &Mapping{b: b}, nil
}

// Bytes returns the mapped memory. It is nil after Unmap.
func (m *Mapping) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.b
}

// Unmap releases the mapping. Unmapping twice returns unix.EINVAL.
func (m *Mapping) Unmap() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.b == nil {
		return unix.EINVAL
	}
	err := unix.Munmap(m.b)
	m.b = nil
	return err
}
