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
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Vendor ids of the PCI devices drivers in this module talk to.
const (
	VendorAMD    = 0x1002
	VendorNVIDIA = 0x10de
)

// NodeKind distinguishes DRM minor types.
type NodeKind int

const (
	// Primary nodes (cardN) allow modesetting.
	Primary NodeKind = iota

	// Render nodes (renderDN) only allow rendering and compute.
	Render
)

// String implements fmt.Stringer.
func (k NodeKind) String() string {
	switch k {
	case Primary:
		return "primary"
	case Render:
		return "render"
	default:
		return fmt.Sprintf("NodeKind(%d)", int(k))
	}
}

// Node is a DRM device node found in sysfs.
type Node struct {
	// Name is the node name, e.g. "renderD128".
	Name string
	Kind NodeKind

	// Driver is the kernel driver bound to the parent device, if known.
	Driver string

	// PCI identity of the parent device. Zero for non-PCI devices.
	VendorID uint32
	DeviceID uint32
	Revision uint32
	Slot     string
}

// DevPath returns the /dev path of the node.
func (n Node) DevPath() string {
	return filepath.Join("/dev/dri", n.Name)
}

// ListNodes enumerates the DRM nodes under sysRoot/class/drm, ordered by
// name. sysRoot is normally "/sys". Connector entries (card0-DP-1) and the
// version file are skipped.
func ListNodes(sysRoot string) ([]Node, error) {
	base := filepath.Join(sysRoot, "class", "drm")
	entries, err := os.ReadDir(base)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", base, err)
	}

	var nodes []Node
	for _, e := range entries {
		name := e.Name()
		kind, ok := nodeKind(name)
		if !ok {
			continue
		}
		dev := filepath.Join(base, name, "device")
		n := Node{
			Name:     name,
			Kind:     kind,
			Driver:   linkBase(filepath.Join(dev, "driver")),
			VendorID: readHex(filepath.Join(dev, "vendor")),
			DeviceID: readHex(filepath.Join(dev, "device")),
			Revision: readHex(filepath.Join(dev, "revision")),
		}
		if n.VendorID != 0 {
			n.Slot = linkBase(dev)
		}
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].Name < nodes[j].Name
	})
	return nodes, nil
}

func nodeKind(name string) (NodeKind, bool) {
	var (
		kind   NodeKind
		suffix string
	)
	switch {
	case strings.HasPrefix(name, "renderD"):
		kind, suffix = Render, strings.TrimPrefix(name, "renderD")
	case strings.HasPrefix(name, "card"):
		kind, suffix = Primary, strings.TrimPrefix(name, "card")
	default:
		return 0, false
	}
	if _, err := strconv.ParseUint(suffix, 10, 32); err != nil {
		return 0, false
	}
	return kind, true
}

// readHex reads a sysfs attribute such as "0x1002\n". Missing or malformed
// attributes read as 0.
func readHex(path string) uint32 {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	s := strings.TrimPrefix(strings.TrimSpace(string(b)), "0x")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0
	}
	return uint32(v)
}

// linkBase returns the last component of the symlink target at path, or ""
// if path is not a symlink.
func linkBase(path string) string {
	target, err := os.Readlink(path)
	if err != nil {
		return ""
	}
	return filepath.Base(target)
}
