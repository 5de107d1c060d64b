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
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/drmshim/drmshim/drmshim/cmd/util"
	"github.com/drmshim/drmshim/drmshim/config"
	"github.com/drmshim/drmshim/pkg/drm"
	"github.com/google/subcommands"
)

// List implements subcommands.Command for the "list" command.
type List struct {
	vendor hexFlag
}

// Name implements subcommands.Command.Name.
func (*List) Name() string {
	return "list"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*List) Synopsis() string {
	return "list DRM device nodes and their drivers"
}

// Usage implements subcommands.Command.Usage.
func (*List) Usage() string {
	return `list [flags] - list DRM device nodes found in sysfs.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (l *List) SetFlags(f *flag.FlagSet) {
	f.Var(&l.vendor, "vendor", "only list nodes of this PCI vendor id, e.g. 1002.")
}

// Execute implements subcommands.Command.Execute.
func (l *List) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)

	nodes, err := drm.ListNodes(conf.SysRoot)
	if err != nil {
		util.Fatalf("listing DRM nodes: %v", err)
	}
	if l.vendor.set {
		nodes = filterVendor(nodes, l.vendor.v)
	}
	if err := writeNodes(os.Stdout, nodes); err != nil {
		util.Fatalf("writing node list: %v", err)
	}
	return subcommands.ExitSuccess
}

func filterVendor(nodes []drm.Node, vendor uint32) []drm.Node {
	var out []drm.Node
	for _, n := range nodes {
		if n.VendorID == vendor {
			out = append(out, n)
		}
	}
	return out
}

// writeNodes writes nodes as a table.
func writeNodes(w io.Writer, nodes []drm.Node) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprint(tw, "NAME\tKIND\tDRIVER\tVENDOR\tDEVICE\tREV\tSLOT\n")
	for _, n := range nodes {
		driver := n.Driver
		if driver == "" {
			driver = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%04x\t%02x\t%s\n",
			n.Name, n.Kind, driver, vendorName(n.VendorID), n.DeviceID, n.Revision, n.Slot)
	}
	return tw.Flush()
}

func vendorName(id uint32) string {
	switch id {
	case drm.VendorAMD:
		return "amd"
	case drm.VendorNVIDIA:
		return "nvidia"
	case 0:
		return "-"
	default:
		return fmt.Sprintf("%04x", id)
	}
}
