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
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/drmshim/drmshim/drmshim/cmd/util"
	"github.com/drmshim/drmshim/drmshim/config"
	"github.com/drmshim/drmshim/pkg/amdgpu"
	"github.com/drmshim/drmshim/pkg/amdgpu/asicid"
	"github.com/google/subcommands"
)

// ASICName implements subcommands.Command for the "asic-name" command.
type ASICName struct {
	did          hexFlag
	rid          hexFlag
	tableVersion bool
}

// Name implements subcommands.Command.Name.
func (*ASICName) Name() string {
	return "asic-name"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*ASICName) Synopsis() string {
	return "resolve the marketing name of an AMD GPU"
}

// Usage implements subcommands.Command.Usage.
func (*ASICName) Usage() string {
	return `asic-name [flags] [device] - resolve the marketing name of an AMD GPU.

The device and revision ids are read from the amdgpu device, or given with
-did and -rid. The name is looked up in the amdgpu.ids table.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (a *ASICName) SetFlags(f *flag.FlagSet) {
	f.Var(&a.did, "did", "PCI device id in hex. Requires -rid.")
	f.Var(&a.rid, "rid", "PCI revision id in hex. Requires -did.")
	f.BoolVar(&a.tableVersion, "table-version", false, "also print the version of the table used.")
}

// Execute implements subcommands.Command.Execute.
func (a *ASICName) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() > 1 || a.did.set != a.rid.set || (a.did.set && f.NArg() > 0) {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)
	opts := conf.ASICIDOptions()

	id := asicid.ID{DeviceID: a.did.v, RevisionID: a.rid.v}
	if !a.did.set {
		var err error
		if id, err = deviceASICID(devicePath(conf, f)); err != nil {
			util.Fatalf("%v", err)
		}
	}

	if a.tableVersion {
		if err := writeTableVersion(os.Stdout, opts); err != nil {
			util.Fatalf("%v", err)
		}
	}

	name, err := asicid.Resolve(opts, id)
	if err != nil {
		util.Fatalf("resolving %s: %v", id, err)
	}
	if name == "" {
		util.Writef("%s: no marketing name found", id)
		return subcommands.ExitFailure
	}
	fmt.Println(name)
	return subcommands.ExitSuccess
}

// writeTableVersion writes the path and version of the table selected by
// opts. A missing table is reported, not an error: Resolve handles it.
func writeTableVersion(w io.Writer, opts asicid.Options) error {
	t, err := asicid.Locate(opts)
	if errors.Is(err, asicid.ErrTableNotFound) {
		_, err = fmt.Fprintln(w, "Table: none found")
		return err
	}
	if err != nil {
		return fmt.Errorf("locating table: %w", err)
	}
	v, err := t.Version()
	if err != nil {
		return fmt.Errorf("reading %s: %w", t.Path(), err)
	}
	_, err = fmt.Fprintf(w, "Table: %s version %s\n", t.Path(), v)
	return err
}

func deviceASICID(path string) (asicid.ID, error) {
	d, err := amdgpu.Open(path)
	if err != nil {
		return asicid.ID{}, err
	}
	defer d.Close()
	return d.ASICID(), nil
}
