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

// Package asicid resolves AMD GPU marketing names from the amdgpu.ids table
// shipped with libdrm.
//
// The table is a text file. Lines starting with '#' and blank lines are
// ignored. The first remaining line is the table version. Every following
// line is a row:
//
//	device_id,revision_id,marketing_name
//
// with both ids in hexadecimal.
package asicid

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/drmshim/drmshim/pkg/log"
)

// DefaultTablePath is where libdrm installs the table.
const DefaultTablePath = "/usr/share/libdrm/amdgpu.ids"

// TableName is the name searched for when the table is not at its default
// location.
const TableName = "amdgpu.ids"

// DefaultSearchDepth bounds the directory walk below the search root.
const DefaultSearchDepth = 5

var (
	// ErrTableNotFound is returned when no table exists at the configured
	// path or below the search root. It wraps fs.ErrNotExist.
	ErrTableNotFound = fmt.Errorf("%s: %w", TableName, fs.ErrNotExist)

	// ErrInvalidFormat is matched by every *ParseError.
	ErrInvalidFormat = errors.New("invalid format")
)

// ID identifies an ASIC by PCI device id and revision.
type ID struct {
	DeviceID   uint32
	RevisionID uint32
}

// String implements fmt.Stringer.
func (id ID) String() string {
	return fmt.Sprintf("%04x:%02x", id.DeviceID, id.RevisionID)
}

// Options control where the table is looked for.
type Options struct {
	// TablePath is tried first. Defaults to DefaultTablePath.
	TablePath string

	// SearchRoot is walked when TablePath does not exist. If empty, the
	// root is derived from the running executable by stripping its last two
	// path components, so /opt/app/bin/tool searches /opt/app.
	SearchRoot string

	// SearchDepth limits how many directories deep the walk descends.
	// Defaults to DefaultSearchDepth.
	SearchDepth int

	// Logger receives diagnostics. Defaults to the global logger.
	Logger log.Logger
}

func (o Options) logger() log.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return log.Log()
}

// Table is a located amdgpu.ids file.
//
// A Table holds only the path. Every lookup re-reads the file, so edits to
// the file are visible to subsequent lookups.
type Table struct {
	path   string
	logger log.Logger
}

// NewTable returns a Table for the file at path without checking it exists.
func NewTable(path string) *Table {
	return &Table{path: path, logger: log.Log()}
}

// Path returns the location of the table.
func (t *Table) Path() string {
	return t.path
}

// Lookup returns the marketing name of id.
//
// ok is false, with a nil error, if the table has no row for id. A malformed
// row before the matching one aborts the scan with a *ParseError.
func (t *Table) Lookup(id ID) (name string, ok bool, err error) {
	f, err := os.Open(t.path)
	if err != nil {
		return "", false, err
	}
	defer f.Close()

	s := scanner{path: t.path, logger: t.logger}
	return s.find(f, id)
}

// Version returns the version line of the table.
func (t *Table) Version() (string, error) {
	f, err := os.Open(t.path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	s := scanner{path: t.path, logger: t.logger}
	return s.version(f)
}

// Resolve looks id up in the table located by opts.
//
// A missing table is not an error: it is logged and an empty name is
// returned, leaving the device nameless. An id absent from the table also
// yields an empty name. Malformed rows are returned as errors.
func Resolve(opts Options, id ID) (string, error) {
	t, err := Locate(opts)
	if errors.Is(err, ErrTableNotFound) {
		opts.logger().Warningf("%s: No such file or directory", TableName)
		return "", nil
	}
	if err != nil {
		return "", err
	}
	name, _, err := t.Lookup(id)
	if err != nil {
		return "", err
	}
	return name, nil
}
