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

package asicid

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/drmshim/drmshim/pkg/log"
)

// maxLineLen bounds a single table line.
const maxLineLen = 1 << 20

// ParseError describes a malformed row.
type ParseError struct {
	Path string
	// Line is the 1-based line number within the file.
	Line int
	Text string
}

// Error implements error.Error.
func (e *ParseError) Error() string {
	return fmt.Sprintf("%v: %s: line %d: %s", ErrInvalidFormat, e.Path, e.Line, e.Text)
}

// Unwrap makes errors.Is(err, ErrInvalidFormat) hold.
func (e *ParseError) Unwrap() error {
	return ErrInvalidFormat
}

// Parse scans a table read from r for id. path is used in diagnostics only.
func Parse(r io.Reader, path string, id ID) (name string, ok bool, err error) {
	s := scanner{path: path, logger: log.Log()}
	return s.find(r, id)
}

type scanner struct {
	path   string
	logger log.Logger
}

// lines calls fn for every line of r that is neither blank nor a comment,
// with its 1-based line number, until fn returns false.
func (s *scanner) lines(r io.Reader, fn func(lineno int, line string) (bool, error)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(nil, maxLineLen)
	lineno := 0
	for sc.Scan() {
		lineno++
		line := sc.Text()
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		more, err := fn(lineno, line)
		if err != nil || !more {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", s.path, err)
	}
	return nil
}

func (s *scanner) version(r io.Reader) (string, error) {
	var version string
	err := s.lines(r, func(_ int, line string) (bool, error) {
		version = line
		return false, nil
	})
	return version, err
}

func (s *scanner) find(r io.Reader, id ID) (string, bool, error) {
	var (
		seenVersion bool
		name        string
		found       bool
	)
	err := s.lines(r, func(lineno int, line string) (bool, error) {
		if !seenVersion {
			seenVersion = true
			s.logger.Debugf("%s version: %s", s.path, line)
			return true, nil
		}
		row, ok := parseRow(line)
		if !ok {
			return false, &ParseError{Path: s.path, Line: lineno, Text: line}
		}
		if row.id == id {
			name, found = row.name, true
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return "", false, err
	}
	return name, found, nil
}

type row struct {
	id   ID
	name string
}

// parseRow parses "device_id,revision_id,marketing_name". The name is the
// third comma-separated field with leading blanks removed; it must not be
// empty.
func parseRow(line string) (row, bool) {
	fields := strings.Split(line, ",")
	if len(fields) < 3 {
		return row{}, false
	}
	did, ok := parseHex(fields[0])
	if !ok {
		return row{}, false
	}
	rid, ok := parseHex(fields[1])
	if !ok {
		return row{}, false
	}
	name := strings.TrimLeft(fields[2], " \t")
	if len(name) == 0 {
		return row{}, false
	}
	return row{id: ID{DeviceID: did, RevisionID: rid}, name: name}, true
}

func parseHex(s string) (uint32, bool) {
	s = strings.TrimLeft(s, " \t")
	if len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, false
	}
	return uint32(v), true
}
