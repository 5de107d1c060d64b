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
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/drmshim/drmshim/pkg/log"
)

// errFound stops the walk at the first match.
var errFound = errors.New("found")

// Locate finds the table: opts.TablePath if it exists, otherwise the first
// regular file whose name contains TableName below the search root.
// Symbolic links are not followed during the search.
//
// If neither yields a file, Locate returns ErrTableNotFound.
func Locate(opts Options) (*Table, error) {
	logger := opts.logger()
	path := opts.TablePath
	if path == "" {
		path = DefaultTablePath
	}
	if fi, err := os.Stat(path); err == nil && !fi.IsDir() {
		return &Table{path: path, logger: logger}, nil
	}

	root := opts.SearchRoot
	if root == "" {
		root = executableRoot()
	}
	if root == "" || root == "/" {
		return nil, ErrTableNotFound
	}
	depth := opts.SearchDepth
	if depth <= 0 {
		depth = DefaultSearchDepth
	}

	found, err := search(root, depth, log.RateLimitedLogger(logger, time.Second))
	if err != nil {
		return nil, err
	}
	if found == "" {
		return nil, ErrTableNotFound
	}
	logger.Debugf("found %s at %s", TableName, found)
	return &Table{path: found, logger: logger}, nil
}

// search walks root, at most depth directories deep, for the table.
// Unreadable directories are skipped.
func search(root string, depth int, logger log.Logger) (string, error) {
	var found string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				// A missing root is the same as an empty one.
				return fs.SkipAll
			}
			logger.Warningf("skipping %s: %v", path, err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != root && level(root, path) > depth {
				return fs.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && strings.Contains(d.Name(), TableName) {
			found = path
			return errFound
		}
		return nil
	})
	if err != nil && err != errFound {
		return "", err
	}
	return found, nil
}

// level returns how many components path has below root.
func level(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}

// executableRoot returns the running executable's path with its last two
// components removed, or "" if the executable cannot be resolved.
func executableRoot() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(filepath.Dir(exe))
}
