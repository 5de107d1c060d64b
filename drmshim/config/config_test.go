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

package config

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/drmshim/drmshim/pkg/log"
	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "drmshim.toml")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func newFlagSet(t *testing.T, args ...string) *flag.FlagSet {
	t.Helper()
	f := flag.NewFlagSet("drmshim", flag.ContinueOnError)
	RegisterFlags(f)
	if err := f.Parse(args); err != nil {
		t.Fatalf("Parse(%v) failed: %v", args, err)
	}
	return f
}

func TestDefault(t *testing.T) {
	c, err := NewFromFlags(newFlagSet(t))
	if err != nil {
		t.Fatalf("NewFromFlags failed: %v", err)
	}
	if diff := cmp.Diff(Default(), c); diff != "" {
		t.Errorf("config without flags differs from Default (-want +got):\n%s", diff)
	}
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
device = "/dev/dri/renderD129"
asic_id_table = "/opt/amdgpu.ids"
search_root = "/opt"
search_depth = 2
log_level = "debug"
log_format = "json"
syncobj_timeout = "250ms"
`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := Default()
	want.Device = "/dev/dri/renderD129"
	want.ASICIDTable = "/opt/amdgpu.ids"
	want.SearchRoot = "/opt"
	want.SearchDepth = 2
	want.LogLevel = log.Debug
	want.LogFormat = "json"
	want.SyncObjTimeout = 250 * time.Millisecond
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("Load mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadUnknownKey(t *testing.T) {
	path := writeConfig(t, "devcie = \"/dev/dri/card0\"\n")
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "devcie") {
		t.Errorf("Load = %v, want unknown key error naming devcie", err)
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Errorf("Load(missing) succeeded, want error")
	}
}

func TestFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, `
device = "/dev/dri/renderD129"
search_depth = 2
log_format = "json"
`)
	c, err := NewFromFlags(newFlagSet(t,
		"-config", path,
		"-search-depth", "7",
		"-syncobj-timeout", "-1s",
		"-debug"))
	if err != nil {
		t.Fatalf("NewFromFlags failed: %v", err)
	}
	want := Default()
	want.Device = "/dev/dri/renderD129" // From the file.
	want.SearchDepth = 7
	want.LogFormat = "json"
	want.LogLevel = log.Debug
	want.SyncObjTimeout = -time.Second
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("NewFromFlags mismatch (-want +got):\n%s", diff)
	}
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name string
		args []string
	}{
		{name: "log format", args: []string{"-log-format", "xml"}},
		{name: "search depth", args: []string{"-search-depth", "-1"}},
		{name: "log level", args: []string{"-log-level", "verbose"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewFromFlags(newFlagSet(t, tc.args...)); err == nil {
				t.Errorf("NewFromFlags(%v) succeeded, want error", tc.args)
			}
		})
	}
}

func TestASICIDOptions(t *testing.T) {
	c := Default()
	c.SearchRoot = "/opt/rocm"
	opts := c.ASICIDOptions()
	if opts.TablePath != c.ASICIDTable || opts.SearchRoot != "/opt/rocm" || opts.SearchDepth != c.SearchDepth {
		t.Errorf("ASICIDOptions() = %+v, want values from %+v", opts, c)
	}
}
