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

// Package config provides basic infrastructure to set configuration settings
// for drmshim. The configuration is set by a TOML file and by flags, with
// flags taking precedence.
package config

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/drmshim/drmshim/pkg/amdgpu/asicid"
	"github.com/drmshim/drmshim/pkg/log"
)

// Config holds configuration that is shared by all drmshim commands.
type Config struct {
	// Device is the DRM node commands operate on when none is given on the
	// command line.
	Device string `toml:"device"`

	// SysRoot is where sysfs is mounted. Used to enumerate DRM nodes.
	SysRoot string `toml:"sys_root"`

	// ASICIDTable is the explicit path of the amdgpu.ids table.
	ASICIDTable string `toml:"asic_id_table"`

	// SearchRoot overrides the directory searched when ASICIDTable does not
	// exist. Empty means two levels above the executable.
	SearchRoot string `toml:"search_root"`

	// SearchDepth bounds the directory depth of the table search.
	SearchDepth int `toml:"search_depth"`

	// LogLevel is the minimum level that is logged.
	LogLevel log.Level `toml:"log_level"`

	// LogFormat is the log format, "text" or "json".
	LogFormat string `toml:"log_format"`

	// LogFilename is the file to which logs are written. Empty means stderr.
	LogFilename string `toml:"log_file"`

	// SyncObjTimeout bounds kernel sync object waits. Negative waits forever.
	SyncObjTimeout time.Duration `toml:"syncobj_timeout"`
}

// Default returns the configuration used when neither a file nor flags set
// a value.
func Default() *Config {
	return &Config{
		Device:         "/dev/dri/renderD128",
		SysRoot:        "/sys",
		ASICIDTable:    asicid.DefaultTablePath,
		SearchDepth:    asicid.DefaultSearchDepth,
		LogLevel:       log.Info,
		LogFormat:      "text",
		SyncObjTimeout: 5 * time.Second,
	}
}

// Load decodes the TOML file at path on top of Default.
func Load(path string) (*Config, error) {
	c := Default()
	if err := c.load(path); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) load(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("decoding config %q: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return fmt.Errorf("config %q: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// Validate checks that c is consistent.
func (c *Config) Validate() error {
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q, must be 'text' or 'json'", c.LogFormat)
	}
	if c.SearchDepth < 0 {
		return fmt.Errorf("invalid search depth %d, must not be negative", c.SearchDepth)
	}
	if c.LogLevel > log.Debug {
		return fmt.Errorf("invalid log level %d", c.LogLevel)
	}
	return nil
}

// ASICIDOptions returns the marketing name resolver options for c.
func (c *Config) ASICIDOptions() asicid.Options {
	return asicid.Options{
		TablePath:   c.ASICIDTable,
		SearchRoot:  c.SearchRoot,
		SearchDepth: c.SearchDepth,
	}
}

// RegisterFlags registers flags used to populate Config.
func RegisterFlags(f *flag.FlagSet) {
	d := Default()

	f.String("config", "", "path to a TOML configuration file. Flags override its values.")

	// Debugging flags.
	f.Bool("debug", false, "enable debug logging.")
	f.String("log-level", d.LogLevel.String(), "minimum log level: warning, info or debug.")
	f.String("log-format", d.LogFormat, "log format: text (default) or json.")
	f.String("log", "", "file path where logs are written. Defaults to stderr.")

	// Device flags.
	f.String("device", d.Device, "DRM device node to operate on.")
	f.String("sys-root", d.SysRoot, "sysfs mount point used to enumerate DRM nodes.")
	f.String("asic-id-table", d.ASICIDTable, "path of the amdgpu.ids table.")
	f.String("search-root", "", "directory searched for amdgpu.ids when -asic-id-table is missing.")
	f.Int("search-depth", d.SearchDepth, "maximum directory depth of the amdgpu.ids search.")
	f.Duration("syncobj-timeout", d.SyncObjTimeout, "timeout of kernel sync object waits. Negative waits forever.")
}

// NewFromFlags creates a new Config from the config file named by -config,
// with values of explicitly set flags taking precedence.
func NewFromFlags(f *flag.FlagSet) (*Config, error) {
	c := Default()
	if fl := f.Lookup("config"); fl != nil && fl.Value.String() != "" {
		if err := c.load(fl.Value.String()); err != nil {
			return nil, err
		}
	}

	var err error
	f.Visit(func(fl *flag.Flag) {
		if err == nil {
			err = c.set(fl.Name, fl.Value.String())
		}
	})
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// set overrides the field backing the flag name.
func (c *Config) set(name, value string) error {
	switch name {
	case "config":
	case "debug":
		debug, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid -debug value %q: %w", value, err)
		}
		if debug {
			c.LogLevel = log.Debug
		}
	case "log-level":
		if err := c.LogLevel.UnmarshalText([]byte(value)); err != nil {
			return err
		}
	case "log-format":
		c.LogFormat = value
	case "log":
		c.LogFilename = value
	case "device":
		c.Device = value
	case "sys-root":
		c.SysRoot = value
	case "asic-id-table":
		c.ASICIDTable = value
	case "search-root":
		c.SearchRoot = value
	case "search-depth":
		depth, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid -search-depth value %q: %w", value, err)
		}
		c.SearchDepth = depth
	case "syncobj-timeout":
		timeout, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid -syncobj-timeout value %q: %w", value, err)
		}
		c.SyncObjTimeout = timeout
	}
	return nil
}
