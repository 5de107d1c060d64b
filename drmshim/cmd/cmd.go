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

// Package cmd holds implementations of the drmshim commands.
package cmd

import (
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/drmshim/drmshim/drmshim/config"
)

// hexFlag is a uint32 flag given in hexadecimal, with or without a 0x
// prefix, as PCI ids are usually written.
type hexFlag struct {
	v   uint32
	set bool
}

// String implements flag.Value.
func (h *hexFlag) String() string {
	return fmt.Sprintf("%#x", h.v)
}

// Get implements flag.Getter.
func (h *hexFlag) Get() any {
	return h.v
}

// Set implements flag.Value.
func (h *hexFlag) Set(s string) error {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return fmt.Errorf("invalid hex value: %v", err)
	}
	h.v, h.set = uint32(v), true
	return nil
}

// devicePath returns the device node named on the command line, or the
// configured one.
func devicePath(conf *config.Config, f *flag.FlagSet) string {
	if f.NArg() > 0 {
		return f.Arg(0)
	}
	return conf.Device
}
