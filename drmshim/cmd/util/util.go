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

// Package util groups helpers shared by drmshim commands.
package util

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/drmshim/drmshim/pkg/log"
)

// ErrorLogger is where error messages should be written to. These messages
// are consumed by the caller of drmshim, so they are kept in JSON.
var ErrorLogger io.Writer

// jsonError is what is written to the error log.
type jsonError struct {
	Msg   string    `json:"msg"`
	Level string    `json:"level"`
	Time  time.Time `json:"time"`
}

// Writef writes a message to stderr.
func Writef(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

// Errorf logs error to stderr and to ErrorLogger, and returns it.
func Errorf(format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	log.Warningf("FATAL ERROR: %v", err)
	Writef("drmshim: %v", err)
	if ErrorLogger != nil {
		_ = json.NewEncoder(ErrorLogger).Encode(jsonError{
			Msg:   err.Error(),
			Level: "error",
			Time:  time.Now(),
		})
	}
	return err
}

// Fatalf logs the same way as Errorf and exits with status 128, a status
// unlikely to be confused with a device error.
func Fatalf(format string, args ...any) {
	_ = Errorf(format, args...)
	os.Exit(128)
}
