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

// Package cli is the main entrypoint for drmshim.
package cli

import (
	"context"
	"flag"
	"io"
	"os"
	"runtime"

	"github.com/drmshim/drmshim/drmshim/cmd"
	"github.com/drmshim/drmshim/drmshim/cmd/util"
	"github.com/drmshim/drmshim/drmshim/config"
	"github.com/drmshim/drmshim/pkg/log"
	"github.com/google/subcommands"
)

// Main is the main entrypoint.
func Main() {
	// Register all commands.
	forEachCmd(subcommands.Register)

	// Register with the main command line.
	config.RegisterFlags(flag.CommandLine)

	// All subcommands must be registered before flag parsing.
	flag.Parse()

	// Create a new Config from the flags.
	conf, err := config.NewFromFlags(flag.CommandLine)
	if err != nil {
		util.Fatalf("%v", err)
	}

	var logFile io.Writer = os.Stderr
	if conf.LogFilename != "" {
		// O_APPEND, so that logs of consecutive commands are kept.
		f, err := log.OpenFile(conf.LogFilename)
		if err != nil {
			util.Fatalf("error opening log file %q: %v", conf.LogFilename, err)
		}
		logFile = f
		util.ErrorLogger = f
	}
	log.SetTarget(newEmitter(conf.LogFormat, logFile))
	log.SetLevel(conf.LogLevel)

	log.Debugf("drmshim %s, %s, PID %d, UID %d", runtime.Version(), runtime.GOARCH, os.Getpid(), os.Getuid())
	log.Debugf("Args: %v", os.Args)
	log.Debugf("Config: %+v", *conf)

	// Call the subcommand and pass in the configuration.
	status := subcommands.Execute(context.Background(), conf)
	if status != subcommands.ExitSuccess {
		log.Debugf("Exiting with status: %v", status)
	}
	os.Exit(int(status))
}

// forEachCmd invokes the passed callback for each command supported by
// drmshim.
func forEachCmd(cb func(cmd subcommands.Command, group string)) {
	// Help and flags commands are generated automatically.
	cb(subcommands.HelpCommand(), "")
	cb(subcommands.FlagsCommand(), "")
	cb(subcommands.CommandsCommand(), "")

	const deviceGroup = "devices"
	cb(new(cmd.List), deviceGroup)
	cb(new(cmd.Info), deviceGroup)
	cb(new(cmd.ASICName), deviceGroup)

	const debugGroup = "debug"
	cb(new(cmd.SyncObj), debugGroup)
}

func newEmitter(format string, logFile io.Writer) log.Emitter {
	switch format {
	case "text":
		return log.TextEmitter(logFile)
	case "json":
		return log.JSONEmitter(logFile)
	}
	util.Fatalf("invalid log format %q, must be 'text' or 'json'", format)
	panic("unreachable")
}
