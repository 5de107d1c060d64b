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
	"time"

	"github.com/drmshim/drmshim/drmshim/cmd/util"
	"github.com/drmshim/drmshim/drmshim/config"
	abi "github.com/drmshim/drmshim/pkg/abi/drm"
	"github.com/drmshim/drmshim/pkg/cleanup"
	"github.com/drmshim/drmshim/pkg/drm"
	"github.com/drmshim/drmshim/pkg/log"
	"github.com/google/subcommands"
	"golang.org/x/sync/errgroup"
)

// SyncObj implements subcommands.Command for the "syncobj" command.
type SyncObj struct {
	delay  time.Duration
	rounds int
}

// Name implements subcommands.Command.Name.
func (*SyncObj) Name() string {
	return "syncobj"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*SyncObj) Synopsis() string {
	return "exercise kernel sync objects with a producer and a consumer"
}

// Usage implements subcommands.Command.Usage.
func (*SyncObj) Usage() string {
	return `syncobj [flags] [device] - signal a sync object between two goroutines.

The producer creates a sync object and exports it as a file descriptor. The
consumer imports the descriptor and waits in the kernel while the producer
signals. The wait is bounded by the configured sync object timeout.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (s *SyncObj) SetFlags(f *flag.FlagSet) {
	f.DurationVar(&s.delay, "delay", 10*time.Millisecond, "time the producer waits before signaling.")
	f.IntVar(&s.rounds, "rounds", 1, "number of round trips.")
}

// Execute implements subcommands.Command.Execute.
func (s *SyncObj) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() > 1 || s.rounds < 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)

	dev, err := drm.Open(devicePath(conf, f))
	if err != nil {
		util.Fatalf("%v", err)
	}
	defer dev.Close()

	for i := 0; i < s.rounds; i++ {
		elapsed, err := roundTrip(ctx, dev, conf.SyncObjTimeout, s.delay)
		if err != nil {
			util.Fatalf("round %d: %v", i, err)
		}
		fmt.Printf("round %d: signaled after %v\n", i, elapsed)
	}
	return subcommands.ExitSuccess
}

// roundTrip passes one signal from a producer to a consumer through a sync
// object shared by file descriptor, and returns how long the consumer
// waited.
//
// The consumer's kernel wait cannot be interrupted by ctx. It is bounded by
// timeout instead.
func roundTrip(ctx context.Context, dev *drm.Device, timeout, delay time.Duration) (time.Duration, error) {
	produced, err := dev.CreateSyncObj(0)
	if err != nil {
		return 0, err
	}
	cu := cleanup.Make(func() { dev.DestroySyncObj(produced) })
	defer cu.Clean()

	shared, err := dev.ExportSyncObj(produced, 0)
	if err != nil {
		return 0, err
	}
	consumed, err := dev.ImportSyncObj(shared, 0)
	shared.Close()
	if err != nil {
		return 0, err
	}
	cu.Add(func() { dev.DestroySyncObj(consumed) })
	log.Debugf("Sync object %d exported and imported as %d", produced, consumed)

	var elapsed time.Duration
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		start := time.Now()
		// Nothing is submitted before the producer signals.
		if _, err := dev.WaitSyncObjs([]drm.SyncObj{consumed}, timeout, abi.DRM_SYNCOBJ_WAIT_FLAGS_WAIT_FOR_SUBMIT); err != nil {
			return fmt.Errorf("consumer: %w", err)
		}
		elapsed = time.Since(start)
		return nil
	})
	g.Go(func() error {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if err := dev.SignalSyncObjs([]drm.SyncObj{produced}); err != nil {
			return fmt.Errorf("producer: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return elapsed, nil
}
