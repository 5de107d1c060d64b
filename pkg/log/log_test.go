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

package log

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type testWriter struct {
	lines []string
	fail  bool
}

func (w *testWriter) Write(bytes []byte) (int, error) {
	if w.fail {
		return 0, fmt.Errorf("simulated failure")
	}
	w.lines = append(w.lines, string(bytes))
	return len(bytes), nil
}

func TestDropMessages(t *testing.T) {
	tw := &testWriter{}
	w := Writer{Next: tw}
	if _, err := w.Write([]byte("line 1\n")); err != nil {
		t.Fatalf("Write failed, err: %v", err)
	}

	tw.fail = true
	if _, err := w.Write([]byte("error\n")); err == nil {
		t.Fatalf("Write should have failed")
	}
	if _, err := w.Write([]byte("error\n")); err == nil {
		t.Fatalf("Write should have failed")
	}

	tw.fail = false
	if _, err := w.Write([]byte("line 2\n")); err != nil {
		t.Fatalf("Write failed, err: %v", err)
	}

	want := []string{
		"line 1\n",
		"line 2\n",
		"\n*** Dropped 2 log messages ***\n",
	}
	if diff := cmp.Diff(want, tw.lines); diff != "" {
		t.Errorf("written lines mismatch (-want +got):\n%s", diff)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := &BasicLogger{Level: Info, Emitter: TextEmitter(&buf)}

	l.Debugf("hidden %d", 1)
	l.Infof("shown %d", 2)
	l.Warningf("shown %d", 3)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug statement emitted at Info level: %q", out)
	}
	for _, s := range []string{"shown 2", "shown 3"} {
		if !strings.Contains(out, s) {
			t.Errorf("output %q missing %q", out, s)
		}
	}

	l.SetLevel(Debug)
	if !l.IsLogging(Debug) {
		t.Errorf("IsLogging(Debug) = false after SetLevel(Debug)")
	}
}

func TestJSONEmitter(t *testing.T) {
	var buf bytes.Buffer
	e := JSONEmitter(&buf)
	e.Emit(0, Warning, time.Unix(0, 0), "queue %d freed", 7)

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output %q is not JSON: %v", buf.String(), err)
	}
	if got["msg"] != "queue 7 freed" {
		t.Errorf("msg = %v, want %q", got["msg"], "queue 7 freed")
	}
	if got["level"] != "warning" {
		t.Errorf("level = %v, want %q", got["level"], "warning")
	}
	if caller, _ := got["caller"].(string); !strings.HasPrefix(caller, "log_test.go:") {
		t.Errorf("caller = %v, want log_test.go:<line>", got["caller"])
	}
}

func TestRateLimitedLogger(t *testing.T) {
	var buf bytes.Buffer
	l := RateLimitedLogger(&BasicLogger{Level: Debug, Emitter: TextEmitter(&buf)}, time.Hour)
	for i := 0; i < 5; i++ {
		l.Warningf("unreadable %d", i)
	}
	if n := strings.Count(buf.String(), "unreadable"); n != 1 {
		t.Errorf("got %d statements through limiter, want 1", n)
	}
}

func TestOpenFile(t *testing.T) {
	if f, err := OpenFile(""); f != nil || err != nil {
		t.Errorf("OpenFile(\"\") = %v, %v, want nil, nil", f, err)
	}

	path := filepath.Join(t.TempDir(), "sub", "drmshim.log")
	f, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile(%q) failed: %v", path, err)
	}
	defer f.Close()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("log file not created: %v", err)
	}
}
