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
	"fmt"
	"io"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// LogrusEmitter emits log statements through a logrus.Logger. Level
// filtering is done by BasicLogger; the logrus logger is set to its most
// verbose level so every emitted statement is written.
type LogrusEmitter struct {
	Logger *logrus.Logger
}

// TextEmitter returns an emitter writing logrus text lines to w.
func TextEmitter(w io.Writer) *LogrusEmitter {
	return newLogrusEmitter(w, &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "0102 15:04:05.000000",
	})
}

// JSONEmitter returns an emitter writing one JSON object per line to w.
func JSONEmitter(w io.Writer) *LogrusEmitter {
	return newLogrusEmitter(w, &logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime: "time",
			logrus.FieldKeyMsg:  "msg",
		},
	})
}

func newLogrusEmitter(w io.Writer, formatter logrus.Formatter) *LogrusEmitter {
	l := logrus.New()
	l.SetOutput(&Writer{Next: w})
	l.SetFormatter(formatter)
	l.SetLevel(logrus.DebugLevel)
	return &LogrusEmitter{Logger: l}
}

// Emit implements Emitter.Emit.
func (e *LogrusEmitter) Emit(depth int, level Level, timestamp time.Time, format string, v ...any) {
	entry := e.Logger.WithTime(timestamp)
	if _, file, line, ok := runtime.Caller(depth + 1); ok {
		if slash := strings.LastIndexByte(file, byte('/')); slash >= 0 {
			file = file[slash+1:] // Trim any directory path from the file.
		}
		entry = entry.WithField("caller", fmt.Sprintf("%s:%d", file, line))
	}
	entry.Log(logrusLevel(level), fmt.Sprintf(format, v...))
}

func logrusLevel(level Level) logrus.Level {
	switch level {
	case Warning:
		return logrus.WarnLevel
	case Info:
		return logrus.InfoLevel
	default:
		return logrus.DebugLevel
	}
}
