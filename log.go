// Copyright 2018 The Mangos Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package corewire

import (
	"bytes"
	"fmt"
	"sync"
)

// Logger is the sink the Connection warns through. The core never
// constructs one; callers inject it (or leave it nil, in which case
// warnings are dropped).
type Logger interface {
	Log(a ...interface{})
	Logf(format string, a ...interface{})
}

// BufferLogger is a minimal Logger that accumulates lines in memory.
// Useful for tests and for simple CLI tools that just want to dump
// connection warnings to stderr at the end of a run.
type BufferLogger struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (l *BufferLogger) Log(a ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf.WriteString(fmt.Sprint(a...))
	l.buf.WriteByte('\n')
}

func (l *BufferLogger) Logf(format string, a ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf.WriteString(fmt.Sprintf(format, a...))
	l.buf.WriteByte('\n')
}

func (l *BufferLogger) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buf.String()
}

func (l *BufferLogger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf.Reset()
}
