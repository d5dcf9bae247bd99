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

package conn

import (
	"testing"

	"github.com/wirecore/corewire"
)

func TestBatchBufferEmptyAfterNew(t *testing.T) {
	b := newBatchBuffer()
	if !b.empty() {
		t.Fatal("a fresh batch buffer should be empty")
	}
	if len(b.buf) != corewire.HeaderSize+4 {
		t.Fatalf("len(buf) = %d, want %d", len(b.buf), corewire.HeaderSize+4)
	}
}

func TestBatchBufferPrepareFinishOneRecord(t *testing.T) {
	b := newBatchBuffer()

	var caller []byte
	b.prepare(&caller)
	if !b.inUse {
		t.Fatal("prepare should mark the buffer in use")
	}
	if len(caller) != corewire.HeaderSize+4 {
		t.Fatalf("caller buf should start as the accumulated buffer, len = %d", len(caller))
	}

	caller = append(caller, "hello"...)
	b.finish(&caller)

	if b.inUse {
		t.Fatal("finish should clear in-use")
	}
	if b.count != 1 {
		t.Fatalf("count = %d, want 1", b.count)
	}
	if len(caller) != 0 {
		t.Fatalf("caller buf should be reset to empty, len = %d", len(caller))
	}

	// the accumulated buffer should now be header + count field + a
	// 4-byte record length prefix + "hello".
	want := corewire.HeaderSize + 4 + 4 + len("hello")
	if len(b.buf) != want {
		t.Fatalf("len(b.buf) = %d, want %d", len(b.buf), want)
	}
	recLen := corewire.ReadU32At(b.buf, corewire.HeaderSize+4)
	if recLen != uint32(len("hello")) {
		t.Fatalf("record length prefix = %d, want %d", recLen, len("hello"))
	}
	if string(b.buf[corewire.HeaderSize+4+4:]) != "hello" {
		t.Fatalf("record body = %q, want %q", b.buf[corewire.HeaderSize+4+4:], "hello")
	}
}

func TestBatchBufferTwoRecordsAccumulate(t *testing.T) {
	b := newBatchBuffer()

	for _, s := range []string{"one", "two"} {
		var caller []byte
		b.prepare(&caller)
		caller = append(caller, s...)
		b.finish(&caller)
	}

	if b.count != 2 {
		t.Fatalf("count = %d, want 2", b.count)
	}

	flushed := b.patchForFlush()
	if corewire.ReadU32At(flushed, corewire.HeaderSize) != 2 {
		t.Fatal("patchForFlush should write the final count into the reserved field")
	}
	hf, err := corewire.ReadHeader(flushed, 0)
	if err != nil {
		t.Fatalf("patched buffer should parse as a valid header: %v", err)
	}
	if int(hf.Size) != len(flushed) {
		t.Fatalf("patched size = %d, want %d", hf.Size, len(flushed))
	}

	off := corewire.HeaderSize + 4
	rec1 := corewire.ReadU32At(flushed, off)
	if rec1 != uint32(len("one")) {
		t.Fatalf("first record length = %d, want %d", rec1, len("one"))
	}
	off += 4 + int(rec1)
	rec2 := corewire.ReadU32At(flushed, off)
	if rec2 != uint32(len("two")) {
		t.Fatalf("second record length = %d, want %d", rec2, len("two"))
	}
}

func TestBatchBufferAbortDiscardsPartialRecord(t *testing.T) {
	b := newBatchBuffer()

	var caller []byte
	b.prepare(&caller)
	caller = append(caller, "partial"...)
	b.abort()

	if !b.empty() {
		t.Fatal("abort should reset the batch to empty")
	}
	if b.inUse {
		t.Fatal("abort should clear in-use")
	}
	if len(b.buf) != corewire.HeaderSize+4 {
		t.Fatalf("len(b.buf) = %d, want %d after abort", len(b.buf), corewire.HeaderSize+4)
	}
}
