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
	"encoding/binary"

	"github.com/wirecore/corewire"
)

// batchBuffer accumulates one-way requests for a single combined write,
// per spec.md §4.8. It is owned by the Connection and guarded by the
// connection lock; inUse is set from prepare to finish and prevents a
// second caller from starting a record while one is being marshalled.
//
// spec.md describes each record as simply "concatenated"; since this
// port's servant dispatch treats request payloads as opaque bytes
// rather than a self-describing encapsulation, records are made
// self-delimiting here with a 4-byte little-endian length prefix,
// inserted once marshalling of that record completes.
type batchBuffer struct {
	buf         []byte
	count       uint32
	inUse       bool
	recordStart int
}

func newBatchBuffer() *batchBuffer {
	b := &batchBuffer{}
	b.reset()
	return b
}

func (b *batchBuffer) reset() {
	b.buf = corewire.WriteHeader(nil, corewire.MsgBatchRequest, 4)
	b.count = 0
	b.inUse = false
	b.recordStart = 0
}

func (b *batchBuffer) empty() bool {
	return b.count == 0
}

// prepare swaps the caller's buffer for the accumulated batch buffer,
// so the caller can marshal one more request directly onto the tail of
// it, and remembers where that new record starts.
func (b *batchBuffer) prepare(callerBuf *[]byte) {
	b.recordStart = len(b.buf)
	*callerBuf, b.buf = b.buf, *callerBuf
	b.inUse = true
}

// finish swaps the buffer back, splices in the new record's length
// prefix, and records one more accumulated request.
func (b *batchBuffer) finish(callerBuf *[]byte) {
	*callerBuf, b.buf = b.buf, *callerBuf

	recLen := len(b.buf) - b.recordStart
	var lenBytes [4]byte
	binary.LittleEndian.PutUint32(lenBytes[:], uint32(recLen))

	withPrefix := make([]byte, 0, len(b.buf)+4)
	withPrefix = append(withPrefix, b.buf[:b.recordStart]...)
	withPrefix = append(withPrefix, lenBytes[:]...)
	withPrefix = append(withPrefix, b.buf[b.recordStart:]...)
	b.buf = withPrefix

	b.count++
	b.inUse = false
	*callerBuf = (*callerBuf)[:0]
}

// abort discards whatever partial marshalling happened in the caller's
// buffer: a half-written record cannot be salvaged, so the whole batch
// resets to empty per spec.md §4.8.
func (b *batchBuffer) abort() {
	b.reset()
}

// patchForFlush writes the final count and total-size fields into the
// accumulated buffer just before it is handed to the transceiver.
func (b *batchBuffer) patchForFlush() []byte {
	corewire.PatchU32At(b.buf, corewire.HeaderSize, b.count)
	corewire.PatchSize(b.buf, uint32(len(b.buf)))
	return b.buf
}
