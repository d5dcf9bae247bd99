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

import "encoding/binary"

// HeaderSize is the fixed size, in bytes, of a frame header: 4 magic +
// 2 protocol version + 2 encoding version + 1 message type +
// 1 compression + 4 size.
const HeaderSize = 14

// Wire-level integer offsets within the header, matching spec.md §4.1.
const (
	offMagic       = 0
	offProtoMajor  = 4
	offProtoMinor  = 5
	offEncMajor    = 6
	offEncMinor    = 7
	offMessageType = 8
	offCompression = 9
	offSize        = 10
)

// MessageType classifies a frame (spec.md §6).
type MessageType byte

const (
	MsgRequest      MessageType = 0
	MsgBatchRequest MessageType = 1
	MsgReply        MessageType = 2
	MsgValidate     MessageType = 3
	MsgClose        MessageType = 4
)

// ProtocolVersion is the local wire contract this core speaks.
var (
	Magic = [4]byte{'I', 'c', 'e', 'P'}

	ProtocolMajor, ProtocolMinor byte = 1, 0
	EncodingMajor, EncodingMinor byte = 1, 0
)

// HeaderFields is the fully validated, decoded form of a 14-byte header.
type HeaderFields struct {
	MessageType MessageType
	Size        uint32
}

// WriteHeader lays down a fresh header at the start of buf (reusing its
// backing array) followed by extraLen zero bytes (room for the
// request-id / batch-count field that immediately follows the header
// for request and batch-request frames). The size field is left at
// HeaderSize+extraLen and patched for real once the full payload is
// known via PatchSize.
func WriteHeader(buf []byte, kind MessageType, extraLen int) []byte {
	buf = buf[:0]
	buf = append(buf, Magic[:]...)
	buf = append(buf, ProtocolMajor, ProtocolMinor)
	buf = append(buf, EncodingMajor, EncodingMinor)
	buf = append(buf, byte(kind))
	buf = append(buf, 0) // compression: never sent compressed
	var sizeBuf [4]byte
	binary.LittleEndian.PutUint32(sizeBuf[:], uint32(HeaderSize+extraLen))
	buf = append(buf, sizeBuf[:]...)
	for i := 0; i < extraLen; i++ {
		buf = append(buf, 0)
	}
	return buf
}

// PatchSize overwrites the total-size field with n.
func PatchSize(buf []byte, n uint32) {
	binary.LittleEndian.PutUint32(buf[offSize:], n)
}

// PatchU32At overwrites a little-endian uint32 at the given byte offset.
func PatchU32At(buf []byte, offset int, v uint32) {
	binary.LittleEndian.PutUint32(buf[offset:], v)
}

// ReadU32At reads a little-endian uint32 at the given byte offset.
func ReadU32At(buf []byte, offset int) uint32 {
	return binary.LittleEndian.Uint32(buf[offset:])
}

// ReadHeader validates and decodes a HeaderSize-byte header. Validation
// runs in the exact order spec.md §4.1 requires, each failure mode
// raising a distinct, payload-carrying error.
func ReadHeader(buf []byte, maxSize uint32) (HeaderFields, error) {
	var hf HeaderFields

	if len(buf) < HeaderSize {
		return hf, ErrUnknownMessage
	}

	var observed [4]byte
	copy(observed[:], buf[offMagic:offMagic+4])
	if observed != Magic {
		return hf, &BadMagic{Observed: observed}
	}

	if buf[offProtoMajor] != ProtocolMajor {
		return hf, &UnsupportedProtocol{
			LocalMajor: ProtocolMajor, LocalMinor: ProtocolMinor,
			RemoteMajor: buf[offProtoMajor], RemoteMinor: buf[offProtoMinor],
		}
	}

	if buf[offEncMajor] != EncodingMajor {
		return hf, &UnsupportedEncoding{
			LocalMajor: EncodingMajor, LocalMinor: EncodingMinor,
			RemoteMajor: buf[offEncMajor], RemoteMinor: buf[offEncMinor],
		}
	}

	if buf[offCompression] == 2 {
		return hf, &FeatureNotSupported{Feature: "compression"}
	}
	// Any other non-zero compression byte is reserved, but only 2 is a
	// documented rejection; we hold writers to 0 and leave decoding of
	// other values to future protocol revisions.

	size := ReadU32At(buf, offSize)
	if size < HeaderSize {
		return hf, &IllegalMessageSize{Size: size}
	}
	if maxSize > 0 && size > maxSize {
		return hf, &MemoryLimit{Size: size, Max: maxSize}
	}

	hf.MessageType = MessageType(buf[offMessageType])
	hf.Size = size
	return hf, nil
}
