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
	"testing"
)

func TestHeaderRoundTrip(t *testing.T) {
	for _, kind := range []MessageType{MsgRequest, MsgBatchRequest, MsgReply, MsgValidate, MsgClose} {
		buf := WriteHeader(nil, kind, 4)
		PatchU32At(buf, HeaderSize, 42)
		PatchSize(buf, uint32(len(buf)))

		hf, err := ReadHeader(buf, 0)
		if err != nil {
			t.Fatalf("kind %v: ReadHeader: %v", kind, err)
		}
		if hf.MessageType != kind {
			t.Fatalf("kind %v: got message type %v", kind, hf.MessageType)
		}
		if hf.Size != uint32(len(buf)) {
			t.Fatalf("kind %v: got size %d, want %d", kind, hf.Size, len(buf))
		}
		if ReadU32At(buf, HeaderSize) != 42 {
			t.Fatalf("kind %v: request-id not preserved", kind)
		}
	}
}

func TestReadHeaderBadMagic(t *testing.T) {
	buf := WriteHeader(nil, MsgRequest, 0)
	buf[0] = 'X'
	_, err := ReadHeader(buf, 0)
	if _, ok := err.(*BadMagic); !ok {
		t.Fatalf("got %T, want *BadMagic", err)
	}
}

func TestReadHeaderUnsupportedProtocol(t *testing.T) {
	buf := WriteHeader(nil, MsgRequest, 0)
	buf[offProtoMajor] = ProtocolMajor + 1
	_, err := ReadHeader(buf, 0)
	if _, ok := err.(*UnsupportedProtocol); !ok {
		t.Fatalf("got %T, want *UnsupportedProtocol", err)
	}
}

func TestReadHeaderUnsupportedEncoding(t *testing.T) {
	buf := WriteHeader(nil, MsgRequest, 0)
	buf[offEncMajor] = EncodingMajor + 1
	_, err := ReadHeader(buf, 0)
	if _, ok := err.(*UnsupportedEncoding); !ok {
		t.Fatalf("got %T, want *UnsupportedEncoding", err)
	}
}

func TestReadHeaderCompressionRejected(t *testing.T) {
	buf := WriteHeader(nil, MsgRequest, 0)
	buf[offCompression] = 2
	_, err := ReadHeader(buf, 0)
	if _, ok := err.(*FeatureNotSupported); !ok {
		t.Fatalf("got %T, want *FeatureNotSupported", err)
	}
}

func TestReadHeaderIllegalSize(t *testing.T) {
	buf := WriteHeader(nil, MsgRequest, 0)
	PatchSize(buf, HeaderSize-1)
	_, err := ReadHeader(buf, 0)
	if _, ok := err.(*IllegalMessageSize); !ok {
		t.Fatalf("got %T, want *IllegalMessageSize", err)
	}
}

func TestReadHeaderMemoryLimit(t *testing.T) {
	buf := WriteHeader(nil, MsgRequest, 100)
	PatchSize(buf, uint32(len(buf)))
	_, err := ReadHeader(buf, 32)
	if _, ok := err.(*MemoryLimit); !ok {
		t.Fatalf("got %T, want *MemoryLimit", err)
	}
}

func TestReadHeaderTooShort(t *testing.T) {
	_, err := ReadHeader(make([]byte, HeaderSize-1), 0)
	if err != ErrUnknownMessage {
		t.Fatalf("got %v, want ErrUnknownMessage", err)
	}
}

func TestIsLocalException(t *testing.T) {
	cases := []struct {
		err   error
		local bool
	}{
		{ErrConnectionLost, true},
		{&BadMagic{}, true},
		{&UnknownException{Reason: "boom"}, false},
	}
	for _, c := range cases {
		if got := IsLocalException(c.err); got != c.local {
			t.Fatalf("IsLocalException(%v) = %v, want %v", c.err, got, c.local)
		}
	}
}
