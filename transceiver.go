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

import "time"

// Transceiver is the abstract byte transport the Connection consumes.
// Implementations live outside this package (transport/tcp,
// transport/tls, transport/ws, transport/winpipe); the core only ever
// sees this interface, mirroring the teacher's split between the core
// socket machinery and its Transport/TranPipe implementations.
type Transceiver interface {
	// Read fills p as far as possible with a single underlying read,
	// the way net.Conn.Read does; callers loop until p is full.
	Read(p []byte) (int, error)

	// Write writes all of p or returns an error.
	Write(p []byte) (int, error)

	// ReadTimeout and WriteTimeout are timed variants used during the
	// validation handshake. Blocking-client mode instead pins both
	// read and write deadlines to the endpoint timeout via SetTimeouts.
	ReadTimeout(p []byte, timeout time.Duration) (int, error)
	WriteTimeout(p []byte, timeout time.Duration) (int, error)

	// SetTimeouts installs persistent read/write deadlines used for
	// all subsequent untimed Read/Write calls. A zero duration means
	// no deadline.
	SetTimeouts(read, write time.Duration)

	// ShutdownReadWrite shuts down both directions; this unblocks a
	// pending Read. Where the transport has no half-close (a non-TCP
	// net.Conn, a WebSocket) implementations close the connection here.
	ShutdownReadWrite() error

	// Close releases the underlying descriptor. Read/Write after Close
	// must return an error.
	Close() error

	// String returns a human-readable description (e.g. local/remote
	// address pair), used in log lines and Connection.String().
	String() string

	// Type identifies the concrete transport ("tcp", "tls", "ws", ...).
	Type() string
}
