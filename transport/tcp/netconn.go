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

// Package tcp implements corewire.Transceiver over a plain TCP
// net.Conn, grounded on the teacher's TCPDialer/TCPAccepter/TCPTransport
// split and connPipe's send/recv-all discipline, generalized from
// length-prefixed SP messages to the frame codec in the root package.
package tcp

import (
	"net"
	"time"
)

// NetTransceiver adapts a net.Conn to corewire.Transceiver. It is
// exported so transport/tls can embed it over a *tls.Conn, which
// satisfies net.Conn.
type NetTransceiver struct {
	Conn      net.Conn
	kind      string
	readDl    time.Duration
	writeDl   time.Duration
}

// NewNetTransceiver wraps an already-established net.Conn.
func NewNetTransceiver(conn net.Conn, kind string) *NetTransceiver {
	return &NetTransceiver{Conn: conn, kind: kind}
}

func (t *NetTransceiver) Read(p []byte) (int, error) {
	if t.readDl > 0 {
		t.Conn.SetReadDeadline(time.Now().Add(t.readDl))
	} else {
		t.Conn.SetReadDeadline(time.Time{})
	}
	return t.Conn.Read(p)
}

func (t *NetTransceiver) Write(p []byte) (int, error) {
	if t.writeDl > 0 {
		t.Conn.SetWriteDeadline(time.Now().Add(t.writeDl))
	} else {
		t.Conn.SetWriteDeadline(time.Time{})
	}
	return t.Conn.Write(p)
}

func (t *NetTransceiver) ReadTimeout(p []byte, timeout time.Duration) (int, error) {
	if timeout > 0 {
		t.Conn.SetReadDeadline(time.Now().Add(timeout))
	} else {
		t.Conn.SetReadDeadline(time.Time{})
	}
	return t.Conn.Read(p)
}

func (t *NetTransceiver) WriteTimeout(p []byte, timeout time.Duration) (int, error) {
	if timeout > 0 {
		t.Conn.SetWriteDeadline(time.Now().Add(timeout))
	} else {
		t.Conn.SetWriteDeadline(time.Time{})
	}
	return t.Conn.Write(p)
}

func (t *NetTransceiver) SetTimeouts(read, write time.Duration) {
	t.readDl = read
	t.writeDl = write
}

// ShutdownReadWrite half-closes both directions where the underlying
// net.Conn supports it (TCP does via *net.TCPConn); other net.Conn
// implementations fall back to a full Close, which still unblocks a
// pending Read the way the teacher's forced-close path expects.
func (t *NetTransceiver) ShutdownReadWrite() error {
	type halfCloser interface {
		CloseRead() error
		CloseWrite() error
	}
	if hc, ok := t.Conn.(halfCloser); ok {
		hc.CloseRead()
		return hc.CloseWrite()
	}
	return t.Conn.Close()
}

func (t *NetTransceiver) Close() error {
	return t.Conn.Close()
}

func (t *NetTransceiver) String() string {
	return t.Conn.LocalAddr().String() + "<->" + t.Conn.RemoteAddr().String()
}

func (t *NetTransceiver) Type() string {
	return t.kind
}
