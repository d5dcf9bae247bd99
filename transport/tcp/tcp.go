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

package tcp

import (
	"net"
	"strings"
	"time"

	"github.com/wirecore/corewire"
)

// Scheme is the endpoint prefix recognized by Dial and Listen, matching
// the teacher's TCPTransport.Scheme convention.
const Scheme = "tcp://"

// KeepAlive, when non-zero, is applied to every dialed and accepted
// connection via setKeepAlive (keepalive_unix.go / keepalive_other.go).
var KeepAlive = 30 * time.Second

// Dial connects to addr (with or without the "tcp://" prefix) and
// returns a corewire.Transceiver, mirroring TCPDialer.Dial.
func Dial(addr string) (corewire.Transceiver, error) {
	addr = strings.TrimPrefix(addr, Scheme)
	raddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialTCP("tcp", nil, raddr)
	if err != nil {
		return nil, err
	}
	conn.SetLinger(-1)
	conn.SetNoDelay(true)
	setKeepAlive(conn, KeepAlive)
	return NewNetTransceiver(conn, "tcp"), nil
}

// Listener wraps a *net.TCPListener, handing out corewire.Transceivers
// from Accept the way TCPAccepter does.
type Listener struct {
	tl *net.TCPListener
}

// Listen starts accepting connections on addr, mirroring
// TCPTransport.NewAccepter.
func Listen(addr string) (*Listener, error) {
	addr = strings.TrimPrefix(addr, Scheme)
	laddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, err
	}
	tl, err := net.ListenTCP("tcp", laddr)
	if err != nil {
		return nil, err
	}
	return &Listener{tl: tl}, nil
}

// Accept blocks for the next inbound connection.
func (l *Listener) Accept() (corewire.Transceiver, error) {
	conn, err := l.tl.AcceptTCP()
	if err != nil {
		return nil, err
	}
	conn.SetLinger(-1)
	conn.SetNoDelay(true)
	setKeepAlive(conn, KeepAlive)
	return NewNetTransceiver(conn, "tcp"), nil
}

// Addr returns the bound local address.
func (l *Listener) Addr() net.Addr { return l.tl.Addr() }

// Close stops accepting new connections.
func (l *Listener) Close() error { return l.tl.Close() }
