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

// Package tls implements corewire.Transceiver over crypto/tls,
// grounded on the teacher's tlsDialer/tlsAccepter/tlsTran, generalized
// from an SP handshake to the frame codec's own validate-connection
// message.
package tls

import (
	"crypto/tls"
	"net"
	"strings"

	"github.com/wirecore/corewire"
	"github.com/wirecore/corewire/transport/tcp"
)

// Scheme is the endpoint prefix recognized by Dial and Listen.
const Scheme = "tls+tcp://"

// Dial connects to addr and completes a TLS client handshake using
// config, mirroring tlsDialer.Dial.
func Dial(addr string, config *tls.Config) (corewire.Transceiver, error) {
	addr = strings.TrimPrefix(addr, Scheme)
	raddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, err
	}
	tconn, err := net.DialTCP("tcp", nil, raddr)
	if err != nil {
		return nil, err
	}
	tconn.SetLinger(-1)
	conn := tls.Client(tconn, config)
	if err := conn.Handshake(); err != nil {
		conn.Close()
		return nil, err
	}
	return tcp.NewNetTransceiver(conn, "tls"), nil
}

// Listener wraps a net.Listener produced by tls.NewListener, mirroring
// tlsAccepter.
type Listener struct {
	ln net.Listener
}

// Listen starts accepting TLS connections on addr, mirroring
// tlsTran.NewAccepter.
func Listen(addr string, config *tls.Config) (*Listener, error) {
	addr = strings.TrimPrefix(addr, Scheme)
	laddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, err
	}
	tl, err := net.ListenTCP("tcp", laddr)
	if err != nil {
		return nil, err
	}
	return &Listener{ln: tls.NewListener(tl, config)}, nil
}

// Accept blocks for the next inbound connection and completes its
// server-side TLS handshake.
func (l *Listener) Accept() (corewire.Transceiver, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, err
	}
	tconn := conn.(*tls.Conn)
	if err := tconn.Handshake(); err != nil {
		tconn.Close()
		return nil, err
	}
	return tcp.NewNetTransceiver(tconn, "tls"), nil
}

// Addr returns the bound local address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Close stops accepting new connections.
func (l *Listener) Close() error { return l.ln.Close() }
