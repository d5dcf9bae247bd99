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

//go:build windows

// Package winpipe implements corewire.Transceiver over a Windows named
// pipe using go-winio, grounded on the teacher's connipc_windows.go
// (which layers its IPC framing on an arbitrary net.Conn) generalized
// to the frame codec in the root package instead of nanomsg's 9-byte
// length header.
package winpipe

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/Microsoft/go-winio"

	"github.com/wirecore/corewire"
	"github.com/wirecore/corewire/transport/tcp"
)

// Scheme is the endpoint prefix recognized by Dial and Listen.
const Scheme = "winpipe://"

// Dial connects to a named pipe path such as \\.\pipe\corewire.
func Dial(addr string, timeout time.Duration) (corewire.Transceiver, error) {
	path := strings.TrimPrefix(addr, Scheme)
	ctx := context.Background()
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	conn, err := winio.DialPipeContext(ctx, path)
	if err != nil {
		return nil, err
	}
	return tcp.NewNetTransceiver(conn, "winpipe"), nil
}

// Listener wraps a go-winio pipe listener.
type Listener struct {
	ln net.Listener
}

// Listen creates and starts listening on a named pipe path.
func Listen(addr string, config *winio.PipeConfig) (*Listener, error) {
	path := strings.TrimPrefix(addr, Scheme)
	ln, err := winio.ListenPipe(path, config)
	if err != nil {
		return nil, err
	}
	return &Listener{ln: ln}, nil
}

// Accept blocks for the next inbound pipe client connection.
func (l *Listener) Accept() (corewire.Transceiver, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, err
	}
	return tcp.NewNetTransceiver(conn, "winpipe"), nil
}

// Close stops accepting new connections.
func (l *Listener) Close() error { return l.ln.Close() }
