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

// Package ws implements corewire.Transceiver over gorilla/websocket,
// grounded on the teacher's ws transport (a stream-oriented Transceiver
// layered on a message-oriented socket). Each corewire frame is sent as
// exactly one binary WebSocket message; on the read side, message
// boundaries are flattened back into a byte stream so the frame codec
// can Read() an arbitrary number of bytes at a time just as it does
// over TCP.
package ws

import (
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wirecore/corewire"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Transceiver adapts a *websocket.Conn to corewire.Transceiver.
type Transceiver struct {
	conn    *websocket.Conn
	mu      sync.Mutex // serializes writes; gorilla requires one writer at a time
	readDl  time.Duration
	writeDl time.Duration

	pending []byte // leftover bytes from a WS message not yet consumed by Read
}

func newTransceiver(conn *websocket.Conn) *Transceiver {
	return &Transceiver{conn: conn}
}

// Dial opens a WebSocket connection to a "ws://" or "wss://" endpoint.
func Dial(addr string) (corewire.Transceiver, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return nil, err
	}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, err
	}
	return newTransceiver(conn), nil
}

// Upgrade promotes an inbound HTTP request to a WebSocket connection,
// for use inside an http.Handler registered by the caller (the teacher
// leaves listener setup to the transport's NewAccepter; here it is left
// to the caller's own http.Server since net/http already owns accept).
func Upgrade(w http.ResponseWriter, r *http.Request) (corewire.Transceiver, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return newTransceiver(conn), nil
}

func (t *Transceiver) Read(p []byte) (int, error) {
	for len(t.pending) == 0 {
		_, msg, err := t.conn.ReadMessage()
		if err != nil {
			return 0, err
		}
		t.pending = msg
	}
	n := copy(p, t.pending)
	t.pending = t.pending[n:]
	return n, nil
}

func (t *Transceiver) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.writeDl > 0 {
		t.conn.SetWriteDeadline(time.Now().Add(t.writeDl))
	}
	if err := t.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (t *Transceiver) ReadTimeout(p []byte, timeout time.Duration) (int, error) {
	if timeout > 0 {
		t.conn.SetReadDeadline(time.Now().Add(timeout))
	} else {
		t.conn.SetReadDeadline(time.Time{})
	}
	return t.Read(p)
}

func (t *Transceiver) WriteTimeout(p []byte, timeout time.Duration) (int, error) {
	t.mu.Lock()
	if timeout > 0 {
		t.conn.SetWriteDeadline(time.Now().Add(timeout))
	} else {
		t.conn.SetWriteDeadline(time.Time{})
	}
	t.mu.Unlock()
	return t.Write(p)
}

func (t *Transceiver) SetTimeouts(read, write time.Duration) {
	t.readDl = read
	t.writeDl = write
}

// ShutdownReadWrite sends a close control frame and then closes the
// underlying net.Conn to unblock any pending ReadMessage.
func (t *Transceiver) ShutdownReadWrite() error {
	t.mu.Lock()
	t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	t.mu.Unlock()
	return t.conn.Close()
}

func (t *Transceiver) Close() error {
	return t.conn.Close()
}

func (t *Transceiver) String() string {
	return t.conn.LocalAddr().String() + "<->" + t.conn.RemoteAddr().String()
}

func (t *Transceiver) Type() string { return "ws" }
