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
	"time"

	"github.com/wirecore/corewire/internal/conn"
)

// Mode selects how a Connection schedules its I/O (spec.md §5).
type Mode int

const (
	// ModeBlockingClient drives sendRequest and its reply on the
	// caller's own goroutine; no worker is spawned.
	ModeBlockingClient Mode = Mode(conn.ModeBlockingClient)
	// ModeNonBlocking spawns a dedicated worker goroutine that owns
	// the read side; callers write concurrently under the send-lock.
	ModeNonBlocking Mode = Mode(conn.ModeNonBlocking)
	// ModeServer is like ModeNonBlocking but additionally dispatches
	// inbound requests through an ObjectAdapter.
	ModeServer Mode = Mode(conn.ModeServer)
)

// State mirrors internal/conn.State for callers that want to observe
// lifecycle without reaching into the internal package.
type State int

const (
	StateNotValidated State = iota
	StateActive
	StateHolding
	StateClosing
	StateClosed
)

// Config bundles the construction-time parameters for a Connection.
type Config struct {
	Endpoint    string // immutable endpoint descriptor
	Description string // immutable human-readable description
	MaxSize     uint32 // 0 means unlimited
	Mode        Mode
	Adapter     ObjectAdapter // server mode only
	Timeout     time.Duration
	Logger      Logger
	WarnConnections bool
}

// Connection is the public handle onto the per-connection state
// machine. It is a thin wrapper: all real state lives in the unexported
// internal/conn.ConnectionI, which enforces the connection-then-send
// lock ordering spec.md §5 depends on.
type Connection struct {
	i *conn.ConnectionI
}

// NewConnection constructs a Connection over an already-established
// Transceiver and, for non-blocking/server modes, starts its worker.
func NewConnection(t Transceiver, cfg Config) *Connection {
	ci := conn.New(t, cfg.Endpoint, cfg.Description, cfg.MaxSize,
		conn.Mode(cfg.Mode), cfg.Adapter, cfg.Timeout, cfg.Logger, cfg.WarnConnections)
	c := &Connection{i: ci}
	if cfg.Mode != ModeBlockingClient {
		ci.StartWorker()
	}
	return c
}

func (c *Connection) String() string { return c.i.String() }

func (c *Connection) State() State { return State(c.i.State()) }

// Validate runs the connection-establishment handshake. Blocking-client
// callers must call this themselves before the first SendRequest; it
// runs automatically on the worker goroutine for non-blocking/server
// connections.
func (c *Connection) Validate() error { return c.i.Validate() }

// Activate transitions NotValidated/Holding -> Active.
func (c *Connection) Activate() { c.i.Activate() }

// Hold transitions -> Holding (server mode only).
func (c *Connection) Hold() { c.i.Hold() }

// SendRequest is the central send operation (spec.md §4.3). Pass a nil
// Outgoing for a one-way invocation.
func (c *Connection) SendRequest(payload []byte, outgoing Outgoing) error {
	return c.i.SendRequest(payload, outgoing)
}

// Close implements both graceful (force=false) and forced (force=true)
// shutdown (spec.md §4.4).
func (c *Connection) Close(force bool) { c.i.Close(force) }

// WaitUntilFinished blocks until the connection has fully drained and
// released its transceiver.
func (c *Connection) WaitUntilFinished() { c.i.WaitUntilFinished() }

// IsFinished is the non-blocking variant of WaitUntilFinished.
func (c *Connection) IsFinished() bool { return c.i.IsFinished() }

// PrepareBatch begins accumulating one more batched one-way request;
// buf is handed to the caller to marshal a new record onto.
func (c *Connection) PrepareBatch(buf *[]byte) { c.i.PrepareBatch(buf) }

// FinishBatch completes accumulation of the record marshaled into buf.
func (c *Connection) FinishBatch(buf *[]byte) { c.i.FinishBatch(buf) }

// AbortBatch discards a partially marshaled batch record.
func (c *Connection) AbortBatch() { c.i.AbortBatch() }

// FlushBatch writes the accumulated batch as a single frame.
func (c *Connection) FlushBatch() error { return c.i.FlushBatch() }

// SetAdapter swaps the server-mode ObjectAdapter, blocking until no
// dispatch is in flight (spec.md §3).
func (c *Connection) SetAdapter(adapter ObjectAdapter) { c.i.SetAdapter(adapter) }
