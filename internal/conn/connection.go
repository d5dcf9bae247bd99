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

// Package conn holds the unexported Connection state machine. It is
// kept internal on purpose: ConnectionI depends on a strict
// connection-then-send lock ordering (spec.md §5) that must not be
// poked at from outside this package. The public API is the thin
// wrapper in the root corewire package.
package conn

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/wirecore/corewire"
)

// ConnectionI is the per-connection state machine: spec.md §3 Data
// Model, Connection entity. Modeled on the teacher's socket/pipe split
// (core.go's socket, internal/core's pipe) generalized from message
// queueing to request/reply correlation.
type ConnectionI struct {
	// Immutable for the life of the Connection.
	endpoint string
	desc     string
	maxSize  uint32
	mode     Mode
	timeout  time.Duration
	logger   corewire.Logger
	warnConn bool

	// Connection monitor: guards state, registry structure outside the
	// send-lock window, dispatch-counter, batch flags.
	mu        sync.Mutex
	state     State
	stateTime time.Time
	fatalErr  error
	dispatch  int // in-flight server invocations
	adapter   corewire.ObjectAdapter
	stateCh   chan struct{} // closed+replaced on every connection-monitor broadcast
	workerDone chan struct{}
	workerStarted bool

	// Send monitor: guards exclusive transceiver access and hosts
	// per-request parked waits.
	sendMu        sync.Mutex
	transceiver   corewire.Transceiver // nil once released
	nextRequestID int32
	registry      *outgoingRegistry
	batch         *batchBuffer
	sendCh        chan struct{} // closed+replaced on every send-monitor broadcast
}

// New constructs a Connection over an already-connected transceiver.
// The caller supplies mode and (for server mode) the adapter that will
// resolve dispatches; both are fixed for blocking-client/non-blocking
// but adapter may later be swapped via SetAdapter once no dispatch is
// in flight.
func New(t corewire.Transceiver, endpoint, desc string, maxSize uint32, mode Mode, adapter corewire.ObjectAdapter, timeout time.Duration, logger corewire.Logger, warnConn bool) *ConnectionI {
	c := &ConnectionI{
		endpoint: endpoint,
		desc:     desc,
		maxSize:  maxSize,
		mode:     mode,
		timeout:  timeout,
		logger:   logger,
		warnConn: warnConn,

		transceiver:   t,
		nextRequestID: 1,
		registry:      newOutgoingRegistry(),
		batch:         newBatchBuffer(),
		adapter:       adapter,

		stateCh:    make(chan struct{}),
		sendCh:     make(chan struct{}),
		workerDone: make(chan struct{}),
		stateTime:  time.Now(),
	}
	if mode == ModeBlockingClient {
		t.SetTimeouts(timeout, timeout)
	}
	return c
}

func (c *ConnectionI) String() string {
	if c.transceiver != nil {
		return c.desc + " " + c.transceiver.String()
	}
	return c.desc
}

func (c *ConnectionI) Mode() Mode { return c.mode }

// ---- state machine (spec.md §4.2) ----

func (c *ConnectionI) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// setState attempts the transition current->to. Entering Closed is the
// only transition allowed to set the stored fatal error, and only once.
func (c *ConnectionI) setState(to State, err error) {
	c.mu.Lock()
	c.setStateLocked(to, err)
	c.mu.Unlock()
}

func (c *ConnectionI) setStateLocked(to State, err error) {
	if !validTransition(c.state, to) {
		return
	}
	c.state = to
	c.stateTime = time.Now()

	if to == StateClosed {
		if c.fatalErr == nil {
			c.fatalErr = err
		}
		c.warnIfUnexpected(c.fatalErr)
		c.releaseTransceiverLocked()
	}

	c.broadcastLocked()

	if to == StateClosing && c.dispatch == 0 {
		c.initiateShutdownLocked()
		if c.mode == ModeBlockingClient {
			c.setStateLocked(StateClosed, nil)
		}
	}
}

// releaseTransceiverLocked shuts down both directions immediately
// (unblocking a pending worker read) and, for blocking-client mode,
// closes and releases it right away since there is no worker to do so
// later.
func (c *ConnectionI) releaseTransceiverLocked() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.transceiver == nil {
		return
	}
	c.transceiver.ShutdownReadWrite()
	if c.mode == ModeBlockingClient {
		c.transceiver.Close()
		c.transceiver = nil
	}
	c.broadcastSendLocked()
}

func (c *ConnectionI) warnIfUnexpected(err error) {
	if err == nil || c.logger == nil || !c.warnConn {
		return
	}
	switch err {
	case corewire.ErrCloseConnection, corewire.ErrForcedClose,
		corewire.ErrCommunicatorDestroyed, corewire.ErrAdapterDeactivated:
		return
	}
	if err == corewire.ErrConnectionLost && c.state == StateClosing {
		return
	}
	c.logger.Logf("connection exception: %s: %v", c.desc, err)
}

func (c *ConnectionI) broadcastLocked() {
	close(c.stateCh)
	c.stateCh = make(chan struct{})
}

func (c *ConnectionI) broadcastSendLocked() {
	close(c.sendCh)
	c.sendCh = make(chan struct{})
}

// Activate transitions NotValidated/Holding -> Active.
func (c *ConnectionI) Activate() {
	c.mu.Lock()
	c.setStateLocked(StateActive, nil)
	c.mu.Unlock()
}

// Hold transitions -> Holding (server mode only; a no-op elsewhere,
// matching the transition table's silence on client-side Holding).
func (c *ConnectionI) Hold() {
	if c.mode != ModeServer {
		return
	}
	c.mu.Lock()
	c.setStateLocked(StateHolding, nil)
	c.mu.Unlock()
}

// ---- validation handshake (spec.md §5 cancellation & timeouts (a)) ----

// Validate performs the connection-establishment handshake. Server-side
// connections write a validate-connection frame (the "active" side);
// client-side connections read one (the "passive" side), converting a
// timed-out read into ConnectTimeout.
func (c *ConnectionI) Validate() error {
	if c.mode == ModeServer {
		c.sendMu.Lock()
		hdr := corewire.WriteHeader(nil, corewire.MsgValidate, 0)
		_, err := c.transceiver.WriteTimeout(hdr, c.timeout)
		c.sendMu.Unlock()
		if err != nil {
			c.setState(StateClosed, err)
			return err
		}
		return nil
	}

	buf := make([]byte, corewire.HeaderSize)
	if _, err := readFullTimeout(c.transceiver, buf, c.timeout); err != nil {
		if isTimeout(err) {
			c.setState(StateClosed, corewire.ErrConnectTimeout)
			return corewire.ErrConnectTimeout
		}
		c.setState(StateClosed, err)
		return err
	}
	hf, err := corewire.ReadHeader(buf, c.maxSize)
	if err != nil {
		c.setState(StateClosed, err)
		return err
	}
	if hf.MessageType != corewire.MsgValidate {
		c.setState(StateClosed, corewire.ErrUnknownMessage)
		return corewire.ErrUnknownMessage
	}
	return nil
}

// ---- send path (spec.md §4.3) ----

// SendRequest is the central send operation. outgoing is nil for
// one-way invocations.
func (c *ConnectionI) SendRequest(payload []byte, outgoing corewire.Outgoing) error {
	c.sendMu.Lock()

	if c.transceiver == nil {
		c.sendMu.Unlock()
		return c.fatalErrSnapshot()
	}

	var id int32
	if outgoing != nil {
		id = c.allocateRequestIDLocked()
		corewire.PatchU32At(payload, corewire.HeaderSize, uint32(id))
		if c.mode != ModeBlockingClient {
			c.registry.insert(uint32(id), outgoing)
		}
	}
	corewire.PatchSize(payload, uint32(len(payload)))

	_, werr := c.transceiver.Write(payload)
	if werr != nil {
		return c.handleSendFailureLocked(werr, outgoing, id)
	}
	requestSent := true
	_ = requestSent

	if outgoing == nil {
		c.sendMu.Unlock()
		return nil
	}

	switch c.mode {
	case ModeBlockingClient:
		return c.blockingAwaitReply(payload, outgoing, id)
	default: // ModeNonBlocking, ModeServer (nested outbound calls)
		return c.waitForOutgoing(outgoing)
	}
}

// handleSendFailureLocked implements spec.md §4.3's failure policy: if
// the write itself failed, nothing was committed to the wire, so the
// caller may safely retry on another connection. sendMu is held on
// entry and released before returning.
func (c *ConnectionI) handleSendFailureLocked(werr error, outgoing corewire.Outgoing, id int32) error {
	if outgoing != nil && c.mode != ModeBlockingClient {
		if e, ok := c.registry.lookup(uint32(id)); ok {
			c.registry.erase(e)
		}
	}
	c.sendMu.Unlock()
	c.setState(StateClosed, werr)
	return werr
}

// blockingAwaitReply reads the reply to request id on the caller's
// goroutine. sendMu must be held on entry; it is released before
// returning.
func (c *ConnectionI) blockingAwaitReply(buf []byte, outgoing corewire.Outgoing, id int32) error {
	mt, rid, _, err := c.readAndParseLocked(&buf)
	if err == nil && (mt != corewire.MsgReply || rid != uint32(id)) {
		err = corewire.ErrUnknownRequestID
	}
	c.sendMu.Unlock()
	if err != nil {
		outgoing.FinishedException(err)
		c.setState(StateClosed, err)
		return nil
	}
	outgoing.Finished(buf)
	return nil
}

// waitForOutgoing parks on the send-monitor until the worker resolves
// outgoing, honoring the per-connection timeout. sendMu must be held on
// entry; it is released before returning.
func (c *ConnectionI) waitForOutgoing(outgoing corewire.Outgoing) error {
	timedOut := false
	deadline := time.Time{}
	if c.timeout > 0 {
		deadline = time.Now().Add(c.timeout)
	}
	for outgoing.State() == corewire.OutgoingInProgress {
		ch := c.sendCh
		var timer *time.Timer
		var timerCh <-chan time.Time
		if !timedOut && !deadline.IsZero() {
			d := time.Until(deadline)
			if d < 0 {
				d = 0
			}
			timer = time.NewTimer(d)
			timerCh = timer.C
		}
		c.sendMu.Unlock()
		select {
		case <-ch:
		case <-timerCh:
			timedOut = true
			c.setState(StateClosed, corewire.ErrTimeout)
		}
		if timer != nil {
			timer.Stop()
		}
		c.sendMu.Lock()
	}
	c.sendMu.Unlock()
	return nil
}

func (c *ConnectionI) allocateRequestIDLocked() int32 {
	id := c.nextRequestID
	c.nextRequestID++
	if id <= 0 {
		c.nextRequestID = 1
		id = c.nextRequestID
		c.nextRequestID++
	}
	return id
}

func (c *ConnectionI) fatalErrSnapshot() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fatalErr != nil {
		return c.fatalErr
	}
	return corewire.ErrConnectionLost
}

// ---- graceful / forced shutdown (spec.md §4.4) ----

// initiateShutdownLocked sends a close-connection frame. Precondition:
// mu held, state==Closing, dispatch==0. We deliberately do not
// half-close the write side here (spec.md §4.4): that was an earlier
// design and it kept some peers from completing in-flight writes.
func (c *ConnectionI) initiateShutdownLocked() {
	c.mu.Unlock()
	c.sendMu.Lock()
	if c.transceiver != nil {
		hdr := corewire.WriteHeader(nil, corewire.MsgClose, 0)
		c.transceiver.Write(hdr)
	}
	c.sendMu.Unlock()
	c.mu.Lock()
}

// Close implements both force and graceful shutdown.
func (c *ConnectionI) Close(force bool) {
	if force {
		c.setState(StateClosed, corewire.ErrForcedClose)
		return
	}

	c.mu.Lock()
	for !c.registry.empty() {
		ch := c.stateCh
		c.mu.Unlock()
		<-ch
		c.mu.Lock()
	}
	c.setStateLocked(StateClosing, corewire.ErrCloseConnection)
	c.mu.Unlock()
}

// WaitUntilFinished blocks until state>=Closing, dispatch==0, and the
// transceiver has been released, enforcing CloseTimeout along the way.
func (c *ConnectionI) WaitUntilFinished() {
	c.mu.Lock()
	for c.state < StateClosing || c.dispatch > 0 {
		ch := c.stateCh
		c.mu.Unlock()
		<-ch
		c.mu.Lock()
	}
	for {
		if c.transceiverReleased() {
			break
		}
		deadline := c.stateTime.Add(c.timeout)
		if c.state < StateClosed && c.timeout > 0 {
			d := time.Until(deadline)
			if d < 0 {
				d = 0
			}
			ch := c.stateCh
			c.mu.Unlock()
			select {
			case <-ch:
			case <-time.After(d):
				c.setState(StateClosed, corewire.ErrCloseTimeout)
			}
			c.mu.Lock()
			continue
		}
		ch := c.stateCh
		c.mu.Unlock()
		<-ch
		c.mu.Lock()
	}
	c.mu.Unlock()
	c.joinWorker()
}

func (c *ConnectionI) transceiverReleased() bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.transceiver == nil
}

// IsFinished is the non-blocking variant of WaitUntilFinished.
func (c *ConnectionI) IsFinished() bool {
	if !c.mu.TryLock() {
		return false
	}
	defer c.mu.Unlock()
	if !c.transceiverReleased() {
		return false
	}
	if c.dispatch > 0 {
		return false
	}
	if c.workerStarted {
		select {
		case <-c.workerDone:
		default:
			return false
		}
	}
	return true
}

func (c *ConnectionI) joinWorker() {
	if c.workerStarted {
		<-c.workerDone
	}
}

// ---- receive / parse (spec.md §4.5) ----

// readAndParseLocked reads one message into *buf (growing it as
// necessary) and returns its type, request-id (reply/request), and
// invoke-num (batch-request). A blocking-client caller holds sendMu
// around it; the worker, the only reader in the other modes, calls it
// without sendMu so that writers are not held up by a pending read.
func (c *ConnectionI) readAndParseLocked(buf *[]byte) (corewire.MessageType, uint32, uint32, error) {
	if cap(*buf) < corewire.HeaderSize {
		*buf = make([]byte, corewire.HeaderSize)
	} else {
		*buf = (*buf)[:corewire.HeaderSize]
	}
	if _, err := readFull(c.transceiver, *buf); err != nil {
		return 0, 0, 0, err
	}

	hf, err := corewire.ReadHeader(*buf, c.maxSize)
	if err != nil {
		return 0, 0, 0, err
	}

	if uint32(len(*buf)) < hf.Size {
		grown := make([]byte, hf.Size)
		copy(grown, *buf)
		*buf = grown
		if _, err := readFull(c.transceiver, (*buf)[corewire.HeaderSize:]); err != nil {
			return 0, 0, 0, err
		}
	} else {
		*buf = (*buf)[:hf.Size]
	}

	switch hf.MessageType {
	case corewire.MsgClose:
		return hf.MessageType, 0, 0, corewire.ErrCloseConnection
	case corewire.MsgReply:
		if len(*buf) < corewire.HeaderSize+4 {
			return 0, 0, 0, corewire.ErrUnknownMessage
		}
		id := corewire.ReadU32At(*buf, corewire.HeaderSize)
		return hf.MessageType, id, 0, nil
	case corewire.MsgRequest:
		if len(*buf) < corewire.HeaderSize+4 {
			return 0, 0, 0, corewire.ErrUnknownMessage
		}
		id := corewire.ReadU32At(*buf, corewire.HeaderSize)
		return hf.MessageType, id, 1, nil
	case corewire.MsgBatchRequest:
		if len(*buf) < corewire.HeaderSize+4 {
			return 0, 0, 0, corewire.ErrUnknownMessage
		}
		n := int32(corewire.ReadU32At(*buf, corewire.HeaderSize))
		if n < 0 {
			return hf.MessageType, 0, 0, corewire.ErrNegativeSize
		}
		return hf.MessageType, 0, uint32(n), nil
	case corewire.MsgValidate:
		if c.logger != nil && c.warnConn {
			c.logger.Logf("ignoring unexpected validate-connection message on %s", c.desc)
		}
		return hf.MessageType, 0, 0, nil
	default:
		return 0, 0, 0, corewire.ErrUnknownMessage
	}
}

func readFull(t corewire.Transceiver, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := t.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, errors.New("short read")
		}
	}
	return total, nil
}

func readFullTimeout(t corewire.Transceiver, buf []byte, timeout time.Duration) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := t.ReadTimeout(buf[total:], timeout)
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, errors.New("short read")
		}
	}
	return total, nil
}

func isTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return errors.Is(err, corewire.ErrConnectTimeout) || errors.Is(err, corewire.ErrTimeout)
}

// ---- batch buffering (spec.md §4.8) ----

func (c *ConnectionI) PrepareBatch(buf *[]byte) {
	c.mu.Lock()
	for c.batch.inUse {
		ch := c.stateCh
		c.mu.Unlock()
		<-ch
		c.mu.Lock()
	}
	c.batch.prepare(buf)
	c.mu.Unlock()
}

func (c *ConnectionI) FinishBatch(buf *[]byte) {
	c.mu.Lock()
	c.batch.finish(buf)
	c.broadcastLocked()
	c.mu.Unlock()
}

func (c *ConnectionI) AbortBatch() {
	c.mu.Lock()
	c.batch.abort()
	c.mu.Unlock()
}

func (c *ConnectionI) FlushBatch() error {
	c.mu.Lock()
	if c.batch.empty() {
		c.mu.Unlock()
		return nil
	}
	payload := c.batch.patchForFlush()
	c.batch.reset()
	c.mu.Unlock()

	c.sendMu.Lock()
	if c.transceiver == nil {
		c.sendMu.Unlock()
		return c.fatalErrSnapshot()
	}
	_, err := c.transceiver.Write(payload)
	c.sendMu.Unlock()
	if err != nil {
		c.setState(StateClosed, err)
		return err
	}
	return nil
}

// ---- adapter swap (spec.md §3: "may only be mutated while no dispatches in flight") ----

func (c *ConnectionI) SetAdapter(adapter corewire.ObjectAdapter) {
	c.mu.Lock()
	for c.dispatch > 0 {
		ch := c.stateCh
		c.mu.Unlock()
		<-ch
		c.mu.Lock()
	}
	c.adapter = adapter
	c.mu.Unlock()
}

func (c *ConnectionI) Adapter() corewire.ObjectAdapter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.adapter
}
