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

package conn

import (
	"github.com/wirecore/corewire"
)

// pendingInvocation is one server-side request or one element of a
// batch-request, queued up for dispatch outside the connection lock
// (spec.md §4.6).
type pendingInvocation struct {
	requestID      uint32
	responseWanted bool
	input          []byte
}

// StartWorker launches the per-connection read loop for non-blocking
// and server-mode connections. Blocking-client connections never call
// this: every send_request reads its own reply synchronously (spec.md
// §5). The worker holds a strong reference to c for its lifetime and
// clears nothing explicitly on exit in this Go port — c is owned by
// the outer factory/caller, and the goroutine's exit is observed by
// closing workerDone, joined from WaitUntilFinished.
func (c *ConnectionI) StartWorker() {
	c.mu.Lock()
	c.workerStarted = true
	c.mu.Unlock()
	go c.workerLoop()
}

func (c *ConnectionI) workerLoop() {
	defer func() {
		// Every exit leaves the connection Closed: fail what is still pending and release the transceiver.
		c.mu.Lock()
		c.sendMu.Lock()
		c.registry.drainWithException(c.fatalErrForDrain())
		if c.transceiver != nil {
			c.transceiver.Close()
			c.transceiver = nil
		}
		c.broadcastSendLocked()
		c.sendMu.Unlock()
		c.broadcastLocked()
		c.mu.Unlock()
		close(c.workerDone)
	}()

	if err := c.Validate(); err != nil {
		return
	}
	c.Activate()

	buf := make([]byte, corewire.HeaderSize)
	for {
		c.sendMu.Lock()
		if c.transceiver == nil {
			c.sendMu.Unlock()
			return
		}
		c.sendMu.Unlock()
		mt, rid, invokeNum, err := c.readAndParseLocked(&buf)

		if err != nil {
			c.handleReadError(err)
			if c.isClosed() {
				return
			}
			continue
		}

		done := c.classify(mt, rid, invokeNum, buf)
		if done {
			return
		}
	}
}

func (c *ConnectionI) handleReadError(err error) {
	switch err {
	case corewire.ErrCloseConnection:
		c.setState(StateClosed, nil)
	default:
		c.setState(StateClosed, err)
	}
}

func (c *ConnectionI) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateClosed
}

// classify implements spec.md §4.6's "under the connection lock,
// classify" step plus the outside-the-lock dispatch step, returning
// true once the loop should exit (transceiver released and closed).
func (c *ConnectionI) classify(mt corewire.MessageType, rid uint32, invokeNum uint32, buf []byte) bool {
	c.mu.Lock()

	var toInvoke []pendingInvocation
	var abandoned int

	switch mt {
	case corewire.MsgRequest, corewire.MsgBatchRequest:
		if c.state < StateClosing {
			if mt == corewire.MsgRequest {
				toInvoke = append(toInvoke, pendingInvocation{
					requestID: rid, responseWanted: true,
					input: buf[corewire.HeaderSize+4:],
				})
			} else {
				toInvoke = append(toInvoke, splitBatchRecords(buf[corewire.HeaderSize+4:], invokeNum)...)
			}
			c.dispatch += len(toInvoke)
		} else if c.logger != nil {
			c.logger.Logf("dropping invocation on %s: client will retry", c.desc)
		}

	case corewire.MsgReply:
		c.sendMu.Lock()
		if e, ok := c.registry.lookup(rid); ok {
			c.registry.erase(e)
			c.sendMu.Unlock()
			e.out.Finished(buf)
		} else {
			c.sendMu.Unlock()
			c.setStateLocked(StateClosed, corewire.ErrUnknownRequestID)
		}
		c.sendMu.Lock()
		c.broadcastSendLocked()
		c.sendMu.Unlock()
		c.broadcastLocked() // Close(false) waits on the connection monitor for an empty registry

	case corewire.MsgValidate:
		// already logged in readAndParseLocked; nothing else to do.
	}

	for c.state == StateHolding {
		ch := c.stateCh
		c.mu.Unlock()
		<-ch
		c.mu.Lock()
	}

	exiting := false
	if c.state == StateClosing || c.state == StateClosed {
		c.sendMu.Lock()
		err := c.fatalErrForDrain()
		c.registry.drainWithException(err)
		c.broadcastSendLocked()
		c.sendMu.Unlock()

		if len(toInvoke) > 0 {
			abandoned = len(toInvoke)
			toInvoke = nil
			c.dispatch -= abandoned
			c.broadcastLocked()
		}
	}

	if c.state == StateClosed {
		c.sendMu.Lock()
		if c.transceiver != nil {
			c.transceiver.Close()
			c.transceiver = nil
		}
		c.broadcastSendLocked()
		c.sendMu.Unlock()
		exiting = true
	}

	c.mu.Unlock()

	for _, inv := range toInvoke {
		c.dispatchOne(inv)
	}

	return exiting
}

// fatalErrForDrain returns the error pending outgoings are failed with.
// c.mu must be held by the caller.
func (c *ConnectionI) fatalErrForDrain() error {
	if c.fatalErr != nil {
		return c.fatalErr
	}
	return corewire.ErrConnectionLost
}

// dispatchOne runs one inbound invocation through the dispatch adapter
// and writes its reply (if any), conserving the dispatch-counter
// invariant (spec.md P7: every +1 is matched by exactly one -1).
func (c *ConnectionI) dispatchOne(inv pendingInvocation) {
	defer func() {
		c.mu.Lock()
		c.dispatch--
		c.broadcastLocked()
		c.mu.Unlock()
	}()

	var out []byte
	if inv.responseWanted {
		out = corewire.WriteHeader(nil, corewire.MsgReply, 4)
		corewire.PatchU32At(out, corewire.HeaderSize, inv.requestID)
	}

	adapter := c.Adapter()

	status, dispatchErr := Dispatch(adapter, inv.input, &out)
	_ = status

	// Dispatch has already classified and, for non-local errors, wrapped
	// the servant's failure into an UnknownException by this point; any
	// error it returns is connection-fatal regardless of whether a reply
	// was expected (a one-way invocation has no reply to carry the
	// failure back to the peer, so closing is the only visible effect).
	if dispatchErr != nil {
		c.setState(StateClosed, dispatchErr)
	}

	if !inv.responseWanted {
		return
	}

	corewire.PatchSize(out, uint32(len(out)))

	c.sendMu.Lock()
	if c.transceiver != nil {
		if _, err := c.transceiver.Write(out); err != nil {
			c.sendMu.Unlock()
			c.setState(StateClosed, err)
			return
		}
	}
	c.sendMu.Unlock()
}

// splitBatchRecords carves a batch-request body into its count
// concatenated request records. Each record is itself length-prefixed
// (4-byte little-endian length, then that many bytes of
// identity+operation+payload) so a batch can be split without needing
// to understand servant-specific payload framing.
func splitBatchRecords(body []byte, count uint32) []pendingInvocation {
	invs := make([]pendingInvocation, 0, count)
	off := 0
	for i := uint32(0); i < count; i++ {
		if off+4 > len(body) {
			break
		}
		n := int(corewire.ReadU32At(body, off))
		off += 4
		if off+n > len(body) {
			break
		}
		invs = append(invs, pendingInvocation{responseWanted: false, input: body[off : off+n]})
		off += n
	}
	return invs
}
