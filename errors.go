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

// Package corewire implements the per-connection core of a binary RPC
// runtime: framing, handshake, request correlation, dispatch, and
// graceful/forced shutdown on top of an externally supplied transport.
package corewire

import "fmt"

// simpleErr is a constant error value, the way the teacher's errors
// package models errors with no payload.
type simpleErr string

func (e simpleErr) Error() string { return string(e) }

// Errors carrying no payload.
const (
	ErrConnectionNotValidated = simpleErr("connection not validated")
	ErrUnknownMessage         = simpleErr("unknown message type")
	ErrUnknownRequestID       = simpleErr("unknown request id")
	ErrCloseConnection        = simpleErr("connection closed gracefully by peer")
	ErrForcedClose            = simpleErr("connection forcibly closed")
	ErrCommunicatorDestroyed  = simpleErr("communicator destroyed")
	ErrAdapterDeactivated     = simpleErr("object adapter deactivated")
	ErrConnectionLost         = simpleErr("connection lost")
	ErrConnectTimeout         = simpleErr("connect timed out")
	ErrTimeout                = simpleErr("request timed out")
	ErrCloseTimeout           = simpleErr("close timed out")
	ErrNegativeSize           = simpleErr("negative size in batch request")
)

// BadMagic is raised when a frame header does not start with the expected
// 4-byte magic sequence.
type BadMagic struct {
	Observed [4]byte
}

func (e *BadMagic) Error() string {
	return fmt.Sprintf("bad magic: % x", e.Observed)
}

// UnsupportedProtocol is raised on a protocol major-version mismatch.
type UnsupportedProtocol struct {
	LocalMajor, LocalMinor   byte
	RemoteMajor, RemoteMinor byte
}

func (e *UnsupportedProtocol) Error() string {
	return fmt.Sprintf("unsupported protocol: peer %d.%d, local %d.%d",
		e.RemoteMajor, e.RemoteMinor, e.LocalMajor, e.LocalMinor)
}

// UnsupportedEncoding is raised on an encoding major-version mismatch.
type UnsupportedEncoding struct {
	LocalMajor, LocalMinor   byte
	RemoteMajor, RemoteMinor byte
}

func (e *UnsupportedEncoding) Error() string {
	return fmt.Sprintf("unsupported encoding: peer %d.%d, local %d.%d",
		e.RemoteMajor, e.RemoteMinor, e.LocalMajor, e.LocalMinor)
}

// FeatureNotSupported is raised when the peer requests a feature this
// core intentionally does not implement (currently: compression).
type FeatureNotSupported struct {
	Feature string
}

func (e *FeatureNotSupported) Error() string {
	return fmt.Sprintf("feature not supported: %s", e.Feature)
}

// IllegalMessageSize is raised when a declared frame size is smaller
// than the fixed header size.
type IllegalMessageSize struct {
	Size uint32
}

func (e *IllegalMessageSize) Error() string {
	return fmt.Sprintf("illegal message size: %d", e.Size)
}

// MemoryLimit is raised when a declared frame size exceeds the
// connection's configured maximum.
type MemoryLimit struct {
	Size, Max uint32
}

func (e *MemoryLimit) Error() string {
	return fmt.Sprintf("message size %d exceeds limit %d", e.Size, e.Max)
}

// UnknownException wraps an arbitrary error or recovered panic that the
// dispatch adapter cannot otherwise classify. The original Ice runtime
// carries a free-text description through this path; we do the same so
// logs retain the offending detail instead of a bare sentinel.
type UnknownException struct {
	Reason string
}

func (e *UnknownException) Error() string {
	return fmt.Sprintf("unknown exception: %s", e.Reason)
}

// LocationForward is not an error in the ordinary sense: it is raised by
// a servant (or returned by a locator) to redirect a dispatch to a
// different proxy. The dispatch adapter catches it and marshals the new
// proxy rather than propagating it to the caller.
type LocationForward struct {
	Proxy interface{}
}

func (e *LocationForward) Error() string {
	return "location forward"
}

// IsLocalException reports whether err is one of this package's typed
// local exceptions (as opposed to a transport-level I/O error or an
// opaque error from user code).
func IsLocalException(err error) bool {
	switch err.(type) {
	case simpleErr, *BadMagic, *UnsupportedProtocol, *UnsupportedEncoding,
		*FeatureNotSupported, *IllegalMessageSize, *MemoryLimit:
		return true
	}
	return false
}
