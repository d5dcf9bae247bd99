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
	"errors"
	"testing"

	"github.com/wirecore/corewire"
)

type fakeServant struct {
	status corewire.DispatchStatus
	err    error
	panics bool
	echo   bool
}

func (s *fakeServant) Dispatch(input []byte, output *[]byte, operation string) (corewire.DispatchStatus, error) {
	if s.panics {
		panic("servant exploded")
	}
	if s.echo && output != nil {
		*output = append(*output, input...)
	}
	return s.status, s.err
}

type fakeAdapter struct {
	servant corewire.Servant
	locator corewire.ServantLocator
}

func (a *fakeAdapter) IdentityToServant(identity string) (corewire.Servant, bool) {
	if a.servant == nil {
		return nil, false
	}
	return a.servant, true
}

func (a *fakeAdapter) ServantLocator() (corewire.ServantLocator, bool) {
	if a.locator == nil {
		return nil, false
	}
	return a.locator, true
}

type fakeLocator struct {
	servant    corewire.Servant
	err        error
	finishedID string
	finishedOp string
	calls      int
}

func (l *fakeLocator) Locate(adapter corewire.ObjectAdapter, identity, operation string) (corewire.Servant, interface{}, error) {
	if l.err != nil {
		return nil, nil, l.err
	}
	return l.servant, "cookie", nil
}

func (l *fakeLocator) Finished(adapter corewire.ObjectAdapter, identity string, servant corewire.Servant, operation string, cookie interface{}) {
	l.calls++
	l.finishedID = identity
	l.finishedOp = operation
}

func (l *fakeLocator) Deactivate() {}

func encodeRequest(identity, operation string, body []byte) []byte {
	buf := appendLP(nil, identity)
	buf = appendLP(buf, operation)
	buf = append(buf, body...)
	return buf
}

func appendLP(buf []byte, s string) []byte {
	var n [4]byte
	ln := uint32(len(s))
	n[0], n[1], n[2], n[3] = byte(ln), byte(ln>>8), byte(ln>>16), byte(ln>>24)
	buf = append(buf, n[:]...)
	buf = append(buf, s...)
	return buf
}

func TestDispatchDirectServantSuccess(t *testing.T) {
	servant := &fakeServant{status: corewire.StatusOK, echo: true}
	adapter := &fakeAdapter{servant: servant}

	input := encodeRequest("widget", "ping", []byte("hello"))
	var output []byte
	status, err := Dispatch(adapter, input, &output)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != corewire.StatusOK {
		t.Fatalf("status = %v, want StatusOK", status)
	}
	if output[0] != byte(corewire.StatusOK) {
		t.Fatalf("status byte = %d, want %d", output[0], corewire.StatusOK)
	}
	if string(output[1:]) != "hello" {
		t.Fatalf("echoed body = %q, want %q", output[1:], "hello")
	}
}

func TestDispatchObjectNotExist(t *testing.T) {
	adapter := &fakeAdapter{}
	input := encodeRequest("widget", "ping", nil)
	var output []byte
	status, err := Dispatch(adapter, input, &output)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != corewire.StatusObjectNotExist {
		t.Fatalf("status = %v, want StatusObjectNotExist", status)
	}
	if len(output) != 1 || output[0] != byte(corewire.StatusObjectNotExist) {
		t.Fatalf("output = %v, want single ObjectNotExist byte", output)
	}
}

func TestDispatchViaLocator(t *testing.T) {
	servant := &fakeServant{status: corewire.StatusOK}
	locator := &fakeLocator{servant: servant}
	adapter := &fakeAdapter{locator: locator}

	input := encodeRequest("widget", "ping", nil)
	var output []byte
	status, err := Dispatch(adapter, input, &output)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != corewire.StatusOK {
		t.Fatalf("status = %v, want StatusOK", status)
	}
	if locator.calls != 1 {
		t.Fatalf("locator.Finished called %d times, want 1", locator.calls)
	}
	if locator.finishedID != "widget" || locator.finishedOp != "ping" {
		t.Fatalf("locator.Finished got (%q, %q)", locator.finishedID, locator.finishedOp)
	}
}

func TestDispatchLocatorError(t *testing.T) {
	locator := &fakeLocator{err: errors.New("locator boom")}
	adapter := &fakeAdapter{locator: locator}

	input := encodeRequest("widget", "ping", nil)
	var output []byte
	status, err := Dispatch(adapter, input, &output)

	if err == nil {
		t.Fatal("expected an error")
	}
	if status != corewire.StatusLocalException {
		t.Fatalf("status = %v, want StatusLocalException", status)
	}
	if locator.calls != 0 {
		t.Fatal("Finished must not run when Locate itself failed")
	}
}

func TestDispatchLocalException(t *testing.T) {
	servant := &fakeServant{err: corewire.ErrConnectionLost}
	adapter := &fakeAdapter{servant: servant}

	input := encodeRequest("widget", "ping", nil)
	var output []byte
	status, err := Dispatch(adapter, input, &output)

	if !errors.Is(err, corewire.ErrConnectionLost) {
		t.Fatalf("err = %v, want ErrConnectionLost", err)
	}
	if status != corewire.StatusLocalException {
		t.Fatalf("status = %v, want StatusLocalException", status)
	}
	if output[len(output)-1] != byte(corewire.StatusLocalException) {
		t.Fatalf("last output byte should be the LocalException status")
	}
}

func TestDispatchUnknownExceptionFromPanic(t *testing.T) {
	servant := &fakeServant{panics: true}
	adapter := &fakeAdapter{servant: servant}

	input := encodeRequest("widget", "ping", nil)
	var output []byte
	status, err := Dispatch(adapter, input, &output)

	if err == nil {
		t.Fatal("expected an error from the recovered panic")
	}
	if status != corewire.StatusUnknownException {
		t.Fatalf("status = %v, want StatusUnknownException", status)
	}
	ue, ok := err.(*corewire.UnknownException)
	if !ok {
		t.Fatalf("err type = %T, want *corewire.UnknownException", err)
	}
	if ue.Reason != "servant exploded" {
		t.Fatalf("reason = %q", ue.Reason)
	}
}

func TestDispatchUnknownExceptionFromOpaqueError(t *testing.T) {
	servant := &fakeServant{err: errors.New("opaque failure")}
	adapter := &fakeAdapter{servant: servant}

	input := encodeRequest("widget", "ping", nil)
	var output []byte
	status, err := Dispatch(adapter, input, &output)

	if status != corewire.StatusUnknownException {
		t.Fatalf("status = %v, want StatusUnknownException", status)
	}
	if _, ok := err.(*corewire.UnknownException); !ok {
		t.Fatalf("err type = %T, want *corewire.UnknownException", err)
	}
}

func TestDispatchLocationForward(t *testing.T) {
	fwd := &corewire.LocationForward{Proxy: "widget2@adapter"}
	servant := &fakeServant{err: fwd}
	adapter := &fakeAdapter{servant: servant}

	input := encodeRequest("widget", "ping", nil)
	var output []byte
	status, err := Dispatch(adapter, input, &output)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != corewire.StatusLocationForward {
		t.Fatalf("status = %v, want StatusLocationForward", status)
	}
	if output[0] != byte(corewire.StatusLocationForward) {
		t.Fatalf("status byte wrong")
	}
}

func TestDispatchOneWayNilOutput(t *testing.T) {
	servant := &fakeServant{status: corewire.StatusOK}
	adapter := &fakeAdapter{servant: servant}

	input := encodeRequest("widget", "ping", nil)
	status, err := Dispatch(adapter, input, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != corewire.StatusOK {
		t.Fatalf("status = %v, want StatusOK", status)
	}
}
