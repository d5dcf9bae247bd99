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
	"encoding/binary"
	"fmt"

	"github.com/wirecore/corewire"
)

// Dispatch implements the server-side dispatch adapter of spec.md §4.7:
// decode identity+operation, resolve a servant (direct lookup, then
// locator), invoke it, and marshal the reply status byte. output may be
// nil for one-way invocations, in which case no status byte is ever
// written but servant.Dispatch still runs and local exceptions still
// propagate to the caller (worker.dispatchOne uses that to close the
// connection on a one-way dispatch failure).
func Dispatch(adapter corewire.ObjectAdapter, input []byte, output *[]byte) (status corewire.DispatchStatus, err error) {
	identity, rest, err := readLPString(input)
	if err != nil {
		return corewire.StatusUnknownException, &corewire.UnknownException{Reason: err.Error()}
	}
	operation, rest, err := readLPString(rest)
	if err != nil {
		return corewire.StatusUnknownException, &corewire.UnknownException{Reason: err.Error()}
	}

	statusPos := -1
	if output != nil {
		statusPos = len(*output)
		*output = append(*output, byte(corewire.StatusOK))
	}

	servant, ok := adapter.IdentityToServant(identity)

	var locator corewire.ServantLocator
	var cookie interface{}
	usingLocator := false

	if !ok {
		if loc, hasLoc := adapter.ServantLocator(); hasLoc {
			var lerr error
			servant, cookie, lerr = loc.Locate(adapter, identity, operation)
			if lerr != nil {
				writeStatus(output, statusPos, corewire.StatusLocalException)
				return corewire.StatusLocalException, lerr
			}
			if servant != nil {
				locator = loc
				usingLocator = true
			}
		}
	}

	if usingLocator {
		defer locator.Finished(adapter, identity, servant, operation, cookie)
	}

	if servant == nil {
		writeStatus(output, statusPos, corewire.StatusObjectNotExist)
		return corewire.StatusObjectNotExist, nil
	}

	status, err = invokeServant(servant, rest, output, operation)

	switch e := err.(type) {
	case nil:
		writeStatus(output, statusPos, status)
		return status, nil
	case *corewire.LocationForward:
		truncate(output, statusPos)
		if output != nil {
			*output = append(*output, byte(corewire.StatusLocationForward))
			marshalProxy(output, e.Proxy)
		}
		return corewire.StatusLocationForward, nil
	default:
		truncate(output, statusPos)
		if output != nil {
			*output = append(*output, byte(corewire.StatusLocalException))
		}
		if corewire.IsLocalException(err) {
			return corewire.StatusLocalException, err
		}
		if output != nil {
			(*output)[len(*output)-1] = byte(corewire.StatusUnknownException)
		}
		if ue, ok := err.(*corewire.UnknownException); ok {
			// already wrapped by invokeServant's panic recovery
			return corewire.StatusUnknownException, ue
		}
		ue := &corewire.UnknownException{Reason: err.Error()}
		return corewire.StatusUnknownException, ue
	}
}

// invokeServant calls servant.Dispatch, converting a panic into the
// same UnknownException path a non-LocalException error would take.
func invokeServant(servant corewire.Servant, input []byte, output *[]byte, operation string) (status corewire.DispatchStatus, err error) {
	defer func() {
		if r := recover(); r != nil {
			status = corewire.StatusUnknownException
			err = &corewire.UnknownException{Reason: fmt.Sprint(r)}
		}
	}()
	return servant.Dispatch(input, output, operation)
}

// writeStatus patches the final status byte over the provisional one at
// statusPos. It is a no-op for one-way dispatch (output == nil).
func writeStatus(output *[]byte, statusPos int, status corewire.DispatchStatus) {
	if output == nil || statusPos < 0 || statusPos >= len(*output) {
		return
	}
	(*output)[statusPos] = byte(status)
}

// truncate drops everything the servant wrote at and after statusPos,
// so the caller can rewrite a clean status+payload for the exception
// cases (spec.md §4.7's exception table).
func truncate(output *[]byte, statusPos int) {
	if output == nil || statusPos < 0 {
		return
	}
	*output = (*output)[:statusPos]
}

// marshalProxy writes a minimal length-prefixed string form of the
// forwarded proxy. Full proxy marshalling (endpoints, facets) is a
// user-level concern outside this core's scope (spec.md §1 non-goals);
// callers that need it supply a fmt.Stringer-compatible proxy.
func marshalProxy(output *[]byte, proxy interface{}) {
	s := fmt.Sprint(proxy)
	writeLPString(output, s)
}

func readLPString(buf []byte) (string, []byte, error) {
	if len(buf) < 4 {
		return "", nil, fmt.Errorf("truncated length-prefixed string")
	}
	n := binary.LittleEndian.Uint32(buf)
	if uint32(len(buf)-4) < n {
		return "", nil, fmt.Errorf("truncated length-prefixed string body")
	}
	return string(buf[4 : 4+n]), buf[4+n:], nil
}

func writeLPString(output *[]byte, s string) {
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(s)))
	*output = append(*output, n[:]...)
	*output = append(*output, s...)
}
