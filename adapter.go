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

// DispatchStatus is the single byte carried immediately after the
// request-id in a reply frame (spec.md §6, §7).
type DispatchStatus byte

const (
	StatusOK DispatchStatus = iota
	StatusObjectNotExist
	StatusLocationForward
	StatusLocalException
	StatusUnknownException
)

// Servant is the per-object request handler resolved by an
// ObjectAdapter (directly or through a ServantLocator). Dispatch reads
// the operation name out of the input before calling Dispatch, which
// then marshals a reply (for the given operation) into output and
// returns a DispatchStatus describing what happened.
type Servant interface {
	Dispatch(input []byte, output *[]byte, operation string) (DispatchStatus, error)
}

// ObjectAdapter resolves identities to servants, the way the real Ice
// object adapter does: primarily through a direct servant map, falling
// back to a locator when no direct registration exists.
type ObjectAdapter interface {
	IdentityToServant(identity string) (Servant, bool)
	ServantLocator() (ServantLocator, bool)
}

// ServantLocator is consulted by the dispatch adapter when an identity
// has no direct servant registration. Finished is always called exactly
// once per Locate that returned a non-nil servant, on every exit path
// (including exceptions), so the locator can release per-dispatch state
// such as a borrowed database connection.
type ServantLocator interface {
	Locate(adapter ObjectAdapter, identity, operation string) (servant Servant, cookie interface{}, err error)
	Finished(adapter ObjectAdapter, identity string, servant Servant, operation string, cookie interface{})
	Deactivate()
}
