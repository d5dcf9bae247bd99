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

// OutgoingState is the finite state of a pending two-way invocation, as
// observed by the core (spec.md §3).
type OutgoingState int

const (
	OutgoingInProgress OutgoingState = iota
	OutgoingCompletedOK
	OutgoingCompletedException
)

// Outgoing is the caller-owned handle for a pending two-way invocation.
// The core never owns one: it holds a non-owning reference while the
// request is parked in the registry and is required to clear that
// reference before (or as part of) calling either Finished method.
type Outgoing interface {
	// State reports the current completion state.
	State() OutgoingState

	// Finished delivers a successful reply buffer exactly once.
	Finished(reply []byte)

	// FinishedException delivers a fatal completion exactly once,
	// in place of a reply, whenever the invocation cannot be
	// completed successfully (timeout, connection lost, forced
	// close, and so on).
	FinishedException(err error)
}
