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

// State is one of the five Connection lifecycle states (spec.md §4.2).
// Numeric values follow lifecycle order so that checks such as
// state >= StateClosing can use a plain comparison. The state value is
// not monotonic: Holding -> Active is a valid transition.
type State int

const (
	StateNotValidated State = iota
	StateActive
	StateHolding
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNotValidated:
		return "NotValidated"
	case StateActive:
		return "Active"
	case StateHolding:
		return "Holding"
	case StateClosing:
		return "Closing"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// validTransition implements the transition table from spec.md §4.2.
// Server-only transitions (to Holding) are gated by the caller checking
// mode, not here: the table itself doesn't know about modes.
func validTransition(from, to State) bool {
	switch from {
	case StateNotValidated:
		return to == StateActive || to == StateHolding || to == StateClosing || to == StateClosed
	case StateActive:
		return to == StateHolding || to == StateClosing || to == StateClosed
	case StateHolding:
		return to == StateActive || to == StateClosing || to == StateClosed
	case StateClosing:
		return to == StateClosed
	case StateClosed:
		return false
	}
	return false
}

// Mode selects the connection's scheduling discipline (spec.md §5).
type Mode int

const (
	ModeBlockingClient Mode = iota
	ModeNonBlocking
	ModeServer
)
