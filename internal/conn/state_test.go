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

import "testing"

func TestValidTransitions(t *testing.T) {
	allowed := map[State][]State{
		StateNotValidated: {StateActive, StateHolding, StateClosing, StateClosed},
		StateActive:       {StateHolding, StateClosing, StateClosed},
		StateHolding:      {StateActive, StateClosing, StateClosed},
		StateClosing:      {StateClosed},
		StateClosed:       {},
	}

	all := []State{StateNotValidated, StateActive, StateHolding, StateClosing, StateClosed}

	for from, oks := range allowed {
		want := map[State]bool{}
		for _, to := range oks {
			want[to] = true
		}
		for _, to := range all {
			got := validTransition(from, to)
			if got != want[to] {
				t.Errorf("validTransition(%v, %v) = %v, want %v", from, to, got, want[to])
			}
		}
	}
}

func TestClosedIsTerminal(t *testing.T) {
	for _, to := range []State{StateNotValidated, StateActive, StateHolding, StateClosing, StateClosed} {
		if validTransition(StateClosed, to) {
			t.Errorf("validTransition(Closed, %v) should never be allowed", to)
		}
	}
}

func TestClosingOnlyGoesToClosed(t *testing.T) {
	for _, to := range []State{StateNotValidated, StateActive, StateHolding} {
		if validTransition(StateClosing, to) {
			t.Errorf("validTransition(Closing, %v) should never be allowed", to)
		}
	}
	if !validTransition(StateClosing, StateClosed) {
		t.Error("validTransition(Closing, Closed) should be allowed")
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateNotValidated: "NotValidated",
		StateActive:       "Active",
		StateHolding:      "Holding",
		StateClosing:      "Closing",
		StateClosed:       "Closed",
		State(99):         "Unknown",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
}
