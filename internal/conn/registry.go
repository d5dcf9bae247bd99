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

import "github.com/wirecore/corewire"

// pendingEntry pairs a request-id with its Outgoing and a place in the
// insertion-order list, so the hint can advance to "the next one
// inserted" in O(1) once the current hint is resolved or removed.
type pendingEntry struct {
	node listNode // value holds *pendingEntry
	id   uint32
	out  corewire.Outgoing
}

// outgoingRegistry is an ordered map from positive request-id to a
// pending Outgoing, plus an iterator hint at the most recently
// inserted/looked-up entry (spec.md §3, §4.6). Not safe for concurrent
// use; the Connection serializes access under its own locks per the
// two-lock discipline in spec.md §5.
type outgoingRegistry struct {
	byID map[uint32]*pendingEntry
	order list
	hint  *pendingEntry
}

func newOutgoingRegistry() *outgoingRegistry {
	r := &outgoingRegistry{byID: make(map[uint32]*pendingEntry)}
	r.order.init()
	return r
}

// insert adds a new pending entry. id must be unique and positive; the
// caller (Connection.sendRequest) is responsible for that invariant.
func (r *outgoingRegistry) insert(id uint32, out corewire.Outgoing) {
	e := &pendingEntry{id: id, out: out}
	e.node.value = e
	r.order.insertTail(&e.node)
	r.byID[id] = e
	r.hint = e
}

// lookup finds the pending entry for id, preferring the hint (spec.md
// §4.6: "look up the id, preferring the hint").
func (r *outgoingRegistry) lookup(id uint32) (*pendingEntry, bool) {
	if r.hint != nil && r.hint.id == id {
		return r.hint, true
	}
	e, ok := r.byID[id]
	if ok {
		r.hint = e
	}
	return e, ok
}

// erase removes e from the registry and advances the hint to whatever
// was inserted immediately after e, matching spec.md §4.6 ("update hint
// to the next iterator").
func (r *outgoingRegistry) erase(e *pendingEntry) {
	next := r.order.remove(&e.node)
	delete(r.byID, e.id)
	if r.hint == e {
		if next != nil {
			r.hint = next.value.(*pendingEntry)
		} else {
			r.hint = nil
		}
	}
}

func (r *outgoingRegistry) empty() bool {
	return len(r.byID) == 0
}

func (r *outgoingRegistry) len() int {
	return len(r.byID)
}

// drainWithException completes and erases every pending outgoing with
// err, used when the connection transitions to Closing/Closed with
// requests still parked (spec.md §4.6).
func (r *outgoingRegistry) drainWithException(err error) {
	for n := r.order.headNode(); n != nil; {
		e := n.value.(*pendingEntry)
		n = n.next
		if n == &r.order.listNode {
			n = nil
		}
		delete(r.byID, e.id)
		e.out.FinishedException(err)
	}
	r.order.next = &r.order.listNode
	r.order.prev = &r.order.listNode
	r.hint = nil
}
