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
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/wirecore/corewire"
)

type fakeOutgoing struct {
	state    corewire.OutgoingState
	reply    []byte
	finalErr error
}

func (o *fakeOutgoing) State() corewire.OutgoingState { return o.state }

func (o *fakeOutgoing) Finished(reply []byte) {
	o.reply = reply
	o.state = corewire.OutgoingCompletedOK
}

func (o *fakeOutgoing) FinishedException(err error) {
	o.finalErr = err
	o.state = corewire.OutgoingCompletedException
}

func TestOutgoingRegistry(t *testing.T) {
	Convey("Given an empty outgoing registry", t, func() {
		r := newOutgoingRegistry()
		So(r.empty(), ShouldBeTrue)

		Convey("inserting an entry makes it the hint", func() {
			o := &fakeOutgoing{}
			r.insert(1, o)
			So(r.empty(), ShouldBeFalse)
			So(r.len(), ShouldEqual, 1)

			e, ok := r.lookup(1)
			So(ok, ShouldBeTrue)
			So(e.out, ShouldEqual, o)
			So(r.hint, ShouldEqual, e)
		})

		Convey("lookup of a missing id fails", func() {
			_, ok := r.lookup(99)
			So(ok, ShouldBeFalse)
		})

		Convey("erase advances the hint to the next inserted entry", func() {
			o1 := &fakeOutgoing{}
			o2 := &fakeOutgoing{}
			r.insert(1, o1)
			r.insert(2, o2)

			e1, _ := r.lookup(1)
			r.erase(e1)

			So(r.len(), ShouldEqual, 1)
			_, ok := r.lookup(1)
			So(ok, ShouldBeFalse)

			e2, ok := r.lookup(2)
			So(ok, ShouldBeTrue)
			So(r.hint, ShouldEqual, e2)
		})

		Convey("erasing the last entry clears the hint", func() {
			o1 := &fakeOutgoing{}
			r.insert(1, o1)
			e1, _ := r.lookup(1)
			r.erase(e1)
			So(r.hint, ShouldBeNil)
			So(r.empty(), ShouldBeTrue)
		})

		Convey("drainWithException completes every pending outgoing and empties the registry", func() {
			o1 := &fakeOutgoing{}
			o2 := &fakeOutgoing{}
			r.insert(1, o1)
			r.insert(2, o2)

			boom := corewire.ErrConnectionLost
			r.drainWithException(boom)

			So(r.empty(), ShouldBeTrue)
			So(o1.state, ShouldEqual, corewire.OutgoingCompletedException)
			So(o1.finalErr, ShouldEqual, boom)
			So(o2.state, ShouldEqual, corewire.OutgoingCompletedException)
			So(o2.finalErr, ShouldEqual, boom)
		})
	})
}
