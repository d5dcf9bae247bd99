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

import (
	"strconv"
	"time"
)

// Recognized property names (see spec.md §6).
const (
	PropWarnConnections    = "Ice.Warn.Connections"
	PropBlocking           = "Ice.Blocking"
	PropOverrideConnTimeout = "Ice.Override.ConnectTimeout"
)

// Properties is a flat string-keyed configuration bag, the same shape
// the teacher's SetOption/GetOption pair exposes but read-only and
// string-typed throughout, matching how Ice properties are loaded from
// a config file or the command line.
type Properties map[string]string

// Int returns the property as an int, or def if unset or unparsable.
func (p Properties) Int(name string, def int) int {
	v, ok := p[name]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Bool returns true if the named property is set to a non-zero integer.
func (p Properties) Bool(name string) bool {
	return p.Int(name, 0) != 0
}

// Duration returns the property, interpreted as milliseconds, or def.
func (p Properties) Duration(name string, def time.Duration) time.Duration {
	v, ok := p[name]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return time.Duration(n) * time.Millisecond
}
