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

//go:build !unix

package tcp

import (
	"net"
	"time"
)

// setKeepAlive falls back to net.TCPConn's portable API on platforms
// (Windows, plan9, js) without the unix setsockopt path.
func setKeepAlive(conn *net.TCPConn, period time.Duration) {
	if period <= 0 {
		conn.SetKeepAlive(false)
		return
	}
	conn.SetKeepAlive(true)
	conn.SetKeepAlivePeriod(period)
}
