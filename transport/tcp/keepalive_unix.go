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

//go:build unix

package tcp

import (
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// setKeepAlive enables TCP keepalive and tunes the idle interval via
// setsockopt, going one layer below net.TCPConn.SetKeepAlivePeriod so
// the idle timer (TCP_KEEPIDLE / TCP_KEEPALIVE) is set directly rather
// than relying on the OS default.
func setKeepAlive(conn *net.TCPConn, period time.Duration) {
	if period <= 0 {
		conn.SetKeepAlive(false)
		return
	}
	conn.SetKeepAlive(true)
	secs := int(period.Seconds())
	if secs < 1 {
		secs = 1
	}
	raw, err := conn.SyscallConn()
	if err != nil {
		return
	}
	raw.Control(func(fd uintptr) {
		setKeepAliveIdle(int(fd), secs)
	})
}
