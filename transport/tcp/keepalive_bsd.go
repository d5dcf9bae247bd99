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

//go:build unix && !linux && !darwin

package tcp

// setKeepAliveIdle is a no-op on BSD variants without a portable
// setsockopt name in x/sys/unix for the idle timer; SetKeepAlive(true)
// alone (done by the caller before this runs) still gets the OS
// default keepalive behavior.
func setKeepAliveIdle(fd int, secs int) {}
