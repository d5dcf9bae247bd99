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

// corewire-cat is a nanocat(1)-style command line client/server for
// exercising a Connection end to end, modeled on the teacher's macat.
package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/droundy/goopt"

	"github.com/wirecore/corewire"
	"github.com/wirecore/corewire/transport/tcp"
)

var (
	listenAddr string
	connectAddr string
	operation   string
	sendData    []byte
	recvTimeout int
	verbose     int
)

func setListen(addr string) error {
	if !strings.Contains(addr, "://") {
		return errors.New("invalid address format")
	}
	listenAddr = addr
	return nil
}

func setConnect(addr string) error {
	if !strings.Contains(addr, "://") {
		return errors.New("invalid address format")
	}
	connectAddr = addr
	return nil
}

func setData(data string) error {
	sendData = []byte(data)
	return nil
}

func fatalf(format string, v ...interface{}) {
	fmt.Fprintln(os.Stderr, fmt.Sprintf(format, v...))
	os.Exit(1)
}

func init() {
	goopt.NoArg([]string{"--verbose", "-v"}, "Increase verbosity", func() error {
		verbose++
		return nil
	})
	goopt.ReqArg([]string{"--bind", "-b"}, "ADDR", "Bind and dispatch as a server", setListen)
	goopt.ReqArg([]string{"--connect", "-c"}, "ADDR", "Connect as a client", setConnect)
	goopt.ReqArg([]string{"--operation", "-o"}, "NAME", "Operation name to invoke (client mode)",
		func(v string) error {
			operation = v
			return nil
		})
	goopt.ReqArg([]string{"--data", "-d"}, "DATA", "Request payload (client mode)", setData)
	goopt.ReqArg([]string{"--recv-timeout"}, "SEC", "Reply timeout in seconds",
		func(v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return errors.New("value not an integer")
			}
			recvTimeout = n
			return nil
		})

	goopt.Description = func() string {
		return `corewire-cat is a command-line client/server for the corewire
connection core: --bind runs an echo server, --connect sends one
request and prints the reply.`
	}
	goopt.Author = "corewire"
	goopt.Suite = "corewire"
	goopt.Summary = "command line interface to a corewire Connection"
}

// echoServant answers every operation by handing the request payload
// straight back, so corewire-cat can be used to sanity-check a wire.
type echoServant struct{}

func (echoServant) Dispatch(input []byte, output *[]byte, operation string) (corewire.DispatchStatus, error) {
	if output != nil {
		*output = append(*output, input...)
	}
	return corewire.StatusOK, nil
}

type staticAdapter struct{ servant corewire.Servant }

func (a staticAdapter) IdentityToServant(identity string) (corewire.Servant, bool) {
	return a.servant, true
}

func (a staticAdapter) ServantLocator() (corewire.ServantLocator, bool) { return nil, false }

func runServer(addr string) {
	ln, err := tcp.Listen(addr)
	if err != nil {
		fatalf("listen(%s): %v", addr, err)
	}
	fmt.Fprintf(os.Stderr, "listening on %s\n", ln.Addr())
	for {
		t, err := ln.Accept()
		if err != nil {
			fatalf("accept: %v", err)
		}
		go func() {
			c := corewire.NewConnection(t, corewire.Config{
				Endpoint:    addr,
				Description: "corewire-cat server",
				Mode:        corewire.ModeServer,
				Adapter:     staticAdapter{servant: echoServant{}},
				Logger:      &stderrLogger{},
			})
			c.WaitUntilFinished()
		}()
	}
}

type stderrLogger struct{}

func (*stderrLogger) Log(a ...interface{})            { fmt.Fprintln(os.Stderr, a...) }
func (*stderrLogger) Logf(f string, a ...interface{}) { fmt.Fprintf(os.Stderr, f+"\n", a...) }

type callback struct {
	done  chan struct{}
	reply []byte
	err   error
	state corewire.OutgoingState
}

func newCallback() *callback {
	return &callback{done: make(chan struct{}), state: corewire.OutgoingInProgress}
}

func (c *callback) State() corewire.OutgoingState { return c.state }

func (c *callback) Finished(reply []byte) {
	c.reply = reply
	c.state = corewire.OutgoingCompletedOK
	close(c.done)
}

func (c *callback) FinishedException(err error) {
	c.err = err
	c.state = corewire.OutgoingCompletedException
	close(c.done)
}

func runClient(addr, operation string, data []byte, timeout time.Duration) {
	t, err := tcp.Dial(addr)
	if err != nil {
		fatalf("dial(%s): %v", addr, err)
	}
	c := corewire.NewConnection(t, corewire.Config{
		Endpoint:    addr,
		Description: "corewire-cat client",
		Mode:        corewire.ModeBlockingClient,
		Timeout:     timeout,
		Logger:      &stderrLogger{},
	})
	if err := c.Validate(); err != nil {
		fatalf("validate: %v", err)
	}
	c.Activate()

	payload := corewire.WriteHeader(nil, corewire.MsgRequest, 4)
	payload = appendLPString(payload, "corewire-cat")
	payload = appendLPString(payload, operation)
	payload = append(payload, data...)

	cb := newCallback()
	if err := c.SendRequest(payload, cb); err != nil {
		fatalf("send_request: %v", err)
	}
	<-cb.done
	if cb.err != nil {
		fatalf("request failed: %v", cb.err)
	}
	fmt.Printf("reply: %s\n", string(cb.reply))
	c.Close(false)
	c.WaitUntilFinished()
}

// appendLPString appends a 4-byte little-endian length followed by s,
// matching the identity/operation encoding internal/conn.Dispatch reads.
func appendLPString(buf []byte, s string) []byte {
	var n [4]byte
	ln := uint32(len(s))
	n[0] = byte(ln)
	n[1] = byte(ln >> 8)
	n[2] = byte(ln >> 16)
	n[3] = byte(ln >> 24)
	buf = append(buf, n[:]...)
	buf = append(buf, s...)
	return buf
}

func main() {
	goopt.Parse(nil)

	switch {
	case listenAddr != "":
		runServer(listenAddr)
	case connectAddr != "":
		runClient(connectAddr, operation, sendData, time.Duration(recvTimeout)*time.Second)
	default:
		fatalf("specify --bind or --connect")
	}
}
