/*
 * MIT License
 *
 * Copyright (c) 2022-2025 Arsene Tochemey Gandote
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

package driver

import (
	"github.com/tochemey/dthread/dthread"
	"github.com/tochemey/dthread/term"
)

const (
	// CmdHello outputs the raw bytes "HELLO WORLD"
	CmdHello dthread.Command = 1
	// CmdXYZ outputs the term {x,y,z}
	CmdXYZ dthread.Command = 2
	// CmdEcho sends {echo, Payload} back to the caller
	CmdEcho dthread.Command = 3
)

// EchoHandler is the sample worker handler. Unknown commands are logged and
// left unanswered.
var EchoHandler = dthread.HandlerFunc(func(self *dthread.Thread, msg *dthread.Message) {
	host := msg.Sender()
	if host == nil {
		self.Logger().Warnf("dropping command %s: sender is gone", msg.Command())
		return
	}

	var err error
	switch msg.Command() {
	case CmdHello:
		err = host.Output(self, msg.Ref(), []byte("HELLO WORLD"))
	case CmdXYZ:
		var payload []byte
		if payload, err = term.Encode(term.Tuple(term.Atom("x"), term.Atom("y"), term.Atom("z"))); err == nil {
			err = host.OutputTerm(self, msg.Ref(), payload)
		}
	case CmdEcho:
		var payload []byte
		if payload, err = term.Encode(term.Tuple(term.Atom("echo"), term.Binary(msg.Payload()))); err == nil {
			err = host.SendTerm(self, msg.From(), msg.Ref(), payload)
		}
	default:
		self.Logger().Warnf("unknown command %s", msg.Command())
	}

	if err != nil {
		self.Logger().Errorf("failed to answer command %s: %v", msg.Command(), err)
	}
})
