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

package dthread

import (
	"context"
	"errors"
	"time"

	gerrors "github.com/tochemey/dthread/errors"
	"github.com/tochemey/dthread/log"
)

// Handler processes the user commands received by a thread.
// The message is released once Handle returns.
type Handler interface {
	Handle(self *Thread, msg *Message)
}

// HandlerFunc adapts a function to the Handler interface
type HandlerFunc func(self *Thread, msg *Message)

// Handle implements Handler
func (f HandlerFunc) Handle(self *Thread, msg *Message) {
	f(self, msg)
}

// Serve returns a RunFunc running the dispatch loop with handler
func Serve(handler Handler) RunFunc {
	return func(self *Thread) any {
		return Dispatch(self, handler)
	}
}

// Dispatch is the worker loop: it blocks on the mailbox readiness, handles one
// message per wakeup and returns when it dequeues a stop request. The return
// value is nil on a requested stop and the wait error otherwise.
func Dispatch(self *Thread, handler Handler) any {
	for {
		if err := self.mailbox.Wait(); err != nil {
			self.logger.Errorf("dispatch loop aborted: %v", err)
			return err
		}

		msg, _ := self.Recv()
		if msg == nil {
			continue
		}

		if msg.Command() == CmdStop {
			msg.Release()
			return nil
		}

		self.handle(handler, msg)
	}
}

// HandleReady is called by the host when the readiness handle of its thread
// fires. It dequeues one message: replies routed by workers are handed to the
// runtime and user commands go to handler. It returns false when the mailbox
// was empty.
func HandleReady(self *Thread, handler Handler) (bool, error) {
	msg, _ := self.Recv()
	if msg == nil {
		return false, nil
	}

	switch msg.Command() {
	case CmdSendTerm, CmdOutputTerm, CmdOutput:
		defer msg.Release()
		return true, self.deliver(&Reply{
			Command: msg.Command(),
			To:      msg.To(),
			Ref:     msg.Ref(),
			Payload: msg.Payload(),
		})
	case CmdStop:
		self.logger.Warn("stop request ignored by host thread")
		msg.Release()
		return true, nil
	default:
		self.handle(handler, msg)
		return true, nil
	}
}

// handle runs handler on msg and releases msg afterward, even when handler
// panics. A protocol violation raised by handler is not recovered.
func (t *Thread) handle(handler Handler, msg *Message) {
	start := time.Now()
	defer func() {
		r := recover()
		if isProtocolViolation(r) {
			t.logger.Errorf("protocol violation on command %s: %v", msg.Command(), r)
			panic(r)
		}
		if r != nil {
			t.logger.Errorf("handler panicked on command %s: %v", msg.Command(), r)
		}

		if !msg.Released() {
			msg.Release()
		}

		elapsed := time.Since(start)
		if t.logger.Enabled(log.DebugLevel) {
			t.logger.Debugf("command %s handled in %s", msg.Command(), elapsed)
		}

		if t.metrics != nil {
			ctx := context.Background()
			t.metrics.ProcessedCount().Add(ctx, 1, t.metricAttrs)
			t.metrics.ProcessingDuration().Record(ctx, elapsed.Milliseconds(), t.metricAttrs)
		}
	}()

	if handler == nil {
		t.logger.Warnf("no handler for command %s", msg.Command())
		return
	}
	handler.Handle(t, msg)
}

// isProtocolViolation reports whether a recovered value is a protocol
// violation. Those break the single ownership of messages and must not be
// recovered.
func isProtocolViolation(r any) bool {
	err, ok := r.(error)
	return ok && errors.Is(err, gerrors.ErrProtocolViolation)
}
