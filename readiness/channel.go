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

// Package readiness converts "a message is queued" into an OS-level readiness
// condition that a select/poll style loop can wait on.
//
// A Channel keeps one token per queued message. The wait side of the channel
// is readable, level-triggered, for as long as at least one token is pending.
// Signal adds a token and ConsumeOne removes exactly one; consuming without a
// pending token is a protocol violation.
//
// The implementation is chosen at build time: eventfd in semaphore mode on
// Linux, a self-pipe on the other Unix systems and a manual-reset Event object
// on Windows.
package readiness

import (
	gerrors "github.com/tochemey/dthread/errors"
)

// Handle is the wait side of a Channel as understood by the host multiplexer:
// a file descriptor on Unix and an Event HANDLE on Windows.
type Handle uintptr

// Channel is a two-ended signaling primitive paired with a mailbox.
type Channel interface {
	// Signal adds one pending token and makes the wait side ready.
	Signal() error
	// ConsumeOne removes exactly one pending token. The wait side stops being
	// ready when the last token is consumed.
	ConsumeOne() error
	// Handle returns the wait side for registration with a multiplexer.
	Handle() Handle
	// Wait blocks the calling thread until at least one token is pending.
	Wait() error
	// Pending returns the number of pending tokens.
	Pending() int64
	// Close releases the OS resources. It is safe to call more than once.
	Close() error
}

// New creates the Channel implementation of the running platform.
func New() (Channel, error) {
	return newChannel()
}

func errNoToken() error {
	return gerrors.NewProtocolViolation("readiness token consumed without a matching signal")
}
