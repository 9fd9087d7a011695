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

import "strconv"

// Command identifies the kind of a message. Positive values are free for
// the application; negative values are reserved for the runtime.
type Command int32

const (
	// CmdStop asks the dispatch loop of a worker to exit
	CmdStop Command = -1
	// CmdSendTerm carries an encoded term to an arbitrary recipient
	CmdSendTerm Command = -2
	// CmdOutputTerm carries an encoded term to the owner of the host thread
	CmdOutputTerm Command = -3
	// CmdOutput carries raw bytes to the owner of the host thread
	CmdOutput Command = -4
)

// IsReserved returns true when the command belongs to the runtime
func (c Command) IsReserved() bool {
	return c < 0
}

// String returns the command name
func (c Command) String() string {
	switch c {
	case CmdStop:
		return "Stop"
	case CmdSendTerm:
		return "SendTerm"
	case CmdOutputTerm:
		return "OutputTerm"
	case CmdOutput:
		return "Output"
	default:
		return strconv.FormatInt(int64(c), 10)
	}
}

// DeliveryMode tells how a thread hands replies to its runtime
type DeliveryMode int

const (
	// Routed queues replies to the host thread which delivers them
	// when its readiness handle fires
	Routed DeliveryMode = iota
	// Direct lets the worker call the runtime delivery primitive itself
	Direct
)

// String returns the delivery mode name
func (m DeliveryMode) String() string {
	if m == Direct {
		return "direct"
	}
	return "routed"
}
