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

// Reply is what a worker hands to the host runtime: an encoded term or raw
// bytes addressed to a recipient and correlated by ref.
type Reply struct {
	// Command is one of CmdSendTerm, CmdOutputTerm or CmdOutput
	Command Command
	// To is the recipient. Output variants are addressed to the thread owner.
	To ID
	// Ref echoes the reference of the request being answered
	Ref uint64
	// Payload is the encoded term or the raw output.
	// It is only valid for the duration of Deliver.
	Payload []byte
}

// Runtime is the host environment a thread delivers replies to
type Runtime interface {
	// DirectDelivery returns true when Deliver may be called from a worker
	// thread. Otherwise replies are routed through the host thread mailbox.
	DirectDelivery() bool
	// Deliver hands a reply to the host runtime
	Deliver(reply *Reply) error
}
