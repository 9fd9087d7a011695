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
	"weak"

	"go.uber.org/atomic"

	gerrors "github.com/tochemey/dthread/errors"
	"github.com/tochemey/dthread/memory"
)

// ReleaseFunc hands a borrowed payload back to its producer
type ReleaseFunc func(buf []byte, udata any)

// ownership decides what happens to the payload when the message is released
type ownership interface {
	release(buf []byte)
}

type owned struct {
	allocator memory.Allocator
}

func (o owned) release(buf []byte) {
	o.allocator.Free(buf)
}

type borrowed struct {
	fn    ReleaseFunc
	udata any
}

func (b borrowed) release(buf []byte) {
	if b.fn != nil {
		b.fn(buf, b.udata)
	}
}

// Message is the unit of transfer between threads. A message is owned by
// exactly one party at a time: the sender until Send succeeds, the mailbox
// while queued, and the receiver once dequeued. The receiver must call
// Release exactly once.
type Message struct {
	command  Command
	payload  []byte
	own      ownership
	sender   weak.Pointer[Thread]
	from     ID
	to       ID
	ref      uint64
	released atomic.Bool
}

// NewMessage creates a message whose payload is a copy of buf held in memory
// obtained from the given allocator. A nil allocator uses the heap.
func NewMessage(allocator memory.Allocator, command Command, buf []byte) (*Message, error) {
	if allocator == nil {
		allocator = memory.NewHeap()
	}

	payload, err := allocator.Alloc(len(buf))
	if err != nil {
		return nil, err
	}
	copy(payload, buf)

	return &Message{
		command: command,
		payload: payload[:len(buf)],
		own:     owned{allocator: allocator},
	}, nil
}

// NewBorrowedMessage creates a message that references buf without copying.
// The release function is called with buf and udata when the message is
// released.
func NewBorrowedMessage(command Command, release ReleaseFunc, udata any, buf []byte) *Message {
	return &Message{
		command: command,
		payload: buf,
		own:     borrowed{fn: release, udata: udata},
	}
}

// Command returns the message command
func (m *Message) Command() Command {
	return m.command
}

// Payload returns the used part of the payload.
// It panics when the message has been released.
func (m *Message) Payload() []byte {
	m.checkLive()
	return m.payload
}

// Len returns the number of used payload bytes
func (m *Message) Len() int {
	return len(m.payload)
}

// Size returns the number of bytes backing the payload
func (m *Message) Size() int {
	return cap(m.payload)
}

// Borrowed returns true when the payload is owned by the producer
func (m *Message) Borrowed() bool {
	_, ok := m.own.(borrowed)
	return ok
}

// Sender returns the thread that sent the message or nil when that thread
// no longer exists
func (m *Message) Sender() *Thread {
	return m.sender.Value()
}

// From returns the identity replies should be addressed to
func (m *Message) From() ID {
	return m.from
}

// To returns the identity of the intended recipient
func (m *Message) To() ID {
	return m.to
}

// Ref returns the correlation reference
func (m *Message) Ref() uint64 {
	return m.ref
}

// Release gives the payload back to its owner. Releasing a message twice
// panics with a protocol violation.
func (m *Message) Release() {
	if !m.released.CompareAndSwap(false, true) {
		panic(gerrors.NewProtocolViolation("message released twice"))
	}
	m.own.release(m.payload)
	m.payload = nil
}

// Released returns true once Release has been called
func (m *Message) Released() bool {
	return m.released.Load()
}

func (m *Message) checkLive() {
	if m.released.Load() {
		panic(gerrors.NewProtocolViolation("message accessed after release"))
	}
}
