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
	"sync"

	"go.uber.org/multierr"

	gerrors "github.com/tochemey/dthread/errors"
	"github.com/tochemey/dthread/internal/queue"
	"github.com/tochemey/dthread/readiness"
)

// Mailbox is a multi-producer single-consumer FIFO of messages paired with a
// readiness channel. Every queued message is matched by exactly one pending
// token on the channel.
type Mailbox struct {
	mu      sync.Mutex
	queue   *queue.Queue[*Message]
	channel readiness.Channel
	closed  bool
}

// NewMailbox creates an empty Mailbox
func NewMailbox() (*Mailbox, error) {
	channel, err := readiness.New()
	if err != nil {
		return nil, err
	}
	return &Mailbox{
		queue:   queue.New[*Message](),
		channel: channel,
	}, nil
}

// Put appends the message and signals the readiness channel.
// On error the caller keeps the ownership of the message.
func (m *Mailbox) Put(msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return gerrors.ErrMailboxClosed
	}

	m.queue.Push(msg)
	if err := m.channel.Signal(); err != nil {
		m.queue.PopBack()
		return err
	}
	return nil
}

// Get removes the oldest message or returns nil when the mailbox is empty.
// Its token is not consumed; call ConsumeOne once per returned message.
func (m *Mailbox) Get() *Message {
	m.mu.Lock()
	msg, _ := m.queue.Pop()
	m.mu.Unlock()
	return msg
}

// Peek returns the oldest message without removing it
func (m *Mailbox) Peek() *Message {
	m.mu.Lock()
	msg, _ := m.queue.Peek()
	m.mu.Unlock()
	return msg
}

// Len returns the number of queued messages
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.Len()
}

// IsEmpty returns true when no message is queued
func (m *Mailbox) IsEmpty() bool {
	return m.Len() == 0
}

// Pending returns the number of tokens on the readiness channel
func (m *Mailbox) Pending() int64 {
	return m.channel.Pending()
}

// ConsumeOne removes one token from the readiness channel
func (m *Mailbox) ConsumeOne() error {
	return m.channel.ConsumeOne()
}

// Wait blocks until at least one token is pending
func (m *Mailbox) Wait() error {
	return m.channel.Wait()
}

// Handle returns the readiness handle to register with a multiplexer
func (m *Mailbox) Handle() readiness.Handle {
	return m.channel.Handle()
}

// Dispose closes the mailbox, releases every message still queued and
// closes the readiness channel. Subsequent Put calls fail with
// ErrMailboxClosed.
func (m *Mailbox) Dispose() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	remaining := m.queue.Drain()
	m.mu.Unlock()

	var err error
	for _, msg := range remaining {
		err = multierr.Append(err, m.channel.ConsumeOne())
		msg.Release()
	}
	return multierr.Append(err, m.channel.Close())
}
