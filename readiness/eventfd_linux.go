//go:build linux

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

package readiness

import (
	"encoding/binary"
	"errors"
	"fmt"

	"go.uber.org/atomic"
	"golang.org/x/sys/unix"

	gerrors "github.com/tochemey/dthread/errors"
)

// eventFD is a Channel backed by an eventfd in semaphore mode: every write of 1
// increments the kernel counter and every read decrements it by exactly one.
type eventFD struct {
	fd      int
	pending *atomic.Int64
	closed  *atomic.Bool
}

var _ Channel = (*eventFD)(nil)

func newChannel() (Channel, error) {
	fd, err := unix.Eventfd(0, unix.EFD_SEMAPHORE|unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("failed to create eventfd: %w", err)
	}
	return &eventFD{
		fd:      fd,
		pending: atomic.NewInt64(0),
		closed:  atomic.NewBool(false),
	}, nil
}

// Signal implements Channel
func (e *eventFD) Signal() error {
	if e.closed.Load() {
		return gerrors.ErrMailboxClosed
	}

	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	e.pending.Inc()
	if err := retryEINTR(func() error {
		_, err := unix.Write(e.fd, buf[:])
		return err
	}); err != nil {
		e.pending.Dec()
		return fmt.Errorf("failed to signal eventfd: %w", err)
	}
	return nil
}

// ConsumeOne implements Channel
func (e *eventFD) ConsumeOne() error {
	if e.closed.Load() {
		return gerrors.ErrMailboxClosed
	}

	var buf [8]byte
	err := retryEINTR(func() error {
		_, err := unix.Read(e.fd, buf[:])
		return err
	})

	switch {
	case errors.Is(err, unix.EAGAIN):
		return errNoToken()
	case err != nil:
		return fmt.Errorf("failed to consume eventfd token: %w", err)
	}

	e.pending.Dec()
	return nil
}

// Handle implements Channel
func (e *eventFD) Handle() Handle {
	return Handle(e.fd)
}

// Wait implements Channel
func (e *eventFD) Wait() error {
	return waitReadable(e.fd, e.closed)
}

// Pending implements Channel
func (e *eventFD) Pending() int64 {
	return e.pending.Load()
}

// Close implements Channel
func (e *eventFD) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	return unix.Close(e.fd)
}
