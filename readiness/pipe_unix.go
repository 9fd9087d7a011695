//go:build unix && !linux

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
	"fmt"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"golang.org/x/sys/unix"

	gerrors "github.com/tochemey/dthread/errors"
)

// selfPipe is a Channel backed by a pipe. The token count is kept in memory and
// a single byte sits in the pipe while it is non-zero, so producers never block
// on a full pipe buffer.
type selfPipe struct {
	mu     sync.Mutex
	r, w   int
	tokens int64
	closed *atomic.Bool
}

var _ Channel = (*selfPipe)(nil)

func newChannel() (Channel, error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return nil, fmt.Errorf("failed to create pipe: %w", err)
	}

	for _, fd := range fds {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			return nil, multierr.Combine(
				fmt.Errorf("failed to set pipe non-blocking: %w", err),
				unix.Close(fds[0]),
				unix.Close(fds[1]))
		}
	}

	return &selfPipe{
		r:      fds[0],
		w:      fds[1],
		closed: atomic.NewBool(false),
	}, nil
}

// Signal implements Channel
func (p *selfPipe) Signal() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed.Load() {
		return gerrors.ErrMailboxClosed
	}

	if p.tokens == 0 {
		if err := retryEINTR(func() error {
			_, err := unix.Write(p.w, []byte{'W'})
			return err
		}); err != nil {
			return fmt.Errorf("failed to signal pipe: %w", err)
		}
	}
	p.tokens++
	return nil
}

// ConsumeOne implements Channel
func (p *selfPipe) ConsumeOne() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed.Load() {
		return gerrors.ErrMailboxClosed
	}

	if p.tokens == 0 {
		return errNoToken()
	}

	if p.tokens == 1 {
		var buf [1]byte
		if err := retryEINTR(func() error {
			_, err := unix.Read(p.r, buf[:])
			return err
		}); err != nil {
			return fmt.Errorf("failed to consume pipe token: %w", err)
		}
	}
	p.tokens--
	return nil
}

// Handle implements Channel
func (p *selfPipe) Handle() Handle {
	return Handle(p.r)
}

// Wait implements Channel
func (p *selfPipe) Wait() error {
	return waitReadable(p.r, p.closed)
}

// Pending implements Channel
func (p *selfPipe) Pending() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tokens
}

// Close implements Channel
func (p *selfPipe) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return multierr.Combine(unix.Close(p.r), unix.Close(p.w))
}
