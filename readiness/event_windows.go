//go:build windows

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
	"golang.org/x/sys/windows"

	gerrors "github.com/tochemey/dthread/errors"
)

// event is a Channel backed by a manual-reset Event object. The event is set
// on the first pending token and reset when the last one is consumed.
type event struct {
	mu     sync.Mutex
	handle windows.Handle
	tokens int64
	closed *atomic.Bool
}

var _ Channel = (*event)(nil)

func newChannel() (Channel, error) {
	handle, err := windows.CreateEvent(nil, 1, 0, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	return &event{handle: handle, closed: atomic.NewBool(false)}, nil
}

// Signal implements Channel
func (e *event) Signal() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed.Load() {
		return gerrors.ErrMailboxClosed
	}

	if e.tokens == 0 {
		if err := windows.SetEvent(e.handle); err != nil {
			return fmt.Errorf("failed to signal event: %w", err)
		}
	}
	e.tokens++
	return nil
}

// ConsumeOne implements Channel
func (e *event) ConsumeOne() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed.Load() {
		return gerrors.ErrMailboxClosed
	}

	if e.tokens == 0 {
		return errNoToken()
	}

	if e.tokens == 1 {
		if err := windows.ResetEvent(e.handle); err != nil {
			return fmt.Errorf("failed to reset event: %w", err)
		}
	}
	e.tokens--
	return nil
}

// Handle implements Channel
func (e *event) Handle() Handle {
	return Handle(e.handle)
}

// Wait implements Channel
func (e *event) Wait() error {
	if e.closed.Load() {
		return gerrors.ErrMailboxClosed
	}
	if _, err := windows.WaitForSingleObject(e.handle, windows.INFINITE); err != nil {
		return fmt.Errorf("failed to wait on event: %w", err)
	}
	return nil
}

// Pending implements Channel
func (e *event) Pending() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tokens
}

// Close implements Channel
func (e *event) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	return windows.CloseHandle(e.handle)
}
