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

// Package poller is a minimal host event loop: it waits on a set of
// readiness handles and invokes the callback registered for each handle
// that is ready. Handles are level-triggered, so a callback keeps firing on
// every Poll until its readiness condition is cleared.
package poller

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"

	gerrors "github.com/tochemey/dthread/errors"
	"github.com/tochemey/dthread/log"
	"github.com/tochemey/dthread/readiness"
)

// Callback is invoked on the polling thread when its handle is ready
type Callback func()

// Poller multiplexes readiness handles
type Poller struct {
	mu        sync.Mutex
	callbacks map[readiness.Handle]Callback

	// runMu is held for the duration of a Poll or Run
	runMu   sync.Mutex
	wake    readiness.Channel
	stopped *atomic.Bool
	logger  log.Logger
}

// Option is the interface that applies a poller option
type Option interface {
	// Apply sets the Option value of a poller.
	Apply(p *Poller)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(p *Poller)

// Apply sets the Option value of a poller.
func (f OptionFunc) Apply(p *Poller) {
	f(p)
}

// WithLogger sets the poller logger
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(p *Poller) {
		p.logger = logger
	})
}

// New creates a Poller
func New(opts ...Option) (*Poller, error) {
	wake, err := readiness.New()
	if err != nil {
		return nil, err
	}

	p := &Poller{
		callbacks: make(map[readiness.Handle]Callback),
		wake:      wake,
		stopped:   atomic.NewBool(false),
		logger:    log.DefaultLogger,
	}

	for _, opt := range opts {
		opt.Apply(p)
	}
	return p, nil
}

// Register watches handle and calls callback whenever it is ready
func (p *Poller) Register(handle readiness.Handle, callback Callback) error {
	if p.stopped.Load() {
		return gerrors.ErrPollerStopped
	}

	p.mu.Lock()
	if _, ok := p.callbacks[handle]; ok {
		p.mu.Unlock()
		return gerrors.ErrHandleAlreadyRegistered
	}
	p.callbacks[handle] = callback
	p.mu.Unlock()

	p.logger.Debugf("handle %d registered", handle)
	return p.Wakeup()
}

// Deregister stops watching handle
func (p *Poller) Deregister(handle readiness.Handle) error {
	p.mu.Lock()
	if _, ok := p.callbacks[handle]; !ok {
		p.mu.Unlock()
		return gerrors.ErrHandleNotRegistered
	}
	delete(p.callbacks, handle)
	p.mu.Unlock()

	p.logger.Debugf("handle %d deregistered", handle)
	if p.stopped.Load() {
		return nil
	}
	return p.Wakeup()
}

// Len returns the number of registered handles
func (p *Poller) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.callbacks)
}

// Wakeup interrupts a blocked Poll so that it picks up registration changes
func (p *Poller) Wakeup() error {
	if p.wake.Pending() > 0 {
		return nil
	}
	return p.wake.Signal()
}

// Poll waits up to timeout for registered handles to become ready and runs
// their callbacks. A negative timeout waits indefinitely. It returns the
// number of callbacks invoked.
func (p *Poller) Poll(timeout time.Duration) (int, error) {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	return p.poll(timeout)
}

// Run polls until ctx is done or the poller is stopped
func (p *Poller) Run(ctx context.Context) error {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		if err := p.Wakeup(); err != nil {
			p.logger.Warnf("failed to wake up poller: %v", err)
		}
	})
	defer stop()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if _, err := p.poll(-1); err != nil {
			if p.stopped.Load() {
				return nil
			}
			return err
		}
	}
}

// Stop wakes up a running loop, waits for it to return and releases the
// poller resources. It must not be called from a callback.
func (p *Poller) Stop() error {
	if !p.stopped.CompareAndSwap(false, true) {
		return nil
	}

	if err := p.wake.Signal(); err != nil {
		p.logger.Warnf("failed to wake up poller: %v", err)
	}

	p.runMu.Lock()
	defer p.runMu.Unlock()

	p.mu.Lock()
	clear(p.callbacks)
	p.mu.Unlock()
	return p.wake.Close()
}

func (p *Poller) poll(timeout time.Duration) (int, error) {
	if p.stopped.Load() {
		return 0, gerrors.ErrPollerStopped
	}

	wake := p.wake.Handle()
	p.mu.Lock()
	handles := make([]readiness.Handle, 0, len(p.callbacks)+1)
	handles = append(handles, wake)
	for handle := range p.callbacks {
		handles = append(handles, handle)
	}
	p.mu.Unlock()

	ready, err := waitHandles(handles, timeout)
	if err != nil {
		return 0, err
	}

	fired := 0
	for _, handle := range ready {
		if handle == wake {
			p.drainWake()
			continue
		}

		p.mu.Lock()
		callback, ok := p.callbacks[handle]
		p.mu.Unlock()

		// deregistered by an earlier callback
		if !ok {
			continue
		}
		callback()
		fired++
	}
	return fired, nil
}

func (p *Poller) drainWake() {
	for p.wake.Pending() > 0 {
		if err := p.wake.ConsumeOne(); err != nil {
			p.logger.Warnf("failed to drain wake up channel: %v", err)
			return
		}
	}
}
