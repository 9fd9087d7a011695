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
	"runtime"

	"github.com/google/uuid"

	"github.com/tochemey/dthread/log"
	"github.com/tochemey/dthread/memory"
	"github.com/tochemey/dthread/telemetry"
)

// ID is the opaque identity of a thread or of a host process
type ID = uuid.UUID

// NoID is the zero identity
var NoID = uuid.Nil

// NewID returns a random identity
func NewID() ID {
	return uuid.New()
}

// Spawner runs fn on a new OS thread.
// It returns an error when the thread cannot be created.
type Spawner func(fn func()) error

// spawnOSThread runs fn on a goroutine locked to its OS thread. The OS thread
// exits together with fn.
func spawnOSThread(fn func()) error {
	go func() {
		runtime.LockOSThread()
		fn()
	}()
	return nil
}

// Option is the interface that applies a thread option
type Option interface {
	// Apply sets the Option value of a thread.
	Apply(thread *Thread)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(thread *Thread)

// Apply sets the Option value of a thread.
func (f OptionFunc) Apply(thread *Thread) {
	f(thread)
}

// WithName sets the thread name used in logs and metrics
func WithName(name string) Option {
	return OptionFunc(func(thread *Thread) {
		thread.name = name
	})
}

// WithStackSize sets the stack size hint of the thread in kilowords.
// Goroutine stacks grow on demand so the hint is recorded, not enforced.
func WithStackSize(size int) Option {
	return OptionFunc(func(thread *Thread) {
		thread.stackSize = size
	})
}

// WithOwner sets the identity output replies are addressed to
func WithOwner(owner ID) Option {
	return OptionFunc(func(thread *Thread) {
		thread.owner = owner
	})
}

// WithRuntime sets the host runtime replies are delivered to.
// The delivery mode follows Runtime.DirectDelivery.
func WithRuntime(rt Runtime) Option {
	return OptionFunc(func(thread *Thread) {
		thread.runtime = rt
	})
}

// WithLogger sets the thread logger
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(thread *Thread) {
		thread.logger = logger
	})
}

// WithAllocator sets the allocator used for message payloads
func WithAllocator(allocator memory.Allocator) Option {
	return OptionFunc(func(thread *Thread) {
		thread.allocator = allocator
	})
}

// WithTelemetry enables the thread metrics
func WithTelemetry(tel *telemetry.Telemetry) Option {
	return OptionFunc(func(thread *Thread) {
		thread.telemetry = tel
	})
}

// WithSpawner overrides how the OS thread of a worker is created
func WithSpawner(spawner Spawner) Option {
	return OptionFunc(func(thread *Thread) {
		thread.spawner = spawner
	})
}
