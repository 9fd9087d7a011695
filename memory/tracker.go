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

package memory

import (
	"fmt"
	"sync"
	"unsafe"

	"go.uber.org/atomic"

	gerrors "github.com/tochemey/dthread/errors"
	"github.com/tochemey/dthread/log"
)

// Tracker is a debug allocator. It tags every buffer it hands out with its
// size and keeps the number of live bytes, per instance.
//
// Freeing a buffer the tracker does not know about, or freeing the same buffer
// twice, is a protocol violation and panics.
type Tracker struct {
	underlying Allocator
	logger     log.Logger
	limit      int64

	mu        sync.Mutex
	sizes     map[uintptr]int
	allocated *atomic.Int64
	allocs    *atomic.Int64
}

// enforce compilation error
var _ Allocator = (*Tracker)(nil)

// TrackerOption configures a Tracker
type TrackerOption interface {
	// Apply sets the option on the Tracker
	Apply(tracker *Tracker)
}

var _ TrackerOption = TrackerOptionFunc(nil)

// TrackerOptionFunc implements the TrackerOption interface.
type TrackerOptionFunc func(tracker *Tracker)

// Apply applies the option
func (f TrackerOptionFunc) Apply(tracker *Tracker) {
	f(tracker)
}

// WithLimit caps the number of live bytes. Allocations beyond it fail with
// ErrAllocationFailed. Zero means no cap.
func WithLimit(limit int64) TrackerOption {
	return TrackerOptionFunc(func(tracker *Tracker) {
		tracker.limit = limit
	})
}

// WithTrackerLogger sets the logger used to report refused allocations
func WithTrackerLogger(logger log.Logger) TrackerOption {
	return TrackerOptionFunc(func(tracker *Tracker) {
		tracker.logger = logger
	})
}

// WithUnderlying sets the allocator the tracker delegates to. Defaults to Heap.
func WithUnderlying(allocator Allocator) TrackerOption {
	return TrackerOptionFunc(func(tracker *Tracker) {
		tracker.underlying = allocator
	})
}

// NewTracker creates an instance of Tracker
func NewTracker(opts ...TrackerOption) *Tracker {
	tracker := &Tracker{
		underlying: NewHeap(),
		logger:     log.DiscardLogger,
		sizes:      make(map[uintptr]int),
		allocated:  atomic.NewInt64(0),
		allocs:     atomic.NewInt64(0),
	}

	for _, opt := range opts {
		opt.Apply(tracker)
	}
	return tracker
}

// Alloc implements Allocator
func (t *Tracker) Alloc(size int) ([]byte, error) {
	if err := t.reserve(size); err != nil {
		return nil, err
	}

	buf, err := t.underlying.Alloc(size)
	if err != nil {
		t.allocated.Sub(int64(size))
		t.logger.Errorf("allocation of %d bytes failed: %v", size, err)
		return nil, err
	}

	t.tag(buf)
	return buf, nil
}

// Free implements Allocator
func (t *Tracker) Free(buf []byte) {
	if cap(buf) == 0 {
		return
	}

	size := t.untag(buf, "free")
	t.allocated.Sub(int64(size))
	t.underlying.Free(buf)
}

// Realloc implements Allocator
func (t *Tracker) Realloc(buf []byte, size int) ([]byte, error) {
	if cap(buf) == 0 {
		return t.Alloc(size)
	}

	old := t.untag(buf, "realloc")
	t.allocated.Sub(int64(old))

	if err := t.reserve(size); err != nil {
		t.allocated.Add(int64(old))
		t.tag(buf)
		return nil, err
	}

	out, err := t.underlying.Realloc(buf, size)
	if err != nil {
		t.allocated.Sub(int64(size))
		t.allocated.Add(int64(old))
		t.tag(buf)
		t.logger.Errorf("reallocation to %d bytes failed: %v", size, err)
		return nil, err
	}

	t.tag(out)
	return out, nil
}

// Allocated returns the number of live bytes handed out by the tracker
func (t *Tracker) Allocated() int64 {
	return t.allocated.Load()
}

// Allocations returns the number of live buffers handed out by the tracker
func (t *Tracker) Allocations() int64 {
	return t.allocs.Load()
}

func (t *Tracker) reserve(size int) error {
	if size < 0 {
		return fmt.Errorf("%w: negative size %d", gerrors.ErrAllocationFailed, size)
	}

	total := t.allocated.Add(int64(size))
	if t.limit > 0 && total > t.limit {
		t.allocated.Sub(int64(size))
		t.logger.Errorf("allocation of %d bytes refused: limit %d reached", size, t.limit)
		return fmt.Errorf("%w: limit of %d bytes reached", gerrors.ErrAllocationFailed, t.limit)
	}
	return nil
}

// tag records the capacity of buf keyed by its backing array.
// Zero capacity buffers share a single address and are not tracked.
func (t *Tracker) tag(buf []byte) {
	if cap(buf) == 0 {
		return
	}
	t.mu.Lock()
	t.sizes[key(buf)] = len(buf)
	t.mu.Unlock()
	t.allocs.Inc()
}

func (t *Tracker) untag(buf []byte, op string) int {
	k := key(buf)
	t.mu.Lock()
	size, ok := t.sizes[k]
	if ok {
		delete(t.sizes, k)
	}
	t.mu.Unlock()

	if !ok {
		panic(gerrors.NewProtocolViolation(op + " of a buffer not owned by the allocator"))
	}
	t.allocs.Dec()
	return size
}

func key(buf []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(buf[:cap(buf)])))
}
