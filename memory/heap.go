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

	gerrors "github.com/tochemey/dthread/errors"
)

var (
	physicalOnce sync.Once
	physical     uint64
)

// Heap allocates from the Go heap. Requests larger than the physical memory of
// the host are refused with ErrAllocationFailed instead of crashing the process.
type Heap struct{}

// enforce compilation error
var _ Allocator = Heap{}

// NewHeap returns the heap allocator
func NewHeap() Heap {
	return Heap{}
}

// Alloc implements Allocator
func (Heap) Alloc(size int) ([]byte, error) {
	if err := checkSize(size); err != nil {
		return nil, err
	}
	return make([]byte, size), nil
}

// Free implements Allocator. Heap buffers are reclaimed by the garbage collector.
func (Heap) Free([]byte) {}

// Realloc implements Allocator
func (Heap) Realloc(buf []byte, size int) ([]byte, error) {
	if err := checkSize(size); err != nil {
		return nil, err
	}
	if size <= cap(buf) {
		grown := buf[:size]
		if size > len(buf) {
			clear(grown[len(buf):])
		}
		return grown, nil
	}
	out := make([]byte, size)
	copy(out, buf)
	return out, nil
}

// checkSize rejects negative sizes and sizes that cannot fit in physical memory.
func checkSize(size int) error {
	if size < 0 {
		return fmt.Errorf("%w: negative size %d", gerrors.ErrAllocationFailed, size)
	}

	physicalOnce.Do(func() {
		// an unknown size disables the ceiling
		physical, _ = Size()
	})

	if physical > 0 && uint64(size) > physical {
		return fmt.Errorf("%w: %d bytes exceeds physical memory", gerrors.ErrAllocationFailed, size)
	}
	return nil
}
