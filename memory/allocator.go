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

// Package memory provides the allocator used for message payloads.
//
// The core only relies on the three operations of Allocator. Heap is the
// default allocator; Tracker wraps any Allocator with size tagging and an
// instance-scoped accounting of live bytes, which makes leaks and double
// frees observable in tests.
package memory

// Allocator hands out and reclaims byte buffers.
type Allocator interface {
	// Alloc returns a zeroed buffer of the given size or ErrAllocationFailed.
	Alloc(size int) ([]byte, error)
	// Free gives the buffer back to the allocator. The buffer must have been
	// returned by Alloc or Realloc of the same allocator.
	Free(buf []byte)
	// Realloc resizes buf, preserving its content up to the smaller of both sizes.
	// On failure buf is left untouched and still owned by the caller.
	Realloc(buf []byte, size int) ([]byte, error)
}
