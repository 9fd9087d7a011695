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

// Package queue provides the growable ring buffer backing a mailbox.
//
// Queue is not safe for concurrent use. Callers serialize access with their
// own lock so that enqueue and the readiness signal form a single critical
// section.
package queue

// minQueueLen is the smallest capacity that queue may have.
// Must be power of 2 for bitwise modulus: x % n == x & (n - 1).
const minQueueLen = 16

// Queue is a FIFO ring buffer
type Queue[T any] struct {
	nodes []T
	head  int
	tail  int
	count int
}

// New creates an empty Queue
func New[T any]() *Queue[T] {
	return &Queue[T]{nodes: make([]T, minQueueLen)}
}

// Push adds an item to the back of the queue
func (q *Queue[T]) Push(item T) {
	if q.count == len(q.nodes) {
		q.resize()
	}
	q.nodes[q.tail] = item
	q.tail = (q.tail + 1) & (len(q.nodes) - 1)
	q.count++
}

// Pop removes the item at the front of the queue.
// It returns false when the queue is empty.
func (q *Queue[T]) Pop() (T, bool) {
	var zero T
	if q.count == 0 {
		return zero, false
	}

	item := q.nodes[q.head]
	q.nodes[q.head] = zero
	q.head = (q.head + 1) & (len(q.nodes) - 1)
	q.count--
	q.shrink()
	return item, true
}

// PopBack removes the most recently pushed item.
// It returns false when the queue is empty.
func (q *Queue[T]) PopBack() (T, bool) {
	var zero T
	if q.count == 0 {
		return zero, false
	}

	q.tail = (q.tail - 1) & (len(q.nodes) - 1)
	item := q.nodes[q.tail]
	q.nodes[q.tail] = zero
	q.count--
	q.shrink()
	return item, true
}

// Peek returns the item at the front of the queue without removing it
func (q *Queue[T]) Peek() (T, bool) {
	if q.count == 0 {
		var zero T
		return zero, false
	}
	return q.nodes[q.head], true
}

// Drain removes every item and returns them in FIFO order
func (q *Queue[T]) Drain() []T {
	items := make([]T, 0, q.count)
	for q.count > 0 {
		item, _ := q.Pop()
		items = append(items, item)
	}
	return items
}

// Len returns the number of queued items
func (q *Queue[T]) Len() int {
	return q.count
}

// Cap returns the capacity of the underlying ring
func (q *Queue[T]) Cap() int {
	return len(q.nodes)
}

// IsEmpty returns true when the queue is empty
func (q *Queue[T]) IsEmpty() bool {
	return q.count == 0
}

// shrink halves the ring when it is a quarter full
func (q *Queue[T]) shrink() {
	if len(q.nodes) > minQueueLen && (q.count<<2) == len(q.nodes) {
		q.resize()
	}
}

func (q *Queue[T]) resize() {
	nodes := make([]T, max(q.count<<1, minQueueLen))
	if q.tail > q.head {
		copy(nodes, q.nodes[q.head:q.tail])
	} else if q.count > 0 {
		n := copy(nodes, q.nodes[q.head:])
		copy(nodes[n:], q.nodes[:q.tail])
	}

	q.tail = q.count & (len(nodes) - 1)
	q.head = 0
	q.nodes = nodes
}
