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

package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue(t *testing.T) {
	t.Run("With FIFO order across growth", func(t *testing.T) {
		q := New[int]()
		const count = 100
		for i := range count {
			q.Push(i)
		}
		assert.Equal(t, count, q.Len())
		assert.GreaterOrEqual(t, q.Cap(), count)

		for i := range count {
			item, ok := q.Pop()
			require.True(t, ok)
			assert.Equal(t, i, item)
		}
		assert.True(t, q.IsEmpty())
		assert.Equal(t, minQueueLen, q.Cap())
	})
	t.Run("With wrap around", func(t *testing.T) {
		q := New[int]()
		for i := range 10 {
			q.Push(i)
		}
		for range 8 {
			_, ok := q.Pop()
			require.True(t, ok)
		}
		// tail wraps past the end of the ring before growing
		for i := 10; i < 30; i++ {
			q.Push(i)
		}

		assert.Equal(t, []int{8, 9}, q.Drain()[:2])
		assert.Zero(t, q.Len())
	})
	t.Run("With pop back", func(t *testing.T) {
		q := New[string]()
		q.Push("a")
		q.Push("b")

		item, ok := q.PopBack()
		require.True(t, ok)
		assert.Equal(t, "b", item)

		front, ok := q.Peek()
		require.True(t, ok)
		assert.Equal(t, "a", front)
		assert.Equal(t, 1, q.Len())

		item, ok = q.PopBack()
		require.True(t, ok)
		assert.Equal(t, "a", item)

		_, ok = q.PopBack()
		assert.False(t, ok)
	})
	t.Run("With empty queue", func(t *testing.T) {
		q := New[*int]()
		item, ok := q.Pop()
		assert.False(t, ok)
		assert.Nil(t, item)

		_, ok = q.Peek()
		assert.False(t, ok)
		assert.Empty(t, q.Drain())
	})
}
