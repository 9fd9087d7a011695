//go:build unix

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

package poller

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	gerrors "github.com/tochemey/dthread/errors"
	"github.com/tochemey/dthread/log"
	"github.com/tochemey/dthread/readiness"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newChannel(t *testing.T) readiness.Channel {
	t.Helper()
	channel, err := readiness.New()
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, channel.Close()) })
	return channel
}

func TestPoller(t *testing.T) {
	t.Run("With level-triggered callbacks", func(t *testing.T) {
		p, err := New(WithLogger(log.DiscardLogger))
		require.NoError(t, err)
		t.Cleanup(func() { assert.NoError(t, p.Stop()) })

		channel := newChannel(t)
		calls := 0
		require.NoError(t, p.Register(channel.Handle(), func() { calls++ }))
		assert.Equal(t, 1, p.Len())

		fired, err := p.Poll(0)
		require.NoError(t, err)
		assert.Zero(t, fired)

		require.NoError(t, channel.Signal())
		require.NoError(t, channel.Signal())

		fired, err = p.Poll(time.Second)
		require.NoError(t, err)
		assert.Equal(t, 1, fired)

		// still ready until every token is consumed
		require.NoError(t, channel.ConsumeOne())
		fired, err = p.Poll(time.Second)
		require.NoError(t, err)
		assert.Equal(t, 1, fired)

		require.NoError(t, channel.ConsumeOne())
		fired, err = p.Poll(0)
		require.NoError(t, err)
		assert.Zero(t, fired)
		assert.Equal(t, 2, calls)
	})
	t.Run("With several handles", func(t *testing.T) {
		p, err := New(WithLogger(log.DiscardLogger))
		require.NoError(t, err)
		t.Cleanup(func() { assert.NoError(t, p.Stop()) })

		first, second := newChannel(t), newChannel(t)
		var order []string
		require.NoError(t, p.Register(first.Handle(), func() {
			order = append(order, "first")
			require.NoError(t, first.ConsumeOne())
		}))
		require.NoError(t, p.Register(second.Handle(), func() {
			order = append(order, "second")
			require.NoError(t, second.ConsumeOne())
		}))

		require.NoError(t, second.Signal())
		fired, err := p.Poll(time.Second)
		require.NoError(t, err)
		assert.Equal(t, 1, fired)
		assert.Equal(t, []string{"second"}, order)

		require.NoError(t, p.Deregister(second.Handle()))
		require.NoError(t, second.Signal())
		fired, err = p.Poll(0)
		require.NoError(t, err)
		assert.Zero(t, fired)
		require.NoError(t, second.ConsumeOne())
	})
	t.Run("With registration errors", func(t *testing.T) {
		p, err := New(WithLogger(log.DiscardLogger))
		require.NoError(t, err)

		channel := newChannel(t)
		require.NoError(t, p.Register(channel.Handle(), func() {}))
		assert.ErrorIs(t, p.Register(channel.Handle(), func() {}), gerrors.ErrHandleAlreadyRegistered)
		require.NoError(t, p.Deregister(channel.Handle()))
		assert.ErrorIs(t, p.Deregister(channel.Handle()), gerrors.ErrHandleNotRegistered)

		require.NoError(t, p.Stop())
		require.NoError(t, p.Stop())
		assert.ErrorIs(t, p.Register(channel.Handle(), func() {}), gerrors.ErrPollerStopped)
		_, err = p.Poll(0)
		assert.ErrorIs(t, err, gerrors.ErrPollerStopped)
	})
	t.Run("With run until canceled", func(t *testing.T) {
		p, err := New(WithLogger(log.DiscardLogger))
		require.NoError(t, err)
		t.Cleanup(func() { assert.NoError(t, p.Stop()) })

		channel := newChannel(t)
		fired := make(chan struct{}, 1)
		require.NoError(t, p.Register(channel.Handle(), func() {
			assert.NoError(t, channel.ConsumeOne())
			fired <- struct{}{}
		}))

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- p.Run(ctx) }()

		require.NoError(t, channel.Signal())
		select {
		case <-fired:
		case <-time.After(time.Second):
			t.Fatal("callback not invoked")
		}

		cancel()
		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(time.Second):
			t.Fatal("run did not return")
		}
	})
	t.Run("With run until stopped", func(t *testing.T) {
		p, err := New(WithLogger(log.DiscardLogger))
		require.NoError(t, err)

		done := make(chan error, 1)
		go func() { done <- p.Run(context.Background()) }()

		require.Eventually(t, func() bool {
			if p.runMu.TryLock() {
				p.runMu.Unlock()
				return false
			}
			return true
		}, time.Second, time.Millisecond)
		require.NoError(t, p.Stop())
		require.NoError(t, <-done)
	})
}
