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
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	gerrors "github.com/tochemey/dthread/errors"
	"github.com/tochemey/dthread/log"
	"github.com/tochemey/dthread/memory"
	"github.com/tochemey/dthread/telemetry"
)

// echoTerm answers every user command with its own payload sent to the caller
var echoTerm = HandlerFunc(func(self *Thread, msg *Message) {
	host := msg.Sender()
	if host == nil {
		return
	}
	if err := host.SendTerm(self, msg.From(), msg.Ref(), msg.Payload()); err != nil {
		self.Logger().Errorf("failed to reply: %v", err)
	}
})

// pump waits for the host mailbox and handles one message
func pump(t *testing.T, host *Thread) {
	t.Helper()
	require.Eventually(t, func() bool { return host.MailboxLen() > 0 }, time.Second, time.Millisecond)
	handled, err := HandleReady(host, nil)
	require.NoError(t, err)
	require.True(t, handled)
}

func receive(t *testing.T, rt *recordingRuntime) Reply {
	t.Helper()
	select {
	case reply := <-rt.replies:
		return reply
	case <-time.After(time.Second):
		t.Fatal("no reply delivered")
		return Reply{}
	}
}

func TestThread(t *testing.T) {
	t.Run("With routed round trip", func(t *testing.T) {
		rt := newRecordingRuntime(false)
		owner := NewID()
		host, err := New(WithRuntime(rt), WithOwner(owner), WithLogger(log.DiscardLogger))
		require.NoError(t, err)
		assert.Equal(t, Routed, host.Mode())

		worker, err := Start(Serve(echoTerm), WithRuntime(rt), WithOwner(owner), WithName("echo"), WithLogger(log.DiscardLogger))
		require.NoError(t, err)
		assert.Equal(t, Running, worker.State())
		assert.Equal(t, "echo", worker.Name())
		assert.Equal(t, DefaultStackSize, worker.StackSize())

		caller := NewID()
		host.SetCaller(caller)
		assert.Equal(t, caller, host.Caller())

		ref, err := worker.Command(host, 7, []byte("hello"))
		require.NoError(t, err)
		assert.EqualValues(t, 1, ref)
		assert.EqualValues(t, 1, host.LastRef())

		pump(t, host)
		reply := receive(t, rt)
		assert.Equal(t, CmdSendTerm, reply.Command)
		assert.Equal(t, caller, reply.To)
		assert.Equal(t, ref, reply.Ref)
		assert.Equal(t, []byte("hello"), reply.Payload)

		exit, err := worker.Stop(host)
		require.NoError(t, err)
		assert.Nil(t, exit)
		assert.Equal(t, Joined, worker.State())
		require.NoError(t, host.Finish())
	})
	t.Run("With direct delivery", func(t *testing.T) {
		rt := newRecordingRuntime(true)
		host, err := New(WithRuntime(rt), WithLogger(log.DiscardLogger))
		require.NoError(t, err)
		assert.Equal(t, Direct, host.Mode())

		worker, err := Start(Serve(echoTerm), WithRuntime(rt), WithLogger(log.DiscardLogger))
		require.NoError(t, err)

		ref, err := worker.Command(host, 7, []byte("direct"))
		require.NoError(t, err)

		reply := receive(t, rt)
		assert.Equal(t, ref, reply.Ref)
		assert.Equal(t, []byte("direct"), reply.Payload)
		// nothing was routed through the host mailbox
		assert.Zero(t, host.MailboxLen())

		_, err = worker.Stop(host)
		require.NoError(t, err)
		require.NoError(t, host.Finish())
	})
	t.Run("With increasing references", func(t *testing.T) {
		host, err := New(WithLogger(log.DiscardLogger))
		require.NoError(t, err)
		worker, err := Start(Serve(HandlerFunc(func(*Thread, *Message) {})), WithLogger(log.DiscardLogger))
		require.NoError(t, err)

		for want := uint64(1); want <= 3; want++ {
			ref, err := worker.Command(host, 1, nil)
			require.NoError(t, err)
			assert.Equal(t, want, ref)
		}

		_, err = worker.Stop(host)
		require.NoError(t, err)
		require.NoError(t, host.Finish())
	})
	t.Run("With sender and caller stamping", func(t *testing.T) {
		host, err := New(WithLogger(log.DiscardLogger))
		require.NoError(t, err)
		caller := NewID()
		host.SetCaller(caller)

		received := make(chan [2]any, 1)
		worker, err := Start(Serve(HandlerFunc(func(self *Thread, msg *Message) {
			received <- [2]any{msg.Sender(), msg.From()}
			assert.Equal(t, self.ID(), msg.To())
		})), WithLogger(log.DiscardLogger))
		require.NoError(t, err)

		_, err = worker.Command(host, 1, nil)
		require.NoError(t, err)

		got := <-received
		assert.Same(t, host, got[0].(*Thread))
		assert.Equal(t, caller, got[1])

		_, err = worker.Stop(host)
		require.NoError(t, err)
		require.NoError(t, host.Finish())
	})
	t.Run("With cooperative stop", func(t *testing.T) {
		host, err := New(WithLogger(log.DiscardLogger))
		require.NoError(t, err)

		gate := make(chan struct{})
		var (
			mu      sync.Mutex
			handled []Command
		)
		worker, err := Start(Serve(HandlerFunc(func(_ *Thread, msg *Message) {
			if msg.Command() == 1 {
				<-gate
			}
			mu.Lock()
			handled = append(handled, msg.Command())
			mu.Unlock()
		})), WithLogger(log.DiscardLogger))
		require.NoError(t, err)

		_, err = worker.Command(host, 1, nil)
		require.NoError(t, err)
		_, err = worker.Command(host, 2, nil)
		require.NoError(t, err)

		stopped := make(chan error, 1)
		go func() {
			_, err := worker.Stop(host)
			stopped <- err
		}()

		// message 1 is being handled while 2 and the stop request are queued
		require.Eventually(t, func() bool {
			return worker.State() == StopRequested && worker.MailboxLen() == 2
		}, time.Second, time.Millisecond)

		released := make(chan struct{})
		late := NewBorrowedMessage(3, func([]byte, any) { close(released) }, nil, nil)
		require.NoError(t, worker.Send(host, late))

		close(gate)
		require.NoError(t, <-stopped)

		mu.Lock()
		assert.Equal(t, []Command{1, 2}, handled)
		mu.Unlock()

		select {
		case <-released:
		case <-time.After(time.Second):
			t.Fatal("message queued after stop was not released")
		}
		require.NoError(t, host.Finish())
	})
	t.Run("With exit value", func(t *testing.T) {
		worker, err := Start(func(self *Thread) any {
			Dispatch(self, nil)
			return "bye"
		}, WithLogger(log.DiscardLogger))
		require.NoError(t, err)

		exit, err := worker.Stop(nil)
		require.NoError(t, err)
		assert.Equal(t, "bye", exit)
	})
	t.Run("With panicking worker", func(t *testing.T) {
		worker, err := Start(func(*Thread) any {
			panic("boom")
		}, WithLogger(log.DiscardLogger))
		require.NoError(t, err)

		exit, err := worker.Stop(nil)
		require.NoError(t, err)
		exitErr, ok := exit.(error)
		require.True(t, ok)
		assert.Contains(t, exitErr.Error(), "boom")
	})
	t.Run("With panicking handler", func(t *testing.T) {
		tracker := memory.NewTracker(memory.WithTrackerLogger(log.DiscardLogger))
		done := make(chan struct{})
		worker, err := Start(Serve(HandlerFunc(func(_ *Thread, msg *Message) {
			if msg.Command() == 1 {
				panic("handler failure")
			}
			close(done)
		})), WithAllocator(tracker), WithLogger(log.DiscardLogger))
		require.NoError(t, err)

		_, err = worker.Command(worker, 1, []byte("first"))
		require.NoError(t, err)
		_, err = worker.Command(worker, 2, []byte("second"))
		require.NoError(t, err)

		<-done
		_, err = worker.Stop(nil)
		require.NoError(t, err)
		assert.Zero(t, tracker.Allocated())
	})
	t.Run("With protocol violation in handler", func(t *testing.T) {
		tracker := memory.NewTracker(memory.WithTrackerLogger(log.DiscardLogger))
		aborted := make(chan any, 1)
		handled := atomic.NewInt32(0)
		worker, err := Start(Serve(HandlerFunc(func(_ *Thread, msg *Message) {
			handled.Inc()
			if msg.Command() == 1 {
				msg.Release()
				msg.Release()
			}
		})),
			WithAllocator(tracker),
			WithLogger(log.DiscardLogger),
			WithSpawner(func(fn func()) error {
				go func() {
					defer func() { aborted <- recover() }()
					fn()
				}()
				return nil
			}))
		require.NoError(t, err)

		_, err = worker.Command(worker, 1, []byte("first"))
		require.NoError(t, err)
		_, err = worker.Command(worker, 2, []byte("second"))
		require.NoError(t, err)

		var r any
		select {
		case r = <-aborted:
		case <-time.After(time.Second):
			t.Fatal("protocol violation did not abort the thread")
		}

		violation, ok := r.(error)
		require.True(t, ok)
		assert.ErrorIs(t, violation, gerrors.ErrProtocolViolation)
		var protoErr *gerrors.ProtocolViolationError
		assert.ErrorAs(t, violation, &protoErr)
		assert.EqualValues(t, 1, handled.Load())

		exit, err := worker.Stop(nil)
		require.NoError(t, err)
		assert.Nil(t, exit)
		assert.Zero(t, tracker.Allocated())
	})
	t.Run("With second stop", func(t *testing.T) {
		worker, err := Start(Serve(nil), WithLogger(log.DiscardLogger))
		require.NoError(t, err)

		_, err = worker.Stop(nil)
		require.NoError(t, err)

		_, err = worker.Stop(nil)
		assert.ErrorIs(t, err, gerrors.ErrThreadStopped)

		_, err = worker.Command(worker, 1, nil)
		assert.ErrorIs(t, err, gerrors.ErrMailboxClosed)
	})
	t.Run("With spawn failure", func(t *testing.T) {
		tracker := memory.NewTracker(memory.WithTrackerLogger(log.DiscardLogger))
		cause := errors.New("no more threads")
		worker, err := Start(Serve(nil),
			WithAllocator(tracker),
			WithLogger(log.DiscardLogger),
			WithSpawner(func(func()) error { return cause }))
		require.Error(t, err)
		assert.Nil(t, worker)
		assert.ErrorIs(t, err, gerrors.ErrSpawnFailed)
		assert.ErrorIs(t, err, cause)

		var spawnErr *gerrors.SpawnError
		assert.ErrorAs(t, err, &spawnErr)
		assert.Zero(t, tracker.Allocations())
	})
	t.Run("With allocation failure reported to the sender", func(t *testing.T) {
		tracker := memory.NewTracker(memory.WithLimit(4), memory.WithTrackerLogger(log.DiscardLogger))
		worker, err := Start(Serve(nil), WithAllocator(tracker), WithLogger(log.DiscardLogger))
		require.NoError(t, err)

		ref, err := worker.Command(worker, 1, []byte("too large"))
		assert.ErrorIs(t, err, gerrors.ErrAllocationFailed)
		assert.Zero(t, ref)
		assert.Zero(t, worker.MailboxLen())
		// no reference is consumed by a refused command
		assert.Zero(t, worker.LastRef())

		_, err = worker.Stop(nil)
		require.NoError(t, err)
	})
	t.Run("With invalid stack size", func(t *testing.T) {
		worker, err := Start(Serve(nil), WithStackSize(-1), WithLogger(log.DiscardLogger))
		assert.ErrorIs(t, err, gerrors.ErrInvalidStackSize)
		assert.Nil(t, worker)
	})
	t.Run("With reserved command", func(t *testing.T) {
		host, err := New(WithLogger(log.DiscardLogger))
		require.NoError(t, err)

		_, err = host.Command(host, CmdStop, nil)
		assert.ErrorIs(t, err, gerrors.ErrInvalidCommand)

		_, err = host.Command(nil, 1, nil)
		assert.ErrorIs(t, err, gerrors.ErrProtocolViolation)
		require.NoError(t, host.Finish())
		assert.ErrorIs(t, host.Finish(), gerrors.ErrThreadStopped)
	})
}

func TestReplies(t *testing.T) {
	t.Run("With routed raw output", func(t *testing.T) {
		tracker := memory.NewTracker(memory.WithTrackerLogger(log.DiscardLogger))
		rt := newRecordingRuntime(false)
		owner := NewID()
		host, err := New(WithRuntime(rt), WithOwner(owner), WithAllocator(tracker), WithLogger(log.DiscardLogger))
		require.NoError(t, err)

		require.NoError(t, host.Output(nil, 9, []byte("HELLO WORLD")))
		assert.EqualValues(t, len("HELLO WORLD"), tracker.Allocated())

		pump(t, host)
		reply := receive(t, rt)
		assert.Equal(t, CmdOutput, reply.Command)
		assert.Equal(t, owner, reply.To)
		assert.EqualValues(t, 9, reply.Ref)
		assert.Equal(t, []byte("HELLO WORLD"), reply.Payload)

		// the borrowed copy is freed once delivered
		assert.Zero(t, tracker.Allocated())
		require.NoError(t, host.Finish())
	})
	t.Run("With output term addressed to the owner", func(t *testing.T) {
		rt := newRecordingRuntime(true)
		owner := NewID()
		host, err := New(WithRuntime(rt), WithOwner(owner), WithLogger(log.DiscardLogger))
		require.NoError(t, err)

		require.NoError(t, host.OutputTerm(nil, 4, []byte("term")))
		reply := receive(t, rt)
		assert.Equal(t, CmdOutputTerm, reply.Command)
		assert.Equal(t, owner, reply.To)
		assert.EqualValues(t, 4, reply.Ref)
		require.NoError(t, host.Finish())
	})
	t.Run("With undefined runtime", func(t *testing.T) {
		host, err := New(WithLogger(log.DiscardLogger))
		require.NoError(t, err)

		require.NoError(t, host.SendTerm(nil, NewID(), 1, []byte("lost")))
		handled, err := HandleReady(host, nil)
		assert.True(t, handled)
		assert.ErrorIs(t, err, gerrors.ErrUndefinedRuntime)

		handled, err = HandleReady(host, nil)
		require.NoError(t, err)
		assert.False(t, handled)
		require.NoError(t, host.Finish())
	})
	t.Run("With user command handled by the host", func(t *testing.T) {
		host, err := New(WithLogger(log.DiscardLogger))
		require.NoError(t, err)

		var got []byte
		_, err = host.Command(host, 5, []byte("self"))
		require.NoError(t, err)
		handled, err := HandleReady(host, HandlerFunc(func(_ *Thread, msg *Message) {
			got = append(got, msg.Payload()...)
		}))
		require.NoError(t, err)
		assert.True(t, handled)
		assert.Equal(t, []byte("self"), got)
		require.NoError(t, host.Finish())
	})
}

func TestThreadMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { assert.NoError(t, provider.Shutdown(context.Background())) })

	done := make(chan struct{})
	worker, err := Start(Serve(HandlerFunc(func(_ *Thread, msg *Message) {
		if msg.Command() == 2 {
			close(done)
		}
	})), WithTelemetry(telemetry.New(telemetry.WithMeterProvider(provider))), WithLogger(log.DiscardLogger))
	require.NoError(t, err)

	_, err = worker.Command(worker, 1, nil)
	require.NoError(t, err)
	_, err = worker.Command(worker, 2, nil)
	require.NoError(t, err)
	<-done

	sums := make(map[string]int64)
	found := make(map[string]bool)
	collect := func() {
		var rm metricdata.ResourceMetrics
		require.NoError(t, reader.Collect(context.Background(), &rm))
		clear(sums)
		clear(found)
		for _, scope := range rm.ScopeMetrics {
			for _, m := range scope.Metrics {
				found[m.Name] = true
				if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
					for _, point := range sum.DataPoints {
						sums[m.Name] += point.Value
					}
				}
			}
		}
	}

	// the processed counter is recorded once the handler has returned
	require.Eventually(t, func() bool {
		collect()
		return sums["dthread_messages_processed"] == 2
	}, time.Second, 10*time.Millisecond)

	assert.EqualValues(t, 2, sums["dthread_messages_sent"])
	assert.True(t, found["dthread_processing_duration"])
	assert.True(t, found["dthread_mailbox_depth"])

	_, err = worker.Stop(nil)
	require.NoError(t, err)
}
