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

package driver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tochemey/dthread/config"
	"github.com/tochemey/dthread/dthread"
	gerrors "github.com/tochemey/dthread/errors"
	"github.com/tochemey/dthread/log"
	"github.com/tochemey/dthread/poller"
	"github.com/tochemey/dthread/term"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingSink struct {
	replies chan *dthread.Reply
}

func newRecordingSink() *recordingSink {
	return &recordingSink{replies: make(chan *dthread.Reply, 16)}
}

func (s *recordingSink) Deliver(reply *dthread.Reply) error {
	s.replies <- reply
	return nil
}

// await polls the host handle on the calling thread until a reply reaches
// the sink
func (s *recordingSink) await(t *testing.T, p *poller.Poller) *dthread.Reply {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case reply := <-s.replies:
			return reply
		default:
		}
		_, err := p.Poll(10 * time.Millisecond)
		require.NoError(t, err)
	}
	t.Fatal("no reply reached the sink")
	return nil
}

func newDriver(t *testing.T, routed bool) (*Driver, *poller.Poller, *recordingSink) {
	t.Helper()
	cfg, err := config.New("echo", config.WithRoutedDelivery(routed), config.WithLogger(log.DiscardLogger))
	require.NoError(t, err)

	p, err := poller.New(poller.WithLogger(log.DiscardLogger))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, p.Stop()) })

	sink := newRecordingSink()
	d := New(cfg, p, sink)
	require.NoError(t, d.Start())
	return d, p, sink
}

func TestDriver(t *testing.T) {
	t.Run("With routed raw output", func(t *testing.T) {
		d, p, sink := newDriver(t, true)
		assert.Equal(t, dthread.Routed, d.Host().Mode())
		assert.Equal(t, 1, p.Len())

		reply, err := d.Control(dthread.NewID(), CmdHello, nil)
		require.NoError(t, err)
		assert.Equal(t, []byte{0, 0, 0, 0, 1}, reply)

		out := sink.await(t, p)
		assert.Equal(t, dthread.CmdOutput, out.Command)
		assert.Equal(t, d.Port(), out.To)
		assert.EqualValues(t, 1, out.Ref)

		decoded, err := term.Decode(out.Payload)
		require.NoError(t, err)
		assert.True(t, term.Equal(term.PortData(d.Port().String(), []byte("HELLO WORLD")), decoded))
		assert.Empty(t, d.Outstanding())

		require.NoError(t, d.Stop())
		assert.Zero(t, p.Len())
		assert.Zero(t, d.Allocated())
	})
	t.Run("With direct output term", func(t *testing.T) {
		d, _, sink := newDriver(t, false)
		assert.Equal(t, dthread.Direct, d.Host().Mode())

		_, err := d.Control(dthread.NewID(), CmdXYZ, nil)
		require.NoError(t, err)

		select {
		case out := <-sink.replies:
			assert.Equal(t, dthread.CmdOutputTerm, out.Command)
			assert.Equal(t, d.Port(), out.To)
			decoded, err := term.Decode(out.Payload)
			require.NoError(t, err)
			assert.Equal(t, "{x,y,z}", term.Format(decoded))
		case <-time.After(2 * time.Second):
			t.Fatal("no reply reached the sink")
		}

		require.NoError(t, d.Stop())
	})
	t.Run("With echo to the caller", func(t *testing.T) {
		d, p, sink := newDriver(t, true)
		caller := dthread.NewID()

		_, err := d.Control(caller, CmdHello, nil)
		require.NoError(t, err)
		reply, err := d.Control(caller, CmdEcho, []byte("hi"))
		require.NoError(t, err)
		assert.Equal(t, []byte{0, 0, 0, 0, 2}, reply)

		first := sink.await(t, p)
		second := sink.await(t, p)
		// replies keep the order of the commands
		assert.EqualValues(t, 1, first.Ref)
		assert.EqualValues(t, 2, second.Ref)
		assert.Equal(t, dthread.CmdSendTerm, second.Command)
		assert.Equal(t, caller, second.To)

		decoded, err := term.Decode(second.Payload)
		require.NoError(t, err)
		assert.Equal(t, `{echo,<<"hi">>}`, term.Format(decoded))

		require.NoError(t, d.Stop())
	})
	t.Run("With unknown command", func(t *testing.T) {
		d, _, _ := newDriver(t, false)

		_, err := d.Control(dthread.NewID(), 42, nil)
		require.NoError(t, err)
		assert.Equal(t, []uint64{1}, d.Outstanding())

		require.NoError(t, d.Stop())
		assert.Empty(t, d.Outstanding())
	})
	t.Run("With replies flushed on stop", func(t *testing.T) {
		d, _, sink := newDriver(t, true)

		for range 3 {
			_, err := d.Control(dthread.NewID(), CmdHello, nil)
			require.NoError(t, err)
		}

		// the host handle is never polled; stop delivers what was routed
		require.NoError(t, d.Stop())
		assert.Len(t, sink.replies, 3)
		assert.Empty(t, d.Outstanding())
		assert.Zero(t, d.Allocated())
	})
	t.Run("With reserved command", func(t *testing.T) {
		d, _, _ := newDriver(t, false)

		_, err := d.Control(dthread.NewID(), dthread.CmdStop, nil)
		assert.ErrorIs(t, err, gerrors.ErrInvalidCommand)
		assert.Empty(t, d.Outstanding())

		require.NoError(t, d.Stop())
	})
	t.Run("With stopped driver", func(t *testing.T) {
		d, _, _ := newDriver(t, false)
		require.NoError(t, d.Stop())
		require.NoError(t, d.Stop())

		_, err := d.Control(dthread.NewID(), CmdHello, nil)
		assert.ErrorIs(t, err, gerrors.ErrThreadStopped)
	})
	t.Run("With custom handler", func(t *testing.T) {
		cfg, err := config.New("custom", config.WithLogger(log.DiscardLogger))
		require.NoError(t, err)
		p, err := poller.New(poller.WithLogger(log.DiscardLogger))
		require.NoError(t, err)
		t.Cleanup(func() { assert.NoError(t, p.Stop()) })

		port := dthread.NewID()
		sink := newRecordingSink()
		d := New(cfg, p, sink,
			WithPort(port),
			WithHandler(dthread.HandlerFunc(func(self *dthread.Thread, msg *dthread.Message) {
				_ = msg.Sender().OutputTerm(self, msg.Ref(), msg.Payload())
			})))
		require.NoError(t, d.Start())
		assert.Equal(t, port, d.Port())
		assert.Equal(t, "custom", d.Worker().Name())

		_, err = d.Control(dthread.NewID(), 5, []byte("raw"))
		require.NoError(t, err)
		out := <-sink.replies
		assert.Equal(t, []byte("raw"), out.Payload)
		assert.Equal(t, port, out.To)

		require.NoError(t, d.Stop())
	})
}
