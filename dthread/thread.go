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
	"fmt"
	"sync"
	"weak"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	gerrors "github.com/tochemey/dthread/errors"
	"github.com/tochemey/dthread/internal/metric"
	"github.com/tochemey/dthread/log"
	"github.com/tochemey/dthread/memory"
	"github.com/tochemey/dthread/readiness"
	"github.com/tochemey/dthread/telemetry"
)

// DefaultStackSize is the stack size hint in kilowords
const DefaultStackSize = 1024

// RunFunc is the body of a worker thread. Its return value is the exit value
// handed to Stop.
type RunFunc func(self *Thread) any

// State is the lifecycle state of a thread
type State int32

const (
	Created State = iota
	Running
	StopRequested
	Joined
)

// String returns the state name
func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Running:
		return "running"
	case StopRequested:
		return "stop-requested"
	case Joined:
		return "joined"
	default:
		return "unknown"
	}
}

// Thread is a worker thread object: an identity, a mailbox and, for workers,
// the OS thread running the dispatch loop. The host side of a driver is a
// Thread as well, created with New, which owns a mailbox but no OS thread.
type Thread struct {
	id        ID
	owner     ID
	name      string
	stackSize int
	mode      DeliveryMode

	runtime   Runtime
	allocator memory.Allocator
	logger    log.Logger
	telemetry *telemetry.Telemetry
	spawner   Spawner
	mailbox   *Mailbox

	callerMu sync.RWMutex
	caller   ID
	lastRef  *atomic.Uint64
	state    *atomic.Int32

	metrics      *metric.ThreadMetric
	metricAttrs  otelmetric.MeasurementOption
	registration otelmetric.Registration

	done chan struct{}
	exit any
}

// Start creates a worker thread running run on a dedicated OS thread.
// When the OS thread cannot be created every resource acquired so far is
// released and a SpawnError is returned. The default spawner never fails:
// a SpawnError comes from a custom Spawner set with WithSpawner.
func Start(run RunFunc, opts ...Option) (*Thread, error) {
	thread, err := newThread(opts...)
	if err != nil {
		return nil, err
	}

	thread.done = make(chan struct{})
	thread.state.Store(int32(Running))
	if err := thread.spawner(func() {
		defer close(thread.done)
		thread.exit = thread.run(run)
	}); err != nil {
		thread.state.Store(int32(Joined))
		thread.logger.Errorf("failed to spawn thread: %v", err)
		return nil, multierr.Combine(gerrors.NewSpawnError(err), thread.dispose())
	}

	thread.logger.Debugf("thread started with stack size hint %d", thread.stackSize)
	return thread, nil
}

// New creates the thread object of a host: a mailbox and an identity bound
// to the calling thread. Call Finish to release it.
func New(opts ...Option) (*Thread, error) {
	thread, err := newThread(opts...)
	if err != nil {
		return nil, err
	}
	thread.state.Store(int32(Running))
	return thread, nil
}

func newThread(opts ...Option) (*Thread, error) {
	thread := &Thread{
		id:        NewID(),
		stackSize: DefaultStackSize,
		allocator: memory.NewHeap(),
		logger:    log.DefaultLogger,
		spawner:   spawnOSThread,
		lastRef:   atomic.NewUint64(0),
		state:     atomic.NewInt32(int32(Created)),
	}

	for _, opt := range opts {
		opt.Apply(thread)
	}

	if thread.stackSize < 0 {
		return nil, fmt.Errorf("%w: %d", gerrors.ErrInvalidStackSize, thread.stackSize)
	}

	if thread.name == "" {
		thread.name = thread.id.String()
	}

	if thread.runtime != nil && thread.runtime.DirectDelivery() {
		thread.mode = Direct
	}

	thread.logger = thread.logger.With("thread", thread.name)

	mailbox, err := NewMailbox()
	if err != nil {
		return nil, err
	}
	thread.mailbox = mailbox

	if thread.telemetry != nil {
		if err := thread.registerMetrics(); err != nil {
			return nil, multierr.Combine(err, mailbox.Dispose())
		}
	}

	return thread, nil
}

// ID returns the thread identity
func (t *Thread) ID() ID {
	return t.id
}

// Owner returns the identity output replies are addressed to
func (t *Thread) Owner() ID {
	return t.owner
}

// Name returns the thread name
func (t *Thread) Name() string {
	return t.name
}

// StackSize returns the stack size hint in kilowords
func (t *Thread) StackSize() int {
	return t.stackSize
}

// Mode returns the delivery mode
func (t *Thread) Mode() DeliveryMode {
	return t.mode
}

// Logger returns the thread logger
func (t *Thread) Logger() log.Logger {
	return t.logger
}

// State returns the lifecycle state
func (t *Thread) State() State {
	return State(t.state.Load())
}

// Caller returns the identity stamped as the reply address on the commands
// this thread sends
func (t *Thread) Caller() ID {
	t.callerMu.RLock()
	defer t.callerMu.RUnlock()
	return t.caller
}

// SetCaller sets the identity returned by Caller
func (t *Thread) SetCaller(caller ID) {
	t.callerMu.Lock()
	t.caller = caller
	t.callerMu.Unlock()
}

// LastRef returns the last reference issued by this thread
func (t *Thread) LastRef() uint64 {
	return t.lastRef.Load()
}

// Handle returns the readiness handle of the mailbox
func (t *Thread) Handle() readiness.Handle {
	return t.mailbox.Handle()
}

// MailboxLen returns the number of queued messages
func (t *Thread) MailboxLen() int {
	return t.mailbox.Len()
}

// Pending returns the number of readiness tokens
func (t *Thread) Pending() int64 {
	return t.mailbox.Pending()
}

// Send enqueues msg on the thread mailbox with source as the sender.
// On error the caller keeps the ownership of msg.
func (t *Thread) Send(source *Thread, msg *Message) error {
	msg.sender = weak.Make(source)
	if err := t.mailbox.Put(msg); err != nil {
		return err
	}

	if t.metrics != nil {
		t.metrics.SentCount().Add(context.Background(), 1, t.metricAttrs)
	}
	return nil
}

// Command sends a user command carrying a copy of buf. The message is
// stamped with the caller of source and the next reference of source, which
// is returned.
func (t *Thread) Command(source *Thread, command Command, buf []byte) (uint64, error) {
	if command.IsReserved() {
		return 0, fmt.Errorf("%w: %d", gerrors.ErrInvalidCommand, command)
	}
	if source == nil {
		return 0, gerrors.NewProtocolViolation("command sent without a source thread")
	}

	msg, err := NewMessage(t.allocator, command, buf)
	if err != nil {
		return 0, err
	}

	msg.from = source.Caller()
	msg.to = t.id
	msg.ref = source.lastRef.Inc()

	if err := t.Send(source, msg); err != nil {
		msg.Release()
		return 0, err
	}
	return msg.ref, nil
}

// Recv removes the oldest message and consumes its readiness token.
// It returns nil when the mailbox is empty.
func (t *Thread) Recv() (*Message, *Thread) {
	msg := t.mailbox.Get()
	if msg == nil {
		return nil, nil
	}

	// a token must exist for every queued message
	if err := t.mailbox.ConsumeOne(); err != nil {
		panic(err)
	}
	return msg, msg.Sender()
}

// Stop queues a stop request behind the messages already in the mailbox,
// waits for the worker to exit and releases the thread resources. Messages
// sent after the stop request are released without being handled.
// It returns the exit value of the worker. Stopping a stopped thread returns
// ErrThreadStopped. A worker must not stop itself.
func (t *Thread) Stop(source *Thread) (any, error) {
	if t.done == nil {
		return nil, t.Finish()
	}

	if !t.state.CompareAndSwap(int32(Running), int32(StopRequested)) {
		return nil, gerrors.ErrThreadStopped
	}

	msg, err := NewMessage(t.allocator, CmdStop, nil)
	if err != nil {
		t.state.Store(int32(Running))
		return nil, err
	}

	if err := t.Send(source, msg); err != nil {
		msg.Release()
		t.state.Store(int32(Running))
		return nil, err
	}

	<-t.done
	t.state.Store(int32(Joined))
	t.logger.Debug("thread stopped")
	return t.exit, t.dispose()
}

// Finish releases a host thread created with New
func (t *Thread) Finish() error {
	if !t.state.CompareAndSwap(int32(Running), int32(Joined)) {
		return gerrors.ErrThreadStopped
	}
	return t.dispose()
}

// SendTerm hands an encoded term addressed to `to` over to the runtime of t.
// In routed mode the term is queued on t with source as the sender.
func (t *Thread) SendTerm(source *Thread, to ID, ref uint64, payload []byte) error {
	return t.reply(source, &Reply{Command: CmdSendTerm, To: to, Ref: ref, Payload: payload})
}

// OutputTerm hands an encoded term addressed to the owner of t over to the
// runtime of t
func (t *Thread) OutputTerm(source *Thread, ref uint64, payload []byte) error {
	return t.reply(source, &Reply{Command: CmdOutputTerm, To: t.owner, Ref: ref, Payload: payload})
}

// Output hands raw bytes addressed to the owner of t over to the runtime of t.
// In routed mode the bytes are copied with the thread allocator and travel as
// a borrowed payload whose release frees the copy.
func (t *Thread) Output(source *Thread, ref uint64, buf []byte) error {
	if t.mode == Direct {
		return t.deliver(&Reply{Command: CmdOutput, To: t.owner, Ref: ref, Payload: buf})
	}

	data, err := t.allocator.Alloc(len(buf))
	if err != nil {
		return err
	}
	copy(data, buf)

	msg := NewBorrowedMessage(CmdOutput, freeWith, t.allocator, data)
	msg.to = t.owner
	msg.ref = ref
	if source != nil {
		msg.from = source.id
	}

	if err := t.Send(source, msg); err != nil {
		msg.Release()
		return err
	}
	return nil
}

func (t *Thread) reply(source *Thread, reply *Reply) error {
	if t.mode == Direct {
		return t.deliver(reply)
	}

	msg, err := NewMessage(t.allocator, reply.Command, reply.Payload)
	if err != nil {
		return err
	}
	msg.to = reply.To
	msg.ref = reply.Ref
	if source != nil {
		msg.from = source.id
	}

	if err := t.Send(source, msg); err != nil {
		msg.Release()
		return err
	}
	return nil
}

func (t *Thread) deliver(reply *Reply) error {
	if t.runtime == nil {
		return gerrors.ErrUndefinedRuntime
	}
	return t.runtime.Deliver(reply)
}

// run executes the worker body and turns a panic into the exit value
func (t *Thread) run(fn RunFunc) (exit any) {
	defer func() {
		r := recover()
		if isProtocolViolation(r) {
			t.logger.Errorf("thread aborted on protocol violation: %v", r)
			panic(r)
		}
		if r != nil {
			t.logger.Errorf("thread panicked: %v", r)
			exit = fmt.Errorf("thread %s panicked: %v", t.name, r)
		}
	}()
	return fn(t)
}

func (t *Thread) dispose() error {
	var err error
	if t.registration != nil {
		err = t.registration.Unregister()
	}
	return multierr.Append(err, t.mailbox.Dispose())
}

func (t *Thread) registerMetrics() error {
	metrics, err := metric.NewThreadMetric(t.telemetry.Meter())
	if err != nil {
		return err
	}

	attrs := otelmetric.WithAttributes(
		attribute.String("thread.id", t.id.String()),
		attribute.String("thread.name", t.name),
	)

	registration, err := t.telemetry.Meter().RegisterCallback(func(_ context.Context, observer otelmetric.Observer) error {
		observer.ObserveInt64(metrics.MailboxDepth(), int64(t.mailbox.Len()), attrs)
		return nil
	}, metrics.MailboxDepth())
	if err != nil {
		return err
	}

	t.metrics = metrics
	t.metricAttrs = attrs
	t.registration = registration
	return nil
}

// freeWith is the release function of payloads copied with an allocator
func freeWith(buf []byte, udata any) {
	if allocator, ok := udata.(memory.Allocator); ok {
		allocator.Free(buf)
	}
}
