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

// Package driver integrates a worker thread with a host event loop.
//
// A Driver owns the host-side thread object and one worker. Control calls
// become correlated commands on the worker; the worker replies through the
// driver, either directly or routed through the host mailbox whose readiness
// handle is registered with a poller. Raw output is turned into the term
// {Port, {data, Bytes}} before reaching the Sink.
package driver

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"slices"

	goset "github.com/deckarep/golang-set/v2"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"github.com/tochemey/dthread/config"
	"github.com/tochemey/dthread/dthread"
	gerrors "github.com/tochemey/dthread/errors"
	"github.com/tochemey/dthread/log"
	"github.com/tochemey/dthread/memory"
	"github.com/tochemey/dthread/poller"
	"github.com/tochemey/dthread/telemetry"
	"github.com/tochemey/dthread/term"
)

// Sink receives the replies of the worker. In direct delivery mode it is
// called from the worker thread.
type Sink interface {
	Deliver(reply *dthread.Reply) error
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(reply *dthread.Reply) error

// Deliver implements Sink
func (f SinkFunc) Deliver(reply *dthread.Reply) error {
	return f(reply)
}

// Driver is a port: a host thread, a worker thread and the registration of
// the host mailbox with a poller
type Driver struct {
	config    *config.Config
	port      dthread.ID
	handler   dthread.Handler
	poller    *poller.Poller
	sink      Sink
	allocator *memory.Tracker
	telemetry *telemetry.Telemetry
	logger    log.Logger

	host    *dthread.Thread
	worker  *dthread.Thread
	pending goset.Set[uint64]
	started *atomic.Bool
}

// enforce compilation error
var _ dthread.Runtime = (*Driver)(nil)

// New creates a Driver. Nothing is started until Start is called.
func New(cfg *config.Config, p *poller.Poller, sink Sink, opts ...Option) *Driver {
	d := &Driver{
		config:  cfg,
		port:    dthread.NewID(),
		handler: EchoHandler,
		poller:  p,
		sink:    sink,
		logger:  cfg.Logger,
		pending: goset.NewSet[uint64](),
		started: atomic.NewBool(false),
	}

	for _, opt := range opts {
		opt.Apply(d)
	}

	d.allocator = memory.NewTracker(
		memory.WithLimit(cfg.AllocLimit),
		memory.WithTrackerLogger(d.logger))
	return d
}

// Start creates the host thread, starts the worker and registers the host
// readiness handle with the poller
func (d *Driver) Start() error {
	if d.started.Load() {
		return nil
	}

	opts := []dthread.Option{
		dthread.WithRuntime(d),
		dthread.WithOwner(d.port),
		dthread.WithLogger(d.logger),
		dthread.WithAllocator(d.allocator),
	}
	if d.telemetry != nil {
		opts = append(opts, dthread.WithTelemetry(d.telemetry))
	}

	host, err := dthread.New(append(opts, dthread.WithName(d.config.Name+"-host"))...)
	if err != nil {
		return fmt.Errorf("failed to create host thread: %w", err)
	}

	worker, err := dthread.Start(dthread.Serve(d.handler),
		append(opts,
			dthread.WithName(d.config.Name),
			dthread.WithStackSize(d.config.StackSize))...)
	if err != nil {
		return multierr.Combine(fmt.Errorf("failed to start worker: %w", err), host.Finish())
	}

	if err := d.poller.Register(host.Handle(), d.ReadyInput); err != nil {
		_, stopErr := worker.Stop(host)
		return multierr.Combine(fmt.Errorf("failed to register host handle: %w", err), stopErr, host.Finish())
	}

	d.host = host
	d.worker = worker
	d.started.Store(true)
	d.logger.Infof("driver %s started in %s mode", d.config.Name, host.Mode())
	return nil
}

// Control sends command to the worker on behalf of caller. The returned
// reply is a zero status byte followed by the big-endian 32-bit reference
// the worker will answer with.
func (d *Driver) Control(caller dthread.ID, command dthread.Command, buf []byte) ([]byte, error) {
	if !d.started.Load() {
		return nil, gerrors.ErrThreadStopped
	}

	// a direct reply may arrive before Command returns
	next := d.host.LastRef() + 1
	d.pending.Add(next)

	d.host.SetCaller(caller)
	ref, err := d.worker.Command(d.host, command, buf)
	if err != nil {
		d.pending.Remove(next)
		return nil, err
	}

	reply := make([]byte, 5)
	binary.BigEndian.PutUint32(reply[1:], uint32(ref))
	return reply, nil
}

// ReadyInput is the poller callback of the host readiness handle
func (d *Driver) ReadyInput() {
	if _, err := dthread.HandleReady(d.host, nil); err != nil {
		d.logger.Errorf("failed to deliver routed reply: %v", err)
	}
}

// Stop stops the worker, delivers the replies it routed before exiting and
// releases the host thread. It must be called on the thread polling the
// host handle.
func (d *Driver) Stop() error {
	if !d.started.CompareAndSwap(true, false) {
		return nil
	}

	err := d.poller.Deregister(d.host.Handle())
	if _, stopErr := d.worker.Stop(d.host); stopErr != nil {
		err = multierr.Append(err, stopErr)
	}

	for {
		handled, deliverErr := dthread.HandleReady(d.host, nil)
		err = multierr.Append(err, deliverErr)
		if !handled {
			break
		}
	}

	if outstanding := d.pending.Cardinality(); outstanding > 0 {
		d.logger.Warnf("driver %s stopped with %d unanswered commands", d.config.Name, outstanding)
		d.pending.Clear()
	}

	err = multierr.Append(err, d.host.Finish())
	d.logger.Infof("driver %s stopped", d.config.Name)
	return err
}

// DirectDelivery implements dthread.Runtime
func (d *Driver) DirectDelivery() bool {
	return !d.config.Routed
}

// Deliver implements dthread.Runtime
func (d *Driver) Deliver(reply *dthread.Reply) error {
	d.pending.Remove(reply.Ref)

	out := &dthread.Reply{
		Command: reply.Command,
		To:      reply.To,
		Ref:     reply.Ref,
		Payload: bytes.Clone(reply.Payload),
	}

	if reply.Command == dthread.CmdOutput {
		payload, err := term.Encode(term.PortData(d.port.String(), reply.Payload))
		if err != nil {
			return err
		}
		out.Payload = payload
	}

	return d.sink.Deliver(out)
}

// Port returns the identity of the port owning the threads
func (d *Driver) Port() dthread.ID {
	return d.port
}

// Host returns the host thread
func (d *Driver) Host() *dthread.Thread {
	return d.host
}

// Worker returns the worker thread
func (d *Driver) Worker() *dthread.Thread {
	return d.worker
}

// Outstanding returns the references of the commands not answered yet
func (d *Driver) Outstanding() []uint64 {
	refs := d.pending.ToSlice()
	slices.Sort(refs)
	return refs
}

// Allocated returns the number of live payload bytes
func (d *Driver) Allocated() int64 {
	return d.allocator.Allocated()
}
