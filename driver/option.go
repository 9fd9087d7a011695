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
	"github.com/tochemey/dthread/dthread"
	"github.com/tochemey/dthread/telemetry"
)

// Option is the interface that applies a driver option
type Option interface {
	// Apply sets the Option value of a driver.
	Apply(d *Driver)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(d *Driver)

// Apply sets the Option value of a driver.
func (f OptionFunc) Apply(d *Driver) {
	f(d)
}

// WithHandler sets the handler run by the worker. The default is EchoHandler.
func WithHandler(handler dthread.Handler) Option {
	return OptionFunc(func(d *Driver) {
		d.handler = handler
	})
}

// WithPort sets the port identity
func WithPort(port dthread.ID) Option {
	return OptionFunc(func(d *Driver) {
		d.port = port
	})
}

// WithTelemetry enables the thread metrics
func WithTelemetry(tel *telemetry.Telemetry) Option {
	return OptionFunc(func(d *Driver) {
		d.telemetry = tel
	})
}
