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

package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrAllocationFailed is returned when the allocator cannot satisfy a request.
	// Messages and thread objects are never partially built when it is returned.
	ErrAllocationFailed = errors.New("allocation failed")

	// ErrSpawnFailed is returned when the OS thread backing a worker cannot be created.
	ErrSpawnFailed = errors.New("thread spawn failed")

	// ErrProtocolViolation signals that the single-ownership invariant has been broken:
	// a readiness token consumed without a matching signal, a message released twice
	// or a payload read after release.
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrMailboxClosed is returned when a message is put into a disposed mailbox.
	ErrMailboxClosed = errors.New("mailbox is closed")

	// ErrThreadStopped is returned when an operation targets a thread that has been stopped.
	ErrThreadStopped = errors.New("thread is stopped")

	// ErrInvalidCommand is returned when a reserved command tag is used where only
	// business commands are accepted.
	ErrInvalidCommand = errors.New("invalid command")

	// ErrUndefinedRuntime is returned when a direct delivery is attempted on a thread
	// without a host runtime.
	ErrUndefinedRuntime = errors.New("host runtime is not defined")

	// ErrHandleNotRegistered is returned when a readiness handle is not known to the poller.
	ErrHandleNotRegistered = errors.New("handle is not registered")

	// ErrHandleAlreadyRegistered is returned when the same readiness handle is registered twice.
	ErrHandleAlreadyRegistered = errors.New("handle is already registered")

	// ErrPollerStopped is returned when the poller is used after it has been stopped.
	ErrPollerStopped = errors.New("poller is stopped")

	// ErrNameRequired is returned when a configuration name is missing.
	ErrNameRequired = errors.New("name is required")

	// ErrInvalidStackSize is returned when a negative stack size hint is given.
	ErrInvalidStackSize = errors.New("invalid stack size")

	// ErrInvalidTerm is returned when a structured payload cannot be decoded.
	ErrInvalidTerm = errors.New("invalid term")
)

// SpawnError wraps the cause of a failed thread start.
type SpawnError struct {
	err error
}

// enforce compilation error
var _ error = (*SpawnError)(nil)

// NewSpawnError returns an instance of SpawnError
func NewSpawnError(err error) *SpawnError {
	return &SpawnError{
		err: fmt.Errorf("%w: %w", ErrSpawnFailed, err),
	}
}

// Error implements the standard error interface
func (s *SpawnError) Error() string {
	return s.err.Error()
}

// Unwrap returns the wrapped errors, including ErrSpawnFailed.
func (s *SpawnError) Unwrap() error {
	return s.err
}

// ProtocolViolationError describes a broken ownership invariant.
type ProtocolViolationError struct {
	reason string
}

var _ error = (*ProtocolViolationError)(nil)

// NewProtocolViolation returns a ProtocolViolationError with the given reason
func NewProtocolViolation(reason string) *ProtocolViolationError {
	return &ProtocolViolationError{reason: reason}
}

// Error implements the standard error interface
func (p *ProtocolViolationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrProtocolViolation.Error(), p.reason)
}

// Is makes errors.Is(err, ErrProtocolViolation) hold.
func (p *ProtocolViolationError) Is(target error) bool {
	return target == ErrProtocolViolation
}
