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

package metric

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// ThreadMetric defines the worker thread instrumentation
type ThreadMetric struct {
	// Specifies the total number of messages enqueued
	sentCount metric.Int64Counter
	// Specifies the total number of messages handled by a dispatch loop
	processedCount metric.Int64Counter
	// Specifies the handling duration of a message.
	// This is expressed in milliseconds
	processingDuration metric.Int64Histogram
	// Specifies the number of messages waiting in a mailbox
	mailboxDepth metric.Int64ObservableGauge
}

// NewThreadMetric creates an instance of ThreadMetric
func NewThreadMetric(meter metric.Meter) (*ThreadMetric, error) {
	threadMetric := new(ThreadMetric)
	var err error

	if threadMetric.sentCount, err = meter.Int64Counter(
		"dthread_messages_sent",
		metric.WithDescription("Total number of messages enqueued to a thread mailbox"),
	); err != nil {
		return nil, fmt.Errorf("failed to create sentCount instrument, %w", err)
	}

	if threadMetric.processedCount, err = meter.Int64Counter(
		"dthread_messages_processed",
		metric.WithDescription("Total number of messages handled by a thread"),
	); err != nil {
		return nil, fmt.Errorf("failed to create processedCount instrument, %w", err)
	}

	if threadMetric.processingDuration, err = meter.Int64Histogram(
		"dthread_processing_duration",
		metric.WithDescription("The latency of a handled message in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, fmt.Errorf("failed to create processingDuration instrument, %w", err)
	}

	if threadMetric.mailboxDepth, err = meter.Int64ObservableGauge(
		"dthread_mailbox_depth",
		metric.WithDescription("Number of messages waiting in a thread mailbox"),
	); err != nil {
		return nil, fmt.Errorf("failed to create mailboxDepth instrument, %w", err)
	}

	return threadMetric, nil
}

// SentCount returns the enqueued messages counter
func (x *ThreadMetric) SentCount() metric.Int64Counter {
	return x.sentCount
}

// ProcessedCount returns the handled messages counter
func (x *ThreadMetric) ProcessedCount() metric.Int64Counter {
	return x.processedCount
}

// ProcessingDuration returns the message handling latency in milliseconds
func (x *ThreadMetric) ProcessingDuration() metric.Int64Histogram {
	return x.processingDuration
}

// MailboxDepth returns the mailbox depth gauge.
// Use with Meter.RegisterCallback to observe the current value.
func (x *ThreadMetric) MailboxDepth() metric.Int64ObservableGauge {
	return x.mailboxDepth
}
