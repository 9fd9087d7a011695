//go:build windows

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
	"fmt"
	"time"

	"golang.org/x/sys/windows"

	"github.com/tochemey/dthread/readiness"
)

const maximumWaitObjects = 64

// waitHandles returns the handles that are signaled within timeout
func waitHandles(handles []readiness.Handle, timeout time.Duration) ([]readiness.Handle, error) {
	if len(handles) > maximumWaitObjects {
		return nil, fmt.Errorf("cannot wait on more than %d handles", maximumWaitObjects)
	}

	objects := make([]windows.Handle, len(handles))
	for i, handle := range handles {
		objects[i] = windows.Handle(handle)
	}

	ms := uint32(windows.INFINITE)
	if timeout >= 0 {
		ms = uint32(timeout.Milliseconds())
	}

	event, err := windows.WaitForMultipleObjects(objects, false, ms)
	if err != nil {
		return nil, fmt.Errorf("failed to wait on handles: %w", err)
	}
	if event == uint32(windows.WAIT_TIMEOUT) {
		return nil, nil
	}

	first := int(event - windows.WAIT_OBJECT_0)
	if first < 0 || first >= len(objects) {
		return nil, fmt.Errorf("unexpected wait result %d", event)
	}

	ready := []readiness.Handle{handles[first]}
	for i := first + 1; i < len(objects); i++ {
		if state, _ := windows.WaitForSingleObject(objects[i], 0); state == windows.WAIT_OBJECT_0 {
			ready = append(ready, handles[i])
		}
	}
	return ready, nil
}
