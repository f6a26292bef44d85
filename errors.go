// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package telemetry

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"syscall"

	"github.com/ZaparooProject/go-telemetry/internal/frame"
)

// Error categories for sink and configuration failures
var (
	// Sink errors
	ErrSinkWrite    = errors.New("sink write failed")
	ErrSinkClosed   = errors.New("sink is closed")
	ErrSinkNotReady = errors.New("sink not ready")
	ErrNoPortsFound = errors.New("no serial ports found")

	// Frame errors, shared with the internal frame package
	ErrInvalidFrame     = frame.ErrInvalidFrame
	ErrChecksumMismatch = frame.ErrChecksumMismatch

	// Configuration errors
	ErrInvalidConfig   = errors.New("invalid configuration")
	ErrUnsupportedSink = errors.New("unsupported sink type")
)

// SinkError wraps sink-level errors with the failing operation and port.
type SinkError struct {
	Err  error  // Underlying error
	Op   string // Operation that failed
	Port string // Port or bus identifier
}

func (e *SinkError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}

// NewSinkError creates a sink error with consistent formatting
func NewSinkError(op, port string, err error) *SinkError {
	return &SinkError{
		Op:   op,
		Port: port,
		Err:  err,
	}
}

// NewSinkWriteError wraps a port write failure. The cause is kept so that
// IsFatal can still see OS-level device errors.
func NewSinkWriteError(op, port string, cause error) *SinkError {
	if cause == nil {
		return NewSinkError(op, port, ErrSinkWrite)
	}
	return NewSinkError(op, port, fmt.Errorf("%w: %w", ErrSinkWrite, cause))
}

// NewSinkClosedError reports use of a sink after Close
func NewSinkClosedError(op, port string) *SinkError {
	return NewSinkError(op, port, ErrSinkClosed)
}

// IsFatal returns true if the error means the sink is gone and the telemetry
// loop cannot make progress. Ordinary write failures are not fatal: telemetry
// is lossy and the next frame is sent regardless.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	if isDeviceGoneError(err) {
		return true
	}

	switch {
	case errors.Is(err, ErrSinkClosed),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrClosedPipe):
		return true
	default:
		return false
	}
}

// Windows error codes for device disconnection detection.
const (
	errAccessDenied syscall.Errno = 5   // ERROR_ACCESS_DENIED
	errGenFailure   syscall.Errno = 31  // ERROR_GEN_FAILURE
	errNoSuchDevice syscall.Errno = 433 // ERROR_NO_SUCH_DEVICE
)

// isDeviceGoneError checks for OS-level errors raised when a USB serial
// adapter is unplugged mid-write.
func isDeviceGoneError(err error) bool {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return false
	}

	//nolint:exhaustive // Only checking specific device-gone errors
	switch errno {
	case syscall.EIO, syscall.ENXIO, syscall.ENODEV:
		return true
	}

	if runtime.GOOS == "windows" {
		//nolint:exhaustive // Only checking specific device-gone errors
		switch errno {
		case errAccessDenied, errGenFailure, errNoSuchDevice:
			return true
		}
	}

	return false
}
