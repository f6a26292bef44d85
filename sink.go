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
	"context"

	"github.com/ZaparooProject/go-telemetry/internal/syncutil"
)

// Sink is the destination for encoded frames. UART, ESP-AT bridge and SPI
// backends implement it.
type Sink interface {
	// Send transmits one encoded frame
	Send(ctx context.Context, frame []byte) error

	// Close releases the underlying port
	Close() error

	// Type returns the sink type
	Type() SinkType
}

// Setupper is implemented by sinks that need a one-time handshake before the
// first frame, such as the ESP-AT bridge joining a network.
type Setupper interface {
	Setup(ctx context.Context) error
}

// StatsReporter is implemented by sinks that count their traffic
type StatsReporter interface {
	Stats() SinkStats
}

// SinkStats counts traffic through a sink
type SinkStats struct {
	Frames       uint64 // Frames handed to Send
	BytesWritten uint64 // Bytes accepted by the port
	BytesDropped uint64 // Bytes whose write failed and were discarded
}

// SinkType identifies a sink backend
type SinkType string

const (
	// SinkUART writes frames straight to a serial port.
	SinkUART SinkType = "uart"
	// SinkESPAT tunnels frames through an ESP-AT Wi-Fi module as UDP broadcast.
	SinkESPAT SinkType = "espat"
	// SinkSPI writes each frame as one SPI transaction.
	SinkSPI SinkType = "spi"
	// SinkMock records frames in memory for testing
	SinkMock SinkType = "mock"
)

// ParseSinkType maps a name to a SinkType
func ParseSinkType(name string) (SinkType, error) {
	switch SinkType(name) {
	case SinkUART, SinkESPAT, SinkSPI, SinkMock:
		return SinkType(name), nil
	case "wifi", "esp":
		return SinkESPAT, nil
	default:
		return "", NewSinkError("ParseSinkType", name, ErrUnsupportedSink)
	}
}

// MockSink provides an in-memory Sink for testing
type MockSink struct {
	sendErr    error
	setupErr   error
	frames     [][]byte
	setupCalls int
	mu         syncutil.RWMutex
	closed     bool
}

// NewMockSink creates a new mock sink
func NewMockSink() *MockSink {
	return &MockSink{}
}

// Send implements Sink
func (m *MockSink) Send(ctx context.Context, frame []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return NewSinkClosedError("Send", "mock")
	}
	if m.sendErr != nil {
		return m.sendErr
	}
	m.frames = append(m.frames, append([]byte(nil), frame...))
	return nil
}

// Setup implements Setupper
func (m *MockSink) Setup(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setupCalls++
	return m.setupErr
}

// Close implements Sink
func (m *MockSink) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Type implements Sink
func (*MockSink) Type() SinkType {
	return SinkMock
}

// Stats implements StatsReporter
func (m *MockSink) Stats() SinkStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := SinkStats{Frames: uint64(len(m.frames))}
	for _, f := range m.frames {
		stats.BytesWritten += uint64(len(f))
	}
	return stats
}

// Test helper methods

// Frames returns copies of every frame sent so far
func (m *MockSink) Frames() [][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([][]byte, len(m.frames))
	for i, f := range m.frames {
		out[i] = append([]byte(nil), f...)
	}
	return out
}

// SetSendError configures an error to be returned by Send
func (m *MockSink) SetSendError(err error) {
	m.mu.Lock()
	m.sendErr = err
	m.mu.Unlock()
}

// SetSetupError configures an error to be returned by Setup
func (m *MockSink) SetSetupError(err error) {
	m.mu.Lock()
	m.setupErr = err
	m.mu.Unlock()
}

// SetupCalls returns how many times Setup was called
func (m *MockSink) SetupCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.setupCalls
}
