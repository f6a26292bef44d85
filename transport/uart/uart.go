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

// Package uart implements a telemetry sink that writes frames straight to a
// serial port.
package uart

import (
	"context"
	"fmt"

	telemetry "github.com/ZaparooProject/go-telemetry"
	"github.com/ZaparooProject/go-telemetry/internal/syncutil"
	"go.bug.st/serial"
)

// traceDepth is how many recent frames are kept for failure reports
const traceDepth = 8

// Sink writes each frame to a serial port one byte per write. A byte whose
// write fails is dropped and the rest of the frame still goes out: the link
// is lossy telemetry and retrying would break the pacing of later frames.
type Sink struct {
	port     serial.Port
	trace    *telemetry.TraceBuffer
	portName string
	stats    telemetry.SinkStats
	mu       syncutil.Mutex
	closed   bool
}

// New opens portName at baud, 8N1, and returns a sink writing to it.
func New(portName string, baud int) (*Sink, error) {
	if baud <= 0 {
		baud = telemetry.DefaultUARTBaud
	}

	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open UART port %s: %w", portName, err)
	}

	telemetry.Debugf("opened UART sink on %s at %d baud", portName, baud)
	return NewWithPort(port, portName), nil
}

// NewWithPort wraps an already open port. The sink takes ownership and
// closes it on Close.
func NewWithPort(port serial.Port, portName string) *Sink {
	return &Sink{
		port:     port,
		portName: portName,
		trace:    telemetry.NewTraceBuffer(telemetry.SinkUART, portName, traceDepth),
	}
}

// Send writes frame to the port byte by byte. Per-byte write failures are
// counted and swallowed; Send only fails if the sink is closed or ctx is done.
func (s *Sink) Send(ctx context.Context, frame []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.port == nil {
		return telemetry.NewSinkClosedError("Send", s.portName)
	}

	s.trace.RecordTX(frame, "frame")
	s.stats.Frames++

	var dropped uint64
	for _, b := range frame {
		if _, err := s.port.Write([]byte{b}); err != nil {
			dropped++
			continue
		}
		s.stats.BytesWritten++
	}

	if dropped > 0 {
		s.stats.BytesDropped += dropped
		telemetry.Debugf("UART %s dropped %d of %d bytes", s.portName, dropped, len(frame))
	}
	return nil
}

// Stats implements telemetry.StatsReporter
func (s *Sink) Stats() telemetry.SinkStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Trace returns the most recent frames written, oldest first
func (s *Sink) Trace() []telemetry.TraceEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trace.Entries()
}

// Close closes the serial port
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.port != nil {
		if err := s.port.Close(); err != nil {
			return fmt.Errorf("UART close failed: %w", err)
		}
	}
	return nil
}

// Type returns the sink type
func (*Sink) Type() telemetry.SinkType {
	return telemetry.SinkUART
}

// Ensure Sink implements telemetry.Sink
var _ telemetry.Sink = (*Sink)(nil)
