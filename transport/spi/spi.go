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

// Package spi implements a telemetry sink that writes each frame as one SPI
// write transaction, for radios and UART bridges attached over SPI.
package spi

import (
	"context"
	"fmt"

	telemetry "github.com/ZaparooProject/go-telemetry"
	"github.com/ZaparooProject/go-telemetry/internal/syncutil"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

const (
	// mode is the SPI clock polarity and phase
	mode = spi.Mode0

	// bitsPerWord is the SPI word size
	bitsPerWord = 8

	traceDepth = 8
)

// Sink writes frames to an SPI port. Unlike the UART sink a failed
// transaction is reported, since the whole frame is lost at once.
type Sink struct {
	port     spi.PortCloser
	conn     spi.Conn
	trace    *telemetry.TraceBuffer
	portName string
	stats    telemetry.SinkStats
	mu       syncutil.Mutex
	closed   bool
}

// New initializes the periph host, opens portName (for example "/dev/spidev0.0"
// or "" for the first port) and connects at freq.
func New(portName string, freq physic.Frequency) (*Sink, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	port, err := spireg.Open(portName)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI port %s: %w", portName, err)
	}

	sink, err := NewWithPort(port, portName, freq)
	if err != nil {
		_ = port.Close()
		return nil, err
	}

	telemetry.Debugf("opened SPI sink on %s at %s", port, freq)
	return sink, nil
}

// NewWithPort connects to an already open port. The sink takes ownership and
// closes it on Close.
func NewWithPort(port spi.PortCloser, portName string, freq physic.Frequency) (*Sink, error) {
	if freq <= 0 {
		freq = telemetry.DefaultSPIFrequency
	}

	conn, err := port.Connect(freq, mode, bitsPerWord)
	if err != nil {
		return nil, fmt.Errorf("failed to connect SPI: %w", err)
	}

	return &Sink{
		port:     port,
		conn:     conn,
		portName: portName,
		trace:    telemetry.NewTraceBuffer(telemetry.SinkSPI, portName, traceDepth),
	}, nil
}

// Send writes frame in a single transaction
func (s *Sink) Send(ctx context.Context, frame []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return telemetry.NewSinkClosedError("Send", s.portName)
	}

	s.trace.RecordTX(frame, "frame")
	s.stats.Frames++

	if err := s.conn.Tx(frame, nil); err != nil {
		s.stats.BytesDropped += uint64(len(frame))
		return s.trace.WrapError(telemetry.NewSinkWriteError("Send", s.portName, err))
	}
	s.stats.BytesWritten += uint64(len(frame))
	return nil
}

// Stats implements telemetry.StatsReporter
func (s *Sink) Stats() telemetry.SinkStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Close closes the SPI port
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.port.Close(); err != nil {
		return fmt.Errorf("SPI close failed: %w", err)
	}
	return nil
}

// Type returns the sink type
func (*Sink) Type() telemetry.SinkType {
	return telemetry.SinkSPI
}

var _ telemetry.Sink = (*Sink)(nil)
