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

// Package espat implements a telemetry sink that tunnels frames through an
// ESP-AT Wi-Fi companion module as UDP broadcast.
//
// The module is driven purely by time: every command is followed by a fixed
// settle delay and no reply is ever read. A module that fails to reset, join
// the network or open the socket is not detected, and frames sent after such
// a failure are silently lost.
package espat

import (
	"context"
	"fmt"
	"time"

	telemetry "github.com/ZaparooProject/go-telemetry"
	"github.com/ZaparooProject/go-telemetry/internal/syncutil"
	"go.bug.st/serial"
)

const (
	// BroadcastAddress is the UDP destination for every frame
	BroadcastAddress = "255.255.255.255"

	// linkID is the multiplexed connection the socket is opened on
	linkID = 0

	traceDepth = 16
)

// SettleTimes are the fixed waits after each command
type SettleTimes struct {
	Reset        time.Duration // after AT+RST
	StationMode  time.Duration // after AT+CWMODE
	Join         time.Duration // after AT+CWJAP
	QueryAddress time.Duration // after AT+CIFSR
	Multiplex    time.Duration // after AT+CIPMUX
	OpenSocket   time.Duration // after AT+CIPSTART
	Send         time.Duration // after AT+CIPSEND and again after the payload
}

// DefaultSettleTimes returns waits long enough for stock ESP8266 AT firmware
func DefaultSettleTimes() SettleTimes {
	return SettleTimes{
		Reset:        2000 * time.Millisecond,
		StationMode:  500 * time.Millisecond,
		Join:         5000 * time.Millisecond,
		QueryAddress: 500 * time.Millisecond,
		Multiplex:    500 * time.Millisecond,
		OpenSocket:   500 * time.Millisecond,
		Send:         500 * time.Millisecond,
	}
}

// Config configures the bridge
type Config struct {
	// Delayer performs settle waits (telemetry.SleepDelayer if nil)
	Delayer  telemetry.Delayer
	SSID     string
	Password string
	Settle   SettleTimes
	UDPPort  int
}

// DefaultConfig returns the reference network settings
func DefaultConfig() Config {
	return Config{
		SSID:     telemetry.DefaultSSID,
		Password: telemetry.DefaultPassword,
		UDPPort:  telemetry.DefaultUDPPort,
		Settle:   DefaultSettleTimes(),
	}
}

// ConnState is the assumed state of the companion module. It advances when
// a settle delay elapses, not on any observed reply.
type ConnState int

const (
	// Uninitialized means no command has been sent
	Uninitialized ConnState = iota
	// ResetRequested means the module was told to reset
	ResetRequested
	// StationModeSet means the module was put in station mode
	StationModeSet
	// JoiningNetwork means the join was requested and the link is being configured
	JoiningNetwork
	// SocketOpen means the broadcast socket was requested
	SocketOpen
)

// String returns the state name
func (s ConnState) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case ResetRequested:
		return "reset-requested"
	case StationModeSet:
		return "station-mode-set"
	case JoiningNetwork:
		return "joining-network"
	case SocketOpen:
		return "socket-open"
	default:
		return fmt.Sprintf("ConnState(%d)", int(s))
	}
}

// setupStep is one command of the connect handshake
type setupStep struct {
	command string
	settle  time.Duration
	next    ConnState
}

// Sink wraps a serial port connected to an ESP-AT module.
type Sink struct {
	port     serial.Port
	delay    telemetry.Delayer
	trace    *telemetry.TraceBuffer
	portName string
	config   Config
	stats    telemetry.SinkStats
	state    ConnState
	mu       syncutil.Mutex
	closed   bool
}

// New opens portName at baud, 8N1, and returns a bridge writing to it. Setup
// must be called before frames will reach the network.
func New(portName string, baud int, config Config) (*Sink, error) {
	if baud <= 0 {
		baud = telemetry.DefaultESPATBaud
	}

	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open ESP-AT port %s: %w", portName, err)
	}

	telemetry.Debugf("opened ESP-AT sink on %s at %d baud", portName, baud)
	return NewWithPort(port, portName, config), nil
}

// NewWithPort wraps an already open port. The sink takes ownership and
// closes it on Close.
func NewWithPort(port serial.Port, portName string, config Config) *Sink {
	delay := config.Delayer
	if delay == nil {
		delay = telemetry.SleepDelayer{}
	}
	return &Sink{
		port:     port,
		portName: portName,
		config:   config,
		delay:    delay,
		state:    Uninitialized,
		trace:    telemetry.NewTraceBuffer(telemetry.SinkESPAT, portName, traceDepth),
	}
}

// JoinCommand renders the network join command
func JoinCommand(ssid, password string) string {
	return fmt.Sprintf("AT+CWJAP=%q,%q", ssid, password)
}

// OpenSocketCommand renders the command opening the UDP broadcast socket
func OpenSocketCommand(port int) string {
	return fmt.Sprintf("AT+CIPSTART=%d,\"UDP\",%q,%d,%d", linkID, BroadcastAddress, port, port)
}

// SendCommand renders the command announcing an n byte payload
func SendCommand(n int) string {
	return fmt.Sprintf("AT+CIPSEND=%d,%d", linkID, n)
}

func (s *Sink) setupSteps() []setupStep {
	settle := s.config.Settle
	return []setupStep{
		{command: "AT+RST", settle: settle.Reset, next: ResetRequested},
		{command: "AT+CWMODE=1", settle: settle.StationMode, next: StationModeSet},
		{command: JoinCommand(s.config.SSID, s.config.Password), settle: settle.Join, next: JoiningNetwork},
		{command: "AT+CIFSR", settle: settle.QueryAddress, next: JoiningNetwork},
		{command: "AT+CIPMUX=1", settle: settle.Multiplex, next: JoiningNetwork},
		{command: OpenSocketCommand(s.config.UDPPort), settle: settle.OpenSocket, next: SocketOpen},
	}
}

// Setup runs the connect handshake: reset, station mode, join, address
// query, multiplexing and socket open, each followed by its settle delay.
// Calling Setup again repeats the whole handshake from a module reset.
func (s *Sink) Setup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.port == nil {
		return telemetry.NewSinkClosedError("Setup", s.portName)
	}

	s.state = Uninitialized
	for _, step := range s.setupSteps() {
		if err := s.writeCommand(step.command); err != nil {
			return s.trace.WrapError(err)
		}
		if err := s.delay.Delay(ctx, step.settle); err != nil {
			return fmt.Errorf("ESP-AT setup interrupted after %q: %w", step.command, err)
		}
		s.state = step.next
	}

	telemetry.Debugf("ESP-AT %s: broadcasting on UDP port %d", s.portName, s.config.UDPPort)
	return nil
}

// Send announces the frame length with AT+CIPSEND, waits, writes the raw
// frame bytes and waits again. No prompt or SEND OK is awaited.
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
	if s.state != SocketOpen {
		telemetry.Debugf("ESP-AT %s: sending in state %s, frame will likely be lost", s.portName, s.state)
	}

	s.stats.Frames++
	if err := s.writeCommand(SendCommand(len(frame))); err != nil {
		s.stats.BytesDropped += uint64(len(frame))
		return s.trace.WrapError(err)
	}
	if err := s.delay.Delay(ctx, s.config.Settle.Send); err != nil {
		return fmt.Errorf("ESP-AT send interrupted: %w", err)
	}

	s.trace.RecordTX(frame, "payload")
	n, err := s.port.Write(frame)
	s.stats.BytesWritten += uint64(n)
	if err != nil || n != len(frame) {
		s.stats.BytesDropped += uint64(len(frame) - n)
		return s.trace.WrapError(telemetry.NewSinkWriteError("Send", s.portName, err))
	}

	if err := s.delay.Delay(ctx, s.config.Settle.Send); err != nil {
		return fmt.Errorf("ESP-AT send interrupted: %w", err)
	}
	return nil
}

// writeCommand writes one CRLF-terminated command line
func (s *Sink) writeCommand(command string) error {
	line := []byte(command + "\r\n")
	s.trace.RecordTX(line, command)

	n, err := s.port.Write(line)
	s.stats.BytesWritten += uint64(n)
	if err != nil {
		return telemetry.NewSinkWriteError("writeCommand", s.portName, err)
	}
	if n != len(line) {
		return telemetry.NewSinkWriteError("writeCommand", s.portName, nil)
	}
	return nil
}

// State returns the assumed module state
func (s *Sink) State() ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stats implements telemetry.StatsReporter
func (s *Sink) Stats() telemetry.SinkStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Close closes the serial port. The module is left in whatever state it was in.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.port != nil {
		if err := s.port.Close(); err != nil {
			return fmt.Errorf("ESP-AT close failed: %w", err)
		}
	}
	return nil
}

// Type returns the sink type
func (*Sink) Type() telemetry.SinkType {
	return telemetry.SinkESPAT
}

var (
	_ telemetry.Sink          = (*Sink)(nil)
	_ telemetry.Setupper      = (*Sink)(nil)
	_ telemetry.StatsReporter = (*Sink)(nil)
)
