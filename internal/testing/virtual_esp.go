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

package testing

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/ZaparooProject/go-telemetry/internal/frame"
	"github.com/ZaparooProject/go-telemetry/internal/syncutil"
	"go.bug.st/serial"
)

// ESPEventKind distinguishes AT command lines from raw CIPSEND payloads
type ESPEventKind int

const (
	// ESPCommand is a CRLF-terminated AT command line
	ESPCommand ESPEventKind = iota
	// ESPPayload is the raw data following an AT+CIPSEND
	ESPPayload
)

// ESPEvent is one unit of traffic seen by the virtual module
type ESPEvent struct {
	Command string
	Payload []byte
	Kind    ESPEventKind
}

// String formats the event for test failure messages
func (e ESPEvent) String() string {
	if e.Kind == ESPCommand {
		return fmt.Sprintf("cmd %q", e.Command)
	}
	return fmt.Sprintf("payload % X", e.Payload)
}

// VirtualESP is a serial.Port that behaves like an ESP-AT Wi-Fi module on
// the other end of a UART. It splits the byte stream into command lines and
// CIPSEND payloads, tracks whether the broadcast socket was opened and
// queues the replies a real module would send. Nothing in the sink reads
// those replies; they exist so tests can assert the exchange was sane.
type VirtualESP struct {
	nopPort
	replies      bytes.Buffer
	line         []byte
	payload      []byte
	events       []ESPEvent
	pendingSend  int
	droppedSends int
	mu           syncutil.Mutex
	stationMode  bool
	joined       bool
	multiplexing bool
	socketOpen   bool
	closed       bool
}

// NewVirtualESP creates a module in its power-on state
func NewVirtualESP() *VirtualESP {
	return &VirtualESP{}
}

// Write feeds bytes to the module
func (v *VirtualESP) Write(p []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return 0, ErrPortClosed
	}

	for _, b := range p {
		v.feed(b)
	}
	return len(p), nil
}

func (v *VirtualESP) feed(b byte) {
	if v.pendingSend > 0 {
		v.payload = append(v.payload, b)
		if len(v.payload) == v.pendingSend {
			v.finishPayload()
		}
		return
	}

	v.line = append(v.line, b)
	if bytes.HasSuffix(v.line, []byte("\r\n")) {
		cmd := string(v.line[:len(v.line)-2])
		v.line = v.line[:0]
		v.handleCommand(cmd)
	}
}

func (v *VirtualESP) finishPayload() {
	data := append([]byte(nil), v.payload...)
	v.events = append(v.events, ESPEvent{Kind: ESPPayload, Payload: data})
	v.payload = v.payload[:0]
	v.pendingSend = 0

	if !v.socketOpen {
		v.droppedSends++
		v.replies.WriteString("SEND FAIL\r\n")
		return
	}
	v.replies.WriteString("SEND OK\r\n")
}

func (v *VirtualESP) handleCommand(cmd string) {
	v.events = append(v.events, ESPEvent{Kind: ESPCommand, Command: cmd})

	switch {
	case cmd == "AT+RST":
		v.stationMode, v.joined, v.multiplexing, v.socketOpen = false, false, false, false
		v.replies.WriteString("OK\r\nready\r\n")
	case cmd == "AT+CWMODE=1":
		v.stationMode = true
		v.replies.WriteString("OK\r\n")
	case strings.HasPrefix(cmd, "AT+CWJAP="):
		if !v.stationMode {
			v.replies.WriteString("ERROR\r\n")
			return
		}
		v.joined = true
		v.replies.WriteString("WIFI CONNECTED\r\nWIFI GOT IP\r\nOK\r\n")
	case cmd == "AT+CIFSR":
		v.replies.WriteString("+CIFSR:STAIP,\"192.168.4.2\"\r\nOK\r\n")
	case cmd == "AT+CIPMUX=1":
		v.multiplexing = true
		v.replies.WriteString("OK\r\n")
	case strings.HasPrefix(cmd, "AT+CIPSTART=0,\"UDP\","):
		if !v.joined || !v.multiplexing {
			v.replies.WriteString("ERROR\r\n")
			return
		}
		v.socketOpen = true
		v.replies.WriteString("0,CONNECT\r\nOK\r\n")
	case strings.HasPrefix(cmd, "AT+CIPSEND=0,"):
		n, err := strconv.Atoi(strings.TrimPrefix(cmd, "AT+CIPSEND=0,"))
		if err != nil || n <= 0 || n > 2048 {
			v.replies.WriteString("ERROR\r\n")
			return
		}
		v.pendingSend = n
		v.replies.WriteString("OK\r\n> ")
	default:
		v.replies.WriteString("ERROR\r\n")
	}
}

// Read returns queued replies
func (v *VirtualESP) Read(p []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return 0, ErrPortClosed
	}
	// an empty buffer reads as 0 bytes, like a port read timeout
	n, _ := v.replies.Read(p)
	return n, nil
}

// Close marks the port closed
func (v *VirtualESP) Close() error {
	v.mu.Lock()
	v.closed = true
	v.mu.Unlock()
	return nil
}

// Events returns every command and payload seen so far
func (v *VirtualESP) Events() []ESPEvent {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]ESPEvent, len(v.events))
	copy(out, v.events)
	return out
}

// Commands returns only the command lines seen so far
func (v *VirtualESP) Commands() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	var cmds []string
	for _, e := range v.events {
		if e.Kind == ESPCommand {
			cmds = append(cmds, e.Command)
		}
	}
	return cmds
}

// Payloads returns only the CIPSEND payloads seen so far
func (v *VirtualESP) Payloads() [][]byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out [][]byte
	for _, e := range v.events {
		if e.Kind == ESPPayload {
			out = append(out, e.Payload)
		}
	}
	return out
}

// ValidFrames returns the CIPSEND payloads that are structurally valid frames
func (v *VirtualESP) ValidFrames() [][]byte {
	var out [][]byte
	for _, p := range v.Payloads() {
		if frame.Validate(p) == nil {
			out = append(out, p)
		}
	}
	return out
}

// SocketOpen reports whether the UDP broadcast socket is open
func (v *VirtualESP) SocketOpen() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.socketOpen
}

// DroppedSends returns how many payloads arrived with no open socket
func (v *VirtualESP) DroppedSends() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.droppedSends
}

var _ serial.Port = (*VirtualESP)(nil)
