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

// Package testing provides test doubles for sinks: serial ports that record
// or corrupt traffic, a simulated ESP-AT companion module and a delayer that
// records settle times without sleeping.
package testing

import (
	"errors"
	"math/rand/v2"
	"time"

	"github.com/ZaparooProject/go-telemetry/internal/syncutil"
	"go.bug.st/serial"
)

// ErrPortClosed is returned when operations are attempted on a closed port
var ErrPortClosed = errors.New("port is closed")

// ErrInjectedWrite is the default error returned by FlakyPort on a failing write
var ErrInjectedWrite = errors.New("injected write failure")

// nopPort implements the parts of serial.Port the sinks never exercise.
type nopPort struct{}

func (nopPort) SetMode(_ *serial.Mode) error { return nil }

func (nopPort) Drain() error { return nil }

func (nopPort) ResetInputBuffer() error { return nil }

func (nopPort) ResetOutputBuffer() error { return nil }

func (nopPort) SetDTR(_ bool) error { return nil }

func (nopPort) SetRTS(_ bool) error { return nil }

func (nopPort) GetModemStatusBits() (*serial.ModemStatusBits, error) {
	return &serial.ModemStatusBits{}, nil
}

func (nopPort) SetReadTimeout(_ time.Duration) error { return nil }

func (nopPort) Break(_ time.Duration) error { return nil }

// FlakyConfig configures how a FlakyPort fails writes.
type FlakyConfig struct {
	// Err is returned by failing writes (ErrInjectedWrite if nil)
	Err error
	// FailEvery fails every Nth Write call (0 disables)
	FailEvery int
	// FailProbability fails each Write with this probability (0 disables)
	FailProbability float64
	// Seed makes probabilistic failures reproducible (0 picks a random seed)
	Seed uint64
}

// FlakyPort is a serial.Port that records accepted writes and fails a
// configurable subset of them, the way a noisy USB-UART bridge drops bytes.
type FlakyPort struct {
	nopPort
	rng      *rand.Rand
	config   FlakyConfig
	written  []byte
	writes   int
	failures int
	mu       syncutil.Mutex
	closed   bool
}

// NewFlakyPort creates a port that fails writes according to config
func NewFlakyPort(config FlakyConfig) *FlakyPort {
	var rng *rand.Rand
	if config.Seed != 0 {
		rng = rand.New(rand.NewPCG(config.Seed, config.Seed^0xDEADBEEF)) //nolint:gosec // Test code, not crypto
	} else {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) //nolint:gosec // Test code, not crypto
	}
	if config.Err == nil {
		config.Err = ErrInjectedWrite
	}
	return &FlakyPort{rng: rng, config: config}
}

// NewRecordingPort creates a port that never fails and records every write
func NewRecordingPort() *FlakyPort {
	return NewFlakyPort(FlakyConfig{})
}

// Write records p unless this call is selected to fail
func (f *FlakyPort) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return 0, ErrPortClosed
	}

	f.writes++
	if f.shouldFail() {
		f.failures++
		return 0, f.config.Err
	}
	f.written = append(f.written, p...)
	return len(p), nil
}

func (f *FlakyPort) shouldFail() bool {
	if f.config.FailEvery > 0 && f.writes%f.config.FailEvery == 0 {
		return true
	}
	return f.config.FailProbability > 0 && f.rng.Float64() < f.config.FailProbability
}

// Read never returns data; sinks are write-only
func (f *FlakyPort) Read(_ []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, ErrPortClosed
	}
	return 0, nil
}

// Close marks the port closed
func (f *FlakyPort) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// Written returns a copy of every byte accepted so far
func (f *FlakyPort) Written() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.written...)
}

// Writes returns the number of Write calls, including failed ones
func (f *FlakyPort) Writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

// Failures returns the number of Write calls that failed
func (f *FlakyPort) Failures() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failures
}

// IsClosed reports whether Close was called
func (f *FlakyPort) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

var _ serial.Port = (*FlakyPort)(nil)
