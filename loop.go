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
	"fmt"
	"time"
)

// LoopState is the lifecycle state of a Loop
type LoopState int

const (
	// LoopIdle means the loop has not started
	LoopIdle LoopState = iota
	// LoopSetup means the sink handshake is in progress
	LoopSetup
	// LoopRunning means frames are being produced
	LoopRunning
)

// String returns the state name
func (s LoopState) String() string {
	switch s {
	case LoopIdle:
		return "idle"
	case LoopSetup:
		return "setup"
	case LoopRunning:
		return "running"
	default:
		return fmt.Sprintf("LoopState(%d)", int(s))
	}
}

// LoopStats reports loop progress
type LoopStats struct {
	Sink         SinkStats
	Ticks        uint64
	SendFailures uint64
}

// LoopOption configures a Loop
type LoopOption func(*Loop)

// WithInterval sets the pause between ticks
func WithInterval(d time.Duration) LoopOption {
	return func(l *Loop) {
		l.interval = d
	}
}

// WithDelayer replaces the real-time delay used between ticks
func WithDelayer(d Delayer) LoopOption {
	return func(l *Loop) {
		l.delay = d
	}
}

// WithInitialState starts the simulated attitude from s instead of zero
func WithInitialState(s AttitudeState) LoopOption {
	return func(l *Loop) {
		l.state = s
	}
}

// Loop periodically encodes a heartbeat and an attitude frame and pushes
// them to a sink.
//
// Thread Safety: Loop is NOT thread-safe. Run, Tick and Setup must be called
// from a single goroutine; the accessor methods may only be called from that
// goroutine or after Run has returned.
type Loop struct {
	enc      *Encoder
	sink     Sink
	delay    Delayer
	state    AttitudeState
	stats    LoopStats
	interval time.Duration
	phase    LoopState
}

// NewLoop creates a loop that encodes with enc and sends to sink
func NewLoop(enc *Encoder, sink Sink, opts ...LoopOption) *Loop {
	l := &Loop{
		enc:      enc,
		sink:     sink,
		delay:    SleepDelayer{},
		interval: DefaultInterval,
		phase:    LoopIdle,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// State returns the lifecycle state
func (l *Loop) State() LoopState {
	return l.phase
}

// Attitude returns the current simulated attitude state
func (l *Loop) Attitude() AttitudeState {
	return l.state
}

// Stats returns tick and failure counters, plus sink counters when the sink
// reports them
func (l *Loop) Stats() LoopStats {
	stats := l.stats
	if reporter, ok := l.sink.(StatsReporter); ok {
		stats.Sink = reporter.Stats()
	}
	return stats
}

// Setup runs the sink handshake if the sink has one. Sinks without a
// handshake go straight to running.
func (l *Loop) Setup(ctx context.Context) error {
	setupper, ok := l.sink.(Setupper)
	if !ok {
		l.phase = LoopRunning
		return nil
	}

	l.phase = LoopSetup
	Debugf("running %s sink setup", l.sink.Type())
	if err := setupper.Setup(ctx); err != nil {
		l.phase = LoopIdle
		return fmt.Errorf("%s sink setup failed: %w", l.sink.Type(), err)
	}
	l.phase = LoopRunning
	return nil
}

// Tick performs one iteration: advance the attitude, send a heartbeat then
// an attitude frame, and wait one interval. Send failures are logged and
// counted but do not stop the loop unless the sink is gone.
func (l *Loop) Tick(ctx context.Context) error {
	l.state.Advance()

	heartbeat := l.enc.Heartbeat()
	attitude := l.enc.Attitude(l.state)

	if err := l.send(ctx, "heartbeat", heartbeat); err != nil {
		return err
	}
	if err := l.send(ctx, "attitude", attitude); err != nil {
		return err
	}
	l.stats.Ticks++

	if err := l.delay.Delay(ctx, l.interval); err != nil {
		return fmt.Errorf("tick delay interrupted: %w", err)
	}
	return nil
}

func (l *Loop) send(ctx context.Context, kind string, frm Frame) error {
	err := l.sink.Send(ctx, frm)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("send %s interrupted: %w", kind, ctxErr)
	}

	l.stats.SendFailures++
	Debugf("send %s seq=%d failed: %v", kind, frm.Sequence(), err)
	if te := GetTrace(err); te != nil {
		Debugln(te.FormatTrace())
	}
	if IsFatal(err) {
		return fmt.Errorf("send %s: %w", kind, err)
	}
	return nil
}

// Run performs Setup and then ticks until ctx is cancelled or the sink
// reports a fatal error. It never returns nil.
func (l *Loop) Run(ctx context.Context) error {
	if l.phase != LoopRunning {
		if err := l.Setup(ctx); err != nil {
			return err
		}
	}

	for {
		if err := l.Tick(ctx); err != nil {
			return err
		}
	}
}
