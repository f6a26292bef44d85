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

package espat

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"

	telemetry "github.com/ZaparooProject/go-telemetry"
	virt "github.com/ZaparooProject/go-telemetry/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSink(t *testing.T) (*Sink, *virt.VirtualESP, *virt.RecordingDelayer) {
	t.Helper()

	esp := virt.NewVirtualESP()
	delayer := virt.NewRecordingDelayer()
	cfg := DefaultConfig()
	cfg.Delayer = delayer
	return NewWithPort(esp, "/dev/ttyESP", cfg), esp, delayer
}

func TestSetup_CommandSequence(t *testing.T) {
	t.Parallel()

	sink, esp, delayer := newTestSink(t)
	assert.Equal(t, Uninitialized, sink.State())

	require.NoError(t, sink.Setup(context.Background()))

	assert.Equal(t, []string{
		"AT+RST",
		"AT+CWMODE=1",
		`AT+CWJAP="F405WTE","f405wte"`,
		"AT+CIFSR",
		"AT+CIPMUX=1",
		`AT+CIPSTART=0,"UDP","255.255.255.255",14550,14550`,
	}, esp.Commands())

	assert.Equal(t, []time.Duration{
		2000 * time.Millisecond,
		500 * time.Millisecond,
		5000 * time.Millisecond,
		500 * time.Millisecond,
		500 * time.Millisecond,
		500 * time.Millisecond,
	}, delayer.Delays())
	assert.Equal(t, 9*time.Second, delayer.Total())

	assert.Equal(t, SocketOpen, sink.State())
	assert.True(t, esp.SocketOpen())
}

func TestSetup_StateFollowsSettleDelays(t *testing.T) {
	t.Parallel()

	sink, _, delayer := newTestSink(t)

	// the hook runs inside Setup while the sink lock is held, so read the
	// state field directly instead of through State()
	var seen []ConnState
	delayer.OnDelay = func(_ int, _ time.Duration) {
		seen = append(seen, sink.state)
	}

	require.NoError(t, sink.Setup(context.Background()))

	// state only advances once a step's delay has elapsed
	assert.Equal(t, []ConnState{
		Uninitialized,
		ResetRequested,
		StationModeSet,
		JoiningNetwork,
		JoiningNetwork,
		JoiningNetwork,
	}, seen)
	assert.Equal(t, SocketOpen, sink.State())
}

func TestSetup_Repeatable(t *testing.T) {
	t.Parallel()

	sink, esp, _ := newTestSink(t)

	require.NoError(t, sink.Setup(context.Background()))
	require.NoError(t, sink.Setup(context.Background()))

	cmds := esp.Commands()
	require.Len(t, cmds, 12)
	assert.Equal(t, "AT+RST", cmds[6])
	assert.Equal(t, SocketOpen, sink.State())
}

func TestSetup_CustomNetwork(t *testing.T) {
	t.Parallel()

	esp := virt.NewVirtualESP()
	cfg := Config{
		Delayer:  virt.NewRecordingDelayer(),
		SSID:     "ground",
		Password: `pa"ss`,
		UDPPort:  14555,
		Settle:   DefaultSettleTimes(),
	}
	sink := NewWithPort(esp, "/dev/ttyESP", cfg)
	require.NoError(t, sink.Setup(context.Background()))

	cmds := esp.Commands()
	require.Len(t, cmds, 6)
	assert.Equal(t, `AT+CWJAP="ground","pa\"ss"`, cmds[2])
	assert.Equal(t, `AT+CIPSTART=0,"UDP","255.255.255.255",14555,14555`, cmds[5])
}

func TestSetup_Interrupted(t *testing.T) {
	t.Parallel()

	sink, esp, delayer := newTestSink(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	delayer.OnDelay = func(n int, _ time.Duration) {
		if n == 2 {
			cancel()
		}
	}

	err := sink.Setup(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	// the join command went out, its settle delay was cut short
	assert.Len(t, esp.Commands(), 3)
	assert.Equal(t, StationModeSet, sink.State())
}

func TestSetup_WriteFailure(t *testing.T) {
	t.Parallel()

	port := virt.NewFlakyPort(virt.FlakyConfig{FailEvery: 1, Err: syscall.EIO})
	cfg := DefaultConfig()
	cfg.Delayer = virt.NewRecordingDelayer()
	sink := NewWithPort(port, "/dev/ttyGONE", cfg)

	err := sink.Setup(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, telemetry.ErrSinkWrite))
	assert.True(t, telemetry.IsFatal(err))

	trace := telemetry.GetTrace(err)
	require.NotNil(t, trace)
	require.Len(t, trace.Trace, 1)
	assert.Equal(t, []byte("AT+RST\r\n"), trace.Trace[0].Data)
	assert.Equal(t, Uninitialized, sink.State())
}

func TestSend_HeartbeatThroughBridge(t *testing.T) {
	t.Parallel()

	sink, esp, delayer := newTestSink(t)
	require.NoError(t, sink.Setup(context.Background()))
	setupDelays := len(delayer.Delays())

	hb := telemetry.NewEncoder(1, 1).Heartbeat()
	require.Len(t, hb, 17)
	require.NoError(t, sink.Send(context.Background(), hb))

	events := esp.Events()
	require.Len(t, events, 8)
	assert.Equal(t, virt.ESPCommand, events[6].Kind)
	assert.Equal(t, "AT+CIPSEND=0,17", events[6].Command)
	assert.Equal(t, virt.ESPPayload, events[7].Kind)
	assert.Equal(t, []byte(hb), events[7].Payload)

	assert.Equal(t, []time.Duration{500 * time.Millisecond, 500 * time.Millisecond},
		delayer.Delays()[setupDelays:])
	assert.Len(t, esp.ValidFrames(), 1)
	assert.Zero(t, esp.DroppedSends())
}

func TestSend_TickPairDeliversBothFrames(t *testing.T) {
	t.Parallel()

	sink, esp, _ := newTestSink(t)
	require.NoError(t, sink.Setup(context.Background()))

	enc := telemetry.NewEncoder(1, 1)
	var state telemetry.AttitudeState
	state.Advance()
	hb := enc.Heartbeat()
	att := enc.Attitude(state)

	require.NoError(t, sink.Send(context.Background(), hb))
	require.NoError(t, sink.Send(context.Background(), att))

	cmds := esp.Commands()
	assert.Equal(t, "AT+CIPSEND=0,36", cmds[len(cmds)-1])
	frames := esp.ValidFrames()
	require.Len(t, frames, 2)
	assert.Equal(t, []byte(hb), frames[0])
	assert.Equal(t, []byte(att), frames[1])

	stats := sink.Stats()
	assert.Equal(t, uint64(2), stats.Frames)
	assert.Zero(t, stats.BytesDropped)
}

func TestSend_BeforeSetupIsLost(t *testing.T) {
	t.Parallel()

	sink, esp, _ := newTestSink(t)

	hb := telemetry.NewEncoder(1, 1).Heartbeat()
	require.NoError(t, sink.Send(context.Background(), hb))

	assert.Equal(t, Uninitialized, sink.State())
	assert.Equal(t, 1, esp.DroppedSends())
}

func TestSend_PayloadWriteFailure(t *testing.T) {
	t.Parallel()

	// first write is the CIPSEND line, second is the payload
	port := virt.NewFlakyPort(virt.FlakyConfig{FailEvery: 2})
	cfg := DefaultConfig()
	cfg.Delayer = virt.NewRecordingDelayer()
	sink := NewWithPort(port, "/dev/ttyESP", cfg)

	hb := telemetry.NewEncoder(1, 1).Heartbeat()
	err := sink.Send(context.Background(), hb)
	require.Error(t, err)
	assert.True(t, errors.Is(err, telemetry.ErrSinkWrite))
	assert.True(t, errors.Is(err, virt.ErrInjectedWrite))
	assert.False(t, telemetry.IsFatal(err))

	trace := telemetry.GetTrace(err)
	require.NotNil(t, trace)
	require.Len(t, trace.Trace, 2)
	assert.Equal(t, "payload", trace.Trace[1].Note)

	assert.Equal(t, []byte("AT+CIPSEND=0,17\r\n"), port.Written())
	assert.Equal(t, uint64(len(hb)), sink.Stats().BytesDropped)
}

func TestSend_Interrupted(t *testing.T) {
	t.Parallel()

	esp := virt.NewVirtualESP()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := DefaultConfig()
	cfg.Delayer = telemetry.DelayFunc(func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	})
	sink := NewWithPort(esp, "/dev/ttyESP", cfg)

	err := sink.Send(ctx, telemetry.NewEncoder(1, 1).Heartbeat())
	require.ErrorIs(t, err, context.Canceled)

	// the CIPSEND line went out but the payload never followed
	assert.Equal(t, []string{"AT+CIPSEND=0,17"}, esp.Commands())
	assert.Empty(t, esp.Payloads())
}

func TestSink_Close(t *testing.T) {
	t.Parallel()

	sink, esp, _ := newTestSink(t)
	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())

	err := sink.Send(context.Background(), []byte{0xFE})
	assert.ErrorIs(t, err, telemetry.ErrSinkClosed)
	err = sink.Setup(context.Background())
	assert.ErrorIs(t, err, telemetry.ErrSinkClosed)
	assert.Empty(t, esp.Events())
	assert.Equal(t, telemetry.SinkESPAT, sink.Type())
}

func TestCommandRendering(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `AT+CWJAP="a","b"`, JoinCommand("a", "b"))
	assert.Equal(t, `AT+CIPSTART=0,"UDP","255.255.255.255",1,1`, OpenSocketCommand(1))
	assert.Equal(t, "AT+CIPSEND=0,36", SendCommand(36))
}

func TestConnState_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		want  string
		state ConnState
	}{
		{state: Uninitialized, want: "uninitialized"},
		{state: ResetRequested, want: "reset-requested"},
		{state: StationModeSet, want: "station-mode-set"},
		{state: JoiningNetwork, want: "joining-network"},
		{state: SocketOpen, want: "socket-open"},
		{state: ConnState(42), want: "ConnState(42)"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.state.String())
		})
	}
}
