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
	"syscall"
	"testing"

	"github.com/ZaparooProject/go-telemetry/internal/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSinkError_Format(t *testing.T) {
	t.Parallel()

	withPort := NewSinkError("Send", "/dev/ttyUSB0", ErrSinkWrite)
	assert.Equal(t, "Send /dev/ttyUSB0: sink write failed", withPort.Error())

	noPort := NewSinkError("Setup", "", ErrSinkNotReady)
	assert.Equal(t, "Setup: sink not ready", noPort.Error())
	assert.ErrorIs(t, noPort, ErrSinkNotReady)
}

func TestNewSinkWriteError(t *testing.T) {
	t.Parallel()

	t.Run("with cause", func(t *testing.T) {
		t.Parallel()
		err := NewSinkWriteError("Send", "COM3", syscall.EIO)
		assert.ErrorIs(t, err, ErrSinkWrite)
		assert.ErrorIs(t, err, syscall.EIO)

		var sinkErr *SinkError
		require.ErrorAs(t, err, &sinkErr)
		assert.Equal(t, "Send", sinkErr.Op)
		assert.Equal(t, "COM3", sinkErr.Port)
	})

	t.Run("short write", func(t *testing.T) {
		t.Parallel()
		err := NewSinkWriteError("writeCommand", "COM3", nil)
		assert.ErrorIs(t, err, ErrSinkWrite)
		assert.Equal(t, "writeCommand COM3: sink write failed", err.Error())
	})
}

func TestFrameErrorsShared(t *testing.T) {
	t.Parallel()

	frm := NewEncoder(1, 1).Heartbeat()
	frm[frame.OffsetPayload] ^= 0xFF
	err := frm.Validate()
	assert.ErrorIs(t, err, ErrChecksumMismatch)

	err = Frame{0x00}.Validate()
	assert.ErrorIs(t, err, ErrInvalidFrame)
}

func TestIsFatal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		name string
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "plain write failure", err: NewSinkWriteError("Send", "p", errors.New("busy")), want: false},
		{name: "not ready", err: ErrSinkNotReady, want: false},
		{name: "closed", err: NewSinkClosedError("Send", "p"), want: true},
		{name: "eof", err: fmt.Errorf("read: %w", io.EOF), want: true},
		{name: "closed pipe", err: io.ErrClosedPipe, want: true},
		{name: "EIO", err: NewSinkWriteError("Send", "p", syscall.EIO), want: true},
		{name: "ENXIO", err: syscall.ENXIO, want: true},
		{name: "ENODEV", err: fmt.Errorf("wrapped: %w", syscall.ENODEV), want: true},
		{name: "EAGAIN", err: syscall.EAGAIN, want: false},
		{
			name: "traced closed",
			err:  NewTraceBuffer(SinkUART, "p", 4).WrapError(NewSinkClosedError("Send", "p")),
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsFatal(tt.err))
		})
	}
}
