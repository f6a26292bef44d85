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

package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Validation errors. The root package re-exports these so callers never need
// to import an internal package to match them.
var (
	ErrInvalidFrame     = errors.New("invalid frame")
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// Validate checks the structural invariants of an encoded frame: start
// marker, declared payload length against the actual size, and the trailing
// checksum. It does not interpret the payload.
func Validate(buf []byte) error {
	if len(buf) < Overhead {
		return fmt.Errorf("%w: %d bytes is shorter than the %d byte minimum", ErrInvalidFrame, len(buf), Overhead)
	}

	if buf[OffsetStartMarker] != StartMarker {
		return fmt.Errorf("%w: start marker 0x%02X", ErrInvalidFrame, buf[OffsetStartMarker])
	}

	payloadLen := int(buf[OffsetPayloadLength])
	if len(buf) != Length(payloadLen) {
		return fmt.Errorf("%w: length field %d does not match %d byte frame",
			ErrInvalidFrame, payloadLen, len(buf))
	}

	want := FrameChecksum(buf, payloadLen)
	got := binary.LittleEndian.Uint16(buf[OffsetPayload+payloadLen:])
	if got != want {
		return fmt.Errorf("%w: trailer 0x%04X, computed 0x%04X", ErrChecksumMismatch, got, want)
	}

	return nil
}
