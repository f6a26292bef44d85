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
	"encoding/binary"
	"math"

	"github.com/ZaparooProject/go-telemetry/internal/frame"
)

// Default addressing for frames produced by this system
const (
	DefaultSystemID    = 1
	DefaultComponentID = 1
)

// Message identifiers, re-exported from the wire layout
const (
	MsgIDHeartbeat = frame.MsgIDHeartbeat
	MsgIDAttitude  = frame.MsgIDAttitude
)

// Frame is one encoded wire frame:
//
//	0xFE | len | seq | sys | comp | msg | payload[len] | crc_lo | crc_hi
//
// The CRC-16/X-25 covers len through the last payload byte.
type Frame []byte

// PayloadLength returns the declared payload length
func (f Frame) PayloadLength() int {
	return int(f[frame.OffsetPayloadLength])
}

// Sequence returns the sequence number
func (f Frame) Sequence() uint8 {
	return f[frame.OffsetSequence]
}

// SystemID returns the sending system id
func (f Frame) SystemID() uint8 {
	return f[frame.OffsetSystemID]
}

// ComponentID returns the sending component id
func (f Frame) ComponentID() uint8 {
	return f[frame.OffsetComponentID]
}

// MessageID returns the message id
func (f Frame) MessageID() uint8 {
	return f[frame.OffsetMessageID]
}

// Payload returns the payload bytes
func (f Frame) Payload() []byte {
	return f[frame.OffsetPayload : frame.OffsetPayload+f.PayloadLength()]
}

// Checksum returns the trailing checksum
func (f Frame) Checksum() uint16 {
	return binary.LittleEndian.Uint16(f[frame.OffsetPayload+f.PayloadLength():])
}

// Validate checks the marker, length and checksum of the frame
func (f Frame) Validate() error {
	//nolint:wrapcheck // errors already carry the frame context
	return frame.Validate(f)
}

// Encoder builds heartbeat and attitude frames. It owns the sequence counter,
// so every frame produced by one Encoder is numbered from the same sequence.
//
// Thread Safety: Encoder is NOT thread-safe, see SequenceCounter.
type Encoder struct {
	seq         SequenceCounter
	systemID    byte
	componentID byte
}

// NewEncoder creates an encoder stamping frames with the given addressing
func NewEncoder(systemID, componentID byte) *Encoder {
	return &Encoder{
		systemID:    systemID,
		componentID: componentID,
	}
}

// Sequence returns the sequence number of the most recent frame
func (e *Encoder) Sequence() uint8 {
	return e.seq.Current()
}

// Heartbeat encodes a heartbeat frame. Type, autopilot, base mode,
// custom mode and system status are all placeholders set to zero.
func (e *Encoder) Heartbeat() Frame {
	var payload [frame.HeartbeatPayloadLength]byte
	// type(0) autopilot(1) base_mode(2) custom_mode(3..6) system_status(7)
	// plus one trailing reserved byte
	return e.encode(MsgIDHeartbeat, payload[:])
}

// Attitude encodes an attitude frame. Angles go out as roll, pitch, yaw,
// which differs from the field order of Attitude.
func (e *Encoder) Attitude(state AttitudeState) Frame {
	var payload [frame.AttitudePayloadLength]byte
	binary.LittleEndian.PutUint32(payload[0:4], state.TimeBootMs)
	binary.LittleEndian.PutUint32(payload[4:8], math.Float32bits(state.Roll))
	binary.LittleEndian.PutUint32(payload[8:12], math.Float32bits(state.Pitch))
	binary.LittleEndian.PutUint32(payload[12:16], math.Float32bits(state.Yaw))
	// payload[16:28] stays zero: angular rates are not reported
	return e.encode(MsgIDAttitude, payload[:])
}

// encode lays out header, payload and trailer. The sequence byte is written
// as a placeholder and patched once the payload is in place.
func (e *Encoder) encode(msgID byte, payload []byte) Frame {
	buf := make([]byte, 0, frame.Length(len(payload)))
	buf = append(buf,
		frame.StartMarker,
		byte(len(payload)),
		0x00, // sequence placeholder
		e.systemID,
		e.componentID,
		msgID,
	)
	buf = append(buf, payload...)
	buf[frame.OffsetSequence] = e.seq.Next()
	buf = binary.LittleEndian.AppendUint16(buf, frame.FrameChecksum(buf, len(payload)))
	return Frame(buf)
}
