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

// Wire layout markers
const (
	StartMarker = 0xFE // First byte of every frame, excluded from the checksum
)

// Field offsets within an encoded frame
const (
	OffsetStartMarker   = 0
	OffsetPayloadLength = 1
	OffsetSequence      = 2
	OffsetSystemID      = 3
	OffsetComponentID   = 4
	OffsetMessageID     = 5
	OffsetPayload       = 6
)

// Frame size constants
const (
	HeaderLength   = 6   // marker + length + sequence + system id + component id + message id
	TrailerLength  = 2   // little-endian CRC-16
	Overhead       = HeaderLength + TrailerLength
	MaxPayloadSize = 255 // payload length is a single byte
	MaxFrameLength = Overhead + MaxPayloadSize
)

// Message identifiers
const (
	MsgIDHeartbeat = 0
	MsgIDAttitude  = 30
)

// Payload sizes for the supported messages
const (
	HeartbeatPayloadLength = 9
	AttitudePayloadLength  = 28
)

// Length returns the total encoded length of a frame carrying n payload bytes.
func Length(n int) int {
	return HeaderLength + n + TrailerLength
}
