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

import "github.com/sigurn/crc16"

// x25Table is CRC-16/X-25: reflected polynomial 0x1021 (0x8408 in reflected
// form), initial register 0xFFFF, final complement.
var x25Table = crc16.MakeTable(crc16.CRC16_X_25)

// Checksum computes the CRC-16/X-25 of data. It is total: an empty input
// yields the complement of the initial register, 0x0000.
func Checksum(data []byte) uint16 {
	return crc16.Checksum(data, x25Table)
}

// FrameChecksum computes the checksum of an encoded frame, covering every byte
// from the payload length field through the last payload byte. The start
// marker is not part of the checksummed region.
func FrameChecksum(frm []byte, payloadLen int) uint16 {
	return Checksum(frm[OffsetPayloadLength : OffsetPayload+payloadLen])
}
