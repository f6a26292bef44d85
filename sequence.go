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

// SequenceCounter numbers outgoing frames. It wraps from 255 to 0 and the
// first value handed out is 1.
//
// Thread Safety: SequenceCounter is NOT thread-safe. It is owned by a single
// Encoder and must only be advanced from the goroutine driving that encoder.
// Callers sharing an Encoder across goroutines must add their own locking.
type SequenceCounter struct {
	value uint8
}

// Next increments the counter and returns the new value.
func (s *SequenceCounter) Next() uint8 {
	s.value++
	return s.value
}

// Current returns the last value handed out, or 0 before the first call to Next.
func (s *SequenceCounter) Current() uint8 {
	return s.value
}
