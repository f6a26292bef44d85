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

// Per-tick attitude increments, in radians.
const (
	PitchStep = 0.1
	RollStep  = 0.05
	YawStep   = 0.025
)

// TimeBootStepMs is how far time_boot_ms advances per loop tick.
const TimeBootStepMs = 1000

// Attitude is an orientation in radians.
type Attitude struct {
	Pitch float32
	Roll  float32
	Yaw   float32
}

// AttitudeState is the simulated vehicle state reported in attitude frames.
// It is never reset; the angles grow without bound and float overflow is not
// handled.
type AttitudeState struct {
	Attitude
	TimeBootMs uint32
}

// Advance moves the state forward by one loop tick.
func (s *AttitudeState) Advance() {
	s.Pitch += PitchStep
	s.Roll += RollStep
	s.Yaw += YawStep
	s.TimeBootMs += TimeBootStepMs
}
