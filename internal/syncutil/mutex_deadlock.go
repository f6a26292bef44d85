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

//go:build deadlock

// Package syncutil provides the mutex types used to guard sink ports and
// shared caches. Building with -tags=deadlock swaps in go-deadlock so a sink
// stuck holding its port lock during a long settle delay is reported.
package syncutil

import deadlock "github.com/sasha-s/go-deadlock"

// Mutex guards exclusive access to a sink's underlying port.
type Mutex struct {
	deadlock.Mutex
}

// RWMutex guards read-mostly state such as the detection cache.
type RWMutex struct {
	deadlock.RWMutex
}
