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

package testing

import (
	"context"
	"time"

	"github.com/ZaparooProject/go-telemetry/internal/syncutil"
)

// RecordingDelayer records requested delays and returns immediately. It
// honours context cancellation so loops driven by it can still be stopped.
type RecordingDelayer struct {
	// OnDelay, if set, is called after each recorded delay. Tests use it to
	// cancel a context after a given number of ticks.
	OnDelay func(n int, d time.Duration)
	delays  []time.Duration
	mu      syncutil.Mutex
}

// NewRecordingDelayer creates an empty recorder
func NewRecordingDelayer() *RecordingDelayer {
	return &RecordingDelayer{}
}

// Delay records d
func (r *RecordingDelayer) Delay(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	r.delays = append(r.delays, d)
	n := len(r.delays)
	hook := r.OnDelay
	r.mu.Unlock()

	if hook != nil {
		hook(n, d)
	}
	return nil
}

// Delays returns a copy of the recorded delays
func (r *RecordingDelayer) Delays() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

// Total returns the sum of the recorded delays
func (r *RecordingDelayer) Total() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total time.Duration
	for _, d := range r.delays {
		total += d
	}
	return total
}
