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

package detection

import (
	"time"

	"github.com/ZaparooProject/go-telemetry/internal/syncutil"
)

// portCache holds the last enumeration result. Entries are stored before
// filtering so that callers with different options can share them.
type portCache struct {
	timestamp time.Time
	ports     []PortInfo
	mu        syncutil.RWMutex
	valid     bool
}

var cache = &portCache{}

// getCached returns the cached ports if present and younger than ttl
func getCached(ttl time.Duration) ([]PortInfo, bool) {
	cache.mu.RLock()
	defer cache.mu.RUnlock()

	if !cache.valid || time.Since(cache.timestamp) > ttl {
		return nil, false
	}

	ports := make([]PortInfo, len(cache.ports))
	copy(ports, cache.ports)
	return ports, true
}

func setCached(ports []PortInfo) {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	cache.ports = make([]PortInfo, len(ports))
	copy(cache.ports, ports)
	cache.timestamp = time.Now()
	cache.valid = true
}

func clearCache() {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	cache.ports = nil
	cache.valid = false
}
