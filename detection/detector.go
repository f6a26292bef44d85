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

// Package detection finds serial ports that may carry a telemetry link.
//
// Ports are listed through the OS enumerator, never opened: a telemetry sink
// is write-only, so there is nothing to probe. USB-UART bridges commonly used
// for radio and Wi-Fi companion links are ranked ahead of other ports.
package detection

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	telemetry "github.com/ZaparooProject/go-telemetry"
	"go.bug.st/serial/enumerator"
)

// Confidence is how likely a port is to be a telemetry link
type Confidence int

const (
	// Low means a serial port with nothing known about it
	Low Confidence = iota
	// Medium means a USB serial port from an unrecognised vendor
	Medium
	// High means a known USB-UART bridge or ESP module
	High
)

// String returns the confidence name
func (c Confidence) String() string {
	switch c {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return "unknown"
	}
}

// PortInfo describes a serial port found on the host
type PortInfo struct {
	// Path to open (e.g. "/dev/ttyUSB0", "COM3")
	Path string
	// VIDPID is the USB vendor and product id as "VVVV:PPPP", empty for non-USB ports
	VIDPID string
	// Product is the OS-reported description, if any
	Product string
	// SerialNumber is the USB serial number, if any
	SerialNumber string
	// Bridge names the recognised USB-UART chip, if any
	Bridge     string
	Confidence Confidence
}

// String returns a human-readable representation of the port
func (p PortInfo) String() string {
	if p.Bridge != "" {
		return fmt.Sprintf("%s [%s %s] (confidence: %s)", p.Path, p.Bridge, p.VIDPID, p.Confidence)
	}
	if p.VIDPID != "" {
		return fmt.Sprintf("%s [%s] (confidence: %s)", p.Path, p.VIDPID, p.Confidence)
	}
	return fmt.Sprintf("%s (confidence: %s)", p.Path, p.Confidence)
}

// Options configures port discovery
type Options struct {
	// USB VID:PID pairs to skip (e.g. ["0483:374B"])
	Blocklist []string
	// Port paths to skip (e.g. ["/dev/ttyUSB0", "COM2"])
	IgnorePaths []string
	// CacheTTL is how long an enumeration result is reused
	CacheTTL time.Duration
	// IncludeNonUSB keeps built-in UARTs and other ports without USB ids
	IncludeNonUSB bool
	// EnableCache reuses recent enumeration results
	EnableCache bool
}

// DefaultOptions returns the options used by the daemon
func DefaultOptions() Options {
	return Options{
		Blocklist:   DefaultBlocklist(),
		EnableCache: true,
		CacheTTL:    30 * time.Second,
	}
}

// Errors
var (
	// ErrNoPortsFound indicates no usable serial port is present
	ErrNoPortsFound = telemetry.ErrNoPortsFound
	// ErrEnumerationFailed indicates the OS port enumerator returned an error
	ErrEnumerationFailed = errors.New("serial port enumeration failed")
)

// knownBridges maps USB ids to the bridge chips seen on telemetry radios and
// ESP companion boards.
var knownBridges = map[string]string{
	"10C4:EA60": "CP210x",
	"1A86:7523": "CH340",
	"1A86:55D4": "CH9102",
	"0403:6001": "FT232R",
	"0403:6015": "FT231X",
	"067B:2303": "PL2303",
	"303A:1001": "ESP32 USB-JTAG",
}

// listPorts is the OS enumerator, replaced in tests
var listPorts = enumerator.GetDetailedPortsList

// FindSerialPorts lists serial ports, drops blocked and ignored ones and
// returns the rest ordered by confidence, best first. Ports of equal
// confidence keep path order.
func FindSerialPorts(ctx context.Context, opts *Options) ([]PortInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if opts.EnableCache {
		if cached, found := getCached(opts.CacheTTL); found {
			return finish(filterPorts(cached, opts))
		}
	}

	ports, err := enumerate()
	if err != nil {
		return nil, err
	}

	if opts.EnableCache {
		if len(ports) > 0 {
			setCached(ports)
		} else {
			clearCache()
		}
	}

	return finish(filterPorts(ports, opts))
}

// BestPort returns the path of the most likely telemetry port
func BestPort(ctx context.Context, opts *Options) (string, error) {
	ports, err := FindSerialPorts(ctx, opts)
	if err != nil {
		return "", err
	}
	return ports[0].Path, nil
}

func finish(ports []PortInfo) ([]PortInfo, error) {
	if len(ports) == 0 {
		return nil, ErrNoPortsFound
	}
	sort.SliceStable(ports, func(i, j int) bool {
		if ports[i].Confidence != ports[j].Confidence {
			return ports[i].Confidence > ports[j].Confidence
		}
		return ports[i].Path < ports[j].Path
	})
	return ports, nil
}

// enumerate asks the OS for every serial port and classifies it
func enumerate() ([]PortInfo, error) {
	details, err := listPorts()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEnumerationFailed, err)
	}

	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		if d == nil || d.Name == "" {
			continue
		}
		ports = append(ports, classify(d))
	}
	return ports, nil
}

func classify(d *enumerator.PortDetails) PortInfo {
	port := PortInfo{
		Path:         d.Name,
		Product:      d.Product,
		SerialNumber: d.SerialNumber,
		Confidence:   Low,
	}
	if !d.IsUSB {
		return port
	}

	port.VIDPID = strings.ToUpper(d.VID + ":" + d.PID)
	port.Confidence = Medium
	if bridge, ok := knownBridges[port.VIDPID]; ok {
		port.Bridge = bridge
		port.Confidence = High
	}
	return port
}

// filterPorts applies IgnorePaths, Blocklist and the USB-only rule. Cached
// results go through it too, so changing options never serves stale matches.
func filterPorts(ports []PortInfo, opts *Options) []PortInfo {
	filtered := make([]PortInfo, 0, len(ports))
	for _, port := range ports {
		if port.VIDPID == "" && !opts.IncludeNonUSB {
			continue
		}
		if IsPathIgnored(port.Path, opts.IgnorePaths) {
			continue
		}
		if port.VIDPID != "" && IsBlocked(port.VIDPID, opts.Blocklist) {
			continue
		}
		filtered = append(filtered, port)
	}
	return filtered
}

// ClearCache drops any cached enumeration result
func ClearCache() {
	clearCache()
}
