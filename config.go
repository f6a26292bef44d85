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
	"fmt"
	"time"

	"periph.io/x/conn/v3/physic"
)

// Link defaults
const (
	// DefaultUARTBaud is the direct telemetry link speed.
	DefaultUARTBaud = 921600
	// DefaultESPATBaud is the stock ESP-AT firmware speed.
	DefaultESPATBaud = 115200
	// DefaultUDPPort is the port ground stations listen on for broadcast telemetry.
	DefaultUDPPort = 14550
	// DefaultSPIFrequency is a conservative clock for SPI-attached radios.
	DefaultSPIFrequency = 1 * physic.MegaHertz
	// DefaultInterval is the pause between loop ticks.
	DefaultInterval = time.Second
)

// Default network credentials for the companion Wi-Fi module
const (
	DefaultSSID     = "F405WTE"
	DefaultPassword = "f405wte"
)

// Config describes one telemetry session: frame addressing, loop pacing
// and which sink to open.
type Config struct {
	// Sink selects the backend
	Sink SinkType
	// Device is the serial port or SPI bus name (auto-detect if empty for serial sinks)
	Device string
	// SSID and Password are used by the ESP-AT sink to join a network
	SSID     string
	Password string
	// Interval is the pause between loop ticks
	Interval time.Duration
	// SPIFrequency is the SPI clock for the spi sink
	SPIFrequency physic.Frequency
	// Baud is the serial speed; 0 selects the default for the sink
	Baud int
	// UDPPort is the broadcast port opened by the ESP-AT sink
	UDPPort int
	// SystemID and ComponentID stamp every frame
	SystemID    byte
	ComponentID byte
}

// DefaultConfig returns the configuration used by the reference hardware
func DefaultConfig() *Config {
	return &Config{
		Sink:         SinkUART,
		SystemID:     DefaultSystemID,
		ComponentID:  DefaultComponentID,
		Interval:     DefaultInterval,
		SSID:         DefaultSSID,
		Password:     DefaultPassword,
		UDPPort:      DefaultUDPPort,
		SPIFrequency: DefaultSPIFrequency,
	}
}

// EffectiveBaud returns Baud, or the default speed for the configured sink
func (c *Config) EffectiveBaud() int {
	if c.Baud > 0 {
		return c.Baud
	}
	if c.Sink == SinkESPAT {
		return DefaultESPATBaud
	}
	return DefaultUARTBaud
}

// Validate checks the configuration for values no sink can work with
func (c *Config) Validate() error {
	if _, err := ParseSinkType(string(c.Sink)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Interval < 0 {
		return fmt.Errorf("%w: negative interval %v", ErrInvalidConfig, c.Interval)
	}
	if c.Baud < 0 {
		return fmt.Errorf("%w: negative baud rate %d", ErrInvalidConfig, c.Baud)
	}

	switch c.Sink {
	case SinkESPAT:
		if c.SSID == "" {
			return fmt.Errorf("%w: espat sink requires an SSID", ErrInvalidConfig)
		}
		if c.UDPPort <= 0 || c.UDPPort > 65535 {
			return fmt.Errorf("%w: UDP port %d out of range", ErrInvalidConfig, c.UDPPort)
		}
	case SinkSPI:
		if c.SPIFrequency <= 0 {
			return fmt.Errorf("%w: SPI frequency must be positive", ErrInvalidConfig)
		}
	case SinkUART, SinkMock:
	}

	return nil
}
