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

// Command telemetryd streams heartbeat and attitude frames to a UART, an
// ESP-AT Wi-Fi bridge or an SPI radio until interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	telemetry "github.com/ZaparooProject/go-telemetry"
	"github.com/ZaparooProject/go-telemetry/detection"
	"github.com/ZaparooProject/go-telemetry/transport/espat"
	"github.com/ZaparooProject/go-telemetry/transport/spi"
	"github.com/ZaparooProject/go-telemetry/transport/uart"
	"periph.io/x/conn/v3/physic"
)

type options struct {
	cfg        *telemetry.Config
	debug      bool
	logSession bool
}

// parseFlags builds the session configuration from command-line arguments
func parseFlags(args []string, stderr io.Writer) (*options, error) {
	defaults := telemetry.DefaultConfig()

	fs := flag.NewFlagSet("telemetryd", flag.ContinueOnError)
	fs.SetOutput(stderr)

	sinkName := fs.String("sink", string(defaults.Sink), "Sink type: uart, espat (wifi), spi or mock")
	device := fs.String("device", "", "Serial port or SPI bus (auto-detect serial port if empty)")
	baud := fs.Int("baud", 0, "Serial baud rate (0 = 921600 for uart, 115200 for espat)")
	ssid := fs.String("ssid", defaults.SSID, "Wi-Fi network joined by the ESP-AT bridge")
	password := fs.String("password", defaults.Password, "Wi-Fi password for the ESP-AT bridge")
	udpPort := fs.Int("udp-port", defaults.UDPPort, "UDP broadcast port opened by the ESP-AT bridge")
	interval := fs.Duration("interval", defaults.Interval, "Pause between telemetry ticks")
	spiHz := fs.Int64("spi-hz", int64(defaults.SPIFrequency/physic.Hertz), "SPI clock in Hz")
	debug := fs.Bool("debug", false, "Enable debug output")
	logSession := fs.Bool("log-session", false, "Write a telemetry_YYYYMMDD_HHMMSS.log session log")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}

	sinkType, err := telemetry.ParseSinkType(*sinkName)
	if err != nil {
		return nil, fmt.Errorf("invalid -sink: %w", err)
	}

	cfg := defaults
	cfg.Sink = sinkType
	cfg.Device = *device
	cfg.Baud = *baud
	cfg.SSID = *ssid
	cfg.Password = *password
	cfg.UDPPort = *udpPort
	cfg.Interval = *interval
	cfg.SPIFrequency = physic.Frequency(*spiHz) * physic.Hertz

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &options{cfg: cfg, debug: *debug, logSession: *logSession}, nil
}

// resolveDevice fills in the serial port when none was given
func resolveDevice(ctx context.Context, cfg *telemetry.Config) (string, error) {
	if cfg.Device != "" || cfg.Sink == telemetry.SinkSPI || cfg.Sink == telemetry.SinkMock {
		return cfg.Device, nil
	}

	detectOpts := detection.DefaultOptions()
	ports, err := detection.FindSerialPorts(ctx, &detectOpts)
	if err != nil {
		return "", fmt.Errorf("failed to auto-detect serial port: %w", err)
	}
	for _, p := range ports {
		telemetry.Debugf("candidate port: %s", p)
	}
	return ports[0].Path, nil
}

// newSink opens the configured sink
func newSink(ctx context.Context, cfg *telemetry.Config) (telemetry.Sink, error) {
	device, err := resolveDevice(ctx, cfg)
	if err != nil {
		return nil, err
	}

	switch cfg.Sink {
	case telemetry.SinkUART:
		sink, err := uart.New(device, cfg.EffectiveBaud())
		if err != nil {
			return nil, fmt.Errorf("failed to create UART sink: %w", err)
		}
		return sink, nil
	case telemetry.SinkESPAT:
		sink, err := espat.New(device, cfg.EffectiveBaud(), espat.Config{
			SSID:     cfg.SSID,
			Password: cfg.Password,
			UDPPort:  cfg.UDPPort,
			Settle:   espat.DefaultSettleTimes(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create ESP-AT sink: %w", err)
		}
		return sink, nil
	case telemetry.SinkSPI:
		sink, err := spi.New(device, cfg.SPIFrequency)
		if err != nil {
			return nil, fmt.Errorf("failed to create SPI sink: %w", err)
		}
		return sink, nil
	case telemetry.SinkMock:
		return telemetry.NewMockSink(), nil
	default:
		return nil, telemetry.NewSinkError("newSink", string(cfg.Sink), telemetry.ErrUnsupportedSink)
	}
}

// openSink is replaced in tests
var openSink = newSink

func run(ctx context.Context, opts *options, stdout io.Writer) error {
	cfg := opts.cfg

	sink, err := openSink(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := sink.Close(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to close sink: %v\n", err)
		}
	}()

	enc := telemetry.NewEncoder(cfg.SystemID, cfg.ComponentID)
	loop := telemetry.NewLoop(enc, sink, telemetry.WithInterval(cfg.Interval))

	_, _ = fmt.Fprintf(stdout, "Streaming telemetry over %s every %v. Press Ctrl+C to stop...\n",
		sink.Type(), cfg.Interval)

	start := time.Now()
	err = loop.Run(ctx)

	stats := loop.Stats()
	_, _ = fmt.Fprintf(stdout, "Sent %d ticks in %v: %d frames, %d bytes written, %d dropped, %d send failures\n",
		stats.Ticks, time.Since(start).Round(time.Millisecond), stats.Sink.Frames,
		stats.Sink.BytesWritten, stats.Sink.BytesDropped, stats.SendFailures)
	return err
}

func main() {
	os.Exit(mainWithExitCode(os.Args[1:]))
}

func mainWithExitCode(args []string) int {
	opts, err := parseFlags(args, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	if opts.debug {
		telemetry.SetDebugEnabled(true)
	}
	if opts.logSession {
		path, err := telemetry.InitSessionLog()
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		defer func() { _ = telemetry.CloseSessionLog() }()
		_, _ = fmt.Printf("Session log: %s\n", path)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdout); err != nil {
		if errors.Is(err, context.Canceled) {
			_, _ = fmt.Print("\nShutting down gracefully...\n")
			return 0
		}
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if te := telemetry.GetTrace(err); te != nil {
			_, _ = fmt.Fprint(os.Stderr, te.FormatTrace())
		}
		return 1
	}
	return 0
}
