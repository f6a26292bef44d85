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
	"context"
	"errors"
	"testing"
	"time"

	telemetry "github.com/ZaparooProject/go-telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial/enumerator"
)

// fakeEnumerator replaces the OS enumerator for one test and counts calls
func fakeEnumerator(t *testing.T, ports []*enumerator.PortDetails, err error) *int {
	t.Helper()

	calls := 0
	orig := listPorts
	listPorts = func() ([]*enumerator.PortDetails, error) {
		calls++
		return ports, err
	}
	clearCache()
	t.Cleanup(func() {
		listPorts = orig
		clearCache()
	})
	return &calls
}

var hostPorts = []*enumerator.PortDetails{
	{Name: "/dev/ttyS0"},
	{Name: "/dev/ttyUSB1", IsUSB: true, VID: "1a86", PID: "7523", Product: "USB Serial"},
	{Name: "/dev/ttyACM0", IsUSB: true, VID: "0483", PID: "374b", Product: "STLink"},
	{Name: "/dev/ttyACM1", IsUSB: true, VID: "0483", PID: "5740", Product: "STM32 Virtual ComPort"},
	{Name: "/dev/ttyUSB0", IsUSB: true, VID: "10c4", PID: "ea60", SerialNumber: "0001"},
	nil,
}

func TestFindSerialPorts_RanksAndFilters(t *testing.T) {
	fakeEnumerator(t, hostPorts, nil)

	opts := DefaultOptions()
	ports, err := FindSerialPorts(context.Background(), &opts)
	require.NoError(t, err)

	paths := make([]string, 0, len(ports))
	for _, p := range ports {
		paths = append(paths, p.Path)
	}
	// ST-Link is blocked, ttyS0 has no USB ids
	assert.Equal(t, []string{"/dev/ttyUSB0", "/dev/ttyUSB1", "/dev/ttyACM1"}, paths)

	assert.Equal(t, "CP210x", ports[0].Bridge)
	assert.Equal(t, "10C4:EA60", ports[0].VIDPID)
	assert.Equal(t, "0001", ports[0].SerialNumber)
	assert.Equal(t, High, ports[0].Confidence)
	assert.Equal(t, "CH340", ports[1].Bridge)
	assert.Equal(t, Medium, ports[2].Confidence)
	assert.Empty(t, ports[2].Bridge)
}

func TestFindSerialPorts_IncludeNonUSBAndIgnore(t *testing.T) {
	fakeEnumerator(t, hostPorts, nil)

	opts := Options{
		IncludeNonUSB: true,
		IgnorePaths:   []string{"/dev/ttyUSB0", "/dev/ttyACM1"},
	}
	ports, err := FindSerialPorts(context.Background(), &opts)
	require.NoError(t, err)

	require.Len(t, ports, 3)
	assert.Equal(t, "/dev/ttyUSB1", ports[0].Path)
	assert.Equal(t, "/dev/ttyACM0", ports[1].Path, "empty blocklist keeps the ST-Link")
	assert.Equal(t, "/dev/ttyS0", ports[2].Path)
	assert.Equal(t, Low, ports[2].Confidence)
}

func TestFindSerialPorts_NoPorts(t *testing.T) {
	fakeEnumerator(t, []*enumerator.PortDetails{{Name: "/dev/ttyS0"}}, nil)

	opts := DefaultOptions()
	_, err := FindSerialPorts(context.Background(), &opts)
	require.ErrorIs(t, err, ErrNoPortsFound)
	assert.ErrorIs(t, err, telemetry.ErrNoPortsFound)
}

func TestFindSerialPorts_EnumerationError(t *testing.T) {
	cause := errors.New("udev unavailable")
	fakeEnumerator(t, nil, cause)

	opts := DefaultOptions()
	_, err := FindSerialPorts(context.Background(), &opts)
	require.ErrorIs(t, err, ErrEnumerationFailed)
	assert.ErrorIs(t, err, cause)
}

func TestFindSerialPorts_Canceled(t *testing.T) {
	calls := fakeEnumerator(t, hostPorts, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := DefaultOptions()
	_, err := FindSerialPorts(ctx, &opts)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, *calls)
}

func TestFindSerialPorts_Cache(t *testing.T) {
	calls := fakeEnumerator(t, hostPorts, nil)

	opts := DefaultOptions()
	_, err := FindSerialPorts(context.Background(), &opts)
	require.NoError(t, err)
	_, err = FindSerialPorts(context.Background(), &opts)
	require.NoError(t, err)
	assert.Equal(t, 1, *calls)

	// cached results are filtered with the caller's options
	opts.IgnorePaths = []string{"/dev/ttyUSB0"}
	ports, err := FindSerialPorts(context.Background(), &opts)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB1", ports[0].Path)
	assert.Equal(t, 1, *calls)

	ClearCache()
	_, err = FindSerialPorts(context.Background(), &opts)
	require.NoError(t, err)
	assert.Equal(t, 2, *calls)

	opts.EnableCache = false
	_, err = FindSerialPorts(context.Background(), &opts)
	require.NoError(t, err)
	assert.Equal(t, 3, *calls)
}

func TestFindSerialPorts_CacheExpires(t *testing.T) {
	calls := fakeEnumerator(t, hostPorts, nil)

	opts := DefaultOptions()
	opts.CacheTTL = time.Millisecond
	_, err := FindSerialPorts(context.Background(), &opts)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	_, err = FindSerialPorts(context.Background(), &opts)
	require.NoError(t, err)
	assert.Equal(t, 2, *calls)
}

func TestBestPort(t *testing.T) {
	fakeEnumerator(t, hostPorts, nil)

	opts := DefaultOptions()
	path, err := BestPort(context.Background(), &opts)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", path)
}

func TestCache_CopiesEntries(t *testing.T) {
	clearCache()
	t.Cleanup(clearCache)

	ports := []PortInfo{{Path: "/dev/ttyUSB0"}}
	setCached(ports)
	ports[0].Path = "changed"

	got, ok := getCached(time.Minute)
	require.True(t, ok)
	assert.Equal(t, "/dev/ttyUSB0", got[0].Path)

	got[0].Path = "changed again"
	again, _ := getCached(time.Minute)
	assert.Equal(t, "/dev/ttyUSB0", again[0].Path)
}

func TestPortInfo_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		want string
		port PortInfo
	}{
		{
			port: PortInfo{Path: "/dev/ttyUSB0", VIDPID: "10C4:EA60", Bridge: "CP210x", Confidence: High},
			want: "/dev/ttyUSB0 [CP210x 10C4:EA60] (confidence: high)",
		},
		{
			port: PortInfo{Path: "COM7", VIDPID: "0483:5740", Confidence: Medium},
			want: "COM7 [0483:5740] (confidence: medium)",
		},
		{
			port: PortInfo{Path: "/dev/ttyS0", Confidence: Confidence(9)},
			want: "/dev/ttyS0 (confidence: unknown)",
		},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.port.String())
	}
}
