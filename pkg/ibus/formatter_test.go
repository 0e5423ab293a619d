// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ibus

import (
	"strings"
	"testing"
	"time"
)

func TestFormatFrame(t *testing.T) {
	f := Frame{
		Channels:  rampChannels(1000, 1),
		Timestamp: time.Date(2025, 1, 1, 9, 30, 15, 250_000_000, time.Local),
	}
	out := FormatFrame(f)

	if !strings.HasPrefix(out, "[09:30:15.250] CHANNELS (0x40) len=32\n") {
		t.Errorf("unexpected header: %q", out)
	}
	if !strings.Contains(out, "CH1 =1000") || !strings.Contains(out, "CH14=1013") {
		t.Errorf("channels missing from output: %q", out)
	}
	if strings.Count(out, "\n") != 3 {
		t.Errorf("expected header plus two channel lines, got %q", out)
	}
}

func TestFormatCommand(t *testing.T) {
	if FormatCommand(CommandChannels) != "CHANNELS" {
		t.Error("0x40 should format as CHANNELS")
	}
	if FormatCommand(0x41) != "UNKNOWN" {
		t.Error("0x41 should format as UNKNOWN")
	}
}

func TestFormatHex(t *testing.T) {
	out := FormatHex(EncodeFrame(uniformChannels(1500)))
	if !strings.HasPrefix(out, "  Bytes: 20 40 DC 05") {
		t.Errorf("unexpected hex dump: %q", out)
	}
	if strings.Count(out, "\n") != 2 {
		t.Errorf("32 bytes should span two lines: %q", out)
	}
}

func TestFormatCounters(t *testing.T) {
	out := FormatCounters(Counters{Bytes: 64, Frames: 2})
	if !strings.Contains(out, "bytes=64 frames=2") {
		t.Errorf("unexpected counters line: %q", out)
	}
}
