// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ibus

import (
	"strings"
	"testing"
)

func TestStatistics_Update(t *testing.T) {
	s := NewStatistics()
	s.Update(Counters{Frames: 90, ChecksumErrors: 6, UnknownCommands: 1, AbortedFrames: 3})

	if s.TotalFrames() != 100 {
		t.Errorf("TotalFrames = %d, want 100", s.TotalFrames())
	}

	out := s.String()
	for _, want := range []string{
		"Total Frames:         100",
		"Valid Frames:          90 (90.0%)",
		"Checksum Errors:        6 (6.0%)",
		"Unknown Command:        1 (1.0%)",
		"Aborted Frames:         3 (3.0%)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestStatistics_Record(t *testing.T) {
	s := NewStatistics()
	s.Record(nil)
	s.Record([]ValidationError{{Type: AnomalyOutOfRange}, {Type: AnomalyOutOfRange}})
	s.Record([]ValidationError{{Type: AnomalyStaleFrame}})

	if s.ValidFrames != 1 || s.AnomalousFrames != 2 {
		t.Errorf("valid=%d anomalous=%d, want 1 and 2", s.ValidFrames, s.AnomalousFrames)
	}
	if s.OutOfRange != 2 || s.StaleFrames != 1 {
		t.Errorf("out_of_range=%d stale=%d, want 2 and 1", s.OutOfRange, s.StaleFrames)
	}
	if !strings.Contains(s.String(), "Out of Range:         2") {
		t.Errorf("summary should list out of range count:\n%s", s.String())
	}
}

func TestStatistics_Reset(t *testing.T) {
	s := NewStatistics()
	s.Update(Counters{Frames: 50, ChecksumErrors: 5})
	s.Record(nil)
	s.Reset()

	if s.TotalFrames() != 0 || s.ValidFrames != 0 {
		t.Errorf("counters not cleared: total=%d valid=%d", s.TotalFrames(), s.ValidFrames)
	}

	// Decoder counters are cumulative; deltas restart at the reset point
	s.Update(Counters{Frames: 60, ChecksumErrors: 5})
	if s.Decoder.Frames != 10 || s.Decoder.ChecksumErrors != 0 {
		t.Errorf("after reset: frames=%d checksum=%d, want 10 and 0", s.Decoder.Frames, s.Decoder.ChecksumErrors)
	}
}
