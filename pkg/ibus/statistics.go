// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ibus

import (
	"fmt"
	"time"
)

// Statistics tracks frame statistics and error rates
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Decoder counters since StartTime
	Decoder Counters
	raw     Counters
	base    Counters

	// Transport counters
	Overruns uint64

	// Validation counters
	ValidFrames     uint64
	AnomalousFrames uint64
	OutOfRange      uint64
	StaleFrames     uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update records a decoder counter snapshot
func (s *Statistics) Update(c Counters) {
	s.raw = c
	s.Decoder = c.Sub(s.base)
	s.LastUpdateTime = time.Now()
}

// Record records the validation result of one decoded frame
func (s *Statistics) Record(validationErrors []ValidationError) {
	if len(validationErrors) == 0 {
		s.ValidFrames++
		return
	}

	s.AnomalousFrames++
	for _, err := range validationErrors {
		switch err.Type {
		case AnomalyOutOfRange:
			s.OutOfRange++
		case AnomalyStaleFrame:
			s.StaleFrames++
		}
	}
}

// TotalFrames returns validated plus rejected frames
func (s *Statistics) TotalFrames() uint64 {
	return s.Decoder.Frames + s.Decoder.Errors()
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.Decoder.Frames) / elapsed
		s.ErrorRate = float64(s.Decoder.Errors()) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	total := s.TotalFrames()

	// Calculate percentages
	var validPercent, checksumPercent, unknownPercent, abortedPercent float64
	if total > 0 {
		validPercent = float64(s.Decoder.Frames) * 100.0 / float64(total)
		checksumPercent = float64(s.Decoder.ChecksumErrors) * 100.0 / float64(total)
		unknownPercent = float64(s.Decoder.UnknownCommands) * 100.0 / float64(total)
		abortedPercent = float64(s.Decoder.AbortedFrames) * 100.0 / float64(total)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Frames:    %8d\n", total)
	result += fmt.Sprintf("Valid Frames:    %8d (%.1f%%)\n", s.Decoder.Frames, validPercent)

	if s.Decoder.ChecksumErrors > 0 {
		result += fmt.Sprintf("Checksum Errors: %8d (%.1f%%)\n", s.Decoder.ChecksumErrors, checksumPercent)
	}
	if s.Decoder.UnknownCommands > 0 {
		result += fmt.Sprintf("Unknown Command: %8d (%.1f%%)\n", s.Decoder.UnknownCommands, unknownPercent)
	}
	if s.Decoder.AbortedFrames > 0 {
		result += fmt.Sprintf("Aborted Frames:  %8d (%.1f%%)\n", s.Decoder.AbortedFrames, abortedPercent)
	}
	if s.Decoder.DiscardedBytes > 0 {
		result += fmt.Sprintf("Discarded Bytes: %8d\n", s.Decoder.DiscardedBytes)
	}
	if s.Overruns > 0 {
		result += fmt.Sprintf("Buffer Overruns: %8d\n", s.Overruns)
	}
	if s.AnomalousFrames > 0 {
		result += fmt.Sprintf("Anomalous Frames:%8d\n", s.AnomalousFrames)
		if s.OutOfRange > 0 {
			result += fmt.Sprintf("  Out of Range:     %5d\n", s.OutOfRange)
		}
		if s.StaleFrames > 0 {
			result += fmt.Sprintf("  Stale Frames:     %5d\n", s.StaleFrames)
		}
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters. Decoder counters restart from the
// last snapshot passed to Update.
func (s *Statistics) Reset() {
	now := time.Now()
	*s = Statistics{
		StartTime:      now,
		LastUpdateTime: now,
		raw:            s.raw,
		base:           s.raw,
	}
}
