// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ibus

import (
	"fmt"
	"time"
)

// AnomalyType represents different types of frame anomalies
type AnomalyType int

const (
	AnomalyOutOfRange AnomalyType = iota
	AnomalyStaleFrame
)

// String returns the anomaly name
func (a AnomalyType) String() string {
	switch a {
	case AnomalyOutOfRange:
		return "OUT_OF_RANGE"
	case AnomalyStaleFrame:
		return "STALE_FRAME"
	default:
		return "UNKNOWN"
	}
}

// Limits bounds what ValidateFrame accepts
type Limits struct {
	Min              uint16
	Max              uint16
	MaxFrameInterval time.Duration // Zero disables the stale frame check
}

// DefaultLimits returns the usual 1000-2000 pulse range with a 100 ms
// frame interval ceiling
func DefaultLimits() Limits {
	return Limits{
		Min:              ChannelMin,
		Max:              ChannelMax,
		MaxFrameInterval: 100 * time.Millisecond,
	}
}

// ValidationError represents a frame validation failure
type ValidationError struct {
	Type    AnomalyType
	Channel int // Zero-based; -1 when not channel specific
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateFrame checks a decoded frame for anomalous values. prev is the
// previously validated frame, or nil.
// Returns a slice of validation errors (empty if the frame is valid)
func ValidateFrame(f Frame, prev *Frame, limits Limits) []ValidationError {
	errors := []ValidationError{}

	for i, v := range f.Channels {
		if v < limits.Min || v > limits.Max {
			errors = append(errors, ValidationError{
				Type:    AnomalyOutOfRange,
				Channel: i,
				Message: fmt.Sprintf("CH%d=%d outside %d-%d", i+1, v, limits.Min, limits.Max),
				Details: map[string]interface{}{"value": v, "min": limits.Min, "max": limits.Max},
			})
		}
	}

	if limits.MaxFrameInterval > 0 && prev != nil && prev.Valid() {
		interval := f.Timestamp.Sub(prev.Timestamp)
		if interval > limits.MaxFrameInterval {
			errors = append(errors, ValidationError{
				Type:    AnomalyStaleFrame,
				Channel: -1,
				Message: fmt.Sprintf("Frame interval %v exceeds %v", interval.Round(time.Millisecond), limits.MaxFrameInterval),
				Details: map[string]interface{}{"interval": interval, "max": limits.MaxFrameInterval},
			})
		}
	}

	return errors
}
