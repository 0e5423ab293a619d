// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ibus

import "time"

// Frame is a snapshot of the channel table taken when a frame validated
type Frame struct {
	Channels  [NumChannels]uint16 `cbor:"1,keyasint"`
	Timestamp time.Time           `cbor:"2,keyasint"`
}

// Valid reports whether the frame came from a decoded frame
func (f Frame) Valid() bool {
	return !f.Timestamp.IsZero()
}

// Channel returns a channel value, or 0 for an out-of-range index
func (f Frame) Channel(index int) uint16 {
	if index < 0 || index >= NumChannels {
		return 0
	}
	return f.Channels[index]
}

// Counters tracks what the decoder did with the bytes it consumed
type Counters struct {
	Bytes           uint64 // Bytes consumed
	Frames          uint64 // Frames validated and applied
	ChecksumErrors  uint64 // Complete frames with a checksum mismatch
	UnknownCommands uint64 // Checksum-valid frames with a command other than 0x40
	Gaps            uint64 // Timing gaps that forced AWAIT_LENGTH
	AbortedFrames   uint64 // Frames abandoned part-way by a timing gap
	DiscardedBytes  uint64 // Bytes ignored in DISCARD or rejected as a length byte
}

// Errors returns the number of rejected frames
func (c Counters) Errors() uint64 {
	return c.ChecksumErrors + c.UnknownCommands + c.AbortedFrames
}

// Sub returns the counter deltas since an earlier snapshot
func (c Counters) Sub(earlier Counters) Counters {
	return Counters{
		Bytes:           c.Bytes - earlier.Bytes,
		Frames:          c.Frames - earlier.Frames,
		ChecksumErrors:  c.ChecksumErrors - earlier.ChecksumErrors,
		UnknownCommands: c.UnknownCommands - earlier.UnknownCommands,
		Gaps:            c.Gaps - earlier.Gaps,
		AbortedFrames:   c.AbortedFrames - earlier.AbortedFrames,
		DiscardedBytes:  c.DiscardedBytes - earlier.DiscardedBytes,
	}
}
