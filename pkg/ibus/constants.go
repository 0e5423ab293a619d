// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package ibus provides a Go implementation of the FlySky iBus serial protocol.
//
// iBus frames carry no start or end marker. A receiver sends one frame every
// few milliseconds and stays idle between frames, so the decoder treats any
// inter-byte gap of at least TimeGap as a frame boundary and relies on the
// running checksum to reject everything else.
package ibus

import "time"

// Frame layout
const (
	FrameLength    = 0x20 // Length byte value and total on-wire size
	FrameOverhead  = 3    // Length byte + 2 checksum bytes
	MaxPayloadSize = FrameLength - FrameOverhead
	NumChannels    = 14
)

// Commands
const (
	CommandChannels = 0x40 // Only command that carries channel data
)

// Timing and transport
const (
	TimeGap  = 3 * time.Millisecond
	BaudRate = 115200
)

// Channel value conventions (not enforced by the decoder)
const (
	ChannelMin    = 1000
	ChannelCenter = 1500
	ChannelMax    = 2000
)

const checksumSeed = 0xFFFF
