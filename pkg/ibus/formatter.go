// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ibus

import (
	"fmt"
	"strings"
)

// FormatFrame formats a decoded frame into a human-readable string
func FormatFrame(f Frame) string {
	timestamp := f.Timestamp.Format("15:04:05.000")
	result := fmt.Sprintf("[%s] CHANNELS (0x%02X) len=%d\n", timestamp, CommandChannels, FrameLength)
	return result + FormatChannels(f.Channels)
}

// FormatChannels formats the channel table, seven channels per line
func FormatChannels(channels [NumChannels]uint16) string {
	var sb strings.Builder
	for i, v := range channels {
		if i%7 == 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(fmt.Sprintf(" CH%-2d=%4d", i+1, v))
		if i%7 == 6 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// FormatCommand returns the human-readable name for a command byte
func FormatCommand(command uint8) string {
	switch command {
	case CommandChannels:
		return "CHANNELS"
	default:
		return "UNKNOWN"
	}
}

// FormatCounters formats decoder counters on a single line
func FormatCounters(c Counters) string {
	return fmt.Sprintf("bytes=%d frames=%d checksum_errors=%d unknown_commands=%d aborted=%d gaps=%d discarded=%d",
		c.Bytes, c.Frames, c.ChecksumErrors, c.UnknownCommands, c.AbortedFrames, c.Gaps, c.DiscardedBytes)
}

// FormatHex formats bytes as a hex dump, 16 bytes per line
func FormatHex(data []byte) string {
	result := "  Bytes: "
	for i, b := range data {
		if i > 0 && i%16 == 0 {
			result += "\n         "
		}
		result += fmt.Sprintf("%02X ", b)
	}
	return result + "\n"
}
