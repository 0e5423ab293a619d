// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ibus

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrPayloadSize is returned when a command payload does not fill a frame
var ErrPayloadSize = errors.New("ibus: payload size mismatch")

// Checksum computes the iBus trailer for the bytes preceding it: 0xFFFF
// minus the sum of the length byte, the command byte and the payload
func Checksum(data []byte) uint16 {
	sum := uint16(checksumSeed)
	for _, b := range data {
		sum -= uint16(b)
	}
	return sum
}

// EncodeCommand builds a complete wire frame for an arbitrary command.
// The payload must be exactly MaxPayloadSize-1 bytes.
func EncodeCommand(command byte, payload []byte) ([]byte, error) {
	if len(payload) != MaxPayloadSize-1 {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrPayloadSize, len(payload), MaxPayloadSize-1)
	}

	frame := make([]byte, 0, FrameLength)
	frame = append(frame, FrameLength, command)
	frame = append(frame, payload...)

	// Checksum trailer (little-endian)
	return binary.LittleEndian.AppendUint16(frame, Checksum(frame)), nil
}

// EncodeFrame builds a channel data frame (command 0x40)
func EncodeFrame(channels [NumChannels]uint16) []byte {
	payload := make([]byte, 0, 2*NumChannels)
	for _, ch := range channels {
		payload = binary.LittleEndian.AppendUint16(payload, ch)
	}

	frame, err := EncodeCommand(CommandChannels, payload)
	if err != nil {
		// Channel payload always fills the frame
		panic(fmt.Sprintf("ibus: encode error: %v", err))
	}
	return frame
}
