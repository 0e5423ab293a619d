// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ibus

import "fmt"

// State is the decoder's position within a frame
type State uint8

// Decoder states
const (
	StateDiscard State = iota
	StateAwaitLength
	StateReadPayload
	StateReadChecksumLow
	StateReadChecksumHigh
)

// String returns the human-readable state name
func (s State) String() string {
	switch s {
	case StateDiscard:
		return "DISCARD"
	case StateAwaitLength:
		return "AWAIT_LENGTH"
	case StateReadPayload:
		return "READ_PAYLOAD"
	case StateReadChecksumLow:
		return "READ_CHECKSUM_LOW"
	case StateReadChecksumHigh:
		return "READ_CHECKSUM_HIGH"
	default:
		return fmt.Sprintf("STATE(%d)", uint8(s))
	}
}
