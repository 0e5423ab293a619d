// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ibus

import (
	"encoding/binary"
	"time"
)

// The parse buffer must hold the command byte and every channel.
var _ [MaxPayloadSize - (1 + 2*NumChannels)]struct{}

// Decoder implements the iBus frame decoder state machine.
//
// A Decoder is not safe for concurrent use. Poll and the read accessors must
// not overlap.
type Decoder struct {
	src     ByteSource
	now     func() time.Time
	timeGap time.Duration

	state   State
	last    time.Time
	buffer  [MaxPayloadSize]byte
	ptr     int
	length  int
	chksum  uint16
	lchksum uint8

	frame    Frame
	counters Counters
}

// Option configures a Decoder
type Option func(*Decoder)

// WithClock replaces time.Now as the decoder's time source
func WithClock(now func() time.Time) Option {
	return func(d *Decoder) {
		d.now = now
	}
}

// WithTimeGap overrides the inter-frame gap that forces resynchronization
func WithTimeGap(gap time.Duration) Option {
	return func(d *Decoder) {
		d.timeGap = gap
	}
}

// NewDecoder creates a new decoder. It reads nothing until Begin binds a source.
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{
		now:     time.Now,
		timeGap: TimeGap,
		state:   StateDiscard,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.last = d.now()
	return d
}

// Begin binds the decoder to src and restarts frame synchronization. It may
// be called again to rebind after a transport reset; the channel table and
// counters survive.
func (d *Decoder) Begin(src ByteSource) {
	d.src = src
	d.state = StateDiscard
	d.last = d.now()
	d.ptr = 0
	d.length = 0
	d.chksum = 0
	d.lchksum = 0
}

// Poll feeds every byte the source has buffered through the state machine.
// It returns true as soon as a frame validates; bytes after that frame stay
// in the source for the next call. It returns false once the source runs dry.
func (d *Decoder) Poll() bool {
	if d.src == nil {
		return false
	}

	for d.src.Available() > 0 {
		b, err := d.src.ReadByte()
		if err != nil {
			return false
		}
		if d.step(d.now(), b) {
			return true
		}
	}
	return false
}

// step processes a single byte received at now
func (d *Decoder) step(now time.Time, b byte) bool {
	d.counters.Bytes++

	// Idle line means a new frame starts with this byte
	if now.Sub(d.last) >= d.timeGap {
		d.counters.Gaps++
		switch d.state {
		case StateReadPayload, StateReadChecksumLow, StateReadChecksumHigh:
			d.counters.AbortedFrames++
		}
		d.state = StateAwaitLength
	}
	d.last = now

	switch d.state {
	case StateAwaitLength:
		if b != FrameLength {
			d.counters.DiscardedBytes++
			d.state = StateDiscard
			return false
		}
		d.ptr = 0
		d.length = int(b) - FrameOverhead
		d.chksum = checksumSeed - uint16(b)
		d.state = StateReadPayload

	case StateReadPayload:
		if d.ptr >= len(d.buffer) {
			d.counters.DiscardedBytes++
			d.state = StateDiscard
			return false
		}
		d.buffer[d.ptr] = b
		d.ptr++
		d.chksum -= uint16(b)
		if d.ptr == d.length {
			d.state = StateReadChecksumLow
		}

	case StateReadChecksumLow:
		d.lchksum = b
		d.state = StateReadChecksumHigh

	case StateReadChecksumHigh:
		d.state = StateDiscard
		if d.chksum != uint16(b)<<8|uint16(d.lchksum) {
			d.counters.ChecksumErrors++
			return false
		}
		if d.buffer[0] != CommandChannels {
			d.counters.UnknownCommands++
			return false
		}
		d.apply(now)
		return true

	case StateDiscard:
		d.counters.DiscardedBytes++
	}

	return false
}

// apply copies the channels of a validated frame into the table
func (d *Decoder) apply(now time.Time) {
	var channels [NumChannels]uint16
	for i := range channels {
		channels[i] = binary.LittleEndian.Uint16(d.buffer[2*i+1:])
	}
	d.frame = Frame{Channels: channels, Timestamp: now}
	d.counters.Frames++
}

// ReadChannel returns the last validated value of a channel, or 0 when the
// index is outside [0, NumChannels)
func (d *Decoder) ReadChannel(index int) uint16 {
	return d.frame.Channel(index)
}

// Channels returns a copy of the channel table
func (d *Decoder) Channels() [NumChannels]uint16 {
	return d.frame.Channels
}

// Frame returns the last validated frame
func (d *Decoder) Frame() Frame {
	return d.frame
}

// State returns the current state machine position
func (d *Decoder) State() State {
	return d.state
}

// Counters returns the decoder's running counters
func (d *Decoder) Counters() Counters {
	return d.counters
}
