// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ibus

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// RecordingVersion is the recording format written by Recorder
const RecordingVersion = 1

// ErrRecordingVersion is returned when a recording uses an unsupported format
var ErrRecordingVersion = errors.New("ibus: unsupported recording version")

// RecordingHeader is the first item of a recording
type RecordingHeader struct {
	Version int       `cbor:"1,keyasint"`
	Session string    `cbor:"2,keyasint"`
	Started time.Time `cbor:"3,keyasint"`
	Source  string    `cbor:"4,keyasint,omitempty"`
}

// Recorder writes decoded frames as a CBOR sequence: one header followed by
// one item per frame
type Recorder struct {
	enc    *cbor.Encoder
	header RecordingHeader
	frames uint64
}

// NewRecorder writes a recording header to w and returns a recorder for it
func NewRecorder(w io.Writer, source string) (*Recorder, error) {
	// Keep sub-second timestamps; the default mode truncates to seconds
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		return nil, fmt.Errorf("failed to create CBOR encoder: %w", err)
	}

	r := &Recorder{
		enc: em.NewEncoder(w),
		header: RecordingHeader{
			Version: RecordingVersion,
			Session: uuid.NewString(),
			Started: time.Now(),
			Source:  source,
		},
	}
	if err := r.enc.Encode(r.header); err != nil {
		return nil, fmt.Errorf("failed to write recording header: %w", err)
	}
	return r, nil
}

// Write appends a frame to the recording
func (r *Recorder) Write(f Frame) error {
	if err := r.enc.Encode(f); err != nil {
		return fmt.Errorf("failed to write frame %d: %w", r.frames, err)
	}
	r.frames++
	return nil
}

// Header returns the header written at the start of the recording
func (r *Recorder) Header() RecordingHeader {
	return r.header
}

// Frames returns the number of frames written
func (r *Recorder) Frames() uint64 {
	return r.frames
}

// Player reads frames back from a recording
type Player struct {
	dec    *cbor.Decoder
	header RecordingHeader
}

// NewPlayer reads and checks the recording header
func NewPlayer(r io.Reader) (*Player, error) {
	p := &Player{dec: cbor.NewDecoder(r)}
	if err := p.dec.Decode(&p.header); err != nil {
		return nil, fmt.Errorf("failed to read recording header: %w", err)
	}
	if p.header.Version != RecordingVersion {
		return nil, fmt.Errorf("%w: %d", ErrRecordingVersion, p.header.Version)
	}
	return p, nil
}

// Header returns the recording header
func (p *Player) Header() RecordingHeader {
	return p.header
}

// Next returns the next frame, or io.EOF at the end of the recording
func (p *Player) Next() (Frame, error) {
	var f Frame
	if err := p.dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return Frame{}, io.EOF
		}
		return Frame{}, fmt.Errorf("failed to read frame: %w", err)
	}
	return f, nil
}
