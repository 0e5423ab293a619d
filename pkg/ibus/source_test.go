// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ibus

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
)

func drain(s *StreamBuffer) []byte {
	var out []byte
	for s.Available() > 0 {
		b, err := s.ReadByte()
		if err != nil {
			break
		}
		out = append(out, b)
	}
	return out
}

func TestStreamBuffer_FIFO(t *testing.T) {
	s := NewStreamBuffer(8)
	s.Write([]byte{1, 2, 3})
	s.Write([]byte{4, 5})

	if s.Available() != 5 {
		t.Fatalf("Available = %d, want 5", s.Available())
	}
	if got := drain(s); !bytes.Equal(got, []byte{1, 2, 3, 4, 5}) {
		t.Errorf("drained % X, want 01 02 03 04 05", got)
	}
}

func TestStreamBuffer_Empty(t *testing.T) {
	s := NewStreamBuffer(4)
	if _, err := s.ReadByte(); !errors.Is(err, ErrNoData) {
		t.Errorf("ReadByte on empty buffer: err = %v, want ErrNoData", err)
	}
}

func TestStreamBuffer_OverflowDropsOldest(t *testing.T) {
	s := NewStreamBuffer(4)
	s.Write([]byte{1, 2, 3, 4, 5, 6})

	if s.Overruns() != 2 {
		t.Errorf("Overruns = %d, want 2", s.Overruns())
	}
	if got := drain(s); !bytes.Equal(got, []byte{3, 4, 5, 6}) {
		t.Errorf("drained % X, want 03 04 05 06", got)
	}

	// Wrap-around after draining
	s.Write([]byte{7, 8, 9})
	if got := drain(s); !bytes.Equal(got, []byte{7, 8, 9}) {
		t.Errorf("drained % X after wrap, want 07 08 09", got)
	}
}

func TestStreamBuffer_DefaultCapacity(t *testing.T) {
	s := NewStreamBuffer(0)
	if len(s.data) != DefaultStreamBufferSize {
		t.Errorf("capacity = %d, want %d", len(s.data), DefaultStreamBufferSize)
	}
}

func TestStreamBuffer_Ready(t *testing.T) {
	s := NewStreamBuffer(16)

	select {
	case <-s.Ready():
		t.Fatal("Ready signalled before any write")
	default:
	}

	s.Write([]byte{1})
	s.Write([]byte{2})

	select {
	case <-s.Ready():
	default:
		t.Fatal("Ready not signalled after write")
	}
}

func TestStreamBuffer_Reset(t *testing.T) {
	s := NewStreamBuffer(16)
	s.Write([]byte{1, 2, 3})
	s.Reset()
	if s.Available() != 0 {
		t.Errorf("Available after Reset = %d, want 0", s.Available())
	}
}

func TestPump(t *testing.T) {
	data := bytes.Repeat(EncodeFrame(uniformChannels(1500)), 10)
	s := NewStreamBuffer(len(data))

	err := Pump(context.Background(), bytes.NewReader(data), s)
	if !errors.Is(err, io.EOF) {
		t.Errorf("Pump err = %v, want io.EOF", err)
	}
	if got := drain(s); !bytes.Equal(got, data) {
		t.Error("Pump did not copy every byte in order")
	}
}

func TestPump_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Pump(ctx, bytes.NewReader([]byte{1, 2, 3}), NewStreamBuffer(8))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Pump err = %v, want context.Canceled", err)
	}
}
