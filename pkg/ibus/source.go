// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ibus

import (
	"context"
	"errors"
	"io"
	"sync"
)

// ErrNoData is returned by ReadByte when no byte is buffered
var ErrNoData = errors.New("ibus: no data available")

// DefaultStreamBufferSize holds roughly 250 ms of iBus traffic at 115200 baud
const DefaultStreamBufferSize = 4096

// ByteSource is the transport side of the decoder: it reports how many bytes
// are buffered and hands them out one at a time without blocking.
type ByteSource interface {
	Available() int
	ReadByte() (byte, error)
}

// StreamBuffer is a bounded FIFO that a transport goroutine writes into and
// a Decoder drains. When full, the oldest bytes are dropped and counted as
// overruns, the way a UART receive buffer overflows.
type StreamBuffer struct {
	mu       sync.Mutex
	data     []byte
	head     int
	size     int
	overruns uint64
	ready    chan struct{}
}

// NewStreamBuffer creates a stream buffer holding up to capacity bytes
func NewStreamBuffer(capacity int) *StreamBuffer {
	if capacity <= 0 {
		capacity = DefaultStreamBufferSize
	}
	return &StreamBuffer{
		data:  make([]byte, capacity),
		ready: make(chan struct{}, 1),
	}
}

// Write appends bytes to the buffer. It never blocks and never fails.
func (s *StreamBuffer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	for _, b := range p {
		if s.size == len(s.data) {
			// Full - drop the oldest byte
			s.head = (s.head + 1) % len(s.data)
			s.size--
			s.overruns++
		}
		s.data[(s.head+s.size)%len(s.data)] = b
		s.size++
	}
	s.mu.Unlock()

	select {
	case s.ready <- struct{}{}:
	default:
	}
	return len(p), nil
}

// Available returns the number of buffered bytes
func (s *StreamBuffer) Available() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// ReadByte removes and returns the oldest buffered byte
func (s *StreamBuffer) ReadByte() (byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.size == 0 {
		return 0, ErrNoData
	}
	b := s.data[s.head]
	s.head = (s.head + 1) % len(s.data)
	s.size--
	return b, nil
}

// Ready is signalled after every non-empty Write
func (s *StreamBuffer) Ready() <-chan struct{} {
	return s.ready
}

// Overruns returns the number of bytes dropped because the buffer was full
func (s *StreamBuffer) Overruns() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overruns
}

// Reset discards all buffered bytes
func (s *StreamBuffer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.head = 0
	s.size = 0
}

// Pump copies r into dst until r fails or ctx is cancelled. A read blocked
// inside r is only noticed after it returns.
func Pump(ctx context.Context, r io.Reader, dst io.Writer) error {
	buf := make([]byte, 128)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if err != nil {
			return err
		}
	}
}
