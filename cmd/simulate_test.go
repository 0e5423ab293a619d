// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/Thermoquad/ibustat/pkg/ibus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bufferConn collects everything written to it
type bufferConn struct {
	bytes.Buffer
}

func (b *bufferConn) Close() error { return nil }

func TestPatternChannels_Static(t *testing.T) {
	tests := []struct {
		pattern string
		first   uint16
		last    uint16
	}{
		{"center", 1500, 1500},
		{"min", 1000, 1000},
		{"max", 2000, 2000},
		{"ramp", 1000, 2000},
	}
	for _, tt := range tests {
		ch, err := patternChannels(tt.pattern, time.Second, 2*time.Second)
		require.NoError(t, err, tt.pattern)
		assert.Equal(t, tt.first, ch[0], tt.pattern)
		assert.Equal(t, tt.last, ch[ibus.NumChannels-1], tt.pattern)
	}

	ramp, _ := patternChannels("ramp", 0, time.Second)
	for i := 1; i < ibus.NumChannels; i++ {
		assert.Greater(t, ramp[i], ramp[i-1], "ramp must increase")
	}
}

func TestPatternChannels_Sweep(t *testing.T) {
	period := 2 * time.Second

	ch, err := patternChannels("sweep", 0, period)
	require.NoError(t, err)
	assert.Equal(t, uint16(1000), ch[0])

	ch, _ = patternChannels("sweep", period/4, period)
	assert.Equal(t, uint16(1500), ch[0])

	ch, _ = patternChannels("sweep", period/2, period)
	assert.Equal(t, uint16(2000), ch[0])

	// Later channels lead the first one
	ch, _ = patternChannels("sweep", 0, period)
	assert.Greater(t, ch[1], ch[0])

	for ts := time.Duration(0); ts < period; ts += 37 * time.Millisecond {
		ch, _ = patternChannels("sweep", ts, period)
		for i, v := range ch {
			assert.True(t, v >= ibus.ChannelMin && v <= ibus.ChannelMax, "CH%d=%d at %v", i+1, v, ts)
		}
	}
}

func TestPatternChannels_Invalid(t *testing.T) {
	_, err := patternChannels("zigzag", 0, time.Second)
	assert.Error(t, err)

	_, err = patternChannels("sweep", 0, 0)
	assert.Error(t, err)
}

func TestMinFramePeriod(t *testing.T) {
	// 320 bits at 115200 baud is about 2.78 ms, plus the 3 ms gap
	p := minFramePeriod(ibus.BaudRate)
	assert.Greater(t, p, 5700*time.Microsecond)
	assert.Less(t, p, 5900*time.Microsecond)
	assert.Less(t, p, 7*time.Millisecond, "default period must leave a gap")
}

func TestTransmitFrames(t *testing.T) {
	conn := &bufferConn{}

	sent, err := transmitFrames(context.Background(), conn, "center", time.Millisecond, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, sent)

	data := conn.Bytes()
	require.Len(t, data, 4*ibus.FrameLength)

	for i := 0; i < 4; i++ {
		frame := data[i*ibus.FrameLength : (i+1)*ibus.FrameLength]
		assert.Equal(t, byte(ibus.FrameLength), frame[0])
		assert.Equal(t, byte(ibus.CommandChannels), frame[1])
		assert.Equal(t, uint16(1500), binary.LittleEndian.Uint16(frame[2:]))
		assert.Equal(t, ibus.Checksum(frame[:ibus.FrameLength-2]), binary.LittleEndian.Uint16(frame[ibus.FrameLength-2:]))
	}
}

func TestTransmitFrames_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sent, err := transmitFrames(ctx, &bufferConn{}, "center", time.Millisecond, 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, sent)
}
