// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/Thermoquad/ibustat/pkg/ibus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordThenPlayback(t *testing.T) {
	conn, w := newPipeConn(t)
	sendFrames(w, [][]byte{
		ibus.EncodeFrame(uniform(1100)),
		ibus.EncodeFrame(uniform(1200)),
		ibus.EncodeFrame(uniform(2300)),
	}, true)

	var buf bytes.Buffer
	rec, err := ibus.NewRecorder(&buf, "test")
	require.NoError(t, err)

	require.NoError(t, recordFrames(context.Background(), conn, rec))
	assert.Equal(t, uint64(3), rec.Frames())

	p, err := ibus.NewPlayer(&buf)
	require.NoError(t, err)
	assert.Equal(t, rec.Header().Session, p.Header().Session)

	validator := &frameValidator{limits: ibus.DefaultLimits()}
	stats := ibus.NewStatistics()
	var got []ibus.Frame

	n, err := playFrames(context.Background(), p, false, func(f ibus.Frame) {
		got = append(got, f)
		stats.Record(validator.check(f))
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, uniform(1200), got[1].Channels)
	assert.Equal(t, uint64(2), stats.ValidFrames)
	assert.Equal(t, uint64(ibus.NumChannels), stats.OutOfRange)
}

func TestPlayFrames_Realtime(t *testing.T) {
	var buf bytes.Buffer
	rec, err := ibus.NewRecorder(&buf, "")
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, rec.Write(ibus.Frame{Channels: uniform(1500), Timestamp: start}))
	require.NoError(t, rec.Write(ibus.Frame{Channels: uniform(1500), Timestamp: start.Add(40 * time.Millisecond)}))

	p, err := ibus.NewPlayer(&buf)
	require.NoError(t, err)

	began := time.Now()
	n, err := playFrames(context.Background(), p, true, func(ibus.Frame) {})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.GreaterOrEqual(t, time.Since(began), 40*time.Millisecond)
}

func TestPlayFrames_Cancelled(t *testing.T) {
	var buf bytes.Buffer
	rec, err := ibus.NewRecorder(&buf, "")
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, rec.Write(ibus.Frame{Channels: uniform(1500), Timestamp: start}))
	require.NoError(t, rec.Write(ibus.Frame{Channels: uniform(1500), Timestamp: start.Add(time.Hour)}))

	p, err := ibus.NewPlayer(&buf)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	n, err := playFrames(ctx, p, true, func(ibus.Frame) { cancel() })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, n)
}
