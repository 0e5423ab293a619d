// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Thermoquad/ibustat/pkg/ibus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecoderMetrics_ObserveFrame(t *testing.T) {
	m := newDecoderMetrics(prometheus.NewRegistry())

	assert.Equal(t, -1.0, testutil.ToFloat64(m.LastFrameAge))

	var ch [ibus.NumChannels]uint16
	for i := range ch {
		ch[i] = uint16(1000 + 50*i)
	}
	m.observeFrame(ibus.Frame{Channels: ch, Timestamp: time.Now().Add(-2 * time.Second)})

	assert.Equal(t, 1000.0, testutil.ToFloat64(m.Channel.WithLabelValues("1")))
	assert.Equal(t, 1650.0, testutil.ToFloat64(m.Channel.WithLabelValues("14")))
	assert.Equal(t, ibus.NumChannels, testutil.CollectAndCount(m.Channel))

	age := testutil.ToFloat64(m.LastFrameAge)
	assert.GreaterOrEqual(t, age, 2.0)
	assert.Less(t, age, 60.0)
}

func TestDecoderMetrics_ObserveCounters(t *testing.T) {
	m := newDecoderMetrics(prometheus.NewRegistry())

	m.observeCounters(ibus.Counters{Bytes: 200, Frames: 5, ChecksumErrors: 1, Gaps: 6, DiscardedBytes: 8}, 0)
	m.observeCounters(ibus.Counters{Bytes: 296, Frames: 7, ChecksumErrors: 2, AbortedFrames: 1, Gaps: 9, DiscardedBytes: 8}, 4)

	assert.Equal(t, 7.0, testutil.ToFloat64(m.Frames))
	assert.Equal(t, 296.0, testutil.ToFloat64(m.Bytes))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Rejected.WithLabelValues("checksum")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Rejected.WithLabelValues("unknown_command")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rejected.WithLabelValues("aborted")))
	assert.Equal(t, 9.0, testutil.ToFloat64(m.Gaps))
	assert.Equal(t, 8.0, testutil.ToFloat64(m.Discarded))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.Overruns))
}

func TestMetricsHandler(t *testing.T) {
	reg := newRegistry()
	m := newDecoderMetrics(reg)
	m.observeFrame(ibus.Frame{Channels: uniform(1500), Timestamp: time.Now()})
	m.observeCounters(ibus.Counters{Frames: 1, Bytes: 32}, 0)

	rec := httptest.NewRecorder()
	metricsHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `ibus_channel_value{channel="7"} 1500`)
	assert.Contains(t, body, "ibus_frames_total 1")
	assert.Contains(t, body, "ibus_last_frame_age_seconds")
	assert.Contains(t, body, "go_goroutines")
}
