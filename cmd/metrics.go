// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/Thermoquad/ibustat/pkg/ibus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// newRegistry creates a registry with the Go and process collectors
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// metricsHandler serves the registry in the Prometheus text format
func metricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// decoderMetrics exports decoded channels and decoder counters
type decoderMetrics struct {
	Channel   *prometheus.GaugeVec   // labels: channel=1..14
	Frames    prometheus.Counter
	Rejected  *prometheus.CounterVec // labels: reason=checksum|unknown_command|aborted
	Bytes     prometheus.Counter
	Discarded prometheus.Counter
	Gaps      prometheus.Counter
	Overruns  prometheus.Counter

	LastFrameAge prometheus.GaugeFunc

	lastFrame atomic.Int64 // unix nanoseconds, 0 before the first frame
	counters  ibus.Counters
	overruns  uint64
}

func newDecoderMetrics(reg *prometheus.Registry) *decoderMetrics {
	m := &decoderMetrics{
		Channel: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ibus_channel_value",
			Help: "Last decoded channel value in microseconds.",
		}, []string{"channel"}),
		Frames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ibus_frames_total",
			Help: "Total frames decoded.",
		}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ibus_frames_rejected_total",
			Help: "Frames rejected by the decoder.",
		}, []string{"reason"}),
		Bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ibus_bytes_total",
			Help: "Total bytes fed to the decoder.",
		}),
		Discarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ibus_discarded_bytes_total",
			Help: "Bytes skipped while waiting for a frame start.",
		}),
		Gaps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ibus_gaps_total",
			Help: "Inter-frame gaps seen.",
		}),
		Overruns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ibus_buffer_overruns_total",
			Help: "Bytes dropped because the receive buffer was full.",
		}),
	}

	m.LastFrameAge = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "ibus_last_frame_age_seconds",
		Help: "Seconds since the last decoded frame, -1 before the first one.",
	}, func() float64 {
		ns := m.lastFrame.Load()
		if ns == 0 {
			return -1
		}
		return time.Since(time.Unix(0, ns)).Seconds()
	})

	reg.MustRegister(m.Channel, m.Frames, m.Rejected, m.Bytes, m.Discarded, m.Gaps, m.Overruns, m.LastFrameAge)
	return m
}

// observeFrame records the channel values of a decoded frame
func (m *decoderMetrics) observeFrame(f ibus.Frame) {
	for i, v := range f.Channels {
		m.Channel.WithLabelValues(strconv.Itoa(i + 1)).Set(float64(v))
	}
	m.lastFrame.Store(f.Timestamp.UnixNano())
}

// observeCounters adds the counter increments since the previous call
func (m *decoderMetrics) observeCounters(c ibus.Counters, overruns uint64) {
	d := c.Sub(m.counters)
	m.counters = c

	m.Frames.Add(float64(d.Frames))
	m.Rejected.WithLabelValues("checksum").Add(float64(d.ChecksumErrors))
	m.Rejected.WithLabelValues("unknown_command").Add(float64(d.UnknownCommands))
	m.Rejected.WithLabelValues("aborted").Add(float64(d.AbortedFrames))
	m.Bytes.Add(float64(d.Bytes))
	m.Discarded.Add(float64(d.DiscardedBytes))
	m.Gaps.Add(float64(d.Gaps))

	if overruns > m.overruns {
		m.Overruns.Add(float64(overruns - m.overruns))
		m.overruns = overruns
	}
}
