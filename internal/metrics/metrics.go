// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/metrics/metrics.go
// Summary: Prometheus metrics for the session router, replacing the teacher's
// log-only server/metrics.go with scrapeable counters and gauges.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry bundles every metric the mux server exports. Construct one per
// process with NewRegistry and pass it down to the components that record
// against it; there is no package-level global. BytesToPty and
// ProtocolViolations are registered and exported, but nothing in this module
// increments them, so they always read zero.
type Registry struct {
	SessionsCreated   prometheus.Counter
	SessionsDestroyed prometheus.Counter
	SessionsActive    prometheus.Gauge
	ClientsConnected  prometheus.Gauge
	FramesSent        prometheus.Counter
	FramesDropped     prometheus.Counter
	BytesFromPty      prometheus.Counter
	BytesToPty        prometheus.Counter
	ProtocolViolations prometheus.Counter
}

// NewRegistry constructs and registers all metrics against reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	f := promauto.With(reg)
	return &Registry{
		SessionsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: "muxd", Name: "sessions_created_total", Help: "Sessions created since process start.",
		}),
		SessionsDestroyed: f.NewCounter(prometheus.CounterOpts{
			Namespace: "muxd", Name: "sessions_destroyed_total", Help: "Sessions destroyed since process start.",
		}),
		SessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "muxd", Name: "sessions_active", Help: "Currently live sessions.",
		}),
		ClientsConnected: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "muxd", Name: "clients_connected", Help: "Currently connected mux protocol clients.",
		}),
		FramesSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: "muxd", Name: "frames_sent_total", Help: "Binary frames forwarded to subscribers.",
		}),
		FramesDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: "muxd", Name: "frames_dropped_total", Help: "Binary frames dropped due to an unreadable subscriber.",
		}),
		BytesFromPty: f.NewCounter(prometheus.CounterOpts{
			Namespace: "muxd", Name: "bytes_from_pty_total", Help: "Bytes read from pty output across all sessions.",
		}),
		BytesToPty: f.NewCounter(prometheus.CounterOpts{
			Namespace: "muxd", Name: "bytes_to_pty_total", Help: "Bytes written to pty input across all sessions.",
		}),
		ProtocolViolations: f.NewCounter(prometheus.CounterOpts{
			Namespace: "muxd", Name: "protocol_violations_total", Help: "Malformed frames discarded per spec.md §7.",
		}),
	}
}

// RecordBytesFromPty implements session.Recorder.
func (r *Registry) RecordBytesFromPty(n int) { r.BytesFromPty.Add(float64(n)) }

// RecordFrameSent implements session.Recorder.
func (r *Registry) RecordFrameSent() { r.FramesSent.Inc() }

// RecordFrameDropped implements session.Recorder.
func (r *Registry) RecordFrameDropped() { r.FramesDropped.Inc() }
