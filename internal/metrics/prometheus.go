// SPDX-License-Identifier: MIT
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Skip reasons used as the "reason" label of SkippedFrames.
const (
	ReasonExtraction = "extraction"
	ReasonClassifier = "classifier"
)

// Metrics holds the Prometheus collectors for the pipeline. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	// Ingest
	ChunksReceived  prometheus.Counter
	SamplesReceived prometheus.Counter
	BufferedSamples prometheus.Gauge

	// Frames
	FramesExtracted   prometheus.Counter
	FramesClassified  prometheus.Counter
	SkippedFrames     *prometheus.CounterVec
	FrameDuration     prometheus.Histogram
	DroppedChunks     prometheus.Counter
	ConfigurationErrs prometheus.Counter

	// Transport
	WebSocketClients prometheus.Gauge
	PacketsSent      prometheus.Counter

	gatherer prometheus.Gatherer
}

// New registers all collectors with reg. Pass a fresh prometheus.Registry in
// tests so repeated construction does not collide.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ChunksReceived: f.NewCounter(prometheus.CounterOpts{
			Name: "affect_chunks_received_total",
			Help: "Total number of audio chunks handed to the session",
		}),
		SamplesReceived: f.NewCounter(prometheus.CounterOpts{
			Name: "affect_samples_received_total",
			Help: "Total number of audio samples handed to the session",
		}),
		BufferedSamples: f.NewGauge(prometheus.GaugeOpts{
			Name: "affect_buffered_samples",
			Help: "Samples waiting in the ingest buffer",
		}),
		FramesExtracted: f.NewCounter(prometheus.CounterOpts{
			Name: "affect_frames_extracted_total",
			Help: "Total number of analysis chunks taken from the ingest buffer",
		}),
		FramesClassified: f.NewCounter(prometheus.CounterOpts{
			Name: "affect_frames_classified_total",
			Help: "Total number of frames that updated the smoothed distribution",
		}),
		SkippedFrames: f.NewCounterVec(prometheus.CounterOpts{
			Name: "affect_frames_skipped_total",
			Help: "Frames skipped without updating the distribution",
		}, []string{"reason"}),
		FrameDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "affect_frame_processing_duration_seconds",
			Help:    "Time from chunk extraction to smoothed output",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12), // 100µs to ~200ms
		}),
		DroppedChunks: f.NewCounter(prometheus.CounterOpts{
			Name: "affect_async_dropped_chunks_total",
			Help: "Chunks discarded because a previous chunk was still pending",
		}),
		ConfigurationErrs: f.NewCounter(prometheus.CounterOpts{
			Name: "affect_configuration_errors_total",
			Help: "Fatal configuration errors surfaced by the session",
		}),
		WebSocketClients: f.NewGauge(prometheus.GaugeOpts{
			Name: "affect_websocket_clients",
			Help: "Currently connected WebSocket clients",
		}),
		PacketsSent: f.NewCounter(prometheus.CounterOpts{
			Name: "affect_udp_packets_sent_total",
			Help: "Total number of UDP probability packets sent",
		}),
		gatherer: reg,
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ListenAndServe exposes Handler at /metrics on addr until ctx is cancelled.
func (m *Metrics) ListenAndServe(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (m *Metrics) RecordChunk(samples, buffered int) {
	if m == nil {
		return
	}
	m.ChunksReceived.Inc()
	m.SamplesReceived.Add(float64(samples))
	m.BufferedSamples.Set(float64(buffered))
}

func (m *Metrics) RecordFrameExtracted() {
	if m == nil {
		return
	}
	m.FramesExtracted.Inc()
}

// RecordFrameClassified records a frame that reached the smoother.
func (m *Metrics) RecordFrameClassified(d time.Duration) {
	if m == nil {
		return
	}
	m.FramesClassified.Inc()
	m.FrameDuration.Observe(d.Seconds())
}

func (m *Metrics) RecordSkip(reason string) {
	if m == nil {
		return
	}
	m.SkippedFrames.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordDropped() {
	if m == nil {
		return
	}
	m.DroppedChunks.Inc()
}

func (m *Metrics) RecordConfigurationError() {
	if m == nil {
		return
	}
	m.ConfigurationErrs.Inc()
}

func (m *Metrics) SetWebSocketClients(n int) {
	if m == nil {
		return
	}
	m.WebSocketClients.Set(float64(n))
}

func (m *Metrics) RecordPacketSent() {
	if m == nil {
		return
	}
	m.PacketsSent.Inc()
}
