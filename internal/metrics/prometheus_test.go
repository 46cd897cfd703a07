// SPDX-License-Identifier: MIT
package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestMetricsExposition(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordChunk(512, 1024)
	m.RecordChunk(512, 0)
	m.RecordFrameExtracted()
	m.RecordFrameClassified(2 * time.Millisecond)
	m.RecordSkip(ReasonClassifier)
	m.RecordDropped()
	m.SetWebSocketClients(3)
	m.RecordPacketSent()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	text := string(body)

	for _, want := range []string{
		"affect_chunks_received_total 2",
		"affect_samples_received_total 1024",
		"affect_buffered_samples 0",
		"affect_frames_extracted_total 1",
		"affect_frames_classified_total 1",
		`affect_frames_skipped_total{reason="classifier"} 1`,
		"affect_async_dropped_chunks_total 1",
		"affect_websocket_clients 3",
		"affect_udp_packets_sent_total 1",
		"affect_frame_processing_duration_seconds_count 1",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

// Separate registries must not collide.
func TestMetricsIndependentRegistries(t *testing.T) {
	New(prometheus.NewRegistry())
	New(prometheus.NewRegistry())
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.RecordChunk(1, 1)
	m.RecordFrameExtracted()
	m.RecordFrameClassified(time.Millisecond)
	m.RecordSkip(ReasonExtraction)
	m.RecordDropped()
	m.RecordConfigurationError()
	m.SetWebSocketClients(1)
	m.RecordPacketSent()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Errorf("nil Handler status = %d, want 404", rec.Code)
	}
}
