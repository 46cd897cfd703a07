// SPDX-License-Identifier: MIT
package config

import (
	"affect/internal/session"
	"time"
)

// Defaults and limits for the runtime configuration. Feature extraction
// values must match what the classifier model was trained with.
const (
	// Audio
	DefaultDeviceID        = MinDeviceID // System default input device
	DefaultSampleRate      = 16000       // Speech-band rate most affect models train on
	DefaultFramesPerBuffer = 512         // Balanced latency/performance
	DefaultInputChannels   = 1           // Mono audio
	DefaultLowLatency      = false       // Standard latency mode

	// Feature extraction
	DefaultFFTSize       = 1024
	DefaultMelBands      = 26
	DefaultCoefficients  = 13
	DefaultChunkDuration = 1.0 // seconds

	// Classification
	DefaultClassifierOutput  = "" // follow the model; probabilities if it does not say
	DefaultClassifierTimeout = 500 * time.Millisecond
	DefaultAlpha             = 0.85

	// Recording
	DefaultRecordingDir = "./recordings"
	DefaultBitDepth     = 16

	// Transport and metrics
	DefaultWebSocketAddress = "localhost:8080"
	DefaultUDPTargetAddress = "127.0.0.1:9090"
	DefaultUDPSendInterval  = 33 * time.Millisecond // ~30Hz
	DefaultMetricsAddress   = "localhost:9100"

	// Hardware and processing limits
	MinDeviceID     = -1     // -1 represents system default device
	MinSampleRate   = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate   = 192000 // Maximum supported sample rate (Hz)
	MaxBufferFrames = 8192   // Maximum frames per buffer
	MinFFTSize      = 64
	MaxFFTSize      = 16384
)

// Default returns the built-in configuration used when no file is found.
func Default() Config {
	return Config{
		LogLevel: "info",
		Audio: AudioConfig{
			InputDevice:     DefaultDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			InputChannels:   DefaultInputChannels,
			LowLatency:      DefaultLowLatency,
		},
		Features: FeaturesConfig{
			FFTSize:       DefaultFFTSize,
			MelBands:      DefaultMelBands,
			Coefficients:  DefaultCoefficients,
			ChunkDuration: DefaultChunkDuration,
		},
		Classifier: ClassifierConfig{
			Output:  DefaultClassifierOutput,
			Timeout: DefaultClassifierTimeout,
		},
		Smoothing: SmoothingConfig{
			Alpha: DefaultAlpha,
		},
		Labels: append([]string(nil), session.DefaultLabels...),
		Recording: RecordingConfig{
			Enabled:   false,
			OutputDir: DefaultRecordingDir,
			BitDepth:  DefaultBitDepth,
		},
		Transport: TransportConfig{
			WebSocketEnabled: false,
			WebSocketAddress: DefaultWebSocketAddress,
			UDPEnabled:       false,
			UDPTargetAddress: DefaultUDPTargetAddress,
			UDPSendInterval:  DefaultUDPSendInterval,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: DefaultMetricsAddress,
		},
	}
}
