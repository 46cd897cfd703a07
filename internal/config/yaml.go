// SPDX-License-Identifier: MIT
package config

import (
	"affect/internal/analysis"
	"affect/internal/log"
	"affect/internal/session"
	"affect/pkg/bitint"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	LogLevel   string           `yaml:"log_level"`  // Logging level (e.g., "debug", "info", "warn", "error").
	Audio      AudioConfig      `yaml:"audio"`      // Audio capture settings.
	Features   FeaturesConfig   `yaml:"features"`   // MFCC feature extraction settings.
	Classifier ClassifierConfig `yaml:"classifier"` // Model location and output interpretation.
	Smoothing  SmoothingConfig  `yaml:"smoothing"`  // Temporal smoothing of the distribution.
	Labels     []string         `yaml:"labels"`     // Category labels, in classifier output order.
	Recording  RecordingConfig  `yaml:"recording"`  // Audio recording settings.
	Transport  TransportConfig  `yaml:"transport"`  // Result transport settings (WebSocket, UDP).
	Metrics    MetricsConfig    `yaml:"metrics"`    // Prometheus endpoint.
}

// AudioConfig holds settings related to audio input.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index for audio input (-1 for default).
	SampleRate      float64 `yaml:"sample_rate"`       // Sample rate in Hz (e.g., 16000, 44100).
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Frames delivered per capture callback.
	InputChannels   int     `yaml:"input_channels"`    // Channels captured; mixed to mono for analysis.
	LowLatency      bool    `yaml:"low_latency"`       // Request low latency settings from PortAudio device.
}

// FeaturesConfig fixes the shape of the feature vector.
type FeaturesConfig struct {
	FFTSize       int     `yaml:"fft_size"`          // FFT frame length, a power of two.
	MelBands      int     `yaml:"mel_bands"`         // Number of triangular mel filters.
	Coefficients  int     `yaml:"mfcc_coefficients"` // Cepstral coefficients kept, at most mel_bands.
	ChunkDuration float64 `yaml:"chunk_duration"`    // Seconds of audio consumed per analysis pass.
}

// ClassifierConfig locates the model and says how to read its scores.
type ClassifierConfig struct {
	ModelPath string        `yaml:"model_path"` // YAML weights file for the linear model.
	Output    string        `yaml:"output"`     // "probabilities", "logits", or empty to follow the model.
	Timeout   time.Duration `yaml:"timeout"`    // Per-invocation deadline.
}

// SmoothingConfig holds the EMA weight given to history.
type SmoothingConfig struct {
	Alpha float64 `yaml:"alpha"`
}

// RecordingConfig holds settings related to audio recording functionality.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`    // Enable audio recording to file.
	OutputDir string `yaml:"output_dir"` // Directory to save recorded audio files.
	BitDepth  int    `yaml:"bit_depth"`  // Bit depth for recorded audio (16 or 24).
}

// TransportConfig holds settings related to sending results over the network.
type TransportConfig struct {
	WebSocketEnabled bool          `yaml:"websocket_enabled"`  // Broadcast results to WebSocket clients.
	WebSocketAddress string        `yaml:"websocket_address"`  // Listen address for the /ws endpoint.
	UDPEnabled       bool          `yaml:"udp_enabled"`        // Enable sending probabilities over UDP.
	UDPTargetAddress string        `yaml:"udp_target_address"` // Target address and port for UDP packets (e.g., "127.0.0.1:9090").
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`  // Minimum interval between UDP packets.
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"` // Listen address for /metrics.
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("config.yaml"). If no file is found, it uses built-in
// defaults. After loading defaults or from file, it applies environment variable
// overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		candidates := []string{
			"config.yaml",
		}
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if _, ok := log.ParseLevel(c.LogLevel); !ok {
		add("log_level %q is not one of debug, info, warn, error", c.LogLevel)
	}

	// Audio
	if c.Audio.InputDevice < MinDeviceID {
		add("audio.input_device must be >= %d, got %d", MinDeviceID, c.Audio.InputDevice)
	}
	if c.Audio.SampleRate < MinSampleRate || c.Audio.SampleRate > MaxSampleRate {
		add("audio.sample_rate must be in [%d, %d], got %v", MinSampleRate, MaxSampleRate, c.Audio.SampleRate)
	}
	if c.Audio.FramesPerBuffer < 1 || c.Audio.FramesPerBuffer > MaxBufferFrames {
		add("audio.frames_per_buffer must be in [1, %d], got %d", MaxBufferFrames, c.Audio.FramesPerBuffer)
	}
	if c.Audio.InputChannels < 1 {
		add("audio.input_channels must be positive, got %d", c.Audio.InputChannels)
	}

	// Features
	f := c.Features
	if !bitint.IsPowerOfTwo(f.FFTSize) || f.FFTSize < MinFFTSize || f.FFTSize > MaxFFTSize {
		add("features.fft_size must be a power of two in [%d, %d], got %d (try %d)",
			MinFFTSize, MaxFFTSize, f.FFTSize, min(max(bitint.NextPowerOfTwo(f.FFTSize), MinFFTSize), MaxFFTSize))
	}
	if f.MelBands < 1 {
		add("features.mel_bands must be positive, got %d", f.MelBands)
	}
	if f.Coefficients < 1 || f.Coefficients > f.MelBands {
		add("features.mfcc_coefficients must be in [1, mel_bands=%d], got %d", f.MelBands, f.Coefficients)
	}
	if !(f.ChunkDuration > 0) {
		add("features.chunk_duration must be positive, got %v", f.ChunkDuration)
	} else if c.Audio.SampleRate > 0 {
		// One chunk is analysed per callback, so a larger callback would
		// grow the ingest backlog without bound.
		target := int(math.Floor(c.Audio.SampleRate * f.ChunkDuration))
		if target < 1 {
			add("features.chunk_duration %vs holds no samples at %v Hz", f.ChunkDuration, c.Audio.SampleRate)
		} else if c.Audio.FramesPerBuffer > target {
			add("audio.frames_per_buffer %d exceeds the %d-sample analysis chunk (%v Hz x %vs)",
				c.Audio.FramesPerBuffer, target, c.Audio.SampleRate, f.ChunkDuration)
		}
	}

	// Classifier and smoothing
	if _, err := session.ParseScoreKind(c.Classifier.Output); err != nil {
		add("classifier.output: %v", err)
	}
	if c.Classifier.Timeout <= 0 {
		add("classifier.timeout must be positive, got %v", c.Classifier.Timeout)
	}
	if !(c.Smoothing.Alpha > 0 && c.Smoothing.Alpha < 1) {
		add("smoothing.alpha must be in (0, 1), got %v", c.Smoothing.Alpha)
	}

	// Labels
	if len(c.Labels) < 2 {
		add("labels must name at least two categories, got %d", len(c.Labels))
	}
	seen := make(map[string]bool, len(c.Labels))
	for i, l := range c.Labels {
		if l == "" {
			add("labels[%d] is empty", i)
		} else if seen[l] {
			add("labels[%d] %q is a duplicate", i, l)
		}
		seen[l] = true
	}

	// Recording
	if c.Recording.Enabled {
		if c.Recording.OutputDir == "" {
			add("recording.output_dir must be set when recording is enabled")
		}
		if c.Recording.BitDepth != 16 && c.Recording.BitDepth != 24 {
			add("recording.bit_depth must be 16 or 24, got %d", c.Recording.BitDepth)
		}
	}

	// Transport
	if c.Transport.WebSocketEnabled && c.Transport.WebSocketAddress == "" {
		add("transport.websocket_address must be set when the WebSocket transport is enabled")
	}
	if c.Transport.UDPEnabled {
		if c.Transport.UDPTargetAddress == "" {
			add("transport.udp_target_address must be set when UDP is enabled")
		}
		if c.Transport.UDPSendInterval <= 0 {
			add("transport.udp_send_interval must be positive when UDP is enabled")
		}
	}

	if c.Metrics.Enabled && c.Metrics.Address == "" {
		add("metrics.address must be set when metrics are enabled")
	}

	return errors.Join(errs...)
}

// Session converts the feature, classifier and smoothing sections into a
// session configuration. c must already be valid.
func (c *Config) Session() session.Config {
	kind, _ := session.ParseScoreKind(c.Classifier.Output)
	return session.Config{
		Features: analysis.FeatureConfig{
			FFTSize:      c.Features.FFTSize,
			MelBands:     c.Features.MelBands,
			Coefficients: c.Features.Coefficients,
		},
		ChunkDuration: c.Features.ChunkDuration,
		Alpha:         c.Smoothing.Alpha,
		Labels:        append([]string(nil), c.Labels...),
		Output:        kind,
		Timeout:       c.Classifier.Timeout,
	}
}

// applyEnvOverrides lets ENV_* variables replace file values. Unparseable
// values are logged and ignored.
func (c *Config) applyEnvOverrides() {
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		c.LogLevel = val
		log.Infof("configuration: Overriding log_level from env: %s", val)
	}

	// ENV_SAMPLE_RATE
	if val, ok := os.LookupEnv("ENV_SAMPLE_RATE"); ok {
		if rate, err := strconv.ParseFloat(val, 64); err == nil {
			c.Audio.SampleRate = rate
			log.Infof("configuration: Overriding audio.sample_rate from env: %v", rate)
		} else {
			log.Warnf("configuration: Ignoring ENV_SAMPLE_RATE %q: %v", val, err)
		}
	}

	// ENV_WS_ADDRESS
	if val, ok := os.LookupEnv("ENV_WS_ADDRESS"); ok {
		c.Transport.WebSocketEnabled = true
		c.Transport.WebSocketAddress = val
		log.Infof("configuration: Overriding transport.websocket_address from env: %s", val)
	}

	// ENV_UDP_{...}
	// These are specific to the transport layer.

	// ENV_UDP_ENABLED
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Transport.UDPEnabled = bVal
			log.Infof("configuration: Overriding transport.udp_enabled from env: %v", bVal)
		} else {
			log.Warnf("configuration: Ignoring ENV_UDP_ENABLED %q: %v", val, err)
		}
	}
	// ENV_UDP_TARGET_ADDRESS
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		c.Transport.UDPTargetAddress = val
		log.Infof("configuration: Overriding transport.udp_target_address from env: %s", val)
	}
	// ENV_UDP_SEND_INTERVAL
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			c.Transport.UDPSendInterval = dur
			log.Infof("configuration: Overriding transport.udp_send_interval from env: %s", dur)
		} else {
			log.Warnf("configuration: Ignoring ENV_UDP_SEND_INTERVAL %q: %v", val, err)
		}
	}

	// ENV_METRICS_ADDRESS
	if val, ok := os.LookupEnv("ENV_METRICS_ADDRESS"); ok {
		c.Metrics.Enabled = true
		c.Metrics.Address = val
		log.Infof("configuration: Overriding metrics.address from env: %s", val)
	}
}
