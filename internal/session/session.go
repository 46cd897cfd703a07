// SPDX-License-Identifier: MIT
/*
Package session ties the feature pipeline, the classifier boundary and the
score post-processing into one stateful object per audio stream.

A Session owns an ingest buffer and a smoother. Each call to ProcessChunk
appends samples, takes at most one analysis chunk, and runs

	shape -> window/FFT -> mel -> MFCC -> classify -> normalise -> smooth

under the session mutex. Only configuration errors are returned as errors;
per-frame failures skip the cycle and keep the previous distribution.
*/
package session

import (
	"affect/internal/analysis"
	"affect/internal/audio"
	"affect/internal/classifier"
	"affect/internal/log"
	"affect/internal/metrics"
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

// DefaultLabels is the category ordering used when none is configured.
var DefaultLabels = []string{"angry", "sad", "happy", "surprised"}

// Config is fixed for the lifetime of a session and must match what the
// classifier was trained on.
type Config struct {
	Features      analysis.FeatureConfig
	ChunkDuration float64 // seconds of audio per analysis chunk
	Alpha         float64
	Labels        []string
	Output        ScoreKind
	Timeout       time.Duration
}

func DefaultConfig() Config {
	return Config{
		Features: analysis.FeatureConfig{
			FFTSize:      1024,
			MelBands:     26,
			Coefficients: 13,
		},
		ChunkDuration: 1.0,
		Alpha:         DefaultAlpha,
		Labels:        append([]string(nil), DefaultLabels...),
		Output:        Probabilities,
		Timeout:       classifier.DefaultTimeout,
	}
}

type Option func(*Session)

// WithMetrics records pipeline metrics into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// Session is safe for concurrent use; calls are serialised.
type Session struct {
	mu sync.Mutex

	cfg        Config
	inner      classifier.Classifier
	boundary   *classifier.Boundary
	normalizer *Normalizer
	smoother   *Smoother
	metrics    *metrics.Metrics

	// Built by Initialize.
	sampleRate  float64
	buffer      *audio.IngestBuffer
	extractor   *analysis.FeatureExtractor
	chunk       []float64
	frame       []float64
	features    []float64
	probs       []float64
	initialized bool
}

var waitingForAudio = &TransientExtractionError{Err: ErrInsufficientAudio}

// New validates cfg and wraps c in a classifier boundary. A classifier that
// reports logit scores overrides cfg.Output. The session must be initialised
// before it accepts audio.
func New(cfg Config, c classifier.Classifier, opts ...Option) (*Session, error) {
	if c == nil {
		return nil, &ConfigurationError{Err: errors.New("nil classifier")}
	}
	if len(cfg.Labels) == 0 {
		return nil, &ConfigurationError{Err: errors.New("at least one category label is required")}
	}
	if !(cfg.ChunkDuration > 0) || math.IsInf(cfg.ChunkDuration, 0) {
		return nil, &ConfigurationError{Err: fmt.Errorf("chunk duration must be positive, got %v", cfg.ChunkDuration)}
	}
	if cfg.Features.Coefficients < 1 || cfg.Features.Coefficients > cfg.Features.MelBands {
		return nil, configErrorf(ErrDimensionMismatch, "%d coefficients from %d mel bands", cfg.Features.Coefficients, cfg.Features.MelBands)
	}
	smoother, err := NewSmoother(cfg.Alpha)
	if err != nil {
		return nil, &ConfigurationError{Err: err}
	}

	if ls, ok := c.(classifier.LogitScorer); ok && ls.ScoresAreLogits() && cfg.Output != Logits {
		log.Infof("Classifier emits logits; reading scores as %s instead of %s", Logits, cfg.Output)
		cfg.Output = Logits
	}

	cfg.Labels = append([]string(nil), cfg.Labels...)
	s := &Session{
		cfg:        cfg,
		inner:      c,
		boundary:   classifier.NewBoundary(c, len(cfg.Labels), cfg.Timeout),
		normalizer: NewNormalizer(cfg.Output),
		smoother:   smoother,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Initialize prepares the session for audio at sampleRate. Calling it again
// discards buffered audio and the smoothed state. On error the session is
// left uninitialised.
func (s *Session) Initialize(sampleRate float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = false
	if err := s.initialize(sampleRate); err != nil {
		s.metrics.RecordConfigurationError()
		log.Errorf("Session initialisation failed: %v", err)
		return err
	}
	s.initialized = true
	log.Infof("Session initialised: %.0f Hz, %d-sample chunks, %d-point FFT, %d mel bands, %d coefficients, %d categories",
		sampleRate, s.buffer.Target(), s.cfg.Features.FFTSize, s.cfg.Features.MelBands,
		s.cfg.Features.Coefficients, len(s.cfg.Labels))
	return nil
}

func (s *Session) initialize(sampleRate float64) error {
	if !(sampleRate > 0) || math.IsInf(sampleRate, 0) {
		return configErrorf(ErrInvalidSampleRate, "%v", sampleRate)
	}
	target := audio.TargetChunkSize(sampleRate, s.cfg.ChunkDuration)
	if target < 1 {
		return configErrorf(ErrInvalidSampleRate, "%v Hz yields an empty %vs chunk", sampleRate, s.cfg.ChunkDuration)
	}

	if r, ok := s.inner.(classifier.Readiness); ok {
		if err := r.Ready(); err != nil {
			return configErrorf(ErrClassifierNotReady, "%v", err)
		}
	}
	if shaped, ok := s.inner.(classifier.Shaped); ok {
		if shaped.InputDim() != s.cfg.Features.Coefficients {
			return configErrorf(ErrDimensionMismatch, "classifier expects %d features, extractor produces %d",
				shaped.InputDim(), s.cfg.Features.Coefficients)
		}
		if shaped.OutputDim() != len(s.cfg.Labels) {
			return configErrorf(ErrDimensionMismatch, "classifier produces %d scores for %d labels",
				shaped.OutputDim(), len(s.cfg.Labels))
		}
	}

	extractor, err := analysis.NewFeatureExtractor(s.cfg.Features, sampleRate)
	if err != nil {
		return &ConfigurationError{Err: err}
	}
	buffer, err := audio.NewIngestBuffer(target)
	if err != nil {
		return &ConfigurationError{Err: err}
	}

	s.sampleRate = sampleRate
	s.extractor = extractor
	s.buffer = buffer
	s.chunk = make([]float64, target)
	s.frame = make([]float64, extractor.FrameSize())
	s.features = make([]float64, extractor.Dimension())
	s.probs = make([]float64, len(s.cfg.Labels))
	s.smoother.Reset()
	return nil
}

// ProcessChunk appends samples and, when a full chunk is buffered, runs one
// analysis pass. The returned error is non-nil only for configuration
// errors, in which case the Result is Failed.
func (s *Session) ProcessChunk(ctx context.Context, samples []float64) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		err := configErrorf(ErrNotInitialized, "Initialize must be called before ProcessChunk")
		s.metrics.RecordConfigurationError()
		return Result{Kind: Failed, Err: err}, err
	}

	s.buffer.Append(samples)
	s.metrics.RecordChunk(len(samples), s.buffer.Len())

	if !s.buffer.TryExtract(s.chunk) {
		return s.current(false, waitingForAudio), nil
	}
	s.metrics.RecordFrameExtracted()
	start := time.Now()

	audio.ShapeFrame(s.frame, s.chunk)
	if err := s.extractor.Extract(s.frame, s.features); err != nil {
		skip := &TransientExtractionError{Err: err}
		s.metrics.RecordSkip(metrics.ReasonExtraction)
		log.Debugf("Skipping frame: %v", skip)
		return s.current(false, skip), nil
	}

	scores, err := s.boundary.Invoke(ctx, s.features)
	if err != nil {
		s.metrics.RecordSkip(metrics.ReasonClassifier)
		log.Debugf("Skipping frame: %v", err)
		return s.current(false, err), nil
	}

	s.normalizer.Normalize(s.probs, scores)
	if err := s.smoother.Update(s.probs); err != nil {
		s.metrics.RecordConfigurationError()
		log.Errorf("Smoother rejected update: %v", err)
		return Result{Kind: Failed, Err: err}, err
	}

	s.metrics.RecordFrameClassified(time.Since(start))
	return s.current(true, nil), nil
}

func (s *Session) current(updated bool, skipped error) Result {
	if !s.smoother.Warm() {
		return Result{Kind: Pending, Labels: s.cfg.Labels, Skipped: skipped}
	}
	return Result{
		Kind:          Ready,
		Probabilities: s.smoother.Snapshot(),
		Labels:        s.cfg.Labels,
		Updated:       updated,
		Skipped:       skipped,
	}
}

// Reset discards buffered audio and the smoothed state. The session stays
// initialised.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.buffer != nil {
		s.buffer.Reset()
	}
	s.smoother.Reset()
}

// Labels returns the category ordering of every probability vector.
func (s *Session) Labels() []string {
	return append([]string(nil), s.cfg.Labels...)
}

// Output returns how classifier scores are normalised.
func (s *Session) Output() ScoreKind {
	return s.cfg.Output
}

// SampleRate returns the rate passed to the last successful Initialize.
func (s *Session) SampleRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sampleRate
}

// TargetChunkSize returns the number of samples consumed per analysis pass,
// or 0 before initialisation.
func (s *Session) TargetChunkSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buffer == nil {
		return 0
	}
	return s.buffer.Target()
}

// MelEnergies copies the mel band energies of the most recent frame.
func (s *Session) MelEnergies() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.extractor == nil {
		return nil
	}
	return append([]float64(nil), s.extractor.MelEnergies()...)
}
