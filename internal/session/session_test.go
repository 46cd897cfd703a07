// SPDX-License-Identifier: MIT
package session

import (
	"affect/internal/classifier"
	"affect/internal/log"
	"affect/pkg/utils"
	"context"
	"errors"
	"io"
	"math"
	"os"
	"testing"
	"time"
)

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func constant(scores ...float64) classifier.Func {
	return func(context.Context, []float64) ([]float64, error) {
		return scores, nil
	}
}

type shaped struct {
	classifier.Func
	in, out  int
	notReady error
}

func (s shaped) InputDim() int  { return s.in }
func (s shaped) OutputDim() int { return s.out }
func (s shaped) Ready() error   { return s.notReady }

func newTestSession(t *testing.T, cfg Config, c classifier.Classifier, sampleRate float64) *Session {
	t.Helper()
	s, err := New(cfg, c)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if err := s.Initialize(sampleRate); err != nil {
		t.Fatalf("Initialize(%v) error: %v", sampleRate, err)
	}
	return s
}

func assertDistribution(t *testing.T, p []float64) {
	t.Helper()
	sum := 0.0
	for i, v := range p {
		if v < 0 || v > 1 || math.IsNaN(v) {
			t.Fatalf("p[%d] = %v outside [0,1]", i, v)
		}
		sum += v
	}
	if math.Abs(sum-1) > 1e-6 {
		t.Fatalf("sum(p) = %.9f, want 1", sum)
	}
}

func TestPendingBelowTarget(t *testing.T) {
	s := newTestSession(t, DefaultConfig(), constant(0.7, 0.1, 0.1, 0.1), 16000)
	if s.TargetChunkSize() != 16000 {
		t.Fatalf("TargetChunkSize() = %d, want 16000", s.TargetChunkSize())
	}

	total := 0
	for _, n := range []int{0, 1, 511, 4096, 7000, 4391} {
		total += n
		res, err := s.ProcessChunk(context.Background(), make([]float64, n))
		if err != nil {
			t.Fatalf("ProcessChunk() error: %v", err)
		}
		if res.Kind != Pending {
			t.Fatalf("after %d samples Kind = %v, want pending", total, res.Kind)
		}
		if res.Probabilities != nil {
			t.Fatalf("pending result carries probabilities %v", res.Probabilities)
		}
		if !errors.Is(res.Skipped, ErrInsufficientAudio) {
			t.Errorf("Skipped = %v, want ErrInsufficientAudio", res.Skipped)
		}
	}
	if total != 15999 {
		t.Fatalf("fed %d samples, want 15999", total)
	}

	res, _ := s.ProcessChunk(context.Background(), []float64{0})
	if res.Kind != Ready || !res.Updated {
		t.Errorf("at target Kind = %v, Updated = %v; want ready and updated", res.Kind, res.Updated)
	}
}

func TestProbabilitiesAreDistributions(t *testing.T) {
	tests := []struct {
		name   string
		output ScoreKind
		scores []float64
	}{
		{"Probabilities", Probabilities, []float64{0.8, 0.1, 0.05, 0.05}},
		{"Unnormalised", Probabilities, []float64{3, 1, 0, 6}},
		{"Logits", Logits, []float64{2.5, -1, 0.3, 7}},
		{"Huge Logits", Logits, []float64{1000, 999, -1000, 0}},
		{"Degenerate", Probabilities, []float64{0, 0, 0, 0}},
		{"Negative", Probabilities, []float64{-1, 2, 0.5, 0.5}},
		{"NaN", Logits, []float64{math.NaN(), 1, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.ChunkDuration = 0.125
			cfg.Output = tt.output
			s := newTestSession(t, cfg, constant(tt.scores...), 8000)

			noise := utils.GenerateNoise(1000*5, 0.5, 7)
			for _, chunk := range utils.Split(noise, 1000) {
				res, err := s.ProcessChunk(context.Background(), chunk)
				if err != nil {
					t.Fatal(err)
				}
				if res.Kind != Ready {
					t.Fatalf("Kind = %v, want ready", res.Kind)
				}
				assertDistribution(t, res.Probabilities)
			}
		})
	}
}

func TestFirstClassificationAdoptedVerbatim(t *testing.T) {
	raw := []float64{0.8, 0.1, 0.05, 0.05}
	want := make([]float64, len(raw))
	NewNormalizer(Probabilities).Normalize(want, raw)

	cfg := DefaultConfig()
	cfg.ChunkDuration = 0.25
	s := newTestSession(t, cfg, constant(raw...), 16000)

	res, err := s.ProcessChunk(context.Background(), utils.GenerateComplexWave(4000, 16000))
	if err != nil {
		t.Fatal(err)
	}
	for i := range want {
		if res.Probabilities[i] != want[i] {
			t.Fatalf("first result = %v, want %v", res.Probabilities, want)
		}
	}
}

// logitModel reports that its scores are logits.
type logitModel struct{ classifier.Func }

func (logitModel) ScoresAreLogits() bool { return true }

func TestLogitClassifierOverridesOutputKind(t *testing.T) {
	raw := []float64{-0.9, 2.2, 0.2, -2.6}
	want := make([]float64, len(raw))
	NewNormalizer(Logits).Normalize(want, raw)

	cfg := DefaultConfig() // Output: Probabilities
	cfg.ChunkDuration = 0.25
	s := newTestSession(t, cfg, logitModel{constant(raw...)}, 16000)
	if s.Output() != Logits {
		t.Fatalf("Output() = %v, want %v", s.Output(), Logits)
	}

	res, err := s.ProcessChunk(context.Background(), utils.GenerateComplexWave(4000, 16000))
	if err != nil {
		t.Fatal(err)
	}
	assertDistribution(t, res.Probabilities)
	for i := range want {
		if math.Abs(res.Probabilities[i]-want[i]) > 1e-12 {
			t.Fatalf("probabilities = %v, want softmax %v", res.Probabilities, want)
		}
	}
	if res.Probabilities[1] < 0.8 {
		t.Errorf("top probability %.3f, logits were flattened", res.Probabilities[1])
	}
}

// A classifier that starts returning the wrong number of scores costs one
// cycle and nothing else.
func TestWrongDimensionLeavesStateUnchanged(t *testing.T) {
	scores := []float64{0.4, 0.3, 0.2, 0.1}
	s := newTestSession(t, Config{
		Features:      DefaultConfig().Features,
		ChunkDuration: 0.125,
		Alpha:         DefaultAlpha,
		Labels:        DefaultLabels,
		Timeout:       time.Second,
	}, classifier.Func(func(context.Context, []float64) ([]float64, error) {
		return scores, nil
	}), 8192)

	chunk := utils.GenerateSineWave(1024, 8192, 300)
	first, err := s.ProcessChunk(context.Background(), chunk)
	if err != nil || first.Kind != Ready {
		t.Fatalf("first result = %+v, %v", first, err)
	}

	scores = []float64{0.5, 0.5, 0}
	res, err := s.ProcessChunk(context.Background(), chunk)
	if err != nil {
		t.Fatalf("ProcessChunk() error = %v, want nil", err)
	}
	var ie *ClassifierInvocationError
	if !errors.As(res.Skipped, &ie) || !errors.Is(res.Skipped, classifier.ErrOutputDimension) {
		t.Fatalf("Skipped = %v, want output dimension ClassifierInvocationError", res.Skipped)
	}
	if res.Kind != Ready || res.Updated {
		t.Errorf("Kind = %v, Updated = %v; want ready and not updated", res.Kind, res.Updated)
	}
	for i := range first.Probabilities {
		if res.Probabilities[i] != first.Probabilities[i] {
			t.Fatalf("state changed: %v -> %v", first.Probabilities, res.Probabilities)
		}
	}
}

func TestClassifierFailuresNeverReachCaller(t *testing.T) {
	calls := 0
	c := classifier.Func(func(context.Context, []float64) ([]float64, error) {
		calls++
		switch calls {
		case 2:
			return nil, errors.New("inference backend unavailable")
		case 3:
			panic("bad tensor")
		}
		return []float64{0.25, 0.25, 0.25, 0.25}, nil
	})
	cfg := DefaultConfig()
	cfg.ChunkDuration = 0.125
	s := newTestSession(t, cfg, c, 8192)

	chunk := make([]float64, 1024)
	for i := range 4 {
		res, err := s.ProcessChunk(context.Background(), chunk)
		if err != nil {
			t.Fatalf("call %d: ProcessChunk() error: %v", i+1, err)
		}
		if res.Kind != Ready {
			t.Fatalf("call %d: Kind = %v", i+1, res.Kind)
		}
		if failed := i == 1 || i == 2; failed == (res.Skipped == nil) {
			t.Errorf("call %d: Skipped = %v", i+1, res.Skipped)
		}
	}
}

func TestEndToEndSilence(t *testing.T) {
	s := newTestSession(t, DefaultConfig(), constant(0.1, 0.2, 0.3, 0.4), 16000)

	res, err := s.ProcessChunk(context.Background(), make([]float64, 16000))
	if err != nil {
		t.Fatal(err)
	}
	if res.Kind != Ready || !res.Updated {
		t.Fatalf("Kind = %v, Updated = %v; want ready and updated", res.Kind, res.Updated)
	}
	mel := s.MelEnergies()
	if len(mel) != 26 {
		t.Fatalf("len(MelEnergies()) = %d, want 26", len(mel))
	}
	for i, m := range mel {
		if math.IsNaN(m) || math.IsInf(math.Log(m+1e-6), 0) {
			t.Fatalf("mel[%d] = %v is not usable", i, m)
		}
	}

	tone := utils.GenerateComplexWave(16000, 16000)
	res, err = s.ProcessChunk(context.Background(), tone)
	if err != nil || res.Kind != Ready || !res.Updated || res.Skipped != nil {
		t.Fatalf("after silence: %+v, %v", res, err)
	}
	assertDistribution(t, res.Probabilities)
	for i, m := range s.MelEnergies() {
		if math.IsNaN(m) || math.IsInf(m, 0) {
			t.Fatalf("mel[%d] = %v after tone", i, m)
		}
	}
}

func TestNonFiniteAudioSkipsCycle(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ChunkDuration = 0.125
	s := newTestSession(t, cfg, constant(1, 0, 0, 0), 8192)

	bad := make([]float64, 1024)
	bad[100] = math.Inf(1)
	res, err := s.ProcessChunk(context.Background(), bad)
	if err != nil {
		t.Fatal(err)
	}
	var te *TransientExtractionError
	if !errors.As(res.Skipped, &te) {
		t.Fatalf("Skipped = %v, want TransientExtractionError", res.Skipped)
	}
	if res.Kind != Pending {
		t.Errorf("Kind = %v, want pending", res.Kind)
	}

	res, _ = s.ProcessChunk(context.Background(), make([]float64, 1024))
	if res.Kind != Ready || res.Probabilities[0] != 1 {
		t.Errorf("recovery result = %+v", res)
	}
}

func TestNotInitialized(t *testing.T) {
	s, err := New(DefaultConfig(), constant(1, 0, 0, 0))
	if err != nil {
		t.Fatal(err)
	}
	res, err := s.ProcessChunk(context.Background(), make([]float64, 10))
	if !IsFatal(err) || !errors.Is(err, ErrNotInitialized) {
		t.Errorf("ProcessChunk() error = %v, want fatal ErrNotInitialized", err)
	}
	if res.Kind != Failed || res.Err == nil {
		t.Errorf("result = %+v, want failed", res)
	}
}

func TestInitializeErrors(t *testing.T) {
	tests := []struct {
		name  string
		c     classifier.Classifier
		rate  float64
		cause error
	}{
		{"Zero Rate", constant(1, 0, 0, 0), 0, ErrInvalidSampleRate},
		{"NaN Rate", constant(1, 0, 0, 0), math.NaN(), ErrInvalidSampleRate},
		{"Tiny Rate", constant(1, 0, 0, 0), 0.5, ErrInvalidSampleRate},
		{"Input Mismatch", shaped{constant(1, 0, 0, 0), 20, 4, nil}, 16000, ErrDimensionMismatch},
		{"Output Mismatch", shaped{constant(1, 0, 0, 0), 13, 7, nil}, 16000, ErrDimensionMismatch},
		{"Not Ready", shaped{constant(1, 0, 0, 0), 13, 4, errors.New("weights loading")}, 16000, ErrClassifierNotReady},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(DefaultConfig(), tt.c)
			if err != nil {
				t.Fatal(err)
			}
			err = s.Initialize(tt.rate)
			if !IsFatal(err) || !errors.Is(err, tt.cause) {
				t.Fatalf("Initialize() error = %v, want fatal %v", err, tt.cause)
			}
			if _, err := s.ProcessChunk(context.Background(), nil); !errors.Is(err, ErrNotInitialized) {
				t.Errorf("ProcessChunk() after failed Initialize error = %v", err)
			}
		})
	}

	s, err := New(DefaultConfig(), shaped{constant(1, 0, 0, 0), 13, 4, nil})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Initialize(16000); err != nil {
		t.Errorf("matching shaped classifier: Initialize() error: %v", err)
	}
}

func TestNewErrors(t *testing.T) {
	mutate := func(f func(*Config)) Config {
		c := DefaultConfig()
		f(&c)
		return c
	}
	tests := []struct {
		name string
		cfg  Config
		c    classifier.Classifier
	}{
		{"Nil Classifier", DefaultConfig(), nil},
		{"No Labels", mutate(func(c *Config) { c.Labels = nil }), constant(1)},
		{"Zero Duration", mutate(func(c *Config) { c.ChunkDuration = 0 }), constant(1)},
		{"Alpha One", mutate(func(c *Config) { c.Alpha = 1 }), constant(1)},
		{"Too Many Coefficients", mutate(func(c *Config) { c.Features.Coefficients = 30 }), constant(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg, tt.c); !IsFatal(err) {
				t.Errorf("New() error = %v, want ConfigurationError", err)
			}
		})
	}
}

func TestResetAndReinitialize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ChunkDuration = 0.125
	s := newTestSession(t, cfg, constant(0, 1, 0, 0), 8192)

	half := make([]float64, 512)
	if res, _ := s.ProcessChunk(context.Background(), make([]float64, 1024)); res.Kind != Ready {
		t.Fatalf("Kind = %v, want ready", res.Kind)
	}

	s.ProcessChunk(context.Background(), half)
	s.Reset()
	res, _ := s.ProcessChunk(context.Background(), half)
	if res.Kind != Pending {
		t.Fatalf("after Reset Kind = %v, want pending (buffer and smoother cleared)", res.Kind)
	}

	if err := s.Initialize(16384); err != nil {
		t.Fatal(err)
	}
	if s.TargetChunkSize() != 2048 || s.SampleRate() != 16384 {
		t.Errorf("after re-Initialize target = %d, rate = %v", s.TargetChunkSize(), s.SampleRate())
	}
	res, _ = s.ProcessChunk(context.Background(), make([]float64, 1024))
	if res.Kind != Pending {
		t.Errorf("after re-Initialize Kind = %v, want pending", res.Kind)
	}
}

func TestResultAccessors(t *testing.T) {
	r := Result{Kind: Ready, Labels: DefaultLabels, Probabilities: []float64{0.1, 0.2, 0.6, 0.1}}
	label, p, ok := r.Top()
	if !ok || label != "happy" || p != 0.6 {
		t.Errorf("Top() = %q, %v, %v", label, p, ok)
	}
	if d := r.Distribution(); d["sad"] != 0.2 || len(d) != 4 {
		t.Errorf("Distribution() = %v", d)
	}

	pending := Result{Kind: Pending, Labels: DefaultLabels}
	if _, _, ok := pending.Top(); ok {
		t.Error("Top() on pending result reported ok")
	}
	if pending.Distribution() != nil {
		t.Error("Distribution() on pending result is not nil")
	}
	if Failed.String() != "failed" {
		t.Errorf("Failed.String() = %q", Failed.String())
	}
}

func TestLabelsAreCopied(t *testing.T) {
	cfg := DefaultConfig()
	s, _ := New(cfg, constant(1, 0, 0, 0))
	cfg.Labels[0] = "mutated"
	got := s.Labels()
	got[1] = "mutated"
	if l := s.Labels(); l[0] != "angry" || l[1] != "sad" {
		t.Errorf("Labels() = %v, internal state was aliased", l)
	}
}

func BenchmarkProcessChunk(b *testing.B) {
	cfg := DefaultConfig()
	cfg.ChunkDuration = 1024.0 / 44100
	s, _ := New(cfg, constant(0.4, 0.3, 0.2, 0.1))
	if err := s.Initialize(44100); err != nil {
		b.Fatal(err)
	}
	chunk := utils.GenerateComplexWave(1024, 44100)

	b.ReportAllocs()
	for b.Loop() {
		_, _ = s.ProcessChunk(context.Background(), chunk)
	}
}
