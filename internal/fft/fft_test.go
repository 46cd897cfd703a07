// SPDX-License-Identifier: MIT
package fft

import (
	"affect/pkg/utils"
	"errors"
	"math"
	"math/cmplx"
	"testing"
)

const (
	testFFTSize    = 1024
	testSampleRate = 44100
)

func newTestProcessor(t testing.TB, size int, rate float64) *Processor {
	t.Helper()
	p, err := NewProcessor(size, rate)
	if err != nil {
		t.Fatalf("NewProcessor(%d, %f) error: %v", size, rate, err)
	}
	return p
}

func TestNewProcessorValidation(t *testing.T) {
	tests := []struct {
		name string
		size int
		rate float64
	}{
		{"Not Power Of Two", 1000, testSampleRate},
		{"Zero Size", 0, testSampleRate},
		{"Size One", 1, testSampleRate},
		{"Zero Sample Rate", 1024, 0},
		{"Negative Sample Rate", 1024, -8000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewProcessor(tt.size, tt.rate); err == nil {
				t.Errorf("NewProcessor(%d, %f) expected error", tt.size, tt.rate)
			}
		})
	}
}

func TestHannWindowCoefficients(t *testing.T) {
	p := newTestProcessor(t, 8, testSampleRate)
	w := p.Window()

	for i := range w {
		want := 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(len(w)-1)))
		if math.Abs(w[i]-want) > 1e-12 {
			t.Errorf("window[%d] = %.15f, want %.15f", i, w[i], want)
		}
	}
	if w[0] != 0 || math.Abs(w[len(w)-1]) > 1e-12 {
		t.Errorf("window endpoints = %f, %f; want 0", w[0], w[len(w)-1])
	}
}

func TestApplyWindowPure(t *testing.T) {
	p := newTestProcessor(t, 16, testSampleRate)
	frame := make([]float64, 16)
	for i := range frame {
		frame[i] = 1
	}
	a := make([]float64, 16)
	b := make([]float64, 16)

	if err := p.ApplyWindow(a, frame); err != nil {
		t.Fatal(err)
	}
	if err := p.ApplyWindow(b, frame); err != nil {
		t.Fatal(err)
	}
	for i := range a {
		if a[i] != b[i] || a[i] != p.Window()[i] {
			t.Fatalf("ApplyWindow not deterministic at %d: %f vs %f", i, a[i], b[i])
		}
		if frame[i] != 1 {
			t.Fatalf("ApplyWindow modified input frame")
		}
	}
}

func TestMagnitudesFrameLength(t *testing.T) {
	p := newTestProcessor(t, 64, testSampleRate)
	for _, n := range []int{0, 63, 65} {
		if _, err := p.Magnitudes(make([]float64, n)); !errors.Is(err, ErrFrameLength) {
			t.Errorf("Magnitudes(len %d) error = %v, want ErrFrameLength", n, err)
		}
	}
}

// The windowed spectrum must match a direct DFT of the windowed frame.
func TestMagnitudesMatchDirectDFT(t *testing.T) {
	const n = 32
	p := newTestProcessor(t, n, 8000)
	frame := utils.GenerateNoise(n, 0.8, 42)

	got, err := p.Magnitudes(frame)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != n/2+1 {
		t.Fatalf("len(magnitudes) = %d, want %d", len(got), n/2+1)
	}

	w := p.Window()
	for k := 0; k <= n/2; k++ {
		var sum complex128
		for j := 0; j < n; j++ {
			angle := -2 * math.Pi * float64(k*j) / n
			sum += complex(frame[j]*w[j], 0) * cmplx.Exp(complex(0, angle))
		}
		if math.Abs(cmplx.Abs(sum)-got[k]) > 1e-9 {
			t.Errorf("bin %d: got %.12f, want %.12f", k, got[k], cmplx.Abs(sum))
		}
	}
}

func TestMagnitudesSinePeak(t *testing.T) {
	p := newTestProcessor(t, testFFTSize, testSampleRate)

	// Bin-centred tone so the peak lands exactly on one bin.
	bin := 40
	freq := float64(bin) * testSampleRate / testFFTSize
	mags, err := p.Magnitudes(utils.GenerateSineWave(testFFTSize, testSampleRate, freq))
	if err != nil {
		t.Fatal(err)
	}

	if peak := utils.FindPeakBin(mags, 0, len(mags)-1); peak != bin {
		t.Errorf("peak bin = %d, want %d", peak, bin)
	}
}

func TestMagnitudesSilence(t *testing.T) {
	p := newTestProcessor(t, testFFTSize, testSampleRate)
	mags, err := p.Magnitudes(make([]float64, testFFTSize))
	if err != nil {
		t.Fatal(err)
	}
	for i, m := range mags {
		if m != 0 {
			t.Fatalf("bin %d = %f, want 0 for a silent frame", i, m)
		}
	}
}

func TestFFTHotPath(t *testing.T) {
	processor := newTestProcessor(t, testFFTSize, testSampleRate)
	frame := utils.GenerateComplexWave(testFFTSize, testSampleRate)

	// Warm-up call so lazily initialised state is not counted.
	_, _ = processor.Magnitudes(frame)
	allocs := testing.AllocsPerRun(100, func() {
		_, _ = processor.Magnitudes(frame)
	})

	if allocs > 0 {
		t.Errorf("Expected zero allocations in Magnitudes hot path, got %.1f", allocs)
	}
}

func TestFrequencyForBin(t *testing.T) {
	p := newTestProcessor(t, testFFTSize, testSampleRate)

	tests := []struct {
		bin  int
		want float64
	}{
		{0, 0},
		{1, testSampleRate / float64(testFFTSize)},
		{testFFTSize / 2, testSampleRate / 2},
		{-1, 0},
		{testFFTSize/2 + 1, 0},
	}
	for _, tt := range tests {
		if got := p.FrequencyForBin(tt.bin); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("FrequencyForBin(%d) = %f, want %f", tt.bin, got, tt.want)
		}
	}
	if p.Bins() != testFFTSize/2+1 || p.Size() != testFFTSize || p.SampleRate() != testSampleRate {
		t.Errorf("accessors = (%d, %d, %f)", p.Bins(), p.Size(), p.SampleRate())
	}
}

func BenchmarkMagnitudes(b *testing.B) {
	processor := newTestProcessor(b, testFFTSize, testSampleRate)
	frame := utils.GenerateComplexWave(testFFTSize, testSampleRate)

	b.ReportAllocs()

	for b.Loop() {
		_, _ = processor.Magnitudes(frame)
	}
}
