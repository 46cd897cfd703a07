// SPDX-License-Identifier: MIT
//
// Package fft turns fixed-length analysis frames into magnitude spectra. A
// Processor owns the precomputed Hann window, the gonum real FFT plan and all
// scratch buffers, so the per-frame path performs no allocations.
package fft

import (
	"affect/pkg/bitint"
	"errors"
	"fmt"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// ErrFrameLength is returned when a frame does not match the configured FFT size.
var ErrFrameLength = errors.New("frame length does not match FFT size")

// FFTWorkspace holds pre-allocated buffers for FFT calculations.
type FFTWorkspace struct {
	input     []float64    // ...for windowed input samples
	fftOutput []complex128 // ...for FFT complex output
	magnitude []float64    // ...for magnitude output
	window    []float64    // ...for window function coefficients
}

// Processor holds the FFT configuration and workspace. A Processor is not safe
// for concurrent use; each session owns its own.
type Processor struct {
	fftSize    int
	sampleRate float64
	workspace  FFTWorkspace
	fftObj     *fourier.FFT
}

// NewProcessor pre-allocates all buffers and computes the Hann window
// w[i] = 0.5 * (1 - cos(2*pi*i/(size-1))).
func NewProcessor(fftSize int, sampleRate float64) (*Processor, error) {
	if !bitint.IsPowerOfTwo(fftSize) || fftSize < 2 {
		return nil, fmt.Errorf("fft size must be a power of 2 (>= 2), got %d (try %d)",
			fftSize, bitint.NextPowerOfTwo(fftSize))
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}

	coeffs := make([]float64, fftSize)
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	window.Hann(coeffs)

	outputSize := fftSize/2 + 1

	return &Processor{
		fftSize:    fftSize,
		sampleRate: sampleRate,
		fftObj:     fourier.NewFFT(fftSize),
		workspace: FFTWorkspace{
			input:     make([]float64, fftSize),
			fftOutput: make([]complex128, outputSize),
			magnitude: make([]float64, outputSize),
			window:    coeffs,
		},
	}, nil
}

// ApplyWindow writes frame multiplied elementwise by the Hann window into dst.
// dst and frame may alias.
func (p *Processor) ApplyWindow(dst, frame []float64) error {
	if len(frame) != p.fftSize || len(dst) != p.fftSize {
		return fmt.Errorf("%w: got frame %d, dst %d, want %d", ErrFrameLength, len(frame), len(dst), p.fftSize)
	}
	for i, w := range p.workspace.window {
		dst[i] = frame[i] * w
	}
	return nil
}

// Magnitudes windows the frame, runs the real FFT and returns |X[k]| for
// k = 0..fftSize/2. The returned slice is owned by the Processor and is
// overwritten by the next call.
func (p *Processor) Magnitudes(frame []float64) ([]float64, error) {
	if err := p.ApplyWindow(p.workspace.input, frame); err != nil {
		return nil, err
	}

	p.fftObj.Coefficients(p.workspace.fftOutput, p.workspace.input)
	for i, c := range p.workspace.fftOutput {
		p.workspace.magnitude[i] = cmplx.Abs(c)
	}

	return p.workspace.magnitude, nil
}

// Window returns the precomputed window coefficients. Callers must not modify it.
func (p *Processor) Window() []float64 {
	return p.workspace.window
}

// FrequencyForBin returns the frequency in Hz for a given FFT bin index, or 0
// when the index is out of range.
func (p *Processor) FrequencyForBin(i int) float64 {
	if i < 0 || i >= len(p.workspace.fftOutput) {
		return 0
	}
	return p.fftObj.Freq(i) * p.sampleRate
}

// Size returns the FFT size (frame length).
func (p *Processor) Size() int {
	return p.fftSize
}

// Bins returns the spectrum length, fftSize/2 + 1.
func (p *Processor) Bins() int {
	return len(p.workspace.magnitude)
}

// SampleRate returns the sample rate the processor was built for.
func (p *Processor) SampleRate() float64 {
	return p.sampleRate
}
