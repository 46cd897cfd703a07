// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"
)

// HzToMel converts a frequency in Hz to the HTK mel scale.
func HzToMel(hz float64) float64 {
	return 2595 * math.Log10(1+hz/700)
}

// MelToHz converts a mel value back to Hz.
func MelToHz(mel float64) float64 {
	return 700 * (math.Pow(10, mel/2595) - 1)
}

// MelFilter is one triangular filter. Anchors are in Hz; weights cover only
// the bins with non-zero weight, starting at bin start.
type MelFilter struct {
	Left   float64
	Center float64
	Right  float64

	start   int
	weights []float64
}

// Weight returns the filter weight at frequency f (Hz): zero outside
// [Left, Right], rising linearly to 1 at Center and falling back to 0.
func (f MelFilter) Weight(hz float64) float64 {
	switch {
	case hz < f.Left || hz > f.Right:
		return 0
	case hz <= f.Center:
		return (hz - f.Left) / (f.Center - f.Left)
	default:
		return (f.Right - hz) / (f.Right - f.Center)
	}
}

// MelFilterBank maps a magnitude spectrum onto bandCount mel energies. It is
// immutable once built; a different sample rate, FFT size or band count needs
// a new bank.
type MelFilterBank struct {
	sampleRate float64
	fftSize    int
	bins       int
	filters    []MelFilter
}

// NewMelFilterBank places bandCount+2 anchors evenly on the mel scale between
// 0 Hz and Nyquist and builds bandCount overlapping triangles from consecutive
// (left, center, right) triples, evaluated at bin frequencies
// f_j = j * sampleRate / fftSize.
func NewMelFilterBank(sampleRate float64, fftSize, bandCount int) (*MelFilterBank, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("mel filter bank: sample rate must be positive, got %f", sampleRate)
	}
	if fftSize < 2 {
		return nil, fmt.Errorf("mel filter bank: fft size must be >= 2, got %d", fftSize)
	}
	if bandCount < 1 {
		return nil, fmt.Errorf("mel filter bank: band count must be >= 1, got %d", bandCount)
	}

	nyquist := sampleRate / 2
	lowMel := HzToMel(0)
	highMel := HzToMel(nyquist)
	step := (highMel - lowMel) / float64(bandCount+1)

	anchors := make([]float64, bandCount+2)
	for i := range anchors {
		anchors[i] = MelToHz(lowMel + float64(i)*step)
	}
	// Pin the outer anchors so round-tripping through the mel scale cannot
	// move them off 0 Hz and Nyquist.
	anchors[0] = 0
	anchors[len(anchors)-1] = nyquist

	bins := fftSize/2 + 1
	binHz := sampleRate / float64(fftSize)

	filters := make([]MelFilter, bandCount)
	for i := range filters {
		f := MelFilter{Left: anchors[i], Center: anchors[i+1], Right: anchors[i+2]}

		first, last := -1, -1
		for j := 0; j < bins; j++ {
			if f.Weight(float64(j)*binHz) > 0 {
				if first < 0 {
					first = j
				}
				last = j
			}
		}
		if first >= 0 {
			f.start = first
			f.weights = make([]float64, last-first+1)
			for j := range f.weights {
				f.weights[j] = f.Weight(float64(first+j) * binHz)
			}
		}
		filters[i] = f
	}

	return &MelFilterBank{
		sampleRate: sampleRate,
		fftSize:    fftSize,
		bins:       bins,
		filters:    filters,
	}, nil
}

// Apply writes one energy per band into dst: the weighted sum of spectrum
// magnitudes under that band's triangle.
func (b *MelFilterBank) Apply(spectrum, dst []float64) error {
	if len(spectrum) != b.bins {
		return fmt.Errorf("mel filter bank: spectrum has %d bins, want %d", len(spectrum), b.bins)
	}
	if len(dst) != len(b.filters) {
		return fmt.Errorf("mel filter bank: dst has %d bands, want %d", len(dst), len(b.filters))
	}

	for i, f := range b.filters {
		sum := 0.0
		for j, w := range f.weights {
			sum += w * spectrum[f.start+j]
		}
		dst[i] = sum
	}
	return nil
}

// Filters returns a copy of the filter anchors, ordered by center frequency.
func (b *MelFilterBank) Filters() []MelFilter {
	out := make([]MelFilter, len(b.filters))
	for i, f := range b.filters {
		out[i] = MelFilter{Left: f.Left, Center: f.Center, Right: f.Right}
	}
	return out
}

// Bands returns the number of filters.
func (b *MelFilterBank) Bands() int { return len(b.filters) }

// Bins returns the expected spectrum length.
func (b *MelFilterBank) Bins() int { return b.bins }

// SampleRate returns the sample rate the bank was built for.
func (b *MelFilterBank) SampleRate() float64 { return b.sampleRate }

// FFTSize returns the FFT size the bank was built for.
func (b *MelFilterBank) FFTSize() int { return b.fftSize }
