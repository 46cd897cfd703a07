// SPDX-License-Identifier: MIT
//
// Package analysis turns analysis frames into MFCC feature vectors:
// Hann window and magnitude spectrum (package fft), triangular mel filter
// bank, log compression and a type-II DCT.
package analysis

import (
	"affect/internal/fft"
	"fmt"
)

// FeatureConfig fixes the shape of the feature pipeline. All values must match
// what the downstream classifier was trained on.
type FeatureConfig struct {
	FFTSize      int // Frame length, power of two.
	MelBands     int // Number of triangular filters.
	Coefficients int // MFCC vector dimension N.
}

// FeatureExtractor is the per-session Frame -> FeatureVector stage. Its
// window, filter bank and DCT table are built once by NewFeatureExtractor and
// reused for every frame. Not safe for concurrent use.
type FeatureExtractor struct {
	spectral *fft.Processor
	bank     *MelFilterBank
	mfcc     *MFCCExtractor
	mel      []float64
}

// NewFeatureExtractor builds all precomputed tables for sampleRate.
func NewFeatureExtractor(cfg FeatureConfig, sampleRate float64) (*FeatureExtractor, error) {
	spectral, err := fft.NewProcessor(cfg.FFTSize, sampleRate)
	if err != nil {
		return nil, err
	}
	bank, err := NewMelFilterBank(sampleRate, cfg.FFTSize, cfg.MelBands)
	if err != nil {
		return nil, err
	}
	mfcc, err := NewMFCCExtractor(cfg.MelBands, cfg.Coefficients)
	if err != nil {
		return nil, err
	}

	return &FeatureExtractor{
		spectral: spectral,
		bank:     bank,
		mfcc:     mfcc,
		mel:      make([]float64, cfg.MelBands),
	}, nil
}

// Extract computes the MFCC vector of frame into dst. frame must be exactly
// FFTSize samples. Errors wrapping ErrNonFiniteFeature are per-frame and
// recoverable; any other error indicates a shape mismatch.
func (e *FeatureExtractor) Extract(frame, dst []float64) error {
	spectrum, err := e.spectral.Magnitudes(frame)
	if err != nil {
		return fmt.Errorf("spectrum: %w", err)
	}
	if err := e.bank.Apply(spectrum, e.mel); err != nil {
		return err
	}
	return e.mfcc.Extract(e.mel, dst)
}

// MelEnergies returns the band energies of the last extracted frame. The slice
// is owned by the extractor.
func (e *FeatureExtractor) MelEnergies() []float64 {
	return e.mel
}

// FilterBank returns the session's mel filter bank.
func (e *FeatureExtractor) FilterBank() *MelFilterBank {
	return e.bank
}

// Dimension returns the feature vector length N.
func (e *FeatureExtractor) Dimension() int {
	return e.mfcc.Coefficients()
}

// FrameSize returns the required frame length.
func (e *FeatureExtractor) FrameSize() int {
	return e.spectral.Size()
}
