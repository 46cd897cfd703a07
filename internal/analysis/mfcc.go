// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"
	"math"
)

// LogFloor is added to every mel energy before taking the log so silent bands
// stay finite.
const LogFloor = 1e-6

// ErrNonFiniteFeature is returned when an MFCC coefficient is NaN or infinite.
var ErrNonFiniteFeature = errors.New("non-finite MFCC coefficient")

// MFCCExtractor log-compresses mel energies and applies a DCT-II using a
// precomputed cosine table. Not safe for concurrent use.
type MFCCExtractor struct {
	bands  int
	coeffs int
	table  []float64 // [coeffs][bands], row-major
	logMel []float64
}

// NewMFCCExtractor builds the cosine table for bandCount inputs and
// coefficientCount outputs.
func NewMFCCExtractor(bandCount, coefficientCount int) (*MFCCExtractor, error) {
	if bandCount < 1 {
		return nil, fmt.Errorf("mfcc: band count must be >= 1, got %d", bandCount)
	}
	if coefficientCount < 1 || coefficientCount > bandCount {
		return nil, fmt.Errorf("mfcc: coefficient count must be in [1, %d], got %d", bandCount, coefficientCount)
	}

	table := make([]float64, coefficientCount*bandCount)
	for k := 0; k < coefficientCount; k++ {
		row := table[k*bandCount : (k+1)*bandCount]
		for n := range row {
			row[n] = math.Cos(math.Pi * float64(k) * float64(2*n+1) / float64(2*bandCount))
		}
	}

	return &MFCCExtractor{
		bands:  bandCount,
		coeffs: coefficientCount,
		table:  table,
		logMel: make([]float64, bandCount),
	}, nil
}

// Extract writes coefficientCount MFCCs for melEnergies into dst. It fails
// with ErrNonFiniteFeature if any coefficient is NaN or infinite; dst content
// is unspecified in that case.
func (m *MFCCExtractor) Extract(melEnergies, dst []float64) error {
	if len(melEnergies) != m.bands {
		return fmt.Errorf("mfcc: got %d mel energies, want %d", len(melEnergies), m.bands)
	}
	if len(dst) != m.coeffs {
		return fmt.Errorf("mfcc: dst has %d coefficients, want %d", len(dst), m.coeffs)
	}

	for i, e := range melEnergies {
		m.logMel[i] = math.Log(e + LogFloor)
	}
	return m.ExtractLog(m.logMel, dst)
}

// ExtractLog applies only the DCT stage to already log-compressed energies.
func (m *MFCCExtractor) ExtractLog(logMel, dst []float64) error {
	if len(logMel) != m.bands || len(dst) != m.coeffs {
		return fmt.Errorf("mfcc: got %d log energies and %d outputs, want %d and %d",
			len(logMel), len(dst), m.bands, m.coeffs)
	}

	for k := range dst {
		row := m.table[k*m.bands : (k+1)*m.bands]
		sum := 0.0
		for n, c := range row {
			sum += logMel[n] * c
		}
		if math.IsNaN(sum) || math.IsInf(sum, 0) {
			return fmt.Errorf("%w: coefficient %d = %v", ErrNonFiniteFeature, k, sum)
		}
		dst[k] = sum
	}
	return nil
}

// Bands returns the expected number of mel energies.
func (m *MFCCExtractor) Bands() int { return m.bands }

// Coefficients returns the feature vector dimension.
func (m *MFCCExtractor) Coefficients() int { return m.coeffs }
