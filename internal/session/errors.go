// SPDX-License-Identifier: MIT
package session

import (
	"affect/internal/analysis"
	"affect/internal/classifier"
	"errors"
	"fmt"
)

var (
	ErrNotInitialized     = errors.New("session not initialized")
	ErrInvalidSampleRate  = errors.New("invalid sample rate")
	ErrDimensionMismatch  = errors.New("dimension mismatch")
	ErrClassifierNotReady = errors.New("classifier not ready")
	ErrInsufficientAudio  = errors.New("insufficient buffered audio")

	// ErrNonFiniteFeature is re-exported so callers need not import analysis.
	ErrNonFiniteFeature = analysis.ErrNonFiniteFeature
)

// ConfigurationError halts processing. It is returned for invalid sample
// rates, feature/classifier dimension disagreements and classifiers that are
// not ready.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %v", e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// TransientExtractionError means one frame could not be turned into
// features. The cycle is skipped and the previous output retained.
type TransientExtractionError struct {
	Err error
}

func (e *TransientExtractionError) Error() string {
	return fmt.Sprintf("feature extraction skipped: %v", e.Err)
}

func (e *TransientExtractionError) Unwrap() error { return e.Err }

// ClassifierInvocationError is handled exactly like TransientExtractionError.
type ClassifierInvocationError = classifier.InvocationError

func configErrorf(cause error, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Err: fmt.Errorf("%w: "+format, append([]any{cause}, args...)...)}
}

// IsFatal reports whether err must stop the stream.
func IsFatal(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
