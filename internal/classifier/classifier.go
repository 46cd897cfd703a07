// SPDX-License-Identifier: MIT
/*
Package classifier defines the boundary between the feature pipeline and the
external model that maps an MFCC vector to a score vector.

The model is treated as a pure function, loaded once and invoked repeatedly.
Every invocation goes through a Boundary, which turns timeouts, panics and
malformed output into an *InvocationError so a misbehaving model can only
cost one cycle, never the stream.
*/
package classifier

import (
	"context"
	"errors"
	"fmt"
)

// Classifier maps a feature vector of dimension N to a score vector of
// dimension K. Implementations should honour ctx cancellation where they can.
type Classifier interface {
	Classify(ctx context.Context, features []float64) ([]float64, error)
}

// Shaped is implemented by classifiers that know their trained dimensions.
// Sessions check it once at initialisation.
type Shaped interface {
	InputDim() int
	OutputDim() int
}

// Readiness is implemented by classifiers that load lazily or remotely.
// A non-nil Ready error at session initialisation is a configuration error.
type Readiness interface {
	Ready() error
}

// LogitScorer is implemented by classifiers that know whether their scores
// are unnormalised logits. Sessions read logit scores through softmax
// whatever the configured output kind.
type LogitScorer interface {
	ScoresAreLogits() bool
}

// Func adapts a plain function to the Classifier interface.
type Func func(ctx context.Context, features []float64) ([]float64, error)

// Classify calls f.
func (f Func) Classify(ctx context.Context, features []float64) ([]float64, error) {
	return f(ctx, features)
}

var (
	// ErrOutputDimension is the cause when a classifier returns the wrong number of scores.
	ErrOutputDimension = errors.New("classifier output dimension mismatch")

	// ErrBusy is the cause when a previous invocation is still running.
	ErrBusy = errors.New("classifier invocation already in flight")

	// ErrPanic is the cause when the classifier panicked.
	ErrPanic = errors.New("classifier panicked")
)

// InvocationError wraps any failure from a single classifier invocation. It
// is transient: the caller skips the cycle and keeps its previous result.
type InvocationError struct {
	Err error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("classifier invocation: %v", e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}
