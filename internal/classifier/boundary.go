// SPDX-License-Identifier: MIT
package classifier

import (
	"context"
	"fmt"
	"time"
)

// DefaultTimeout bounds a single invocation when none is configured.
const DefaultTimeout = 500 * time.Millisecond

type outcome struct {
	scores []float64
	err    error
}

// Boundary guards every call into a Classifier:
//   - each call runs under a deadline;
//   - panics are recovered;
//   - the score vector must have exactly outputDim entries;
//   - at most one call is in flight. A call that outlives its deadline keeps
//     the slot until it returns, and later calls fail fast with ErrBusy.
//
// All failures are returned as *InvocationError.
type Boundary struct {
	inner     Classifier
	outputDim int
	timeout   time.Duration
	slot      chan struct{}
}

// NewBoundary wraps c. A non-positive timeout selects DefaultTimeout.
func NewBoundary(c Classifier, outputDim int, timeout time.Duration) *Boundary {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Boundary{
		inner:     c,
		outputDim: outputDim,
		timeout:   timeout,
		slot:      make(chan struct{}, 1),
	}
}

// Invoke classifies features. On success the returned scores are a copy
// owned by the caller.
func (b *Boundary) Invoke(ctx context.Context, features []float64) ([]float64, error) {
	select {
	case b.slot <- struct{}{}:
	default:
		return nil, &InvocationError{Err: ErrBusy}
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	// The call may outlive this one, so it gets its own copy of the input.
	input := make([]float64, len(features))
	copy(input, features)

	done := make(chan outcome, 1)
	go func() {
		var out outcome
		// The slot is free before the caller can observe the outcome.
		defer func() {
			if r := recover(); r != nil {
				out = outcome{err: fmt.Errorf("%w: %v", ErrPanic, r)}
			}
			<-b.slot
			done <- out
		}()
		out.scores, out.err = b.inner.Classify(ctx, input)
	}()

	var out outcome
	select {
	case out = <-done:
	case <-ctx.Done():
		return nil, &InvocationError{Err: ctx.Err()}
	}

	if out.err != nil {
		return nil, &InvocationError{Err: out.err}
	}
	if len(out.scores) != b.outputDim {
		return nil, &InvocationError{
			Err: fmt.Errorf("%w: got %d scores, want %d", ErrOutputDimension, len(out.scores), b.outputDim),
		}
	}

	scores := make([]float64, len(out.scores))
	copy(scores, out.scores)
	return scores, nil
}

// OutputDim returns the category count K the boundary enforces.
func (b *Boundary) OutputDim() int {
	return b.outputDim
}
