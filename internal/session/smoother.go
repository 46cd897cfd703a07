// SPDX-License-Identifier: MIT
package session

import "fmt"

// DefaultAlpha is the weight of the previous state in each EMA update.
const DefaultAlpha = 0.85

// Smoother is an exponential moving average over probability vectors.
// It starts uninitialised; the first update adopts its input verbatim.
type Smoother struct {
	alpha float64
	state []float64
	warm  bool
}

// NewSmoother returns a smoother with history weight alpha in (0,1).
func NewSmoother(alpha float64) (*Smoother, error) {
	if !(alpha > 0 && alpha < 1) {
		return nil, fmt.Errorf("smoothing factor must be in (0,1), got %v", alpha)
	}
	return &Smoother{alpha: alpha}, nil
}

// Update folds p into the state: S = alpha*S + (1-alpha)*p. A length that
// disagrees with an established state is a configuration error and leaves
// the state unchanged.
func (s *Smoother) Update(p []float64) error {
	if !s.warm {
		if cap(s.state) < len(p) {
			s.state = make([]float64, len(p))
		}
		s.state = s.state[:len(p)]
		copy(s.state, p)
		s.warm = true
		return nil
	}

	if len(p) != len(s.state) {
		return configErrorf(ErrDimensionMismatch, "smoother holds %d categories, got %d", len(s.state), len(p))
	}
	for i, v := range p {
		s.state[i] = s.alpha*s.state[i] + (1-s.alpha)*v
	}
	return nil
}

// Warm reports whether at least one update has been applied since the last reset.
func (s *Smoother) Warm() bool { return s.warm }

// Snapshot copies the current state into a new slice, or returns nil when
// the smoother is uninitialised.
func (s *Smoother) Snapshot() []float64 {
	if !s.warm {
		return nil
	}
	out := make([]float64, len(s.state))
	copy(out, s.state)
	return out
}

// Reset returns the smoother to the uninitialised state.
func (s *Smoother) Reset() {
	s.warm = false
	s.state = s.state[:0]
}
