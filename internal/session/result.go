// SPDX-License-Identifier: MIT
package session

import "gonum.org/v1/gonum/floats"

// Kind tags a Result.
type Kind int

const (
	// Pending means no frame has been classified since the last reset.
	Pending Kind = iota
	// Ready carries a smoothed probability distribution.
	Ready
	// Failed carries a configuration error.
	Failed
)

func (k Kind) String() string {
	switch k {
	case Pending:
		return "pending"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the outcome of one ProcessChunk call.
type Result struct {
	Kind Kind

	// Probabilities is set for Ready results. It is a copy owned by the caller,
	// ordered like Labels.
	Probabilities []float64
	Labels        []string

	// Updated is true when this call folded a new frame into the distribution.
	// A Ready result with Updated false repeats the retained distribution.
	Updated bool

	// Skipped explains why this call did not update, if it did not: a
	// *TransientExtractionError or a *ClassifierInvocationError.
	Skipped error

	// Err is set for Failed results.
	Err error
}

// Top returns the most probable label. ok is false unless r is Ready.
func (r Result) Top() (label string, p float64, ok bool) {
	if r.Kind != Ready || len(r.Probabilities) == 0 {
		return "", 0, false
	}
	i := floats.MaxIdx(r.Probabilities)
	return r.Labels[i], r.Probabilities[i], true
}

// Distribution maps each label to its probability, or returns nil unless r
// is Ready.
func (r Result) Distribution() map[string]float64 {
	if r.Kind != Ready {
		return nil
	}
	out := make(map[string]float64, len(r.Probabilities))
	for i, p := range r.Probabilities {
		out[r.Labels[i]] = p
	}
	return out
}
