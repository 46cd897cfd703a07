// SPDX-License-Identifier: MIT
package session

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// ScoreKind says how a classifier's raw output should be read.
type ScoreKind int

const (
	// Probabilities are non-negative scores that only need rescaling.
	Probabilities ScoreKind = iota
	// Logits are unbounded scores passed through softmax first.
	Logits
)

func (k ScoreKind) String() string {
	switch k {
	case Probabilities:
		return "probabilities"
	case Logits:
		return "logits"
	default:
		return fmt.Sprintf("ScoreKind(%d)", int(k))
	}
}

// ParseScoreKind accepts "probabilities" or "logits".
func ParseScoreKind(s string) (ScoreKind, error) {
	switch s {
	case "probabilities", "":
		return Probabilities, nil
	case "logits":
		return Logits, nil
	default:
		return 0, fmt.Errorf("unknown classifier output kind %q", s)
	}
}

// Normalizer turns a raw score vector into a probability vector whose
// entries lie in [0,1] and sum to 1.
type Normalizer struct {
	kind ScoreKind
}

func NewNormalizer(kind ScoreKind) *Normalizer {
	return &Normalizer{kind: kind}
}

// Normalize writes the distribution for scores into dst, which must have
// the same length. Degenerate input yields the uniform distribution.
func (n *Normalizer) Normalize(dst, scores []float64) {
	k := len(scores)
	if k == 0 {
		return
	}
	copy(dst, scores)

	if n.kind == Logits {
		if !allFinite(dst) {
			uniform(dst)
			return
		}
		peak := floats.Max(dst)
		for i, v := range dst {
			dst[i] = math.Exp(v - peak)
		}
	}

	for _, v := range dst {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			uniform(dst)
			return
		}
	}

	total := floats.Sum(dst)
	if total <= 0 || math.IsInf(total, 0) || math.IsNaN(total) {
		uniform(dst)
		return
	}
	floats.Scale(1/total, dst)
}

func allFinite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

func uniform(dst []float64) {
	p := 1 / float64(len(dst))
	for i := range dst {
		dst[i] = p
	}
}
