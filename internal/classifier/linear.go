// SPDX-License-Identifier: MIT
package classifier

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

// LinearModel is the on-disk form of a Linear classifier.
//
//	labels:  [angry, sad, happy, surprised]
//	weights: [[...13 values...], ...]   # one row per label
//	bias:    [0.1, -0.2, 0.0, 0.05]
//	mean:    [...]                      # optional per-feature standardisation
//	scale:   [...]
type LinearModel struct {
	Labels  []string    `yaml:"labels"`
	Weights [][]float64 `yaml:"weights"`
	Bias    []float64   `yaml:"bias"`
	Mean    []float64   `yaml:"mean,omitempty"`
	Scale   []float64   `yaml:"scale,omitempty"`
}

// Linear is a multinomial logistic model: it returns the logits
// W·((x-mean)/scale) + b. Pair it with a logits-mode normaliser.
type Linear struct {
	labels  []string
	weights *mat.Dense
	bias    *mat.VecDense
	mean    []float64
	scale   []float64

	scratch sync.Pool // *mat.VecDense of InputDim, one per in-flight call
}

// LoadLinear reads a LinearModel from a YAML file.
func LoadLinear(path string) (*Linear, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}
	var m LinearModel
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse model file %s: %w", path, err)
	}
	return NewLinear(m)
}

// NewLinear validates m and builds the classifier.
func NewLinear(m LinearModel) (*Linear, error) {
	k := len(m.Weights)
	if k == 0 {
		return nil, errors.New("linear model has no weight rows")
	}
	n := len(m.Weights[0])
	if n == 0 {
		return nil, errors.New("linear model has empty weight rows")
	}
	if len(m.Bias) != k {
		return nil, fmt.Errorf("linear model has %d bias terms for %d rows", len(m.Bias), k)
	}
	if len(m.Labels) != 0 && len(m.Labels) != k {
		return nil, fmt.Errorf("linear model has %d labels for %d rows", len(m.Labels), k)
	}

	w := mat.NewDense(k, n, nil)
	for i, row := range m.Weights {
		if len(row) != n {
			return nil, fmt.Errorf("weight row %d has %d columns, want %d", i, len(row), n)
		}
		w.SetRow(i, row)
	}

	l := &Linear{
		labels:  m.Labels,
		weights: w,
		bias:    mat.NewVecDense(k, append([]float64(nil), m.Bias...)),
	}

	if m.Mean != nil || m.Scale != nil {
		if len(m.Mean) != n || len(m.Scale) != n {
			return nil, fmt.Errorf("standardisation needs %d mean and scale values, got %d and %d", n, len(m.Mean), len(m.Scale))
		}
		for i, s := range m.Scale {
			if s == 0 {
				return nil, fmt.Errorf("scale[%d] is zero", i)
			}
		}
		l.mean = append([]float64(nil), m.Mean...)
		l.scale = append([]float64(nil), m.Scale...)
	}

	l.scratch.New = func() any { return mat.NewVecDense(n, nil) }
	return l, nil
}

// Classify implements Classifier.
func (l *Linear) Classify(ctx context.Context, features []float64) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := l.InputDim()
	if len(features) != n {
		return nil, fmt.Errorf("linear model expects %d features, got %d", n, len(features))
	}

	x := l.scratch.Get().(*mat.VecDense)
	defer l.scratch.Put(x)

	for i, v := range features {
		if l.scale != nil {
			v = (v - l.mean[i]) / l.scale[i]
		}
		x.SetVec(i, v)
	}

	out := mat.NewVecDense(l.OutputDim(), nil)
	out.MulVec(l.weights, x)
	out.AddVec(out, l.bias)
	return out.RawVector().Data, nil
}

// InputDim implements Shaped.
func (l *Linear) InputDim() int {
	_, c := l.weights.Dims()
	return c
}

// OutputDim implements Shaped.
func (l *Linear) OutputDim() int {
	r, _ := l.weights.Dims()
	return r
}

// ScoresAreLogits implements LogitScorer; Classify never normalises.
func (l *Linear) ScoresAreLogits() bool { return true }

// Labels returns the category labels stored with the model, or nil.
func (l *Linear) Labels() []string {
	return l.labels
}

var (
	_ Shaped      = (*Linear)(nil)
	_ LogitScorer = (*Linear)(nil)
)
