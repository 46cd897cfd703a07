// SPDX-License-Identifier: MIT
package session

import (
	"errors"
	"math"
	"testing"
)

func TestSmootherEMA(t *testing.T) {
	s, err := NewSmoother(0.85)
	if err != nil {
		t.Fatal(err)
	}
	if s.Warm() || s.Snapshot() != nil {
		t.Fatal("new smoother is not uninitialised")
	}

	if err := s.Update([]float64{0.25, 0.25, 0.25, 0.25}); err != nil {
		t.Fatal(err)
	}
	if err := s.Update([]float64{0.8, 0.1, 0.05, 0.05}); err != nil {
		t.Fatal(err)
	}

	want := []float64{0.325, 0.2275, 0.2125, 0.2125}
	got := s.Snapshot()
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Fatalf("Snapshot() = %v, want %v", got, want)
		}
	}
}

func TestSmootherFirstUpdateVerbatim(t *testing.T) {
	s, _ := NewSmoother(DefaultAlpha)
	first := []float64{0.7, 0.2, 0.1}
	if err := s.Update(first); err != nil {
		t.Fatal(err)
	}
	got := s.Snapshot()
	for i := range first {
		if got[i] != first[i] {
			t.Fatalf("Snapshot() = %v, want %v exactly", got, first)
		}
	}

	first[0] = 99
	if s.Snapshot()[0] != 0.7 {
		t.Error("smoother aliased its input")
	}
	got[1] = 99
	if s.Snapshot()[1] != 0.2 {
		t.Error("Snapshot() aliased internal state")
	}
}

func TestSmootherDimensionMismatch(t *testing.T) {
	s, _ := NewSmoother(0.5)
	_ = s.Update([]float64{0.5, 0.5})

	err := s.Update([]float64{0.2, 0.3, 0.5})
	if !IsFatal(err) || !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("Update() error = %v, want fatal ErrDimensionMismatch", err)
	}
	if got := s.Snapshot(); len(got) != 2 || got[0] != 0.5 {
		t.Errorf("state changed after rejected update: %v", got)
	}
}

func TestSmootherReset(t *testing.T) {
	s, _ := NewSmoother(0.9)
	_ = s.Update([]float64{1, 0})
	_ = s.Update([]float64{0, 1})
	s.Reset()
	if s.Warm() {
		t.Fatal("Warm() after Reset")
	}

	// After a reset any dimension is accepted and adopted verbatim.
	_ = s.Update([]float64{0.1, 0.2, 0.7})
	if got := s.Snapshot(); len(got) != 3 || got[2] != 0.7 {
		t.Errorf("Snapshot() = %v after reset", got)
	}
}

func TestNewSmootherInvalid(t *testing.T) {
	for _, alpha := range []float64{0, 1, -0.1, 1.5, math.NaN()} {
		if _, err := NewSmoother(alpha); err == nil {
			t.Errorf("NewSmoother(%v) succeeded", alpha)
		}
	}
}
