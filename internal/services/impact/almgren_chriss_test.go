package impact

import (
	"math"
	"testing"
)

func defaultParams() Parameters {
	return Parameters{X: 100, N: 10, Sigma: 0.02, Eta: 0.01, Gamma: 0.01, Lambda: 1e-6, T: 1}
}

func TestOptimalTrajectoryBoundaries(t *testing.T) {
	m := NewModel(defaultParams())
	tr := m.OptimalTrajectory()
	if tr.Fallback {
		t.Fatalf("unexpected fallback: %s", tr.Reason)
	}
	if len(tr.Points) != 11 {
		t.Fatalf("expected N+1 points, got %d", len(tr.Points))
	}
	if tr.Points[0] != 100 {
		t.Fatalf("trajectory must start at X, got %v", tr.Points[0])
	}
	if math.Abs(tr.Points[10]) > 1e-9 {
		t.Fatalf("trajectory must end near 0, got %v", tr.Points[10])
	}
	for k := 1; k < len(tr.Points); k++ {
		if tr.Points[k] > tr.Points[k-1] {
			t.Fatalf("remaining quantity must be non-increasing at step %d: %v > %v", k, tr.Points[k], tr.Points[k-1])
		}
	}
}

func TestTrajectoryStartsExactlyAtX(t *testing.T) {
	for _, x := range []float64{0.3, 1, 2, 100, 12345.678} {
		p := defaultParams()
		p.X = x
		tr := NewModel(p).OptimalTrajectory()
		if tr.Fallback {
			t.Fatalf("X=%v: unexpected fallback: %s", x, tr.Reason)
		}
		if tr.Points[0] != x {
			t.Fatalf("X=%v: trajectory must start exactly at X, got %v", x, tr.Points[0])
		}
	}
}

func TestExpectedCostFiniteNonNegative(t *testing.T) {
	cases := []Parameters{
		defaultParams(),
		{X: 0.5, N: 1, Sigma: 0, Eta: 0, Gamma: 0, Lambda: 0, T: 0},
		{X: 1e6, N: 100, Sigma: 0.5, Eta: 0.1, Gamma: 0.2, Lambda: 1e-3, T: 10},
		{X: -5, N: -1, Sigma: -1, Eta: -1, Gamma: -1, Lambda: -1, T: -1},
	}
	for _, p := range cases {
		c := NewModel(p).ExpectedCost()
		if math.IsNaN(c.Value) || math.IsInf(c.Value, 0) {
			t.Fatalf("expected finite cost for %+v, got %v", p, c.Value)
		}
		if c.Value < 0 {
			t.Fatalf("expected non-negative cost for %+v, got %v", p, c.Value)
		}
	}
}

func TestDegenerateKappaFallsBackFlat(t *testing.T) {
	// Infinite eta drives kappa to exactly zero, so sinh(kappa*T) == 0.
	p := defaultParams()
	p.Lambda = 0
	p.Eta = math.Inf(1)
	m := NewModel(p)

	c := m.ExpectedCost()
	if !c.Fallback {
		t.Fatal("expected cost fallback for degenerate sinh")
	}
	if c.Value != 0 {
		t.Fatalf("degenerate expected cost must be 0, got %v", c.Value)
	}

	tr := m.OptimalTrajectory()
	if !tr.Fallback {
		t.Fatal("expected trajectory fallback for degenerate sinh")
	}
	flat := 100.0 / 11.0
	for k, x := range tr.Points {
		if math.Abs(x-flat) > 1e-12 {
			t.Fatalf("point %d: expected flat %v, got %v", k, flat, x)
		}
	}
}

func TestOverflowingKappaFallsBack(t *testing.T) {
	// Huge sigma pushes kappa*T past the range of sinh, producing +Inf.
	p := defaultParams()
	p.Sigma = 1e9
	p.Lambda = 1
	m := NewModel(p)

	c := m.ExpectedCost()
	if !c.Fallback || c.Value != 0 {
		t.Fatalf("expected zero-cost fallback, got %+v", c)
	}
	tr := m.OptimalTrajectory()
	if !tr.Fallback {
		t.Fatal("expected flat-schedule fallback")
	}
}

func TestSanitizeFloors(t *testing.T) {
	p := Sanitize(Parameters{X: 0, N: 0, Sigma: 0, Eta: 0, Gamma: -1, Lambda: 0, T: 0})
	if p.X != 0.01 || p.N != 1 || p.Sigma != 1e-6 || p.Eta != 1e-6 || p.Gamma != 0 || p.Lambda != 1e-10 || p.T != 1e-3 {
		t.Fatalf("unexpected sanitized parameters: %+v", p)
	}
}
