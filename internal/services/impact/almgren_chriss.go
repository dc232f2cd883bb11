package impact

import (
	"fmt"
	"math"
)

// Parameters holds the Almgren-Chriss inputs. Construct via Sanitize so the
// closed-form math never sees degenerate values.
type Parameters struct {
	X      float64 // total quantity to liquidate
	N      int     // number of time steps
	Sigma  float64 // volatility
	Eta    float64 // temporary impact coefficient
	Gamma  float64 // permanent impact coefficient
	Lambda float64 // risk aversion
	T      float64 // total horizon
}

// Sanitize floors each parameter to its minimum admissible value.
func Sanitize(p Parameters) Parameters {
	p.X = math.Max(0.01, p.X)
	if p.N < 1 {
		p.N = 1
	}
	p.Sigma = math.Max(1e-6, p.Sigma)
	p.Eta = math.Max(1e-6, p.Eta)
	p.Gamma = math.Max(0.0, p.Gamma)
	p.Lambda = math.Max(1e-10, p.Lambda)
	p.T = math.Max(1e-3, p.T)
	return p
}

// Model is the closed-form Almgren-Chriss optimal liquidation model.
// Stateless after construction and safe for concurrent use.
type Model struct {
	p  Parameters
	dt float64
}

// NewModel sanitizes parameters and builds the model.
func NewModel(p Parameters) *Model {
	p = Sanitize(p)
	return &Model{p: p, dt: p.T / float64(p.N)}
}

// Kappa returns the urgency parameter sqrt(lambda*sigma^2/eta).
func (m *Model) Kappa() float64 {
	return math.Sqrt(m.p.Lambda * m.p.Sigma * m.p.Sigma / m.p.Eta)
}

// Cost is an explicit result variant: either the computed value or a
// documented fallback. Callers log the reason instead of handling errors.
type Cost struct {
	Value    float64
	Fallback bool
	Reason   string
}

// Trajectory carries the remaining-quantity schedule, or a flat fallback.
type Trajectory struct {
	Points   []float64
	Fallback bool
	Reason   string
}

// OptimalTrajectory returns the N+1 remaining-quantity values
// x_k = X * sinh(kappa*(T-k*dt)) / sinh(kappa*T) for k = 0..N.
// A degenerate sinh(kappa*T) yields a uniform schedule of X/(N+1).
func (m *Model) OptimalTrajectory() Trajectory {
	kappa := m.Kappa()
	sinhKT := math.Sinh(kappa * m.p.T)

	if degenerate(sinhKT) {
		points := make([]float64, m.p.N+1)
		flat := m.p.X / float64(m.p.N+1)
		for k := range points {
			points[k] = flat
		}
		return Trajectory{
			Points:   points,
			Fallback: true,
			Reason:   fmt.Sprintf("unstable sinh(kappa*T)=%v, flat schedule", sinhKT),
		}
	}

	points := make([]float64, m.p.N+1)
	for k := 0; k <= m.p.N; k++ {
		remaining := m.p.T - float64(k)*m.dt
		// the sinh ratio is 1 exactly at k=0, so the schedule starts at X
		points[k] = m.p.X * (math.Sinh(kappa*remaining) / sinhKT)
	}
	return Trajectory{Points: points}
}

// ExpectedCost returns the expected cost of the optimal strategy:
// gamma*X^2 + eta*X^2*kappa*cosh(kappa*T)/sinh(kappa*T).
// Degenerate sinh or a non-finite result falls back to 0.
func (m *Model) ExpectedCost() Cost {
	kappa := m.Kappa()
	sinhKT := math.Sinh(kappa * m.p.T)

	if degenerate(sinhKT) {
		return Cost{
			Fallback: true,
			Reason:   fmt.Sprintf("unstable sinh(kappa*T)=%v, zero impact cost", sinhKT),
		}
	}

	x2 := m.p.X * m.p.X
	cost := m.p.Gamma*x2 + m.p.Eta*x2*kappa*math.Cosh(kappa*m.p.T)/sinhKT

	if math.IsNaN(cost) || math.IsInf(cost, 0) {
		return Cost{
			Fallback: true,
			Reason:   fmt.Sprintf("non-finite expected cost %v, zero impact cost", cost),
		}
	}
	return Cost{Value: cost}
}

func degenerate(sinhKT float64) bool {
	return sinhKT == 0 || math.IsNaN(sinhKT) || math.IsInf(sinhKT, 0)
}
