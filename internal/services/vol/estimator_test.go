package vol

import (
	"math"
	"testing"
)

func TestRetainsFallbackUntilEnoughSamples(t *testing.T) {
	e := NewEstimator(100, 10, 0.02)
	for i := 0; i < 10; i++ {
		e.Observe(100 + float64(i))
	}
	if got := e.Value(); got != 0.02 {
		t.Fatalf("expected fallback 0.02 at window length 10, got %v", got)
	}
}

func TestComputesStdDevOfLogReturns(t *testing.T) {
	prices := []float64{100, 101, 99.5, 100.2, 100.9, 101.5, 100.1, 99.8, 100.4, 101.2, 100.7}
	e := NewEstimator(100, 10, 0.02)
	for _, p := range prices {
		e.Observe(p)
	}

	// Direct computation over the same sequence.
	n := len(prices) - 1
	returns := make([]float64, n)
	var mean float64
	for i := 0; i < n; i++ {
		returns[i] = math.Log(prices[i+1] / prices[i])
		mean += returns[i]
	}
	mean /= float64(n)
	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	want := math.Sqrt(variance / float64(n))

	if got := e.Value(); math.Abs(got-want) > 1e-12 {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestWindowEvictsOldest(t *testing.T) {
	e := NewEstimator(20, 10, 0.02)
	for i := 0; i < 50; i++ {
		e.Observe(100 + float64(i%7))
	}
	if got := e.Len(); got != 20 {
		t.Fatalf("expected window capped at 20, got %d", got)
	}
}

func TestIgnoresNonPositivePrices(t *testing.T) {
	e := NewEstimator(100, 10, 0.02)
	e.Observe(0)
	e.Observe(-5)
	e.Observe(math.NaN())
	if got := e.Len(); got != 0 {
		t.Fatalf("expected invalid samples to be dropped, window length %d", got)
	}
	if got := e.Value(); got != 0.02 {
		t.Fatalf("expected fallback retained, got %v", got)
	}
}
