package vol

import (
	"math"
	"sync"
)

// Estimator maintains a bounded rolling window of mid prices and a realized
// volatility scalar over it. Single writer (the feed consumption path);
// Value is safe for concurrent readers and is never NaN.
type Estimator struct {
	mu         sync.RWMutex
	window     []float64
	capacity   int
	minSamples int
	value      float64
}

// NewEstimator builds an estimator with the given window capacity, minimum
// sample count before recomputation, and initial fallback volatility.
func NewEstimator(capacity, minSamples int, fallback float64) *Estimator {
	if capacity < 2 {
		capacity = 2
	}
	if minSamples < 1 {
		minSamples = 1
	}
	return &Estimator{
		window:     make([]float64, 0, capacity),
		capacity:   capacity,
		minSamples: minSamples,
		value:      fallback,
	}
}

// Observe pushes one mid price into the window, evicting the oldest sample at
// capacity, and recomputes realized volatility when the window is long enough.
// Non-positive prices are ignored: their logarithm is undefined.
func (e *Estimator) Observe(price float64) {
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.window) == e.capacity {
		copy(e.window, e.window[1:])
		e.window = e.window[:len(e.window)-1]
	}
	e.window = append(e.window, price)

	if len(e.window) > e.minSamples {
		e.value = logReturnStdDev(e.window)
	}
}

// Value returns the current volatility estimate.
func (e *Estimator) Value() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.value
}

// Len returns the current window length.
func (e *Estimator) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.window)
}

// logReturnStdDev computes the population standard deviation of first
// differences of ln(price) over the window.
func logReturnStdDev(prices []float64) float64 {
	n := len(prices) - 1
	returns := make([]float64, n)
	var mean float64
	for i := 0; i < n; i++ {
		returns[i] = math.Log(prices[i+1]) - math.Log(prices[i])
		mean += returns[i]
	}
	mean /= float64(n)

	var variance float64
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(n)
	return math.Sqrt(variance)
}
