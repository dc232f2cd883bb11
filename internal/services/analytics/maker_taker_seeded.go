package analytics

import (
	"context"
	"math"

	"CostSim/internal/domain/models"
	dservice "CostSim/internal/domain/service"
)

// SeededMakerTaker is a local logistic-regression classifier trained at
// construction on a small fixed sample of labeled spread ratios. It serves
// as the fallback when no external model service is configured.
type SeededMakerTaker struct {
	weight float64
	bias   float64
}

// Training sample: spread-to-midpoint ratios with maker(1)/taker(0) labels.
var (
	seedRatios = []float64{0.8, 1.2, 0.5, 1.5, 0.6}
	seedLabels = []float64{1, 1, 0, 1, 0}
)

// NewSeededMakerTaker fits the classifier on the seed sample.
// Fitting is deterministic, so every process trains the same boundary.
func NewSeededMakerTaker() dservice.MakerTakerClassifier {
	c := &SeededMakerTaker{}
	c.fit(seedRatios, seedLabels, 5000, 0.5)
	return c
}

func (c *SeededMakerTaker) fit(xs, ys []float64, epochs int, lr float64) {
	n := float64(len(xs))
	for i := 0; i < epochs; i++ {
		var gw, gb float64
		for j, x := range xs {
			p := sigmoid(c.weight*x + c.bias)
			diff := p - ys[j]
			gw += diff * x
			gb += diff
		}
		c.weight -= lr * gw / n
		c.bias -= lr * gb / n
	}
}

// Predict labels the ratio. The local model never fails.
func (c *SeededMakerTaker) Predict(_ context.Context, ratio float64) (models.MakerTakerLabel, error) {
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return models.LabelUnknown, nil
	}
	if sigmoid(c.weight*ratio+c.bias) >= 0.5 {
		return models.LabelMaker, nil
	}
	return models.LabelTaker, nil
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
