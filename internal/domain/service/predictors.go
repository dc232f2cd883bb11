package service

import (
	"context"

	"CostSim/internal/domain/models"
)

// MakerTakerClassifier labels a fill as maker or taker from its spread ratio.
// Implementations must be safe for concurrent use; callers bound every call
// with a timeout and treat errors as "signal unavailable", never as fatal.
type MakerTakerClassifier interface {
	Predict(ctx context.Context, ratio float64) (models.MakerTakerLabel, error)
}

// CostRegressionPredictor estimates transaction cost from trade features.
// A missing backing artifact disables this feature only.
type CostRegressionPredictor interface {
	Predict(ctx context.Context, quantity, price float64, side models.Side, volatility, timeOfDay float64) (float64, error)
}
