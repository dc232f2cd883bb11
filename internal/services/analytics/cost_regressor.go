package analytics

import (
	"context"
	"errors"
	"math"

	"CostSim/internal/domain/models"
	dservice "CostSim/internal/domain/service"
	"CostSim/pkg/config"
)

// ErrPredictorUnavailable signals that no model backs the predictor.
// Callers treat it as "no advisory estimate", not as a failure.
var ErrPredictorUnavailable = errors.New("analytics: predictor unavailable")

// HTTPCostRegressor asks the external model service for a transaction-cost
// estimate from trade features.
type HTTPCostRegressor struct {
	*HTTPServiceBase
}

type costRequest struct {
	Quantity   float64 `json:"quantity"`
	Price      float64 `json:"price"`
	Side       string  `json:"side"`
	Volatility float64 `json:"volatility"`
	TimeOfDay  float64 `json:"time_of_day"`
}

type costResponse struct {
	PredictedCost float64 `json:"predicted_cost"`
}

// NewHTTPCostRegressor builds the HTTP-backed regressor.
func NewHTTPCostRegressor(cfg *config.Config) dservice.CostRegressionPredictor {
	return &HTTPCostRegressor{HTTPServiceBase: NewHTTPServiceBase(cfg)}
}

// Predict returns the model's cost estimate for the given features.
func (r *HTTPCostRegressor) Predict(ctx context.Context, quantity, price float64, side models.Side, volatility, timeOfDay float64) (float64, error) {
	req := costRequest{
		Quantity:   quantity,
		Price:      price,
		Side:       string(side),
		Volatility: volatility,
		TimeOfDay:  timeOfDay,
	}
	var resp costResponse
	if err := r.PostJSON(ctx, "/cost/predict", req, &resp); err != nil {
		return 0, err
	}
	if math.IsNaN(resp.PredictedCost) || math.IsInf(resp.PredictedCost, 0) {
		return 0, errors.New("analytics: non-finite predicted cost")
	}
	return resp.PredictedCost, nil
}

// DisabledCostRegressor is used when no model service is configured.
type DisabledCostRegressor struct{}

// NewDisabledCostRegressor returns a regressor that always reports unavailable.
func NewDisabledCostRegressor() dservice.CostRegressionPredictor {
	return DisabledCostRegressor{}
}

func (DisabledCostRegressor) Predict(context.Context, float64, float64, models.Side, float64, float64) (float64, error) {
	return 0, ErrPredictorUnavailable
}
