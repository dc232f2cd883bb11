package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"CostSim/internal/domain/models"
	dservice "CostSim/internal/domain/service"
	"CostSim/pkg/cache"
	"CostSim/pkg/config"
	"CostSim/pkg/logger"
)

// HTTPMakerTaker calls the external model service to classify a fill as
// maker or taker from its spread-to-midpoint ratio. Responses are cached
// so repeated ratios during a burst of orders do not refetch.
type HTTPMakerTaker struct {
	*HTTPServiceBase
	cache    cache.Service
	cacheTTL time.Duration
	lgr      *logger.Logger
}

type makerTakerRequest struct {
	SpreadRatio float64 `json:"spread_ratio"`
}

type makerTakerResponse struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// NewHTTPMakerTaker builds the HTTP-backed classifier. cacheSvc may be nil.
func NewHTTPMakerTaker(cfg *config.Config, cacheSvc cache.Service, lgr *logger.Logger) dservice.MakerTakerClassifier {
	return &HTTPMakerTaker{
		HTTPServiceBase: NewHTTPServiceBase(cfg),
		cache:           cacheSvc,
		cacheTTL:        cfg.Predictors.CacheTTL,
		lgr:             lgr,
	}
}

// Predict classifies the given spread ratio.
func (c *HTTPMakerTaker) Predict(ctx context.Context, spreadRatio float64) (models.MakerTakerLabel, error) {
	key := fmt.Sprintf("mt:%.6f", spreadRatio)
	if c.cache != nil {
		var cached string
		if err := c.cache.Get(ctx, key, &cached); err == nil {
			return parseLabel(cached)
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			c.lgr.Warn("maker/taker cache read failed", logger.Error(err))
		}
	}

	var resp makerTakerResponse
	if err := c.PostJSON(ctx, "/maker-taker/predict", makerTakerRequest{SpreadRatio: spreadRatio}, &resp); err != nil {
		return models.LabelUnknown, err
	}

	label, err := parseLabel(resp.Label)
	if err != nil {
		return models.LabelUnknown, err
	}
	if c.cache != nil {
		if err := c.cache.Set(ctx, key, resp.Label, c.cacheTTL); err != nil {
			c.lgr.Warn("maker/taker cache write failed", logger.Error(err))
		}
	}
	return label, nil
}

func parseLabel(s string) (models.MakerTakerLabel, error) {
	switch s {
	case "maker":
		return models.LabelMaker, nil
	case "taker":
		return models.LabelTaker, nil
	default:
		return models.LabelUnknown, fmt.Errorf("unknown maker/taker label %q", s)
	}
}
