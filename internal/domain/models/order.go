package models

import "time"

// Side indicates whether this is a buy or sell.
type Side string

const (
	SideBuy  Side = "Buy"
	SideSell Side = "Sell"
)

// Valid reports whether the side is a known value.
func (s Side) Valid() bool { return s == SideBuy || s == SideSell }

// FeeTier selects a fixed taker fee rate.
type FeeTier string

const (
	FeeTier1 FeeTier = "tier1" // 0.10%
	FeeTier2 FeeTier = "tier2" // 0.08%
	FeeTier3 FeeTier = "tier3" // 0.05%
)

// Rate returns the fee rate for the tier. Unknown tiers fall back to tier 1,
// the most conservative rate.
func (t FeeTier) Rate() float64 {
	switch t {
	case FeeTier2:
		return 0.0008
	case FeeTier3:
		return 0.0005
	default:
		return 0.0010
	}
}

// OrderStatus tracks the simulated order lifecycle.
type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "created"
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusExecuted  OrderStatus = "executed"
	OrderStatusRejected  OrderStatus = "rejected"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// TradeRequest describes one simulated trade. Immutable once accepted.
type TradeRequest struct {
	Symbol   string
	Side     Side
	Quantity float64
	FeeTier  FeeTier
}

// MakerTakerLabel is the advisory liquidity classification of a fill.
type MakerTakerLabel string

const (
	LabelMaker   MakerTakerLabel = "Maker"
	LabelTaker   MakerTakerLabel = "Taker"
	LabelUnknown MakerTakerLabel = "Unknown"
)

// ExecutionResult is the decomposed cost report for one executed request.
// Produced once per accepted TradeRequest; immutable thereafter.
type ExecutionResult struct {
	OrderID        string
	Symbol         string
	Side           Side
	Quantity       float64
	ReferencePrice float64
	ExecutionPrice float64
	Slippage       float64
	Fees           float64
	ImpactCost     float64
	NetCost        float64
	MakerTaker     MakerTakerLabel
	LatencyMs      float64
	PredictedCost  *float64 // nil when the regression predictor is unavailable
	ExecutedAt     time.Time
}
