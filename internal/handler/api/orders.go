package api

import (
	"errors"

	"CostSim/internal/domain/models"
	"CostSim/internal/usecase"
	xhttp "CostSim/pkg/http"
	xlogger "CostSim/pkg/logger"

	"github.com/labstack/echo/v4"
)

// OrdersHandler exposes the simulator over REST.
type OrdersHandler struct {
	logger    *xlogger.Logger
	sim       *usecase.OrderSimulator
	collector *usecase.BookCollector
	snapshots *usecase.SnapshotStore
	estimator volReader
}

type volReader interface {
	Value() float64
	Len() int
}

// NewOrdersHandler creates the handler.
func NewOrdersHandler(logger *xlogger.Logger, sim *usecase.OrderSimulator, collector *usecase.BookCollector, snapshots *usecase.SnapshotStore, estimator volReader) *OrdersHandler {
	return &OrdersHandler{
		logger:    logger,
		sim:       sim,
		collector: collector,
		snapshots: snapshots,
		estimator: estimator,
	}
}

// RegisterRoutes wires the API routes onto the echo instance.
func (h *OrdersHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/orders", h.Place)
	g.DELETE("/orders/:id", h.Cancel)
	g.GET("/orders/:id", h.Get)
	g.GET("/market", h.Market)
	e.GET("/healthz", h.Health)
}

type placeOrderRequest struct {
	Symbol   string  `json:"symbol" validate:"required"`
	Side     string  `json:"side" validate:"required,oneof=Buy Sell"`
	Quantity float64 `json:"quantity" validate:"required,gt=0"`
	FeeTier  string  `json:"fee_tier" default:"tier1" validate:"oneof=tier1 tier2 tier3"`
}

type orderResponse struct {
	OrderID        string                  `json:"order_id"`
	Status         string                  `json:"status"`
	Reason         string                  `json:"reason,omitempty"`
	ReferencePrice float64                 `json:"reference_price,omitempty"`
	Result         *models.ExecutionResult `json:"result,omitempty"`
}

func orderView(ord *usecase.Order) orderResponse {
	return orderResponse{
		OrderID:        ord.ID,
		Status:         string(ord.Status),
		Reason:         ord.Reason,
		ReferencePrice: ord.ReferencePrice,
		Result:         ord.Result,
	}
}

// Place accepts a trade request and schedules its simulated execution.
func (h *OrdersHandler) Place(c echo.Context) error {
	req := &placeOrderRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	ord := h.sim.Place(c.Request().Context(), models.TradeRequest{
		Symbol:   req.Symbol,
		Side:     models.Side(req.Side),
		Quantity: req.Quantity,
		FeeTier:  models.FeeTier(req.FeeTier),
	})
	if ord.Status == models.OrderStatusRejected {
		return xhttp.BadRequestResponse(c, orderView(ord))
	}
	return xhttp.CreatedResponse(c, orderView(ord))
}

// Cancel withdraws a pending order.
func (h *OrdersHandler) Cancel(c echo.Context) error {
	id := c.Param("id")
	err := h.sim.Cancel(id)
	switch {
	case err == nil:
	case errors.Is(err, usecase.ErrOrderNotFound):
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("order "+id+" not found"))
	case errors.Is(err, usecase.ErrNotCancellable):
		return xhttp.AppErrorResponse(c, xhttp.ConflictError(err.Error()))
	default:
		h.logger.Error("cancel order failed", xlogger.String("order_id", id), xlogger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}

	ord, err := h.sim.Get(id)
	if err != nil {
		return xhttp.InternalServerErrorResponse(c)
	}
	return xhttp.SuccessResponse(c, orderView(ord))
}

// Get returns the current order state and, once executed, its cost breakdown.
func (h *OrdersHandler) Get(c echo.Context) error {
	id := c.Param("id")
	ord, err := h.sim.Get(id)
	if err != nil {
		if errors.Is(err, usecase.ErrOrderNotFound) {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundError("order "+id+" not found"))
		}
		h.logger.Error("get order failed", xlogger.String("order_id", id), xlogger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
	return xhttp.SuccessResponse(c, orderView(ord))
}

type marketResponse struct {
	Connected  bool                 `json:"connected"`
	Snapshot   *models.BookSnapshot `json:"snapshot,omitempty"`
	Mid        float64              `json:"mid,omitempty"`
	Spread     float64              `json:"spread,omitempty"`
	Volatility float64              `json:"volatility"`
	Samples    int                  `json:"samples"`
}

// Market returns the latest book snapshot and the current volatility estimate.
func (h *OrdersHandler) Market(c echo.Context) error {
	resp := marketResponse{
		Connected:  h.collector.IsConnected(),
		Volatility: h.estimator.Value(),
		Samples:    h.estimator.Len(),
	}
	if snap := h.snapshots.Latest(); snap != nil {
		resp.Snapshot = snap
		resp.Mid = snap.Mid()
		resp.Spread = snap.Spread()
	}
	return xhttp.SuccessResponse(c, resp)
}

type healthResponse struct {
	Status    string `json:"status"`
	FeedAlive bool   `json:"feed_alive"`
}

// Health reports liveness; the feed state is informational, not a failure.
func (h *OrdersHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, healthResponse{
		Status:    "ok",
		FeedAlive: h.collector.IsConnected(),
	})
}
