package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"CostSim/internal/domain/models"
	drepo "CostSim/internal/domain/repository"
	dservice "CostSim/internal/domain/service"
	"CostSim/internal/services/impact"
	"CostSim/internal/services/vol"
	"CostSim/pkg/config"
	"CostSim/pkg/logger"
	"CostSim/pkg/queue"
)

const jobTypeExecute = "order.execute"

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrNotCancellable = errors.New("order is not cancellable")
)

// Order is the tracked state of one simulated trade request.
type Order struct {
	ID             string
	Request        models.TradeRequest
	Status         models.OrderStatus
	ReferencePrice float64
	Reason         string
	CreatedAt      time.Time
	Result         *models.ExecutionResult
}

// OrderSimulator runs the two-phase order lifecycle: Place captures a
// reference price and schedules execution after the fill delay; execute prices
// the fill from the latest book and decomposes its cost. Each accepted request
// executes exactly once unless cancelled first.
type OrderSimulator struct {
	cfg        *config.Config
	snapshots  *SnapshotStore
	estimator  *vol.Estimator
	queue      *queue.MemoryQueue
	classifier dservice.MakerTakerClassifier
	regressor  dservice.CostRegressionPredictor
	audit      drepo.AuditSink
	metrics    drepo.Metrics
	logger     *logger.Logger

	mu     sync.RWMutex
	orders map[string]*Order
	seq    atomic.Uint64
}

// NewOrderSimulator wires the simulator and registers its execution job on the
// queue. The queue must be started by the caller.
func NewOrderSimulator(
	cfg *config.Config,
	snapshots *SnapshotStore,
	estimator *vol.Estimator,
	q *queue.MemoryQueue,
	classifier dservice.MakerTakerClassifier,
	regressor dservice.CostRegressionPredictor,
	audit drepo.AuditSink,
	metrics drepo.Metrics,
	lgr *logger.Logger,
) *OrderSimulator {
	s := &OrderSimulator{
		cfg:        cfg,
		snapshots:  snapshots,
		estimator:  estimator,
		queue:      q,
		classifier: classifier,
		regressor:  regressor,
		audit:      audit,
		metrics:    metrics,
		logger:     lgr,
		orders:     make(map[string]*Order),
	}
	q.RegisterJob(&executeJob{sim: s})
	return s
}

// Place accepts or rejects a trade request. A rejected order is recorded with
// a reason and never reaches the audit sink. An accepted order transitions to
// pending and executes after the configured fill delay.
func (s *OrderSimulator) Place(ctx context.Context, req models.TradeRequest) *Order {
	ord := &Order{
		ID:        fmt.Sprintf("ord-%06d", s.seq.Add(1)),
		Request:   req,
		Status:    models.OrderStatusCreated,
		CreatedAt: time.Now(),
	}

	if reason := s.validate(req); reason != "" {
		s.reject(ord, reason)
		return s.store(ord)
	}

	snap := s.snapshots.Latest()
	if snap == nil {
		s.reject(ord, "no reference price available")
		return s.store(ord)
	}
	ord.ReferencePrice = snap.Mid()

	ord.Status = models.OrderStatusPending
	if err := s.queue.PublishAfter(ord.ID, jobTypeExecute, ord.ID, s.cfg.Simulator.FillDelay); err != nil {
		s.reject(ord, fmt.Sprintf("schedule execution: %v", err))
		return s.store(ord)
	}

	s.logger.Info("order accepted",
		logger.String("order_id", ord.ID),
		logger.String("side", string(req.Side)),
		logger.Float64("quantity", req.Quantity),
		logger.Float64("reference_price", ord.ReferencePrice))
	return s.store(ord)
}

func (s *OrderSimulator) validate(req models.TradeRequest) string {
	switch {
	case req.Symbol == "":
		return "symbol is required"
	case !req.Side.Valid():
		return fmt.Sprintf("unknown side %q", req.Side)
	case math.IsNaN(req.Quantity) || math.IsInf(req.Quantity, 0):
		return "quantity must be finite"
	case req.Quantity <= 0:
		return "quantity must be positive"
	}
	return ""
}

func (s *OrderSimulator) reject(ord *Order, reason string) {
	ord.Status = models.OrderStatusRejected
	ord.Reason = reason
	s.metrics.RecordOrder(string(models.OrderStatusRejected))
	s.logger.Warn("order rejected",
		logger.String("order_id", ord.ID),
		logger.String("reason", reason))
}

func (s *OrderSimulator) store(ord *Order) *Order {
	s.mu.Lock()
	s.orders[ord.ID] = ord
	s.mu.Unlock()
	cp := *ord
	return &cp
}

// Cancel withdraws a pending order before its fill delay elapses.
func (s *OrderSimulator) Cancel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ord, ok := s.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	if ord.Status != models.OrderStatusPending {
		return fmt.Errorf("%w: status %s", ErrNotCancellable, ord.Status)
	}
	if !s.queue.Cancel(id) {
		// timer already fired; execution is in flight
		return fmt.Errorf("%w: execution already started", ErrNotCancellable)
	}
	ord.Status = models.OrderStatusCancelled
	s.metrics.RecordOrder(string(models.OrderStatusCancelled))
	s.logger.Info("order cancelled", logger.String("order_id", id))
	return nil
}

// Get returns a copy of the order state.
func (s *OrderSimulator) Get(id string) (*Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ord, ok := s.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	cp := *ord
	return &cp, nil
}

// executeJob adapts the simulator to the queue's Job interface.
type executeJob struct {
	sim *OrderSimulator
}

func (j *executeJob) Type() string { return jobTypeExecute }

func (j *executeJob) Handle(ctx context.Context, payload interface{}) error {
	id, ok := payload.(string)
	if !ok {
		return fmt.Errorf("unexpected payload %T", payload)
	}
	j.sim.execute(ctx, id)
	return nil
}

// execute prices the fill and records the cost decomposition. Failures in the
// advisory predictors degrade the result instead of failing it; only internal
// inconsistencies reject the order.
func (s *OrderSimulator) execute(ctx context.Context, id string) {
	defer func() {
		if r := recover(); r != nil {
			rejected := false
			s.mu.Lock()
			if ord, ok := s.orders[id]; ok && ord.Status == models.OrderStatusPending {
				ord.Status = models.OrderStatusRejected
				ord.Reason = fmt.Sprintf("internal execution failure: %v", r)
				rejected = true
			}
			s.mu.Unlock()
			if rejected {
				s.metrics.RecordOrder(string(models.OrderStatusRejected))
			}
			s.metrics.RecordError("execute")
			s.logger.Error("order execution panicked",
				logger.String("order_id", id),
				logger.Any("panic", r))
		}
	}()

	s.mu.Lock()
	ord, ok := s.orders[id]
	if !ok || ord.Status != models.OrderStatusPending {
		s.mu.Unlock()
		return
	}
	req := ord.Request
	ref := ord.ReferencePrice
	placedAt := ord.CreatedAt
	s.mu.Unlock()

	execPrice := ref
	exchange := ""
	if snap := s.snapshots.Latest(); snap != nil {
		exchange = snap.Exchange
		if req.Side == models.SideBuy {
			execPrice = snap.BestAsk
		} else {
			execPrice = snap.BestBid
		}
	}

	slippage := execPrice - ref
	if req.Side == models.SideSell {
		slippage = ref - execPrice
	}

	fees := execPrice * req.Quantity * req.FeeTier.Rate()
	if notional := execPrice * req.Quantity; fees > 0.1*notional {
		s.logger.Warn("anomalous fee exceeds 10% of notional",
			logger.String("order_id", id),
			logger.Float64("fees", fees),
			logger.Float64("notional", notional))
	}

	sigma := s.estimator.Value()
	cost := impact.NewModel(impact.Parameters{
		X:      req.Quantity,
		N:      s.cfg.Impact.Steps,
		Sigma:  sigma,
		Eta:    s.cfg.Impact.Eta,
		Gamma:  s.cfg.Impact.Gamma,
		Lambda: s.cfg.Impact.Lambda,
		T:      s.cfg.Impact.Horizon,
	}).ExpectedCost()
	if cost.Fallback {
		s.logger.Warn("impact model fallback",
			logger.String("order_id", id),
			logger.String("reason", cost.Reason))
	}

	netCost := slippage + fees + cost.Value

	midpoint := (execPrice + ref) / 2
	spreadRatio := 0.0
	if midpoint > 0 {
		spreadRatio = slippage / midpoint
	}

	label := s.classify(ctx, id, spreadRatio)
	predicted := s.predictCost(ctx, id, req, execPrice, sigma)

	now := time.Now()
	latencyMs := float64(now.Sub(placedAt)) / float64(time.Millisecond)
	s.metrics.RecordLatency("execute", now.Sub(placedAt).Seconds())

	result := &models.ExecutionResult{
		OrderID:        id,
		Symbol:         req.Symbol,
		Side:           req.Side,
		Quantity:       req.Quantity,
		ReferencePrice: ref,
		ExecutionPrice: execPrice,
		Slippage:       slippage,
		Fees:           fees,
		ImpactCost:     cost.Value,
		NetCost:        netCost,
		MakerTaker:     label,
		LatencyMs:      latencyMs,
		PredictedCost:  predicted,
		ExecutedAt:     now,
	}

	s.mu.Lock()
	ord.Status = models.OrderStatusExecuted
	ord.Result = result
	s.mu.Unlock()
	s.metrics.RecordOrder(string(models.OrderStatusExecuted))

	s.logger.Info("order executed",
		logger.String("order_id", id),
		logger.Float64("execution_price", execPrice),
		logger.Float64("slippage", slippage),
		logger.Float64("fees", fees),
		logger.Float64("impact_cost", cost.Value),
		logger.Float64("net_cost", netCost),
		logger.String("maker_taker", string(label)))

	rec := &models.AuditRecord{
		Timestamp:   now,
		Exchange:    exchange,
		Symbol:      req.Symbol,
		Action:      string(req.Side),
		MakerTaker:  label,
		Price:       execPrice,
		Quantity:    req.Quantity,
		ImpactRatio: spreadRatio,
	}
	if err := s.audit.Append(ctx, rec); err != nil {
		s.metrics.RecordError("audit")
		s.logger.Error("audit append failed",
			logger.String("order_id", id),
			logger.Error(err))
	}
}

func (s *OrderSimulator) classify(ctx context.Context, id string, ratio float64) models.MakerTakerLabel {
	cctx, cancel := context.WithTimeout(ctx, s.cfg.Simulator.PredictorTimeout)
	defer cancel()
	label, err := s.classifier.Predict(cctx, ratio)
	if err != nil {
		s.metrics.RecordError("classifier")
		s.logger.Warn("maker/taker classification unavailable",
			logger.String("order_id", id),
			logger.Error(err))
		return models.LabelUnknown
	}
	return label
}

func (s *OrderSimulator) predictCost(ctx context.Context, id string, req models.TradeRequest, execPrice, sigma float64) *float64 {
	cctx, cancel := context.WithTimeout(ctx, s.cfg.Simulator.PredictorTimeout)
	defer cancel()
	timeOfDay := float64(time.Now().Hour()) / 24
	v, err := s.regressor.Predict(cctx, req.Quantity, execPrice, req.Side, sigma, timeOfDay)
	if err != nil {
		s.logger.Debug("cost regression unavailable",
			logger.String("order_id", id),
			logger.Error(err))
		return nil
	}
	return &v
}
