package usecase

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
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

type nopMetrics struct{}

func (nopMetrics) RecordSnapshot(string)         {}
func (nopMetrics) RecordReconnect()              {}
func (nopMetrics) RecordOrder(string)            {}
func (nopMetrics) RecordLastMid(string, float64) {}
func (nopMetrics) RecordError(string)            {}
func (nopMetrics) RecordLatency(string, float64) {}

// recordingMetrics counts order status transitions and error sources.
type recordingMetrics struct {
	nopMetrics
	mu     sync.Mutex
	orders map[string]int
	errs   map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{orders: make(map[string]int), errs: make(map[string]int)}
}

func (m *recordingMetrics) RecordOrder(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[status]++
}

func (m *recordingMetrics) RecordError(source string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[source]++
}

func (m *recordingMetrics) orderCount(status string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[status]
}

func (m *recordingMetrics) errCount(source string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errs[source]
}

type memAudit struct {
	mu      sync.Mutex
	records []*models.AuditRecord
}

func (a *memAudit) Append(_ context.Context, rec *models.AuditRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, rec)
	return nil
}

func (a *memAudit) Close() error { return nil }

func (a *memAudit) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.records)
}

type fixedClassifier struct {
	label models.MakerTakerLabel
	err   error
}

func (c fixedClassifier) Predict(context.Context, float64) (models.MakerTakerLabel, error) {
	return c.label, c.err
}

type fixedRegressor struct {
	value float64
	err   error
}

func (r fixedRegressor) Predict(context.Context, float64, float64, models.Side, float64, float64) (float64, error) {
	return r.value, r.err
}

type panickingClassifier struct{}

func (panickingClassifier) Predict(context.Context, float64) (models.MakerTakerLabel, error) {
	panic("classifier blew up")
}

type panickingAudit struct{}

func (panickingAudit) Append(context.Context, *models.AuditRecord) error { panic("sink blew up") }
func (panickingAudit) Close() error                                      { return nil }

func simConfig(fillDelay time.Duration) *config.Config {
	cfg := &config.Config{}
	cfg.Simulator.FillDelay = fillDelay
	cfg.Simulator.PredictorTimeout = 100 * time.Millisecond
	cfg.Impact.Steps = 10
	cfg.Impact.Eta = 0.01
	cfg.Impact.Gamma = 0.01
	cfg.Impact.Lambda = 1e-6
	cfg.Impact.Horizon = 1
	return cfg
}

type simHarness struct {
	sim   *OrderSimulator
	store *SnapshotStore
	est   *vol.Estimator
	audit *memAudit
	queue *queue.MemoryQueue
}

func newSimHarness(t *testing.T, cfg *config.Config, classifier fixedClassifier, regressor fixedRegressor) *simHarness {
	t.Helper()
	return newSimHarnessWith(t, cfg, classifier, regressor, &memAudit{}, nopMetrics{})
}

func newSimHarnessWith(
	t *testing.T,
	cfg *config.Config,
	classifier dservice.MakerTakerClassifier,
	regressor dservice.CostRegressionPredictor,
	sink drepo.AuditSink,
	metrics drepo.Metrics,
) *simHarness {
	t.Helper()
	q := queue.NewMemoryQueue(logger.Nop(), &queue.QueueConfig{Workers: 1})
	store := NewSnapshotStore()
	est := vol.NewEstimator(100, 10, 0.02)
	sim := NewOrderSimulator(cfg, store, est, q, classifier, regressor, sink, metrics, logger.Nop())
	q.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = q.Stop(ctx)
	})
	h := &simHarness{sim: sim, store: store, est: est, queue: q}
	if a, ok := sink.(*memAudit); ok {
		h.audit = a
	}
	return h
}

func (h *simHarness) publishBook(bid, ask float64) {
	h.store.Publish(&models.BookSnapshot{
		Exchange:   "okx",
		Symbol:     "BTC-USDT-SWAP",
		BestBid:    bid,
		BestBidQty: 10,
		BestAsk:    ask,
		BestAskQty: 10,
		Timestamp:  time.Now(),
	})
}

func waitExecuted(t *testing.T, sim *OrderSimulator, id string) *Order {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		ord, err := sim.Get(id)
		if err != nil {
			t.Fatalf("Get(%s): %v", id, err)
		}
		if ord.Status == models.OrderStatusExecuted {
			return ord
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("order %s never executed", id)
	return nil
}

func TestPlaceExecutesWithCostBreakdown(t *testing.T) {
	cfg := simConfig(10 * time.Millisecond)
	h := newSimHarness(t, cfg, fixedClassifier{label: models.LabelTaker}, fixedRegressor{err: errors.New("disabled")})
	h.publishBook(99, 101) // mid = 100

	ord := h.sim.Place(context.Background(), models.TradeRequest{
		Symbol:   "BTC-USDT-SWAP",
		Side:     models.SideBuy,
		Quantity: 2,
		FeeTier:  models.FeeTier1,
	})
	if ord.Status != models.OrderStatusPending {
		t.Fatalf("status = %s, want %s (%s)", ord.Status, models.OrderStatusPending, ord.Reason)
	}
	if ord.ReferencePrice != 100 {
		t.Fatalf("reference price = %v, want 100", ord.ReferencePrice)
	}

	done := waitExecuted(t, h.sim, ord.ID)
	res := done.Result
	if res == nil {
		t.Fatal("executed order has no result")
	}

	if res.ExecutionPrice != 101 {
		t.Errorf("execution price = %v, want 101 (best ask)", res.ExecutionPrice)
	}
	if res.Slippage != 1.0 {
		t.Errorf("slippage = %v, want 1.0", res.Slippage)
	}
	wantFees := 101 * 2 * 0.0010
	if math.Abs(res.Fees-wantFees) > 1e-12 {
		t.Errorf("fees = %v, want %v", res.Fees, wantFees)
	}

	wantImpact := impact.NewModel(impact.Parameters{
		X: 2, N: 10, Sigma: h.est.Value(), Eta: 0.01, Gamma: 0.01, Lambda: 1e-6, T: 1,
	}).ExpectedCost().Value
	if math.Abs(res.ImpactCost-wantImpact) > 1e-12 {
		t.Errorf("impact cost = %v, want %v", res.ImpactCost, wantImpact)
	}
	wantNet := res.Slippage + res.Fees + res.ImpactCost
	if math.Abs(res.NetCost-wantNet) > 1e-12 {
		t.Errorf("net cost = %v, want %v", res.NetCost, wantNet)
	}

	if res.MakerTaker != models.LabelTaker {
		t.Errorf("maker/taker = %s, want %s", res.MakerTaker, models.LabelTaker)
	}
	if res.PredictedCost != nil {
		t.Errorf("predicted cost = %v, want nil with failing regressor", *res.PredictedCost)
	}
	if res.LatencyMs <= 0 {
		t.Errorf("latency = %v, want > 0", res.LatencyMs)
	}
	if h.audit.count() != 1 {
		t.Errorf("audit records = %d, want 1", h.audit.count())
	}
}

func TestSellSlippageSignAndBidFill(t *testing.T) {
	cfg := simConfig(10 * time.Millisecond)
	h := newSimHarness(t, cfg, fixedClassifier{label: models.LabelMaker}, fixedRegressor{value: 0.42})
	h.publishBook(99, 101)

	ord := h.sim.Place(context.Background(), models.TradeRequest{
		Symbol:   "BTC-USDT-SWAP",
		Side:     models.SideSell,
		Quantity: 1,
		FeeTier:  models.FeeTier3,
	})
	res := waitExecuted(t, h.sim, ord.ID).Result

	if res.ExecutionPrice != 99 {
		t.Errorf("execution price = %v, want 99 (best bid)", res.ExecutionPrice)
	}
	if res.Slippage != 1.0 {
		t.Errorf("sell slippage = %v, want 1.0 (ref - exec)", res.Slippage)
	}
	wantFees := 99 * 1 * 0.0005
	if math.Abs(res.Fees-wantFees) > 1e-12 {
		t.Errorf("fees = %v, want %v", res.Fees, wantFees)
	}
	if res.PredictedCost == nil || *res.PredictedCost != 0.42 {
		t.Errorf("predicted cost = %v, want 0.42", res.PredictedCost)
	}
}

func TestPlaceRejectsInvalidRequests(t *testing.T) {
	cfg := simConfig(10 * time.Millisecond)
	h := newSimHarness(t, cfg, fixedClassifier{label: models.LabelTaker}, fixedRegressor{err: errors.New("disabled")})
	h.publishBook(99, 101)

	cases := []struct {
		name string
		req  models.TradeRequest
	}{
		{"zero quantity", models.TradeRequest{Symbol: "BTC-USDT-SWAP", Side: models.SideBuy, Quantity: 0, FeeTier: models.FeeTier1}},
		{"negative quantity", models.TradeRequest{Symbol: "BTC-USDT-SWAP", Side: models.SideBuy, Quantity: -5, FeeTier: models.FeeTier1}},
		{"nan quantity", models.TradeRequest{Symbol: "BTC-USDT-SWAP", Side: models.SideBuy, Quantity: math.NaN(), FeeTier: models.FeeTier1}},
		{"empty symbol", models.TradeRequest{Side: models.SideBuy, Quantity: 1, FeeTier: models.FeeTier1}},
		{"bad side", models.TradeRequest{Symbol: "BTC-USDT-SWAP", Side: "hold", Quantity: 1, FeeTier: models.FeeTier1}},
	}
	for _, tc := range cases {
		ord := h.sim.Place(context.Background(), tc.req)
		if ord.Status != models.OrderStatusRejected {
			t.Errorf("%s: status = %s, want rejected", tc.name, ord.Status)
		}
		if ord.Reason == "" {
			t.Errorf("%s: rejected order has no reason", tc.name)
		}
	}
	if h.audit.count() != 0 {
		t.Errorf("audit records = %d, want 0 for rejected orders", h.audit.count())
	}
}

func TestPlaceRejectsWithoutReferencePrice(t *testing.T) {
	cfg := simConfig(10 * time.Millisecond)
	h := newSimHarness(t, cfg, fixedClassifier{label: models.LabelTaker}, fixedRegressor{err: errors.New("disabled")})
	// no snapshot published

	ord := h.sim.Place(context.Background(), models.TradeRequest{
		Symbol:   "BTC-USDT-SWAP",
		Side:     models.SideBuy,
		Quantity: 1,
		FeeTier:  models.FeeTier1,
	})
	if ord.Status != models.OrderStatusRejected {
		t.Fatalf("status = %s, want rejected", ord.Status)
	}
	if h.audit.count() != 0 {
		t.Errorf("audit records = %d, want 0", h.audit.count())
	}
}

func TestClassifierFailureYieldsUnknown(t *testing.T) {
	cfg := simConfig(10 * time.Millisecond)
	h := newSimHarness(t, cfg, fixedClassifier{err: errors.New("model service down")}, fixedRegressor{err: errors.New("disabled")})
	h.publishBook(99, 101)

	ord := h.sim.Place(context.Background(), models.TradeRequest{
		Symbol:   "BTC-USDT-SWAP",
		Side:     models.SideBuy,
		Quantity: 1,
		FeeTier:  models.FeeTier2,
	})
	res := waitExecuted(t, h.sim, ord.ID).Result
	if res.MakerTaker != models.LabelUnknown {
		t.Errorf("maker/taker = %s, want %s on classifier failure", res.MakerTaker, models.LabelUnknown)
	}
	if h.audit.count() != 1 {
		t.Errorf("audit records = %d, want 1 (classification is advisory)", h.audit.count())
	}
}

func TestCancelPendingOrder(t *testing.T) {
	cfg := simConfig(150 * time.Millisecond)
	h := newSimHarness(t, cfg, fixedClassifier{label: models.LabelTaker}, fixedRegressor{err: errors.New("disabled")})
	h.publishBook(99, 101)

	ord := h.sim.Place(context.Background(), models.TradeRequest{
		Symbol:   "BTC-USDT-SWAP",
		Side:     models.SideBuy,
		Quantity: 1,
		FeeTier:  models.FeeTier1,
	})
	if err := h.sim.Cancel(ord.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	got, err := h.sim.Get(ord.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != models.OrderStatusCancelled {
		t.Fatalf("status = %s, want cancelled", got.Status)
	}

	// past the fill delay; cancellation must have prevented execution
	time.Sleep(250 * time.Millisecond)
	got, _ = h.sim.Get(ord.ID)
	if got.Status != models.OrderStatusCancelled {
		t.Errorf("status = %s after fill delay, want cancelled", got.Status)
	}
	if h.audit.count() != 0 {
		t.Errorf("audit records = %d, want 0 for cancelled order", h.audit.count())
	}

	if err := h.sim.Cancel(ord.ID); !errors.Is(err, ErrNotCancellable) {
		t.Errorf("second Cancel error = %v, want ErrNotCancellable", err)
	}
	if err := h.sim.Cancel("ord-missing"); !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("Cancel(missing) error = %v, want ErrOrderNotFound", err)
	}
}

func TestExecutionFallsBackToReferencePriceWhenBookGone(t *testing.T) {
	cfg := simConfig(10 * time.Millisecond)
	h := newSimHarness(t, cfg, fixedClassifier{label: models.LabelTaker}, fixedRegressor{err: errors.New("disabled")})
	h.publishBook(100, 100) // mid = 100, degenerate but valid book

	ord := h.sim.Place(context.Background(), models.TradeRequest{
		Symbol:   "BTC-USDT-SWAP",
		Side:     models.SideBuy,
		Quantity: 1,
		FeeTier:  models.FeeTier1,
	})
	res := waitExecuted(t, h.sim, ord.ID).Result
	if res.Slippage != 0 {
		t.Errorf("slippage = %v, want 0 when exec equals reference", res.Slippage)
	}
}

func waitStatus(t *testing.T, sim *OrderSimulator, id string, want models.OrderStatus) *Order {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		ord, err := sim.Get(id)
		if err != nil {
			t.Fatalf("Get(%s): %v", id, err)
		}
		if ord.Status == want {
			return ord
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("order %s never reached status %s", id, want)
	return nil
}

func TestExecutionPanicRejectsOrder(t *testing.T) {
	cfg := simConfig(10 * time.Millisecond)
	metrics := newRecordingMetrics()
	audit := &memAudit{}
	h := newSimHarnessWith(t, cfg, panickingClassifier{}, fixedRegressor{err: errors.New("disabled")}, audit, metrics)
	h.publishBook(99, 101)

	ord := h.sim.Place(context.Background(), models.TradeRequest{
		Symbol:   "BTC-USDT-SWAP",
		Side:     models.SideBuy,
		Quantity: 1,
		FeeTier:  models.FeeTier1,
	})
	got := waitStatus(t, h.sim, ord.ID, models.OrderStatusRejected)
	if got.Reason == "" || !strings.Contains(got.Reason, "internal execution failure") {
		t.Errorf("reason = %q, want internal execution failure", got.Reason)
	}
	if audit.count() != 0 {
		t.Errorf("audit records = %d, want 0 for rejected order", audit.count())
	}
	if n := metrics.orderCount(string(models.OrderStatusRejected)); n != 1 {
		t.Errorf("rejected metric = %d, want 1", n)
	}
	if n := metrics.errCount("execute"); n != 1 {
		t.Errorf("execute error metric = %d, want 1", n)
	}
}

func TestPanicAfterExecutionKeepsOrderExecuted(t *testing.T) {
	cfg := simConfig(10 * time.Millisecond)
	metrics := newRecordingMetrics()
	h := newSimHarnessWith(t, cfg, fixedClassifier{label: models.LabelTaker}, fixedRegressor{err: errors.New("disabled")}, panickingAudit{}, metrics)
	h.publishBook(99, 101)

	ord := h.sim.Place(context.Background(), models.TradeRequest{
		Symbol:   "BTC-USDT-SWAP",
		Side:     models.SideBuy,
		Quantity: 1,
		FeeTier:  models.FeeTier1,
	})
	got := waitStatus(t, h.sim, ord.ID, models.OrderStatusExecuted)
	if got.Result == nil {
		t.Fatal("executed order has no result")
	}

	// a panic past the executed transition must not count the order as rejected
	deadline := time.Now().Add(2 * time.Second)
	for metrics.errCount("execute") == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := metrics.errCount("execute"); n != 1 {
		t.Fatalf("execute error metric = %d, want 1", n)
	}
	if n := metrics.orderCount(string(models.OrderStatusRejected)); n != 0 {
		t.Errorf("rejected metric = %d, want 0 for an executed order", n)
	}
	got, _ = h.sim.Get(ord.ID)
	if got.Status != models.OrderStatusExecuted {
		t.Errorf("status = %s, want executed", got.Status)
	}
}
