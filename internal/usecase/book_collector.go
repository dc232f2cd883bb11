package usecase

import (
	"context"

	"CostSim/internal/domain/models"
	drepo "CostSim/internal/domain/repository"
	"CostSim/internal/services/vol"
	"CostSim/pkg/logger"
)

// BookCollector consumes order-book snapshots from the market stream, keeps
// the latest snapshot published and feeds mid prices to the volatility
// estimator. It owns the reconnect loop.
type BookCollector struct {
	stream    drepo.MarketStream
	snapshots *SnapshotStore
	estimator *vol.Estimator
	metrics   drepo.Metrics
	logger    *logger.Logger
}

// NewBookCollector creates a new BookCollector instance.
func NewBookCollector(stream drepo.MarketStream, snapshots *SnapshotStore, estimator *vol.Estimator, metrics drepo.Metrics, lgr *logger.Logger) *BookCollector {
	return &BookCollector{
		stream:    stream,
		snapshots: snapshots,
		estimator: estimator,
		metrics:   metrics,
		logger:    lgr,
	}
}

// IsConnected reports whether the market stream is connected.
func (c *BookCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

// Start connects the stream and launches the consume loop.
func (c *BookCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	go c.consume(ctx)
	return nil
}

// consume drains one Read session at a time. When the snapshot channel closes
// (connection lost) it reconnects and opens a fresh session.
func (c *BookCollector) consume(ctx context.Context) {
	for {
		snapCh, errCh := c.stream.Read(ctx)
		if !c.drain(ctx, snapCh, errCh) {
			return
		}
		c.metrics.RecordError("stream")
		c.metrics.RecordReconnect()
		if err := c.stream.Reconnect(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("collector: reconnect failed", logger.Error(err))
		}
	}
}

// drain consumes one session. It returns false when the collector should stop
// and true when the session ended and a reconnect is due.
func (c *BookCollector) drain(ctx context.Context, snapCh <-chan *models.BookSnapshot, errCh <-chan error) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				c.logger.Warn("collector: stream error", logger.Error(err))
			}
		case snap, ok := <-snapCh:
			if !ok {
				return ctx.Err() == nil
			}
			c.observe(snap)
		}
	}
}

func (c *BookCollector) observe(snap *models.BookSnapshot) {
	if snap == nil {
		return
	}
	c.snapshots.Publish(snap)
	mid := snap.Mid()
	c.estimator.Observe(mid)
	c.metrics.RecordSnapshot(snap.Symbol)
	c.metrics.RecordLastMid(snap.Symbol, mid)
}

// Stop closes the stream; the consume loop exits with the context.
func (c *BookCollector) Stop() error { return c.stream.Close() }
