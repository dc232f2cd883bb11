package repository

import (
	"context"

	"CostSim/internal/domain/models"
)

// MarketStream is a persistent order-book subscription.
type MarketStream interface {
	Connect(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.BookSnapshot, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// AuditSink appends one record per executed trade.
type AuditSink interface {
	Append(ctx context.Context, rec *models.AuditRecord) error
	Close() error
}

// Metrics records operational counters and gauges.
type Metrics interface {
	RecordSnapshot(symbol string)
	RecordReconnect()
	RecordOrder(status string)
	RecordLastMid(symbol string, price float64)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
