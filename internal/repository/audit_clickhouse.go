package repository

import (
	"context"
	"fmt"

	"CostSim/internal/domain/models"
	drepo "CostSim/internal/domain/repository"
	"CostSim/pkg/clickhouse"
)

// ClickHouseAuditSink inserts executed trades into a ClickHouse table.
type ClickHouseAuditSink struct {
	client *clickhouse.Client
	table  string
}

// NewClickHouseAuditSink ensures the audit table exists and returns the sink.
// The sink does not own the client; Close is a no-op.
func NewClickHouseAuditSink(ctx context.Context, client *clickhouse.Client, table string) (drepo.AuditSink, error) {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts           DateTime64(9),
		exchange     LowCardinality(String),
		symbol       LowCardinality(String),
		action       LowCardinality(String),
		maker_taker  LowCardinality(String),
		price        Float64,
		quantity     Float64,
		impact_ratio Float64
	) ENGINE = MergeTree() ORDER BY (symbol, ts)`, table)

	if err := client.InitSchema(ctx, []string{ddl}); err != nil {
		return nil, err
	}
	return &ClickHouseAuditSink{client: client, table: table}, nil
}

// Append inserts one row.
func (s *ClickHouseAuditSink) Append(ctx context.Context, rec *models.AuditRecord) error {
	query := fmt.Sprintf(
		"INSERT INTO %s (ts, exchange, symbol, action, maker_taker, price, quantity, impact_ratio) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		s.table)
	_, err := s.client.DB().ExecContext(ctx, query,
		rec.Timestamp,
		rec.Exchange,
		rec.Symbol,
		rec.Action,
		string(rec.MakerTaker),
		rec.Price,
		rec.Quantity,
		rec.ImpactRatio,
	)
	if err != nil {
		return fmt.Errorf("insert audit row: %w", err)
	}
	return nil
}

// Close is a no-op; the shared client is closed by the application.
func (s *ClickHouseAuditSink) Close() error { return nil }
