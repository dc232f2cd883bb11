package repository

import (
	"context"
	"time"

	"CostSim/internal/domain/models"
	drepo "CostSim/internal/domain/repository"
	"CostSim/pkg/kafka"
)

// KafkaAuditSink publishes executed trades to a Kafka topic, keyed by symbol
// so one symbol's audit trail stays ordered within a partition.
type KafkaAuditSink struct {
	producer *kafka.Producer
	topic    string
}

type auditEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	Exchange    string    `json:"exchange"`
	Symbol      string    `json:"symbol"`
	Action      string    `json:"action"`
	MakerTaker  string    `json:"maker_taker"`
	Price       float64   `json:"price"`
	Quantity    float64   `json:"quantity"`
	ImpactRatio float64   `json:"impact_ratio"`
}

// NewKafkaAuditSink wraps a producer for the given topic.
func NewKafkaAuditSink(producer *kafka.Producer, topic string) drepo.AuditSink {
	return &KafkaAuditSink{producer: producer, topic: topic}
}

// Append publishes one record.
func (s *KafkaAuditSink) Append(ctx context.Context, rec *models.AuditRecord) error {
	return s.producer.Publish(ctx, s.topic, []byte(rec.Symbol), auditEvent{
		Timestamp:   rec.Timestamp,
		Exchange:    rec.Exchange,
		Symbol:      rec.Symbol,
		Action:      rec.Action,
		MakerTaker:  string(rec.MakerTaker),
		Price:       rec.Price,
		Quantity:    rec.Quantity,
		ImpactRatio: rec.ImpactRatio,
	})
}

// Close closes the underlying producer.
func (s *KafkaAuditSink) Close() error { return s.producer.Close() }
