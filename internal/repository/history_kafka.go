package repository

import (
	"context"
	"time"

	"TradePulse/internal/domain/models"
	appkafka "TradePulse/pkg/kafka"
	applogger "TradePulse/pkg/logger"
)

// KafkaHistorySink publishes trade events to a Kafka topic keyed by symbol,
// so events for one symbol stay ordered within a partition. Publish failures
// are logged and dropped; trade history is best-effort.
type KafkaHistorySink struct {
	producer *appkafka.Producer
	topic    string
	timeout  time.Duration
	logger   *applogger.Logger
}

// NewKafkaHistorySink creates a sink on an existing producer.
func NewKafkaHistorySink(producer *appkafka.Producer, topic string, logger *applogger.Logger) *KafkaHistorySink {
	return &KafkaHistorySink{
		producer: producer,
		topic:    topic,
		timeout:  5 * time.Second,
		logger:   logger,
	}
}

func (s *KafkaHistorySink) RecordOpen(ctx context.Context, rec models.TradeRecord) {
	s.publish(ctx, rec)
}

func (s *KafkaHistorySink) RecordClose(ctx context.Context, rec models.TradeRecord) {
	s.publish(ctx, rec)
}

func (s *KafkaHistorySink) publish(ctx context.Context, rec models.TradeRecord) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.producer.Publish(ctx, s.topic, []byte(rec.Symbol), rec); err != nil {
		s.logger.Error("failed to publish trade record",
			applogger.String("symbol", rec.Symbol),
			applogger.String("event", rec.Event),
			applogger.Error(err))
	}
}

// Close flushes and closes the underlying producer.
func (s *KafkaHistorySink) Close() error {
	return s.producer.Close()
}
