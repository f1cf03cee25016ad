package events

import (
	"encoding/json"

	"github.com/IBM/sarama"
	"github.com/vendora/marketplace/internal/models"
	"go.uber.org/zap"
)

// Publisher emits post-commit domain events to Kafka. A nil Publisher is
// valid and drops events, so wiring stays the same when no broker is
// configured.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

// NewPublisher connects a sync producer to the broker. Empty broker returns
// a nil publisher.
func NewPublisher(broker, topic string, logger *zap.Logger) (*Publisher, error) {
	if broker == "" {
		return nil, nil
	}

	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer([]string{broker}, cfg)
	if err != nil {
		return nil, err
	}

	logger.Info("event publisher initialized", zap.String("broker", broker), zap.String("topic", topic))

	return &Publisher{producer: producer, topic: topic, logger: logger}, nil
}

// Publish sends the event. Failures are logged, never propagated into the
// transition that produced the event.
func (p *Publisher) Publish(event models.Event) {
	if p == nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("marshal event", zap.Error(err))
		return
	}

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		p.logger.Error("publish event",
			zap.String("type", event.Type),
			zap.Error(err))
		return
	}

	p.logger.Debug("event published",
		zap.String("type", event.Type),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))
}

// Close shuts the producer down
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.producer.Close()
}
