package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/IBM/sarama"
	"github.com/floor-guesser/internal/config"
	"github.com/floor-guesser/internal/domain"
)

// Producer publishes game-completed events
type Producer struct {
	producer sarama.SyncProducer
	topic    string
	logger   *slog.Logger
}

// NewProducer creates a synchronous producer for the events topic
func NewProducer(cfg *config.KafkaConfig, logger *slog.Logger) (*Producer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	saramaConfig.Producer.Retry.Max = cfg.RetryAttempts
	saramaConfig.Producer.Retry.Backoff = cfg.RetryDelay
	saramaConfig.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("creating producer: %w", err)
	}

	return &Producer{
		producer: producer,
		topic:    cfg.EventsTopic,
		logger:   logger,
	}, nil
}

// PublishGameCompleted sends an event keyed by user so a user's events stay ordered
func (p *Producer) PublishGameCompleted(ctx context.Context, event domain.GameCompletedEvent) error {
	msg, err := eventMessage(p.topic, event)
	if err != nil {
		return err
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("sending game completed event: %w", err)
	}

	p.logger.Debug("published game completed event",
		"event_id", event.EventID,
		"partition", partition,
		"offset", offset,
	)
	return nil
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.producer.Close()
}

func eventMessage(topic string, event domain.GameCompletedEvent) (*sarama.ProducerMessage, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshaling event: %w", err)
	}
	return &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(strconv.FormatInt(event.UserID, 10)),
		Value: sarama.ByteEncoder(data),
	}, nil
}
